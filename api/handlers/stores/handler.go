// Package stores 向量库管理与文档摄取接口
package stores

import (
	"github.com/gin-gonic/gin"

	"expertmemory/internal/common"
	"expertmemory/internal/engine"
	"expertmemory/internal/ingest"
	"expertmemory/internal/memory"
)

// Handler 向量库处理器
type Handler struct {
	resolver *memory.StoreResolver
	ingestor *ingest.Ingestor
	experts  *memory.ExpertService
	engine   engine.Engine
}

// NewHandler 创建向量库处理器
func NewHandler(resolver *memory.StoreResolver, ingestor *ingest.Ingestor,
	experts *memory.ExpertService, eng engine.Engine) *Handler {
	return &Handler{resolver: resolver, ingestor: ingestor, experts: experts, engine: eng}
}

// DocumentRef 待摄取文档
type DocumentRef struct {
	Name string `json:"name" binding:"required,min=1,max=500"`
	URL  string `json:"url" binding:"required,min=1,max=1000"`
}

func toInputs(refs []DocumentRef) []ingest.DocumentInput {
	inputs := make([]ingest.DocumentInput, 0, len(refs))
	for _, ref := range refs {
		inputs = append(inputs, ingest.DocumentInput{Name: ref.Name, Link: ref.URL})
	}
	return inputs
}

func respondIngest(c *gin.Context, result *ingest.Result) {
	if len(result.Warnings) > 0 {
		common.ResponseSuccessWarnings(c, result, result.Warnings)
		return
	}
	common.ResponseSuccess(c, result)
}

// GetClientVectorID 解析客户级向量库 ID，不存在时新建（不登记）
// @Summary 解析客户向量库 ID
// @Tags Vectors
// @Produce json
// @Param expert_name path string true "专家名"
// @Param client_name path string true "客户名"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/vectors/expert/{expert_name}/client/{client_name} [get]
func (h *Handler) GetClientVectorID(c *gin.Context) {
	vectorID, registered, err := h.resolver.ResolveClientStore(
		c.Request.Context(), c.Param("expert_name"), c.Param("client_name"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"vector_id": vectorID, "registered": registered})
}

// SearchStore 按任意维度组合查询已登记的向量库
// @Summary 条件查询向量库
// @Tags Vectors
// @Produce json
// @Param domain query string false "领域名"
// @Param expert query string false "专家名"
// @Param client query string false "客户名"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/vectors/search [get]
func (h *Handler) SearchStore(c *gin.Context) {
	record, err := h.resolver.Registry().FindByFilter(c.Request.Context(), memory.StoreFilter{
		Domain: c.Query("domain"),
		Expert: c.Query("expert"),
		Client: c.Query("client"),
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	if record == nil {
		common.ResponseFromError(c, common.NewBusinessError(common.CodeStoreNotFound, "未找到匹配的向量库"))
		return
	}
	common.ResponseSuccess(c, record)
}

// AttachRequest 专家接入领域知识库请求
type AttachRequest struct {
	ExpertName                string `json:"expert_name" binding:"required,min=1,max=200"`
	UseDefaultDomainKnowledge bool   `json:"use_default_domain_knowledge"`
}

// AttachExpertDomain 为专家接入所属领域的知识库
// @Summary 专家接入领域知识库
// @Tags Vectors
// @Accept json
// @Produce json
// @Param request body AttachRequest true "接入参数"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/vectors/expert-domain [post]
func (h *Handler) AttachExpertDomain(c *gin.Context) {
	var req AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	res, err := h.resolver.AttachExpertStore(
		c.Request.Context(), req.ExpertName, req.UseDefaultDomainKnowledge)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{
		"vector_id":           res.VectorID,
		"store_name":          res.StoreName,
		"used_domain_default": res.UsedDomainDefault,
		"created":             res.Created,
	})
}

// UpgradeRequest 专家专属库升级请求
type UpgradeRequest struct {
	ExpertName string `json:"expert_name" binding:"required,min=1,max=200"`
}

// UpgradeExpertStore 为沿用领域默认库的专家建立专属向量库
// @Summary 建立专家专属向量库
// @Tags Vectors
// @Accept json
// @Produce json
// @Param request body UpgradeRequest true "专家名"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/vectors/expert-domain/update [post]
func (h *Handler) UpgradeExpertStore(c *gin.Context) {
	var req UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	res, err := h.resolver.EnsureExpertStore(c.Request.Context(), req.ExpertName)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{
		"vector_id":  res.VectorID,
		"store_name": res.StoreName,
		"created":    res.Created,
	})
}

// ClientStoreRequest 客户向量库请求
type ClientStoreRequest struct {
	ExpertName string `json:"expert_name" binding:"required,min=1,max=200"`
	ClientName string `json:"client_name" binding:"required,min=1,max=200"`
}

// EnsureClientStore 解析或新建客户级向量库
// @Summary 建立客户向量库
// @Tags Vectors
// @Accept json
// @Produce json
// @Param request body ClientStoreRequest true "专家与客户"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/vectors/expert-client [post]
func (h *Handler) EnsureClientStore(c *gin.Context) {
	var req ClientStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	vectorID, registered, err := h.resolver.ResolveClientStore(
		c.Request.Context(), req.ExpertName, req.ClientName)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"vector_id": vectorID, "registered": registered})
}

// DomainFilesRequest 领域文档摄取请求
type DomainFilesRequest struct {
	DomainName string        `json:"domain_name" binding:"required,min=1,max=200"`
	Documents  []DocumentRef `json:"documents" binding:"required,min=1,dive"`
}

// AddDomainFiles 向领域默认向量库摄取文档
// @Summary 领域文档摄取
// @Tags Vectors
// @Accept json
// @Produce json
// @Param request body DomainFilesRequest true "领域与文档列表"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/vectors/domain/files [post]
func (h *Handler) AddDomainFiles(c *gin.Context) {
	var req DomainFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	vectorID, err := h.resolver.ResolveDomainStore(ctx, req.DomainName)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	result, err := h.ingestor.AddOrEdit(ctx, memory.OwnerTuple{Domain: req.DomainName},
		vectorID, toInputs(req.Documents))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	respondIngest(c, result)
}

// ExpertFilesRequest 专家文档摄取请求
// 指定客户时写入该客户的私有记忆库，否则写入专家专属库
type ExpertFilesRequest struct {
	ExpertName           string        `json:"expert_name" binding:"required,min=1,max=200"`
	ClientName           string        `json:"client_name"`
	UseForSpecificClient bool          `json:"use_for_specific_client"`
	Documents            []DocumentRef `json:"documents" binding:"required,min=1,dive"`
}

// AddExpertFiles 向专家或客户向量库摄取文档
// @Summary 专家文档摄取
// @Tags Vectors
// @Accept json
// @Produce json
// @Param request body ExpertFilesRequest true "专家与文档列表"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/vectors/expert/files [post]
func (h *Handler) AddExpertFiles(c *gin.Context) {
	var req ExpertFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	expert, err := h.experts.GetExpert(ctx, req.ExpertName)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}

	if req.UseForSpecificClient || req.ClientName != "" {
		if req.ClientName == "" {
			common.ResponseBusinessError(c, common.NewBusinessError(common.CodeMissingClientName, ""))
			return
		}
		vectorID, _, err := h.resolver.ResolveClientStore(ctx, req.ExpertName, req.ClientName)
		if err != nil {
			common.ResponseFromError(c, err)
			return
		}
		tuple := memory.OwnerTuple{Domain: expert.Domain, Expert: req.ExpertName, Client: req.ClientName}
		result, err := h.ingestor.AddOrEdit(ctx, tuple, vectorID, toInputs(req.Documents))
		if err != nil {
			common.ResponseFromError(c, err)
			return
		}
		respondIngest(c, result)
		return
	}

	res, err := h.resolver.EnsureExpertStore(ctx, req.ExpertName)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	tuple := memory.OwnerTuple{Domain: expert.Domain, Expert: req.ExpertName}
	result, err := h.ingestor.AddOrEdit(ctx, tuple, res.VectorID, toInputs(req.Documents))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	respondIngest(c, result)
}

// CreateStoreRequest 裸向量库创建请求
type CreateStoreRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
}

// CreateStore 按名称创建一个不纳入登记的向量库
// @Summary 创建裸向量库
// @Tags Vectors
// @Accept json
// @Produce json
// @Param request body CreateStoreRequest true "向量库名"
// @Success 201 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Router /api/vectors/stores [post]
func (h *Handler) CreateStore(c *gin.Context) {
	var req CreateStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	vectorID, err := h.engine.CreateStore(c.Request.Context(), req.Name)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseCreated(c, gin.H{"vector_id": vectorID, "name": req.Name})
}

// UpdateContentRequest 向量库内容覆盖更新请求
// 以文档链接为准做增删：缺失的链接会被摄取，多余的会被剔除
type UpdateContentRequest struct {
	DomainName string        `json:"domain_name"`
	ExpertName string        `json:"expert_name"`
	ClientName string        `json:"client_name"`
	Documents  []DocumentRef `json:"documents" binding:"required,dive"`
}

// UpdateContent 覆盖式更新向量库内容
// @Summary 更新向量库内容
// @Tags Vectors
// @Accept json
// @Produce json
// @Param request body UpdateContentRequest true "归属与目标文档列表"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/vectors/update [post]
func (h *Handler) UpdateContent(c *gin.Context) {
	var req UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	var tuple memory.OwnerTuple
	switch {
	case req.ExpertName != "":
		expert, err := h.experts.GetExpert(ctx, req.ExpertName)
		if err != nil {
			common.ResponseFromError(c, err)
			return
		}
		tuple = memory.OwnerTuple{Domain: expert.Domain, Expert: req.ExpertName, Client: req.ClientName}
	case req.DomainName != "":
		if req.ClientName != "" {
			common.ResponseBadRequest(c, "指定客户时必须同时提供专家名")
			return
		}
		tuple = memory.OwnerTuple{Domain: req.DomainName}
	default:
		common.ResponseBadRequest(c, "请提供领域名或专家名")
		return
	}

	result, err := h.ingestor.Edit(ctx, tuple, toInputs(req.Documents))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	respondIngest(c, result)
}

// DeleteExpertStoreRequest 删除专家专属向量库请求
type DeleteExpertStoreRequest struct {
	ExpertName string `json:"expert_name" binding:"required,min=1,max=200"`
	VectorID   string `json:"vector_id" binding:"required,min=1,max=100"`
}

// DeleteExpertStore 删除专家专属向量库
// @Summary 删除专家向量库
// @Tags Vectors
// @Accept json
// @Produce json
// @Param request body DeleteExpertStoreRequest true "专家与向量库 ID"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/vectors/expert [delete]
func (h *Handler) DeleteExpertStore(c *gin.Context) {
	var req DeleteExpertStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	warnings, err := h.resolver.DeleteExpertStore(c.Request.Context(), req.ExpertName, req.VectorID)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	data := gin.H{"expert_name": req.ExpertName, "vector_id": req.VectorID}
	if len(warnings) > 0 {
		common.ResponseSuccessWarnings(c, data, warnings)
		return
	}
	common.ResponseSuccessMessage(c, "专家向量库已删除", data)
}

// DeleteMemoryRequest 按归属删除向量库请求
type DeleteMemoryRequest struct {
	DomainName string `json:"domain_name"`
	ExpertName string `json:"expert_name"`
	ClientName string `json:"client_name"`
}

// DeleteMemory 按归属元组删除向量库
// @Summary 删除记忆库
// @Tags Vectors
// @Accept json
// @Produce json
// @Param request body DeleteMemoryRequest true "归属信息"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/vectors/memory [delete]
func (h *Handler) DeleteMemory(c *gin.Context) {
	var req DeleteMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	deletion, err := h.resolver.DeleteByOwner(c.Request.Context(), memory.OwnerTuple{
		Domain: req.DomainName,
		Expert: req.ExpertName,
		Client: req.ClientName,
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "记忆库已删除", deletion)
}
