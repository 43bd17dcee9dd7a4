// Package experts 专家管理接口
package experts

import (
	"github.com/gin-gonic/gin"

	"expertmemory/internal/common"
	"expertmemory/internal/memory"
)

// Handler 专家处理器
type Handler struct {
	experts *memory.ExpertService
}

// NewHandler 创建专家处理器
func NewHandler(experts *memory.ExpertService) *Handler {
	return &Handler{experts: experts}
}

// CreateRequest 创建专家请求
type CreateRequest struct {
	Name                      string `json:"name" binding:"required,min=1,max=200"`
	Domain                    string `json:"domain" binding:"required,min=1,max=200"`
	Context                   string `json:"context"`
	UseDefaultDomainKnowledge bool   `json:"use_default_domain_knowledge"`
}

// Create 创建专家并接入领域知识库
// @Summary 创建专家
// @Tags Experts
// @Accept json
// @Produce json
// @Param request body CreateRequest true "专家信息"
// @Success 201 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/experts [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	expert, warnings, err := h.experts.CreateExpert(c.Request.Context(), memory.CreateExpertInput{
		Name:                      req.Name,
		Domain:                    req.Domain,
		Context:                   req.Context,
		UseDefaultDomainKnowledge: req.UseDefaultDomainKnowledge,
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	if len(warnings) > 0 {
		common.ResponseSuccessWarnings(c, expert, warnings)
		return
	}
	common.ResponseCreated(c, expert)
}

// List 列出全部专家
// @Summary 列出全部专家
// @Tags Experts
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/experts [get]
func (h *Handler) List(c *gin.Context) {
	experts, err := h.experts.ListExperts(c.Request.Context())
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"experts": experts, "total": len(experts)})
}

// GetVectorID 查询专家当前使用的向量库 ID
// @Summary 查询专家向量库 ID
// @Tags Experts
// @Produce json
// @Param expert_name path string true "专家名"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/experts/{expert_name}/vector_id [get]
func (h *Handler) GetVectorID(c *gin.Context) {
	vectorID, err := h.experts.GetExpertVectorID(c.Request.Context(), c.Param("expert_name"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"vector_id": vectorID})
}

// GetClients 列出专家名下的客户名
// @Summary 列出专家的客户
// @Tags Experts
// @Produce json
// @Param expert_name path string true "专家名"
// @Param domain query string false "按领域过滤"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/experts/{expert_name}/clients [get]
func (h *Handler) GetClients(c *gin.Context) {
	clients, err := h.experts.ListClientNames(c.Request.Context(), c.Param("expert_name"), c.Query("domain"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"clients": clients, "total": len(clients)})
}

// GetContext 查询专家上下文
// @Summary 查询专家上下文
// @Tags Experts
// @Produce json
// @Param expert_name path string true "专家名"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/experts/{expert_name}/context [get]
func (h *Handler) GetContext(c *gin.Context) {
	context, err := h.experts.GetContext(c.Request.Context(), c.Param("expert_name"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"context": context})
}

// UpdateContextRequest 更新专家上下文请求
type UpdateContextRequest struct {
	ExpertName string `json:"expert_name" binding:"required,min=1,max=200"`
	Context    string `json:"context" binding:"required"`
}

// UpdateContext 覆盖更新专家上下文
// @Summary 更新专家上下文
// @Tags Experts
// @Accept json
// @Produce json
// @Param request body UpdateContextRequest true "上下文内容"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/experts/context [put]
func (h *Handler) UpdateContext(c *gin.Context) {
	var req UpdateContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.experts.UpdateContext(c.Request.Context(), req.ExpertName, req.Context); err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccessMessage(c, "专家上下文已更新", gin.H{"expert_name": req.ExpertName})
}
