// Package domains 领域管理接口
package domains

import (
	"github.com/gin-gonic/gin"

	"expertmemory/internal/common"
	"expertmemory/internal/memory"
)

// Handler 领域处理器
type Handler struct {
	domains *memory.DomainService
}

// NewHandler 创建领域处理器
func NewHandler(domains *memory.DomainService) *Handler {
	return &Handler{domains: domains}
}

// CreateRequest 创建领域请求
type CreateRequest struct {
	DomainName string `json:"domain_name" binding:"required,min=1,max=200"`
}

// Create 创建领域
// @Summary 创建领域并建立默认向量库
// @Tags Domains
// @Accept json
// @Produce json
// @Param request body CreateRequest true "领域信息"
// @Success 201 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/domains [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	domain, warnings, err := h.domains.CreateDomain(c.Request.Context(), req.DomainName)
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	if len(warnings) > 0 {
		common.ResponseSuccessWarnings(c, domain, warnings)
		return
	}
	common.ResponseCreated(c, domain)
}

// List 列出全部领域
// @Summary 列出全部领域
// @Tags Domains
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/domains [get]
func (h *Handler) List(c *gin.Context) {
	domains, err := h.domains.ListDomains(c.Request.Context())
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"domains": domains, "total": len(domains)})
}

// GetVectorID 查询领域默认向量库 ID
// @Summary 查询领域默认向量库 ID
// @Tags Domains
// @Produce json
// @Param domain_name path string true "领域名"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/domains/{domain_name}/vector_id [get]
func (h *Handler) GetVectorID(c *gin.Context) {
	vectorID, err := h.domains.GetDomainVectorID(c.Request.Context(), c.Param("domain_name"))
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"vector_id": vectorID})
}
