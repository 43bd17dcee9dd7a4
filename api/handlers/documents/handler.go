// Package documents 文档引用查询接口
package documents

import (
	"github.com/gin-gonic/gin"

	"expertmemory/internal/common"
	"expertmemory/internal/memory"
)

// Handler 文档处理器
type Handler struct {
	documents *memory.DocumentService
}

// NewHandler 创建文档处理器
func NewHandler(documents *memory.DocumentService) *Handler {
	return &Handler{documents: documents}
}

// List 按条件列出文档引用
// @Summary 列出文档
// @Tags Documents
// @Produce json
// @Param domain query string false "领域名"
// @Param expert query string false "专家名"
// @Param client query string false "客户名"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Router /api/documents [get]
func (h *Handler) List(c *gin.Context) {
	docs, err := h.documents.ListDocuments(c.Request.Context(), memory.DocumentFilter{
		Domain: c.Query("domain"),
		Expert: c.Query("expert"),
		Client: c.Query("client"),
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"documents": docs, "total": len(docs)})
}
