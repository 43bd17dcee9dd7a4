// Package query 问答接口
package query

import (
	"github.com/gin-gonic/gin"

	"expertmemory/internal/common"
	"expertmemory/internal/gateway"
)

// Handler 问答处理器
type Handler struct {
	gateway *gateway.Gateway
}

// NewHandler 创建问答处理器
func NewHandler(gw *gateway.Gateway) *Handler {
	return &Handler{gateway: gw}
}

// AskRequest 问答请求
type AskRequest struct {
	Question   string `json:"question" binding:"required,min=1"`
	MemoryType string `json:"memory_type" binding:"required,oneof=llm domain expert client"`
	Domain     string `json:"domain"`
	ExpertName string `json:"expert_name"`
	ClientName string `json:"client_name"`
}

// Ask 执行一次问答
// @Summary 问答
// @Tags Query
// @Accept json
// @Produce json
// @Param request body AskRequest true "问题与记忆范围"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/query [post]
func (h *Handler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.gateway.Query(c.Request.Context(), gateway.QueryInput{
		Question:   req.Question,
		MemoryType: req.MemoryType,
		Domain:     req.Domain,
		Expert:     req.ExpertName,
		Client:     req.ClientName,
	})
	if err != nil {
		common.ResponseFromError(c, err)
		return
	}
	common.ResponseSuccess(c, result)
}
