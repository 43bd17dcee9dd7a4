package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResponseSuccess 返回成功响应
func ResponseSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse(data))
}

// ResponseSuccessMessage 返回成功响应（带消息）
func ResponseSuccessMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, SuccessMessageResponse(message, data))
}

// ResponseSuccessWarnings 主操作成功但次级步骤被跳过时的响应
func ResponseSuccessWarnings(c *gin.Context, data any, warnings []string) {
	resp := SuccessResponse(data)
	resp.Warnings = warnings
	c.JSON(http.StatusOK, resp)
}

// ResponseCreated 返回创建成功响应（201）
func ResponseCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, SuccessResponse(data))
}

// ResponseError 返回错误响应
func ResponseError(c *gin.Context, code int, message string) {
	if message == "" {
		message = GetErrorMessage(code)
	}
	c.JSON(HTTPStatusFor(code), ErrorResponse(code, message))
}

// ResponseBusinessError 返回业务错误响应
func ResponseBusinessError(c *gin.Context, err *BusinessError) {
	ResponseError(c, err.Code, err.Message)
}

// ResponseFromError 按错误类型返回响应：业务错误走状态码映射，其余视为上游/内部失败
func ResponseFromError(c *gin.Context, err error) {
	var bizErr *BusinessError
	if errors.As(err, &bizErr) {
		ResponseBusinessError(c, bizErr)
		return
	}
	ResponseError(c, CodeUpstreamFailure, err.Error())
}

// ResponseBadRequest 返回参数错误响应
func ResponseBadRequest(c *gin.Context, message string) {
	ResponseError(c, CodeInvalidRequest, message)
}

// HTTPStatusFor 业务状态码到 HTTP 状态码的映射
func HTTPStatusFor(code int) int {
	switch code {
	case CodeInvalidRequest, CodeMissingDomainAssociation, CodeNoDefaultStore,
		CodeInvalidMemoryType, CodeMissingClientName, CodeAmbiguousStoreFilter:
		return http.StatusBadRequest
	case CodeNotFound, CodeDomainNotFound, CodeExpertNotFound, CodeStoreNotFound,
		CodeDocumentNotFound, CodeNoDomainStore, CodeNoExpertStore, CodeNoClientStore:
		return http.StatusNotFound
	case CodeConflict, CodeDomainExists, CodeDuplicateStore, CodeVectorIDMismatch:
		return http.StatusConflict
	case CodeInternalError, CodeUpstreamFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
