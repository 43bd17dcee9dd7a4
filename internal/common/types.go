package common

import "fmt"

// ============================================================================
// 通用响应类型
// ============================================================================

// APIResponse 统一API响应格式
type APIResponse struct {
	Success  bool     `json:"success"`            // 是否成功
	Data     any      `json:"data,omitempty"`     // 响应数据
	Message  string   `json:"message,omitempty"`  // 提示信息
	Code     int      `json:"code"`               // 业务状态码
	Warnings []string `json:"warnings,omitempty"` // 主操作成功但次级步骤被跳过时的说明
}

// SuccessResponse 成功响应
func SuccessResponse(data any) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
		Code:    CodeSuccess,
	}
}

// SuccessMessageResponse 成功响应（带消息）
func SuccessMessageResponse(message string, data any) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
		Message: message,
		Code:    CodeSuccess,
	}
}

// ErrorResponse 错误响应
func ErrorResponse(code int, message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
		Code:    code,
	}
}

// ============================================================================
// 业务状态码定义
// ============================================================================

const (
	// 成功状态码
	CodeSuccess = 0

	// 通用错误码 (1000-1999)
	CodeInvalidRequest  = 1000 // 请求参数错误
	CodeNotFound        = 1003 // 资源不存在
	CodeConflict        = 1004 // 资源冲突
	CodeInternalError   = 1005 // 内部错误
	CodeUpstreamFailure = 1006 // 上游服务调用失败（数据库或检索引擎）

	// 实体不存在 (6000-6009)
	CodeDomainNotFound   = 6000 // 领域不存在
	CodeExpertNotFound   = 6001 // 专家不存在
	CodeStoreNotFound    = 6002 // 向量库不存在
	CodeDocumentNotFound = 6003 // 文档不存在

	// 冲突 (6010-6019)
	CodeDomainExists     = 6010 // 领域已注册
	CodeDuplicateStore   = 6011 // 同一归属元组的向量库记录已存在
	CodeVectorIDMismatch = 6012 // 待删除的向量库ID与当前首选向量库不一致

	// 参数/关联错误 (6020-6029)
	CodeMissingDomainAssociation = 6020 // 专家记录缺少领域关联
	CodeNoDefaultStore           = 6021 // 领域没有可复制的默认向量库
	CodeInvalidMemoryType        = 6022 // 无效的记忆类型
	CodeMissingClientName        = 6023 // 客户级操作缺少客户名
	CodeAmbiguousStoreFilter     = 6024 // 命中多条向量库记录，需收窄筛选条件

	// 查询路径缺库 (6030-6039)
	CodeNoDomainStore = 6030 // 领域没有默认向量库
	CodeNoExpertStore = 6031 // 专家没有首选向量库
	CodeNoClientStore = 6032 // 专家与客户组合没有向量库
)

// ErrorMessages 错误码对应的默认消息
var ErrorMessages = map[int]string{
	CodeSuccess:         "操作成功",
	CodeInvalidRequest:  "请求参数错误",
	CodeNotFound:        "资源不存在",
	CodeConflict:        "资源冲突",
	CodeInternalError:   "系统内部错误",
	CodeUpstreamFailure: "上游服务调用失败",

	CodeDomainNotFound:   "领域不存在",
	CodeExpertNotFound:   "专家不存在",
	CodeStoreNotFound:    "向量库不存在",
	CodeDocumentNotFound: "文档不存在",

	CodeDomainExists:     "领域已注册",
	CodeDuplicateStore:   "该归属元组已存在向量库记录",
	CodeVectorIDMismatch: "向量库ID与专家当前首选向量库不一致",

	CodeMissingDomainAssociation: "专家记录缺少领域关联",
	CodeNoDefaultStore:           "领域没有默认向量库",
	CodeInvalidMemoryType:        "无效的记忆类型",
	CodeMissingClientName:        "客户级操作必须提供客户名",
	CodeAmbiguousStoreFilter:     "命中多条向量库记录，请收窄筛选条件",

	CodeNoDomainStore: "领域没有默认向量库",
	CodeNoExpertStore: "专家没有首选向量库",
	CodeNoClientStore: "该专家与客户组合没有向量库",
}

// GetErrorMessage 获取错误码对应的消息
func GetErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "未知错误"
}

// ============================================================================
// 通用业务错误类型
// ============================================================================

// BusinessError 业务错误
type BusinessError struct {
	Code    int    // 错误码
	Message string // 错误信息
}

// Error 实现error接口
func (e *BusinessError) Error() string {
	return e.Message
}

// NewBusinessError 创建业务错误
func NewBusinessError(code int, message string) *BusinessError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}

// NewBusinessErrorf 创建带格式化消息的业务错误
func NewBusinessErrorf(code int, format string, args ...any) *BusinessError {
	return NewBusinessError(code, fmt.Sprintf(format, args...))
}
