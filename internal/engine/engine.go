// Package engine 封装托管检索引擎：向量库管理、文件摄取与 file_search 问答
package engine

import "context"

// Batch 一次批量摄取的回执
type Batch struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Citation 回答中的引用片段
type Citation struct {
	Quote  string `json:"quote,omitempty"`
	Source string `json:"source,omitempty"`
}

// 原始响应形态
const (
	ResponseKindText   = "text"   // 已解析出正文
	ResponseKindOpaque = "opaque" // 形态未知，保留原始载荷
)

// RawResponse 引擎返回的未归一化回答
type RawResponse struct {
	Kind      string     `json:"kind"`
	Text      string     `json:"text,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
	Opaque    any        `json:"opaque,omitempty"`
}

// QueryRequest 一次问答请求
type QueryRequest struct {
	Question       string   // 用户问题
	SystemContext  string   // 附加到系统消息的专家上下文，可为空
	VectorStoreIDs []string // 为空时退化为纯模型问答，不挂检索工具
}

// Engine 托管检索引擎接口，全部操作单次尝试、不做重试
type Engine interface {
	// CreateStore 按名称创建向量库，返回向量库 ID
	CreateStore(ctx context.Context, name string) (string, error)
	// RegisterContent 上传文件内容，返回文件 ID
	RegisterContent(ctx context.Context, filename string, data []byte) (string, error)
	// BatchIngest 将一批文件挂载到向量库
	BatchIngest(ctx context.Context, vectorStoreID string, fileIDs []string) (*Batch, error)
	// RemoveContent 将文件从向量库摘除
	RemoveContent(ctx context.Context, vectorStoreID, fileID string) error
	// DeleteContent 删除已上传的文件本体
	DeleteContent(ctx context.Context, fileID string) error
	// DeleteStore 删除向量库
	DeleteStore(ctx context.Context, vectorStoreID string) error
	// Query 携带检索范围执行问答
	Query(ctx context.Context, req QueryRequest) (*RawResponse, error)
}
