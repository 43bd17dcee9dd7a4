package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"expertmemory/internal/logger"
)

// 检索问答的基础指令
const searchInstructions = "你是一名专业的知识助手。回答问题时必须优先依据检索到的资料，" +
	"资料中没有依据时如实说明，不要编造内容。最多引用 %d 段资料。"

// OpenAIConfig 引擎配置
type OpenAIConfig struct {
	APIKey           string
	BaseURL          string
	OrgID            string
	Model            string
	MaxSearchResults int
	PollInterval     time.Duration
	RunTimeout       time.Duration
}

// OpenAIEngine 基于 OpenAI 托管向量库与 file_search 的引擎实现
// 所有调用单次尝试，失败直接上抛，由调用方决定是否向用户暴露
type OpenAIEngine struct {
	client           *openai.Client
	model            string
	maxSearchResults int
	pollInterval     time.Duration
	runTimeout       time.Duration
}

// NewOpenAIEngine 创建引擎
func NewOpenAIEngine(cfg OpenAIConfig) *OpenAIEngine {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.OrgID != "" {
		clientCfg.OrgID = cfg.OrgID
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	maxResults := cfg.MaxSearchResults
	if maxResults <= 0 {
		maxResults = 2
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 120 * time.Second
	}
	return &OpenAIEngine{
		client:           openai.NewClientWithConfig(clientCfg),
		model:            model,
		maxSearchResults: maxResults,
		pollInterval:     pollInterval,
		runTimeout:       runTimeout,
	}
}

// CreateStore 创建向量库
func (e *OpenAIEngine) CreateStore(ctx context.Context, name string) (string, error) {
	store, err := e.client.CreateVectorStore(ctx, openai.VectorStoreRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("创建向量库 %s 失败: %w", name, err)
	}
	return store.ID, nil
}

// RegisterContent 上传文件内容
func (e *OpenAIEngine) RegisterContent(ctx context.Context, filename string, data []byte) (string, error) {
	file, err := e.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    filename,
		Bytes:   data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return "", fmt.Errorf("上传文件 %s 失败: %w", filename, err)
	}
	return file.ID, nil
}

// BatchIngest 将一批文件挂载到向量库
func (e *OpenAIEngine) BatchIngest(ctx context.Context, vectorStoreID string, fileIDs []string) (*Batch, error) {
	batch, err := e.client.CreateVectorStoreFileBatch(ctx, vectorStoreID,
		openai.VectorStoreFileBatchRequest{FileIDs: fileIDs})
	if err != nil {
		return nil, fmt.Errorf("向量库 %s 批量挂载失败: %w", vectorStoreID, err)
	}
	return &Batch{ID: batch.ID, Status: batch.Status}, nil
}

// RemoveContent 将文件从向量库摘除
func (e *OpenAIEngine) RemoveContent(ctx context.Context, vectorStoreID, fileID string) error {
	if err := e.client.DeleteVectorStoreFile(ctx, vectorStoreID, fileID); err != nil {
		return fmt.Errorf("文件 %s 从向量库 %s 摘除失败: %w", fileID, vectorStoreID, err)
	}
	return nil
}

// DeleteContent 删除已上传的文件本体
func (e *OpenAIEngine) DeleteContent(ctx context.Context, fileID string) error {
	if err := e.client.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("删除文件 %s 失败: %w", fileID, err)
	}
	return nil
}

// DeleteStore 删除向量库
func (e *OpenAIEngine) DeleteStore(ctx context.Context, vectorStoreID string) error {
	if _, err := e.client.DeleteVectorStore(ctx, vectorStoreID); err != nil {
		return fmt.Errorf("删除向量库 %s 失败: %w", vectorStoreID, err)
	}
	return nil
}

// Query 执行问答
// 不带检索范围时走普通对话补全，带检索范围时通过一次性助手执行 file_search
func (e *OpenAIEngine) Query(ctx context.Context, req QueryRequest) (*RawResponse, error) {
	if len(req.VectorStoreIDs) == 0 {
		return e.plainQuery(ctx, req)
	}
	return e.searchQuery(ctx, req)
}

func (e *OpenAIEngine) plainQuery(ctx context.Context, req QueryRequest) (*RawResponse, error) {
	var messages []openai.ChatCompletionMessage
	if req.SystemContext != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemContext,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Question,
	})
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("对话补全失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &RawResponse{Kind: ResponseKindOpaque, Opaque: resp}, nil
	}
	return &RawResponse{Kind: ResponseKindText, Text: resp.Choices[0].Message.Content}, nil
}

func (e *OpenAIEngine) searchQuery(ctx context.Context, req QueryRequest) (*RawResponse, error) {
	instructions := fmt.Sprintf(searchInstructions, e.maxSearchResults)
	if req.SystemContext != "" {
		instructions += "\n\n" + req.SystemContext
	}
	assistant, err := e.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        e.model,
		Instructions: &instructions,
		Tools:        []openai.AssistantTool{{Type: openai.AssistantToolTypeFileSearch}},
		ToolResources: &openai.AssistantToolResource{
			FileSearch: &openai.AssistantToolFileSearch{VectorStoreIDs: req.VectorStoreIDs},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("创建检索助手失败: %w", err)
	}
	defer func() {
		// 一次性助手，用完即删，删除失败不影响结果
		if _, err := e.client.DeleteAssistant(context.WithoutCancel(ctx), assistant.ID); err != nil {
			logger.Warn("检索助手清理失败", zap.String("assistant_id", assistant.ID), zap.Error(err))
		}
	}()

	run, err := e.client.CreateThreadAndRun(ctx, openai.CreateThreadAndRunRequest{
		RunRequest: openai.RunRequest{AssistantID: assistant.ID},
		Thread: openai.ThreadRequest{
			Messages: []openai.ThreadMessage{{
				Role:    openai.ThreadMessageRoleUser,
				Content: req.Question,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("创建检索会话失败: %w", err)
	}

	run, err = e.waitForRun(ctx, run)
	if err != nil {
		return nil, err
	}
	return e.collectAnswer(ctx, run)
}

// waitForRun 轮询运行状态直到终态或超时
func (e *OpenAIEngine) waitForRun(ctx context.Context, run openai.Run) (openai.Run, error) {
	deadline := time.Now().Add(e.runTimeout)
	for {
		switch run.Status {
		case openai.RunStatusCompleted:
			return run, nil
		case openai.RunStatusFailed, openai.RunStatusCancelled,
			openai.RunStatusExpired, openai.RunStatusIncomplete,
			openai.RunStatusRequiresAction:
			return run, fmt.Errorf("检索运行终止于状态 %s", run.Status)
		}
		if time.Now().After(deadline) {
			return run, fmt.Errorf("检索运行超时，当前状态 %s", run.Status)
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-time.After(e.pollInterval):
		}
		next, err := e.client.RetrieveRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("查询运行状态失败: %w", err)
		}
		run = next
	}
}

// collectAnswer 取出运行产生的助手回复并抽取正文与引用
func (e *OpenAIEngine) collectAnswer(ctx context.Context, run openai.Run) (*RawResponse, error) {
	limit := 10
	order := "desc"
	list, err := e.client.ListMessage(ctx, run.ThreadID, &limit, &order, nil, nil, &run.ID)
	if err != nil {
		return nil, fmt.Errorf("读取检索结果失败: %w", err)
	}
	for _, message := range list.Messages {
		if message.Role != string(openai.ThreadMessageRoleAssistant) {
			continue
		}
		text, citations := extractMessageText(message)
		if strings.TrimSpace(text) != "" {
			return &RawResponse{Kind: ResponseKindText, Text: text, Citations: citations}, nil
		}
	}
	// 没拿到可用正文，保留原始载荷交给归一化层兜底
	return &RawResponse{Kind: ResponseKindOpaque, Opaque: list}, nil
}

// extractMessageText 拼接消息正文并剥离引用标记
func extractMessageText(message openai.Message) (string, []Citation) {
	var builder strings.Builder
	var citations []Citation
	for _, part := range message.Content {
		if part.Text == nil {
			continue
		}
		value := part.Text.Value
		for _, annotation := range part.Text.Annotations {
			marker, quote, source := parseAnnotation(annotation)
			if marker != "" {
				value = strings.ReplaceAll(value, marker, "")
			}
			if quote != "" || source != "" {
				citations = append(citations, Citation{Quote: quote, Source: source})
			}
		}
		builder.WriteString(value)
	}
	return builder.String(), citations
}

// parseAnnotation 宽松解析引用注解，形态不符时全部返回空
func parseAnnotation(annotation any) (marker, quote, source string) {
	fields, ok := annotation.(map[string]any)
	if !ok {
		return "", "", ""
	}
	marker, _ = fields["text"].(string)
	if citation, ok := fields["file_citation"].(map[string]any); ok {
		quote, _ = citation["quote"].(string)
		source, _ = citation["file_id"].(string)
	}
	return marker, quote, source
}
