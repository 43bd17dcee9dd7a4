// Package gateway 问答网关：按记忆类型定位检索范围并归一化回答
package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"expertmemory/internal/common"
	"expertmemory/internal/engine"
	"expertmemory/internal/logger"
	"expertmemory/internal/memory"
	"expertmemory/internal/metrics"
)

// 记忆类型
const (
	MemoryLLM    = "llm"    // 纯模型问答，不挂检索
	MemoryDomain = "domain" // 领域公共知识
	MemoryExpert = "expert" // 专家知识
	MemoryClient = "client" // 客户私有记忆
)

// QueryInput 一次问答请求
type QueryInput struct {
	Question   string
	MemoryType string
	Domain     string
	Expert     string
	Client     string
}

// QueryResult 问答结果
type QueryResult struct {
	Answer         string            `json:"answer"`
	Citations      []engine.Citation `json:"citations,omitempty"`
	MemoryType     string            `json:"memory_type"`
	VectorStoreIDs []string          `json:"vector_store_ids,omitempty"`
}

// Gateway 问答网关
type Gateway struct {
	domains *memory.DomainService
	experts *memory.ExpertService
	stores  *memory.StoreRegistry
	engine  engine.Engine
}

// NewGateway 创建网关
func NewGateway(domains *memory.DomainService, experts *memory.ExpertService,
	stores *memory.StoreRegistry, eng engine.Engine) *Gateway {
	return &Gateway{domains: domains, experts: experts, stores: stores, engine: eng}
}

// Query 执行一次问答：定位检索范围、调用引擎、归一化回答
func (g *Gateway) Query(ctx context.Context, input QueryInput) (*QueryResult, error) {
	if input.Question == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "问题不能为空")
	}
	storeIDs, systemContext, err := g.resolveScope(ctx, input)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(input.MemoryType, "rejected").Inc()
		return nil, err
	}

	start := time.Now()
	raw, err := g.engine.Query(ctx, engine.QueryRequest{
		Question:       input.Question,
		SystemContext:  systemContext,
		VectorStoreIDs: storeIDs,
	})
	metrics.QueryDuration.WithLabelValues(input.MemoryType).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(input.MemoryType, "failed").Inc()
		return nil, err
	}
	metrics.QueriesTotal.WithLabelValues(input.MemoryType, "success").Inc()

	answer := engine.Normalize(raw)
	logger.Info("问答完成",
		zap.String("memory_type", input.MemoryType),
		zap.Strings("vector_store_ids", storeIDs),
		zap.Duration("elapsed", time.Since(start)))
	return &QueryResult{
		Answer:         answer.Answer,
		Citations:      answer.Citations,
		MemoryType:     input.MemoryType,
		VectorStoreIDs: storeIDs,
	}, nil
}

// resolveScope 按记忆类型定位向量库与系统上下文
func (g *Gateway) resolveScope(ctx context.Context, input QueryInput) ([]string, string, error) {
	switch input.MemoryType {
	case MemoryLLM:
		return nil, g.expertContext(ctx, input.Expert), nil

	case MemoryDomain:
		domainName := input.Domain
		if domainName == "" {
			if input.Expert == "" {
				return nil, "", common.NewBusinessError(common.CodeInvalidRequest,
					"领域问答必须提供领域名或专家名")
			}
			expert, err := g.experts.GetExpert(ctx, input.Expert)
			if err != nil {
				return nil, "", err
			}
			if expert.Domain == "" {
				return nil, "", common.NewBusinessErrorf(common.CodeMissingDomainAssociation,
					"专家 %s 未关联任何领域", input.Expert)
			}
			domainName = expert.Domain
		}
		domain, err := g.domains.GetDomain(ctx, domainName)
		if err != nil {
			return nil, "", err
		}
		if domain.DefaultVectorID == "" {
			return nil, "", common.NewBusinessErrorf(common.CodeNoDomainStore,
				"领域 %s 尚未建立默认向量库", domainName)
		}
		return []string{domain.DefaultVectorID}, g.expertContext(ctx, input.Expert), nil

	case MemoryExpert:
		if input.Expert == "" {
			return nil, "", common.NewBusinessError(common.CodeInvalidRequest, "专家问答必须提供专家名")
		}
		expert, err := g.experts.GetExpert(ctx, input.Expert)
		if err != nil {
			return nil, "", err
		}
		if expert.PreferredVectorID == "" {
			return nil, "", common.NewBusinessErrorf(common.CodeNoExpertStore,
				"专家 %s 尚未接入任何向量库", input.Expert)
		}
		return []string{expert.PreferredVectorID}, expert.Context, nil

	case MemoryClient:
		if input.Expert == "" {
			return nil, "", common.NewBusinessError(common.CodeInvalidRequest, "客户问答必须提供专家名")
		}
		if input.Client == "" {
			return nil, "", common.NewBusinessError(common.CodeMissingClientName, "")
		}
		expert, err := g.experts.GetExpert(ctx, input.Expert)
		if err != nil {
			return nil, "", err
		}
		record, err := g.stores.Find(ctx, memory.OwnerTuple{
			Domain: expert.Domain,
			Expert: input.Expert,
			Client: input.Client,
		})
		if err != nil {
			return nil, "", err
		}
		if record == nil {
			return nil, "", common.NewBusinessErrorf(common.CodeNoClientStore,
				"专家 %s 名下没有客户 %s 的记忆库", input.Expert, input.Client)
		}
		return []string{record.VectorID}, expert.Context, nil

	default:
		return nil, "", common.NewBusinessErrorf(common.CodeInvalidMemoryType,
			"不支持的记忆类型 %s", input.MemoryType)
	}
}

// expertContext 取专家上下文，专家未指定或不存在时返回空
func (g *Gateway) expertContext(ctx context.Context, expertName string) string {
	if expertName == "" {
		return ""
	}
	expert, err := g.experts.GetExpert(ctx, expertName)
	if err != nil {
		return ""
	}
	return expert.Context
}
