package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertmemory_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expertmemory_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 记忆体系指标
var (
	// StoresCreatedTotal 创建的向量库总数
	StoresCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertmemory_stores_created_total",
			Help: "向量库创建总数",
		},
		[]string{"owner"},
	)

	// DocumentsIngestedTotal 摄取的文档总数
	DocumentsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertmemory_documents_ingested_total",
			Help: "文档摄取总数",
		},
		[]string{"owner", "status"},
	)

	// QueriesTotal 查询总数（按记忆类型与结果）
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expertmemory_queries_total",
			Help: "查询总数",
		},
		[]string{"memory_type", "status"},
	)

	// QueryDuration 查询耗时（秒）
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "expertmemory_query_duration_seconds",
			Help:    "查询耗时分布",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"memory_type"},
	)
)
