package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"expertmemory/api/handlers/documents"
	"expertmemory/api/handlers/domains"
	"expertmemory/api/handlers/experts"
	"expertmemory/api/handlers/query"
	"expertmemory/api/handlers/stores"
)

// Handlers 路由依赖的全部处理器
type Handlers struct {
	Domains   *domains.Handler
	Experts   *experts.Handler
	Stores    *stores.Handler
	Documents *documents.Handler
	Query     *query.Handler
}

// RegisterRoutes 注册全部路由
func RegisterRoutes(router *gin.Engine, db *gorm.DB, h *Handlers) {
	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	{
		domainGroup := apiGroup.Group("/domains")
		{
			domainGroup.POST("", h.Domains.Create)
			domainGroup.GET("", h.Domains.List)
			domainGroup.GET("/:domain_name/vector_id", h.Domains.GetVectorID)
		}

		expertGroup := apiGroup.Group("/experts")
		{
			expertGroup.POST("", h.Experts.Create)
			expertGroup.GET("", h.Experts.List)
			expertGroup.GET("/:expert_name/vector_id", h.Experts.GetVectorID)
			expertGroup.GET("/:expert_name/clients", h.Experts.GetClients)
			expertGroup.GET("/:expert_name/context", h.Experts.GetContext)
			expertGroup.PUT("/context", h.Experts.UpdateContext)
		}

		vectorGroup := apiGroup.Group("/vectors")
		{
			vectorGroup.GET("/search", h.Stores.SearchStore)
			vectorGroup.GET("/expert/:expert_name/client/:client_name", h.Stores.GetClientVectorID)
			vectorGroup.POST("/expert-domain", h.Stores.AttachExpertDomain)
			vectorGroup.POST("/expert-domain/update", h.Stores.UpgradeExpertStore)
			vectorGroup.POST("/expert-client", h.Stores.EnsureClientStore)
			vectorGroup.POST("/domain/files", h.Stores.AddDomainFiles)
			vectorGroup.POST("/expert/files", h.Stores.AddExpertFiles)
			vectorGroup.POST("/stores", h.Stores.CreateStore)
			vectorGroup.POST("/update", h.Stores.UpdateContent)
			vectorGroup.DELETE("/expert", h.Stores.DeleteExpertStore)
			vectorGroup.DELETE("/memory", h.Stores.DeleteMemory)
		}

		apiGroup.GET("/documents", h.Documents.List)
		apiGroup.POST("/query", h.Query.Ask)
	}
}
