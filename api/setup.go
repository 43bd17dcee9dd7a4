package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"expertmemory/api/handlers/documents"
	"expertmemory/api/handlers/domains"
	"expertmemory/api/handlers/experts"
	"expertmemory/api/handlers/query"
	"expertmemory/api/handlers/stores"
	"expertmemory/internal/config"
	"expertmemory/internal/engine"
	"expertmemory/internal/gateway"
	"expertmemory/internal/ingest"
	"expertmemory/internal/memory"
	"expertmemory/internal/metrics"
)

// SetupRouter 设置并返回 Gin 路由
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	eng := engine.NewOpenAIEngine(engine.OpenAIConfig{
		APIKey:           cfg.OpenAI.APIKey,
		BaseURL:          cfg.OpenAI.BaseURL,
		OrgID:            cfg.OpenAI.OrgID,
		Model:            cfg.OpenAI.Model,
		MaxSearchResults: cfg.Query.MaxSearchResults,
		PollInterval:     time.Duration(cfg.Query.RunPollIntervalMs) * time.Millisecond,
		RunTimeout:       time.Duration(cfg.Query.RunTimeoutSeconds) * time.Second,
	})
	return SetupRouterWithEngine(db, cfg, eng)
}

// SetupRouterWithEngine 以指定引擎组装路由，测试时可注入引擎桩
func SetupRouterWithEngine(db *gorm.DB, cfg *config.Config, eng engine.Engine) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		RequestID(),
		RequestLogger(),
		CORS(),
		metrics.PrometheusMiddleware(),
	)

	registry := memory.NewStoreRegistry(db)
	resolver := memory.NewStoreResolver(db, registry, eng)
	domainService := memory.NewDomainService(db, eng)
	expertService := memory.NewExpertService(db, resolver)
	documentService := memory.NewDocumentService(db)
	fetcher := ingest.NewFetcher(time.Duration(cfg.Ingest.DownloadTimeoutSeconds) * time.Second)
	ingestor := ingest.NewIngestor(registry, documentService, fetcher, eng)
	gw := gateway.NewGateway(domainService, expertService, registry, eng)

	RegisterRoutes(router, db, &Handlers{
		Domains:   domains.NewHandler(domainService),
		Experts:   experts.NewHandler(expertService),
		Stores:    stores.NewHandler(resolver, ingestor, expertService, eng),
		Documents: documents.NewHandler(documentService),
		Query:     query.NewHandler(gw),
	})
	return router
}
