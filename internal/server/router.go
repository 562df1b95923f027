package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/cleanup"
	"github.com/azhengyongqin/caseflow/internal/healthcheck"
	"github.com/azhengyongqin/caseflow/internal/middleware"
	"github.com/azhengyongqin/caseflow/internal/queue"
	"github.com/azhengyongqin/caseflow/internal/repository"
	"github.com/azhengyongqin/caseflow/internal/server/handler"
)

type Deps struct {
	Cases    repository.CaseStore
	Jobs     repository.JobStore
	Events   repository.AuditStore
	Recorder *audit.Recorder
	Queue    *queue.Client
	Signals  *cleanup.SignalHandler

	// JobTypes 允许通过 API 入队的作业类型，为空时不限制
	JobTypes []string

	// HealthChecker 健康检查器（可选）
	HealthChecker *healthcheck.HealthChecker

	Version string
}

// NewRouter 提供 Gin HTTP API
// @title caseflow API
// @version 1.0.0
// @description 病例流程作业队列与清理触发 API
// @BasePath /api/v1
// @schemes http https
func NewRouter(deps Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// 全局中间件
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.PrometheusMiddleware())
	r.Use(middleware.PayloadSizeLimit(middleware.MaxPayloadSize))
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())

	healthHandler := handler.NewHealthHandler(deps.HealthChecker, deps.Version)
	caseHandler := handler.NewCaseHandler(deps.Cases, deps.Events, deps.Recorder)
	jobHandler := handler.NewJobHandler(deps.Jobs, deps.Queue, deps.JobTypes)
	signalHandler := handler.NewSignalHandler(deps.Signals)

	// 健康检查路由
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	// Prometheus metrics 端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger API 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	{
		// Case 相关路由
		api.POST("/cases", caseHandler.CreateCase)
		api.GET("/cases/:case_id", middleware.ValidateCaseIDParam(), caseHandler.GetCase)
		api.GET("/cases/:case_id/events", middleware.ValidateCaseIDParam(), caseHandler.ListEvents)
		api.POST("/cases/:case_id/transition", middleware.ValidateCaseIDParam(), caseHandler.Transition)

		// Job 相关路由
		api.POST("/jobs", jobHandler.CreateJob)
		api.GET("/jobs", jobHandler.ListJobs)
		api.GET("/jobs/stats", jobHandler.GetStats)
		api.GET("/jobs/:job_id", middleware.ValidateJobIDParam(), jobHandler.GetJob)

		// Signal 相关路由
		api.POST("/signals", signalHandler.PostSignal)
	}

	return r
}
