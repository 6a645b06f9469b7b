package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"iprisk-backend/internal/pipeline"
	"iprisk-backend/internal/services/health"
	"iprisk-backend/internal/shared/config"
	"iprisk-backend/internal/shared/metrics"
	"iprisk-backend/internal/shared/server/middleware"
	"iprisk-backend/internal/shared/server/respond"
	"iprisk-backend/internal/users"
)

const serviceName = "iprisk-api"

// RouterDeps carries the handlers the router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	PipelineHandler *pipeline.Handler
	UsersHandler    *users.Handler
	Health          *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		otelgin.Middleware(serviceName),
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil)
	}
	healthHandler := func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	}
	r.GET("/healthz", healthHandler)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler)

	authed := api.Group("")
	authed.Use(
		middleware.Identity(),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: 2, Burst: 10},
				"SUBMIT":  {Rate: 0.2, Burst: 3},
				"POLLING": {Rate: 5, Burst: 20},
			},
		}),
	)
	if deps.PipelineHandler != nil {
		deps.PipelineHandler.RegisterRoutes(authed)
	}
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(authed)
	}

	internal := r.Group("/internal")
	internal.Use(middleware.InternalOnly(deps.Config.InternalAPIToken))
	if deps.PipelineHandler != nil {
		deps.PipelineHandler.RegisterInternalRoutes(internal)
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	switch {
	case c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/analysis-runs":
		return "SUBMIT"
	case c.Request.Method == http.MethodGet:
		return "POLLING"
	default:
		return "DEFAULT"
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
