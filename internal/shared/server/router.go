package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"markupcheck-backend/internal/analyses"
	"markupcheck-backend/internal/services/health"
	"markupcheck-backend/internal/shared/config"
	"markupcheck-backend/internal/shared/metrics"
	"markupcheck-backend/internal/shared/server/middleware"
	"markupcheck-backend/internal/shared/server/respond"
)

// Rate limit groups.
const (
	GroupDefault = "DEFAULT"
	GroupAnalyze = "ANALYZE"
	GroupProxy   = "PROXY"
	GroupPolling = "POLLING"
)

// RouterDeps are the handlers and services mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	Health          *health.Service
	RateLimiter     *middleware.RateLimiter
	RateLimits      map[string]middleware.RateLimitRule
}

// DefaultRateLimits are per-caller token buckets for each route group.
func DefaultRateLimits() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		GroupDefault: {Rate: 5, Burst: 20},
		GroupAnalyze: {Rate: 2, Burst: 10},
		GroupProxy:   {Rate: 1, Burst: 5},
		GroupPolling: {Rate: 10, Burst: 30},
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	rules := deps.RateLimits
	if rules == nil {
		rules = DefaultRateLimits()
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		payload, ok := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, payload)
	})

	limited := api.Group("")
	limited.Use(
		middleware.Identity(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rules,
			DefaultGroup: GroupDefault,
			GroupFor:     rateLimitGroup,
			Limiter:      deps.RateLimiter,
		}),
	)
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(limited)
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})

	return r
}

func rateLimitGroup(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case path == "/api/v1/proxy":
		return GroupProxy
	case strings.HasPrefix(path, "/api/v1/analyze"):
		return GroupAnalyze
	case c.Request.Method == http.MethodPost && path == "/api/v1/analyses":
		return GroupAnalyze
	case c.Request.Method == http.MethodGet && strings.HasPrefix(path, "/api/v1/analyses/"):
		return GroupPolling
	default:
		return GroupDefault
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
