package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/healthcare-records/internal/handler"
	"github.com/jwalitptl/healthcare-records/internal/handler/health"
	"github.com/jwalitptl/healthcare-records/internal/handler/prometheus"
	"github.com/jwalitptl/healthcare-records/internal/handler/records"
	"github.com/jwalitptl/healthcare-records/internal/handler/ui"
	"github.com/jwalitptl/healthcare-records/internal/middleware"
)

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	rateLimiter *middleware.RateLimiter
	healthH     *health.Handler
	metricsH    *prometheus.Handler
	recordsH    *records.Handler
	uiH         *ui.Handler
}

type RouterConfig struct {
	Mode      string
	RateLimit middleware.RateLimiterConfig
	CORS      middleware.CORSConfig
	Security  middleware.SecurityConfig
	SizeLimit middleware.SizeLimitConfig
}

// DefaultRouterConfig has rate limiting disabled.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Mode:      gin.ReleaseMode,
		CORS:      middleware.DefaultCORSConfig(),
		Security:  middleware.DefaultSecurityConfig(),
		SizeLimit: middleware.DefaultSizeLimitConfig(),
	}
}

func NewRouter(
	logger *zerolog.Logger,
	auth *middleware.AuthMiddleware,
	session handler.Session,
	transactions handler.TransactionLookup,
	metricsH *prometheus.Handler,
	config RouterConfig,
) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	tmpl, err := ui.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}

	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)

	r := &Router{
		engine:      engine,
		auth:        auth,
		rateLimiter: middleware.NewRateLimiter(config.RateLimit),
		healthH:     health.NewHandler(session),
		metricsH:    metricsH,
		recordsH:    records.NewHandler(session, transactions),
		uiH:         ui.NewHandler(session, logger),
	}

	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.ErrorHandler(logger),
		metricsH.Middleware(),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORS),
		middleware.SizeLimit(config.SizeLimit),
		r.rateLimiter.RateLimit(),
	)

	return r, nil
}

func (r *Router) Setup() {
	root := &r.engine.RouterGroup

	r.healthH.RegisterRoutes(root)
	root.GET("/metrics", r.metricsH.Handler())

	api := r.engine.Group("/api/v1")
	r.recordsH.RegisterRoutes(api, r.auth.Authenticate())

	// Browser forms cannot carry a bearer token, so with auth enabled the
	// page's write forms answer 401 and only the JSON API can write.
	r.uiH.RegisterRoutes(root, r.auth.Authenticate())
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// RateLimiter is exposed so the caller can run its cleanup loop.
func (r *Router) RateLimiter() *middleware.RateLimiter {
	return r.rateLimiter
}
