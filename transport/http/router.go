package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/layer-3/tollgate/adapters/credentials"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/metrics"
	"github.com/layer-3/tollgate/ports"
	"github.com/layer-3/tollgate/service"
)

// Options configures the router
type Options struct {
	Whitelist   *core.Whitelist
	Credentials ports.CredentialVerifier
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics

	// Gatherer backs GET /metrics when set
	Gatherer prometheus.Gatherer

	// Mount registers the application routes under /api, behind the gate
	Mount func(api *gin.RouterGroup)
}

// SetupRouter sets up the Gin router
func SetupRouter(tokens *service.TokenService, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// The gate is global so unmatched routes are gated too
	router.Use(AuthGate(opts.Whitelist, tokens, opts.Logger, opts.Metrics))

	verifier := opts.Credentials
	if verifier == nil {
		verifier = credentials.NewStaticVerifier(nil)
	}
	handlers := NewAuthHandlers(tokens, verifier, opts.Logger)

	router.GET("/healthz", handlers.Health)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.POST("/login", handlers.Login)
		api.POST("/logout", handlers.Logout)
		api.GET("/me", handlers.Me)
	}

	if opts.Mount != nil {
		opts.Mount(api)
	}

	return router
}
