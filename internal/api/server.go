// Package api exposes the gennotes service over HTTP with gin.
package api

import (
	"net/http"

	"gennotes/internal/core"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server holds the handler dependencies.
type Server struct {
	svc      *core.Service
	logger   *zap.Logger
	tokens   TokenResolver
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokens sets the bearer token resolver. Without one every bearer token is rejected.
func WithTokens(tokens TokenResolver) Option {
	return func(s *Server) { s.tokens = tokens }
}

// WithMetrics exposes the gatherer on /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = gatherer }
}

// NewServer constructs a Server around svc.
func NewServer(svc *core.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with middleware and routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(s.logger), BearerAuth(s.tokens))

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v := router.Group("/api")
	{
		v.GET("/current-user", s.currentUser)

		variants := v.Group("/variant")
		{
			variants.GET("", s.listVariants)
			variants.POST("", s.createVariant)
			variants.GET("/:lookup", s.getVariant)
			variants.PUT("/:lookup", s.updateVariant(false))
			variants.PATCH("/:lookup", s.updateVariant(true))
			variants.GET("/:lookup/history", s.variantHistory)
		}

		relations := v.Group("/relation")
		{
			relations.GET("", s.listRelations)
			relations.POST("", s.createRelation)
			relations.GET("/:id", s.getRelation)
			relations.PUT("/:id", s.updateRelation(false))
			relations.PATCH("/:id", s.updateRelation(true))
			relations.DELETE("/:id", s.deleteRelation)
			relations.GET("/:id/history", s.relationHistory)
		}
	}
	return router
}
