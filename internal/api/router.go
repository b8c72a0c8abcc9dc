// Package api exposes the HTTP surface of the movies service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karlosatvar19/movies-app/internal/config"
	"github.com/karlosatvar19/movies-app/internal/domain"
	"github.com/karlosatvar19/movies-app/internal/logger"
	"github.com/karlosatvar19/movies-app/internal/sse"
	"github.com/karlosatvar19/movies-app/internal/telemetry"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
	serviceVersion       = "1.0.0"
)

// MovieReader serves the catalog read side.
type MovieReader interface {
	FindByID(ctx context.Context, id string) (*domain.Movie, error)
	FindAll(ctx context.Context, skip, limit int) ([]domain.Movie, error)
	Search(ctx context.Context, query string, skip, limit int) ([]domain.Movie, error)
	Count(ctx context.Context) (int, error)
	CountSearch(ctx context.Context, query string) (int, error)
	Ping(ctx context.Context) error
}

// JobController starts fetch jobs.
type JobController interface {
	Normalize(searchTerm, year string) (string, string)
	StartJob(ctx context.Context, searchTerm, year string) string
}

// JobRegistry lists and cancels active jobs.
type JobRegistry interface {
	ActiveJobs() []string
	Cancel(jobID string) bool
}

// ResponseCache is the read-side response cache.
type ResponseCache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Router holds the API dependencies.
type Router struct {
	cfg       *config.Config
	logger    logger.Logger
	movies    MovieReader
	cache     ResponseCache
	jobs      JobController
	registry  JobRegistry
	broker    *sse.Broker
	telemetry *telemetry.Provider
}

// NewRouter creates a new API router.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	movies MovieReader,
	respCache ResponseCache,
	jobs JobController,
	registry JobRegistry,
	broker *sse.Broker,
	tel *telemetry.Provider,
) *Router {
	return &Router{
		cfg:       cfg,
		logger:    log,
		movies:    movies,
		cache:     respCache,
		jobs:      jobs,
		registry:  registry,
		broker:    broker,
		telemetry: tel,
	}
}

// SetupRoutes builds the gin engine with middleware and all routes.
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(r.cfg.Server.CORSOrigins))

	router.GET("/health", r.healthCheck)
	if r.telemetry != nil {
		router.GET("/metrics", gin.WrapH(r.telemetry.Handler()))
	}

	v1 := router.Group("/api/v1")
	movies := v1.Group("/movies")
	movies.GET("", r.listMovies)
	movies.GET("/search", r.searchMovies)
	movies.GET("/fetch/jobs", r.activeJobs)
	movies.POST("/fetch", r.startFetch)
	movies.POST("/fetch/cancel/:requestId", r.cancelFetch)
	movies.GET("/events", sse.Handler(r.broker, r.logger, sse.WithFetchFilter()))
	// Registered last so the static segments above win over :id.
	movies.GET("/:id", r.getMovie)

	return router
}

// healthCheck reports service, database and redis status.
func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "movies-app",
		"version": serviceVersion,
	}

	dbConnected := r.movies.Ping(ctx) == nil
	if !dbConnected {
		health["status"] = healthStatusDegraded
	}
	health["database"] = gin.H{"connected": dbConnected}

	redisConnected := r.cache != nil && r.cache.Ping(ctx) == nil
	if !redisConnected && health["status"] == healthStatusHealthy {
		health["status"] = healthStatusDegraded
	}
	health["redis"] = gin.H{"connected": redisConnected}

	c.JSON(http.StatusOK, health)
}
