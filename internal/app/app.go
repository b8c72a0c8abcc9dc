// Package app provides the application lifecycle for the movies service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/karlosatvar19/movies-app/internal/api"
	"github.com/karlosatvar19/movies-app/internal/cache"
	"github.com/karlosatvar19/movies-app/internal/config"
	"github.com/karlosatvar19/movies-app/internal/database"
	"github.com/karlosatvar19/movies-app/internal/fetch"
	"github.com/karlosatvar19/movies-app/internal/jobs"
	"github.com/karlosatvar19/movies-app/internal/logger"
	"github.com/karlosatvar19/movies-app/internal/omdb"
	"github.com/karlosatvar19/movies-app/internal/sse"
	"github.com/karlosatvar19/movies-app/internal/telemetry"
)

// DefaultShutdownTimeout bounds graceful HTTP shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// App holds the assembled service and its dependencies.
type App struct {
	config      *config.Config
	logger      logger.Logger
	db          *sqlx.DB
	redisClient *redis.Client
	broker      *sse.Broker
	registry    *jobs.Registry
	httpServer  *http.Server
	version     string
}

// Options configures App creation.
type Options struct {
	ConfigPath string
	Version    string
}

// New loads configuration and wires every component. Nothing is serving
// yet; call Run.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log = log.With(
		logger.String("service", "movies-app"),
		logger.String("version", opts.Version),
	)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err = database.RunMigrations(db, cfg.Database.MigrationsPath, log); err != nil {
		_ = db.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cache.NewClient(cfg.Redis)
	if err != nil {
		_ = db.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	tel := telemetry.NewProvider()
	broker := sse.NewBroker(log)
	registry := jobs.NewRegistry(log)

	repo := database.NewMovieRepository(db)
	respCache := cache.New(redisClient, log)
	catalog := omdb.NewClient(cfg.Omdb, log, tel)
	gateway := fetch.NewGateway(broker, log)

	orchestrator := fetch.NewOrchestrator(
		catalog, repo, registry, gateway, respCache, tel, log, cfg.Fetch,
	)

	router := api.NewRouter(cfg, log, repo, respCache, orchestrator, registry, broker, tel)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		config:      cfg,
		logger:      log,
		db:          db,
		redisClient: redisClient,
		broker:      broker,
		registry:    registry,
		httpServer:  httpServer,
		version:     opts.Version,
	}, nil
}

// Run starts the SSE broker and HTTP server and blocks until a shutdown
// signal arrives or the server fails.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.broker.Start(runCtx)
	defer a.broker.Stop()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening",
			logger.String("address", a.config.Server.Address),
			logger.Bool("debug", a.config.Debug),
		)
		serverErr <- a.httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down gracefully", logger.String("signal", sig.String()))
		a.shutdownHTTPServer()
		return nil
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Server error", logger.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
		a.shutdownHTTPServer()
		return ctx.Err()
	}
}

func (a *App) shutdownHTTPServer() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown error", logger.Error(err))
		return
	}
	a.logger.Info("HTTP server stopped")
}

// Close releases connections. Safe to call after Run returns.
func (a *App) Close() error {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", logger.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", logger.Error(err))
		}
	}
	return a.logger.Sync()
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}
