package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/kibikalo/dash-streaming-microservice/internal/cache"
	"github.com/kibikalo/dash-streaming-microservice/internal/config"
	"github.com/kibikalo/dash-streaming-microservice/internal/database"
	"github.com/kibikalo/dash-streaming-microservice/internal/ingest"
	"github.com/kibikalo/dash-streaming-microservice/internal/logging"
	"github.com/kibikalo/dash-streaming-microservice/internal/metrics"
	"github.com/kibikalo/dash-streaming-microservice/internal/middleware"
	"github.com/kibikalo/dash-streaming-microservice/internal/queue"
	"github.com/kibikalo/dash-streaming-microservice/internal/storage"
	"github.com/kibikalo/dash-streaming-microservice/internal/tracing"
)

// API bundles the front door and the status query surface.
type API struct {
	repo    *database.Repository
	storage *storage.Storage
	cache   *cache.Cache
	ingest  *ingest.Service
	logger  *logging.Logger
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger = logger.WithService("api")

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("audio-api", cfg.Tracing.Endpoint)
		if err != nil {
			logger.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer closer.Close()
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	viewCache, err := cache.New(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer viewCache.Close()

	api := &API{
		repo:    repo,
		storage: stor,
		cache:   viewCache,
		ingest:  ingest.NewService(ingest.NewValidator(cfg.Upload), stor, q, logger),
		logger:  logger,
	}

	metricsSrv := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsSrv.Start(); err != nil {
			logger.Errorf("Metrics server error: %v", err)
		}
	}()

	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}
	metricsSrv.Shutdown(ctx)

	logger.Info("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	router.GET("/health", api.healthCheck)
	router.GET("/status/:audioId", api.getStatus)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/audio/upload", api.uploadAudio)
		v1.GET("/audio", api.listAudio)
	}

	return router
}
