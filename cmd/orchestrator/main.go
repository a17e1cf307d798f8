package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kibikalo/dash-streaming-microservice/internal/cache"
	"github.com/kibikalo/dash-streaming-microservice/internal/config"
	"github.com/kibikalo/dash-streaming-microservice/internal/database"
	"github.com/kibikalo/dash-streaming-microservice/internal/logging"
	"github.com/kibikalo/dash-streaming-microservice/internal/metrics"
	"github.com/kibikalo/dash-streaming-microservice/internal/orchestrator"
	"github.com/kibikalo/dash-streaming-microservice/internal/queue"
	"github.com/kibikalo/dash-streaming-microservice/internal/tracing"
)

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
	logger = logger.WithService("orchestrator")

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("audio-orchestrator", cfg.Tracing.Endpoint)
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

	orch := orchestrator.New(repo, q, viewCache, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down orchestrator gracefully...")
		cancel()
	}()

	metricsSrv := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsSrv.Start(); err != nil {
			logger.Errorf("Metrics server error: %v", err)
		}
	}()

	consumers := map[string]func(context.Context, []byte) error{
		queue.TopicAudioUploaded:     orch.HandleAudioUploaded,
		queue.TopicEncodingStarted:   orch.HandleEncodingStarted,
		queue.TopicEncodingSucceeded: orch.HandleEncodingSucceeded,
		queue.TopicEncodingFailed:    orch.HandleEncodingFailed,
	}
	for topic, handler := range consumers {
		handler := handler
		if err := q.Consume(ctx, topic, func(body []byte) error {
			return handler(ctx, body)
		}); err != nil {
			logger.Fatalf("Failed to consume %s: %v", topic, err)
		}
	}

	// Export queue depths while running
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, topic := range queue.Topics {
					if depth, err := q.Depth(topic); err == nil {
						metrics.QueueDepth.WithLabelValues(topic).Set(float64(depth))
					}
				}
			}
		}
	}()

	logger.Info("Orchestrator started, waiting for events...")
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	logger.Info("Orchestrator stopped")
}
