package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kibikalo/dash-streaming-microservice/internal/config"
	"github.com/kibikalo/dash-streaming-microservice/internal/logging"
	"github.com/kibikalo/dash-streaming-microservice/internal/metrics"
	"github.com/kibikalo/dash-streaming-microservice/internal/queue"
	"github.com/kibikalo/dash-streaming-microservice/internal/storage"
	"github.com/kibikalo/dash-streaming-microservice/internal/tracing"
	"github.com/kibikalo/dash-streaming-microservice/internal/transcoder"
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
	logger = logger.WithService("worker")

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer("audio-worker", cfg.Tracing.Endpoint)
		if err != nil {
			logger.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer closer.Close()
	}

	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	worker := transcoder.NewWorker(cfg.Encoding, stor, q, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	metricsSrv := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsSrv.Start(); err != nil {
			logger.Errorf("Metrics server error: %v", err)
		}
	}()

	if err := q.Consume(ctx, queue.TopicEncodingRequested, func(body []byte) error {
		return worker.Handle(ctx, body)
	}); err != nil {
		logger.Fatalf("Failed to consume encoding requests: %v", err)
	}

	logger.Info("Worker started, waiting for encoding requests...")
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	logger.Info("Worker stopped")
}
