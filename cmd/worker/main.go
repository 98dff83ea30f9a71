package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/diviora/ingest/internal/config"
	"github.com/diviora/ingest/internal/domain"
	"github.com/diviora/ingest/internal/logger"
	"github.com/diviora/ingest/internal/queue"
	"github.com/diviora/ingest/internal/repository"
	"github.com/diviora/ingest/internal/storage"
	"github.com/diviora/ingest/internal/strategy"
	"github.com/diviora/ingest/internal/worker"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDefault().WithField(logger.FieldComponent, "worker")
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}

	sourceRepo := repository.NewDataSourceRepository(db)
	jobRepo := repository.NewJobRepository(db)
	processedRepo := repository.NewProcessedRowRepository(db)

	objectStorage, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}

	jobQueue := queue.NewRedisQueue(rdb, &cfg.Redis)

	tracker := strategy.NewStatusTracker(jobRepo)
	resolver := strategy.MapHostResolver(cfg.Ingest.HostOverrides)

	registry := strategy.NewRegistry()
	registry.Register(string(domain.SourceTypeCSV),
		strategy.NewCSVStrategy(objectStorage, processedRepo, tracker, cfg.Ingest.BatchSize))
	registry.Register(string(domain.SourceTypeSQL),
		strategy.NewSQLStrategy(sourceRepo, processedRepo, tracker, resolver, cfg.Ingest.BatchSize))

	dispatcher := worker.NewDispatcher(jobQueue, registry, &worker.Config{
		Workers:    cfg.Ingest.Workers,
		JobTimeout: cfg.Ingest.JobTimeout,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down worker...")
		cancel()
	}()

	dispatcher.Run(log.WithContext(ctx))

	log.Info("Worker exited")
}
