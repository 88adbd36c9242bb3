package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dandantas/magpie/internal/cache"
	"github.com/dandantas/magpie/internal/config"
	"github.com/dandantas/magpie/internal/database"
	"github.com/dandantas/magpie/internal/fetcher"
	"github.com/dandantas/magpie/internal/handler"
	"github.com/dandantas/magpie/internal/queue"
	"github.com/dandantas/magpie/internal/service"
	"github.com/dandantas/magpie/internal/webhook"
	"github.com/dandantas/magpie/internal/worker"
	"github.com/dandantas/magpie/pkg/middleware"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	slog.Info("Starting Magpie Profile Service", "version", version)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to MongoDB
	db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	// Create indexes
	if err := database.CreateIndexes(ctx, db); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	// Connect to Redis (cache + job queue)
	rdb, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			slog.Error("Failed to close Redis client", "error", err)
		}
	}()

	// Initialize repositories
	requestRepo := database.NewRequestRepository(db)
	lockRepo := database.NewLockRepository(db)

	// Initialize profile cache; a nil client disables caching entirely
	var cacheClient goredis.UniversalClient
	if cfg.CacheEnabled {
		cacheClient = rdb
	} else {
		slog.Info("Profile caching is disabled by configuration")
	}
	profileCache := cache.New(cacheClient, cfg.CacheTTL)

	// Initialize fetcher and batch resolver
	profileFetcher := fetcher.New(cfg.ProfileSourceBaseURL, cfg.ProfileFetchTimeout)
	resolver := service.NewBatchResolver(profileCache, profileFetcher, requestRepo, cfg.BatchChunkSize, cfg.BatchDelay)

	// Initialize job queue and orchestrator
	jobQueue := queue.New(rdb, cfg.QueueName, cfg.QueueMaxAttempts, cfg.QueueBackoffBase)
	orchestrator := service.NewOrchestrator(requestRepo, jobQueue, resolver)

	// Initialize callback dispatcher and job consumer
	dispatcher := webhook.NewDispatcher(requestRepo, cfg.CallbackTimeout, cfg.CallbackRetryDelay)
	consumer := worker.NewConsumer(jobQueue, requestRepo, resolver, dispatcher, cfg.ConsumerWorkers)
	consumer.Start(ctx)

	// Initialize maintenance janitor
	janitor := worker.NewJanitor(jobQueue, requestRepo, lockRepo, cfg.JanitorStuckAge, cfg.JanitorLockTTL)
	if cfg.JanitorEnabled {
		janitor.Start(ctx)
	} else {
		slog.Info("Maintenance janitor is disabled by configuration")
	}

	// Initialize handlers
	requestHandler := handler.NewRequestHandler(orchestrator)
	healthHandler := handler.NewHealthHandler(db, rdb, version)

	// Create CORS config
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	// Create router
	router := handler.NewRouter(requestHandler, healthHandler, corsConfig)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server first so no new work is accepted
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Stop the janitor and drain in-flight jobs
	if cfg.JanitorEnabled {
		slog.Info("Stopping maintenance janitor...")
		janitor.Stop(shutdownCtx)
	}

	slog.Info("Stopping job consumer...")
	consumer.Stop()

	slog.Info("Magpie Profile Service stopped")
}
