package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-status-relay/config"
	httpHandler "payment-status-relay/internal/adapter/http/handler"
	"payment-status-relay/internal/adapter/provider/forumpay"
	pgStorage "payment-status-relay/internal/adapter/storage/postgres"
	redisStorage "payment-status-relay/internal/adapter/storage/redis"
	"payment-status-relay/internal/core/ports"
	"payment-status-relay/internal/service"
	"payment-status-relay/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Payment Status Relay")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	eventRepo := pgStorage.NewWebhookEventRepo(pool)

	// Initialize provider client with a bounded per-call timeout
	providerClient := forumpay.NewClient(cfg.Provider, &http.Client{Timeout: cfg.Provider.Timeout}, log)

	// Initialize core services
	reconcileSvc := service.NewReconcileService(
		paymentRepo,
		eventRepo,
		providerClient,
		cfg.Webhook.Token,
		cfg.Sweep.MinAge,
		cfg.Sweep.BatchLimit,
		log,
	)
	reportingSvc := service.NewReportingService(paymentRepo, eventRepo)

	// Initialize Redis-backed stores
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	sweepLease := redisStorage.NewSweepLease(rdb)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Background sweep loop
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	if cfg.Sweep.Enabled {
		sweeper := service.NewSweeper(reconcileSvc, sweepLease, cfg.Sweep.Interval, cfg.Sweep.LeaseTTL, log)
		go sweeper.Run(sweepCtx)
	} else {
		log.Warn().Msg("periodic sweep disabled by config")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ReconcileSvc:   reconcileSvc,
		ReportingSvc:   reportingSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Admin:          cfg.Admin,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	cancelSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
