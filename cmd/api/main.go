package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aimerfeng/StarReviews/internal/cache"
	"github.com/aimerfeng/StarReviews/internal/config"
	"github.com/aimerfeng/StarReviews/internal/events"
	"github.com/aimerfeng/StarReviews/internal/logging"
	"github.com/aimerfeng/StarReviews/internal/monitoring"
	"github.com/aimerfeng/StarReviews/internal/ratelimit"
	"github.com/aimerfeng/StarReviews/internal/review"
	"github.com/aimerfeng/StarReviews/internal/server"
	"github.com/aimerfeng/StarReviews/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logging
	logging.Setup(&cfg.Logging, cfg.Server.Env)

	log.Info().
		Str("env", cfg.Server.Env).
		Str("name", cfg.Server.Name).
		Str("storage", cfg.Storage.Backend).
		Msg("Starting review board API server")

	// Initialize Prometheus metrics
	monitoring.Init()
	log.Info().Msg("Prometheus metrics initialized")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	kv, closeStorage, err := storage.Open(startCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open review storage")
	}
	defer closeStorage()

	opts := review.Options{
		Key:           cfg.Storage.Key,
		DefaultAuthor: cfg.Reviews.DefaultAuthor,
		DateLayout:    cfg.Reviews.DateLayout,
		PersistSeeds:  cfg.Reviews.PersistSeeds,
	}
	if cfg.Reviews.Seed {
		opts.Seeds = review.DefaultSeeds
	}
	board := review.NewBoard(review.NewStore(kv, opts), review.MetricsRenderer)

	publisher, err := events.New(cfg.AMQP.URL, cfg.AMQP.Queue)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect review event publisher")
	}
	defer publisher.Close()
	board.AddNotifier(publisher)

	var guards []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		r, err := cache.NewFromURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis for rate limiting")
		}
		defer r.Close()
		guards = append(guards, ratelimit.New(r, &cfg.RateLimit).Middleware())
		log.Info().
			Int("limit", cfg.RateLimit.Limit).
			Int("window_seconds", cfg.RateLimit.WindowSeconds).
			Msg("Review rate limiting enabled")
	}

	view := board.Init(startCtx)
	log.Info().
		Int("reviews", view.Count).
		Str("average", view.AverageLabel).
		Msg("Review board loaded")

	// Create and start server
	srv := server.NewAPIServer(cfg, board, kv, guards...)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("url", cfg.Server.URL).
			Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().
		Str("signal", sig.String()).
		Msg("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
