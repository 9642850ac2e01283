package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"tradehook/internal/api"
	"tradehook/internal/config"
	"tradehook/internal/engine"
	"tradehook/internal/plugin"
	"tradehook/internal/plugin/alerts"
	"tradehook/internal/plugin/handlers"
	"tradehook/internal/store"
	"tradehook/internal/tradovate"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	deps := plugin.Deps{Config: cfg, Logger: logger}

	// The Tradovate session (and its Redis-backed token cache) comes up
	// before handler registration so the handler factory can see it.
	var session *tradovate.Session
	if slices.Contains(cfg.Handlers, "tradovate") {
		redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		logger.Info("connected to Redis")

		session = tradovate.NewSession(cfg.Tradovate, redisStore.TokenCache(), logger)
		if err := session.Start(ctx); err != nil {
			logger.Error("failed to authenticate with tradovate", "error", err)
			os.Exit(1)
		}
		defer session.Close()
		logger.Info("tradovate session ready", "state", session.State().String())

		deps.Orders = tradovate.NewOrders(tradovate.NewClient(session, logger))
	}

	// Optional dispatch journal.
	var journal engine.Journal
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		logger.Info("connected to PostgreSQL")

		if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")

		journal = pgStore
	}

	handlerRegistry := plugin.NewRegistry("handler", handlers.Factories(), logger)
	handlerRegistry.RegisterAll(deps, cfg.Handlers)
	if handlerRegistry.Len() == 0 {
		logger.Error("no handlers loaded, refusing to start", "configured", cfg.Handlers)
		os.Exit(1)
	}

	alertRegistry := plugin.NewRegistry("alert", alerts.Factories(), logger)
	alertRegistry.RegisterAll(deps, cfg.Alerts)

	eng := engine.New(handlerRegistry, alertRegistry, journal, logger)
	webhook := api.NewWebhookHandler(eng, logger)

	var sessionState func() string
	if session != nil {
		sessionState = func() string { return session.State().String() }
	}
	router := api.NewRouter(webhook, eng.HandlerCount, sessionState)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr, "handlers", handlerRegistry.Names())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
