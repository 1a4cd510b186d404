package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/aliasmail/aliasmaild/internal/accesskey"
	"github.com/aliasmail/aliasmaild/internal/accounts"
	"github.com/aliasmail/aliasmaild/internal/api"
	"github.com/aliasmail/aliasmaild/internal/config"
	"github.com/aliasmail/aliasmaild/internal/credentials"
	"github.com/aliasmail/aliasmaild/internal/database"
	"github.com/aliasmail/aliasmaild/internal/mailbox"
	"github.com/aliasmail/aliasmaild/internal/platform"
	"github.com/aliasmail/aliasmaild/internal/retrieval"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting alias mail retrieval service")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	// Create components
	credManager := credentials.NewManager(db, credentials.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}, logger)

	transports := &mailbox.Factory{
		DialTimeout: cfg.IMAPDialTimeout,
		ListLimit:   cfg.ListLimit,
		Logger:      logger,
	}

	resolver := retrieval.NewResolver(db, db, cfg.OAuthAliasDomains)
	matcher := retrieval.NewMatcher(platform.Default())
	orchestrator := retrieval.NewOrchestrator(resolver, credManager, matcher, transports, cfg.RecencyWindow, logger)

	accountsSvc := accounts.NewService(db, logger)
	keysSvc := accesskey.NewService(db, logger)

	server := api.NewServer(orchestrator, accountsSvc, keysSvc, credManager, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	// Setup graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received shutdown signal", "signal", sig)
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
