package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/authservice/internal/api"
	"github.com/mcoot/authservice/internal/config"
	"github.com/mcoot/authservice/internal/dependencies/random"
	"github.com/mcoot/authservice/internal/factory"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Bootstrap logger until the configured one is available
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		return 1
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	configured, err := cfg.Log.NewLogger(os.Stdout)
	if err != nil {
		logger.Error("invalid log configuration", slog.String("error", err.Error()))
		return 1
	}
	logger = configured
	slog.SetDefault(logger)

	generated, err := cfg.EnsureSecret(random.New())
	if err != nil {
		logger.Error("no signing secret", slog.String("error", err.Error()))
		return 1
	}
	if generated {
		logger.Warn("JWT_SECRET not set; using an ephemeral secret, tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create application factory
	app, err := factory.New(ctx, factory.ConfigFrom(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("storage close failed", slog.String("error", err.Error()))
		}
	}()

	if err := app.BootstrapAdmin(ctx, cfg.Admin); err != nil {
		logger.Error("failed to bootstrap admin", slog.String("error", err.Error()))
		return 1
	}

	// Create API router
	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:             logger,
		AccountService:     app.AccountService,
		Tokens:             app.Tokens,
		Accounts:           app.Storage,
		ExposeErrorDetails: cfg.IsDevelopment(),
	})

	mux := http.NewServeMux()
	mux.Handle("/", apiRouter)

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	server := api.NewServer(mux, serverConfig, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("environment", cfg.Environment),
		slog.String("storage", cfg.Storage.Type),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}
