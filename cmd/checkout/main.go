package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/zarinpal-go/internal/adapters/handler"
	"github.com/DanielPopoola/zarinpal-go/internal/adapters/postgres"
	"github.com/DanielPopoola/zarinpal-go/internal/config"
	"github.com/DanielPopoola/zarinpal-go/internal/core/service"
	"github.com/DanielPopoola/zarinpal-go/internal/worker"
	"github.com/DanielPopoola/zarinpal-go/pkg/zarinpal"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting checkout service",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"sandbox", cfg.Gateway.Sandbox,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	paymentRepo := postgres.NewPaymentRepository(db)

	opts := []zarinpal.Option{
		zarinpal.WithTimeout(cfg.Gateway.Timeout),
		zarinpal.WithLogger(logger.With("component", "zarinpal")),
	}
	if cfg.Gateway.BaseURL != "" {
		opts = append(opts, zarinpal.WithBaseURL(cfg.Gateway.BaseURL))
	}
	gateway := zarinpal.NewClient(cfg.Gateway.SDK(), opts...)

	checkout := service.NewCheckoutService(paymentRepo, gateway, cfg.Gateway.CallbackURL, logger)

	router := handler.NewRouter(handler.NewPaymentHandler(checkout), logger, handler.RouterOptions{
		Timeout:        cfg.Server.ReadTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	reconciler := worker.NewReconciler(checkout, cfg.Worker.Interval, cfg.Worker.BatchSize, logger)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go reconciler.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
