package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wolfman30/cpr-booking-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/cpr-booking-platform/internal/config"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	logger := newLogger(cfg)
	logger.Info("starting cpr-booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"simplybook", cfg.SimplyBookConfigured(),
	)

	ctx := context.Background()
	app, err := bootstrap.NewApp(ctx, cfg, newRegistry(), logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: app.Handler,
		// Intake probes alternative days against the remote API, so writes
		// get more room than reads.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}
	logger.Info("server stopped")
}

func newLogger(cfg *appconfig.Config) *logging.Logger {
	format := cfg.LogFormat
	if cfg.IsDevelopment() && os.Getenv("LOG_FORMAT") == "" {
		format = "text"
	}
	return logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: format})
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
