package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/namanjain27/EchoPilot/internal/app"
	"github.com/namanjain27/EchoPilot/internal/config"
	"github.com/namanjain27/EchoPilot/internal/logger"
	handler "github.com/namanjain27/EchoPilot/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logr.Sync()

	logr.Info("starting support engine",
		"http_port", cfg.HTTPPort,
		"internal_port", cfg.InternalPort,
		"database", cfg.DatabaseURL,
		"mock_mode", cfg.MockMode,
		"jira_enabled", cfg.JiraEnabled(),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.Build(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to build application", "error", err)
	}

	go a.Service.RunSessionSweepMonitor(ctx)

	externalServer := handler.NewExternalServer(a.Service, cfg, logr)
	internalServer := handler.NewInternalServer(a.Service)

	// Start external server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := externalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logr.Fatal("failed to start external server", "error", err)
		}
	}()

	// Start internal server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.InternalPort)
		if err := internalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			logr.Fatal("failed to start internal server", "error", err)
		}
	}()

	logr.Info("servers started", "external", cfg.HTTPPort, "internal", cfg.InternalPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down support engine")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		logr.Warn("failed to shutdown external server gracefully", "error", err)
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		logr.Warn("failed to shutdown internal server gracefully", "error", err)
	}

	// Live sessions are archived so their summaries survive the restart.
	if n := a.Service.ArchiveAll(shutdownCtx); n > 0 {
		logr.Info("archived live sessions", "count", n)
	}

	if err := a.Close(); err != nil {
		logr.Warn("failed to release resources", "error", err)
	}
	logr.Info("support engine stopped")
}
