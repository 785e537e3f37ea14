package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"model_settings/internal/config"
	"model_settings/internal/httpapi"
	"model_settings/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	deps, err := httpapi.NewDependencies(startCtx, cfg)
	cancel()
	if err != nil {
		logging.Fatalf("Failed to initialize dependencies: %v", err)
	}

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:        addr,
		Handler:     httpapi.NewHandler(cfg, deps),
		ReadTimeout: 30 * time.Second,
		// validation probes may take up to VALIDATION_TIMEOUT
		WriteTimeout: cfg.Validation.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logging.Infof("Provider settings service listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Infof("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logging.Errorf("Server forced to shutdown: %v", err)
	}

	if err := deps.Close(); err != nil {
		logging.Errorf("Failed to close dependencies: %v", err)
	}

	logging.Infof("Server exited")
}
