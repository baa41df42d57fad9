package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/api"
	"dev/bravebird/pagecheck/pkg/config"
	"dev/bravebird/pagecheck/pkg/database"
	"dev/bravebird/pagecheck/pkg/logging"
	"dev/bravebird/pagecheck/pkg/scenario"
)

func main() {
	configPath := flag.String("config", "", "config file (default ./pagecheck.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting pagecheck API server")

	// Initialize database
	var store api.Store
	db, err := database.New(cfg.MySQL.DSN)
	if err != nil {
		logger.Warn("Failed to connect to database, running without persistence", zap.Error(err))
	} else {
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		store = db
	}

	// Initialize Temporal client
	temporalClient, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.Host,
	})
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer temporalClient.Close()

	scenarios, err := scenario.LoadDir(cfg.Scenarios.Dir)
	if err != nil {
		logger.Fatal("Failed to load scenarios", zap.String("dir", cfg.Scenarios.Dir), zap.Error(err))
	}
	logger.Info("Loaded scenarios", zap.Int("count", len(scenarios)))

	handlers := api.NewHandlers(store, temporalClient, scenarios, api.Options{
		TaskQueue:     cfg.Temporal.TaskQueue,
		Backend:       cfg.Browser.Backend,
		ScreenshotDir: cfg.Screenshots.Dir,
		Logger:        logger,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      handlers.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("API server listening", zap.String("port", cfg.API.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
