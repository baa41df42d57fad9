package main

import (
	"context"
	"flag"
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/config"
	"dev/bravebird/pagecheck/pkg/database"
	"dev/bravebird/pagecheck/pkg/logging"
	"dev/bravebird/pagecheck/pkg/session"
	"dev/bravebird/pagecheck/pkg/temporal/activities"
	"dev/bravebird/pagecheck/pkg/temporal/workflows"
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

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.Host,
	})
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	// Results are recorded when MySQL is reachable
	var store activities.RunStore
	db, err := database.New(cfg.MySQL.DSN)
	if err != nil {
		logger.Warn("Running without database persistence", zap.Error(err))
	} else {
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		store = db
	}

	pool := session.NewPool(cfg.SessionConfig(), logger)
	defer pool.CloseAll()

	acts := activities.NewActivities(pool, store, cfg.Screenshots.Dir, logger, cfg.VerifyOptions()...)
	acts.TodoURL = cfg.Todo.URL
	acts.StorageKey = cfg.Todo.StorageKey

	// Sessions are held in this process; one worker per task queue keeps
	// every step of a scenario on the same pool.
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     5,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(workflows.ScenarioWorkflow)
	w.RegisterActivity(acts)

	logger.Info("Starting Temporal worker",
		zap.String("taskQueue", cfg.Temporal.TaskQueue),
		zap.String("temporalHost", cfg.Temporal.Host),
		zap.String("backend", cfg.Browser.Backend))

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("Worker failed", zap.Error(err))
	}
}
