package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xtradermorph/traders-journal-sub000/internal/achievement"
	"github.com/xtradermorph/traders-journal-sub000/internal/api"
	"github.com/xtradermorph/traders-journal-sub000/internal/config"
	"github.com/xtradermorph/traders-journal-sub000/internal/database"
	"github.com/xtradermorph/traders-journal-sub000/internal/logger"
	"github.com/xtradermorph/traders-journal-sub000/internal/metrics"
	"github.com/xtradermorph/traders-journal-sub000/internal/notify"
	"github.com/xtradermorph/traders-journal-sub000/internal/scheduler"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")
	store := database.NewStore(db)

	var notifier notify.Notifier
	if cfg.Notifier.Enabled {
		notifier = notify.NewWebhookNotifier(&cfg.Notifier, log)
		log.Info("Achievement notifications enabled", zap.String("url", cfg.Notifier.URL))
	} else {
		notifier = notify.NewNopNotifier(log)
		log.Warn("Achievement notifications disabled")
	}

	m := metrics.New()
	service := achievement.NewService(log, store, notifier, m, achievement.Options{
		SweepConcurrency: cfg.Medals.SweepConcurrency,
		NotifyTimeout:    time.Duration(cfg.Notifier.Timeout) * time.Second,
	})

	sched := scheduler.New(log)
	sweep := achievement.SweepJob{Service: service, Timeout: 30 * time.Minute}
	if err := sched.AddJob(cfg.Medals.SweepSchedule, sweep); err != nil {
		log.Fatal("Failed to register medal sweep", zap.Error(err))
	}
	sched.Start()

	server := api.New(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
		Store:          store,
		Service:        service,
		Metrics:        m,
	})
	server.Start()

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	service.Wait()
	log.Info("Journal has been shut down.")
}
