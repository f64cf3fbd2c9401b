package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/accounts"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/config"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecs"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/identity"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/lifecycle"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

var runOnce = flag.Bool("run-once", false, "Run the lifecycle job once and exit")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("CAMPUSCONNECT_POSTGRES_URL is required for the lifecycle job")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := accounts.OpenPostgres(ctx, cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()
	accountStore := accounts.NewPostgresStore(db)

	hubs, err := ecs.NewRegistry(cfg.Auth.HubsFile, logger, metrics)
	if err != nil {
		logger.WithError(err).Error("Failed to load hub configuration")
		os.Exit(1)
	}

	// Session termination is best effort; without redis suspended users
	// simply keep their sessions until they expire.
	var sessions lifecycle.SessionKiller
	if cfg.Redis.URL != "" {
		redisClient, err := accounts.OpenRedis(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, sessions will not be terminated")
		} else {
			defer redisClient.Close()
			sessions = accounts.NewSessionIndex(redisClient)
		}
	}

	job := lifecycle.NewJob(lifecycle.JobConfig{
		Hubs:           hubs,
		Mappings:       identity.NewPostgresStore(db),
		Accounts:       accountStore,
		Sessions:       sessions,
		Watermarks:     lifecycle.NewPostgresWatermarkStore(db),
		Notifier:       lifecycle.NewSMTPNotifier(cfg.Lifecycle.SMTPAddr, cfg.Lifecycle.SMTPFrom),
		Events:         lifecycle.NewStoreEvents(accountStore),
		SessionTimeout: cfg.Auth.SessionTimeout,
		Logger:         logger,
		Metrics:        metrics,
	})

	if *runOnce {
		if err := job.Run(ctx, time.Now().UTC()); err != nil {
			logger.WithError(err).Error("Lifecycle job failed")
			os.Exit(1)
		}
		logger.Info("Lifecycle job completed")
		return
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Lifecycle.Schedule, func() {
		logger.Info("Starting scheduled lifecycle job")
		if err := job.Run(ctx, time.Now().UTC()); err != nil {
			logger.WithError(err).Error("Lifecycle job failed")
			return
		}
		logger.Info("Lifecycle job completed")
	})
	if err != nil {
		logger.WithError(err).Error("Failed to schedule lifecycle job")
		os.Exit(1)
	}

	c.Start()
	logger.Infof("Lifecycle job scheduled: %s", cfg.Lifecycle.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Infof("Received signal %s, stopping", sig)

	stopCtx := c.Stop()
	<-stopCtx.Done()
}
