package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/accounts"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/config"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecs"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecsauth"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/identity"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/web"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores. Without a database URL everything runs in memory, which is
	// enough for local development against a fake hub.
	var accountStore accounts.Store = accounts.NewMemoryStore()
	var mappingStore identity.Store = identity.NewMemoryStore()
	if cfg.Database.URL != "" {
		db, err := accounts.OpenPostgres(ctx, cfg.Database.URL)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to postgres")
			os.Exit(1)
		}
		defer db.Close()
		accountStore = accounts.NewPostgresStore(db)
		mappingStore = identity.NewPostgresStore(db)
	}

	hubs, err := ecs.NewRegistry(cfg.Auth.HubsFile, logger, metrics)
	if err != nil {
		logger.WithError(err).Error("Failed to load hub configuration")
		os.Exit(1)
	}
	client := ecs.NewHTTPClient(cfg.Auth.HubTimeout, logger, metrics)
	resolver := ecsauth.NewResolver(hubs, client, logger)
	reconciler := identity.NewReconciler(mappingStore, accountStore, logger, metrics)
	flow := ecsauth.NewFlow(cfg.Auth.WWWRoot, resolver, reconciler, logger, metrics)

	handler := web.NewHandler(flow, logger)
	appServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, appServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		return nil
	})

	var group errgroup.Group
	group.Go(func() error {
		// Watch blocks until ctx is cancelled; a failure here only costs
		// hot reload, not the service.
		if err := hubs.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Warn("Hub configuration will not reload on change")
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("Authentication service listening on %s", appServer.Addr)
		if err := appServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("Health/metrics endpoint listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}
