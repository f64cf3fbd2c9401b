// Package observability provides structured logging, Prometheus metrics, and
// graceful shutdown handling for the CampusConnect auth service.
//
// # Structured Logging
//
// Create a logger and attach request-scoped fields:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("hub_id", hub.ID).Info("querying hub")
//
// # Prometheus Metrics
//
// All metrics live in the "campusconnect" namespace on a private registry:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.AuthAttemptsTotal.WithLabelValues("authenticated").Inc()
//	metrics.HubRequestDuration.WithLabelValues(hubID).Observe(0.087)
//
// # Graceful Shutdown
//
// ShutdownManager drains the HTTP server and runs registered cleanup
// functions when SIGINT/SIGTERM arrives.
package observability
