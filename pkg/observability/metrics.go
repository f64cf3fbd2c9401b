package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the auth service
type Metrics struct {
	// Authentication flow metrics
	AuthAttemptsTotal  *prometheus.CounterVec
	AuthFlowDuration   prometheus.Histogram
	HubRequestsTotal   *prometheus.CounterVec
	HubRequestDuration *prometheus.HistogramVec

	// Identity reconciliation metrics
	ReconcileResultsTotal   *prometheus.CounterVec
	UsernameCollisionsTotal prometheus.Counter

	// Lifecycle job metrics
	LifecycleRunsTotal  *prometheus.CounterVec
	LifecycleItemsTotal *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec

	// Hub registry metrics
	HubsConfigured       prometheus.Gauge
	HubConfigReloadTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on the given registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusconnect_auth_attempts_total",
				Help: "Authentication attempts by final outcome",
			},
			[]string{"outcome"},
		),
		AuthFlowDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "campusconnect_auth_flow_duration_seconds",
				Help:    "End-to-end duration of one authentication attempt",
				Buckets: prometheus.DefBuckets,
			},
		),
		HubRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusconnect_hub_requests_total",
				Help: "Requests issued to ECS hubs by hub and result",
			},
			[]string{"hub", "result"},
		),
		HubRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campusconnect_hub_request_duration_seconds",
				Help:    "Duration of auths lookups against ECS hubs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"hub"},
		),
		ReconcileResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusconnect_reconcile_results_total",
				Help: "Identity reconciliation results (existing, field_match, created, ambiguous)",
			},
			[]string{"result"},
		),
		UsernameCollisionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "campusconnect_username_collisions_total",
				Help: "Username candidates discarded because they were already taken",
			},
		),
		LifecycleRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusconnect_lifecycle_runs_total",
				Help: "Lifecycle job runs by result",
			},
			[]string{"result"},
		),
		LifecycleItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusconnect_lifecycle_items_total",
				Help: "Items handled by lifecycle passes (pass=purge|suspend|notify)",
			},
			[]string{"pass", "result"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusconnect_notifications_total",
				Help: "New-account notification messages by hub and result",
			},
			[]string{"hub", "result"},
		),
		HubsConfigured: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campusconnect_hubs_configured",
				Help: "Number of ECS hubs currently configured",
			},
		),
		HubConfigReloadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusconnect_hub_config_reloads_total",
				Help: "Hub registry reloads by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.AuthAttemptsTotal,
		m.AuthFlowDuration,
		m.HubRequestsTotal,
		m.HubRequestDuration,
		m.ReconcileResultsTotal,
		m.UsernameCollisionsTotal,
		m.LifecycleRunsTotal,
		m.LifecycleItemsTotal,
		m.NotificationsTotal,
		m.HubsConfigured,
		m.HubConfigReloadTotal,
	)

	return m
}

// RegisterMetricsEndpoint exposes the registry at /metrics on the given mux
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
