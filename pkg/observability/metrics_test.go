package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}

	metrics.AuthAttemptsTotal.WithLabelValues("authenticated").Inc()
	metrics.AuthAttemptsTotal.WithLabelValues("not_authenticated").Inc()
	metrics.AuthAttemptsTotal.WithLabelValues("authenticated").Inc()

	if got := testutil.ToFloat64(metrics.AuthAttemptsTotal.WithLabelValues("authenticated")); got != 2 {
		t.Errorf("Expected 2 authenticated attempts, got %v", got)
	}

	metrics.HubRequestsTotal.WithLabelValues("hub-1", "hit").Inc()
	if got := testutil.ToFloat64(metrics.HubRequestsTotal.WithLabelValues("hub-1", "hit")); got != 1 {
		t.Errorf("Expected 1 hub request, got %v", got)
	}

	metrics.HubsConfigured.Set(3)
	if got := testutil.ToFloat64(metrics.HubsConfigured); got != 3 {
		t.Errorf("Expected 3 hubs configured, got %v", got)
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	NewMetrics(registry)
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.LifecycleRunsTotal.WithLabelValues("ok").Inc()

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "campusconnect_lifecycle_runs_total") {
		t.Error("Expected lifecycle run counter in metrics output")
	}
}
