package ecs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
)

var (
	// ErrAuthNotFound means the hub answered and holds no record for the
	// hash. This is a normal miss, not a connection failure.
	ErrAuthNotFound = errors.New("auths record not found")

	// ErrHubUnavailable means the hub could not be consulted at all.
	ErrHubUnavailable = errors.New("hub unavailable")
)

// Client looks up authentication records on a hub.
type Client interface {
	GetAuth(ctx context.Context, hub *Hub, hash string) (*AuthsRecord, error)
}

// HTTPClient is the production Client issuing GET {hub.URL}/sys/auths/{hash}.
type HTTPClient struct {
	client  *http.Client
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewHTTPClient creates a hub client with the given per-call timeout.
// metrics may be nil.
func NewHTTPClient(timeout time.Duration, logger *observability.Logger, metrics *observability.Metrics) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		metrics: metrics,
	}
}

// GetAuth fetches the auths record for hash from hub.
func (c *HTTPClient) GetAuth(ctx context.Context, hub *Hub, hash string) (*AuthsRecord, error) {
	start := time.Now()
	record, err := c.getAuth(ctx, hub, hash)
	if c.metrics != nil {
		c.metrics.HubRequestDuration.WithLabelValues(hub.ID).Observe(time.Since(start).Seconds())
		c.metrics.HubRequestsTotal.WithLabelValues(hub.ID, resultLabel(err)).Inc()
	}
	return record, err
}

func (c *HTTPClient) getAuth(ctx context.Context, hub *Hub, hash string) (*AuthsRecord, error) {
	// The request goes to the URL exactly as configured, port included.
	// NormalizeURL is for comparing hub identities, not for the wire.
	url := fmt.Sprintf("%s/sys/auths/%s", strings.TrimSuffix(hub.URL, "/"), hash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build auths request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if hub.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+hub.AuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrHubUnavailable, hub.ID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrAuthNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s: status %d", ErrHubUnavailable, hub.ID, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("hub %s: unexpected status %d", hub.ID, resp.StatusCode)
	}

	var record AuthsRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("hub %s: failed to decode auths record: %w", hub.ID, err)
	}
	return &record, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "hit"
	case errors.Is(err, ErrAuthNotFound):
		return "miss"
	case errors.Is(err, ErrHubUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
