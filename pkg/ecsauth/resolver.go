package ecsauth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecs"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
)

// HubSource lists the currently configured hubs. *ecs.Registry satisfies it.
type HubSource interface {
	All() []*ecs.Hub
}

// Resolver verifies a located hash against the configured hubs. Hubs are
// tried strictly in sequence; the first hub that authenticates, defers to
// SSO, or intentionally rejects ends the search.
type Resolver struct {
	hubs   HubSource
	client ecs.Client
	logger *observability.Logger

	// now is swappable for tests. The time is captured once per attempt so
	// validity checks are consistent across all candidate hubs.
	now func() time.Time
}

// NewResolver creates a resolver over the given hub source and client.
func NewResolver(hubs HubSource, client ecs.Client, logger *observability.Logger) *Resolver {
	return &Resolver{
		hubs:   hubs,
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Resolve runs the hub trial loop for one authentication attempt.
func (r *Resolver) Resolve(ctx context.Context, fullURL string, ref HashRef, coursePrefix string, params Params) (*Resolution, error) {
	now := r.now()
	connFailed := false

	hint := ""
	if ref.BaseHint != "" {
		hint = ecs.NormalizeURL(ref.BaseHint)
	}

	for _, hub := range r.hubs.All() {
		log := r.logger.WithField("hub_id", hub.ID)

		if hint != "" && ecs.NormalizeURL(hub.URL) != hint {
			continue
		}

		record, err := r.client.GetAuth(ctx, hub, ref.Hash)
		if err != nil {
			if errors.Is(err, ecs.ErrAuthNotFound) {
				log.Debug("hub holds no record for hash")
				continue
			}
			// Remember the failure but keep trying the remaining hubs.
			connFailed = true
			log.WithError(err).Warn("hub could not be consulted")
			continue
		}

		if record.Hash != ref.Hash {
			log.Warn("hub returned record for a different hash")
			continue
		}

		if record.Realm != "" {
			want := DeriveRealm(fullURL, coursePrefix, params)
			if record.Realm != want {
				log.Warn("realm mismatch, rejecting candidate")
				continue
			}
		} else {
			// A record without a realm bypasses context binding. Tolerated
			// for hub compatibility, but worth noticing in the logs.
			log.Warn("auths record carries no realm, skipping realm check")
		}

		if from, ok := parseTimestamp(record.ValidFrom); ok && from.After(now) {
			log.Debug("auths record not yet valid")
			continue
		}
		if until, ok := parseTimestamp(record.ValidUntil); ok && !until.After(now) {
			log.Debug("auths record expired")
			continue
		}

		participant, known := hub.Participant(record.MID)

		if known && participant.SSO {
			// SSO handling ends the entire search, not just this hub.
			log.Infof("participant mid=%d configured for SSO, deferring", record.MID)
			return &Resolution{Kind: OutcomeDeferSSO, HubID: hub.ID, PID: record.PID, MID: record.MID, Participant: participant}, nil
		}

		if !known || !participant.Accepted {
			// An intentional rejection also ends the search, and it
			// supersedes any earlier connection failure.
			log.Infof("participant mid=%d not accepted for token auth", record.MID)
			return &Resolution{Kind: OutcomeRejectedPolicy, HubID: hub.ID, PID: record.PID, MID: record.MID, Participant: participant}, nil
		}

		log.Infof("hash authenticated by hub, pid=%d mid=%d", record.PID, record.MID)
		return &Resolution{Kind: OutcomeAuthenticated, HubID: hub.ID, PID: record.PID, MID: record.MID, Participant: participant}, nil
	}

	if connFailed {
		return nil, ErrHubsUnreachable
	}
	return &Resolution{Kind: OutcomeNotAuthenticated}, nil
}

// parseTimestamp accepts RFC3339 or unix seconds. Anything else counts as
// absent, which means no constraint.
func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}
