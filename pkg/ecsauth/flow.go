package ecsauth

import (
	"context"
	"errors"
	"time"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecs"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
)

// ErrAmbiguousMatch is the data-integrity stop: more than one local account
// matches the remote identity, and guessing is not an option.
var ErrAmbiguousMatch = errors.New("ambiguous identity match")

// ReconcileRequest carries a verified remote identity to the reconciler.
type ReconcileRequest struct {
	Institution  string
	LoginHint    string
	PersonID     string
	PersonIDType PersonIDType
	HubID        string
	PID          int
	Participant  *ecs.Participant
}

// Reconciler resolves a verified remote identity to a stable local username.
type Reconciler interface {
	Reconcile(ctx context.Context, req ReconcileRequest) (string, error)
}

// Flow composes the authentication stages into one call per login attempt.
type Flow struct {
	wwwroot    string
	resolver   *Resolver
	reconciler Reconciler
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewFlow creates the authentication flow. metrics may be nil.
func NewFlow(wwwroot string, resolver *Resolver, reconciler Reconciler, logger *observability.Logger, metrics *observability.Metrics) *Flow {
	return &Flow{
		wwwroot:    wwwroot,
		resolver:   resolver,
		reconciler: reconciler,
		logger:     logger,
		metrics:    metrics,
	}
}

// Authenticate runs one authentication attempt for the given destination
// URL. The outcome is always an explicit result value; an error is returned
// only for the hard failures (hubs unreachable, ambiguous identity match).
func (f *Flow) Authenticate(ctx context.Context, rawurl string) (*AuthResult, error) {
	start := time.Now()
	result, err := f.authenticate(ctx, rawurl)
	if f.metrics != nil {
		f.metrics.AuthFlowDuration.Observe(time.Since(start).Seconds())
		f.metrics.AuthAttemptsTotal.WithLabelValues(outcomeLabel(result, err)).Inc()
	}
	return result, err
}

func (f *Flow) authenticate(ctx context.Context, rawurl string) (*AuthResult, error) {
	log := observability.FromContext(ctx)

	params, ok := ExtractParams(rawurl)
	if !ok {
		return &AuthResult{Kind: OutcomeNotApplicable}, nil
	}

	coursePrefix, ok := MatchCourseTarget(f.wwwroot, rawurl, params)
	if !ok {
		return &AuthResult{Kind: OutcomeNotApplicable}, nil
	}

	ref, err := LocateHash(params)
	if err != nil {
		if errors.Is(err, ErrHashURLUnparseable) {
			log.WithError(err).Warn("authentication attempt with unparseable hash url")
		}
		return &AuthResult{Kind: OutcomeNotApplicable}, nil
	}

	resolution, err := f.resolver.Resolve(ctx, rawurl, ref, coursePrefix, params)
	if err != nil {
		return nil, err
	}
	if resolution.Kind != OutcomeAuthenticated {
		return &AuthResult{Kind: resolution.Kind}, nil
	}

	person, err := SelectPersonID(params)
	if err != nil {
		log.WithError(err).Warn("hash verified but person cannot be identified")
		return &AuthResult{Kind: OutcomeNotApplicable}, nil
	}

	username, err := f.reconciler.Reconcile(ctx, ReconcileRequest{
		Institution:  params["ecs_institution"],
		LoginHint:    params["ecs_login"],
		PersonID:     person.ID,
		PersonIDType: person.Type,
		HubID:        resolution.HubID,
		PID:          resolution.PID,
		Participant:  resolution.Participant,
	})
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Kind: OutcomeAuthenticated,
		User: &UserDetails{
			Username: username,
			HubID:    resolution.HubID,
			Fields:   mapProfileFields(resolution.Participant, params),
		},
	}, nil
}

// mapProfileFields applies the participant's field mapping to the inbound
// parameters. Only declared fields are carried; nothing else is
// special-cased.
func mapProfileFields(participant *ecs.Participant, params Params) map[string]string {
	if participant == nil || len(participant.FieldMapping) == 0 {
		return nil
	}
	fields := make(map[string]string)
	for attr, field := range participant.FieldMapping {
		if value := params[attr]; value != "" {
			fields[field] = value
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func outcomeLabel(result *AuthResult, err error) string {
	switch {
	case err == nil:
		return result.Kind.String()
	case errors.Is(err, ErrHubsUnreachable):
		return "hubs_unreachable"
	case errors.Is(err, ErrAmbiguousMatch):
		return "ambiguous_match"
	default:
		return "error"
	}
}
