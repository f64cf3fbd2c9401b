package ecsauth

import (
	"errors"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecs"
)

// OutcomeKind enumerates the terminal outcomes of an authentication attempt.
type OutcomeKind int

const (
	// OutcomeNotApplicable: the request does not constitute a token
	// authentication attempt (no query, no course target, no usable hash
	// or person identifier). Never an error to the caller.
	OutcomeNotApplicable OutcomeKind = iota

	// OutcomeNotAuthenticated: every hub was consulted and none holds a
	// matching, valid record. A normal outcome, e.g. an expired hash.
	OutcomeNotAuthenticated

	// OutcomeDeferSSO: the issuing participant is configured for single
	// sign-on; the caller must hand over to the SSO flow, not fail.
	OutcomeDeferSSO

	// OutcomeRejectedPolicy: the issuing participant is not accepted for
	// token authentication. An intentional rejection, distinct from any
	// transport failure.
	OutcomeRejectedPolicy

	// OutcomeAuthenticated: the hash verified against a hub and the person
	// was resolved to a local username.
	OutcomeAuthenticated
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNotApplicable:
		return "not_applicable"
	case OutcomeNotAuthenticated:
		return "not_authenticated"
	case OutcomeDeferSSO:
		return "sso_deferred"
	case OutcomeRejectedPolicy:
		return "rejected_policy"
	case OutcomeAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ErrHubsUnreachable is raised only when at least one hub could not be
// consulted and no hub authenticated or intentionally rejected the attempt.
var ErrHubsUnreachable = errors.New("no ECS hub could be consulted")

// Resolution is the outcome of the hub trial loop.
type Resolution struct {
	Kind        OutcomeKind
	HubID       string
	PID         int
	MID         int
	Participant *ecs.Participant
}

// UserDetails is what the flow hands back to the host application on
// success: the resolved local username plus the profile fields the
// participant's field mapping extracted from the parameters.
type UserDetails struct {
	Username string            `json:"username"`
	HubID    string            `json:"hub_id"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// AuthResult is the final result of Flow.Authenticate.
type AuthResult struct {
	Kind OutcomeKind
	User *UserDetails
}
