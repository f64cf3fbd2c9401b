package identity

import (
	"context"
	"errors"
	"time"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecsauth"
)

var (
	// ErrMappingNotFound is returned when no mapping exists for the key.
	ErrMappingNotFound = errors.New("identity mapping not found")
	// ErrDuplicateMapping is returned when a mapping for the same person
	// identifier already exists. Two racing logins for the same person
	// must converge on one mapping.
	ErrDuplicateMapping = errors.New("identity mapping already exists")
)

// PidRef records one hub-local participant ID under which the person has
// authenticated.
type PidRef struct {
	HubID string
	PID   int
}

// Mapping binds a federated person identifier to a local username. The
// pair (PersonID, PersonIDType) is unique; the same person arriving with
// a different identifier type gets a separate mapping.
type Mapping struct {
	ID           int64
	PersonID     string
	PersonIDType ecsauth.PersonIDType
	HubID        string
	Username     string
	Pids         []PidRef
	LastEnrolled *time.Time
	CreatedAt    time.Time
}

// Store is the persistence boundary for identity mappings.
type Store interface {
	// Find returns the mapping for a person identifier, pids included.
	Find(ctx context.Context, personID string, personIDType ecsauth.PersonIDType) (*Mapping, error)
	// FindByUsername returns the mapping owning the given username.
	FindByUsername(ctx context.Context, username string) (*Mapping, error)
	// Create inserts a new mapping with its pids and fills in its ID.
	// Returns ErrDuplicateMapping when the person identifier is taken.
	Create(ctx context.Context, mapping *Mapping) error
	// AppendPid records a hub-local participant ID. Appending a pid that
	// is already present is a no-op.
	AppendPid(ctx context.Context, personID string, personIDType ecsauth.PersonIDType, pid PidRef) error
	// SetLastEnrolled records the most recent enrollment.
	SetLastEnrolled(ctx context.Context, personID string, personIDType ecsauth.PersonIDType, at time.Time) error
	// Delete removes the mapping and its pids.
	Delete(ctx context.Context, personID string, personIDType ecsauth.PersonIDType) error
	// ListNeverEnrolled returns all mappings without any enrollment.
	ListNeverEnrolled(ctx context.Context) ([]*Mapping, error)
	// ListEnrolledBefore returns the given hub's mappings whose last
	// enrollment is strictly before the cutoff.
	ListEnrolledBefore(ctx context.Context, hubID string, cutoff time.Time) ([]*Mapping, error)
}
