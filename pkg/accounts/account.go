package accounts

import (
	"context"
	"errors"
	"time"
)

// AuthMethodCampusConnect marks accounts provisioned through hash-based
// federated authentication. Lifecycle jobs only ever touch accounts with
// this auth method.
const AuthMethodCampusConnect = "campusconnect"

var (
	// ErrAccountNotFound is returned when no live account matches.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDuplicateAccount is returned when the username is already taken.
	ErrDuplicateAccount = errors.New("account already exists")
)

// Account is a locally provisioned user account.
type Account struct {
	ID          int64
	Username    string
	AuthMethod  string
	Institution string
	FirstName   string
	LastName    string
	Email       string
	IDNumber    string
	Custom      map[string]string
	Suspended   bool
	Deleted     bool
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// Store is the persistence boundary for accounts.
//
// Deleted accounts keep their row so the username stays reserved;
// FindByUsername treats them as absent while UsernameExists still
// reports them taken.
type Store interface {
	// Create inserts a new account and fills in its ID. Returns
	// ErrDuplicateAccount when the username is taken.
	Create(ctx context.Context, account *Account) error
	// FindByUsername returns the live account with the given username.
	FindByUsername(ctx context.Context, username string) (*Account, error)
	// UsernameExists reports whether the username is taken, deleted
	// accounts included.
	UsernameExists(ctx context.Context, username string) (bool, error)
	// SearchByField returns all live accounts whose profile field has the
	// given value. Unknown field names search the custom profile fields.
	SearchByField(ctx context.Context, field, value string) ([]*Account, error)
	// Suspend marks the account suspended.
	Suspend(ctx context.Context, username string) error
	// ScrubAndDelete blanks all personal data, drops the account's event
	// log, and marks the account deleted. The username stays reserved.
	ScrubAndDelete(ctx context.Context, username string) error
	// ListByAuthMethodCreatedSince returns live accounts with the given
	// auth method created strictly after the given time.
	ListByAuthMethodCreatedSince(ctx context.Context, authMethod string, since time.Time) ([]*Account, error)
	// Touch records a successful login.
	Touch(ctx context.Context, username string, at time.Time) error
	// LogEvent appends an entry to the account's event log.
	LogEvent(ctx context.Context, username, kind string) error
}
