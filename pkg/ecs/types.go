package ecs

import (
	"fmt"
	"net/url"
	"strings"
)

// Participant represents a remote system registered with a hub. A token
// issued under a membership is only honored when the participant is accepted
// for token auth; SSO participants are deferred to the host's single sign-on.
type Participant struct {
	MID         int               `json:"mid"`
	Name        string            `json:"name"`
	Accepted    bool              `json:"accepted"`
	SSO         bool              `json:"sso"`
	OrgAbbr     string            `json:"org_abbr"`
	Institution string            `json:"institution,omitempty"`
	// FieldMapping maps a person-id type or remote profile attribute to the
	// local account field it populates.
	FieldMapping map[string]string `json:"field_mapping,omitempty"`
}

// Hub is one configured ECS federation server.
type Hub struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	URL              string        `json:"url"`
	AuthToken        string        `json:"auth_token,omitempty"`
	ImportRole       string        `json:"import_role,omitempty"`
	InactivityMonths int           `json:"inactivity_months"`
	NotifyRecipients []string      `json:"notify_recipients,omitempty"`
	Participants     []Participant `json:"participants"`
}

// Participant returns the participant registered under the given membership id.
func (h *Hub) Participant(mid int) (*Participant, bool) {
	for i := range h.Participants {
		if h.Participants[i].MID == mid {
			return &h.Participants[i], true
		}
	}
	return nil, false
}

// Validate checks the hub configuration for the fields the auth flow relies on.
func (h *Hub) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("hub id is required")
	}
	if h.URL == "" {
		return fmt.Errorf("hub %s: url is required", h.ID)
	}
	if _, err := url.Parse(h.URL); err != nil {
		return fmt.Errorf("hub %s: invalid url: %w", h.ID, err)
	}
	if h.InactivityMonths < 0 {
		return fmt.Errorf("hub %s: inactivity months must not be negative", h.ID)
	}
	return nil
}

// AuthsRecord is the authentication record a hub returns for a hash. It
// lives only for the duration of one authentication attempt.
type AuthsRecord struct {
	Hash       string `json:"hash"`
	PID        int    `json:"pid"`
	MID        int    `json:"mid"`
	Realm      string `json:"realm,omitempty"`
	ValidFrom  string `json:"valid_from,omitempty"`
	ValidUntil string `json:"valid_until,omitempty"`
	URL        string `json:"url,omitempty"`
}

// NormalizeURL reduces a URL to scheme, host without port, path and query so
// hub base URLs can be compared against client-supplied hints regardless of
// an explicit port.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSuffix(strings.TrimSpace(raw), "/")
	}

	host := u.Host
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}

	normalized := u.Scheme + "://" + host + strings.TrimSuffix(u.Path, "/")
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}
	return normalized
}
