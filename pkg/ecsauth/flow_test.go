package ecsauth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecs"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
)

type fakeReconciler struct {
	username string
	err      error
	requests []ReconcileRequest
}

func (f *fakeReconciler) Reconcile(ctx context.Context, req ReconcileRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.username, nil
}

func newTestFlow(hubs hubList, client ecs.Client, reconciler Reconciler) *Flow {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	resolver := NewResolver(hubs, client, logger)
	resolver.now = func() time.Time { return testNow }
	return NewFlow(wwwroot, resolver, reconciler, logger, nil)
}

func TestFlow_Authenticate(t *testing.T) {
	hub := &ecs.Hub{
		ID:  "hub-1",
		URL: "https://a.example.org",
		Participants: []ecs.Participant{
			{
				MID:      4,
				Name:     "Uni A",
				Accepted: true,
				OrgAbbr:  "unia",
				FieldMapping: map[string]string{
					"ecs_firstname": "firstname",
					"ecs_lastname":  "lastname",
				},
			},
		},
	}
	fullURL := wwwroot + "/course/view.php?id=42&ecs_hash=" + testHash +
		"&ecs_uid=u-7&ecs_login=bob&ecs_firstname=Bob&ecs_lastname=Builder"
	client := &fakeClient{records: map[string]*ecs.AuthsRecord{
		"hub-1": {Hash: testHash, PID: 7, MID: 4, Realm: sha1of(fullURL)},
	}}
	reconciler := &fakeReconciler{username: "unia_bob"}

	flow := newTestFlow(hubList{hub}, client, reconciler)
	result, err := flow.Authenticate(context.Background(), fullURL)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAuthenticated, result.Kind)
	require.NotNil(t, result.User)
	assert.Equal(t, "unia_bob", result.User.Username)
	assert.Equal(t, "hub-1", result.User.HubID)
	assert.Equal(t, map[string]string{
		"firstname": "Bob",
		"lastname":  "Builder",
	}, result.User.Fields)

	require.Len(t, reconciler.requests, 1)
	req := reconciler.requests[0]
	assert.Equal(t, "u-7", req.PersonID)
	assert.Equal(t, PersonUID, req.PersonIDType)
	assert.Equal(t, "bob", req.LoginHint)
	assert.Equal(t, "hub-1", req.HubID)
	assert.Equal(t, 7, req.PID)
}

func TestFlow_NotApplicable(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"no query string", wwwroot + "/course/view.php"},
		{"not a course target", wwwroot + "/mod/forum/view.php?id=42&ecs_hash=abc"},
		{"no hash parameter", wwwroot + "/course/view.php?id=42"},
		{"unparseable hash url", wwwroot + "/course/view.php?id=42&ecs_hash_url=https%3A%2F%2Fecs.example.org%2Fwrong%2Fabc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reconciler := &fakeReconciler{}
			flow := newTestFlow(hubList{}, &fakeClient{}, reconciler)

			result, err := flow.Authenticate(context.Background(), tt.url)
			require.NoError(t, err)
			assert.Equal(t, OutcomeNotApplicable, result.Kind)
			assert.Empty(t, reconciler.requests)
		})
	}
}

func TestFlow_VerifiedHashWithoutPersonID(t *testing.T) {
	fullURL := testURL
	client := &fakeClient{records: map[string]*ecs.AuthsRecord{
		"hub-1": {Hash: testHash, PID: 7, MID: 4, Realm: sha1of(fullURL)},
	}}
	reconciler := &fakeReconciler{}
	flow := newTestFlow(hubList{acceptedHub("hub-1", "https://a.example.org")}, client, reconciler)

	// The hash verifies, but nothing identifies a person. The reconciler
	// must never see the attempt.
	result, err := flow.Authenticate(context.Background(), fullURL)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotApplicable, result.Kind)
	assert.Empty(t, reconciler.requests)
}

func TestFlow_PassesThroughNonAuthOutcomes(t *testing.T) {
	notAccepted := &ecs.Hub{
		ID:  "hub-1",
		URL: "https://a.example.org",
		Participants: []ecs.Participant{
			{MID: 4, Accepted: false},
		},
	}
	client := &fakeClient{records: map[string]*ecs.AuthsRecord{
		"hub-1": {Hash: testHash, PID: 7, MID: 4, Realm: sha1of(testURL)},
	}}
	reconciler := &fakeReconciler{}
	flow := newTestFlow(hubList{notAccepted}, client, reconciler)

	result, err := flow.Authenticate(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejectedPolicy, result.Kind)
	assert.Nil(t, result.User)
	assert.Empty(t, reconciler.requests)
}

func TestFlow_ReconcilerErrorPropagates(t *testing.T) {
	fullURL := wwwroot + "/course/view.php?id=42&ecs_hash=" + testHash + "&ecs_uid=u-7"
	client := &fakeClient{records: map[string]*ecs.AuthsRecord{
		"hub-1": {Hash: testHash, PID: 7, MID: 4, Realm: sha1of(fullURL)},
	}}
	reconciler := &fakeReconciler{err: ErrAmbiguousMatch}
	flow := newTestFlow(hubList{acceptedHub("hub-1", "https://a.example.org")}, client, reconciler)

	_, err := flow.Authenticate(context.Background(), fullURL)
	assert.ErrorIs(t, err, ErrAmbiguousMatch)
}

func TestFlow_HubsUnreachablePropagates(t *testing.T) {
	client := &fakeClient{errs: map[string]error{"hub-1": ecs.ErrHubUnavailable}}
	flow := newTestFlow(hubList{acceptedHub("hub-1", "https://a.example.org")}, client, &fakeReconciler{})

	_, err := flow.Authenticate(context.Background(), testURL)
	assert.ErrorIs(t, err, ErrHubsUnreachable)
}
