package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecsauth"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/httputil"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
)

type fakeFlow struct {
	result *ecsauth.AuthResult
	err    error
	seen   string
}

func (f *fakeFlow) Authenticate(ctx context.Context, rawurl string) (*ecsauth.AuthResult, error) {
	f.seen = rawurl
	return f.result, f.err
}

func serve(t *testing.T, flow Authenticator, target string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewHandler(flow, observability.NewLogger(observability.ErrorLevel, io.Discard))
	rec := httptest.NewRecorder()
	handler.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeReason(t *testing.T, rec *httptest.ResponseRecorder) httputil.ReasonResponse {
	t.Helper()
	var reason httputil.ReasonResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reason))
	return reason
}

func TestHandleAuthenticate_Authenticated(t *testing.T) {
	flow := &fakeFlow{result: &ecsauth.AuthResult{
		Kind: ecsauth.OutcomeAuthenticated,
		User: &ecsauth.UserDetails{
			Username: "unia_bob",
			HubID:    "hub-1",
			Fields:   map[string]string{"firstname": "Bob"},
		},
	}}

	rec := serve(t, flow, "/auth/campusconnect?url=https%3A%2F%2Fmoodle.example.edu%2Fcourse%2Fview.php%3Fid%3D42%26ecs_hash%3Dabc")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://moodle.example.edu/course/view.php?id=42&ecs_hash=abc", flow.seen)

	var user ecsauth.UserDetails
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	assert.Equal(t, "unia_bob", user.Username)
	assert.Equal(t, "hub-1", user.HubID)
	assert.Equal(t, map[string]string{"firstname": "Bob"}, user.Fields)
}

func TestHandleAuthenticate_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		kind       ecsauth.OutcomeKind
		wantStatus int
		wantReason string
	}{
		{"not applicable", ecsauth.OutcomeNotApplicable, http.StatusForbidden, "not-applicable"},
		{"not authenticated", ecsauth.OutcomeNotAuthenticated, http.StatusForbidden, "not-authenticated"},
		{"policy rejection", ecsauth.OutcomeRejectedPolicy, http.StatusForbidden, "policy"},
		{"sso deferral", ecsauth.OutcomeDeferSSO, http.StatusConflict, "sso"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := &fakeFlow{result: &ecsauth.AuthResult{Kind: tt.kind}}
			rec := serve(t, flow, "/auth/campusconnect?url=https%3A%2F%2Fmoodle.example.edu%2F")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantReason, decodeReason(t, rec).Reason)
		})
	}
}

func TestHandleAuthenticate_Errors(t *testing.T) {
	t.Run("hubs unreachable", func(t *testing.T) {
		flow := &fakeFlow{err: ecsauth.ErrHubsUnreachable}
		rec := serve(t, flow, "/auth/campusconnect?url=https%3A%2F%2Fmoodle.example.edu%2F")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("ambiguous identity", func(t *testing.T) {
		flow := &fakeFlow{err: ecsauth.ErrAmbiguousMatch}
		rec := serve(t, flow, "/auth/campusconnect?url=https%3A%2F%2Fmoodle.example.edu%2F")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "ambiguous-identity", decodeReason(t, rec).Reason)
	})

	t.Run("missing url parameter", func(t *testing.T) {
		rec := serve(t, &fakeFlow{}, "/auth/campusconnect")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	rec := serve(t, &fakeFlow{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
