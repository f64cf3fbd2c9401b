// Package web exposes the authentication flow over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecsauth"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/httputil"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
)

// Authenticator runs one authentication attempt. *ecsauth.Flow satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, rawurl string) (*ecsauth.AuthResult, error)
}

// Handler serves the authentication endpoint.
type Handler struct {
	flow   Authenticator
	logger *observability.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(flow Authenticator, logger *observability.Logger) *Handler {
	return &Handler{flow: flow, logger: logger}
}

// Router builds the service router with the standard middleware chain.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(httputil.RequestIDMiddleware)
	r.Use(httputil.LoggingMiddleware(h.logger))
	r.Use(httputil.RecoveryMiddleware(h.logger))

	r.HandleFunc("/auth/campusconnect", h.handleAuthenticate).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	return r
}

func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	rawurl := r.URL.Query().Get("url")
	if rawurl == "" {
		httputil.WriteBadRequest(w, "missing url parameter")
		return
	}

	result, err := h.flow.Authenticate(r.Context(), rawurl)
	if err != nil {
		switch {
		case errors.Is(err, ecsauth.ErrHubsUnreachable):
			httputil.WriteBadGateway(w, "no hub could be consulted")
		case errors.Is(err, ecsauth.ErrAmbiguousMatch):
			httputil.WriteReason(w, http.StatusInternalServerError, "ambiguous-identity",
				"more than one local account matches the remote identity")
		default:
			h.logger.WithError(err).Error("authentication attempt failed")
			httputil.WriteInternalError(w, errors.New("authentication failed"))
		}
		return
	}

	switch result.Kind {
	case ecsauth.OutcomeAuthenticated:
		httputil.WriteJSONOrError(w, http.StatusOK, result.User, "failed to encode user details")
	case ecsauth.OutcomeDeferSSO:
		httputil.WriteReason(w, http.StatusConflict, "sso",
			"participant is configured for single sign-on")
	case ecsauth.OutcomeRejectedPolicy:
		httputil.WriteReason(w, http.StatusForbidden, "policy",
			"participant is not accepted for token authentication")
	case ecsauth.OutcomeNotAuthenticated:
		httputil.WriteReason(w, http.StatusForbidden, "not-authenticated",
			"no hub vouches for this token")
	default:
		httputil.WriteReason(w, http.StatusForbidden, "not-applicable",
			"url is not a hash authentication attempt")
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOrError(w, http.StatusOK, map[string]string{"status": "ok"}, "failed to encode health")
}
