package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/accounts"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecs"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecsauth"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
)

// Reconciler resolves verified federated identities to local usernames.
// It satisfies ecsauth.Reconciler.
type Reconciler struct {
	mappings Store
	accounts accounts.Store
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewReconciler creates a reconciler. metrics may be nil.
func NewReconciler(mappings Store, accountStore accounts.Store, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		mappings: mappings,
		accounts: accountStore,
		logger:   logger,
		metrics:  metrics,
	}
}

var _ ecsauth.Reconciler = (*Reconciler)(nil)

// Reconcile returns the local username for a verified remote identity,
// creating the mapping and, if necessary, the account on first contact.
func (r *Reconciler) Reconcile(ctx context.Context, req ecsauth.ReconcileRequest) (string, error) {
	username, result, err := r.reconcile(ctx, req)
	if r.metrics != nil {
		r.metrics.ReconcileResultsTotal.WithLabelValues(result).Inc()
	}
	return username, err
}

func (r *Reconciler) reconcile(ctx context.Context, req ecsauth.ReconcileRequest) (string, string, error) {
	log := r.logger.WithFields(map[string]any{
		"person_id_type": string(req.PersonIDType),
		"hub_id":         req.HubID,
	})

	mapping, err := r.mappings.Find(ctx, req.PersonID, req.PersonIDType)
	if err == nil {
		// Known person. Remember the pid if this hub assigned a new one.
		pid := PidRef{HubID: req.HubID, PID: req.PID}
		if err := r.mappings.AppendPid(ctx, req.PersonID, req.PersonIDType, pid); err != nil {
			return "", "error", fmt.Errorf("failed to append pid: %w", err)
		}
		return mapping.Username, "existing", nil
	}
	if !errors.Is(err, ErrMappingNotFound) {
		return "", "error", fmt.Errorf("failed to look up mapping: %w", err)
	}

	if !req.PersonIDType.Native() {
		username, matched, err := r.matchAccount(ctx, req)
		if err != nil {
			return "", "ambiguous", err
		}
		if matched {
			log.Infof("adopted existing account %s by field match", username)
			return r.persistMapping(ctx, req, username, "adopted")
		}
	}

	abbr := participantAbbr(req.Participant)
	if abbr == "" {
		abbr = req.Institution
	}
	username, collided, err := generateUsername(ctx, abbr, req.LoginHint, r.accounts.UsernameExists)
	if err != nil {
		return "", "error", fmt.Errorf("failed to generate username: %w", err)
	}
	if collided && r.metrics != nil {
		r.metrics.UsernameCollisionsTotal.Inc()
	}

	err = r.accounts.Create(ctx, &accounts.Account{
		Username:    username,
		AuthMethod:  accounts.AuthMethodCampusConnect,
		Institution: req.Institution,
	})
	if err != nil {
		return "", "error", fmt.Errorf("failed to create account: %w", err)
	}
	log.Infof("provisioned account %s", username)

	return r.persistMapping(ctx, req, username, "provisioned")
}

// matchAccount searches local accounts by the profile field the participant
// mapped the identifier type to. Matching only happens when the participant
// configured such a mapping. More than one match is a hard stop: guessing
// would attach the login to somebody else's account.
func (r *Reconciler) matchAccount(ctx context.Context, req ecsauth.ReconcileRequest) (string, bool, error) {
	if req.Participant == nil {
		return "", false, nil
	}
	field := req.Participant.FieldMapping[string(req.PersonIDType)]
	if field == "" {
		return "", false, nil
	}

	matches, err := r.accounts.SearchByField(ctx, field, req.PersonID)
	if err != nil {
		return "", false, fmt.Errorf("failed to search accounts: %w", err)
	}
	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return matches[0].Username, true, nil
	default:
		r.logger.Warnf("%d accounts match %s=%s, refusing to guess", len(matches), field, req.PersonID)
		return "", false, ecsauth.ErrAmbiguousMatch
	}
}

// persistMapping stores the new mapping. Losing the create race to a
// concurrent login for the same person is not an error: the winner's
// mapping is authoritative and this login uses it.
func (r *Reconciler) persistMapping(ctx context.Context, req ecsauth.ReconcileRequest, username, result string) (string, string, error) {
	err := r.mappings.Create(ctx, &Mapping{
		PersonID:     req.PersonID,
		PersonIDType: req.PersonIDType,
		HubID:        req.HubID,
		Username:     username,
		Pids:         []PidRef{{HubID: req.HubID, PID: req.PID}},
	})
	if err == nil {
		return username, result, nil
	}
	if !errors.Is(err, ErrDuplicateMapping) {
		return "", "error", fmt.Errorf("failed to create mapping: %w", err)
	}

	winner, err := r.mappings.Find(ctx, req.PersonID, req.PersonIDType)
	if err != nil {
		return "", "error", fmt.Errorf("failed to re-read mapping after duplicate: %w", err)
	}
	r.logger.Warnf("lost mapping race, using existing account %s", winner.Username)
	return winner.Username, "existing", nil
}

func participantAbbr(p *ecs.Participant) string {
	if p == nil {
		return ""
	}
	return p.OrgAbbr
}
