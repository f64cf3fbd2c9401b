package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/accounts"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/ecs"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/identity"
	"github.com/Wunderbyte-GmbH/moodle-auth-campusconnect/pkg/observability"
)

// HubSource lists the currently configured hubs.
type HubSource interface {
	All() []*ecs.Hub
}

// SessionKiller terminates all sessions a user holds.
// *accounts.SessionIndex satisfies it.
type SessionKiller interface {
	Terminate(ctx context.Context, username string) (int, error)
}

// JobConfig wires the job's collaborators. Sessions, Notifier, Events and
// Metrics may be nil; the corresponding step is then skipped.
type JobConfig struct {
	Hubs           HubSource
	Mappings       identity.Store
	Accounts       accounts.Store
	Sessions       SessionKiller
	Watermarks     WatermarkStore
	Notifier       Notifier
	Events         Events
	SessionTimeout time.Duration
	Logger         *observability.Logger
	Metrics        *observability.Metrics
}

// Job is the recurring account maintenance job.
type Job struct {
	cfg JobConfig
}

// NewJob creates the job.
func NewJob(cfg JobConfig) *Job {
	return &Job{cfg: cfg}
}

// Run executes the three passes. Each pass is isolated: a failing item is
// logged and counted, never aborting the rest of the pass, and a failing
// pass never prevents the following passes from running.
func (j *Job) Run(ctx context.Context, now time.Time) error {
	var errs []error

	if err := j.purgeStale(ctx, now); err != nil {
		j.cfg.Logger.WithError(err).Error("stale purge pass failed")
		errs = append(errs, fmt.Errorf("stale purge: %w", err))
	}
	if err := j.suspendInactive(ctx, now); err != nil {
		j.cfg.Logger.WithError(err).Error("inactivity suspension pass failed")
		errs = append(errs, fmt.Errorf("inactivity suspension: %w", err))
	}
	if err := j.notifyNewAccounts(ctx, now); err != nil {
		j.cfg.Logger.WithError(err).Error("notification pass failed")
		errs = append(errs, fmt.Errorf("notification: %w", err))
	}

	if j.cfg.Metrics != nil {
		result := "ok"
		if len(errs) > 0 {
			result = "failed"
		}
		j.cfg.Metrics.LifecycleRunsTotal.WithLabelValues(result).Inc()
	}
	return errors.Join(errs...)
}

func (j *Job) countItem(pass, result string) {
	if j.cfg.Metrics != nil {
		j.cfg.Metrics.LifecycleItemsTotal.WithLabelValues(pass, result).Inc()
	}
}

// purgeStale removes accounts that were provisioned for a login but never
// led to an enrollment, once their session has long expired. Any
// enrollment, however old, exempts the account from this pass.
func (j *Job) purgeStale(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-j.cfg.SessionTimeout)

	mappings, err := j.cfg.Mappings.ListNeverEnrolled(ctx)
	if err != nil {
		return fmt.Errorf("failed to list never-enrolled mappings: %w", err)
	}

	for _, mapping := range mappings {
		log := j.cfg.Logger.WithField("username", mapping.Username)

		account, err := j.cfg.Accounts.FindByUsername(ctx, mapping.Username)
		if errors.Is(err, accounts.ErrAccountNotFound) {
			// The account is already gone; drop the orphaned mapping.
			if err := j.cfg.Mappings.Delete(ctx, mapping.PersonID, mapping.PersonIDType); err != nil {
				log.WithError(err).Error("failed to delete orphaned mapping")
				j.countItem("purge", "failed")
				continue
			}
			j.countItem("purge", "ok")
			continue
		} else if err != nil {
			log.WithError(err).Error("failed to load account")
			j.countItem("purge", "failed")
			continue
		}

		lastActivity := account.CreatedAt
		if account.LastLoginAt != nil {
			lastActivity = *account.LastLoginAt
		}
		if !lastActivity.Before(cutoff) {
			j.countItem("purge", "skipped")
			continue
		}

		if err := j.cfg.Accounts.ScrubAndDelete(ctx, mapping.Username); err != nil {
			log.WithError(err).Error("failed to scrub account")
			j.countItem("purge", "failed")
			continue
		}
		if err := j.cfg.Mappings.Delete(ctx, mapping.PersonID, mapping.PersonIDType); err != nil {
			log.WithError(err).Error("failed to delete mapping")
			j.countItem("purge", "failed")
			continue
		}
		log.Info("purged stale never-enrolled account")
		j.countItem("purge", "ok")
	}
	return nil
}

// suspendInactive suspends accounts whose last enrollment is older than
// the hub's inactivity window and kills their sessions.
func (j *Job) suspendInactive(ctx context.Context, now time.Time) error {
	for _, hub := range j.cfg.Hubs.All() {
		if hub.InactivityMonths <= 0 {
			continue
		}
		cutoff := now.AddDate(0, -hub.InactivityMonths, 0)

		stale, err := j.cfg.Mappings.ListEnrolledBefore(ctx, hub.ID, cutoff)
		if err != nil {
			return fmt.Errorf("failed to list inactive mappings for hub %s: %w", hub.ID, err)
		}

		for _, mapping := range stale {
			log := j.cfg.Logger.WithFields(map[string]any{
				"username": mapping.Username,
				"hub_id":   hub.ID,
			})

			account, err := j.cfg.Accounts.FindByUsername(ctx, mapping.Username)
			if errors.Is(err, accounts.ErrAccountNotFound) {
				j.countItem("suspend", "skipped")
				continue
			} else if err != nil {
				log.WithError(err).Error("failed to load account")
				j.countItem("suspend", "failed")
				continue
			}
			if account.Suspended {
				j.countItem("suspend", "skipped")
				continue
			}

			if err := j.cfg.Accounts.Suspend(ctx, mapping.Username); err != nil {
				log.WithError(err).Error("failed to suspend account")
				j.countItem("suspend", "failed")
				continue
			}
			if j.cfg.Sessions != nil {
				killed, err := j.cfg.Sessions.Terminate(ctx, mapping.Username)
				if err != nil {
					log.WithError(err).Error("failed to terminate sessions")
				} else if killed > 0 {
					log.Infof("terminated %d active sessions", killed)
				}
			}
			if j.cfg.Events != nil {
				if err := j.cfg.Events.AccountUpdated(ctx, mapping.Username, "suspended"); err != nil {
					log.WithError(err).Warn("failed to emit account update")
				}
			}
			log.Info("suspended inactive account")
			j.countItem("suspend", "ok")
		}
	}
	return nil
}

// notifyNewAccounts mails each hub's contacts about accounts created
// since the last run. The watermark advances even when nothing was sent
// so the same window is never reported twice.
func (j *Job) notifyNewAccounts(ctx context.Context, now time.Time) error {
	since, err := j.cfg.Watermarks.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}

	created, err := j.cfg.Accounts.ListByAuthMethodCreatedSince(ctx, accounts.AuthMethodCampusConnect, since)
	if err != nil {
		return fmt.Errorf("failed to list new accounts: %w", err)
	}

	hubsByID := make(map[string]*ecs.Hub)
	for _, hub := range j.cfg.Hubs.All() {
		hubsByID[hub.ID] = hub
	}

	byHub := make(map[string][]*accounts.Account)
	for _, account := range created {
		mapping, err := j.cfg.Mappings.FindByUsername(ctx, account.Username)
		if err != nil {
			j.cfg.Logger.WithField("username", account.Username).
				WithError(err).Warn("new account has no mapping, not notifying")
			j.countItem("notify", "skipped")
			continue
		}
		byHub[mapping.HubID] = append(byHub[mapping.HubID], account)
	}

	hubIDs := make([]string, 0, len(byHub))
	for hubID := range byHub {
		hubIDs = append(hubIDs, hubID)
	}
	sort.Strings(hubIDs)

	for _, hubID := range hubIDs {
		hub := hubsByID[hubID]
		if hub == nil || len(hub.NotifyRecipients) == 0 || j.cfg.Notifier == nil {
			continue
		}
		for _, recipient := range hub.NotifyRecipients {
			for _, account := range byHub[hubID] {
				msg := newAccountMessage(recipient, hub, account)
				if err := j.cfg.Notifier.Send(ctx, msg); err != nil {
					j.cfg.Logger.WithError(err).Errorf("failed to notify %s about %s", recipient, account.Username)
					j.countItem("notify", "failed")
					if j.cfg.Metrics != nil {
						j.cfg.Metrics.NotificationsTotal.WithLabelValues(hubID, "failed").Inc()
					}
					continue
				}
				j.countItem("notify", "ok")
				if j.cfg.Metrics != nil {
					j.cfg.Metrics.NotificationsTotal.WithLabelValues(hubID, "ok").Inc()
				}
			}
		}
	}

	// Backing off one second keeps accounts created while the pass ran
	// inside the next window instead of losing them between runs.
	if err := j.cfg.Watermarks.Set(ctx, now.Add(-time.Second)); err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return nil
}

func newAccountMessage(recipient string, hub *ecs.Hub, account *accounts.Account) Message {
	return Message{
		To:      recipient,
		Subject: fmt.Sprintf("New CampusConnect account: %s", account.Username),
		Body: fmt.Sprintf(
			"A new account was provisioned through hub %q.\r\n\r\nUsername: %s\r\nInstitution: %s\r\nCreated: %s\r\n",
			hub.Name, account.Username, account.Institution,
			account.CreatedAt.Format(time.RFC3339)),
	}
}
