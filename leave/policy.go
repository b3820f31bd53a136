/*
policy.go - Policy store: global settings with lazy defaults and audit

PURPOSE:
  Loads and mutates the single global PolicySettings row. Reads create
  the row with documented defaults when absent. Writes go through an
  administrative change path that appends one immutable change-log entry
  when at least one field actually changed.

CONCURRENCY:
  No locking. Settings changes are rare admin actions; eventual
  consistency of a single global row is acceptable.

SEE ALSO:
  - types.go: PolicySettings, DefaultSettings, SettingsChangeLog
  - accrual.go / admission.go: Consumers of the loaded settings
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// PolicyService is the administrative surface over the settings row.
type PolicyService struct {
	repo   SettingsRepository
	logger *logrus.Logger
}

func NewPolicyService(repo SettingsRepository, logger *logrus.Logger) *PolicyService {
	if logger == nil {
		logger = logrus.New()
	}
	return &PolicyService{repo: repo, logger: logger}
}

// Get returns the global settings, creating the row with defaults on
// first read. Idempotent.
func (ps *PolicyService) Get(ctx context.Context) (PolicySettings, error) {
	current, err := ps.repo.GetSettings(ctx)
	if err != nil {
		return PolicySettings{}, persistenceErr("load settings", err)
	}
	if current != nil {
		return *current, nil
	}

	defaults := DefaultSettings()
	if err := ps.repo.SaveSettings(ctx, defaults); err != nil {
		return PolicySettings{}, persistenceErr("create default settings", err)
	}
	ps.logger.Info("policy settings created with defaults")
	return defaults, nil
}

// Update persists the new values and, only when at least one field
// differs from the previous snapshot, appends one audit record naming
// the acting admin.
func (ps *PolicyService) Update(ctx context.Context, next PolicySettings, actingAdminID string) (PolicySettings, error) {
	if next.VacationMonthlyAccrual.IsNegative() {
		return PolicySettings{}, &ValidationError{Field: "vacationMonthlyAccrual", Message: "must not be negative"}
	}
	if next.SickLeaveWithoutCertificateLimit < 0 || next.SickLeaveWithCertificateLimit < 0 {
		return PolicySettings{}, &ValidationError{Field: "sickLeaveLimits", Message: "must not be negative"}
	}
	if next.VacationCarryoverLimit < 0 {
		return PolicySettings{}, &ValidationError{Field: "vacationCarryoverLimit", Message: "must not be negative"}
	}

	before, err := ps.Get(ctx)
	if err != nil {
		return PolicySettings{}, err
	}

	if err := ps.repo.SaveSettings(ctx, next); err != nil {
		return PolicySettings{}, persistenceErr("save settings", err)
	}

	if !before.Equal(next) {
		entry := SettingsChangeLog{
			ID:        newID("chg"),
			AdminID:   actingAdminID,
			ChangedAt: time.Now().UTC(),
			Before:    before,
			After:     next,
		}
		if err := ps.repo.AppendChangeLog(ctx, entry); err != nil {
			return PolicySettings{}, persistenceErr("append settings change log", err)
		}
		ps.logger.WithFields(logrus.Fields{
			"admin":    actingAdminID,
			"changeID": entry.ID,
		}).Info("policy settings updated")
	}

	return next, nil
}

// newID generates a unique record ID with the given prefix.
func newID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
