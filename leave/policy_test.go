package leave_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

func TestPolicyUpdate_RejectsNegativeValues(t *testing.T) {
	store := memory.New()
	policy := leave.NewPolicyService(store, nil)
	ctx := context.Background()

	bad := leave.DefaultSettings()
	bad.VacationMonthlyAccrual = decimal.NewFromFloat(-1)
	_, err := policy.Update(ctx, bad, "admin-1")
	assert.True(t, leave.IsValidation(err))

	bad = leave.DefaultSettings()
	bad.SickLeaveWithCertificateLimit = -1
	_, err = policy.Update(ctx, bad, "admin-1")
	assert.True(t, leave.IsValidation(err))

	bad = leave.DefaultSettings()
	bad.VacationCarryoverLimit = -3
	_, err = policy.Update(ctx, bad, "admin-1")
	assert.True(t, leave.IsValidation(err))
}

func TestPolicyUpdate_AppendsAuditOnChange(t *testing.T) {
	// GIVEN: Default settings
	// WHEN: An admin raises the carryover limit
	// THEN: One change-log entry records the before and after snapshots

	store := memory.New()
	policy := leave.NewPolicyService(store, nil)
	ctx := context.Background()

	next := leave.DefaultSettings()
	next.VacationCarryoverLimit = 5
	saved, err := policy.Update(ctx, next, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 5, saved.VacationCarryoverLimit)

	log := store.ChangeLog()
	require.Len(t, log, 1)
	assert.Equal(t, "admin-1", log[0].AdminID)
	assert.Equal(t, 0, log[0].Before.VacationCarryoverLimit)
	assert.Equal(t, 5, log[0].After.VacationCarryoverLimit)
}

func TestPolicyUpdate_NoAuditWhenUnchanged(t *testing.T) {
	// Saving identical values must not pollute the audit trail.

	store := memory.New()
	policy := leave.NewPolicyService(store, nil)
	ctx := context.Background()

	_, err := policy.Update(ctx, leave.DefaultSettings(), "admin-1")
	require.NoError(t, err)
	assert.Empty(t, store.ChangeLog())
}

func TestPolicyUpdate_RuleFlagChange_IsAudited(t *testing.T) {
	store := memory.New()
	policy := leave.NewPolicyService(store, nil)
	ctx := context.Background()

	next := leave.DefaultSettings()
	next.Rules.VacationNoticeEnabled = true
	_, err := policy.Update(ctx, next, "admin-1")
	require.NoError(t, err)

	log := store.ChangeLog()
	require.Len(t, log, 1)
	assert.False(t, log[0].Before.Rules.VacationNoticeEnabled)
	assert.True(t, log[0].After.Rules.VacationNoticeEnabled)
}
