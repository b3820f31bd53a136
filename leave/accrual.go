/*
accrual.go - Entitlement calculation

PURPOSE:
  Computes the vacation and sick-leave entitlement breakdown for a user
  as of a reference date: currently allowed, accrued this year, future
  accrual, and consumed approved/pending days, honoring trial periods,
  monthly accrual, and year-end carryover.

VACATION vs SICK LEAVE:
  Vacation:
    - Gated by the 3-month trial period
    - Partial first month of hire does not accrue
    - Carryover from the previous year, floored at zero and capped
    - CurrentlyAllowed may go negative to make over-commitment visible
  Sick leave:
    - No trial gate, no partial-month subtraction
    - Fixed implicit quota of 10 days/year accrued monthly, independent
      of the configurable certificate limits
    - CurrentlyAllowed floored at zero
    - No future accrual display

ATTRIBUTION:
  Current-year consumption is attributed by the absence From date, with
  no clamping: spans are capped at 30 calendar days by admission, so
  cross-year spillover is accepted as start-year attribution. Previous-
  year consumption for carryover IS clamped to that year.

SEE ALSO:
  - workday: Working-day counts
  - policy.go: Settings source
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/workday"
)

// sickLeaveAnnualQuota is the implicit annual sick-day quota; accrual is
// quota/12 per month regardless of the certificate limits.
const sickLeaveAnnualQuota = 10

// AccrualService computes entitlement breakdowns.
type AccrualService struct {
	users    UserDirectory
	absences AbsenceRepository
	policy   *PolicyService
}

func NewAccrualService(users UserDirectory, absences AbsenceRepository, policy *PolicyService) *AccrualService {
	return &AccrualService{users: users, absences: absences, policy: policy}
}

// =============================================================================
// VACATION
// =============================================================================

// Vacation computes the vacation entitlement for a user as of the given
// reference date.
func (s *AccrualService) Vacation(ctx context.Context, userID string, asOf workday.Date) (VacationEntitlement, error) {
	settings, err := s.policy.Get(ctx)
	if err != nil {
		return VacationEntitlement{}, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return VacationEntitlement{}, err
	}

	rate := settings.VacationMonthlyAccrual
	ent := VacationEntitlement{
		CurrentlyAllowed: decimal.Zero,
		AccruedThisYear:  decimal.Zero,
		Carryover:        decimal.Zero,
		MonthlyRate:      rate,
		FutureAccrue:     rate.Round(2),
	}

	// No hire date or trial incomplete: zero entitlement. FutureAccrue
	// keeps reporting the monthly rate for forward-looking display.
	if user.HireDate == nil || !user.TrialComplete(asOf) {
		return ent, nil
	}
	hire := *user.HireDate
	year := asOf.Year()

	months := vacationMonthsAccrued(hire, asOf)
	accrued := rate.Mul(decimal.NewFromInt(int64(months)))

	carry, err := s.vacationCarryover(ctx, userID, hire, rate, settings.VacationCarryoverLimit, year)
	if err != nil {
		return VacationEntitlement{}, err
	}

	absences, err := s.absences.FindAbsences(ctx, AbsenceFilter{
		UserID:     userID,
		Type:       TypeVacation,
		StatusNot:  StatusRejected,
		StartingIn: rangePtr(YearRange(year)),
	})
	if err != nil {
		return VacationEntitlement{}, persistenceErr("load vacation absences", err)
	}

	approved, pending := 0, 0
	for i := range absences {
		switch absences[i].Status {
		case StatusApproved:
			approved += absences[i].WorkingDays()
		case StatusPending:
			pending += absences[i].WorkingDays()
		}
	}

	allowed := accrued.Add(carry).
		Sub(decimal.NewFromInt(int64(approved))).
		Sub(decimal.NewFromInt(int64(pending)))

	ent.AccruedThisYear = accrued.Round(2)
	ent.Carryover = carry.Round(2)
	ent.ApprovedDays = approved
	ent.PendingDays = pending
	// Not floored: a negative balance signals over-commitment visibly.
	ent.CurrentlyAllowed = allowed.Round(2)
	ent.FutureAccrue = vacationFutureAccrue(hire, asOf, rate).Round(2)
	return ent, nil
}

// vacationMonthsAccrued counts the accrual months in asOf's calendar
// year. A partial first month of hire (hired after the 1st) does not
// accrue.
func vacationMonthsAccrued(hire, asOf workday.Date) int {
	if hire.Year() < asOf.Year() {
		return int(asOf.Month())
	}
	months := int(asOf.Month()) - int(hire.Month()) + 1
	if hire.Day() > 1 {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// vacationCarryover computes the capped carryover from the previous
// year: previous-year accrual minus that year's approved and pending
// vacation working days clamped to the year, floored at zero.
func (s *AccrualService) vacationCarryover(ctx context.Context, userID string, hire workday.Date, rate decimal.Decimal, carryCap int, year int) (decimal.Decimal, error) {
	prevYear := year - 1
	if hire.After(workday.YearEnd(prevYear)) {
		return decimal.Zero, nil
	}

	var prevMonths int
	switch {
	case hire.Year() < prevYear:
		prevMonths = 12
	default: // hired during the previous year
		prevMonths = 12 - int(hire.Month()) + 1
		if hire.Day() > 1 {
			prevMonths--
		}
	}
	prevAccrual := rate.Mul(decimal.NewFromInt(int64(prevMonths)))

	prev := YearRange(prevYear)
	absences, err := s.absences.FindAbsences(ctx, AbsenceFilter{
		UserID:      userID,
		Type:        TypeVacation,
		StatusNot:   StatusRejected,
		Overlapping: &prev,
	})
	if err != nil {
		return decimal.Zero, persistenceErr("load previous-year vacation absences", err)
	}

	used := 0
	for i := range absences {
		used += workday.CountWorkingDaysWithinRange(absences[i].From, absences[i].To, prev.Start, prev.End)
	}

	carry := prevAccrual.Sub(decimal.NewFromInt(int64(used)))
	if carry.IsNegative() {
		return decimal.Zero, nil
	}
	limit := decimal.NewFromInt(int64(carryCap))
	if carry.GreaterThan(limit) {
		return limit, nil
	}
	return carry, nil
}

// vacationFutureAccrue returns the rate multiplied by the remaining
// accrual months this year. The next accrual date is the 1st of next
// month, or the hire-derived first accrual month if that is later.
func vacationFutureAccrue(hire, asOf workday.Date, rate decimal.Decimal) decimal.Decimal {
	year := asOf.Year()
	next := workday.MonthStart(year, asOf.Month()).AddMonths(1)

	if hire.Year() == year {
		first := workday.MonthStart(year, hire.Month())
		if hire.Day() > 1 {
			first = first.AddMonths(1)
		}
		if first.After(next) {
			next = first
		}
	}

	if next.Year() > year {
		return decimal.Zero
	}
	remaining := 12 - int(next.Month()) + 1
	return rate.Mul(decimal.NewFromInt(int64(remaining)))
}

// =============================================================================
// SICK LEAVE
// =============================================================================

// SickLeave computes the sick-leave entitlement for a user as of the
// given reference date.
func (s *AccrualService) SickLeave(ctx context.Context, userID string, asOf workday.Date) (SickLeaveEntitlement, error) {
	settings, err := s.policy.Get(ctx)
	if err != nil {
		return SickLeaveEntitlement{}, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return SickLeaveEntitlement{}, err
	}

	ent := SickLeaveEntitlement{
		CurrentlyAllowed:            decimal.Zero,
		AccruedThisYear:             decimal.Zero,
		WithCertificateLimit:        settings.SickLeaveWithCertificateLimit,
		WithoutCertificateLimit:     settings.SickLeaveWithoutCertificateLimit,
		RemainingWithCertificate:    settings.SickLeaveWithCertificateLimit,
		RemainingWithoutCertificate: settings.SickLeaveWithoutCertificateLimit,
	}
	if user.HireDate == nil {
		return ent, nil
	}
	hire := *user.HireDate
	year := asOf.Year()

	// No trial gate and no partial-month subtraction: sick leave
	// accrues from year start (or hire month) regardless of trial.
	months := int(asOf.Month())
	if hire.Year() == year {
		months = int(asOf.Month()) - int(hire.Month()) + 1
		if months < 0 {
			months = 0
		}
	}
	monthlyQuota := decimal.NewFromInt(sickLeaveAnnualQuota).Div(decimal.NewFromInt(12))
	accrued := monthlyQuota.Mul(decimal.NewFromInt(int64(months)))

	absences, err := s.absences.FindAbsences(ctx, AbsenceFilter{
		UserID:     userID,
		Type:       TypeSickLeave,
		StatusNot:  StatusRejected,
		StartingIn: rangePtr(YearRange(year)),
	})
	if err != nil {
		return SickLeaveEntitlement{}, persistenceErr("load sick-leave absences", err)
	}

	approved, pending := 0, 0
	usedWith, usedWithout := 0, 0
	for i := range absences {
		a := &absences[i]
		days := a.WorkingDays()
		switch a.Status {
		case StatusApproved:
			approved += days
		case StatusPending:
			pending += days
		}
		if a.HasCertificate() {
			usedWith += days
		} else {
			usedWithout += days
		}
	}

	allowed := accrued.
		Sub(decimal.NewFromInt(int64(approved))).
		Sub(decimal.NewFromInt(int64(pending)))
	if allowed.IsNegative() {
		allowed = decimal.Zero
	}

	ent.AccruedThisYear = accrued.Round(2)
	ent.CurrentlyAllowed = allowed.Round(2)
	ent.ApprovedDays = approved
	ent.PendingDays = pending
	ent.UsedWithCertificate = usedWith
	ent.UsedWithoutCertificate = usedWithout
	ent.RemainingWithCertificate = floorAtZero(settings.SickLeaveWithCertificateLimit - usedWith)
	ent.RemainingWithoutCertificate = floorAtZero(settings.SickLeaveWithoutCertificateLimit - usedWithout)
	return ent, nil
}

// =============================================================================
// COMBINED VIEW
// =============================================================================

// GetAllEntitlements returns the four per-type breakdowns plus the
// user's full absence history. Read-only.
func (s *AccrualService) GetAllEntitlements(ctx context.Context, userID string, asOf workday.Date) (*Entitlements, error) {
	vacation, err := s.Vacation(ctx, userID, asOf)
	if err != nil {
		return nil, err
	}
	sick, err := s.SickLeave(ctx, userID, asOf)
	if err != nil {
		return nil, err
	}
	history, err := s.absences.FindAbsences(ctx, AbsenceFilter{UserID: userID})
	if err != nil {
		return nil, persistenceErr("load absence history", err)
	}

	return &Entitlements{
		Vacation:     vacation,
		SickLeave:    sick,
		DayOff:       Unlimited,
		WorkFromHome: Unlimited,
		History:      history,
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *AccrualService) getUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, persistenceErr("load user", err)
	}
	if user == nil {
		return nil, &NotFoundError{Kind: "user", ID: userID}
	}
	return user, nil
}

func floorAtZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func rangePtr(r DateRange) *DateRange { return &r }
