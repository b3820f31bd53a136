/*
Package leave implements the leave accrual and admission-control engine.

PURPOSE:
  Computes how many vacation and sick-leave days an employee currently
  holds, has pending, or will accrue (accrual calculator), and decides
  whether a new absence request may be admitted (admission controller),
  enforcing certificate requirements, adjacent-day certificate
  inheritance, and annual caps.

KEY CONCEPTS IN THIS FILE (types.go):
  - Absence: An inclusive date range of one absence type with a status
  - Certificate: A supporting document attached to a sick-leave absence
  - PolicySettings: The global policy knobs (accrual rate, annual caps)
  - Entitlements: The per-type balance breakdown shown to the user

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all day amounts, rounded to 2 places
     for display.
  2. Explicit policy: settings are loaded once per operation and passed
     down as a value, never read ambiently.
  3. Advisory gates: a failed admission check aborts with no partial
     writes.

SEE ALSO:
  - accrual.go: Entitlement calculation
  - admission.go: Request gates and commit
  - policy.go: Settings load/update with audit log
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/workday"
)

// =============================================================================
// ABSENCE
// =============================================================================

type AbsenceType string

const (
	TypeVacation     AbsenceType = "vacation"
	TypeSickLeave    AbsenceType = "sick_leave"
	TypeDayOff       AbsenceType = "day_off"
	TypeWorkFromHome AbsenceType = "work_from_home"
)

// ValidType reports whether t is one of the known absence types.
func ValidType(t AbsenceType) bool {
	switch t {
	case TypeVacation, TypeSickLeave, TypeDayOff, TypeWorkFromHome:
		return true
	}
	return false
}

type AbsenceStatus string

const (
	StatusPending  AbsenceStatus = "pending"
	StatusApproved AbsenceStatus = "approved"
	StatusRejected AbsenceStatus = "rejected"
)

// MaxAbsenceSpanDays is the inclusive calendar-day cap on a single
// absence range, enforced at admission.
const MaxAbsenceSpanDays = 30

// Absence is one absence record. From and To are inclusive; From <= To.
type Absence struct {
	ID           string
	UserID       string
	Type         AbsenceType
	From         workday.Date
	To           workday.Date
	Status       AbsenceStatus
	Certificates []Certificate
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WorkingDays returns the unclamped working-day length of the absence.
func (a *Absence) WorkingDays() int {
	return workday.CountWorkingDays(a.From, a.To)
}

// CalendarDays returns the inclusive calendar-day span.
func (a *Absence) CalendarDays() int {
	return workday.CalendarDays(a.From, a.To)
}

// HasCertificate reports whether at least one certificate file is
// attached, which marks the absence "certificated" for annual-limit
// accounting.
func (a *Absence) HasCertificate() bool {
	return len(a.Certificates) > 0
}

// Overlaps reports whether the absence touches any day of [from, to].
func (a *Absence) Overlaps(from, to workday.Date) bool {
	return a.From.BeforeOrEqual(to) && a.To.AfterOrEqual(from)
}

// Certificate is the metadata row for one stored certificate file.
type Certificate struct {
	ID           string
	AbsenceID    string
	StoragePath  string
	OriginalName string
	MimeType     string
	Size         int64
	CreatedAt    time.Time
}

// =============================================================================
// USER - Read-only view from the employee directory
// =============================================================================

// User is the slice of the employee record this engine reads. A missing
// HireDate forces zero entitlement.
type User struct {
	ID       string
	Name     string
	Email    string
	HireDate *workday.Date
	IsAdmin  bool
}

// TrialPeriodMonths is the calendar-month trial window after hire during
// which vacation entitlement is withheld.
const TrialPeriodMonths = 3

// TrialComplete reports whether the user's trial period has ended as of
// the given day. Users with no hire date never complete trial.
func (u *User) TrialComplete(asOf workday.Date) bool {
	if u.HireDate == nil {
		return false
	}
	return u.HireDate.AddMonths(TrialPeriodMonths).BeforeOrEqual(asOf)
}

// =============================================================================
// POLICY SETTINGS - Global singleton, loaded per operation
// =============================================================================

// SettingsID is the fixed ID of the single global settings row.
const SettingsID = "global"

// PolicySettings holds the mutable global policy knobs.
type PolicySettings struct {
	// VacationMonthlyAccrual is the vacation days accrued per full
	// calendar month of service.
	VacationMonthlyAccrual decimal.Decimal

	// Annual sick-leave caps, split by certificate status.
	SickLeaveWithoutCertificateLimit int
	SickLeaveWithCertificateLimit    int

	// VacationCarryoverLimit caps the unused vacation days rolled in
	// from the previous year.
	VacationCarryoverLimit int

	Rules RuleFlags
}

// RuleFlags toggles policy rules that exist in the design but are
// disabled in the current deployment. Both default OFF.
type RuleFlags struct {
	// VacationNoticeEnabled enforces a minimum working-day lead time
	// on vacation requests.
	VacationNoticeEnabled bool

	// BackdatingLimitEnabled rejects requests starting more than
	// BackdatingLimitDays calendar days in the past.
	BackdatingLimitEnabled bool
}

const (
	// VacationNoticeWorkingDays is the lead time the notice rule
	// enforces when enabled.
	VacationNoticeWorkingDays = 10

	// BackdatingLimitDays is the backdating window the backdating rule
	// enforces when enabled.
	BackdatingLimitDays = 14
)

// DefaultSettings returns the documented defaults used when the global
// row is created lazily on first read.
func DefaultSettings() PolicySettings {
	return PolicySettings{
		VacationMonthlyAccrual:           decimal.NewFromFloat(1.5),
		SickLeaveWithoutCertificateLimit: 5,
		SickLeaveWithCertificateLimit:    5,
		VacationCarryoverLimit:           0,
	}
}

// Equal reports whether two settings snapshots hold the same values.
func (s PolicySettings) Equal(other PolicySettings) bool {
	return s.VacationMonthlyAccrual.Equal(other.VacationMonthlyAccrual) &&
		s.SickLeaveWithoutCertificateLimit == other.SickLeaveWithoutCertificateLimit &&
		s.SickLeaveWithCertificateLimit == other.SickLeaveWithCertificateLimit &&
		s.VacationCarryoverLimit == other.VacationCarryoverLimit &&
		s.Rules == other.Rules
}

// SettingsChangeLog is one immutable audit record of a settings change.
type SettingsChangeLog struct {
	ID        string
	AdminID   string
	ChangedAt time.Time
	Before    PolicySettings
	After     PolicySettings
}

// =============================================================================
// ENTITLEMENTS - Computed balance breakdowns
// =============================================================================

// Unlimited is the sentinel reported for absence types not subject to
// accrual math (day off, work from home).
const Unlimited = "Unlimited"

// VacationEntitlement is the vacation balance breakdown as of a
// reference date. All amounts are rounded to 2 decimal places.
type VacationEntitlement struct {
	// CurrentlyAllowed can go negative to signal over-commitment.
	CurrentlyAllowed decimal.Decimal
	AccruedThisYear  decimal.Decimal
	Carryover        decimal.Decimal
	ApprovedDays     int
	PendingDays      int
	// FutureAccrue is what remains to accrue this year; during trial it
	// reports the configured monthly rate for forward-looking display.
	FutureAccrue decimal.Decimal
	MonthlyRate  decimal.Decimal
}

// SickLeaveEntitlement is the sick-leave balance breakdown.
type SickLeaveEntitlement struct {
	// CurrentlyAllowed is floored at zero, unlike vacation.
	CurrentlyAllowed decimal.Decimal
	AccruedThisYear  decimal.Decimal
	ApprovedDays     int
	PendingDays      int

	UsedWithCertificate    int
	UsedWithoutCertificate int

	RemainingWithCertificate    int
	RemainingWithoutCertificate int

	WithCertificateLimit    int
	WithoutCertificateLimit int
}

// Entitlements bundles the four per-type breakdowns plus the user's full
// absence history for display.
type Entitlements struct {
	Vacation     VacationEntitlement
	SickLeave    SickLeaveEntitlement
	DayOff       string // Unlimited sentinel
	WorkFromHome string // Unlimited sentinel
	History      []Absence
}
