/*
admission.go - Admission control for new absence requests

PURPOSE:
  Decides synchronously, at creation time, whether a proposed absence is
  admitted. All checks are advisory gates: a failed check aborts
  creation with no partial writes. Certificate files uploaded with the
  request are only persisted once every gate has passed; if storage or
  metadata persistence fails after the absence row was created, the row
  is deleted again (compensating rollback).

GATES, IN ORDER:
  1. Input validation   - to >= from, inclusive span <= 30 calendar days
  2. File-type gate     - certificates only on sick leave
  3. Vacation gates     - user exists, trial period complete, optional
                          notice-period rule (default OFF)
  4. Sick-leave gates   - multi-day certificate requirement, adjacent-day
                          certificate inheritance, outstanding-uncertified
                          guard, per-year annual quota
  5. Commit             - absence row (pending), then files + metadata

CONCURRENCY:
  Each admission runs as an independent stateless computation against
  the current persisted data; two concurrent requests can both read the
  same used-days snapshot and together exceed a quota. Quotas are
  advisory workplace policy, so this optimistic race is accepted.

SEE ALSO:
  - accrual.go: Shares the same working-day math and settings
  - store.go: Collaborator contracts used here
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/workday"
)

// CertificateUpload is one in-request certificate file.
type CertificateUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

// AdmissionRequest is a proposed new absence.
type AdmissionRequest struct {
	UserID string
	Type   AbsenceType
	From   workday.Date
	To     workday.Date
	Files  []CertificateUpload
}

// AdmissionService evaluates and commits absence requests.
type AdmissionService struct {
	users        UserDirectory
	absences     AbsenceRepository
	certificates CertificateRepository
	files        FileStore
	policy       *PolicyService
	logger       *logrus.Logger

	// now is the reference clock, overridable in tests.
	now func() workday.Date
}

func NewAdmissionService(
	users UserDirectory,
	absences AbsenceRepository,
	certificates CertificateRepository,
	files FileStore,
	policy *PolicyService,
	logger *logrus.Logger,
) *AdmissionService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AdmissionService{
		users:        users,
		absences:     absences,
		certificates: certificates,
		files:        files,
		policy:       policy,
		logger:       logger,
		now:          workday.Today,
	}
}

// SetClock overrides the reference clock used for today-relative gates.
func (s *AdmissionService) SetClock(now func() workday.Date) {
	s.now = now
}

// =============================================================================
// ADMIT - Gate evaluation and commit
// =============================================================================

// Admit evaluates the request against every gate and, on acceptance,
// creates the pending absence with its certificate files.
func (s *AdmissionService) Admit(ctx context.Context, req AdmissionRequest) (*Absence, error) {
	settings, err := s.policy.Get(ctx)
	if err != nil {
		return nil, err
	}

	if err := validateRange(req); err != nil {
		return nil, err
	}

	// Gate 1: certificate files only belong on sick leave.
	if len(req.Files) > 0 && req.Type != TypeSickLeave {
		return nil, &RejectionError{Reason: "certificate files can only be attached to sick leave"}
	}

	today := s.now()

	if settings.Rules.BackdatingLimitEnabled && req.From.Before(today.AddDays(-BackdatingLimitDays)) {
		return nil, &RejectionError{Reason: fmt.Sprintf(
			"absences cannot start more than %d days in the past", BackdatingLimitDays)}
	}

	switch req.Type {
	case TypeVacation:
		if err := s.vacationGates(ctx, req, settings, today); err != nil {
			return nil, err
		}
	case TypeSickLeave:
		if err := s.sickLeaveGates(ctx, req, settings); err != nil {
			return nil, err
		}
	}

	return s.commit(ctx, req)
}

func validateRange(req AdmissionRequest) error {
	if !ValidType(req.Type) {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown absence type %q", req.Type)}
	}
	if req.From.IsZero() || req.To.IsZero() {
		return &ValidationError{Field: "dates", Message: "from and to dates are required"}
	}
	if req.To.Before(req.From) {
		return &ValidationError{Field: "dates", Message: "end date must not be before start date"}
	}
	if workday.CalendarDays(req.From, req.To) > MaxAbsenceSpanDays {
		return &ValidationError{Field: "dates", Message: fmt.Sprintf(
			"absence cannot span more than %d calendar days", MaxAbsenceSpanDays)}
	}
	return nil
}

// =============================================================================
// VACATION GATES
// =============================================================================

func (s *AdmissionService) vacationGates(ctx context.Context, req AdmissionRequest, settings PolicySettings, today workday.Date) error {
	user, err := s.users.GetUser(ctx, req.UserID)
	if err != nil {
		return persistenceErr("load user", err)
	}
	if user == nil {
		return &NotFoundError{Kind: "user", ID: req.UserID}
	}

	if !user.TrialComplete(today) {
		return &RejectionError{Reason: "vacation is not available during the trial period; please contact an administrator"}
	}

	if settings.Rules.VacationNoticeEnabled {
		earliest := workday.AddWorkingDays(today, VacationNoticeWorkingDays)
		if req.From.Before(earliest) {
			return &RejectionError{Reason: fmt.Sprintf(
				"vacation requests need at least %d working days notice", VacationNoticeWorkingDays)}
		}
	}
	return nil
}

// =============================================================================
// SICK-LEAVE GATES
// =============================================================================

func (s *AdmissionService) sickLeaveGates(ctx context.Context, req AdmissionRequest, settings PolicySettings) error {
	hasCertificate := len(req.Files) > 0

	// Gate a: multi-day requests require a certificate. Calendar days,
	// not working days: a Friday-to-Monday span counts as four.
	if workday.CalendarDays(req.From, req.To) >= 2 && !hasCertificate {
		return &RejectionError{Reason: "sick leave longer than one day requires a certificate"}
	}

	if !hasCertificate {
		// Gates b and c only apply to single uncertified days.
		if err := s.adjacentDayGate(ctx, req); err != nil {
			return err
		}
		if err := s.outstandingUncertifiedGate(ctx, req); err != nil {
			return err
		}
	}

	return s.annualQuotaGate(ctx, req, settings, hasCertificate)
}

// adjacentDayGate rejects an uncertified single day that would chain
// onto another uncertified sick-leave absence on the day immediately
// before or after it.
func (s *AdmissionService) adjacentDayGate(ctx context.Context, req AdmissionRequest) error {
	day := req.From
	window := DateRange{Start: day.AddDays(-1), End: day.AddDays(1)}

	neighbors, err := s.absences.FindAbsences(ctx, AbsenceFilter{
		UserID:      req.UserID,
		Type:        TypeSickLeave,
		StatusNot:   StatusRejected,
		Overlapping: &window,
	})
	if err != nil {
		return persistenceErr("load adjacent sick-leave absences", err)
	}

	adjacentExists, adjacentCertified := false, false
	for i := range neighbors {
		a := &neighbors[i]
		if !a.Overlaps(day.AddDays(-1), day.AddDays(-1)) && !a.Overlaps(day.AddDays(1), day.AddDays(1)) {
			continue
		}
		adjacentExists = true
		if a.HasCertificate() {
			adjacentCertified = true
		}
	}

	if adjacentExists && !adjacentCertified {
		return &RejectionError{Reason: "an adjacent sick-leave day without a certificate already exists; attach a certificate"}
	}
	return nil
}

// outstandingUncertifiedGate allows at most one uncertified sick day
// pending certification per calendar year.
func (s *AdmissionService) outstandingUncertifiedGate(ctx context.Context, req AdmissionRequest) error {
	year := YearRange(req.From.Year())
	existing, err := s.absences.FindAbsences(ctx, AbsenceFilter{
		UserID:     req.UserID,
		Type:       TypeSickLeave,
		StatusNot:  StatusRejected,
		StartingIn: &year,
	})
	if err != nil {
		return persistenceErr("load sick-leave absences", err)
	}

	for i := range existing {
		if !existing[i].HasCertificate() {
			return &RejectionError{Reason: "an uncertified sick-leave day already exists this year; attach a certificate"}
		}
	}
	return nil
}

// annualQuotaGate enforces the per-year certificate-split caps. A span
// straddling a year boundary is apportioned to each year it touches.
func (s *AdmissionService) annualQuotaGate(ctx context.Context, req AdmissionRequest, settings PolicySettings, hasCertificate bool) error {
	for year := req.From.Year(); year <= req.To.Year(); year++ {
		yr := YearRange(year)
		newDays := workday.CountWorkingDaysWithinRange(req.From, req.To, yr.Start, yr.End)
		if newDays == 0 {
			continue
		}

		existing, err := s.absences.FindAbsences(ctx, AbsenceFilter{
			UserID:      req.UserID,
			Type:        TypeSickLeave,
			StatusNot:   StatusRejected,
			Overlapping: &yr,
		})
		if err != nil {
			return persistenceErr("load sick-leave absences", err)
		}

		usedWith, usedWithout := 0, 0
		for i := range existing {
			a := &existing[i]
			days := workday.CountWorkingDaysWithinRange(a.From, a.To, yr.Start, yr.End)
			if a.HasCertificate() {
				usedWith += days
			} else {
				usedWithout += days
			}
		}

		if hasCertificate {
			if usedWith+newDays > settings.SickLeaveWithCertificateLimit {
				return &QuotaExceededError{
					Year: year, Certificated: true,
					UsedDays: usedWith, RequestedDays: newDays,
					Limit: settings.SickLeaveWithCertificateLimit,
				}
			}
		} else {
			if usedWithout+newDays > settings.SickLeaveWithoutCertificateLimit {
				return &QuotaExceededError{
					Year: year, Certificated: false,
					UsedDays: usedWithout, RequestedDays: newDays,
					Limit: settings.SickLeaveWithoutCertificateLimit,
				}
			}
		}
	}
	return nil
}

// =============================================================================
// COMMIT - Absence row, files, metadata, compensating rollback
// =============================================================================

func (s *AdmissionService) commit(ctx context.Context, req AdmissionRequest) (*Absence, error) {
	now := time.Now().UTC()
	absence := &Absence{
		ID:        newID("abs"),
		UserID:    req.UserID,
		Type:      req.Type,
		From:      req.From,
		To:        req.To,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.absences.CreateAbsence(ctx, absence); err != nil {
		return nil, persistenceErr("create absence", err)
	}

	if req.Type == TypeSickLeave && len(req.Files) > 0 {
		certs, err := s.storeCertificates(ctx, absence.ID, req.Files)
		if err != nil {
			// Compensating rollback: never leave an orphaned pending
			// absence with missing files.
			s.rollbackAbsence(ctx, absence.ID, certs)
			return nil, err
		}
		absence.Certificates = certs
	}

	s.logger.WithFields(logrus.Fields{
		"absence": absence.ID,
		"user":    req.UserID,
		"type":    req.Type,
		"from":    req.From.String(),
		"to":      req.To.String(),
	}).Info("absence admitted")
	return absence, nil
}

// storeCertificates writes each file to storage then its metadata row.
// On failure it returns the certificates persisted so far so the caller
// can undo them.
func (s *AdmissionService) storeCertificates(ctx context.Context, absenceID string, files []CertificateUpload) ([]Certificate, error) {
	var stored []Certificate
	for i, f := range files {
		key := fmt.Sprintf("%s-%d-%s", absenceID, i, f.Name)
		obj, err := s.files.SaveFile(ctx, f.Data, key)
		if err != nil {
			return stored, &StorageError{Op: "save", Path: key, Err: err}
		}

		cert := Certificate{
			ID:           newID("cert"),
			AbsenceID:    absenceID,
			StoragePath:  obj.StoragePath,
			OriginalName: f.Name,
			MimeType:     f.MimeType,
			Size:         int64(len(f.Data)),
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.certificates.CreateCertificate(ctx, &cert); err != nil {
			// The file is on disk but unreferenced; remove it too.
			_ = s.files.DeleteFile(ctx, obj.StoragePath)
			return stored, persistenceErr("create certificate metadata", err)
		}
		stored = append(stored, cert)
	}
	return stored, nil
}

func (s *AdmissionService) rollbackAbsence(ctx context.Context, absenceID string, certs []Certificate) {
	for _, c := range certs {
		_ = s.files.DeleteFile(ctx, c.StoragePath)
		if err := s.certificates.DeleteCertificate(ctx, c.ID); err != nil {
			s.logger.WithError(err).WithField("certificate", c.ID).Error("rollback: failed to delete certificate metadata")
		}
	}
	if err := s.absences.DeleteAbsence(ctx, absenceID); err != nil {
		s.logger.WithError(err).WithField("absence", absenceID).Error("rollback: failed to delete absence")
	}
}

// =============================================================================
// POST-ADMISSION FILE OPERATIONS
// =============================================================================

// Actor identifies who is performing a post-admission file operation.
// Authorization middleware is an external collaborator; the engine only
// checks ownership and the admin bit.
type Actor struct {
	UserID  string
	IsAdmin bool
}

func (a Actor) mayTouch(absence *Absence) bool {
	return a.IsAdmin || a.UserID == absence.UserID
}

// AttachCertificates appends certificate files to an existing sick-leave
// absence. Attaching to an absence that already ended while not pending
// resets it to pending, deliberately re-triggering review.
func (s *AdmissionService) AttachCertificates(ctx context.Context, actor Actor, absenceID string, files []CertificateUpload) ([]Certificate, error) {
	absence, err := s.absences.GetAbsence(ctx, absenceID)
	if err != nil {
		return nil, persistenceErr("load absence", err)
	}
	if absence == nil {
		return nil, &NotFoundError{Kind: "absence", ID: absenceID}
	}
	if !actor.mayTouch(absence) {
		return nil, &RejectionError{Reason: "only the absence owner or an administrator can attach certificates"}
	}
	if absence.Type != TypeSickLeave {
		return nil, &RejectionError{Reason: "certificates can only be attached to sick leave"}
	}
	if len(files) == 0 {
		return nil, &ValidationError{Field: "files", Message: "at least one file is required"}
	}

	certs, err := s.storeCertificates(ctx, absenceID, files)
	if err != nil {
		// No absence rollback here: the absence pre-exists this call.
		for _, c := range certs {
			_ = s.files.DeleteFile(ctx, c.StoragePath)
			_ = s.certificates.DeleteCertificate(ctx, c.ID)
		}
		return nil, err
	}

	if absence.To.Before(s.now()) && absence.Status != StatusPending {
		if err := s.absences.UpdateAbsenceStatus(ctx, absenceID, StatusPending); err != nil {
			return nil, persistenceErr("reset absence to pending", err)
		}
		s.logger.WithField("absence", absenceID).Info("past absence re-opened for review after certificate upload")
	}

	return certs, nil
}

// DeleteCertificate removes one certificate file and its metadata row.
// Allowed only while the parent absence is not approved and starts
// today or later; this guards against rewriting history on past or
// already-approved leave.
func (s *AdmissionService) DeleteCertificate(ctx context.Context, actor Actor, certificateID string) error {
	cert, absence, err := s.certificates.GetCertificateWithAbsence(ctx, certificateID)
	if err != nil {
		return persistenceErr("load certificate", err)
	}
	if cert == nil || absence == nil {
		return &NotFoundError{Kind: "certificate", ID: certificateID}
	}
	if !actor.mayTouch(absence) {
		return &RejectionError{Reason: "only the absence owner or an administrator can delete certificates"}
	}
	if absence.Status == StatusApproved {
		return &RejectionError{Reason: "certificates cannot be deleted from an approved absence"}
	}
	if absence.From.Before(s.now()) {
		return &RejectionError{Reason: "certificates cannot be deleted from an absence that already started"}
	}

	// Missing on disk is success: the delete is idempotent.
	if err := s.files.DeleteFile(ctx, cert.StoragePath); err != nil {
		return &StorageError{Op: "delete", Path: cert.StoragePath, Err: err}
	}
	if err := s.certificates.DeleteCertificate(ctx, certificateID); err != nil {
		return persistenceErr("delete certificate metadata", err)
	}

	s.logger.WithFields(logrus.Fields{
		"certificate": certificateID,
		"absence":     absence.ID,
	}).Info("certificate deleted")
	return nil
}
