/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with clients and the converters from
  domain types. Day amounts computed with decimals are serialized as
  strings so clients never see binary-float artifacts.

CONVENTIONS:
  - Calendar days travel as "YYYY-MM-DD" strings
  - Timestamps travel as RFC3339
  - Certificate file content is uploaded base64-encoded

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Handler implementations using these types
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateUserRequest registers or updates an employee directory record.
type CreateUserRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	HireDate string `json:"hireDate,omitempty"` // YYYY-MM-DD
	IsAdmin  bool   `json:"isAdmin,omitempty"`
}

// CertificateFileDTO is one uploaded certificate file.
type CertificateFileDTO struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"` // base64
}

// CreateAbsenceRequest submits a new absence for admission.
type CreateAbsenceRequest struct {
	UserID string               `json:"userId"`
	Type   string               `json:"type"`
	From   string               `json:"from"` // YYYY-MM-DD
	To     string               `json:"to"`   // YYYY-MM-DD
	Files  []CertificateFileDTO `json:"files,omitempty"`
}

// AttachCertificatesRequest appends files to an existing absence.
type AttachCertificatesRequest struct {
	Files []CertificateFileDTO `json:"files"`
}

// UpdateStatusRequest moves an absence through the review workflow.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// SettingsDTO is the settings row in both directions.
type SettingsDTO struct {
	VacationMonthlyAccrual           string `json:"vacationMonthlyAccrual"`
	SickLeaveWithoutCertificateLimit int    `json:"sickLeaveWithoutCertificateLimit"`
	SickLeaveWithCertificateLimit    int    `json:"sickLeaveWithCertificateLimit"`
	VacationCarryoverLimit           int    `json:"vacationCarryoverLimit"`
	VacationNoticeEnabled            bool   `json:"vacationNoticeEnabled"`
	BackdatingLimitEnabled           bool   `json:"backdatingLimitEnabled"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type UserDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	HireDate string `json:"hireDate,omitempty"`
	IsAdmin  bool   `json:"isAdmin"`
}

type CertificateDTO struct {
	ID           string `json:"id"`
	AbsenceID    string `json:"absenceId"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType,omitempty"`
	Size         int64  `json:"size"`
	CreatedAt    string `json:"createdAt"`
}

type AbsenceDTO struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	Type         string           `json:"type"`
	From         string           `json:"from"`
	To           string           `json:"to"`
	Status       string           `json:"status"`
	WorkingDays  int              `json:"workingDays"`
	CalendarDays int              `json:"calendarDays"`
	Certificates []CertificateDTO `json:"certificates"`
	CreatedAt    string           `json:"createdAt"`
}

type VacationEntitlementDTO struct {
	CurrentlyAllowed string `json:"currentlyAllowed"`
	AccruedThisYear  string `json:"accruedThisYear"`
	Carryover        string `json:"carryover"`
	ApprovedDays     int    `json:"approvedDays"`
	PendingDays      int    `json:"pendingDays"`
	FutureAccrue     string `json:"futureAccrue"`
	MonthlyRate      string `json:"monthlyRate"`
}

type SickLeaveEntitlementDTO struct {
	CurrentlyAllowed            string `json:"currentlyAllowed"`
	AccruedThisYear             string `json:"accruedThisYear"`
	ApprovedDays                int    `json:"approvedDays"`
	PendingDays                 int    `json:"pendingDays"`
	UsedWithCertificate         int    `json:"usedWithCertificate"`
	UsedWithoutCertificate      int    `json:"usedWithoutCertificate"`
	RemainingWithCertificate    int    `json:"remainingWithCertificate"`
	RemainingWithoutCertificate int    `json:"remainingWithoutCertificate"`
	WithCertificateLimit        int    `json:"withCertificateLimit"`
	WithoutCertificateLimit     int    `json:"withoutCertificateLimit"`
}

type EntitlementsDTO struct {
	Vacation     VacationEntitlementDTO  `json:"vacation"`
	SickLeave    SickLeaveEntitlementDTO `json:"sickLeave"`
	DayOff       string                  `json:"dayOff"`
	WorkFromHome string                  `json:"workFromHome"`
	History      []AbsenceDTO            `json:"history"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toUserDTO(u leave.User) UserDTO {
	dto := UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, IsAdmin: u.IsAdmin}
	if u.HireDate != nil {
		dto.HireDate = u.HireDate.String()
	}
	return dto
}

func toCertificateDTO(c leave.Certificate) CertificateDTO {
	return CertificateDTO{
		ID:           c.ID,
		AbsenceID:    c.AbsenceID,
		OriginalName: c.OriginalName,
		MimeType:     c.MimeType,
		Size:         c.Size,
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
	}
}

func toAbsenceDTO(a *leave.Absence) AbsenceDTO {
	certs := make([]CertificateDTO, len(a.Certificates))
	for i, c := range a.Certificates {
		certs[i] = toCertificateDTO(c)
	}
	return AbsenceDTO{
		ID:           a.ID,
		UserID:       a.UserID,
		Type:         string(a.Type),
		From:         a.From.String(),
		To:           a.To.String(),
		Status:       string(a.Status),
		WorkingDays:  a.WorkingDays(),
		CalendarDays: a.CalendarDays(),
		Certificates: certs,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
}

func toAbsenceDTOs(absences []leave.Absence) []AbsenceDTO {
	dtos := make([]AbsenceDTO, len(absences))
	for i := range absences {
		dtos[i] = toAbsenceDTO(&absences[i])
	}
	return dtos
}

func toEntitlementsDTO(e *leave.Entitlements) EntitlementsDTO {
	return EntitlementsDTO{
		Vacation: VacationEntitlementDTO{
			CurrentlyAllowed: e.Vacation.CurrentlyAllowed.String(),
			AccruedThisYear:  e.Vacation.AccruedThisYear.String(),
			Carryover:        e.Vacation.Carryover.String(),
			ApprovedDays:     e.Vacation.ApprovedDays,
			PendingDays:      e.Vacation.PendingDays,
			FutureAccrue:     e.Vacation.FutureAccrue.String(),
			MonthlyRate:      e.Vacation.MonthlyRate.String(),
		},
		SickLeave: SickLeaveEntitlementDTO{
			CurrentlyAllowed:            e.SickLeave.CurrentlyAllowed.String(),
			AccruedThisYear:             e.SickLeave.AccruedThisYear.String(),
			ApprovedDays:                e.SickLeave.ApprovedDays,
			PendingDays:                 e.SickLeave.PendingDays,
			UsedWithCertificate:         e.SickLeave.UsedWithCertificate,
			UsedWithoutCertificate:      e.SickLeave.UsedWithoutCertificate,
			RemainingWithCertificate:    e.SickLeave.RemainingWithCertificate,
			RemainingWithoutCertificate: e.SickLeave.RemainingWithoutCertificate,
			WithCertificateLimit:        e.SickLeave.WithCertificateLimit,
			WithoutCertificateLimit:     e.SickLeave.WithoutCertificateLimit,
		},
		DayOff:       e.DayOff,
		WorkFromHome: e.WorkFromHome,
		History:      toAbsenceDTOs(e.History),
	}
}

func toSettingsDTO(s leave.PolicySettings) SettingsDTO {
	return SettingsDTO{
		VacationMonthlyAccrual:           s.VacationMonthlyAccrual.String(),
		SickLeaveWithoutCertificateLimit: s.SickLeaveWithoutCertificateLimit,
		SickLeaveWithCertificateLimit:    s.SickLeaveWithCertificateLimit,
		VacationCarryoverLimit:           s.VacationCarryoverLimit,
		VacationNoticeEnabled:            s.Rules.VacationNoticeEnabled,
		BackdatingLimitEnabled:           s.Rules.BackdatingLimitEnabled,
	}
}
