/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the domain services.

ENDPOINTS:
  Users:
    GET    /api/users                   List all users
    POST   /api/users                   Create or update a user
    GET    /api/users/{id}              Get user details
    GET    /api/users/{id}/entitlements Entitlement breakdown

  Absences:
    POST   /api/absences                     Submit an absence request
    GET    /api/absences                     List absences (filterable)
    GET    /api/absences/{id}                Get one absence
    PUT    /api/absences/{id}/status         Approve/reject (admin)
    POST   /api/absences/{id}/certificates   Attach certificate files
    DELETE /api/certificates/{id}            Delete a certificate

  Settings:
    GET    /api/settings                Current policy settings
    PUT    /api/settings                Update settings (admin)

ERROR HANDLING:
  Domain errors map onto HTTP status codes:
  - 400: Validation errors, malformed input
  - 403: Actor not permitted
  - 404: Record not found
  - 422: Policy rejection (gates, quotas)
  - 502: File storage failure
  - 500: Persistence and other internal errors

ACTOR IDENTITY:
  Authentication is an external collaborator. The acting user arrives in
  the X-Actor-ID header, with X-Actor-Admin set to "true" for admins.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/workday"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Directory is the user-store surface the API needs, a superset of the
// engine's read-only leave.UserDirectory.
type Directory interface {
	leave.UserDirectory
	SaveUser(ctx context.Context, u leave.User) error
	ListUsers(ctx context.Context) ([]leave.User, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Users     Directory
	Absences  leave.AbsenceRepository
	Admission *leave.AdmissionService
	Accrual   *leave.AccrualService
	Policy    *leave.PolicyService
	Logger    *logrus.Logger
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(users Directory, absences leave.AbsenceRepository, admission *leave.AdmissionService, accrual *leave.AccrualService, policy *leave.PolicyService, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		Users:     users,
		Absences:  absences,
		Admission: admission,
		Accrual:   accrual,
		Policy:    policy,
		Logger:    logger,
	}
}

// actorFrom extracts the acting user from request headers.
func actorFrom(r *http.Request) leave.Actor {
	return leave.Actor{
		UserID:  r.Header.Get("X-Actor-ID"),
		IsAdmin: r.Header.Get("X-Actor-Admin") == "true",
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser creates or updates a user record.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	user := leave.User{ID: req.ID, Name: req.Name, Email: req.Email, IsAdmin: req.IsAdmin}
	if req.HireDate != "" {
		d, err := workday.Parse(req.HireDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hire date", err)
			return
		}
		user.HireDate = &d
	}

	if err := h.Users.SaveUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// GetUser returns a single user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.Users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// GetEntitlements returns the entitlement breakdown for a user. The
// reference date defaults to today and can be overridden with ?asOf=.
func (h *Handler) GetEntitlements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	asOf := workday.Today()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		d, err := workday.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid asOf date", err)
			return
		}
		asOf = d
	}

	ents, err := h.Accrual.GetAllEntitlements(r.Context(), id, asOf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntitlementsDTO(ents))
}

// =============================================================================
// ABSENCE HANDLERS
// =============================================================================

// CreateAbsence submits a new absence request through admission control.
func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	var req CreateAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	from, err := workday.Parse(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := workday.Parse(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}

	files, err := decodeFiles(req.Files)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid certificate file", err)
		return
	}

	absence, err := h.Admission.Admit(r.Context(), leave.AdmissionRequest{
		UserID: req.UserID,
		Type:   leave.AbsenceType(req.Type),
		From:   from,
		To:     to,
		Files:  files,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAbsenceDTO(absence))
}

// ListAbsences returns absences matching the query filters.
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	filter := leave.AbsenceFilter{
		UserID: r.URL.Query().Get("userId"),
		Type:   leave.AbsenceType(r.URL.Query().Get("type")),
	}
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		yr := leave.YearRange(year)
		filter.StartingIn = &yr
	}

	absences, err := h.Absences.FindAbsences(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list absences", err)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTOs(absences))
}

// GetAbsence returns one absence with its certificates.
func (h *Handler) GetAbsence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	absence, err := h.Absences.GetAbsence(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get absence", err)
		return
	}
	if absence == nil {
		writeError(w, http.StatusNotFound, "Absence not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceDTO(absence))
}

// UpdateAbsenceStatus approves or rejects an absence. Admin only.
func (h *Handler) UpdateAbsenceStatus(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsAdmin {
		writeError(w, http.StatusForbidden, "Only administrators can change absence status", nil)
		return
	}

	id := chi.URLParam(r, "id")
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := leave.AbsenceStatus(req.Status)
	switch status {
	case leave.StatusPending, leave.StatusApproved, leave.StatusRejected:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status", nil)
		return
	}

	absence, err := h.Absences.GetAbsence(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get absence", err)
		return
	}
	if absence == nil {
		writeError(w, http.StatusNotFound, "Absence not found", nil)
		return
	}

	if err := h.Absences.UpdateAbsenceStatus(r.Context(), id, status); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update status", err)
		return
	}
	absence.Status = status
	writeJSON(w, http.StatusOK, toAbsenceDTO(absence))
}

// =============================================================================
// CERTIFICATE HANDLERS
// =============================================================================

// AttachCertificates appends certificate files to an existing absence.
func (h *Handler) AttachCertificates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AttachCertificatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	files, err := decodeFiles(req.Files)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid certificate file", err)
		return
	}

	certs, err := h.Admission.AttachCertificates(r.Context(), actorFrom(r), id, files)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]CertificateDTO, len(certs))
	for i, c := range certs {
		dtos[i] = toCertificateDTO(c)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// DeleteCertificate removes one certificate file and its metadata.
func (h *Handler) DeleteCertificate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Admission.DeleteCertificate(r.Context(), actorFrom(r), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the global policy settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Policy.Get(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(settings))
}

// UpdateSettings replaces the global policy settings. Admin only.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.IsAdmin {
		writeError(w, http.StatusForbidden, "Only administrators can change settings", nil)
		return
	}

	var req SettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	accrual, err := decimal.NewFromString(req.VacationMonthlyAccrual)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid accrual rate", err)
		return
	}

	next := leave.PolicySettings{
		VacationMonthlyAccrual:           accrual,
		SickLeaveWithoutCertificateLimit: req.SickLeaveWithoutCertificateLimit,
		SickLeaveWithCertificateLimit:    req.SickLeaveWithCertificateLimit,
		VacationCarryoverLimit:           req.VacationCarryoverLimit,
		Rules: leave.RuleFlags{
			VacationNoticeEnabled:  req.VacationNoticeEnabled,
			BackdatingLimitEnabled: req.BackdatingLimitEnabled,
		},
	}

	saved, err := h.Policy.Update(r.Context(), next, actor.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(saved))
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeFiles(dtos []CertificateFileDTO) ([]leave.CertificateUpload, error) {
	var files []leave.CertificateUpload
	for _, f := range dtos {
		data, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			return nil, err
		}
		files = append(files, leave.CertificateUpload{
			Name:     f.Name,
			MimeType: f.MimeType,
			Data:     data,
		})
	}
	return files, nil
}

// writeDomainError maps domain errors onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case leave.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case leave.IsPolicyRejection(err):
		writeError(w, http.StatusUnprocessableEntity, "Request rejected by policy", err)
	case errors.Is(err, leave.ErrStorageFailure):
		writeError(w, http.StatusBadGateway, "File storage failure", err)
	default:
		h.Logger.WithError(err).Error("internal error")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
