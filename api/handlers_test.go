/*
handlers_test.go - HTTP-level tests for the API surface

Tests the full request path through the chi router with the in-memory
store: admission, entitlements, certificate lifecycle, and settings.
*/
package api_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/workday"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router http.Handler
	store  *memory.Store
	files  *memory.Files
}

// newTestServer pins the admission clock to Mon 2024-06-10.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	files := memory.NewFiles()
	policy := leave.NewPolicyService(store, nil)
	accrual := leave.NewAccrualService(store, store, policy)
	admission := leave.NewAdmissionService(store, store, store, files, policy, nil)
	admission.SetClock(func() workday.Date { return workday.New(2024, time.June, 10) })

	handler := api.NewHandler(store, store, admission, accrual, policy, nil)
	return &testServer{router: api.NewRouter(handler), store: store, files: files}
}

func (ts *testServer) request(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func createUser(t *testing.T, ts *testServer, id, hireDate string) {
	t.Helper()
	rec := ts.request(t, http.MethodPost, "/api/users", api.CreateUserRequest{
		ID: id, Name: "Test User", HireDate: hireDate,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
}

var adminHeaders = map[string]string{"X-Actor-ID": "admin-1", "X-Actor-Admin": "true"}

// =============================================================================
// USERS AND ENTITLEMENTS
// =============================================================================

func TestAPI_CreateAndGetUser(t *testing.T) {
	ts := newTestServer(t)
	createUser(t, ts, "emp-1", "2023-01-01")

	rec := ts.request(t, http.MethodGet, "/api/users/emp-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	user := decodeBody[api.UserDTO](t, rec)
	assert.Equal(t, "emp-1", user.ID)
	assert.Equal(t, "2023-01-01", user.HireDate)
}

func TestAPI_GetUser_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/users/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Entitlements(t *testing.T) {
	ts := newTestServer(t)
	createUser(t, ts, "emp-1", "2023-01-01")

	rec := ts.request(t, http.MethodGet, "/api/users/emp-1/entitlements?asOf=2024-06-15", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	ents := decodeBody[api.EntitlementsDTO](t, rec)
	assert.Equal(t, "9", ents.Vacation.CurrentlyAllowed)
	assert.Equal(t, "5", ents.SickLeave.AccruedThisYear)
	assert.Equal(t, leave.Unlimited, ents.DayOff)
	assert.Equal(t, leave.Unlimited, ents.WorkFromHome)
}

func TestAPI_Entitlements_BadDate(t *testing.T) {
	ts := newTestServer(t)
	createUser(t, ts, "emp-1", "2023-01-01")

	rec := ts.request(t, http.MethodGet, "/api/users/emp-1/entitlements?asOf=junk", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ABSENCES
// =============================================================================

func TestAPI_CreateAbsence(t *testing.T) {
	ts := newTestServer(t)
	createUser(t, ts, "emp-1", "2023-01-01")

	rec := ts.request(t, http.MethodPost, "/api/absences", api.CreateAbsenceRequest{
		UserID: "emp-1", Type: "vacation", From: "2024-07-01", To: "2024-07-05",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	absence := decodeBody[api.AbsenceDTO](t, rec)
	assert.Equal(t, "pending", absence.Status)
	assert.Equal(t, 5, absence.WorkingDays)
}

func TestAPI_CreateAbsence_PolicyRejection_Is422(t *testing.T) {
	ts := newTestServer(t)
	// Hired a month ago: still in trial.
	createUser(t, ts, "emp-1", "2024-05-01")

	rec := ts.request(t, http.MethodPost, "/api/absences", api.CreateAbsenceRequest{
		UserID: "emp-1", Type: "vacation", From: "2024-07-01", To: "2024-07-05",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPI_CreateAbsence_Validation_Is400(t *testing.T) {
	ts := newTestServer(t)
	createUser(t, ts, "emp-1", "2023-01-01")

	rec := ts.request(t, http.MethodPost, "/api/absences", api.CreateAbsenceRequest{
		UserID: "emp-1", Type: "vacation", From: "2024-07-05", To: "2024-07-01",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateSickLeave_WithCertificate(t *testing.T) {
	ts := newTestServer(t)
	createUser(t, ts, "emp-1", "2023-01-01")

	rec := ts.request(t, http.MethodPost, "/api/absences", api.CreateAbsenceRequest{
		UserID: "emp-1", Type: "sick_leave", From: "2024-06-11", To: "2024-06-13",
		Files: []api.CertificateFileDTO{{
			Name:     "cert.pdf",
			MimeType: "application/pdf",
			Data:     base64.StdEncoding.EncodeToString([]byte("certificate data")),
		}},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	absence := decodeBody[api.AbsenceDTO](t, rec)
	require.Len(t, absence.Certificates, 1)
	assert.Equal(t, "cert.pdf", absence.Certificates[0].OriginalName)
	assert.Equal(t, 1, ts.files.Count())
}

func TestAPI_ListAbsences_FilterByUser(t *testing.T) {
	ts := newTestServer(t)
	createUser(t, ts, "emp-1", "2023-01-01")
	createUser(t, ts, "emp-2", "2023-01-01")

	for _, userID := range []string{"emp-1", "emp-2"} {
		rec := ts.request(t, http.MethodPost, "/api/absences", api.CreateAbsenceRequest{
			UserID: userID, Type: "day_off", From: "2024-06-12", To: "2024-06-12",
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.request(t, http.MethodGet, "/api/absences?userId=emp-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	absences := decodeBody[[]api.AbsenceDTO](t, rec)
	require.Len(t, absences, 1)
	assert.Equal(t, "emp-1", absences[0].UserID)
}

func TestAPI_UpdateStatus_AdminOnly(t *testing.T) {
	ts := newTestServer(t)
	createUser(t, ts, "emp-1", "2023-01-01")

	rec := ts.request(t, http.MethodPost, "/api/absences", api.CreateAbsenceRequest{
		UserID: "emp-1", Type: "vacation", From: "2024-07-01", To: "2024-07-05",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	absence := decodeBody[api.AbsenceDTO](t, rec)

	rec = ts.request(t, http.MethodPut, "/api/absences/"+absence.ID+"/status",
		api.UpdateStatusRequest{Status: "approved"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.request(t, http.MethodPut, "/api/absences/"+absence.ID+"/status",
		api.UpdateStatusRequest{Status: "approved"}, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[api.AbsenceDTO](t, rec)
	assert.Equal(t, "approved", updated.Status)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestAPI_Settings_GetReturnsDefaults(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/settings", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	settings := decodeBody[api.SettingsDTO](t, rec)
	assert.Equal(t, "1.5", settings.VacationMonthlyAccrual)
	assert.Equal(t, 5, settings.SickLeaveWithCertificateLimit)
	assert.Equal(t, 0, settings.VacationCarryoverLimit)
}

func TestAPI_Settings_UpdateRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	body := api.SettingsDTO{
		VacationMonthlyAccrual:           "2",
		SickLeaveWithoutCertificateLimit: 5,
		SickLeaveWithCertificateLimit:    10,
		VacationCarryoverLimit:           5,
	}

	rec := ts.request(t, http.MethodPut, "/api/settings", body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.request(t, http.MethodPut, "/api/settings", body, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[api.SettingsDTO](t, rec)
	assert.Equal(t, "2", updated.VacationMonthlyAccrual)
	assert.Equal(t, 10, updated.SickLeaveWithCertificateLimit)

	// The change is audited with the acting admin.
	log := ts.store.ChangeLog()
	require.Len(t, log, 1)
	assert.Equal(t, "admin-1", log[0].AdminID)
}
