/*
Package sqlite provides a SQLite-backed implementation of the leave
engine's collaborator interfaces.

PURPOSE:
  Implements leave.UserDirectory, leave.AbsenceRepository,
  leave.CertificateRepository, and leave.SettingsRepository using
  database/sql. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  users:                Employee directory slice (hire date, admin flag)
  absences:             Absence records with inclusive date ranges
  absence_certificates: Certificate metadata rows
  policy_settings:      The single global settings row (id = 'global')
  settings_change_log:  Immutable audit trail of settings changes

DATE HANDLING:
  Calendar-day columns (hire_date, from_date, to_date) are stored as
  "YYYY-MM-DD" strings so range predicates compare lexically. Timestamps
  use RFC3339.

INDEXES:
  - idx_absences_user_type_from: Per-user quota and accrual scans
    (hot path)
  - idx_certificates_absence: Certificate join

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
  - filestore/local.go: Certificate binary storage
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/workday"
)

const dayFormat = "2006-01-02"

// Store implements all repository interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		hire_date TEXT,
		is_admin BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS absences (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: per-user, per-type range scans for accrual and quota checks
	CREATE INDEX IF NOT EXISTS idx_absences_user_type_from
		ON absences(user_id, type, from_date);
	CREATE INDEX IF NOT EXISTS idx_absences_status
		ON absences(status);

	CREATE TABLE IF NOT EXISTS absence_certificates (
		id TEXT PRIMARY KEY,
		absence_id TEXT NOT NULL REFERENCES absences(id),
		storage_path TEXT NOT NULL,
		original_name TEXT NOT NULL,
		mime_type TEXT,
		size INTEGER DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_certificates_absence
		ON absence_certificates(absence_id);

	CREATE TABLE IF NOT EXISTS policy_settings (
		id TEXT PRIMARY KEY,
		vacation_monthly_accrual TEXT NOT NULL,
		sick_without_certificate_limit INTEGER NOT NULL,
		sick_with_certificate_limit INTEGER NOT NULL,
		vacation_carryover_limit INTEGER NOT NULL,
		vacation_notice_enabled BOOLEAN DEFAULT FALSE,
		backdating_limit_enabled BOOLEAN DEFAULT FALSE,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings_change_log (
		id TEXT PRIMARY KEY,
		admin_id TEXT NOT NULL,
		changed_at TEXT NOT NULL,
		before_json TEXT NOT NULL,
		after_json TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USER DIRECTORY (leave.UserDirectory)
// =============================================================================

// SaveUser upserts an employee directory record.
func (s *Store) SaveUser(ctx context.Context, u leave.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, name, email, hire_date, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			hire_date = excluded.hire_date,
			is_admin = excluded.is_admin
	`

	var hireDate *string
	if u.HireDate != nil {
		d := u.HireDate.Time.Format(dayFormat)
		hireDate = &d
	}

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, hireDate, u.IsAdmin,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetUser retrieves a user by ID. Returns (nil, nil) when missing.
func (s *Store) GetUser(ctx context.Context, id string) (*leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, hire_date, is_admin FROM users WHERE id = ?",
		id,
	)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]leave.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, hire_date, is_admin FROM users ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []leave.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(scan func(...any) error) (*leave.User, error) {
	var u leave.User
	var email, hireDate sql.NullString

	if err := scan(&u.ID, &u.Name, &email, &hireDate, &u.IsAdmin); err != nil {
		return nil, err
	}
	u.Email = email.String
	if hireDate.Valid {
		d, err := workday.Parse(hireDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse hire date: %w", err)
		}
		u.HireDate = &d
	}
	return &u, nil
}

// =============================================================================
// ABSENCE REPOSITORY (leave.AbsenceRepository)
// =============================================================================

func (s *Store) CreateAbsence(ctx context.Context, a *leave.Absence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO absences (id, user_id, type, from_date, to_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.Type,
		a.From.Time.Format(dayFormat),
		a.To.Time.Format(dayFormat),
		a.Status,
		a.CreatedAt.Format(time.RFC3339),
		a.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetAbsence(ctx context.Context, id string) (*leave.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	absences, err := s.queryAbsences(ctx, absenceSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(absences) == 0 {
		return nil, nil
	}
	return &absences[0], nil
}

// FindAbsences builds the WHERE clause from the filter. Range predicates
// compare "YYYY-MM-DD" strings lexically, which matches date order.
func (s *Store) FindAbsences(ctx context.Context, filter leave.AbsenceFilter) ([]leave.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.StatusNot != "" {
		clauses = append(clauses, "status != ?")
		args = append(args, filter.StatusNot)
	}
	if filter.Overlapping != nil {
		clauses = append(clauses, "from_date <= ? AND to_date >= ?")
		args = append(args,
			filter.Overlapping.End.Time.Format(dayFormat),
			filter.Overlapping.Start.Time.Format(dayFormat))
	}
	if filter.StartingIn != nil {
		clauses = append(clauses, "from_date >= ? AND from_date <= ?")
		args = append(args,
			filter.StartingIn.Start.Time.Format(dayFormat),
			filter.StartingIn.End.Time.Format(dayFormat))
	}

	query := absenceSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY from_date ASC, created_at ASC"

	return s.queryAbsences(ctx, query, args...)
}

func (s *Store) UpdateAbsenceStatus(ctx context.Context, id string, status leave.AbsenceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE absences SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("absence %s not found", id)
	}
	return nil
}

func (s *Store) DeleteAbsence(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM absences WHERE id = ?", id)
	return err
}

const absenceSelect = "SELECT id, user_id, type, from_date, to_date, status, created_at, updated_at FROM absences"

func (s *Store) queryAbsences(ctx context.Context, query string, args ...any) ([]leave.Absence, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	var absences []leave.Absence
	for rows.Next() {
		a, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		absences = append(absences, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Join certificates in. Result sets here are one user's absences for
	// a year or two, so a per-row lookup is fine.
	for i := range absences {
		certs, err := s.listCertificatesLocked(ctx, absences[i].ID)
		if err != nil {
			return nil, err
		}
		absences[i].Certificates = certs
	}
	return absences, nil
}

func scanAbsence(rows *sql.Rows) (leave.Absence, error) {
	var (
		a                    leave.Absence
		fromDate, toDate     string
		createdAt, updatedAt string
	)

	err := rows.Scan(&a.ID, &a.UserID, &a.Type, &fromDate, &toDate, &a.Status, &createdAt, &updatedAt)
	if err != nil {
		return a, fmt.Errorf("failed to scan absence: %w", err)
	}

	if a.From, err = workday.Parse(fromDate); err != nil {
		return a, fmt.Errorf("failed to parse from date: %w", err)
	}
	if a.To, err = workday.Parse(toDate); err != nil {
		return a, fmt.Errorf("failed to parse to date: %w", err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return a, nil
}

// =============================================================================
// CERTIFICATE REPOSITORY (leave.CertificateRepository)
// =============================================================================

func (s *Store) CreateCertificate(ctx context.Context, c *leave.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO absence_certificates (id, absence_id, storage_path, original_name, mime_type, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.AbsenceID, c.StoragePath, c.OriginalName, c.MimeType, c.Size,
		c.CreatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetCertificateWithAbsence(ctx context.Context, id string) (*leave.Certificate, *leave.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c         leave.Certificate
		mimeType  sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, absence_id, storage_path, original_name, mime_type, size, created_at
		 FROM absence_certificates WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.AbsenceID, &c.StoragePath, &c.OriginalName, &mimeType, &c.Size, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	c.MimeType = mimeType.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	absences, err := s.queryAbsences(ctx, absenceSelect+" WHERE id = ?", c.AbsenceID)
	if err != nil {
		return nil, nil, err
	}
	if len(absences) == 0 {
		// Orphaned metadata row; treat as missing.
		return nil, nil, nil
	}
	return &c, &absences[0], nil
}

func (s *Store) ListCertificates(ctx context.Context, absenceID string) ([]leave.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCertificatesLocked(ctx, absenceID)
}

func (s *Store) listCertificatesLocked(ctx context.Context, absenceID string) ([]leave.Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, absence_id, storage_path, original_name, mime_type, size, created_at
		 FROM absence_certificates WHERE absence_id = ? ORDER BY created_at ASC, id ASC`,
		absenceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []leave.Certificate
	for rows.Next() {
		var (
			c         leave.Certificate
			mimeType  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.AbsenceID, &c.StoragePath, &c.OriginalName, &mimeType, &c.Size, &createdAt); err != nil {
			return nil, err
		}
		c.MimeType = mimeType.String
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

func (s *Store) DeleteCertificate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM absence_certificates WHERE id = ?", id)
	return err
}

// =============================================================================
// SETTINGS REPOSITORY (leave.SettingsRepository)
// =============================================================================

func (s *Store) GetSettings(ctx context.Context) (*leave.PolicySettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		settings leave.PolicySettings
		accrual  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT vacation_monthly_accrual, sick_without_certificate_limit, sick_with_certificate_limit,
		        vacation_carryover_limit, vacation_notice_enabled, backdating_limit_enabled
		 FROM policy_settings WHERE id = ?`,
		leave.SettingsID,
	).Scan(
		&accrual,
		&settings.SickLeaveWithoutCertificateLimit,
		&settings.SickLeaveWithCertificateLimit,
		&settings.VacationCarryoverLimit,
		&settings.Rules.VacationNoticeEnabled,
		&settings.Rules.BackdatingLimitEnabled,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	settings.VacationMonthlyAccrual, err = decimal.NewFromString(accrual)
	if err != nil {
		return nil, fmt.Errorf("failed to parse accrual rate: %w", err)
	}
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings leave.PolicySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO policy_settings
		(id, vacation_monthly_accrual, sick_without_certificate_limit, sick_with_certificate_limit,
		 vacation_carryover_limit, vacation_notice_enabled, backdating_limit_enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vacation_monthly_accrual = excluded.vacation_monthly_accrual,
			sick_without_certificate_limit = excluded.sick_without_certificate_limit,
			sick_with_certificate_limit = excluded.sick_with_certificate_limit,
			vacation_carryover_limit = excluded.vacation_carryover_limit,
			vacation_notice_enabled = excluded.vacation_notice_enabled,
			backdating_limit_enabled = excluded.backdating_limit_enabled,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		leave.SettingsID,
		settings.VacationMonthlyAccrual.String(),
		settings.SickLeaveWithoutCertificateLimit,
		settings.SickLeaveWithCertificateLimit,
		settings.VacationCarryoverLimit,
		settings.Rules.VacationNoticeEnabled,
		settings.Rules.BackdatingLimitEnabled,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) AppendChangeLog(ctx context.Context, entry leave.SettingsChangeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	beforeJSON, err := json.Marshal(toRecord(entry.Before))
	if err != nil {
		return err
	}
	afterJSON, err := json.Marshal(toRecord(entry.After))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings_change_log (id, admin_id, changed_at, before_json, after_json)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.AdminID, entry.ChangedAt.Format(time.RFC3339),
		string(beforeJSON), string(afterJSON),
	)
	return err
}

// ChangeLog returns all settings audit entries, newest first.
func (s *Store) ChangeLog(ctx context.Context) ([]leave.SettingsChangeLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, admin_id, changed_at, before_json, after_json FROM settings_change_log ORDER BY changed_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []leave.SettingsChangeLog
	for rows.Next() {
		var (
			e                     leave.SettingsChangeLog
			changedAt             string
			beforeJSON, afterJSON string
		)
		if err := rows.Scan(&e.ID, &e.AdminID, &changedAt, &beforeJSON, &afterJSON); err != nil {
			return nil, err
		}
		e.ChangedAt, _ = time.Parse(time.RFC3339, changedAt)

		var before, after settingsRecord
		if err := json.Unmarshal([]byte(beforeJSON), &before); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(afterJSON), &after); err != nil {
			return nil, err
		}
		if e.Before, err = before.toSettings(); err != nil {
			return nil, err
		}
		if e.After, err = after.toSettings(); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// settingsRecord is the JSON shape persisted in the change log.
type settingsRecord struct {
	VacationMonthlyAccrual           string `json:"vacation_monthly_accrual"`
	SickLeaveWithoutCertificateLimit int    `json:"sick_without_certificate_limit"`
	SickLeaveWithCertificateLimit    int    `json:"sick_with_certificate_limit"`
	VacationCarryoverLimit           int    `json:"vacation_carryover_limit"`
	VacationNoticeEnabled            bool   `json:"vacation_notice_enabled"`
	BackdatingLimitEnabled           bool   `json:"backdating_limit_enabled"`
}

func toRecord(s leave.PolicySettings) settingsRecord {
	return settingsRecord{
		VacationMonthlyAccrual:           s.VacationMonthlyAccrual.String(),
		SickLeaveWithoutCertificateLimit: s.SickLeaveWithoutCertificateLimit,
		SickLeaveWithCertificateLimit:    s.SickLeaveWithCertificateLimit,
		VacationCarryoverLimit:           s.VacationCarryoverLimit,
		VacationNoticeEnabled:            s.Rules.VacationNoticeEnabled,
		BackdatingLimitEnabled:           s.Rules.BackdatingLimitEnabled,
	}
}

func (r settingsRecord) toSettings() (leave.PolicySettings, error) {
	accrual, err := decimal.NewFromString(r.VacationMonthlyAccrual)
	if err != nil {
		return leave.PolicySettings{}, fmt.Errorf("failed to parse accrual rate: %w", err)
	}
	return leave.PolicySettings{
		VacationMonthlyAccrual:           accrual,
		SickLeaveWithoutCertificateLimit: r.SickLeaveWithoutCertificateLimit,
		SickLeaveWithCertificateLimit:    r.SickLeaveWithCertificateLimit,
		VacationCarryoverLimit:           r.VacationCarryoverLimit,
		Rules: leave.RuleFlags{
			VacationNoticeEnabled:  r.VacationNoticeEnabled,
			BackdatingLimitEnabled: r.BackdatingLimitEnabled,
		},
	}, nil
}

// Compile-time interface checks
var (
	_ leave.UserDirectory         = (*Store)(nil)
	_ leave.AbsenceRepository     = (*Store)(nil)
	_ leave.CertificateRepository = (*Store)(nil)
	_ leave.SettingsRepository    = (*Store)(nil)
)
