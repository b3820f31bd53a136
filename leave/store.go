/*
store.go - Collaborator contracts for persistence and file storage

PURPOSE:
  Defines the interfaces between the engine and its external
  collaborators: the employee directory, the absence and certificate
  repositories, the settings repository, and binary file storage.
  Implementations live in store/sqlite (production), store/memory
  (tests), and filestore (local disk).

CONVENTIONS:
  - Repositories return (nil, nil) for a missing record; services wrap
    that into NotFoundError.
  - Absence reads return certificates already joined in.
  - FileStore.DeleteFile is idempotent: a missing file is not an error.

SEE ALSO:
  - store/sqlite/sqlite.go: Production implementation
  - store/memory/memory.go: In-memory implementation for tests
  - filestore/local.go: Local-disk certificate storage
*/
package leave

import (
	"context"

	"github.com/warp/leave-engine/workday"
)

// =============================================================================
// USER DIRECTORY
// =============================================================================

// UserDirectory is the read side of the employee directory.
type UserDirectory interface {
	// GetUser returns the user or (nil, nil) when missing.
	GetUser(ctx context.Context, id string) (*User, error)
}

// =============================================================================
// ABSENCE REPOSITORY
// =============================================================================

// DateRange is an inclusive date interval.
type DateRange struct {
	Start workday.Date
	End   workday.Date
}

// YearRange returns the full calendar-year interval.
func YearRange(year int) DateRange {
	return DateRange{Start: workday.YearStart(year), End: workday.YearEnd(year)}
}

// AbsenceFilter selects absences. Zero-valued fields are ignored.
type AbsenceFilter struct {
	UserID string
	Type   AbsenceType

	// StatusNot excludes absences with the given status.
	StatusNot AbsenceStatus

	// Overlapping keeps absences touching any day of the range.
	Overlapping *DateRange

	// StartingIn keeps absences whose From date lies in the range.
	// Used for attribute-by-start-year aggregation.
	StartingIn *DateRange
}

// Matches applies the filter in memory. Store implementations may push
// parts of it into queries but must agree with this predicate.
func (f AbsenceFilter) Matches(a *Absence) bool {
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.StatusNot != "" && a.Status == f.StatusNot {
		return false
	}
	if f.Overlapping != nil && !a.Overlaps(f.Overlapping.Start, f.Overlapping.End) {
		return false
	}
	if f.StartingIn != nil {
		if a.From.Before(f.StartingIn.Start) || a.From.After(f.StartingIn.End) {
			return false
		}
	}
	return true
}

// AbsenceRepository persists absence records.
type AbsenceRepository interface {
	CreateAbsence(ctx context.Context, a *Absence) error

	// GetAbsence returns the absence with certificates joined, or
	// (nil, nil) when missing.
	GetAbsence(ctx context.Context, id string) (*Absence, error)

	// FindAbsences returns matching absences with certificates joined,
	// ordered by From ascending.
	FindAbsences(ctx context.Context, filter AbsenceFilter) ([]Absence, error)

	UpdateAbsenceStatus(ctx context.Context, id string, status AbsenceStatus) error

	// DeleteAbsence removes the absence row. Used only by the admission
	// controller's compensating rollback.
	DeleteAbsence(ctx context.Context, id string) error
}

// =============================================================================
// CERTIFICATE METADATA REPOSITORY
// =============================================================================

// CertificateRepository persists certificate metadata rows.
type CertificateRepository interface {
	CreateCertificate(ctx context.Context, c *Certificate) error

	// GetCertificateWithAbsence returns the certificate joined with its
	// parent absence, or (nil, nil, nil) when missing.
	GetCertificateWithAbsence(ctx context.Context, id string) (*Certificate, *Absence, error)

	ListCertificates(ctx context.Context, absenceID string) ([]Certificate, error)

	DeleteCertificate(ctx context.Context, id string) error
}

// =============================================================================
// CERTIFICATE FILE STORAGE
// =============================================================================

// StoredFile locates a durably written certificate file.
type StoredFile struct {
	StoragePath string
	StoredName  string
}

// FileStore writes and removes certificate binaries. The write blocks
// until the file is durably stored.
type FileStore interface {
	SaveFile(ctx context.Context, data []byte, key string) (StoredFile, error)

	// DeleteFile removes the object. A missing file is success.
	DeleteFile(ctx context.Context, storagePath string) error
}

// =============================================================================
// SETTINGS REPOSITORY
// =============================================================================

// SettingsRepository persists the global policy settings row and its
// audit trail.
type SettingsRepository interface {
	// GetSettings returns the settings row or (nil, nil) when absent.
	GetSettings(ctx context.Context) (*PolicySettings, error)

	SaveSettings(ctx context.Context, s PolicySettings) error

	AppendChangeLog(ctx context.Context, entry SettingsChangeLog) error
}
