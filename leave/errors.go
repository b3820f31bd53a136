/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error categories in one place. The HTTP layer maps these onto
  status codes; nothing in this package formats payloads.

ERROR CATEGORIES:
  1. Validation errors  - malformed input, no state change
  2. Policy rejections  - admission gate failures; expected, frequent,
                          user-correctable outcomes
  3. Not-found errors   - referenced user/absence/file missing
  4. Storage failures   - certificate write/read failures; retryable
  5. Persistence errors - generic datastore failures; opaque to callers

USAGE:
  if leave.IsPolicyRejection(err) {
      // show err.Error() to the user, nothing was written
  }

SEE ALSO:
  - admission.go: Produces rejections and storage failures
  - api/handlers.go: Maps categories to HTTP status codes
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input: missing dates,
	// inverted or over-long ranges, unknown absence types.
	ErrValidation = errors.New("invalid request")

	// ErrPolicyRejected is returned when an admission gate fails.
	// These are expected outcomes, not exceptional conditions.
	ErrPolicyRejected = errors.New("rejected by policy")

	// ErrNotFound is returned when a referenced user, absence, or
	// certificate does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorageFailure is returned when certificate file storage
	// fails. Safe to retry; the engine has rolled back partial state.
	ErrStorageFailure = errors.New("certificate storage failure")

	// ErrPersistence is returned for generic datastore failures. Not
	// retried automatically; the caller may resubmit.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RejectionError carries the human-readable reason an admission gate
// rejected a request.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }
func (e *RejectionError) Unwrap() error { return ErrPolicyRejected }

// QuotaExceededError is a rejection with the numbers behind it.
type QuotaExceededError struct {
	Year          int
	Certificated  bool
	UsedDays      int
	RequestedDays int
	Limit         int
}

func (e *QuotaExceededError) Error() string {
	bucket := "without certificate"
	if e.Certificated {
		bucket = "with certificate"
	}
	return fmt.Sprintf("sick leave %s limit exceeded for %d: %d used + %d requested > %d allowed",
		bucket, e.Year, e.UsedDays, e.RequestedDays, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrPolicyRejected }

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string // "user", "absence", "certificate"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError wraps the underlying file-store failure.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorageFailure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether the error is malformed-input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsPolicyRejection reports whether the error is an admission gate
// failure with no state change.
func IsPolicyRejection(err error) bool { return errors.Is(err, ErrPolicyRejected) }

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable reports whether the operation might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrStorageFailure) }

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrPersistence)
}
