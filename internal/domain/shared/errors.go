// Package shared holds the identifiers, value objects, events and error
// kinds that every progress domain package speaks. It imports nothing
// outside the standard library.
package shared

import (
	"errors"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ERROR KINDS
// ═══════════════════════════════════════════════════════════════════════════

// Kinds are what callers test for with errors.Is. Concrete failures wrap
// exactly one of them in a DomainError.
var (
	ErrNotFound = errors.New("entity not found")

	ErrValidation    = errors.New("validation error")
	ErrInvalidID     = errors.New("invalid ID")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidFormat = errors.New("invalid format")
	ErrEmptyValue    = errors.New("value cannot be empty")
	ErrNegativeValue = errors.New("value cannot be negative")
	ErrOutOfRange    = errors.New("value out of range")

	ErrInvalidState = errors.New("invalid state")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

var validationKinds = []error{
	ErrValidation, ErrInvalidID, ErrInvalidInput, ErrInvalidFormat,
	ErrEmptyValue, ErrNegativeValue, ErrOutOfRange,
}

// ═══════════════════════════════════════════════════════════════════════════
// DOMAIN ERROR
// ═══════════════════════════════════════════════════════════════════════════

// DomainError locates a failure: which area of the engine (points, streak,
// review, storage...), which operation, and which kind.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error // cause, when the failure came from below
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(e.Domain)
	b.WriteByte('.')
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DomainError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewDomainError builds an error of the given kind with no cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError is NewDomainError with a cause attached.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	de := NewDomainError(domain, op, kind, message)
	de.Err = err
	return de
}

// ───────────────────────────────────────────────────────────────────────────
// Well-known failures
// ───────────────────────────────────────────────────────────────────────────

var (
	ErrAccountNotFound = NewDomainError("points", "Find", ErrNotFound, "point account not found")
	ErrNegativeAmount  = NewDomainError("points", "Add", ErrNegativeValue, "points amount cannot be negative")
	ErrUnknownSource   = NewDomainError("points", "Validate", ErrInvalidInput, "unknown points source")

	ErrUnknownPeriod = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "unknown leaderboard period")
	ErrInvalidLimit  = NewDomainError("leaderboard", "Validate", ErrOutOfRange, "limit must be positive")

	ErrStreakNotFound = NewDomainError("streak", "Find", ErrNotFound, "streak state not found")

	ErrCardNotFound      = NewDomainError("review", "Find", ErrNotFound, "review card not found")
	ErrInvalidRating     = NewDomainError("review", "ProcessRating", ErrInvalidInput, "rating must be between 1 and 4")
	ErrInvalidVocabulary = NewDomainError("review", "Validate", ErrInvalidID, "invalid vocabulary id")

	ErrBadgeNotFound      = NewDomainError("badge", "Find", ErrNotFound, "badge not found")
	ErrUnknownRequirement = NewDomainError("badge", "Validate", ErrInvalidInput, "unknown badge requirement")

	ErrStorageUnavailable = NewDomainError("storage", "Query", ErrServiceUnavailable, "storage is unavailable")
)

// ───────────────────────────────────────────────────────────────────────────
// Classification
// ───────────────────────────────────────────────────────────────────────────

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	for _, kind := range validationKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsUnavailable reports whether a backing store could not serve the call.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout)
}

// IsRetryable reports whether repeating the call may succeed. Only
// unavailability qualifies; a cascade that failed validation never will.
func IsRetryable(err error) bool {
	return IsUnavailable(err)
}
