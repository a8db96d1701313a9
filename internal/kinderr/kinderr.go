// Package kinderr defines the typed error kinds shared across the crawler,
// store, and job orchestrator.
package kinderr

import (
	"database/sql"
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of crawler recovery and job
// propagation policy.
type Kind string

const (
	// Transient errors are retried by the crawler/geocoder; they never
	// surface to the caller unless the retry budget is exhausted.
	Transient Kind = "transient"
	// Deleted signals that a provider record no longer exists.
	Deleted Kind = "deleted"
	// Auth errors propagate immediately and abort the job.
	Auth Kind = "auth"
	// Permanent errors are logged and the person is skipped.
	Permanent Kind = "permanent"
	// NotFound is surfaced directly to store-lookup callers.
	NotFound Kind = "not_found"
	// Busy means another job of the same kind is already running.
	Busy Kind = "busy"
	// StoreCorrupted is fatal.
	StoreCorrupted Kind = "store_corrupted"
	// StoreFull is fatal (out of space).
	StoreFull Kind = "store_full"
	// Conflict is a constraint violation: user error, surfaced with the
	// offending key rather than treated as fatal.
	Conflict Kind = "conflict"
)

// Error is a kinderr-wrapped error carrying a Kind plus the offending
// identifier, where applicable (a person ID, a job kind, a key).
type Error struct {
	Kind    Kind
	Op      string
	Subject string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Subject != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Subject, e.Err)
	case e.Subject != "":
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.Subject)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a kinderr.Error.
func New(kind Kind, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// Is reports whether err is (or wraps) a kinderr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind == kind
	}
	return false
}

// WrapDB converts a database/sql error into a kinderr.Error, mapping
// sql.ErrNoRows to NotFound. Other errors are returned with operation
// context but are not assumed fatal here; callers that can recognize a
// specific driver error code (constraint violation, disk full, corrupt
// image) should wrap with Conflict/StoreFull/StoreCorrupted explicitly.
func WrapDB(op, subject string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return New(NotFound, op, subject, err)
	}
	return fmt.Errorf("%s (%s): %w", op, subject, err)
}
