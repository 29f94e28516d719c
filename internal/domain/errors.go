package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure and carry no infrastructure dependency.

var (
	ErrBadgeNotFound    = errors.New("badge definition not found")
	ErrDuplicateEvent   = errors.New("event already applied")
	ErrRetriesExhausted = errors.New("ledger update retries exhausted")
)

// ─── Error Taxonomy ─────────────────────────────────────────────────────────

// ValidationError is a malformed event. The ledger is never touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransientStoreError is a conflict or hiccup; the whole read-modify-write
// may be retried.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error in %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// PersistentStoreError is a failure that retrying will not fix.
type PersistentStoreError struct {
	Op  string
	Err error
}

func (e *PersistentStoreError) Error() string {
	return fmt.Sprintf("store error in %s: %v", e.Op, e.Err)
}

func (e *PersistentStoreError) Unwrap() error { return e.Err }

// ConfigurationError is a malformed badge or season definition. Processing
// treats the offending entry as absent.
type ConfigurationError struct {
	Source string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Source, e.Reason)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var t *TransientStoreError
	return errors.As(err, &t)
}

// IsValidation reports whether err is a rejected event.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConfiguration reports whether err came from a bad catalog entry.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}
