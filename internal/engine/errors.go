package engine

import (
	"errors"
	"fmt"
)

// CycleErrorCode categorizes cycle failures.
type CycleErrorCode string

const (
	// ErrCodeTransientFetch indicates the source could not be read after
	// all attempts, or failed with a non-retryable class.
	ErrCodeTransientFetch CycleErrorCode = "TRANSIENT_FETCH"

	// ErrCodeEmptyFetch indicates the source returned no data rows.
	ErrCodeEmptyFetch CycleErrorCode = "EMPTY_FETCH"

	// ErrCodeIntegrityGuard indicates the snapshot store refused the commit.
	ErrCodeIntegrityGuard CycleErrorCode = "INTEGRITY_GUARD"

	// ErrCodePersistence indicates the commit was accepted in memory but
	// could not be written to disk.
	ErrCodePersistence CycleErrorCode = "PERSISTENCE"
)

// CycleError is returned by Tick.
type CycleError struct {
	Code    CycleErrorCode
	CycleID string
	Err     error
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (cycle=%s)", e.Code, e.CycleID)
	}
	return fmt.Sprintf("%s: %v (cycle=%s)", e.Code, e.Err, e.CycleID)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of a *CycleError, or "" for other errors.
func CodeOf(err error) CycleErrorCode {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsTransient reports whether the cycle failed before diffing and should
// simply be retried on the next tick.
func IsTransient(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeTransientFetch || code == ErrCodeEmptyFetch
}

// IsGuardError reports whether the cycle was discarded by the integrity guard.
func IsGuardError(err error) bool {
	return CodeOf(err) == ErrCodeIntegrityGuard
}

// IsPersistError reports whether the cycle completed but its snapshot write failed.
func IsPersistError(err error) bool {
	return CodeOf(err) == ErrCodePersistence
}
