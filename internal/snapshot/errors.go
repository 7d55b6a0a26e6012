package snapshot

import (
	"errors"
	"fmt"
)

// GuardError is returned by Commit when the candidate snapshot is
// implausibly smaller than the prior one.
type GuardError struct {
	Prior     int
	Candidate int
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("integrity guard tripped: candidate has %d records, prior has %d (minimum %d)",
		e.Candidate, e.Prior, (e.Prior+1)/2)
}

// CorruptStateError is returned by Open when a state file exists but cannot
// be decoded. The store is still usable and starts empty.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt snapshot %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// PersistError reports a failed durable write. The in-memory state it
// refers to was updated regardless.
type PersistError struct {
	Op   string // "write", "backup", "warm-flag"
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsGuardError reports whether err is, or wraps, a *GuardError.
func IsGuardError(err error) bool {
	var ge *GuardError
	return errors.As(err, &ge)
}

// IsPersistError reports whether err is, or wraps, a *PersistError.
func IsPersistError(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe)
}

// IsCorrupt reports whether err is, or wraps, a *CorruptStateError.
func IsCorrupt(err error) bool {
	var ce *CorruptStateError
	return errors.As(err, &ce)
}
