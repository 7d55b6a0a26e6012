// Package source fetches the monitored table as rows of string cells.
//
// Row 0 is always the header. Failures are returned as *FetchError with a
// Class; an empty table is a successful fetch, not an error.
package source

import (
	"context"
	"errors"
	"fmt"
)

// Source fetches the full table.
type Source interface {
	Fetch(ctx context.Context) ([][]string, error)
	// Describe names the source for logs.
	Describe() string
}

// Class groups fetch failures by how the caller should react.
type Class string

const (
	ClassAuth      Class = "auth"
	ClassTransport Class = "transport"
	ClassRateLimit Class = "rate_limit"
	ClassNotFound  Class = "not_found"
)

// FetchError is a failed fetch.
type FetchError struct {
	Class  Class
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, e.Class, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the fetch may succeed.
func (e *FetchError) Retryable() bool {
	return e.Class == ClassTransport || e.Class == ClassRateLimit
}

// IsRetryable reports whether err is a retryable *FetchError, or an
// unclassified error, which is treated as transport.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

// ClassOf returns the class of err, or ClassTransport when err is not a
// *FetchError.
func ClassOf(err error) Class {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ClassTransport
}
