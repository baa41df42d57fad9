package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a reference resolves to the wrong number
	// of elements at action time.
	ErrNotFound = errors.New("element not found")
	// ErrActionFailed is returned when the underlying action primitive fails.
	ErrActionFailed = errors.New("action failed")
	// ErrTimeout is returned when a check never held before its deadline.
	ErrTimeout = errors.New("timed out")
	// ErrMalformedSnapshot marks a persisted snapshot that could not be
	// parsed. Verifiers treat it as "not yet true".
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

// NotFoundError reports a cardinality mismatch for a path
type NotFoundError struct {
	Path Path
	Want string // e.g. "exactly 1"
	Got  int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: %s: want %s element, got %d", ErrNotFound, e.Path, e.Want, e.Got)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ActionError wraps a failure reported by the document while acting
type ActionError struct {
	Path   Path
	Action Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%v: %s on %s: %v", ErrActionFailed, e.Action, e.Path, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *ActionError) Unwrap() []error { return []error{ErrActionFailed, e.Err} }

// TimeoutError is returned when a check never held before its deadline.
// It keeps the last observed state so flaky and genuine failures can be told
// apart.
type TimeoutError struct {
	Check    string
	Expected string
	Actual   string
	Timeout  time.Duration
	Polls    int
	LastErr  error
}

func (e *TimeoutError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s: %v after %s (%d polls)\n", e.Check, ErrTimeout, e.Timeout, e.Polls)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual:   %s\n", e.Actual)
	if e.LastErr != nil {
		fmt.Fprintf(&buf, "  Last error: %v\n", e.LastErr)
	}
	return buf.String()
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
