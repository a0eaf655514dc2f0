/*
errors.go - Centralized error types for the accounting engine

PURPOSE:
  All engine error types in one place. The engine distinguishes sharply
  between missing data (business as usual: unstarted months, unconfigured
  contracts - never an error) and malformed input (invalid periods, invalid
  reference instants - a structured error that aborts only the one work
  package's computation, never a whole batch).

USAGE:
  if errors.Is(err, engine.ErrInvalidPeriod) {
      // flag this work package, keep the rest of the report
  }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a validity period is malformed
	// (end before start, or negative total quantity).
	ErrInvalidPeriod = errors.New("invalid validity period")

	// ErrInvalidInstant is returned when the injected reference instant is
	// the zero value.
	ErrInvalidInstant = errors.New("invalid reference instant")

	// ErrWorkPackageNotFound is returned by callers when a referenced work
	// package does not exist.
	ErrWorkPackageNotFound = errors.New("work package not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidPeriodError reports which period of which work package failed
// validation.
type InvalidPeriodError struct {
	WorkPackageID WorkPackageID
	Start         TimePoint
	End           TimePoint
	Reason        string
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("work package %s: period [%s, %s]: %s",
		e.WorkPackageID, e.Start, e.End, e.Reason)
}

func (e *InvalidPeriodError) Unwrap() error {
	return ErrInvalidPeriod
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid input data
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidInstant)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkPackageNotFound)
}
