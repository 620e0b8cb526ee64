package engine

import (
	"errors"
	"fmt"
)

// RollbackError reports that an optimistic mutation failed and the
// cache was rewound to its pre-mutation snapshot. Unwrap exposes the
// backend error that caused the rollback.
type RollbackError struct {
	Kind   MutationKind
	TempID string
	Cause  error
}

func (e *RollbackError) Error() string {
	if e.TempID != "" {
		return fmt.Sprintf("%s rolled back (temp=%s): %v", e.Kind, e.TempID, e.Cause)
	}
	return fmt.Sprintf("%s rolled back: %v", e.Kind, e.Cause)
}

func (e *RollbackError) Unwrap() error { return e.Cause }

// IsRolledBack reports whether err marks a rolled-back mutation.
func IsRolledBack(err error) bool {
	var re *RollbackError
	return errors.As(err, &re)
}

// StaleTempIDError reports a mutation addressed at a temporary id that
// is no longer loaded: its insert already resolved or rolled back.
type StaleTempIDError struct {
	TempID string
}

func (e *StaleTempIDError) Error() string {
	return fmt.Sprintf("temp id %s is no longer loaded", e.TempID)
}

// IsStaleTempID reports whether err marks a stale temporary id.
func IsStaleTempID(err error) bool {
	var se *StaleTempIDError
	return errors.As(err, &se)
}
