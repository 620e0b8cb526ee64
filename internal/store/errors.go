package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store failures. The taxonomy drives client
// behavior: validation and not-found are fatal to the one operation,
// precondition failures are retried by the engine once the missing
// entity confirms, conflicts are resolved internally, and integrity
// failures end a unit of work without rolling back prior units.
type ErrorCode string

const (
	// ErrCodeValidation rejects malformed input before any mutation:
	// empty or duplicate column names, unknown kinds, bad positions.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodePrecondition indicates a referenced entity does not (yet)
	// exist - typically an edit against a row still being created.
	ErrCodePrecondition ErrorCode = "PRECONDITION"

	// ErrCodeConflict indicates a uniqueness race. UpsertCell resolves
	// (row_id, column_id) conflicts itself; this surfaces elsewhere,
	// e.g. concurrent column renames to the same name.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeIntegrity indicates structural breakage mid-operation:
	// a row or column deleted while a batch still references it.
	ErrCodeIntegrity ErrorCode = "INTEGRITY"

	// ErrCodeNotFound indicates the addressed entity does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// StoreError is the typed error for all store-layer failures. It carries
// enough identifying context (entity kind, id, attempted operation) for
// debugging and user messaging.
type StoreError struct {
	Code    ErrorCode
	Entity  string // "table" | "column" | "row" | "cell" | "view"
	ID      string
	Op      string
	Message string
	Err     error // wrapped cause, if any
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s %q: %s", e.Code, e.Op, e.Entity, e.ID, e.Message)
	}
	return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Op, e.Entity, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NOT_FOUND store error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsValidation reports whether err is a VALIDATION store error.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsPrecondition reports whether err is a PRECONDITION store error.
func IsPrecondition(err error) bool {
	return hasCode(err, ErrCodePrecondition)
}

// IsIntegrity reports whether err is an INTEGRITY store error.
func IsIntegrity(err error) bool {
	return hasCode(err, ErrCodeIntegrity)
}

func hasCode(err error, code ErrorCode) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func notFound(entity, id, op string) *StoreError {
	return &StoreError{Code: ErrCodeNotFound, Entity: entity, ID: id, Op: op, Message: "not found"}
}

func validation(entity, id, op, msg string) *StoreError {
	return &StoreError{Code: ErrCodeValidation, Entity: entity, ID: id, Op: op, Message: msg}
}

func precondition(entity, id, op, msg string) *StoreError {
	return &StoreError{Code: ErrCodePrecondition, Entity: entity, ID: id, Op: op, Message: msg}
}

func integrity(entity, id, op, msg string, cause error) *StoreError {
	return &StoreError{Code: ErrCodeIntegrity, Entity: entity, ID: id, Op: op, Message: msg, Err: cause}
}
