package domain

import (
	"errors"
	"strings"
)

// Domain errors
var (
	ErrUnauthorized       = errors.New("Unauthorized")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrInvalidLeague      = errors.New("invalid league")
	ErrInvalidVote        = errors.New("invalid vote value")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrSubmissionNotFound = errors.New("slander not found")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrNotFound           = errors.New("Not found")
	ErrInvalidSignInCode  = errors.New("invalid or expired sign-in code")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInternalError      = errors.New("Unexpected error")
)

// QueryError wraps a failure returned by the storage layer. Its message is the
// underlying storage message, unchanged.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError wraps err as a storage failure for the named operation.
// A nil err stays nil; sentinel domain errors pass through unwrapped.
func NewQueryError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrSubmissionNotFound) || errors.Is(err, ErrPlayerNotFound) {
		return err
	}
	return &QueryError{Op: op, Err: err}
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when request input fails validation.
// It never reaches storage.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// IsValidationError checks if err carries field validation failures
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorageError checks if err originated in the storage layer
func IsStorageError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) || errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrSubmissionNotFound)
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPlayerNotFound)
}
