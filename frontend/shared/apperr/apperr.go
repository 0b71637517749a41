package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ValidationError rejects input before anything is persisted.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// Invalid builds a ValidationError naming the offending fields.
func Invalid(message string, fields ...string) error {
	return &ValidationError{Message: message, Fields: fields}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(entity string, key any) error {
	return fmt.Errorf("%s %v: %w", entity, key, ErrNotFound)
}

// Conflict wraps ErrConflict with a reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// Transition wraps ErrInvalidTransition with a reason.
func Transition(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidTransition)
}

// NoRows maps sql.ErrNoRows to a NotFound error for entity and returns other errors unchanged.
func NoRows(err error, entity string, key any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound(entity, key)
	}
	return err
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether err is a persistence failure worth replaying later.
func IsRetryable(err error) bool {
	return err != nil && Status(err) == http.StatusInternalServerError
}
