package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("Validation Error")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrRateLimited      = errors.New("too many requests")
	ErrBadRequest       = errors.New("bad request")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// FieldError is a single field-scoped constraint violation.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors collects every violated field of one submission, in the
// order the fields were checked. A nil or empty list means the input is valid.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, fe := range v {
		msgs = append(msgs, fe.Message)
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is(err, ErrValidation) match a ValidationErrors value.
func (v ValidationErrors) Unwrap() error {
	return ErrValidation
}

// Check records message for field when ok is false.
// Only the first failure for a field is kept.
func (v *ValidationErrors) Check(ok bool, field, message string) {
	if ok || v.Has(field) {
		return
	}
	*v = append(*v, FieldError{Field: field, Message: message})
}

// Has reports whether field has a recorded error.
func (v ValidationErrors) Has(field string) bool {
	_, ok := v.lookup(field)
	return ok
}

// For returns the message recorded for field, or "".
func (v ValidationErrors) For(field string) string {
	msg, _ := v.lookup(field)
	return msg
}

func (v ValidationErrors) lookup(field string) (string, bool) {
	for _, fe := range v {
		if fe.Field == field {
			return fe.Message, true
		}
	}
	return "", false
}

// StatusCode maps an error from the service layer to an HTTP status.
func StatusCode(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
