package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so handlers can pick a status code.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindValidation
	KindUnauthorized
	KindPersistence
	KindExternalService
)

// AppError is a classified error. Message is safe to show to clients;
// Err carries the underlying cause for the server log.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// StatusCode maps the error kind to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NotFoundError reports a missing entity, e.g. NotFoundError("Case") -> "Case not found".
func NotFoundError(entity string) *AppError {
	return &AppError{Kind: KindNotFound, Message: entity + " not found"}
}

// ValidationError reports malformed or conflicting input.
func ValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

// UnauthorizedError reports missing or rejected credentials.
func UnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

// PersistenceError wraps a storage failure. The cause is never shown to clients.
func PersistenceError(op string, err error) *AppError {
	return &AppError{Kind: KindPersistence, Message: "Failed to " + op, Err: err}
}

// ExternalServiceError wraps a failed model or evaluator call.
func ExternalServiceError(message string, err error) *AppError {
	return &AppError{Kind: KindExternalService, Message: message, Err: err}
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
