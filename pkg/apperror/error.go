// Package apperror defines the application error type returned across the
// service layer and rendered by the HTTP error handler.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error carries an HTTP status and a stable machine-readable code. Internal
// is logged but never rendered.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

// New returns an error with no internal cause.
func New(status int, code, message string) *Error {
	return &Error{HTTPStatus: status, Code: code, Message: message}
}

var (
	ErrBadRequest       = New(http.StatusBadRequest, "bad_request", "Invalid request")
	ErrNotFound         = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrProblemNotFound  = New(http.StatusNotFound, "problem_not_found", "Problem not found")
	ErrConflict         = New(http.StatusConflict, "conflict", "Resource already exists")
	ErrEmptyFindTargets = New(http.StatusUnprocessableEntity, "empty_find_targets", "At least one find target is required")
	ErrTooManyRequests  = New(http.StatusTooManyRequests, "rate_limited", "Too many solve requests")
	ErrInternal         = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
	ErrDatabase         = New(http.StatusInternalServerError, "database_error", "Database operation failed")
)

func (e *Error) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Internal != nil {
		msg += fmt.Sprintf(" (%v)", e.Internal)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Internal }

// Is matches on Code, so copies made by the With* helpers still match their
// sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// clone copies e; sentinels are never mutated.
func (e *Error) clone() *Error {
	c := *e
	return &c
}

func (e *Error) WithInternal(err error) *Error {
	c := e.clone()
	c.Internal = err
	return c
}

func (e *Error) WithMessage(message string) *Error {
	c := e.clone()
	c.Message = message
	return c
}

func (e *Error) WithDetails(details map[string]any) *Error {
	c := e.clone()
	c.Details = details
	return c
}

func (e *Error) body() map[string]any {
	b := map[string]any{"code": e.Code, "message": e.Message}
	if len(e.Details) > 0 {
		b["details"] = e.Details
	}
	return b
}

// ToEchoError lets an *Error be returned where echo expects its own type.
func (e *Error) ToEchoError() *echo.HTTPError {
	return echo.NewHTTPError(e.HTTPStatus, map[string]any{"error": e.body()})
}

// ToHTTPError maps any error to a status and response body. Errors that are
// not *Error render as internal_error.
func ToHTTPError(err error) (int, map[string]any) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal
	}
	return appErr.HTTPStatus, map[string]any{"error": appErr.body()}
}

func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewInternal wraps err with a message safe to show to clients.
func NewInternal(message string, err error) *Error {
	return ErrInternal.WithMessage(message).WithInternal(err)
}
