package domain

import (
	"net/http"
	"runtime/debug"
)

// ErrorKind classifies an application error. Each kind maps to one HTTP status.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation_failed"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindTooManyRequests ErrorKind = "too_many_requests"
	KindInternal        ErrorKind = "internal"
)

var kindStatus = map[ErrorKind]int{
	KindValidation:      http.StatusBadRequest,
	KindUnauthenticated: http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusBadRequest,
	KindTooManyRequests: http.StatusTooManyRequests,
	KindInternal:        http.StatusInternalServerError,
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is the error type every service and handler returns to the HTTP
// error boundary. Operational errors carry a message that is safe to show to
// clients; anything else is reported generically in production.
type AppError struct {
	Kind        ErrorKind
	Status      int
	Message     string
	Fields      []FieldError
	Operational bool
	Err         error
	Stack       []byte
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(kind ErrorKind, message string) *AppError {
	return &AppError{
		Kind:        kind,
		Status:      kindStatus[kind],
		Message:     message,
		Operational: true,
	}
}

// NewValidation returns a 400 error, optionally listing the offending fields.
func NewValidation(message string, fields ...FieldError) *AppError {
	e := newAppError(KindValidation, message)
	e.Fields = fields
	return e
}

func NewUnauthenticated(message string) *AppError {
	return newAppError(KindUnauthenticated, message)
}

func NewForbidden(message string) *AppError {
	return newAppError(KindForbidden, message)
}

func NewNotFound(message string) *AppError {
	return newAppError(KindNotFound, message)
}

func NewConflict(message string) *AppError {
	return newAppError(KindConflict, message)
}

func NewTooManyRequests(message string) *AppError {
	return newAppError(KindTooManyRequests, message)
}

// NewStatus builds an operational error for a status without a dedicated
// kind, e.g. 405 or 413 raised by the framework.
func NewStatus(status int, message string) *AppError {
	e := newAppError(KindForStatus(status), message)
	e.Status = status
	e.Operational = status < http.StatusInternalServerError
	return e
}

// KindForStatus returns the kind an HTTP status belongs to
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindTooManyRequests
	case status >= 400 && status < 500:
		return KindValidation
	}
	return KindInternal
}

// NewInternal wraps an unexpected failure. Its message is never shown to
// clients in production.
func NewInternal(message string, err error) *AppError {
	e := newAppError(KindInternal, message)
	e.Operational = false
	e.Err = err
	e.Stack = debug.Stack()
	return e
}

// NewServerError is a 500 whose message is safe to expose.
func NewServerError(message string) *AppError {
	return newAppError(KindInternal, message)
}

// Authentication errors
var (
	ErrMissingCredentials  = NewValidation("Please provide email and password!")
	ErrIncorrectLogin      = NewUnauthenticated("Incorrect email or password")
	ErrNotLoggedIn         = NewUnauthenticated("You are not logged in! Please log in to get access.")
	ErrTokenInvalid        = NewUnauthenticated("Invalid token. Please log in again!")
	ErrTokenExpired        = NewUnauthenticated("Your token has expired! Please log in again!")
	ErrUserNoLongerExists  = NewUnauthenticated("The user belonging to this token does no longer exist.")
	ErrPasswordChanged     = NewUnauthenticated("User recently changed password! Please log in again.")
	ErrWrongPassword       = NewUnauthenticated("Your current password is wrong")
	ErrResetTokenInvalid   = NewValidation("Token is invalid or has expired")
	ErrPermissionDenied    = NewForbidden("You do not have permission to perform this action")
	ErrNoUserWithEmail     = NewNotFound("There is no user with that email address.")
	ErrEmailTaken          = NewConflict("Email already in use. Please use another value!")
	ErrPasswordRouteUpdate = NewValidation("This route is not for password updates. Please use /updateMyPassword.")
)

// Resource errors
var (
	ErrNoDocument     = NewNotFound("No document found with that ID")
	ErrDuplicateValue = NewConflict("Duplicate field value. Please use another value!")
	ErrInvalidBody    = NewValidation("Invalid request body")
	ErrTourNotFound   = NewNotFound("No tour found with that ID")
)
