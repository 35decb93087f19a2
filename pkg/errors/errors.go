package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinels classify errors independently of where they were raised. Every
// AppError built here wraps exactly one of them.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInternal        = errors.New("internal error")
	ErrConflict        = errors.New("conflict")
	ErrGone            = errors.New("gone")
	ErrServiceUnavail  = errors.New("service unavailable")
	ErrTooManyRequests = errors.New("too many requests")
)

// kind ties a sentinel to its wire code and HTTP status.
type kind struct {
	sentinel error
	code     string
	status   int
}

var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{ErrConflict, "CONFLICT", http.StatusConflict},
	{ErrGone, "GONE", http.StatusGone},
	{ErrTooManyRequests, "RATE_LIMITED", http.StatusTooManyRequests},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
	{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError},
}

// AppError is a structured error carrying a machine code, a client-facing
// message and the HTTP status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
		}
	}
	panic("errors: unregistered sentinel " + sentinel.Error())
}

// NotFound reports a missing resource, e.g. NotFound("cart line", id).
func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// InvalidInput creates a 400 error whose message is shown to the user as is.
func InvalidInput(message string) *AppError { return newError(ErrInvalidInput, message) }

func Unauthorized(message string) *AppError { return newError(ErrUnauthorized, message) }

func Forbidden(message string) *AppError { return newError(ErrForbidden, message) }

func Conflict(message string) *AppError { return newError(ErrConflict, message) }

// Gone is used for expired gift-card offers.
func Gone(message string) *AppError { return newError(ErrGone, message) }

func TooManyRequests(message string) *AppError { return newError(ErrTooManyRequests, message) }

// Internal creates a 500 error that hides err from clients.
func Internal(err error) *AppError {
	e := newError(ErrInternal, "an internal error occurred")
	e.Err = err
	return e
}

// FromStatus rebuilds an error received from another service. The sentinel
// follows status (422 counts as invalid input, unknown 5xx as internal); an
// empty code is derived from the status text, e.g. "BAD_GATEWAY".
func FromStatus(status int, code, message string) *AppError {
	e := &AppError{Code: code, Message: message, Status: status}
	switch {
	case status == http.StatusUnprocessableEntity:
		e.Err = ErrInvalidInput
	case status >= 500 && status != http.StatusServiceUnavailable:
		e.Err = ErrInternal
	default:
		for _, k := range kinds {
			if k.status == status {
				e.Err = k.sentinel
				break
			}
		}
	}
	if e.Code == "" {
		e.Code = statusCode(status)
	}
	return e
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return fmt.Sprintf("HTTP_%d", status)
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// HTTPStatus returns the HTTP status code for err: the AppError's own status
// when set, otherwise the status of the first sentinel it wraps.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}
