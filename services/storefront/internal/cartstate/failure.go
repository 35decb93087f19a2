package cartstate

import (
	"errors"

	apperrors "github.com/utafrali/giftcart/pkg/errors"
)

// ErrorKind classifies a failed cart operation.
type ErrorKind string

const (
	// ErrorTransport: the request failed or the server gave no usable reason.
	ErrorTransport ErrorKind = "transport"
	// ErrorValidation: the server rejected the request; Message is its text.
	ErrorValidation ErrorKind = "validation"
	// ErrorUnauthorized: the session was rejected and has been cleared.
	ErrorUnauthorized ErrorKind = "unauthorized"
	// ErrorStateUnknown: the mutation went through but the refetch failed,
	// so the change may or may not be in the cart.
	ErrorStateUnknown ErrorKind = "state_unknown"
)

const (
	msgFetch        = "Failed to fetch cart"
	msgAdd          = "Failed to add item"
	msgRemove       = "Failed to remove item"
	msgUpdate       = "Failed to update item"
	msgClear        = "Failed to clear cart"
	msgCleanup      = "Failed to clean up expired items"
	msgUnauthorized = "Please log in to continue"
	msgStateUnknown = "Your change was sent but the cart could not be refreshed"
)

// Failure is the error recorded in State and returned by the operation.
type Failure struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func classify(err error, fallback string) *Failure {
	if errors.Is(err, apperrors.ErrUnauthorized) {
		return &Failure{Kind: ErrorUnauthorized, Message: msgUnauthorized, Err: err}
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" && appErr.Status >= 400 && appErr.Status < 500 {
		return &Failure{Kind: ErrorValidation, Message: appErr.Message, Err: err}
	}
	return &Failure{Kind: ErrorTransport, Message: fallback, Err: err}
}
