package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure at the action boundary
type Kind int

// Error kinds
const (
	KindInternal Kind = iota
	KindConnection
	KindCall
	KindTransaction
	KindValidation
	KindNotOwner
	KindBusy
	KindNotFound
	KindUnauthorized
)

var kindNames = map[Kind]string{
	KindInternal:     "InternalError",
	KindConnection:   "ConnectionError",
	KindCall:         "CallError",
	KindTransaction:  "TransactionError",
	KindValidation:   "ValidationError",
	KindNotOwner:     "NotOwnerError",
	KindBusy:         "BusyError",
	KindNotFound:     "NotFoundError",
	KindUnauthorized: "UnauthorizedError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the kind onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindConnection:
		return http.StatusServiceUnavailable
	case KindCall, KindTransaction:
		return http.StatusBadGateway
	case KindValidation:
		return http.StatusBadRequest
	case KindNotOwner:
		return http.StatusForbidden
	case KindBusy:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Prompt reports whether the message is meant to be shown to the user.
// Only validation failures and the ownership gate surface; everything else
// is absorbed by the presentation layer after being logged.
func (e *AppError) Prompt() bool {
	return e.Kind == KindValidation || e.Kind == KindNotOwner
}

func newError(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// Error constructors
func Connection(message string, err error) *AppError {
	return newError(KindConnection, message, err)
}

func Call(message string, err error) *AppError {
	return newError(KindCall, message, err)
}

func Transaction(message string, err error) *AppError {
	return newError(KindTransaction, message, err)
}

func Validation(message string, err error) *AppError {
	return newError(KindValidation, message, err)
}

func NotOwner(message string) *AppError {
	return newError(KindNotOwner, message, nil)
}

func Busy(action string) *AppError {
	return newError(KindBusy, fmt.Sprintf("%s already in progress", action), nil)
}

func NotFound(resource string, err error) *AppError {
	return newError(KindNotFound, fmt.Sprintf("%s not found", resource), err)
}

func Unauthorized(err error) *AppError {
	return newError(KindUnauthorized, "unauthorized", err)
}

func Internal(err error) *AppError {
	return newError(KindInternal, "internal server error", err)
}

// As extracts the AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal when err carries none.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
