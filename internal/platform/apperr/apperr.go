// Package apperr defines the error kinds the service surfaces to clients and
// their mapping onto HTTP and gRPC status codes.
package apperr

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindBadRequest      Kind = "bad_request"
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindTooManyRequests Kind = "too_many_requests"
	KindInternal        Kind = "internal"
)

// InternalMessage is the only message clients see for internal failures.
const InternalMessage = "internal server error"

// Error is a classified error. Message is safe to return to clients; Cause is
// for logs only.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// BadRequest returns a KindBadRequest error.
func BadRequest(msg string) *Error { return newError(KindBadRequest, msg, nil) }

// Unauthorized returns a KindUnauthorized error wrapping cause (may be nil).
func Unauthorized(msg string, cause error) *Error { return newError(KindUnauthorized, msg, cause) }

// NotFound returns a KindNotFound error.
func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

// Conflict returns a KindConflict error wrapping cause (may be nil).
func Conflict(msg string, cause error) *Error { return newError(KindConflict, msg, cause) }

// TooManyRequests returns a KindTooManyRequests error wrapping cause (may be nil).
func TooManyRequests(msg string, cause error) *Error {
	return newError(KindTooManyRequests, msg, cause)
}

// Internal wraps cause as a KindInternal error. The client message is always InternalMessage.
func Internal(cause error) *Error { return newError(KindInternal, InternalMessage, cause) }

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the client-safe message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return InternalMessage
}

// HTTPStatus maps err onto an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps err onto a gRPC status code.
func GRPCCode(err error) codes.Code {
	switch KindOf(err) {
	case KindBadRequest:
		return codes.InvalidArgument
	case KindUnauthorized:
		return codes.Unauthenticated
	case KindNotFound:
		return codes.NotFound
	case KindConflict:
		return codes.AlreadyExists
	case KindTooManyRequests:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

// GRPCStatus converts err into a gRPC status error carrying the public message.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(GRPCCode(err), PublicMessage(err))
}
