package domain

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind classifies a failure independently of its message text.
type ErrorKind string

const (
	KindInvalidArgument ErrorKind = "E_INVALID_ARGUMENT"
	KindAuthRequired    ErrorKind = "E_AUTH_REQUIRED"
	KindForbidden       ErrorKind = "E_FORBIDDEN"
	KindNotFound        ErrorKind = "E_NOT_FOUND"
	KindConflict        ErrorKind = "E_CONFLICT"
	KindQuotaExceeded   ErrorKind = "E_QUOTA_EXCEEDED"
	KindExpired         ErrorKind = "E_EXPIRED"
	KindRevoked         ErrorKind = "E_REVOKED"
	KindInternal        ErrorKind = "E_INTERNAL"
	KindUnavailable     ErrorKind = "E_UNAVAILABLE"
	KindTimeout         ErrorKind = "E_TIMEOUT"
)

// Error is the tagged error returned by every lifecycle operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so errors.Is(err, domain.ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// WithDetail returns a copy of e carrying an extra structured detail.
func (e *Error) WithDetail(key, value string) *Error {
	out := *e
	out.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

func (e *Error) GRPCStatus() *status.Status {
	st := status.New(grpcCode(e.Kind), e.Message)
	info := &errdetails.ErrorInfo{
		Reason:   string(e.Kind),
		Domain:   "market",
		Metadata: e.Details,
	}
	if withDetails, err := st.WithDetails(info); err == nil {
		return withDetails
	}
	return st
}

func grpcCode(kind ErrorKind) codes.Code {
	switch kind {
	case KindInvalidArgument:
		return codes.InvalidArgument
	case KindAuthRequired:
		return codes.Unauthenticated
	case KindForbidden:
		return codes.PermissionDenied
	case KindNotFound:
		return codes.NotFound
	case KindConflict:
		return codes.FailedPrecondition
	case KindQuotaExceeded:
		return codes.ResourceExhausted
	case KindExpired, KindRevoked:
		return codes.FailedPrecondition
	case KindUnavailable:
		return codes.Unavailable
	case KindTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// Kind-only sentinels for errors.Is comparisons.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrAuthRequired    = &Error{Kind: KindAuthRequired}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrQuotaExceeded   = &Error{Kind: KindQuotaExceeded}
	ErrExpired         = &Error{Kind: KindExpired}
	ErrRevoked         = &Error{Kind: KindRevoked}
	ErrInternal        = &Error{Kind: KindInternal}
	ErrUnavailable     = &Error{Kind: KindUnavailable}
	ErrTimeout         = &Error{Kind: KindTimeout}
)

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgument(format string, args ...any) *Error {
	return NewError(KindInvalidArgument, format, args...)
}

func AuthRequired(format string, args ...any) *Error {
	return NewError(KindAuthRequired, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return NewError(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return NewError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return NewError(KindConflict, format, args...)
}

func QuotaExceeded(format string, args ...any) *Error {
	return NewError(KindQuotaExceeded, format, args...)
}

func Expired(format string, args ...any) *Error {
	return NewError(KindExpired, format, args...)
}

func Revoked(format string, args ...any) *Error {
	return NewError(KindRevoked, format, args...)
}

func Unavailable(format string, args ...any) *Error {
	return NewError(KindUnavailable, format, args...)
}

// Internal wraps an unexpected failure. The cause is kept for logging only.
func Internal(cause error, format string, args ...any) *Error {
	e := NewError(KindInternal, format, args...)
	e.cause = cause
	return e
}

// KindOf reports the kind of err; untagged errors are Internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Normalize converts err into a redacted *Error. Tagged errors keep their kind and
// details; anything else is classified and its text redacted.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		out := *tagged
		out.Message = RedactMessage(tagged.Message)
		if out.cause == nil && tagged != err {
			out.cause = err
		}
		return &out
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "operation timed out", cause: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindUnavailable, Message: "operation cancelled", cause: err}
	}
	return &Error{Kind: KindInternal, Message: RedactMessage(err.Error()), cause: err}
}

// NormalizeError rewrites *errp in place. Meant for a deferred call in exported
// operations with a named error result.
func NormalizeError(errp *error) {
	if errp == nil || *errp == nil {
		return
	}
	*errp = Normalize(*errp)
}
