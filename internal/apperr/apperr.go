// Package apperr carries the error kinds every service returns. Transports map a
// kind to their own status codes; callers branch with errors.Is against the
// sentinel values.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindPermissionDenied
	KindInvalidArgument
	KindConflictRetryable
	KindUpstreamUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConflictRetryable:
		return "conflict_retryable"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	}
	return "unknown"
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrPermissionDenied    = &Error{Kind: KindPermissionDenied}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
	ErrConflictRetryable   = &Error{Kind: KindConflictRetryable}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so that errors.Is(err, ErrNotFound) holds for every NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...interface{}) error {
	return newError(KindNotFound, op, format, args...)
}

func PermissionDenied(op, format string, args ...interface{}) error {
	return newError(KindPermissionDenied, op, format, args...)
}

func InvalidArgument(op, format string, args ...interface{}) error {
	return newError(KindInvalidArgument, op, format, args...)
}

func ConflictRetryable(op, format string, args ...interface{}) error {
	return newError(KindConflictRetryable, op, format, args...)
}

func Upstream(op string, err error) error {
	return &Error{Kind: KindUpstreamUnavailable, Op: op, Err: err}
}

// Wrap classifies a storage error. Errors that already carry a kind pass through.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Op: op, Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflictRetryable, Op: op, Err: err}
	}
	return &Error{Kind: KindUpstreamUnavailable, Op: op, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

const (
	DefaultAttempts = 3
	retryBackoff    = 10 * time.Millisecond
)

// Retry runs fn until it succeeds, fails with something other than
// ConflictRetryable, or attempts are exhausted. An exhausted conflict is
// reported as UpstreamUnavailable so it never reaches callers as a conflict.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !errors.Is(err, ErrConflictRetryable) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return Upstream("retry", ctx.Err())
		case <-time.After(time.Duration(i+1) * retryBackoff):
		}
	}
	return &Error{Kind: KindUpstreamUnavailable, Op: "retry", Msg: "conflict persisted: " + err.Error()}
}
