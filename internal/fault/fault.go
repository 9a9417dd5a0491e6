// Package fault carries the error taxonomy shared by the HTTP layer, the
// dispatcher and the domain packages. Every boundary error is classified into
// a Kind so transports can map it and the dispatcher can decide retryability.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindInternal is the zero value: unexpected defects.
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidInput
	KindRateLimited
	KindUpstream
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidInput:
		return "invalid_input"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error is a classified error. Err may be nil for leaf errors.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil err returns nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf walks the error chain and returns the outermost classification.
// Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether a failed work unit may be re-attempted.
// Client-class failures and timeouts are final; upstream and internal
// failures are assumed transient.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindForbidden, KindInvalidInput, KindRateLimited, KindTimeout:
		return false
	default:
		return true
	}
}
