// README: Error taxonomy; every business rejection is a sentinel *Error with a Kind.
package types

import "errors"

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindRejected
	KindIntegrity
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindRejected:
		return "rejected"
	case KindIntegrity:
		return "integrity"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a classified error with a stable machine-readable code.
// Sentinels are compared by identity, so wrap them with %w and test with errors.Is.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func NewError(kind Kind, code, msg string) *Error {
	return &Error{Code: code, Kind: kind, Message: msg}
}

func (e *Error) Error() string {
	return e.Message
}

// ErrRetryable marks a transaction that lost a serialization race.
var ErrRetryable = NewError(KindUnavailable, "retryable", "concurrent update, retry the request")

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
