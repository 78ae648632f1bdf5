package orders

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation            Kind = "VALIDATION_ERROR"
	KindNotFound              Kind = "NOT_FOUND"
	KindUnavailable           Kind = "PRODUCT_UNAVAILABLE"
	KindInsufficientStock     Kind = "INSUFFICIENT_STOCK"
	KindInvalidOption         Kind = "INVALID_OPTION"
	KindMissingRequiredOption Kind = "MISSING_REQUIRED_OPTION"
	KindInsufficientPayment   Kind = "INSUFFICIENT_PAYMENT"
	KindInvalidStatus         Kind = "INVALID_STATUS"
	KindInvalidTransition     Kind = "INVALID_TRANSITION"
	KindConflict              Kind = "CONFLICT"
)

// Error is the one error type the order workflow surfaces to callers.
// Kind doubles as the stable client-facing code.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind, so the Err* values work as sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrUnavailable           = &Error{Kind: KindUnavailable}
	ErrInsufficientStock     = &Error{Kind: KindInsufficientStock}
	ErrInvalidOption         = &Error{Kind: KindInvalidOption}
	ErrMissingRequiredOption = &Error{Kind: KindMissingRequiredOption}
	ErrInsufficientPayment   = &Error{Kind: KindInsufficientPayment}
	ErrInvalidStatus         = &Error{Kind: KindInvalidStatus}
	ErrInvalidTransition     = &Error{Kind: KindInvalidTransition}
	ErrConflict              = &Error{Kind: KindConflict}
)

// ErrDuplicateOrderNumber is returned by stores when the order_number
// uniqueness constraint fires. The service retries once before turning it
// into a Conflict.
var ErrDuplicateOrderNumber = errors.New("duplicate order number")

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
