package services

import (
	"errors"
	"fmt"
)

// Kind classifies service errors so callers can map them to transport
// responses without string matching.
type Kind int

const (
	KindUnknown      Kind = iota
	KindNotFound          // Resource does not exist
	KindUnauthorized      // Token/session mismatch
	KindInvalidState      // Operation not allowed in the room's current state
	KindValidation        // Caller input rejected
	KindUpstream          // Payment provider or other dependency failed
)

// Error is the typed error returned by services.
type Error struct {
	Kind    Kind
	Message string
	// CurrentHighest is set on too-low bid rejections so clients can
	// surface the amount to beat.
	CurrentHighest int64
	// Pending marks rejections where payment is still being processed,
	// so the checkout success page keeps polling instead of giving up.
	Pending bool
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ErrKind returns the Kind of err, or KindUnknown if err is not a service Error.
func ErrKind(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func notFoundErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func unauthorizedErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func invalidStateErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func validationErr(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func upstreamErr(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUpstream, Message: fmt.Sprintf(format, args...), Err: err}
}

func paymentPendingErr() *Error {
	return &Error{
		Kind:    KindInvalidState,
		Message: "room payment is still being processed",
		Pending: true,
	}
}

func bidTooLowErr(currentHighest int64) *Error {
	return &Error{
		Kind:           KindValidation,
		Message:        "bid must be higher than current highest bid",
		CurrentHighest: currentHighest,
	}
}
