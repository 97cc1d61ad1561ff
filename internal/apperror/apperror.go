package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of any transport
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindUpstreamUnavailable
	KindInsufficientInventory
	KindBookingExpired
	KindDuplicatePayment
	KindPaymentAmountMismatch
	KindUserMismatch
	KindCancellationFailed
	KindPersistence
	KindIdempotencyViolation
	KindInvalidRequest
	KindInvalidTransition
)

var kindNames = map[Kind]string{
	KindUnknown:               "Unknown",
	KindNotFound:              "NotFound",
	KindUpstreamUnavailable:   "UpstreamUnavailable",
	KindInsufficientInventory: "InsufficientInventory",
	KindBookingExpired:        "BookingExpired",
	KindDuplicatePayment:      "DuplicatePayment",
	KindPaymentAmountMismatch: "PaymentAmountMismatch",
	KindUserMismatch:          "UserMismatch",
	KindCancellationFailed:    "CancellationFailed",
	KindPersistence:           "PersistenceError",
	KindIdempotencyViolation:  "IdempotencyViolation",
	KindInvalidRequest:        "InvalidRequest",
	KindInvalidTransition:     "InvalidTransition",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified failure. Message is safe to show to clients,
// Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates a classified error without a cause
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err under kind
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperror.New(KindNotFound, ""))
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// MessageOf returns the client-safe message of err, or fallback for
// unclassified errors.
func MessageOf(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
