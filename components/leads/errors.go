package leads

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to views.
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindTransport       ErrorKind = "transport"
	KindServer          ErrorKind = "server"
	KindValidation      ErrorKind = "validation"
)

// Sentinels matched through errors.Is against any *Error of the same kind.
var (
	ErrUnauthenticated = errors.New("leads: unauthenticated")
	ErrTransport       = errors.New("leads: transport failure")
	ErrServer          = errors.New("leads: server reported failure")
	ErrValidation      = errors.New("leads: validation failed")
)

var (
	// ErrSuperseded is returned to a Load caller whose result was discarded because a later load
	// was dispatched on the same store.
	ErrSuperseded = errors.New("leads: load superseded by a newer request")
	// ErrMissingRowKey marks rows for which no stable identifier could be derived.
	ErrMissingRowKey = errors.New("leads: row has no identifier")
	// ErrNoSelection is the validation failure for operations that need at least one selected row.
	ErrNoSelection = NewValidationError("select at least one row")
	// ErrDraftNotApplied rejects shared submits before any remarks or tags were applied globally.
	ErrDraftNotApplied = NewValidationError("apply remarks or tags to the selection first")
)

// Error is the typed error returned by stores, tables and the API client.
type Error struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return defaultMessage(e.Kind, e.Op)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the kind sentinels so callers can branch without type assertions.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrUnauthenticated:
		return e.Kind == KindUnauthenticated
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrServer:
		return e.Kind == KindServer
	case ErrValidation:
		return e.Kind == KindValidation
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind && other.Message == e.Message
	}
	return false
}

// NewValidationError builds a local validation failure that never reaches the network.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewUnauthenticatedError builds the error returned when no usable token is available.
func NewUnauthenticatedError(op, message string) *Error {
	if message == "" {
		message = "Unauthorized: sign in to continue"
	}
	return &Error{Kind: KindUnauthenticated, Op: op, Message: message}
}

// NewTransportError wraps a rejected or timed out request.
func NewTransportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err, Message: defaultMessage(KindTransport, op)}
}

// NewServerError reports a non-2xx response or an explicit success:false body.
func NewServerError(op string, status int, message string) *Error {
	if message == "" {
		message = defaultMessage(KindServer, op)
	}
	return &Error{Kind: KindServer, Op: op, Status: status, Message: message}
}

// KindOf returns the kind of err, or an empty kind for foreign errors.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}

// Message converts any error into the human-readable text stored in fetch state.
func Message(op string, err error) string {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Error()
	}
	return fmt.Sprintf("failed to %s: %v", op, err)
}

func defaultMessage(kind ErrorKind, op string) string {
	if op == "" {
		op = "complete request"
	}
	switch kind {
	case KindUnauthenticated:
		return "Unauthorized: sign in to continue"
	case KindTransport:
		return fmt.Sprintf("failed to %s: network error", op)
	case KindServer:
		return fmt.Sprintf("failed to %s: server error", op)
	case KindValidation:
		return "invalid input"
	default:
		return fmt.Sprintf("failed to %s", op)
	}
}
