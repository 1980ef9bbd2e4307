package domain

import (
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrUnknownKind is returned when an envelope carries a type tag outside
	// the known message kinds.
	ErrUnknownKind = errors.New("unknown envelope kind")
	// ErrDuplicate marks a unique-constraint violation (e.g. customer email).
	ErrDuplicate = errors.New("duplicate document")
	// ErrNotFound is returned by update-by-id when no document matched.
	ErrNotFound = errors.New("document not found")
)

// ValidationError reports malformed or missing fields of a payload.
type ValidationError struct {
	Kind   Kind
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "invalid " + string(e.Kind) + " data: " + strings.Join(parts, "; ")
}

// PersistenceError wraps a document store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persistence: " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// TransportError wraps a bus or outbound call failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Classify names the error class for logs and metric labels.
func Classify(err error) string {
	var (
		ve *ValidationError
		pe *PersistenceError
		te *TransportError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &pe):
		return "persistence_error"
	case errors.As(err, &te):
		return "transport_error"
	case errors.Is(err, ErrUnknownKind):
		return "unknown_kind"
	default:
		return "error"
	}
}
