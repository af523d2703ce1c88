package codec

import (
	"errors"
	"fmt"
	"strings"
)

// Decode failure kinds. Every error returned by a decode function wraps
// exactly one of these.
var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrInvalidEnum       = errors.New("invalid enum value")
)

var (
	errMissing = errors.New("missing")
	errEmptyID = errors.New("empty id")
)

// DecodeError reports which entity and field could not be decoded.
type DecodeError struct {
	Entity string // wrapper key, e.g. "schedule"
	Field  string // path inside the entity, empty when the wrapper itself is at fault
	Value  string // offending raw value, if there was one
	Kind   error  // one of the Err* kinds above
	Err    error  // underlying cause, may be nil
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("codec: decode ")
	b.WriteString(e.Entity)
	if e.Field != "" {
		if !strings.HasPrefix(e.Field, "[") {
			b.WriteByte('.')
		}
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Value != "" {
		fmt.Fprintf(&b, " %q", e.Value)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func missing(entity, field string) *DecodeError {
	return &DecodeError{Entity: entity, Field: field, Kind: ErrMalformedDocument, Err: errMissing}
}

func malformed(entity, field string, err error) *DecodeError {
	return &DecodeError{Entity: entity, Field: field, Kind: ErrMalformedDocument, Err: err}
}
