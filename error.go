package wire

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/danderson/wire/fragments"
)

// Kind classifies the errors returned by this package.
type Kind uint8

const (
	// InvalidSignature is a malformed or over-deep type signature.
	InvalidSignature Kind = iota + 1
	// InvalidData is input whose framing is inconsistent, such as
	// bad offsets, bad length prefixes or duplicate dict keys.
	InvalidData
	// InsufficientData is input shorter than the value requires.
	InsufficientData
	// InvalidUTF8 is a string payload that isn't valid UTF-8.
	InvalidUTF8
	// TypeMismatch is a value that doesn't match the requested type.
	TypeMismatch
	// UnsupportedType is a well-formed signature that the active
	// format cannot represent.
	UnsupportedType
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidData      = errors.New("invalid data")
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidUTF8      = errors.New("invalid utf-8")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrUnsupportedType  = errors.New("unsupported type")
)

func (k Kind) sentinel() error {
	switch k {
	case InvalidSignature:
		return ErrInvalidSignature
	case InvalidData:
		return ErrInvalidData
	case InsufficientData:
		return ErrInsufficientData
	case InvalidUTF8:
		return ErrInvalidUTF8
	case TypeMismatch:
		return ErrTypeMismatch
	case UnsupportedType:
		return ErrUnsupportedType
	}
	return nil
}

func (k Kind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error is the error returned by encode and decode operations.
//
// Errors match their Kind's sentinel with [errors.Is], for example
// errors.Is(err, ErrInvalidData).
type Error struct {
	Kind Kind
	// Path is the location of the offending value within the
	// top-level value, for example "[2].1". Empty for the top-level
	// value itself.
	Path string
	// Detail is a human-readable explanation.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var ret strings.Builder
	ret.WriteString(e.Kind.String())
	if e.Path != "" {
		fmt.Fprintf(&ret, " at %s", e.Path)
	}
	if e.Detail != "" {
		ret.WriteString(": ")
		ret.WriteString(e.Detail)
	}
	if e.Err != nil {
		ret.WriteString(": ")
		ret.WriteString(e.Err.Error())
	}
	return ret.String()
}

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Detail: fmt.Sprintf(format, args...)}
}

// asError converts err into an *Error, classifying low-level framing
// errors from the fragments package.
func asError(err error) *Error {
	var ret *Error
	if errors.As(err, &ret) {
		return ret
	}
	switch {
	case errors.Is(err, fragments.ErrShortBuffer):
		return &Error{Kind: InsufficientData, Err: err}
	case errors.Is(err, fragments.ErrFraming), errors.Is(err, fragments.ErrArrayTooLong):
		return &Error{Kind: InvalidData, Err: err}
	}
	var te TypeError
	if errors.As(err, &te) {
		return &Error{Kind: UnsupportedType, Err: err}
	}
	return &Error{Kind: InvalidData, Err: err}
}

// withPath prefixes the location of err with seg.
func withPath(err error, seg string) error {
	if err == nil {
		return nil
	}
	e := asError(err)
	e.Path = seg + e.Path
	return e
}

// TypeError is the error returned when a Go type cannot be
// represented in the wire formats.
type TypeError struct {
	// Type is the name of the type that caused the error.
	Type string
	// Reason is an explanation of why the type isn't representable.
	Reason error
}

func (e TypeError) Error() string {
	return fmt.Sprintf("wire cannot represent %s: %s", e.Type, e.Reason)
}

func (e TypeError) Unwrap() error {
	return e.Reason
}

func (e TypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

func typeErr(t reflect.Type, reason string, args ...any) error {
	ts := ""
	if t != nil {
		ts = t.String()
	}
	return TypeError{ts, fmt.Errorf(reason, args...)}
}
