package wire

import (
	"errors"
	"fmt"
	"testing"

	"github.com/danderson/wire/fragments"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: InvalidData}, "invalid data"},
		{&Error{Kind: TypeMismatch, Path: "[1].0", Detail: "want int32"}, "type mismatch at [1].0: want int32"},
		{&Error{Kind: InsufficientData, Err: fragments.ErrShortBuffer}, "insufficient data: unexpected end of input"},
		{&Error{Kind: Kind(99)}, "Kind(99)"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}

func TestErrorIs(t *testing.T) {
	sentinels := []error{
		ErrInvalidSignature,
		ErrInvalidData,
		ErrInsufficientData,
		ErrInvalidUTF8,
		ErrTypeMismatch,
		ErrUnsupportedType,
	}
	for i, want := range sentinels {
		err := fmt.Errorf("wrapped: %w", &Error{Kind: Kind(i + 1)})
		for _, other := range sentinels {
			if got := errors.Is(err, other); got != (other == want) {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", err, other, got, other == want)
			}
		}
	}

	var te error = TypeError{"chan int", errors.New("no")}
	if !errors.Is(te, ErrUnsupportedType) {
		t.Errorf("TypeError does not match ErrUnsupportedType")
	}
}

func TestAsError(t *testing.T) {
	tests := []struct {
		in   error
		want Kind
	}{
		{fragments.ErrShortBuffer, InsufficientData},
		{fmt.Errorf("reading: %w", fragments.ErrShortBuffer), InsufficientData},
		{fragments.ErrFraming, InvalidData},
		{fragments.ErrArrayTooLong, InvalidData},
		{TypeError{"int", errors.New("no")}, UnsupportedType},
		{errors.New("other"), InvalidData},
		{errorf(InvalidUTF8, "bad"), InvalidUTF8},
	}
	for _, tc := range tests {
		got := asError(tc.in)
		if got.Kind != tc.want {
			t.Errorf("asError(%v).Kind = %v, want %v", tc.in, got.Kind, tc.want)
		}
		if !errors.Is(got, tc.in) && got.Err != nil {
			t.Errorf("asError(%v) lost the underlying error", tc.in)
		}
	}
}

func TestWithPath(t *testing.T) {
	err := withPath(withPath(errorf(TypeMismatch, "bad"), fieldPath(1)), indexPath(2))
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("withPath returned %T, want *Error", err)
	}
	if e.Path != "[2].1" {
		t.Errorf("path = %q, want [2].1", e.Path)
	}
	if withPath(nil, "[0]") != nil {
		t.Errorf("withPath(nil) is not nil")
	}
	err = withPath(fragments.ErrShortBuffer, ".0")
	if !errors.Is(err, ErrInsufficientData) || !errors.Is(err, fragments.ErrShortBuffer) {
		t.Errorf("withPath(ErrShortBuffer) = %v, want insufficient data wrapping ErrShortBuffer", err)
	}
}
