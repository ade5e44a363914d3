package wire

import (
	"errors"
	"fmt"
)

// Simple is a struct with simple fields.
type Simple struct {
	A int16
	B bool
}

// Nested is a struct with a struct field.
type Nested struct {
	A byte
	B Simple
}

// Embedded is a struct that embeds another struct by value.
type Embedded struct {
	Simple
	C byte
}

// EmbeddedShadow is a struct that embeds another struct by value,
// with one of the embedded fields shadowed by an outer field.
type EmbeddedShadow struct {
	Simple
	B byte
}

// Embedded_P is a struct that embeds another struct by pointer.
type Embedded_P struct {
	*Simple
	C byte
}

// Embedded_PV is a struct with 2 layers of embedding, first by value
// then by pointers.
type Embedded_PV struct {
	Embedded_P
}

// Embedded_PVP is a struct with 3 layers of embedding, pointer then
// value then pointer.
type Embedded_PVP struct {
	*Embedded_PV
	D byte
}

// Arrays is a struct with various degrees of complicated arrays
// inside.
type Arrays struct {
	A []string
	B []Simple
	C [][]Nested
}

// Tree is a self-referential struct that can't be represented in the
// wire formats.
type Tree struct {
	Left  *Tree
	Right *Tree
}

// Inline is a struct that converts to a list of values.
type Inline struct {
	_ InlineLayout
	A string
	B bool
}

// InlineOne is an inline struct with a single field, which converts
// to just that field.
type InlineOne struct {
	_ InlineLayout
	A string
}

// WithAny is a struct with an interface field.
type WithAny struct {
	A uint16
	B any
}

// WithOption is a struct with optional fields.
type WithOption struct {
	A Option[int32]
	B Option[string]
}

// WithOptional is a struct with fields whose zero value means unset.
type WithOptional struct {
	Name  Optional[string]
	Count Optional[uint32]
	Tags  Optional[[]string]
}

// SelfMarshalerVal implements Marshaler and Unmarshaler with value
// method receivers. The Unmarshaler implementation is deliberately
// unusable, UnmarshalWire must have a pointer receiver.
type SelfMarshalerVal struct {
	B byte
}

func (s SelfMarshalerVal) SignatureWire() Signature { return SigUint16 }

func (s SelfMarshalerVal) MarshalWire() (Value, error) {
	return Uint16(s.B) + 1, nil
}

func (s SelfMarshalerVal) UnmarshalWire(v Value) error {
	u, ok := v.(Uint16)
	if !ok {
		return fmt.Errorf("unexpected value %s", Sprint(v))
	}
	s.B = byte(u - 1)
	return nil
}

// SelfMarshalerPtr implements Marshaler and Unmarshaler with pointer
// method receivers.
type SelfMarshalerPtr struct {
	B byte
}

func (s *SelfMarshalerPtr) SignatureWire() Signature { return SigUint16 }

func (s *SelfMarshalerPtr) MarshalWire() (Value, error) {
	return Uint16(s.B) + 1, nil
}

func (s *SelfMarshalerPtr) UnmarshalWire(v Value) error {
	u, ok := v.(Uint16)
	if !ok {
		return fmt.Errorf("unexpected value %s", Sprint(v))
	}
	s.B = byte(u - 1)
	return nil
}

// NestedSelfMarshalerPtr is a struct with a struct field that
// implements Marshaler/Unmarshaler with pointer method receivers.
type NestedSelfMarshalerPtr struct {
	A byte
	B SelfMarshalerPtr
}

// NestedSelfMarshalerVal is a struct with a field that implements
// Marshaler/Unmarshaler using value method receivers. It cannot be
// stored into.
type NestedSelfMarshalerVal struct {
	A byte
	B SelfMarshalerVal
}

// Point implements FieldVisitor.
type Point struct {
	X, Y int32
}

func (p *Point) SignatureWire() Signature { return StructOf(SigInt32, SigInt32) }

func (p *Point) VisitFields(visit func(any) error) error {
	return errors.Join(visit(&p.X), visit(&p.Y))
}

// VarDict is a struct that converts to a dict of string to variant.
type VarDict struct {
	A uint16 `wire:"key=foo"`
	B uint32 `wire:"key=bar,encodeZero"`
	C string `wire:"key=@"`
	D uint8  `wire:"key=@"`

	Other map[string]any `wire:"vardict"`
}

// VarDictByte is a struct that converts to a dict of byte to variant.
type VarDictByte struct {
	A uint16 `wire:"key=1"`
	B string `wire:"key=2"`

	Other map[byte]Value `wire:"vardict"`
}

func ptr[T any](v T) *T {
	return &v
}

func mustSignatureFor[T any]() Signature {
	sig, err := SignatureFor[T]()
	if err != nil {
		panic(err)
	}
	return sig
}

var (
	busLE = Context{Format: DBus}
	gvLE  = Context{Format: GVariant}
)
