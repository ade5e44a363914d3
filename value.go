package wire

import (
	"fmt"
	"strings"
)

// Value is a dynamically typed value that can be encoded in either
// wire format. Each kind of value has its own concrete type.
//
// A decoded Value may borrow strings and byte arrays from the buffer
// it was decoded from, see [Context.Borrow]. Use [Clone] to detach a
// borrowed Value from its buffer.
type Value interface {
	// Type returns the Signature of the value.
	Type() Signature

	isValue()
}

type (
	Byte       uint8
	Bool       bool
	Int16      int16
	Uint16     uint16
	Int32      int32
	Uint32     uint32
	Int64      int64
	Uint64     uint64
	Double     float64
	String     string
	ObjectPath string
	// Fd is an index into the out-of-band file descriptor list that
	// accompanies a message. Passing the descriptors themselves is
	// up to the transport.
	Fd uint32
)

func (Byte) Type() Signature       { return SigByte }
func (Bool) Type() Signature       { return SigBool }
func (Int16) Type() Signature      { return SigInt16 }
func (Uint16) Type() Signature     { return SigUint16 }
func (Int32) Type() Signature      { return SigInt32 }
func (Uint32) Type() Signature     { return SigUint32 }
func (Int64) Type() Signature      { return SigInt64 }
func (Uint64) Type() Signature     { return SigUint64 }
func (Double) Type() Signature     { return SigDouble }
func (String) Type() Signature     { return SigString }
func (ObjectPath) Type() Signature { return SigObjectPath }
func (Fd) Type() Signature         { return SigFd }

// Type returns SigSignature. A Signature is itself a Value of type
// "g".
func (Signature) Type() Signature { return SigSignature }

// Bytes is an array of bytes. It is the decoded form of "ay", and
// is interchangeable with an Array of Byte when encoding.
type Bytes []byte

func (Bytes) Type() Signature { return SigBytes }

// Array is an array of values that all have type Elem.
type Array struct {
	Elem  Signature
	Items []Value
}

// NewArray returns an Array of elem holding items.
func NewArray(elem Signature, items ...Value) Array {
	return Array{elem, items}
}

func (a Array) Type() Signature { return ArrayOf(a.Elem) }

// Struct is a struct. The struct's fields are the elements of the
// slice.
type Struct []Value

func (s Struct) Type() Signature {
	fs := make([]Signature, len(s))
	for i, f := range s {
		fs[i] = f.Type()
	}
	return StructOf(fs...)
}

// Dict is a dictionary, an array of key/value pairs with unique
// keys. Entries keep their encoding order.
type Dict struct {
	Key, Val Signature
	Entries  []DictEntry
}

// DictEntry is one key/value pair of a [Dict].
type DictEntry struct {
	Key, Value Value
}

// NewDict returns an empty Dict from key to val.
func NewDict(key, val Signature) Dict {
	return Dict{Key: key, Val: val}
}

func (d Dict) Type() Signature { return DictOf(d.Key, d.Val) }

// Lookup returns the value stored under key.
func (d Dict) Lookup(key Value) (Value, bool) {
	k := keyOf(key)
	for _, e := range d.Entries {
		if keyOf(e.Key) == k {
			return e.Value, true
		}
	}
	return nil, false
}

// Set stores val under key, replacing any previous value for key.
func (d *Dict) Set(key, val Value) {
	k := keyOf(key)
	for i, e := range d.Entries {
		if keyOf(e.Key) == k {
			d.Entries[i].Value = val
			return
		}
	}
	d.Entries = append(d.Entries, DictEntry{key, val})
}

// Variant is a value that carries its own type.
type Variant struct {
	Value Value
}

func (Variant) Type() Signature { return SigVariant }

// Maybe is an optional value of type Elem. A nil Value means
// nothing. Maybes can only be encoded in the GVariant format.
type Maybe struct {
	Elem  Signature
	Value Value
}

// Just returns a Maybe holding v.
func Just(v Value) Maybe {
	return Maybe{v.Type(), v}
}

// Nothing returns an empty Maybe of elem.
func Nothing(elem Signature) Maybe {
	return Maybe{Elem: elem}
}

// IsNothing reports whether m holds no value.
func (m Maybe) IsNothing() bool { return m.Value == nil }

func (m Maybe) Type() Signature { return MaybeOf(m.Elem) }

func (Byte) isValue()       {}
func (Bool) isValue()       {}
func (Int16) isValue()      {}
func (Uint16) isValue()     {}
func (Int32) isValue()      {}
func (Uint32) isValue()     {}
func (Int64) isValue()      {}
func (Uint64) isValue()     {}
func (Double) isValue()     {}
func (String) isValue()     {}
func (ObjectPath) isValue() {}
func (Fd) isValue()         {}
func (Signature) isValue()  {}
func (Bytes) isValue()      {}
func (Array) isValue()      {}
func (Struct) isValue()     {}
func (Dict) isValue()       {}
func (Variant) isValue()    {}
func (Maybe) isValue()      {}

// dictKey is the comparable identity of a basic Value, for detecting
// duplicate dict keys.
type dictKey struct {
	code byte
	s    string
	n    uint64
}

// keyOf returns the identity of a basic value. Doubles compare by
// bit pattern.
func keyOf(v Value) dictKey {
	switch k := v.(type) {
	case Byte:
		return dictKey{'y', "", uint64(k)}
	case Bool:
		if k {
			return dictKey{'b', "", 1}
		}
		return dictKey{'b', "", 0}
	case Int16:
		return dictKey{'n', "", uint64(k)}
	case Uint16:
		return dictKey{'q', "", uint64(k)}
	case Int32:
		return dictKey{'i', "", uint64(k)}
	case Uint32:
		return dictKey{'u', "", uint64(k)}
	case Int64:
		return dictKey{'x', "", uint64(k)}
	case Uint64:
		return dictKey{'t', "", uint64(k)}
	case Double:
		return dictKey{'d', "", doubleBits(k)}
	case String:
		return dictKey{'s', string(k), 0}
	case ObjectPath:
		return dictKey{'o', string(k), 0}
	case Signature:
		return dictKey{'g', k.String(), 0}
	case Fd:
		return dictKey{'h', "", uint64(k)}
	}
	panic(fmt.Sprintf("keyOf called on non-basic value %T", v))
}

// checkedType returns v.Type(), or a TypeMismatch error if v is
// malformed in a way that leaves it without a type: a nil value, an
// Array or Maybe without a single complete Elem, or a Dict whose Key
// isn't basic.
func checkedType(v Value) (Signature, error) {
	switch v := v.(type) {
	case nil:
		return Signature{}, errorf(TypeMismatch, "nil value has no type")
	case Array:
		if !v.Elem.IsSingle() {
			return Signature{}, errorf(TypeMismatch, "array element type %q is not a single complete type", v.Elem)
		}
	case Maybe:
		if !v.Elem.IsSingle() {
			return Signature{}, errorf(TypeMismatch, "maybe element type %q is not a single complete type", v.Elem)
		}
	case Dict:
		if !v.Key.IsBasic() {
			return Signature{}, errorf(TypeMismatch, "dict key type %q is not a basic type", v.Key)
		}
		if !v.Val.IsSingle() {
			return Signature{}, errorf(TypeMismatch, "dict value type %q is not a single complete type", v.Val)
		}
	case Struct:
		fs := make([]Signature, len(v))
		for i, f := range v {
			sig, err := checkedType(f)
			if err != nil {
				return Signature{}, withPath(err, fieldPath(i))
			}
			fs[i] = sig
		}
		return StructOf(fs...), nil
	}
	return v.Type(), nil
}

// sprintType returns the "@type" prefix of Sprint.
func sprintType(v Value) string {
	sig, err := checkedType(v)
	if err != nil {
		return "@?"
	}
	return "@" + sig.String()
}

// Sprint renders v in a compact text form, for diagnostics.
func Sprint(v Value) string {
	switch v := v.(type) {
	case nil:
		return "<nil>"
	case String:
		return fmt.Sprintf("%q", string(v))
	case ObjectPath:
		return fmt.Sprintf("objectpath %q", string(v))
	case Signature:
		return fmt.Sprintf("signature %q", v.String())
	case Fd:
		return fmt.Sprintf("fd %d", uint32(v))
	case Bytes:
		return fmt.Sprintf("bytes %q", []byte(v))
	case Array:
		ret := make([]string, len(v.Items))
		for i, it := range v.Items {
			ret[i] = Sprint(it)
		}
		return fmt.Sprintf("%s %v", sprintType(v), ret)
	case Struct:
		ret := make([]string, len(v))
		for i, f := range v {
			ret[i] = Sprint(f)
		}
		return fmt.Sprintf("(%s)", strings.Join(ret, ", "))
	case Dict:
		ret := make([]string, len(v.Entries))
		for i, e := range v.Entries {
			ret[i] = Sprint(e.Key) + ": " + Sprint(e.Value)
		}
		return fmt.Sprintf("%s {%s}", sprintType(v), strings.Join(ret, ", "))
	case Variant:
		return "<" + Sprint(v.Value) + ">"
	case Maybe:
		if v.Value == nil {
			return fmt.Sprintf("%s nothing", sprintType(v))
		}
		return "just " + Sprint(v.Value)
	default:
		return fmt.Sprint(v)
	}
}
