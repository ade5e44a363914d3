package wire

import (
	"bytes"
	"cmp"
	"math"
	"slices"
	"strings"
)

func doubleBits(d Double) uint64 {
	return math.Float64bits(float64(d))
}

// Equal reports whether a and b are the same value. Values of
// different types are never equal. Dicts are equal if they hold the
// same entries, regardless of order. Doubles compare with ==, so NaN
// is not equal to itself.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Bytes:
		switch bv := b.(type) {
		case Bytes:
			return bytes.Equal(av, bv)
		case Array:
			return bv.Elem.Equal(SigByte) && bytesEqualArray(av, bv)
		}
		return false
	case Array:
		switch bv := b.(type) {
		case Array:
			return av.Elem.Equal(bv.Elem) && slices.EqualFunc(av.Items, bv.Items, Equal)
		case Bytes:
			return av.Elem.Equal(SigByte) && bytesEqualArray(bv, av)
		}
		return false
	case Struct:
		bv, ok := b.(Struct)
		return ok && slices.EqualFunc(av, bv, Equal)
	case Dict:
		bv, ok := b.(Dict)
		if !ok || !av.Key.Equal(bv.Key) || !av.Val.Equal(bv.Val) || len(av.Entries) != len(bv.Entries) {
			return false
		}
		idx := make(map[dictKey]Value, len(bv.Entries))
		for _, e := range bv.Entries {
			idx[keyOf(e.Key)] = e.Value
		}
		for _, e := range av.Entries {
			v, ok := idx[keyOf(e.Key)]
			if !ok || !Equal(e.Value, v) {
				return false
			}
		}
		return true
	case Variant:
		bv, ok := b.(Variant)
		return ok && Equal(av.Value, bv.Value)
	case Maybe:
		bv, ok := b.(Maybe)
		return ok && av.Elem.Equal(bv.Elem) && Equal(av.Value, bv.Value)
	case Signature:
		bv, ok := b.(Signature)
		return ok && av.Equal(bv)
	default:
		// Scalars are comparable Go values of distinct types.
		return a == b
	}
}

func bytesEqualArray(bs Bytes, a Array) bool {
	if len(bs) != len(a.Items) {
		return false
	}
	for i, it := range a.Items {
		if b, ok := it.(Byte); !ok || byte(b) != bs[i] {
			return false
		}
	}
	return true
}

// Compare returns the ordering of two scalar values of the same type.
// The boolean result is false if a and b are not ordered, either
// because their types differ or because the type has no natural
// order.
func Compare(a, b Value) (int, bool) {
	switch av := a.(type) {
	case Byte:
		return cmpAs(av, b)
	case Bool:
		bv, ok := b.(Bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !bool(av):
			return -1, true
		default:
			return 1, true
		}
	case Int16:
		return cmpAs(av, b)
	case Uint16:
		return cmpAs(av, b)
	case Int32:
		return cmpAs(av, b)
	case Uint32:
		return cmpAs(av, b)
	case Int64:
		return cmpAs(av, b)
	case Uint64:
		return cmpAs(av, b)
	case Double:
		return cmpAs(av, b)
	case String:
		return cmpAs(av, b)
	case ObjectPath:
		return cmpAs(av, b)
	case Fd:
		return cmpAs(av, b)
	case Signature:
		bv, ok := b.(Signature)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.String(), bv.String()), true
	}
	return 0, false
}

func cmpAs[T cmp.Ordered](a T, b Value) (int, bool) {
	bv, ok := b.(T)
	if !ok {
		return 0, false
	}
	return cmp.Compare(a, bv), true
}

// Clone returns a deep copy of v that shares no memory with v. In
// particular, the result does not borrow from any decode buffer.
func Clone(v Value) Value {
	switch v := v.(type) {
	case String:
		return String(strings.Clone(string(v)))
	case ObjectPath:
		return ObjectPath(strings.Clone(string(v)))
	case Bytes:
		if v == nil {
			return Bytes(nil)
		}
		return Bytes(bytes.Clone(v))
	case Array:
		ret := Array{Elem: v.Elem, Items: make([]Value, len(v.Items))}
		for i, it := range v.Items {
			ret.Items[i] = Clone(it)
		}
		return ret
	case Struct:
		ret := make(Struct, len(v))
		for i, f := range v {
			ret[i] = Clone(f)
		}
		return ret
	case Dict:
		ret := Dict{Key: v.Key, Val: v.Val, Entries: make([]DictEntry, len(v.Entries))}
		for i, e := range v.Entries {
			ret.Entries[i] = DictEntry{Clone(e.Key), Clone(e.Value)}
		}
		return ret
	case Variant:
		return Variant{Clone(v.Value)}
	case Maybe:
		if v.Value == nil {
			return v
		}
		return Maybe{v.Elem, Clone(v.Value)}
	default:
		// Remaining kinds hold no references.
		return v
	}
}
