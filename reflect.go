package wire

import (
	"errors"
	"iter"
	"reflect"
	"slices"
)

// A signer provides its own Signature.
type signer interface {
	SignatureWire() Signature
}

var (
	signerType = reflect.TypeFor[signer]()
	valueType  = reflect.TypeFor[Value]()
)

// dynamicTypes are Value types whose Signature depends on their
// contents, and so cannot be derived from their Go type.
var dynamicTypes = []reflect.Type{
	reflect.TypeFor[Array](),
	reflect.TypeFor[Dict](),
	reflect.TypeFor[Struct](),
	reflect.TypeFor[Maybe](),
}

var typeToSignature cache[reflect.Type, Signature]

// SignatureFor returns the Signature for the given type.
func SignatureFor[T any]() (Signature, error) {
	return signatureFor(reflect.TypeFor[T](), nil)
}

// SignatureOf returns the Signature of the given value. If v is a
// [Value], SignatureOf returns v.Type().
func SignatureOf(v any) (Signature, error) {
	if val, ok := v.(Value); ok {
		return checkedType(val)
	}
	return signatureFor(reflect.TypeOf(v), nil)
}

func signatureFor(t reflect.Type, stack []reflect.Type) (sig Signature, err error) {
	if t == nil {
		return Signature{}, typeErr(t, "nil interface")
	}
	if ret, err := typeToSignature.Get(t); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return Signature{}, err
	}

	if slices.Contains(stack, t) {
		return Signature{}, typeErr(t, "recursive type")
	}
	stack = append(stack, t)

	// Note, defer captures the type value before we mess with it
	// below.
	defer func(t reflect.Type) {
		if err != nil {
			typeToSignature.SetErr(t, err)
		} else {
			typeToSignature.Set(t, sig)
		}
	}(t)

	t = derefType(t)

	if ret, ok := typeToSig[t]; ok {
		return ret, nil
	}
	if slices.Contains(dynamicTypes, t) {
		return Signature{}, typeErr(t, "signature depends on the value, use a Variant instead")
	}

	if reflect.PointerTo(t).Implements(signerType) {
		ret := reflect.New(t).Interface().(signer).SignatureWire()
		if ret.IsZero() {
			return Signature{}, typeErr(t, "SignatureWire returned the empty signature")
		}
		return ret, nil
	}

	if isOption(t) {
		es, err := signatureFor(optionElem(t), stack)
		if err != nil {
			return Signature{}, err
		}
		if !es.IsSingle() {
			return Signature{}, typeErr(t, "option element type must be a single complete type")
		}
		if !optionMaybe(t) {
			return es, nil
		}
		return MaybeOf(es), nil
	}

	if ret, ok := kindToSig[t.Kind()]; ok {
		return ret, nil
	}

	switch t.Kind() {
	case reflect.Int, reflect.Uint:
		return Signature{}, typeErr(t, "int and uint aren't portable, use fixed width integers")
	case reflect.Int8:
		return Signature{}, typeErr(t, "int8 has no corresponding wire type, use uint8 instead")
	case reflect.Float32:
		return Signature{}, typeErr(t, "float32 has no corresponding wire type, use float64 instead")
	case reflect.Slice, reflect.Array:
		es, err := signatureFor(t.Elem(), stack)
		if err != nil {
			return Signature{}, err
		}
		if !es.IsSingle() {
			return Signature{}, typeErr(t, "element type must be a single complete type")
		}
		return ArrayOf(es), nil
	case reflect.Map:
		k := t.Key()
		if !mapKeyKinds.Has(k.Kind()) {
			return Signature{}, typeErr(t, "map keys must be basic types")
		}
		ks, err := signatureFor(k, stack)
		if err != nil {
			return Signature{}, err
		}
		if !ks.IsBasic() {
			return Signature{}, typeErr(t, "map key type %q is not a basic type", ks)
		}
		vs, err := signatureFor(t.Elem(), stack)
		if err != nil {
			return Signature{}, err
		}
		if !vs.IsSingle() {
			return Signature{}, typeErr(t, "map value type must be a single complete type")
		}
		return DictOf(ks, vs), nil
	case reflect.Struct:
		fs, err := getStructInfo(t)
		if err != nil {
			return Signature{}, typeErr(t, "getting struct info: %w", err)
		}
		var sigs []Signature
		for _, f := range fs.StructFields {
			// Descend through all fields, to look for cyclic
			// references.
			fieldSig, err := signatureFor(f.Type, stack)
			if err != nil {
				return Signature{}, err
			}
			if !fieldSig.IsSingle() {
				return Signature{}, typeErr(t, "field %s must be a single complete type, not %q", f.Name, fieldSig)
			}
			sigs = append(sigs, fieldSig)
		}
		if !fs.NoPad {
			return StructOf(sigs...), nil
		}
		switch len(sigs) {
		case 0:
			return Signature{}, typeErr(t, "inline struct has no fields")
		case 1:
			return sigs[0], nil
		default:
			return StructOf(sigs...).asList(), nil
		}
	}

	return Signature{}, typeErr(t, "no wire mapping for type")
}

// asList returns the list of the fields of the struct s.
func (s Signature) asList() Signature {
	return Signature{mkNode('(', nil, s.t.fields, true)}
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// allocSteps partitions a multi-hop traversal of struct fields into
// segments that end at either the final value, or at a struct pointer
// that might be nil.
//
// This partition is used by [structField.GetWithZero] and
// [structField.GetWithAlloc] to load embedded struct fields that
// require traversing a nil pointer.
func allocSteps(t reflect.Type, idx []int) [][]int {
	var ret [][]int
	prev := 0
	t = t.Field(idx[0]).Type
	for i := 1; i < len(idx); i++ {
		if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
			// Hop through a struct pointer that might be nil, cut.
			ret = append(ret, idx[prev:i])
			prev = i
			t = t.Elem()
		}
		t = t.Field(idx[i]).Type
	}
	ret = append(ret, idx[prev:])
	return ret
}

// structFields iterates over the visible fields of t in declaration
// order, with the fields of embedded structs in place of the embedded
// struct. Fields shadowed by a shallower field of the same name are
// skipped.
func structFields(t reflect.Type) iter.Seq[reflect.StructField] {
	return func(yield func(reflect.StructField) bool) {
		for _, f := range reflect.VisibleFields(t) {
			if f.Anonymous && derefType(f.Type).Kind() == reflect.Struct {
				continue
			}
			if !yield(f) {
				return
			}
		}
	}
}
