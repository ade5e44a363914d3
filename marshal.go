package wire

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// Marshal returns the encoding of v in the format and byte order
// given by ctx.
//
// If v is a [Value], Marshal encodes it with its own type. Otherwise,
// Marshal converts v with [ValueOf], and encodes the result with the
// signature returned by [SignatureOf].
func Marshal(v any, ctx Context) ([]byte, error) {
	if val, ok := v.(Value); ok {
		sig, err := checkedType(val)
		if err != nil {
			return nil, err
		}
		return Encode(val, sig, ctx)
	}
	sig, err := SignatureOf(v)
	if err != nil {
		return nil, err
	}
	val, err := ValueOf(v)
	if err != nil {
		return nil, err
	}
	return Encode(val, sig, ctx)
}

// ValueOf converts v to a dynamic [Value].
//
// ValueOf traverses v recursively. If an encountered value
// implements [Marshaler], ValueOf calls MarshalWire on it. If it
// implements [FieldVisitor], its fields become the fields of a
// [Struct].
//
// Otherwise, ValueOf uses the following type-dependent default
// conversions:
//
// uint{8,16,32,64}, int{16,32,64}, float64, bool and string values
// convert to the corresponding basic Value.
//
// Array and slice values convert to an [Array], except []byte which
// converts to [Bytes]. Nil slices convert the same as an empty slice.
//
// Struct values convert to a [Struct]. Each exported struct field is
// converted in declaration order, according to its own type.
// Embedded struct fields are converted as if their inner exported
// fields were fields in the outer struct, subject to the usual Go
// visibility rules. A struct containing an [InlineLayout] converts to
// a list of values instead.
//
// Map values convert to a [Dict], with entries in ascending key
// order. The map's key underlying type must be uint{8,16,32,64},
// int{16,32,64}, float64, bool, or string.
//
// Many protocols use a{sv} dictionaries to extend structs with new
// fields in a backwards compatible way. To support this "vardict"
// idiom, structs may contain a single "vardict" field and several
// "associated" fields:
//
//	struct Vardict{
//	    // A "vardict" map for the struct.
//	    M map[string]any `wire:"vardict"`
//
//	    // "associated" fields. Associated fields can be declared
//	    // anywhere in the struct, before or after the vardict field.
//	    Foo string `wire:"key=foo"`
//	    Bar uint32 `wire:"key=@"`
//	}
//
// A vardict field converts to a [Dict] of variants just like a
// regular map, except that associated fields with nonzero values come
// first as additional entries. An associated field can be tagged with
// `wire:"key=X,encodeZero"` to include its zero value as well. Map
// entries whose key belongs to an associated field are skipped.
//
// Pointer values convert as the value pointed to. A nil pointer
// converts as the zero value of the type pointed to.
//
// [Option] values convert to a [Maybe]. [Optional] values convert
// as their element type, with None converting as the zero value.
//
// Values of interface type convert to a [Variant] holding the
// conversion of the interface's dynamic value.
//
// int8, int, uint, uintptr, float32, complex64, complex128, channel,
// and function values cannot be converted. Attempting to convert such
// values causes ValueOf to return a [TypeError]. So do recursive
// types, which have no signature.
func ValueOf(v any) (Value, error) {
	if val, ok := v.(Value); ok {
		return val, nil
	}
	if v == nil {
		return nil, typeErr(nil, "nil interface")
	}
	conv, err := converterFor(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	return conv(reflect.ValueOf(v))
}

// Marshaler is the interface implemented by types that can convert
// themselves to a [Value].
//
// SignatureWire is invoked on zero values of the Marshaler, and must
// return a constant value. MarshalWire must return a Value of that
// type.
type Marshaler interface {
	SignatureWire() Signature
	MarshalWire() (Value, error)
}

// FieldVisitor is the interface implemented by struct-like types that
// describe their own fields.
//
// VisitFields must call visit once for each field in order, with a
// pointer to the field's storage. The same method serves both to
// convert a FieldVisitor to a [Struct] and to fill it from one.
// SignatureWire must return the signature of the fields, as a struct
// or a list.
type FieldVisitor interface {
	SignatureWire() Signature
	VisitFields(visit func(field any) error) error
}

var (
	marshalerType    = reflect.TypeFor[Marshaler]()
	fieldVisitorType = reflect.TypeFor[FieldVisitor]()
)

// converter converts a reflect.Value of a fixed type to a Value.
type converter func(v reflect.Value) (Value, error)

var converters cache[reflect.Type, converter]

func converterFor(t reflect.Type) (ret converter, err error) {
	if ret, err := converters.Get(t); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return nil, err
	}
	// Note, defer captures the type value in case it gets messed with
	// below.
	defer func(t reflect.Type) {
		if err != nil {
			converters.SetErr(t, err)
		} else {
			converters.Set(t, ret)
		}
	}(t)

	// Catches unrepresentable and recursive types before we build a
	// converter that would recurse forever.
	if _, err := signatureFor(t, nil); err != nil {
		return nil, err
	}

	if t.Kind() != reflect.Interface && t.Implements(valueType) {
		return func(v reflect.Value) (Value, error) {
			return v.Interface().(Value), nil
		}, nil
	}

	// If a value's pointer type implements Marshaler, we can avoid a
	// value copy by using it. But we can only use it for addressable
	// values, which requires an additional runtime check.
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(marshalerType) {
		return newCondAddrMarshalConverter(t), nil
	} else if t.Implements(marshalerType) {
		return newMarshalConverter(), nil
	}
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(fieldVisitorType) {
		return newFieldVisitorConverter(t), nil
	}
	if isOption(t) {
		return newOptionConverter(t)
	}

	switch t.Kind() {
	case reflect.Pointer:
		return newPtrConverter(t)
	case reflect.Interface:
		return newInterfaceConverter(), nil
	case reflect.Bool:
		return func(v reflect.Value) (Value, error) {
			return Bool(v.Bool()), nil
		}, nil
	case reflect.Int16, reflect.Int32, reflect.Int64:
		return newIntConverter(t), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return newUintConverter(t), nil
	case reflect.Float64:
		return func(v reflect.Value) (Value, error) {
			return Double(v.Float()), nil
		}, nil
	case reflect.String:
		return func(v reflect.Value) (Value, error) {
			return String(v.String()), nil
		}, nil
	case reflect.Slice, reflect.Array:
		return newSliceConverter(t)
	case reflect.Struct:
		return newStructConverter(t)
	case reflect.Map:
		return newMapConverter(t)
	}
	return nil, typeErr(t, "no wire mapping for type")
}

func newCondAddrMarshalConverter(t reflect.Type) converter {
	ptr := newMarshalConverter()
	if t.Implements(marshalerType) {
		val := newMarshalConverter()
		return func(v reflect.Value) (Value, error) {
			if v.CanAddr() {
				return ptr(v.Addr())
			}
			return val(v)
		}
	}
	return func(v reflect.Value) (Value, error) {
		if !v.CanAddr() {
			// Copy into addressable storage, MarshalWire
			// shouldn't be mutating its receiver anyway.
			p := reflect.New(t)
			p.Elem().Set(v)
			return ptr(p)
		}
		return ptr(v.Addr())
	}
}

func newMarshalConverter() converter {
	return func(v reflect.Value) (Value, error) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			v = reflect.New(v.Type().Elem())
		}
		m := v.Interface().(Marshaler)
		ret, err := m.MarshalWire()
		if err != nil {
			return nil, err
		}
		if ret == nil {
			return nil, typeErr(v.Type(), "MarshalWire returned a nil Value")
		}
		return ret, nil
	}
}

func newFieldVisitorConverter(t reflect.Type) converter {
	return func(v reflect.Value) (Value, error) {
		if !v.CanAddr() {
			p := reflect.New(t)
			p.Elem().Set(v)
			v = p.Elem()
		}
		fv := v.Addr().Interface().(FieldVisitor)
		var ret Struct
		err := fv.VisitFields(func(field any) error {
			fp := reflect.ValueOf(field)
			if fp.Kind() != reflect.Pointer || fp.IsNil() {
				return typeErr(t, "VisitFields passed %T, not a pointer to a field", field)
			}
			conv, err := converterFor(fp.Type().Elem())
			if err != nil {
				return err
			}
			fieldVal, err := conv(fp.Elem())
			if err != nil {
				return withPath(err, fieldPath(len(ret)))
			}
			ret = append(ret, fieldVal)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if fv.SignatureWire().Code() != '(' {
			if len(ret) != 1 {
				return nil, typeErr(t, "VisitFields visited %d fields for non-struct signature %q", len(ret), fv.SignatureWire())
			}
			return ret[0], nil
		}
		return ret, nil
	}
}

func newOptionConverter(t reflect.Type) (converter, error) {
	et := optionElem(t)
	elemConv, err := converterFor(et)
	if err != nil {
		return nil, err
	}
	elemSig, err := signatureFor(et, nil)
	if err != nil {
		return nil, err
	}
	if !optionMaybe(t) {
		return func(v reflect.Value) (Value, error) {
			ev, ok := v.Interface().(optionGetter).optionGet()
			if !ok {
				ev = reflect.Zero(et)
			}
			return elemConv(ev)
		}, nil
	}
	return func(v reflect.Value) (Value, error) {
		ev, ok := v.Interface().(optionGetter).optionGet()
		if !ok {
			return Nothing(elemSig), nil
		}
		inner, err := elemConv(ev)
		if err != nil {
			return nil, err
		}
		return Maybe{elemSig, inner}, nil
	}, nil
}

func newPtrConverter(t reflect.Type) (converter, error) {
	elemConv, err := converterFor(t.Elem())
	if err != nil {
		return nil, err
	}
	return func(v reflect.Value) (Value, error) {
		if v.IsNil() {
			return elemConv(reflect.Zero(t.Elem()))
		}
		return elemConv(v.Elem())
	}, nil
}

func newInterfaceConverter() converter {
	return func(v reflect.Value) (Value, error) {
		if v.IsNil() {
			return nil, errorf(TypeMismatch, "cannot convert nil %s to a variant", v.Type())
		}
		inner := v.Elem()
		if val, ok := inner.Interface().(Value); ok {
			return Variant{val}, nil
		}
		conv, err := converterFor(inner.Type())
		if err != nil {
			return nil, err
		}
		val, err := conv(inner)
		if err != nil {
			return nil, err
		}
		return Variant{val}, nil
	}
}

func newIntConverter(t reflect.Type) converter {
	switch t.Size() {
	case 2:
		return func(v reflect.Value) (Value, error) {
			return Int16(v.Int()), nil
		}
	case 4:
		return func(v reflect.Value) (Value, error) {
			return Int32(v.Int()), nil
		}
	case 8:
		return func(v reflect.Value) (Value, error) {
			return Int64(v.Int()), nil
		}
	default:
		panic("invalid newIntConverter type")
	}
}

func newUintConverter(t reflect.Type) converter {
	switch t.Size() {
	case 1:
		return func(v reflect.Value) (Value, error) {
			return Byte(v.Uint()), nil
		}
	case 2:
		return func(v reflect.Value) (Value, error) {
			return Uint16(v.Uint()), nil
		}
	case 4:
		return func(v reflect.Value) (Value, error) {
			return Uint32(v.Uint()), nil
		}
	case 8:
		return func(v reflect.Value) (Value, error) {
			return Uint64(v.Uint()), nil
		}
	default:
		panic("invalid newUintConverter type")
	}
}

func newSliceConverter(t reflect.Type) (converter, error) {
	if t.Elem().Kind() == reflect.Uint8 && !t.Elem().Implements(marshalerType) {
		// Fast path for []byte and [N]byte.
		return func(v reflect.Value) (Value, error) {
			if v.Kind() == reflect.Slice {
				return Bytes(slices.Clone(v.Bytes())), nil
			}
			ret := make(Bytes, v.Len())
			reflect.Copy(reflect.ValueOf(ret), v)
			return ret, nil
		}, nil
	}

	elemConv, err := converterFor(t.Elem())
	if err != nil {
		return nil, err
	}
	elemSig, err := signatureFor(t.Elem(), nil)
	if err != nil {
		return nil, err
	}
	return func(v reflect.Value) (Value, error) {
		ret := Array{Elem: elemSig, Items: make([]Value, 0, v.Len())}
		for i := range v.Len() {
			item, err := elemConv(v.Index(i))
			if err != nil {
				return nil, withPath(err, indexPath(i))
			}
			ret.Items = append(ret.Items, item)
		}
		return ret, nil
	}, nil
}

// fieldConverter converts one field of a struct. It is given the
// entire struct, not just the one field being converted.
type fieldConverter func(structVal reflect.Value) (Value, error)

func newStructConverter(t reflect.Type) (converter, error) {
	fs, err := getStructInfo(t)
	if err != nil {
		return nil, fmt.Errorf("getting struct info for %s: %w", t, err)
	}

	var convs []fieldConverter
	for _, f := range fs.StructFields {
		fConv, err := newStructFieldConverter(f)
		if err != nil {
			return nil, err
		}
		convs = append(convs, fConv)
	}

	if fs.NoPad && len(convs) == 1 {
		// A single-field list is just that field.
		return converter(convs[0]), nil
	}

	return func(v reflect.Value) (Value, error) {
		ret := make(Struct, 0, len(convs))
		for i, conv := range convs {
			fv, err := conv(v)
			if err != nil {
				return nil, withPath(err, fieldPath(i))
			}
			ret = append(ret, fv)
		}
		return ret, nil
	}, nil
}

func newStructFieldConverter(f *structField) (fieldConverter, error) {
	if f.IsVarDict() {
		return newVarDictFieldConverter(f)
	}

	fConv, err := converterFor(f.Type)
	if err != nil {
		return nil, err
	}
	return func(v reflect.Value) (Value, error) {
		return fConv(f.GetWithZero(v))
	}, nil
}

func newVarDictFieldConverter(f *structField) (fieldConverter, error) {
	kt := f.Type.Key()
	kConv, err := converterFor(kt)
	if err != nil {
		return nil, err
	}
	kSig, err := signatureFor(kt, nil)
	if err != nil {
		return nil, err
	}
	vConv, err := converterFor(f.Type.Elem())
	if err != nil {
		return nil, err
	}

	fieldConvs := make([]converter, len(f.Assoc))
	for i, vf := range f.Assoc {
		fieldConvs[i], err = converterFor(vf.Type)
		if err != nil {
			return nil, err
		}
	}

	return func(v reflect.Value) (Value, error) {
		ret := NewDict(kSig, SigVariant)
		for i, vf := range f.Assoc {
			fv := vf.GetWithZero(v)
			if fv.IsZero() && !vf.EncodeZero {
				continue
			}
			val, err := fieldConvs[i](fv)
			if err != nil {
				return nil, withPath(err, "."+vf.KeyText)
			}
			ret.Entries = append(ret.Entries, DictEntry{vf.Key, Variant{val}})
		}

		other := f.GetWithZero(v)
		extra := make([]DictEntry, 0, other.Len())
		for mk, mv := range other.Seq2() {
			key, err := kConv(mk)
			if err != nil {
				return nil, err
			}
			if f.Associated(key) != nil {
				continue
			}
			val, err := vConv(mv)
			if err != nil {
				return nil, withPath(err, "."+keyText(key))
			}
			extra = append(extra, DictEntry{key, val})
		}
		sortEntries(extra)
		ret.Entries = append(ret.Entries, extra...)
		return ret, nil
	}, nil
}

func newMapConverter(t reflect.Type) (converter, error) {
	kt, vt := t.Key(), t.Elem()
	kConv, err := converterFor(kt)
	if err != nil {
		return nil, err
	}
	vConv, err := converterFor(vt)
	if err != nil {
		return nil, err
	}
	kSig, err := signatureFor(kt, nil)
	if err != nil {
		return nil, err
	}
	vSig, err := signatureFor(vt, nil)
	if err != nil {
		return nil, err
	}

	return func(v reflect.Value) (Value, error) {
		ret := Dict{Key: kSig, Val: vSig, Entries: make([]DictEntry, 0, v.Len())}
		for mk, mv := range v.Seq2() {
			key, err := kConv(mk)
			if err != nil {
				return nil, err
			}
			val, err := vConv(mv)
			if err != nil {
				return nil, withPath(err, "."+keyText(key))
			}
			ret.Entries = append(ret.Entries, DictEntry{key, val})
		}
		sortEntries(ret.Entries)
		return ret, nil
	}, nil
}
