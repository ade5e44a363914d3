package wire

import (
	"errors"
	"reflect"
)

// Unmarshal decodes a value from the front of bs, in the format and
// byte order given by ctx, and stores the result in the value pointed
// to by ptr. It returns the number of bytes consumed. If ptr is nil
// or not a pointer, Unmarshal returns a [TypeError].
//
// The signature to decode is the signature of ptr's element type, see
// [SignatureFor]. The decoded [Value] is then stored as with [Store].
func Unmarshal(bs []byte, ctx Context, ptr any) (int, error) {
	target, err := targetOf(ptr)
	if err != nil {
		return 0, err
	}
	sig, err := signatureFor(target.Type(), nil)
	if err != nil {
		return 0, err
	}
	val, n, err := Decode(bs, sig, ctx)
	if err != nil {
		return 0, err
	}
	store, err := storerFor(target.Type())
	if err != nil {
		return 0, err
	}
	if err := store(val, target); err != nil {
		return 0, asError(err)
	}
	return n, nil
}

// Store stores the dynamic value v in the value pointed to by ptr. If
// ptr is nil or not a pointer, Store returns a [TypeError].
//
// Generally, Store applies the inverse of the rules used by
// [ValueOf]. If v's shape doesn't fit ptr's type, Store returns an
// [*Error] of kind [TypeMismatch].
//
// Store traverses the value pointed to by ptr recursively. If an
// encountered value implements [Unmarshaler], Store calls
// UnmarshalWire on it. Types implementing [Unmarshaler] must
// implement UnmarshalWire with a pointer receiver. Attempting to
// store using an UnmarshalWire method with a value receiver results
// in a [TypeError]. If an encountered value implements
// [FieldVisitor], Store stores each field of a [Struct] into the
// fields it visits.
//
// Otherwise, Store uses the following type-dependent rules:
//
// uint{8,16,32,64}, int{16,32,64}, float64, bool and string values
// store the corresponding basic Value.
//
// Slices store an [Array], or [Bytes] for slices of bytes. The slice
// is replaced with a new slice of the array's length. Arrays store an
// [Array] of exactly the same length. Slices of bytes alias the
// storage of the [Bytes] they are stored from.
//
// Structs store a [Struct], field by field in declaration order.
//
// Maps store a [Dict]. The map is replaced with a new map holding the
// dict's entries.
//
// A vardict field (see [ValueOf]) stores a [Dict] of variants just
// like a regular map, except that if an entry's key matches an
// associated field's tag, the variant's inner value is stored into
// that associated field instead. The vardict map only receives the
// remaining entries.
//
// Pointers store as the value pointed to. Store allocates zero values
// as needed when it encounters nil pointers.
//
// [Option] values store a [Maybe]. [Optional] values store their
// element type, and become None when the stored value is zero.
//
// [Variant] values store a Variant. Values of type any or [Value]
// store the inner value of a Variant, or any other Value as is.
func Store(v Value, ptr any) error {
	target, err := targetOf(ptr)
	if err != nil {
		return err
	}
	store, err := storerFor(target.Type())
	if err != nil {
		return err
	}
	if err := store(v, target); err != nil {
		return asError(err)
	}
	return nil
}

// As converts the dynamic value v to a T. See [Store] for the
// conversion rules.
func As[T any](v Value) (T, error) {
	var ret T
	err := Store(v, &ret)
	return ret, err
}

func targetOf(ptr any) (reflect.Value, error) {
	if ptr == nil {
		return reflect.Value{}, typeErr(nil, "can't store into nil interface")
	}
	val := reflect.ValueOf(ptr)
	if val.Kind() != reflect.Pointer {
		return reflect.Value{}, typeErr(val.Type(), "can't store into a non-pointer")
	}
	if val.IsNil() {
		return reflect.Value{}, typeErr(val.Type(), "can't store into a nil pointer")
	}
	return val.Elem(), nil
}

// Unmarshaler is the interface implemented by types that can fill
// themselves from a [Value].
//
// SignatureWire is invoked on zero values of the Unmarshaler, and
// must return a constant value.
//
// UnmarshalWire must have a pointer receiver. If Store encounters an
// Unmarshaler whose UnmarshalWire method takes a value receiver, it
// returns a [TypeError].
type Unmarshaler interface {
	SignatureWire() Signature
	UnmarshalWire(v Value) error
}

var unmarshalerType = reflect.TypeFor[Unmarshaler]()

// unmarshalerOnly is the unmarshal method of Unmarshaler by itself.
//
// It is used to enforce that the unmarshal function is implemented
// with a pointer receiver, without requiring that SignatureWire also
// have a pointer receiver.
type unmarshalerOnly interface {
	UnmarshalWire(v Value) error
}

var unmarshalerOnlyType = reflect.TypeFor[unmarshalerOnly]()

// storer stores a Value into a settable reflect.Value of a fixed
// type.
type storer func(v Value, target reflect.Value) error

var storers cache[reflect.Type, storer]

func cannotStore(v Value, t reflect.Type) error {
	sig, err := checkedType(v)
	if err != nil {
		return errorf(TypeMismatch, "cannot store %s into %s: %v", Sprint(v), t, err)
	}
	return errorf(TypeMismatch, "cannot store %s value %s into %s", sig, Sprint(v), t)
}

// storerFor returns the storer for the given type, if the type is
// representable in the wire formats.
func storerFor(t reflect.Type) (ret storer, err error) {
	if ret, err := storers.Get(t); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return nil, err
	}
	// Note, defer captures the type value before we mess with it
	// below.
	defer func(t reflect.Type) {
		if err != nil {
			storers.SetErr(t, err)
		} else {
			storers.Set(t, ret)
		}
	}(t)

	// Dynamic values store themselves, including those whose
	// signature depends on their contents.
	if t.Kind() != reflect.Interface && t.Implements(valueType) {
		return func(v Value, target reflect.Value) error {
			if v == nil || reflect.TypeOf(v) != t {
				return cannotStore(v, t)
			}
			target.Set(reflect.ValueOf(v))
			return nil
		}, nil
	}

	if _, err := signatureFor(t, nil); err != nil {
		return nil, err
	}

	// We only want Unmarshalers with pointer receivers, since a value
	// receiver would silently discard the results of the
	// UnmarshalWire call and lead to confusing bugs. There are two
	// cases we need to look for.
	//
	// The first is a pointer that implements Unmarshaler, and whose
	// pointed-to type does not implement Unmarshaler. This means the
	// type implements Unmarshaler with pointer receivers, and we can
	// call it.
	//
	// The second is a value that does not implement Unmarshaler, but
	// whose pointer does. In that case, we can take the value's
	// address and use the pointer unmarshaler. Storers are only
	// handed addressable values, so we don't need an addressability
	// check to do this.
	isPtr := t.Kind() == reflect.Pointer
	if t.Implements(unmarshalerType) {
		if !isPtr || t.Elem().Implements(unmarshalerOnlyType) {
			return nil, typeErr(t, "refusing to use wire.Unmarshaler implementation with value receiver, Unmarshalers must use pointer receivers.")
		}
		// First case, can unmarshal into pointer.
		return newUnmarshalStorer(t), nil
	} else if !isPtr && reflect.PointerTo(t).Implements(unmarshalerType) {
		// Second case, unmarshal into value.
		ptr := newUnmarshalStorer(reflect.PointerTo(t))
		return func(v Value, target reflect.Value) error {
			return ptr(v, target.Addr())
		}, nil
	}
	if !isPtr && reflect.PointerTo(t).Implements(fieldVisitorType) {
		return newFieldVisitorStorer(t), nil
	}
	if isOption(t) {
		return newOptionStorer(t)
	}

	switch t.Kind() {
	case reflect.Pointer:
		// Note, pointers to Unmarshaler are handled above.
		return newPtrStorer(t)
	case reflect.Interface:
		return newInterfaceStorer(t), nil
	case reflect.Bool:
		return func(v Value, target reflect.Value) error {
			b, ok := v.(Bool)
			if !ok {
				return cannotStore(v, t)
			}
			target.SetBool(bool(b))
			return nil
		}, nil
	case reflect.Int16, reflect.Int32, reflect.Int64:
		return newIntStorer(t), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return newUintStorer(t), nil
	case reflect.Float64:
		return func(v Value, target reflect.Value) error {
			d, ok := v.(Double)
			if !ok {
				return cannotStore(v, t)
			}
			target.SetFloat(float64(d))
			return nil
		}, nil
	case reflect.String:
		return func(v Value, target reflect.Value) error {
			s, ok := v.(String)
			if !ok {
				return cannotStore(v, t)
			}
			target.SetString(string(s))
			return nil
		}, nil
	case reflect.Slice, reflect.Array:
		return newSliceStorer(t)
	case reflect.Struct:
		return newStructStorer(t)
	case reflect.Map:
		return newMapStorer(t)
	}

	return nil, typeErr(t, "no wire mapping for type")
}

func newUnmarshalStorer(t reflect.Type) storer {
	return func(v Value, target reflect.Value) error {
		if target.IsNil() {
			target.Set(reflect.New(t.Elem()))
		}
		m := target.Interface().(Unmarshaler)
		return m.UnmarshalWire(v)
	}
}

func newFieldVisitorStorer(t reflect.Type) storer {
	return func(v Value, target reflect.Value) error {
		fv := target.Addr().Interface().(FieldVisitor)
		fields, ok := v.(Struct)
		if sig := fv.SignatureWire(); sig.Code() != '(' {
			fields, ok = Struct{v}, true
		}
		if !ok {
			return cannotStore(v, t)
		}
		i := 0
		err := fv.VisitFields(func(field any) error {
			fp := reflect.ValueOf(field)
			if fp.Kind() != reflect.Pointer || fp.IsNil() {
				return typeErr(t, "VisitFields passed %T, not a pointer to a field", field)
			}
			if i >= len(fields) {
				return cannotStore(v, t)
			}
			store, err := storerFor(fp.Type().Elem())
			if err != nil {
				return err
			}
			if err := store(fields[i], fp.Elem()); err != nil {
				return withPath(err, fieldPath(i))
			}
			i++
			return nil
		})
		if err != nil {
			return err
		}
		if i != len(fields) {
			return cannotStore(v, t)
		}
		return nil
	}
}

func newOptionStorer(t reflect.Type) (storer, error) {
	et := optionElem(t)
	elemStore, err := storerFor(et)
	if err != nil {
		return nil, err
	}
	elemSig, err := signatureFor(et, nil)
	if err != nil {
		return nil, err
	}
	if !optionMaybe(t) {
		return func(v Value, target reflect.Value) error {
			o := target.Addr().Interface().(optionSetter)
			return o.optionSet(func(ev reflect.Value) error {
				return elemStore(v, ev)
			})
		}, nil
	}
	return func(v Value, target reflect.Value) error {
		m, ok := v.(Maybe)
		if !ok || !m.Elem.Equal(elemSig) {
			return cannotStore(v, t)
		}
		o := target.Addr().Interface().(optionSetter)
		if m.Value == nil {
			return o.optionSet(nil)
		}
		return o.optionSet(func(ev reflect.Value) error {
			return elemStore(m.Value, ev)
		})
	}, nil
}

func newPtrStorer(t reflect.Type) (storer, error) {
	elem := t.Elem()
	elemStore, err := storerFor(elem)
	if err != nil {
		return nil, err
	}
	return func(v Value, target reflect.Value) error {
		if target.IsNil() {
			if !target.CanSet() {
				panic("got an unsettable nil pointer, should be impossible!")
			}
			elem := reflect.New(elem)
			if err := elemStore(v, elem.Elem()); err != nil {
				return err
			}
			target.Set(elem)
			return nil
		}
		return elemStore(v, target.Elem())
	}, nil
}

func newInterfaceStorer(t reflect.Type) storer {
	return func(v Value, target reflect.Value) error {
		if vv, ok := v.(Variant); ok {
			v = vv.Value
		}
		if v == nil || !reflect.TypeOf(v).AssignableTo(t) {
			return cannotStore(v, t)
		}
		target.Set(reflect.ValueOf(v))
		return nil
	}
}

func newIntStorer(t reflect.Type) storer {
	switch t.Size() {
	case 2:
		return func(v Value, target reflect.Value) error {
			i, ok := v.(Int16)
			if !ok {
				return cannotStore(v, t)
			}
			target.SetInt(int64(i))
			return nil
		}
	case 4:
		return func(v Value, target reflect.Value) error {
			i, ok := v.(Int32)
			if !ok {
				return cannotStore(v, t)
			}
			target.SetInt(int64(i))
			return nil
		}
	case 8:
		return func(v Value, target reflect.Value) error {
			i, ok := v.(Int64)
			if !ok {
				return cannotStore(v, t)
			}
			target.SetInt(int64(i))
			return nil
		}
	default:
		panic("invalid newIntStorer type")
	}
}

func newUintStorer(t reflect.Type) storer {
	switch t.Size() {
	case 1:
		return func(v Value, target reflect.Value) error {
			u, ok := v.(Byte)
			if !ok {
				return cannotStore(v, t)
			}
			target.SetUint(uint64(u))
			return nil
		}
	case 2:
		return func(v Value, target reflect.Value) error {
			u, ok := v.(Uint16)
			if !ok {
				return cannotStore(v, t)
			}
			target.SetUint(uint64(u))
			return nil
		}
	case 4:
		return func(v Value, target reflect.Value) error {
			u, ok := v.(Uint32)
			if !ok {
				return cannotStore(v, t)
			}
			target.SetUint(uint64(u))
			return nil
		}
	case 8:
		return func(v Value, target reflect.Value) error {
			u, ok := v.(Uint64)
			if !ok {
				return cannotStore(v, t)
			}
			target.SetUint(uint64(u))
			return nil
		}
	default:
		panic("invalid newUintStorer type")
	}
}

// byteItems returns the contents of v, if it is an array of bytes.
func byteItems(v Value) ([]byte, bool) {
	switch a := v.(type) {
	case Bytes:
		return a, true
	case Array:
		if a.Elem.Code() != 'y' {
			return nil, false
		}
		ret := make([]byte, len(a.Items))
		for i, it := range a.Items {
			b, ok := it.(Byte)
			if !ok {
				return nil, false
			}
			ret[i] = byte(b)
		}
		return ret, true
	}
	return nil, false
}

func newSliceStorer(t reflect.Type) (storer, error) {
	if t.Elem().Kind() == reflect.Uint8 && !reflect.PointerTo(t.Elem()).Implements(unmarshalerType) {
		// Fast path for []byte and [N]byte.
		return func(v Value, target reflect.Value) error {
			bs, ok := byteItems(v)
			if !ok {
				return cannotStore(v, t)
			}
			if t.Kind() == reflect.Slice {
				target.SetBytes(bs)
				return nil
			}
			if len(bs) != t.Len() {
				return errorf(TypeMismatch, "cannot store %d bytes into %s", len(bs), t)
			}
			for i, b := range bs {
				target.Index(i).SetUint(uint64(b))
			}
			return nil
		}, nil
	}

	elemStore, err := storerFor(t.Elem())
	if err != nil {
		return nil, err
	}
	elemSig, err := signatureFor(t.Elem(), nil)
	if err != nil {
		return nil, err
	}

	return func(v Value, target reflect.Value) error {
		a, ok := v.(Array)
		if !ok || !a.Elem.Equal(elemSig) {
			return cannotStore(v, t)
		}
		n := len(a.Items)
		dst := target
		if t.Kind() == reflect.Slice {
			dst = reflect.MakeSlice(t, n, n)
		} else if n != t.Len() {
			return errorf(TypeMismatch, "cannot store array of %d elements into %s", n, t)
		}
		for i, item := range a.Items {
			if err := elemStore(item, dst.Index(i)); err != nil {
				return withPath(err, indexPath(i))
			}
		}
		if t.Kind() == reflect.Slice {
			target.Set(dst)
		}
		return nil
	}, nil
}

// fieldStorer stores one field of a struct. It is given the entire
// struct, not just the one field being stored.
type fieldStorer func(v Value, structVal reflect.Value) error

func newStructStorer(t reflect.Type) (storer, error) {
	fs, err := getStructInfo(t)
	if err != nil {
		return nil, typeErr(t, "getting struct info: %w", err)
	}

	var frags []fieldStorer
	for _, f := range fs.StructFields {
		fStore, err := newStructFieldStorer(f)
		if err != nil {
			return nil, err
		}
		frags = append(frags, fStore)
	}

	if fs.NoPad && len(frags) == 1 {
		return storer(frags[0]), nil
	}

	return func(v Value, target reflect.Value) error {
		st, ok := v.(Struct)
		if !ok || len(st) != len(frags) {
			return cannotStore(v, t)
		}
		for i, frag := range frags {
			if err := frag(st[i], target); err != nil {
				return withPath(err, fieldPath(i))
			}
		}
		return nil
	}, nil
}

func newStructFieldStorer(f *structField) (fieldStorer, error) {
	if f.IsVarDict() {
		return newVarDictFieldStorer(f)
	}

	fStore, err := storerFor(f.Type)
	if err != nil {
		return nil, err
	}
	return func(v Value, structVal reflect.Value) error {
		return fStore(v, f.GetWithAlloc(structVal))
	}, nil
}

func newVarDictFieldStorer(f *structField) (fieldStorer, error) {
	kt := f.Type.Key()
	kStore, err := storerFor(kt)
	if err != nil {
		return nil, err
	}
	kSig, err := signatureFor(kt, nil)
	if err != nil {
		return nil, err
	}
	vStore, err := storerFor(f.Type.Elem())
	if err != nil {
		return nil, err
	}

	fieldStores := map[*varDictField]storer{}
	for _, vf := range f.Assoc {
		fieldStores[vf], err = storerFor(vf.Type)
		if err != nil {
			return nil, err
		}
	}

	return func(v Value, structVal reflect.Value) error {
		d, ok := v.(Dict)
		if !ok || !d.Key.Equal(kSig) || !d.Val.Equal(SigVariant) {
			return cannotStore(v, f.Type)
		}

		unknown := f.GetWithAlloc(structVal)
		if !unknown.IsNil() {
			unknown.Clear()
		}

		for _, e := range d.Entries {
			if field := f.Associated(e.Key); field != nil {
				inner := e.Value
				if vv, ok := inner.(Variant); ok {
					inner = vv.Value
				}
				fv := field.GetWithAlloc(structVal)
				if err := fieldStores[field](inner, fv); err != nil {
					return withPath(err, "."+field.KeyText)
				}
				continue
			}

			key := reflect.New(kt).Elem()
			if err := kStore(e.Key, key); err != nil {
				return err
			}
			if unknown.IsNil() {
				unknown.Set(reflect.MakeMap(f.Type))
			}
			val := reflect.New(f.Type.Elem()).Elem()
			if err := vStore(e.Value, val); err != nil {
				return withPath(err, "."+keyText(e.Key))
			}
			unknown.SetMapIndex(key, val)
		}
		return nil
	}, nil
}

func newMapStorer(t reflect.Type) (storer, error) {
	kt, vt := t.Key(), t.Elem()
	kStore, err := storerFor(kt)
	if err != nil {
		return nil, err
	}
	vStore, err := storerFor(vt)
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

	return func(v Value, target reflect.Value) error {
		d, ok := v.(Dict)
		if !ok || !d.Key.Equal(kSig) || !d.Val.Equal(vSig) {
			return cannotStore(v, t)
		}
		m := reflect.MakeMapWithSize(t, len(d.Entries))
		for i, e := range d.Entries {
			key := reflect.New(kt).Elem()
			if err := kStore(e.Key, key); err != nil {
				return withPath(err, indexPath(i))
			}
			val := reflect.New(vt).Elem()
			if err := vStore(e.Value, val); err != nil {
				return withPath(err, indexPath(i))
			}
			m.SetMapIndex(key, val)
		}
		target.Set(m)
		return nil
	}, nil
}
