package wire

import "reflect"

// Option is an optional value of type T. It converts to and from a
// GVariant maybe of T's signature.
//
// The zero Option is None.
type Option[T any] struct {
	val T
	ok  bool
}

// Some returns an Option holding v.
func Some[T any](v T) Option[T] {
	return Option[T]{v, true}
}

// None returns an empty Option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// Get returns the Option's value, and whether it has one.
func (o Option[T]) Get() (T, bool) {
	return o.val, o.ok
}

// IsSome reports whether o holds a value.
func (o Option[T]) IsSome() bool { return o.ok }

func (o Option[T]) optionElem() reflect.Type { return reflect.TypeFor[T]() }
func (o Option[T]) optionMaybe() bool { return true }

func (o Option[T]) optionGet() (reflect.Value, bool) {
	return reflect.ValueOf(&o.val).Elem(), o.ok
}

// optionSet sets o to None if fill is nil, or to Some of the value
// that fill stores into its argument.
func (o *Option[T]) optionSet(fill func(reflect.Value) error) error {
	if fill == nil {
		*o = Option[T]{}
		return nil
	}
	var v T
	if err := fill(reflect.ValueOf(&v).Elem()); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Optional is an optional value of type T that converts to and from
// T's own signature, in either format. None is encoded as T's zero
// value, and decoding T's zero value (or an empty array or dict)
// yields None. This is the usual
// D-Bus idiom for optional values, such as an empty string standing
// in for "unset".
//
// Some of T's zero value cannot be represented, and marshals the same
// as None.
//
// The zero Optional is None.
type Optional[T any] struct {
	val T
	ok  bool
}

// SomeOptional returns an Optional holding v.
func SomeOptional[T any](v T) Optional[T] {
	return Optional[T]{v, true}
}

// Get returns the Optional's value, and whether it has one.
func (o Optional[T]) Get() (T, bool) {
	return o.val, o.ok
}

// IsSome reports whether o holds a value.
func (o Optional[T]) IsSome() bool { return o.ok }

func (o Optional[T]) optionElem() reflect.Type { return reflect.TypeFor[T]() }
func (o Optional[T]) optionMaybe() bool { return false }

func (o Optional[T]) optionGet() (reflect.Value, bool) {
	return reflect.ValueOf(&o.val).Elem(), o.ok
}

// optionSet sets o to None if fill is nil or stores an empty value,
// and to Some of the stored value otherwise.
func (o *Optional[T]) optionSet(fill func(reflect.Value) error) error {
	*o = Optional[T]{}
	if fill == nil {
		return nil
	}
	var v T
	rv := reflect.ValueOf(&v).Elem()
	if err := fill(rv); err != nil {
		return err
	}
	if !isEmpty(rv) {
		*o = SomeOptional(v)
	}
	return nil
}

// isEmpty reports whether v is its type's zero value, or an empty
// slice or map.
func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	}
	return v.IsZero()
}

type optionGetter interface {
	optionElem() reflect.Type
	// optionMaybe reports whether the option is a maybe type on the
	// wire, rather than its element type with zero meaning None.
	optionMaybe() bool
	optionGet() (reflect.Value, bool)
}

type optionSetter interface {
	optionSet(func(reflect.Value) error) error
}

var (
	optionGetterType = reflect.TypeFor[optionGetter]()
	optionSetterType = reflect.TypeFor[optionSetter]()
)

func isOption(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.Implements(optionGetterType) && reflect.PointerTo(t).Implements(optionSetterType)
}

// optionElem returns the element type of the Option or Optional
// type t.
func optionElem(t reflect.Type) reflect.Type {
	return reflect.Zero(t).Interface().(optionGetter).optionElem()
}

// optionMaybe reports whether the option type t is a maybe on the
// wire.
func optionMaybe(t reflect.Type) bool {
	return reflect.Zero(t).Interface().(optionGetter).optionMaybe()
}
