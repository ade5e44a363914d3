package wire

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// InlineLayout marks a struct as a list of values rather than a
// struct. A struct with a field of type InlineLayout has the
// signature of its fields concatenated, such as "su" rather than
// "(su)". This is the shape of a D-Bus message body.
type InlineLayout struct{}

// structField is a struct field that converts to or from one
// struct field Value, or one dict for vardicts.
type structField struct {
	Name string
	// Index is the path to the field from the outer struct, cut
	// at every embedded struct pointer. See allocSteps.
	Index [][]int
	Type  reflect.Type

	// Assoc are the associated fields of a vardict map, sorted by
	// key. Nil for fields that aren't vardicts.
	Assoc []*varDictField
	assoc map[dictKey]*varDictField
}

// IsVarDict reports whether the field is a vardict map.
func (f *structField) IsVarDict() bool {
	return f.assoc != nil
}

// Associated returns the associated field for the vardict key, or
// nil if key has no associated field.
func (f *structField) Associated(key Value) *varDictField {
	if f.assoc == nil || key == nil {
		return nil
	}
	return f.assoc[keyOf(key)]
}

// GetWithZero returns the field's value in structVal. If the field
// is behind a nil embedded struct pointer, GetWithZero returns a
// non-settable zero value instead.
func (f *structField) GetWithZero(structVal reflect.Value) reflect.Value {
	v := structVal
	for i, hop := range f.Index {
		if i > 0 {
			if v.IsNil() {
				return reflect.Zero(f.Type)
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(hop)
	}
	return v
}

// GetWithAlloc returns the settable field in structVal, allocating
// any nil embedded struct pointers on the way.
func (f *structField) GetWithAlloc(structVal reflect.Value) reflect.Value {
	v := structVal
	for i, hop := range f.Index {
		if i > 0 {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(hop)
	}
	return v
}

// varDictField is a struct field that holds one key of a vardict,
// with a concrete type instead of a variant.
type varDictField struct {
	*structField
	// Key is the dict key that maps to the field.
	Key Value
	// KeyText is the canonical text of Key, for error paths.
	KeyText string
	// EncodeZero is whether to include the field when it holds its
	// zero value. By default, zero values are presumed to be unset
	// optional values and skipped.
	EncodeZero bool
}

// structInfo is the conversion-relevant shape of a struct type.
type structInfo struct {
	Name string
	Type reflect.Type
	// NoPad reports that the struct is a list of values rather than
	// a struct. See [InlineLayout].
	NoPad bool

	StructFields []*structField
}

var structInfos cache[reflect.Type, *structInfo]

// getStructInfo returns the structInfo for t.
//
// getStructInfo returns an error if t is not a struct, or if the
// struct is malformed in a way that prevents its conversion.
func getStructInfo(t reflect.Type) (ret *structInfo, err error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s is not a struct", t)
	}
	if ret, err := structInfos.Get(t); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return nil, err
	}
	defer func() {
		if err != nil {
			structInfos.SetErr(t, err)
		} else {
			structInfos.Set(t, ret)
		}
	}()

	ret = &structInfo{
		Name: t.String(),
		Type: t,
	}

	var (
		varDictMap    *structField
		varDictFields []*varDictField
		keyTags       []string
	)
	for field := range structFields(t) {
		if !field.IsExported() {
			if field.Type == reflect.TypeFor[InlineLayout]() {
				ret.NoPad = true
			}
			continue
		}

		tag := parseStructTag(field)
		fieldInfo := &structField{
			Name:  field.Name,
			Type:  field.Type,
			Index: allocSteps(t, field.Index),
		}

		switch {
		case tag.vardict:
			if varDictMap != nil {
				return nil, fmt.Errorf("struct %s has two vardict maps, %s and %s", ret.Name, varDictMap.Name, fieldInfo.Name)
			}
			if !isValidVarDictMapType(fieldInfo.Type) {
				return nil, fmt.Errorf("vardict map %s.%s must be a map[K]any or map[K]wire.Value", ret.Name, fieldInfo.Name)
			}
			fieldInfo.assoc = map[dictKey]*varDictField{}
			varDictMap = fieldInfo
			ret.StructFields = append(ret.StructFields, fieldInfo)
		case tag.key != "":
			varDictFields = append(varDictFields, &varDictField{
				structField: fieldInfo,
				EncodeZero:  tag.encodeZero,
			})
			keyTags = append(keyTags, tag.key)
		default:
			ret.StructFields = append(ret.StructFields, fieldInfo)
		}
	}

	if len(varDictFields) == 0 {
		return ret, nil
	}
	if varDictMap == nil {
		return nil, fmt.Errorf("vardict fields declared in struct %s, but no map[K]any tagged with 'vardict'", ret.Name)
	}

	keySig, err := signatureFor(varDictMap.Type.Key(), nil)
	if err != nil {
		return nil, err
	}
	for i, f := range varDictFields {
		key, err := parseKeyText(keySig, keyTags[i])
		if err != nil {
			return nil, fmt.Errorf("invalid key %q for vardict field %s.%s (expected %q): %w", keyTags[i], ret.Name, f.Name, keySig, err)
		}
		// Parsing canonicalizes, e.g. "0x10" and "16" are the same
		// uint key.
		f.Key, f.KeyText = key, keyText(key)
		if prev := varDictMap.assoc[keyOf(key)]; prev != nil {
			if f.KeyText != keyTags[i] {
				return nil, fmt.Errorf("duplicate vardict key %q (canonicalized from %q) in struct %s, used by %s and %s", f.KeyText, keyTags[i], ret.Name, f.Name, prev.Name)
			}
			return nil, fmt.Errorf("duplicate vardict key %q in struct %s, used by %s and %s", f.KeyText, ret.Name, f.Name, prev.Name)
		}
		varDictMap.assoc[keyOf(key)] = f
		varDictMap.Assoc = append(varDictMap.Assoc, f)
	}
	slices.SortFunc(varDictMap.Assoc, func(a, b *varDictField) int {
		c, _ := Compare(a.Key, b.Key)
		return c
	})

	return ret, nil
}

type structTag struct {
	encodeZero bool
	vardict    bool
	key        string
}

// parseStructTag returns the information contained in field's "wire"
// struct tag.
func parseStructTag(field reflect.StructField) structTag {
	var ret structTag
	for _, f := range strings.Split(field.Tag.Get("wire"), ",") {
		switch f {
		case "encodeZero":
			ret.encodeZero = true
		case "vardict":
			ret.vardict = true
		default:
			if val, ok := strings.CutPrefix(f, "key="); ok {
				if val == "@" {
					val = field.Name
				}
				ret.key = val
			}
		}
	}
	return ret
}

// isValidVarDictMapType reports whether t is a valid vardict type,
// i.e. a map[K]any or map[K]Value where K is a valid map key type.
func isValidVarDictMapType(t reflect.Type) bool {
	if t.Kind() != reflect.Map || !mapKeyKinds.Has(t.Key().Kind()) {
		return false
	}
	return t.Elem() == reflect.TypeFor[any]() || t.Elem() == reflect.TypeFor[Value]()
}

// parseKeyText parses s as a Value of the basic type sig. Integers
// accept Go integer literal syntax.
func parseKeyText(sig Signature, s string) (Value, error) {
	switch sig.Code() {
	case 'b':
		b, err := strconv.ParseBool(s)
		return Bool(b), err
	case 'y':
		u, err := strconv.ParseUint(s, 0, 8)
		return Byte(u), err
	case 'n':
		i, err := strconv.ParseInt(s, 0, 16)
		return Int16(i), err
	case 'q':
		u, err := strconv.ParseUint(s, 0, 16)
		return Uint16(u), err
	case 'i':
		i, err := strconv.ParseInt(s, 0, 32)
		return Int32(i), err
	case 'u':
		u, err := strconv.ParseUint(s, 0, 32)
		return Uint32(u), err
	case 'h':
		u, err := strconv.ParseUint(s, 0, 32)
		return Fd(u), err
	case 'x':
		i, err := strconv.ParseInt(s, 0, 64)
		return Int64(i), err
	case 't':
		u, err := strconv.ParseUint(s, 0, 64)
		return Uint64(u), err
	case 'd':
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && math.IsNaN(f) {
			err = errors.New("NaN is not a valid key")
		}
		return Double(f), err
	case 's':
		return String(s), nil
	case 'o':
		p := ObjectPath(s)
		return p, p.Valid()
	case 'g':
		g, err := ParseSignature(s)
		return g, err
	}
	return nil, fmt.Errorf("%q is not a basic type", sig)
}

// keyText returns the canonical text of a basic Value.
func keyText(v Value) string {
	switch v := v.(type) {
	case String:
		return string(v)
	case ObjectPath:
		return string(v)
	case Signature:
		return v.String()
	case Fd:
		return strconv.FormatUint(uint64(v), 10)
	}
	return Sprint(v)
}

// sortEntries sorts dict entries by ascending key.
func sortEntries(es []DictEntry) {
	slices.SortFunc(es, func(a, b DictEntry) int {
		c, _ := Compare(a.Key, b.Key)
		return c
	})
}
