package wire

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// maxSignatureLen is the longest signature text that fits in the
	// 1-byte length prefix of the bus format.
	maxSignatureLen = 255
	// maxArrayDepth is the maximum nesting of arrays and maybes.
	maxArrayDepth = 32
	// maxStructDepth is the maximum nesting of structs and dict
	// entries.
	maxStructDepth = 32
)

// A Signature describes the type of a value.
//
// Signatures are immutable and cheap to copy. The zero Signature is
// the empty signature, which describes no value at all.
//
// A Signature usually describes a single complete type. Signatures
// parsed from text containing several complete types, such as "su",
// describe a list of values. Lists are encoded like a struct of the
// same types, except that the bus format does not align the list as
// a struct.
type Signature struct {
	t *typeNode
}

// typeNode is one node of a parsed type tree. Nodes are interned by
// their canonical text and never mutated after construction.
type typeNode struct {
	code byte
	str  string
	// bare is set on the root node of a multi-type list.
	bare bool
	// elem is the element type of arrays and maybes.
	elem *typeNode
	// fields are the fields of structs, dict entries and lists.
	fields []*typeNode
	layout [numFormats]layout
	// arrayDepth and structDepth are the nesting depths of arrays
	// and structs in the tree rooted at this node.
	arrayDepth, structDepth int
}

func (t *typeNode) withinLimits() bool {
	return len(t.str) <= maxSignatureLen && t.arrayDepth <= maxArrayDepth && t.structDepth <= maxStructDepth
}

func (t *typeNode) isBasic() bool {
	return basicCodes.Has(t.code)
}

func (t *typeNode) isDict() bool {
	return t.code == 'a' && t.elem.code == '{'
}

// String returns the text encoding of the Signature.
func (s Signature) String() string {
	if s.t == nil {
		return ""
	}
	return s.t.str
}

// IsZero reports whether s is the empty signature.
func (s Signature) IsZero() bool {
	return s.t == nil
}

// Equal reports whether s and o describe the same type.
func (s Signature) Equal(o Signature) bool {
	if s.t == o.t {
		return true
	}
	if s.t == nil || o.t == nil {
		return false
	}
	// Canonical text identifies a tree exactly.
	return s.t.str == o.t.str
}

// Code returns the type code of s: one of the basic type codes, 'v',
// 'a', 'm', '(' or '{'. Lists report '('. The empty signature
// reports 0.
func (s Signature) Code() byte {
	if s.t == nil {
		return 0
	}
	return s.t.code
}

// Elem returns the element type of an array or maybe signature, and
// the zero Signature for other types.
func (s Signature) Elem() Signature {
	if s.t == nil {
		return Signature{}
	}
	return Signature{s.t.elem}
}

// Fields returns the field types of a struct, dict entry or list
// signature, and nil for other types.
func (s Signature) Fields() []Signature {
	if s.t == nil || s.t.fields == nil {
		return nil
	}
	ret := make([]Signature, len(s.t.fields))
	for i, f := range s.t.fields {
		ret[i] = Signature{f}
	}
	return ret
}

// NumTypes returns the number of complete types in s.
func (s Signature) NumTypes() int {
	switch {
	case s.t == nil:
		return 0
	case s.t.bare:
		return len(s.t.fields)
	default:
		return 1
	}
}

// IsSingle reports whether s is exactly one complete type.
func (s Signature) IsSingle() bool {
	return s.t != nil && !s.t.bare
}

// IsList reports whether s is a list of several complete types.
func (s Signature) IsList() bool {
	return s.t != nil && s.t.bare
}

// IsBasic reports whether s is a basic type, which can be used as a
// dict key.
func (s Signature) IsBasic() bool {
	return s.t != nil && s.t.isBasic()
}

// IsDict reports whether s is an array of dict entries.
func (s Signature) IsDict() bool {
	return s.t != nil && s.t.isDict()
}

// AsStruct returns s as a single struct type. Lists become the
// struct of their types, other signatures are returned unchanged.
func (s Signature) AsStruct() Signature {
	if !s.IsList() {
		return s
	}
	return Signature{mkNode('(', nil, s.t.fields, false)}
}

var (
	SigByte       = Signature{basicNodes['y']}
	SigBool       = Signature{basicNodes['b']}
	SigInt16      = Signature{basicNodes['n']}
	SigUint16     = Signature{basicNodes['q']}
	SigInt32      = Signature{basicNodes['i']}
	SigUint32     = Signature{basicNodes['u']}
	SigInt64      = Signature{basicNodes['x']}
	SigUint64     = Signature{basicNodes['t']}
	SigDouble     = Signature{basicNodes['d']}
	SigString     = Signature{basicNodes['s']}
	SigObjectPath = Signature{basicNodes['o']}
	SigSignature  = Signature{basicNodes['g']}
	SigFd         = Signature{basicNodes['h']}
	SigVariant    = Signature{basicNodes['v']}
	SigBytes      = ArrayOf(SigByte)
)

// basicNodes holds the nodes of the single-character types, indexed
// by type code.
var basicNodes = func() (ret [256]*typeNode) {
	for _, c := range []byte("ybnqiuxtdsoghv") {
		n := &typeNode{code: c, str: string(c)}
		computeLayout(n)
		ret[c] = n
	}
	return ret
}()

// mkNode returns the interned node for the given composite type.
func mkNode(code byte, elem *typeNode, fields []*typeNode, bare bool) *typeNode {
	var b strings.Builder
	switch code {
	case 'a', 'm':
		b.WriteByte(code)
		b.WriteString(elem.str)
	case '(', '{':
		if !bare {
			b.WriteByte(code)
		}
		for _, f := range fields {
			b.WriteString(f.str)
		}
		if !bare {
			b.WriteByte(closer(code))
		}
	default:
		panic(fmt.Sprintf("mkNode called with non-composite code %q", code))
	}
	str := b.String()
	if ret, ok := internLookup(str); ok {
		return ret
	}
	ret := &typeNode{
		code:   code,
		str:    str,
		bare:   bare,
		elem:   elem,
		fields: fields,
	}
	if elem != nil {
		ret.arrayDepth = elem.arrayDepth + 1
		ret.structDepth = elem.structDepth
	}
	for _, f := range fields {
		ret.arrayDepth = max(ret.arrayDepth, f.arrayDepth)
		ret.structDepth = max(ret.structDepth, f.structDepth)
	}
	if (code == '(' || code == '{') && !bare {
		ret.structDepth++
	}
	computeLayout(ret)
	internStore(ret)
	return ret
}

func closer(code byte) byte {
	if code == '(' {
		return ')'
	}
	return '}'
}

// ParseSignature parses a type signature string.
//
// The empty string parses to the zero Signature. Text holding more
// than one complete type parses to a list Signature.
func ParseSignature(sig string) (Signature, error) {
	if sig == "" {
		return Signature{}, nil
	}
	if len(sig) == 1 && basicNodes[sig[0]] != nil {
		return Signature{basicNodes[sig[0]]}, nil
	}
	if len(sig) > maxSignatureLen {
		return Signature{}, errorf(InvalidSignature, "signature is %d bytes, maximum is %d", len(sig), maxSignatureLen)
	}
	if ret, ok := parsedLookup(sig); ok {
		return Signature{ret}, nil
	}

	p := sigParser{s: sig}
	var parts []*typeNode
	for p.pos < len(sig) {
		part, err := p.one(false)
		if err != nil {
			return Signature{}, &Error{
				Kind:   InvalidSignature,
				Detail: fmt.Sprintf("%q", sig),
				Err:    err,
			}
		}
		parts = append(parts, part)
	}
	ret := parts[0]
	if len(parts) > 1 {
		ret = mkNode('(', nil, parts, true)
	}
	parsedStore(sig, ret)
	return Signature{ret}, nil
}

// MustParseSignature is like [ParseSignature], but panics if sig is
// invalid.
func MustParseSignature(sig string) Signature {
	ret, err := ParseSignature(sig)
	if err != nil {
		panic(err)
	}
	return ret
}

type sigParser struct {
	s       string
	pos     int
	arrays  int
	structs int
}

// one consumes the first complete type at the parser's position.
// dictOK is set when the type is the element of an array, the only
// place a dict entry may appear.
func (p *sigParser) one(dictOK bool) (*typeNode, error) {
	if p.pos >= len(p.s) {
		return nil, errors.New("unexpected end of signature")
	}
	c := p.s[p.pos]
	p.pos++
	if ret := basicNodes[c]; ret != nil {
		return ret, nil
	}

	switch c {
	case 'a', 'm':
		if p.arrays++; p.arrays > maxArrayDepth {
			return nil, fmt.Errorf("arrays nested more than %d deep", maxArrayDepth)
		}
		defer func() { p.arrays-- }()
		if p.pos >= len(p.s) {
			return nil, fmt.Errorf("missing element type after %q", c)
		}
		elem, err := p.one(c == 'a')
		if err != nil {
			return nil, err
		}
		return mkNode(c, elem, nil, false), nil
	case '(':
		if p.structs++; p.structs > maxStructDepth {
			return nil, fmt.Errorf("structs nested more than %d deep", maxStructDepth)
		}
		defer func() { p.structs-- }()
		var fields []*typeNode
		for {
			if p.pos >= len(p.s) {
				return nil, errors.New("missing closing ) in struct definition")
			}
			if p.s[p.pos] == ')' {
				p.pos++
				break
			}
			field, err := p.one(false)
			if err != nil {
				return nil, err
			}
			fields = append(fields, field)
		}
		return mkNode('(', nil, fields, false), nil
	case '{':
		if !dictOK {
			return nil, errors.New("dict entry type found outside array")
		}
		if p.structs++; p.structs > maxStructDepth {
			return nil, fmt.Errorf("structs nested more than %d deep", maxStructDepth)
		}
		defer func() { p.structs-- }()
		key, err := p.one(false)
		if err != nil {
			return nil, err
		}
		if !key.isBasic() {
			return nil, fmt.Errorf("invalid dict entry key type %s, must be a basic type", key.str)
		}
		if p.pos < len(p.s) && p.s[p.pos] == '}' {
			return nil, errors.New("dict entry has no value type")
		}
		val, err := p.one(false)
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.s) || p.s[p.pos] != '}' {
			return nil, errors.New("missing closing } in dict entry definition")
		}
		p.pos++
		return mkNode('{', nil, []*typeNode{key, val}, false), nil
	case ')', '}':
		return nil, fmt.Errorf("unexpected %q at offset %d", c, p.pos-1)
	default:
		return nil, fmt.Errorf("unknown type code %q", c)
	}
}

func mustSingle(s Signature, fn string) {
	if !s.IsSingle() {
		panic(fmt.Sprintf("%s called with %q, which is not a single complete type", fn, s))
	}
}

// ArrayOf returns the signature of an array of elem. It panics if
// elem is not a single complete type.
func ArrayOf(elem Signature) Signature {
	mustSingle(elem, "ArrayOf")
	return Signature{mkNode('a', elem.t, nil, false)}
}

// MaybeOf returns the signature of a maybe of elem. It panics if
// elem is not a single complete type.
func MaybeOf(elem Signature) Signature {
	mustSingle(elem, "MaybeOf")
	return Signature{mkNode('m', elem.t, nil, false)}
}

// StructOf returns the signature of a struct with the given field
// types. It panics if any field is not a single complete type.
func StructOf(fields ...Signature) Signature {
	ts := make([]*typeNode, len(fields))
	for i, f := range fields {
		mustSingle(f, "StructOf")
		ts[i] = f.t
	}
	return Signature{mkNode('(', nil, ts, false)}
}

// DictOf returns the signature of a dict from key to val, that is an
// array of {key val} dict entries. It panics if key is not a basic
// type, or val is not a single complete type.
func DictOf(key, val Signature) Signature {
	if !key.IsBasic() {
		panic(fmt.Sprintf("DictOf called with key %q, which is not a basic type", key))
	}
	mustSingle(val, "DictOf")
	entry := mkNode('{', nil, []*typeNode{key.t, val.t}, false)
	return Signature{mkNode('a', entry, nil, false)}
}

// dictEntry returns the key and value types of a dict signature.
func (s Signature) dictEntry() (key, val Signature) {
	e := s.t.elem
	return Signature{e.fields[0]}, Signature{e.fields[1]}
}
