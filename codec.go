package wire

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
	"unsafe"

	"github.com/danderson/wire/fragments"
	"go.uber.org/zap"
)

// maxDepth is the maximum nesting of containers in a value,
// variants included. Signatures alone are limited to 32 arrays and
// 32 structs, variants can nest further at runtime.
const maxDepth = 64

// Context holds the parameters of one encode or decode call.
type Context struct {
	// Format is the wire format to use.
	Format Format
	// Order is the byte order of multi-byte values. Nil means
	// little endian. GVariant framing offsets are always little
	// endian, regardless of Order.
	Order fragments.ByteOrder
	// Offset is the position of the first encoded byte within the
	// enclosing message, for bus format alignment. GVariant values
	// are always serialized at offset 0 and ignore Offset.
	Offset int
	// Borrow, when decoding, makes String, ObjectPath and Bytes
	// values alias the input buffer instead of copying out of it.
	// Such values are only valid while the input buffer is neither
	// modified nor freed. Use [Clone] to detach them.
	Borrow bool
	// Logger, if not nil, receives debug traces of the encoding
	// and decoding process.
	Logger *zap.Logger
}

func (c *Context) order() fragments.ByteOrder {
	if c.Order == nil {
		return fragments.LittleEndian
	}
	return c.Order
}

func (c *Context) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger.With(zap.Stringer("format", c.Format))
}

// valueEncoder is the format-specific half of encoding. The shared
// traversal in encodeState decides what to write, the valueEncoder
// decides how it's framed.
//
// Every method pads the output to the alignment of the value it
// writes before writing it.
type valueEncoder interface {
	// scalar writes a fixed-size basic value. bits holds the value
	// in its low bits, doubles as their IEEE 754 bits.
	scalar(code byte, bits uint64)
	// str writes a string, object path or signature.
	str(code byte, s string)
	// bytes writes an array of bytes.
	bytes(bs []byte) error
	// array writes an array of n elements of type elem, calling
	// item to write each one.
	array(elem Signature, n int, item func(int) error) error
	// tuple writes a struct, dict entry or list, calling field to
	// write each field.
	tuple(sig Signature, field func(int) error) error
	// variant writes a variant holding a value of type inner,
	// calling value to write it.
	variant(inner Signature, value func() error) error
	// maybe writes a maybe of elem. value is called if present.
	maybe(elem Signature, present bool, value func() error) error
	// pos returns the current output position.
	pos() int
	// output returns the encoded bytes.
	output() []byte
}

// valueDecoder is the format-specific half of decoding.
type valueDecoder interface {
	scalar(code byte) (uint64, error)
	// str returns the text of a string, object path or signature,
	// without terminator. The result aliases the input.
	str(code byte) ([]byte, error)
	bytes() ([]byte, error)
	// array calls item for each element of an array of elem, until
	// the array's data is exhausted.
	array(elem Signature, item func(int) error) error
	tuple(sig Signature, field func(int) error) error
	// variant reads a variant's signature text, and calls value to
	// decode the value with that signature.
	variant(value func(sig []byte) error) error
	// maybe calls value if the maybe holds a value, and reports
	// whether it did.
	maybe(elem Signature, value func() error) (bool, error)
	// consumed returns the number of input bytes consumed.
	consumed() int
}

// Encode returns the encoding of v, which must have type sig.
//
// If sig is a list of types, v must be a [Struct] holding one value
// per type.
func Encode(v Value, sig Signature, ctx Context) ([]byte, error) {
	enc, err := encode(v, sig, ctx, false)
	if err != nil || enc == nil {
		return nil, err
	}
	return enc.output(), nil
}

// EncodedSize returns the number of bytes that [Encode] would
// produce for v, without producing them. It fails in the same cases
// as Encode.
//
// In the bus format, the size depends on [Context].Offset, since
// the output of Encode includes any leading padding.
func EncodedSize(v Value, sig Signature, ctx Context) (int, error) {
	enc, err := encode(v, sig, ctx, true)
	if err != nil || enc == nil {
		return 0, err
	}
	return enc.pos() - ctxOffset(&ctx), nil
}

// ctxOffset returns the offset at which an encoder for ctx starts.
func ctxOffset(ctx *Context) int {
	if ctx.Format == DBus {
		return ctx.Offset
	}
	return 0
}

// encode runs the encoder traversal of v. If discard is set, the
// returned encoder only counts the bytes it would have written. A
// nil encoder means that sig is empty, and so is the output.
func encode(v Value, sig Signature, ctx Context, discard bool) (valueEncoder, error) {
	if sig.IsZero() {
		if v != nil {
			return nil, errorf(TypeMismatch, "value %s given for the empty signature", Sprint(v))
		}
		return nil, nil
	}
	if err := ctx.Format.Supports(sig); err != nil {
		return nil, err
	}

	st := encodeState{
		ctx: &ctx,
		log: ctx.logger(),
	}
	switch ctx.Format {
	case DBus:
		st.enc = newBusEncoder(&ctx, discard)
	case GVariant:
		st.enc = newGVariantEncoder(&ctx, discard)
	default:
		return nil, errorf(UnsupportedType, "unknown format %s", ctx.Format)
	}
	if err := st.value(v, sig); err != nil {
		return nil, asError(err)
	}
	return st.enc, nil
}

// Decode decodes a value of type sig from the front of bs, and
// returns it along with the number of bytes consumed.
//
// The bus format reads one value and may leave trailing bytes
// unconsumed. The GVariant format always consumes all of bs, since
// GVariant values are framed by their container.
//
// If sig is a list of types, Decode returns a [Struct] holding one
// value per type.
func Decode(bs []byte, sig Signature, ctx Context) (Value, int, error) {
	if sig.IsZero() {
		return nil, 0, nil
	}
	if err := ctx.Format.Supports(sig); err != nil {
		return nil, 0, err
	}

	st := decodeState{
		ctx: &ctx,
		log: ctx.logger(),
	}
	switch ctx.Format {
	case DBus:
		st.dec = newBusDecoder(bs, &ctx)
	case GVariant:
		st.dec = newGVariantDecoder(bs, &ctx)
	default:
		return nil, 0, errorf(UnsupportedType, "unknown format %s", ctx.Format)
	}
	ret, err := st.value(sig)
	if err != nil {
		return nil, 0, asError(err)
	}
	return ret, st.dec.consumed(), nil
}

func indexPath(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func fieldPath(i int) string {
	return "." + strconv.Itoa(i)
}

type encodeState struct {
	ctx   *Context
	log   *zap.Logger
	enc   valueEncoder
	depth int
}

func (s *encodeState) enter() error {
	if s.depth++; s.depth > maxDepth {
		return errorf(InvalidData, "values nested more than %d deep", maxDepth)
	}
	return nil
}

func (s *encodeState) leave() { s.depth-- }

func mismatch(v Value, sig Signature) error {
	return errorf(TypeMismatch, "cannot encode %T as %q", v, sig)
}

// scalarBits returns the bits of the fixed-size basic value v, if v
// has the Go type of code.
func scalarBits(v Value, code byte) (uint64, bool) {
	switch code {
	case 'y':
		b, ok := v.(Byte)
		return uint64(b), ok
	case 'b':
		b, ok := v.(Bool)
		if b {
			return 1, ok
		}
		return 0, ok
	case 'n':
		i, ok := v.(Int16)
		return uint64(uint16(i)), ok
	case 'q':
		u, ok := v.(Uint16)
		return uint64(u), ok
	case 'i':
		i, ok := v.(Int32)
		return uint64(uint32(i)), ok
	case 'u':
		u, ok := v.(Uint32)
		return uint64(u), ok
	case 'x':
		i, ok := v.(Int64)
		return uint64(i), ok
	case 't':
		u, ok := v.(Uint64)
		return uint64(u), ok
	case 'd':
		d, ok := v.(Double)
		return math.Float64bits(float64(d)), ok
	case 'h':
		fd, ok := v.(Fd)
		return uint64(fd), ok
	}
	return 0, false
}

func (s *encodeState) value(v Value, sig Signature) error {
	if v == nil {
		return errorf(TypeMismatch, "nil value for type %q", sig)
	}
	if ce := s.log.Check(zap.DebugLevel, "encode"); ce != nil {
		ce.Write(zap.String("sig", sig.String()), zap.Int("pos", s.enc.pos()), zap.Int("depth", s.depth))
	}

	switch code := sig.t.code; code {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 'h':
		bits, ok := scalarBits(v, code)
		if !ok {
			return mismatch(v, sig)
		}
		s.enc.scalar(code, bits)
		return nil
	case 's':
		str, ok := v.(String)
		if !ok {
			return mismatch(v, sig)
		}
		if err := checkString(string(str)); err != nil {
			return err
		}
		s.enc.str(code, string(str))
		return nil
	case 'o':
		p, ok := v.(ObjectPath)
		if !ok {
			return mismatch(v, sig)
		}
		if err := p.Valid(); err != nil {
			return &Error{Kind: InvalidData, Err: err}
		}
		s.enc.str(code, string(p))
		return nil
	case 'g':
		g, ok := v.(Signature)
		if !ok {
			return mismatch(v, sig)
		}
		if g.t != nil && !g.t.withinLimits() {
			return errorf(InvalidSignature, "signature %q exceeds nesting or length limits", g)
		}
		s.enc.str(code, g.String())
		return nil
	case 'v':
		return s.variant(v, sig)
	case 'a':
		return s.array(v, sig)
	case 'm':
		m, ok := v.(Maybe)
		if !ok || !m.Elem.Equal(sig.Elem()) {
			return mismatch(v, sig)
		}
		if err := s.enter(); err != nil {
			return err
		}
		defer s.leave()
		return s.enc.maybe(m.Elem, m.Value != nil, func() error {
			return s.value(m.Value, m.Elem)
		})
	case '(':
		st, ok := v.(Struct)
		if !ok || len(st) != len(sig.t.fields) {
			return mismatch(v, sig)
		}
		if err := s.enter(); err != nil {
			return err
		}
		defer s.leave()
		return s.enc.tuple(sig, func(i int) error {
			return withPath(s.value(st[i], Signature{sig.t.fields[i]}), fieldPath(i))
		})
	}
	return mismatch(v, sig)
}

func (s *encodeState) variant(v Value, sig Signature) error {
	vv, ok := v.(Variant)
	if !ok {
		return mismatch(v, sig)
	}
	if vv.Value == nil {
		return errorf(InvalidData, "variant holds no value")
	}
	inner, err := checkedType(vv.Value)
	if err != nil {
		return err
	}
	if !inner.t.withinLimits() {
		return errorf(InvalidSignature, "variant type %q exceeds nesting or length limits", inner)
	}
	if err := s.ctx.Format.Supports(inner); err != nil {
		return err
	}
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	return s.enc.variant(inner, func() error {
		return s.value(vv.Value, inner)
	})
}

func (s *encodeState) array(v Value, sig Signature) error {
	elem := sig.Elem()
	if bs, ok := v.(Bytes); ok && elem.t.code == 'y' {
		return s.enc.bytes(bs)
	}

	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	if sig.IsDict() {
		d, ok := v.(Dict)
		if !ok {
			return mismatch(v, sig)
		}
		key, val := sig.dictEntry()
		if !d.Key.Equal(key) || !d.Val.Equal(val) {
			return mismatch(v, sig)
		}
		seen := make(map[dictKey]bool, len(d.Entries))
		for i, e := range d.Entries {
			if e.Key == nil {
				return withPath(errorf(TypeMismatch, "nil dict key"), indexPath(i))
			}
			if kt, err := checkedType(e.Key); err != nil {
				return withPath(err, indexPath(i))
			} else if !kt.Equal(key) {
				return withPath(mismatch(e.Key, key), indexPath(i))
			}
			k := keyOf(e.Key)
			if seen[k] {
				return withPath(errorf(InvalidData, "duplicate dict key %s", Sprint(e.Key)), indexPath(i))
			}
			seen[k] = true
		}
		return s.enc.array(elem, len(d.Entries), func(i int) error {
			e := d.Entries[i]
			err := s.enc.tuple(elem, func(field int) error {
				if field == 0 {
					return s.value(e.Key, key)
				}
				return s.value(e.Value, val)
			})
			return withPath(err, indexPath(i))
		})
	}

	a, ok := v.(Array)
	if !ok || !a.Elem.Equal(elem) {
		return mismatch(v, sig)
	}
	return s.enc.array(elem, len(a.Items), func(i int) error {
		return withPath(s.value(a.Items[i], elem), indexPath(i))
	})
}

// checkString returns an error if s cannot be encoded as a string.
func checkString(s string) error {
	if !utf8.ValidString(s) {
		return errorf(InvalidUTF8, "string %q", s)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return errorf(InvalidData, "string %q contains a NUL byte", s)
	}
	return nil
}

type decodeState struct {
	ctx   *Context
	log   *zap.Logger
	dec   valueDecoder
	depth int
}

func (s *decodeState) enter() error {
	if s.depth++; s.depth > maxDepth {
		return errorf(InvalidData, "values nested more than %d deep", maxDepth)
	}
	return nil
}

func (s *decodeState) leave() { s.depth-- }

// text returns raw as a string, borrowing it if the context allows.
func (s *decodeState) text(raw []byte) string {
	if s.ctx.Borrow && len(raw) > 0 {
		return unsafe.String(&raw[0], len(raw))
	}
	return string(raw)
}

func (s *decodeState) value(sig Signature) (Value, error) {
	if ce := s.log.Check(zap.DebugLevel, "decode"); ce != nil {
		ce.Write(zap.String("sig", sig.String()), zap.Int("pos", s.dec.consumed()), zap.Int("depth", s.depth))
	}

	switch code := sig.t.code; code {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 'h':
		bits, err := s.dec.scalar(code)
		if err != nil {
			return nil, err
		}
		return scalarValue(code, bits)
	case 's':
		raw, err := s.dec.str(code)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(raw) {
			return nil, errorf(InvalidUTF8, "string %q", raw)
		}
		if bytes.IndexByte(raw, 0) >= 0 {
			return nil, errorf(InvalidData, "string %q contains a NUL byte", raw)
		}
		return String(s.text(raw)), nil
	case 'o':
		raw, err := s.dec.str(code)
		if err != nil {
			return nil, err
		}
		p := ObjectPath(s.text(raw))
		if err := p.Valid(); err != nil {
			return nil, &Error{Kind: InvalidData, Err: err}
		}
		return p, nil
	case 'g':
		raw, err := s.dec.str(code)
		if err != nil {
			return nil, err
		}
		// Signatures are interned, never borrow.
		ret, err := ParseSignature(string(raw))
		if err != nil {
			return nil, err
		}
		return ret, nil
	case 'v':
		return s.variant()
	case 'a':
		return s.array(sig)
	case 'm':
		if err := s.enter(); err != nil {
			return nil, err
		}
		defer s.leave()
		elem := sig.Elem()
		var inner Value
		_, err := s.dec.maybe(elem, func() error {
			var err error
			inner, err = s.value(elem)
			return err
		})
		if err != nil {
			return nil, err
		}
		return Maybe{elem, inner}, nil
	case '(':
		if err := s.enter(); err != nil {
			return nil, err
		}
		defer s.leave()
		fields := sig.t.fields
		ret := make(Struct, len(fields))
		err := s.dec.tuple(sig, func(i int) error {
			v, err := s.value(Signature{fields[i]})
			if err != nil {
				return withPath(err, fieldPath(i))
			}
			ret[i] = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		return ret, nil
	}
	return nil, errorf(UnsupportedType, "cannot decode type %q", sig)
}

func scalarValue(code byte, bits uint64) (Value, error) {
	switch code {
	case 'y':
		return Byte(bits), nil
	case 'b':
		if bits > 1 {
			return nil, errorf(InvalidData, "invalid boolean value %d", bits)
		}
		return Bool(bits == 1), nil
	case 'n':
		return Int16(int16(bits)), nil
	case 'q':
		return Uint16(bits), nil
	case 'i':
		return Int32(int32(bits)), nil
	case 'u':
		return Uint32(bits), nil
	case 'x':
		return Int64(bits), nil
	case 't':
		return Uint64(bits), nil
	case 'd':
		return Double(math.Float64frombits(bits)), nil
	case 'h':
		return Fd(bits), nil
	}
	panic("scalarValue called with non-scalar type code")
}

func (s *decodeState) variant() (Value, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()
	var inner Value
	err := s.dec.variant(func(raw []byte) error {
		sig, err := ParseSignature(string(raw))
		if err != nil {
			return err
		}
		if !sig.IsSingle() {
			return errorf(InvalidSignature, "variant signature %q is not a single complete type", sig)
		}
		if err := s.ctx.Format.Supports(sig); err != nil {
			return err
		}
		inner, err = s.value(sig)
		return err
	})
	if err != nil {
		return nil, err
	}
	return Variant{inner}, nil
}

func (s *decodeState) array(sig Signature) (Value, error) {
	elem := sig.Elem()
	if elem.t.code == 'y' {
		raw, err := s.dec.bytes()
		if err != nil {
			return nil, err
		}
		if s.ctx.Borrow {
			return Bytes(raw), nil
		}
		return Bytes(bytes.Clone(raw)), nil
	}

	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()

	if sig.IsDict() {
		key, val := sig.dictEntry()
		ret := Dict{Key: key, Val: val}
		seen := map[dictKey]bool{}
		err := s.dec.array(elem, func(i int) error {
			var e DictEntry
			err := s.dec.tuple(elem, func(field int) error {
				var err error
				if field == 0 {
					e.Key, err = s.value(key)
				} else {
					e.Value, err = s.value(val)
				}
				return err
			})
			if err != nil {
				return withPath(err, indexPath(i))
			}
			k := keyOf(e.Key)
			if seen[k] {
				return withPath(errorf(InvalidData, "duplicate dict key %s", Sprint(e.Key)), indexPath(i))
			}
			seen[k] = true
			ret.Entries = append(ret.Entries, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return ret, nil
	}

	ret := Array{Elem: elem}
	err := s.dec.array(elem, func(i int) error {
		v, err := s.value(elem)
		if err != nil {
			return withPath(err, indexPath(i))
		}
		ret.Items = append(ret.Items, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}
