package wire

import (
	"github.com/danderson/wire/fragments"
)

// busEncoder writes the D-Bus marshalling format.
type busEncoder struct {
	e fragments.Encoder
}

func newBusEncoder(ctx *Context, discard bool) *busEncoder {
	return &busEncoder{
		e: fragments.Encoder{
			Order:   ctx.order(),
			Offset:  ctx.Offset,
			Discard: discard,
		},
	}
}

func (b *busEncoder) pos() int       { return b.e.Pos() }
func (b *busEncoder) output() []byte { return b.e.Out }

func (b *busEncoder) scalar(code byte, bits uint64) {
	switch code {
	case 'y':
		b.e.Uint8(uint8(bits))
	case 'n', 'q':
		b.e.Uint16(uint16(bits))
	case 'b', 'i', 'u', 'h':
		b.e.Uint32(uint32(bits))
	case 'x', 't', 'd':
		b.e.Uint64(bits)
	default:
		panic("busEncoder.scalar called with non-scalar type code")
	}
}

func (b *busEncoder) str(code byte, s string) {
	if code == 'g' {
		b.e.Signature(s)
	} else {
		b.e.String(s)
	}
}

func (b *busEncoder) bytes(bs []byte) error {
	return b.e.Bytes(bs)
}

func (b *busEncoder) array(elem Signature, n int, item func(int) error) error {
	return b.e.Array(DBus.Alignment(elem), func() error {
		for i := range n {
			if err := item(i); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *busEncoder) tuple(sig Signature, field func(int) error) error {
	fields := func() error {
		for i := range sig.t.fields {
			if err := field(i); err != nil {
				return err
			}
		}
		return nil
	}
	switch {
	case len(sig.t.fields) == 0:
		b.e.Uint8(0)
		return nil
	case sig.t.bare:
		return fields()
	default:
		return b.e.Struct(fields)
	}
}

func (b *busEncoder) variant(inner Signature, value func() error) error {
	b.e.Signature(inner.String())
	return value()
}

func (b *busEncoder) maybe(elem Signature, present bool, value func() error) error {
	return DBus.Supports(MaybeOf(elem))
}

// busDecoder reads the D-Bus marshalling format.
type busDecoder struct {
	d fragments.Decoder
}

func newBusDecoder(bs []byte, ctx *Context) *busDecoder {
	return &busDecoder{
		d: fragments.Decoder{
			Order:  ctx.order(),
			Offset: ctx.Offset,
			In:     bs,
		},
	}
}

func (b *busDecoder) consumed() int { return b.d.Consumed() }

func (b *busDecoder) scalar(code byte) (uint64, error) {
	switch code {
	case 'y':
		u, err := b.d.Uint8()
		return uint64(u), err
	case 'n', 'q':
		u, err := b.d.Uint16()
		return uint64(u), err
	case 'b', 'i', 'u', 'h':
		u, err := b.d.Uint32()
		return uint64(u), err
	case 'x', 't', 'd':
		return b.d.Uint64()
	default:
		panic("busDecoder.scalar called with non-scalar type code")
	}
}

func (b *busDecoder) str(code byte) ([]byte, error) {
	if code == 'g' {
		return b.d.Signature()
	}
	return b.d.String()
}

func (b *busDecoder) bytes() ([]byte, error) {
	return b.d.Bytes()
}

func (b *busDecoder) array(elem Signature, item func(int) error) error {
	_, err := b.d.Array(DBus.Alignment(elem), item)
	return err
}

func (b *busDecoder) tuple(sig Signature, field func(int) error) error {
	fields := func() error {
		for i := range sig.t.fields {
			if err := field(i); err != nil {
				return err
			}
		}
		return nil
	}
	switch {
	case len(sig.t.fields) == 0:
		u, err := b.d.Uint8()
		if err != nil {
			return err
		}
		if u != 0 {
			return errorf(InvalidData, "empty struct encoded as %d, want 0", u)
		}
		return nil
	case sig.t.bare:
		return fields()
	default:
		return b.d.Struct(fields)
	}
}

func (b *busDecoder) variant(value func(sig []byte) error) error {
	sig, err := b.d.Signature()
	if err != nil {
		return err
	}
	return value(sig)
}

func (b *busDecoder) maybe(elem Signature, value func() error) (bool, error) {
	return false, DBus.Supports(MaybeOf(elem))
}
