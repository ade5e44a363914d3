package wire

import (
	"bytes"
	"slices"

	"github.com/danderson/wire/fragments"
)

// gvariantEncoder writes the GVariant serialization format.
//
// Each container is written in place: children first, each padded
// to its own alignment, then the container's framing offsets. A
// container always starts at a multiple of its own alignment, which
// is at least the alignment of any child, so padding computed from
// the start of the buffer equals padding computed from the start of
// the container.
type gvariantEncoder struct {
	e fragments.Encoder
}

func newGVariantEncoder(ctx *Context, discard bool) *gvariantEncoder {
	return &gvariantEncoder{
		e: fragments.Encoder{
			Order:   ctx.order(),
			Discard: discard,
		},
	}
}

func (g *gvariantEncoder) pos() int       { return g.e.Pos() }
func (g *gvariantEncoder) output() []byte { return g.e.Out }

func (g *gvariantEncoder) scalar(code byte, bits uint64) {
	switch code {
	case 'y', 'b':
		g.e.Uint8(uint8(bits))
	case 'n', 'q':
		g.e.Uint16(uint16(bits))
	case 'i', 'u', 'h':
		g.e.Uint32(uint32(bits))
	case 'x', 't', 'd':
		g.e.Uint64(bits)
	default:
		panic("gvariantEncoder.scalar called with non-scalar type code")
	}
}

func (g *gvariantEncoder) str(code byte, s string) {
	g.e.WriteString(s)
	g.e.Uint8(0)
}

func (g *gvariantEncoder) bytes(bs []byte) error {
	g.e.Write(bs)
	return nil
}

// frame appends the framing offsets of the container that began at
// start.
func (g *gvariantEncoder) frame(start int, offs []int) {
	width, _ := fragments.FramedSize(g.e.Len()-start, len(offs))
	g.e.Offsets(width, offs)
}

func (g *gvariantEncoder) array(elem Signature, n int, item func(int) error) error {
	el := elem.layout(GVariant)
	g.e.Pad(el.align)
	start := g.e.Len()
	if el.size > 0 {
		for i := range n {
			if err := item(i); err != nil {
				return err
			}
		}
		return nil
	}

	ends := make([]int, 0, n)
	for i := range n {
		if err := item(i); err != nil {
			return err
		}
		ends = append(ends, g.e.Len()-start)
	}
	g.frame(start, ends)
	return nil
}

func (g *gvariantEncoder) tuple(sig Signature, field func(int) error) error {
	l := sig.layout(GVariant)
	g.e.Pad(l.align)
	start := g.e.Len()
	fields := sig.t.fields
	if len(fields) == 0 {
		g.e.Uint8(0)
		return nil
	}

	var ends []int
	for i, f := range fields {
		if err := field(i); err != nil {
			return err
		}
		if i != len(fields)-1 && f.layout[GVariant].size == 0 {
			ends = append(ends, g.e.Len()-start)
		}
	}
	if l.size > 0 {
		for g.e.Len()-start < l.size {
			g.e.Uint8(0)
		}
		return nil
	}
	// Struct offsets are stored last field first.
	slices.Reverse(ends)
	g.frame(start, ends)
	return nil
}

func (g *gvariantEncoder) variant(inner Signature, value func() error) error {
	g.e.Pad(8)
	if err := value(); err != nil {
		return err
	}
	g.e.Uint8(0)
	g.e.WriteString(inner.String())
	return nil
}

func (g *gvariantEncoder) maybe(elem Signature, present bool, value func() error) error {
	el := elem.layout(GVariant)
	g.e.Pad(el.align)
	if !present {
		return nil
	}
	if err := value(); err != nil {
		return err
	}
	if el.size == 0 {
		g.e.Uint8(0)
	}
	return nil
}

// gvariantDecoder reads the GVariant serialization format.
//
// GVariant values don't encode their own size, their container does.
// The decoder tracks the byte range of the value being decoded, and
// narrows it to each child's range before decoding the child.
type gvariantDecoder struct {
	in    []byte
	order fragments.ByteOrder
	// start and end delimit the value currently being decoded.
	start, end int
}

func newGVariantDecoder(bs []byte, ctx *Context) *gvariantDecoder {
	return &gvariantDecoder{
		in:    bs,
		order: ctx.order(),
		end:   len(bs),
	}
}

func (g *gvariantDecoder) consumed() int { return len(g.in) }

func (g *gvariantDecoder) frame() []byte {
	return g.in[g.start:g.end:g.end]
}

// sized checks that the current value is exactly n bytes long.
func (g *gvariantDecoder) sized(n int) error {
	switch ln := g.end - g.start; {
	case ln < n:
		return errorf(InsufficientData, "need %d bytes, have %d", n, ln)
	case ln > n:
		return errorf(InvalidData, "%d unexpected trailing bytes", ln-n)
	}
	return nil
}

// child calls fn with the current value narrowed to [start, end),
// relative to the current value's start.
func (g *gvariantDecoder) child(start, end int, fn func() error) error {
	outerStart, outerEnd := g.start, g.end
	g.start, g.end = outerStart+start, outerStart+end
	err := fn()
	g.start, g.end = outerStart, outerEnd
	return err
}

func (g *gvariantDecoder) scalar(code byte) (uint64, error) {
	size := basicLayouts[GVariant][code].size
	if err := g.sized(size); err != nil {
		return 0, err
	}
	bs := g.frame()
	switch size {
	case 1:
		return uint64(bs[0]), nil
	case 2:
		return uint64(g.order.Uint16(bs)), nil
	case 4:
		return uint64(g.order.Uint32(bs)), nil
	default:
		return g.order.Uint64(bs), nil
	}
}

func (g *gvariantDecoder) str(code byte) ([]byte, error) {
	f := g.frame()
	if len(f) == 0 {
		return nil, errorf(InsufficientData, "empty string data, need at least a NUL terminator")
	}
	body, term := f[:len(f)-1], f[len(f)-1]
	if term != 0 {
		return nil, errorf(InvalidData, "string is missing its NUL terminator")
	}
	if bytes.IndexByte(body, 0) >= 0 {
		return nil, errorf(InvalidData, "string contains a NUL byte")
	}
	return body, nil
}

func (g *gvariantDecoder) bytes() ([]byte, error) {
	return g.frame(), nil
}

// offsetAt returns the idx'th framing offset of the current value,
// counting back from its end.
func (g *gvariantDecoder) offsetAt(idx, width int) int {
	f := g.frame()
	return fragments.ReadOffset(f[len(f)-(idx+1)*width:], width)
}

func (g *gvariantDecoder) array(elem Signature, item func(int) error) error {
	n := g.end - g.start
	el := elem.layout(GVariant)
	if el.size > 0 {
		if n%el.size != 0 {
			return errorf(InvalidData, "array of %d bytes is not a multiple of element size %d", n, el.size)
		}
		for i := range n / el.size {
			if err := g.child(i*el.size, (i+1)*el.size, func() error { return item(i) }); err != nil {
				return err
			}
		}
		return nil
	}

	if n == 0 {
		return nil
	}
	width := fragments.OffsetSize(n)
	if n < width {
		return errorf(InsufficientData, "array of %d bytes is too short for its framing offsets", n)
	}
	tableStart := g.offsetAt(0, width)
	if tableStart < 0 || tableStart > n-width {
		return errorf(InvalidData, "framing offset table starts at %d, outside %d-byte array", tableStart, n)
	}
	if (n-tableStart)%width != 0 {
		return errorf(InvalidData, "framing offset table of %d bytes is not a multiple of offset size %d", n-tableStart, width)
	}
	count := (n - tableStart) / width
	f := g.frame()
	pos := 0
	for i := range count {
		start := alignUp(pos, el.align)
		end := fragments.ReadOffset(f[tableStart+i*width:], width)
		if end < start || end > tableStart {
			return errorf(InvalidData, "array element %d spans [%d, %d), outside [%d, %d)", i, start, end, pos, tableStart)
		}
		if err := g.child(start, end, func() error { return item(i) }); err != nil {
			return err
		}
		pos = end
	}
	return nil
}

func (g *gvariantDecoder) tuple(sig Signature, field func(int) error) error {
	fields := sig.t.fields
	l := sig.layout(GVariant)
	if len(fields) == 0 {
		if err := g.sized(1); err != nil {
			return err
		}
		if b := g.frame()[0]; b != 0 {
			return errorf(InvalidData, "empty struct encoded as %d, want 0", b)
		}
		return nil
	}
	if l.size > 0 {
		if err := g.sized(l.size); err != nil {
			return err
		}
	}

	n := g.end - g.start
	width := fragments.OffsetSize(n)
	numOffsets := 0
	for i, f := range fields {
		if i != len(fields)-1 && f.layout[GVariant].size == 0 {
			numOffsets++
		}
	}
	tableStart := n - numOffsets*width
	if tableStart < 0 {
		return errorf(InsufficientData, "struct of %d bytes is too short for %d framing offsets", n, numOffsets)
	}

	pos, offIdx := 0, 0
	for i, f := range fields {
		fl := f.layout[GVariant]
		start := alignUp(pos, fl.align)
		var end int
		switch {
		case fl.size > 0:
			end = start + fl.size
			if end > tableStart {
				return withPath(errorf(InsufficientData, "need %d bytes at offset %d, have %d", fl.size, start, max(tableStart-start, 0)), fieldPath(i))
			}
		case i == len(fields)-1:
			end = tableStart
		default:
			end = g.offsetAt(offIdx, width)
			offIdx++
		}
		if end < start || end > tableStart {
			return errorf(InvalidData, "struct field %d spans [%d, %d), outside [%d, %d)", i, start, end, pos, tableStart)
		}
		if err := g.child(start, end, func() error { return field(i) }); err != nil {
			return err
		}
		pos = end
	}
	if l.size == 0 && pos != tableStart {
		return errorf(InvalidData, "%d unused bytes at end of struct", tableStart-pos)
	}
	return nil
}

func (g *gvariantDecoder) variant(value func(sig []byte) error) error {
	f := g.frame()
	if len(f) == 0 {
		return errorf(InsufficientData, "empty variant data")
	}
	sep := bytes.LastIndexByte(f, 0)
	if sep < 0 {
		return errorf(InvalidData, "variant has no signature separator")
	}
	sig := f[sep+1:]
	return g.child(0, sep, func() error { return value(sig) })
}

func (g *gvariantDecoder) maybe(elem Signature, value func() error) (bool, error) {
	n := g.end - g.start
	if n == 0 {
		return false, nil
	}
	el := elem.layout(GVariant)
	if el.size > 0 {
		if n != el.size {
			return false, errorf(InvalidData, "maybe of %q is %d bytes, want 0 or %d", elem, n, el.size)
		}
		return true, value()
	}
	if g.frame()[n-1] != 0 {
		return false, errorf(InvalidData, "maybe of %q is missing its trailing 0 byte", elem)
	}
	return true, g.child(0, n-1, value)
}
