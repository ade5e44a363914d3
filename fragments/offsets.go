package fragments

import (
	"encoding/binary"
	"math"
)

// Framing offsets in the GVariant format are unsigned little-endian
// integers of 1, 2, 4 or 8 bytes, regardless of the byte order of
// the data they frame.

// OffsetSize returns the width in bytes of the framing offsets of a
// GVariant container whose total serialized size is n bytes.
func OffsetSize(n int) int {
	switch {
	case n <= math.MaxUint8:
		return 1
	case n <= math.MaxUint16:
		return 2
	case uint64(n) <= math.MaxUint32:
		return 4
	default:
		return 8
	}
}

// FramedSize returns the offset width and total size of a GVariant
// container with body bytes of content followed by count framing
// offsets.
//
// The width is the smallest of 1, 2, 4 and 8 that can address the
// whole container, offset table included.
func FramedSize(body, count int) (width, total int) {
	if count == 0 {
		return 0, body
	}
	for _, w := range []int{1, 2, 4} {
		total = body + count*w
		if OffsetSize(total) <= w {
			return w, total
		}
	}
	return 8, body + count*8
}

// AppendOffset appends off to bs as a framing offset of the given
// width.
func AppendOffset(bs []byte, width int, off int) []byte {
	switch width {
	case 1:
		return append(bs, uint8(off))
	case 2:
		return binary.LittleEndian.AppendUint16(bs, uint16(off))
	case 4:
		return binary.LittleEndian.AppendUint32(bs, uint32(off))
	case 8:
		return binary.LittleEndian.AppendUint64(bs, uint64(off))
	default:
		panic("invalid framing offset width")
	}
}

// ReadOffset reads a framing offset of the given width from the
// start of bs. bs must be at least width bytes long.
//
// Offsets too large to be represented as an int are returned as -1,
// which callers reject as out of range.
func ReadOffset(bs []byte, width int) int {
	var u uint64
	switch width {
	case 1:
		u = uint64(bs[0])
	case 2:
		u = uint64(binary.LittleEndian.Uint16(bs))
	case 4:
		u = uint64(binary.LittleEndian.Uint32(bs))
	case 8:
		u = binary.LittleEndian.Uint64(bs)
	default:
		panic("invalid framing offset width")
	}
	if u > math.MaxInt {
		return -1
	}
	return int(u)
}

// Offsets appends a framing offset table to the output. Offsets are
// written in the order given.
func (e *Encoder) Offsets(width int, offs []int) {
	if e.Discard {
		e.discarded += width * len(offs)
		return
	}
	for _, off := range offs {
		e.Out = AppendOffset(e.Out, width, off)
	}
}
