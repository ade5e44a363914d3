package fragments

import (
	"errors"
	"fmt"
)

var (
	// ErrShortBuffer is returned when decoding would read past the
	// end of the input.
	ErrShortBuffer = errors.New("unexpected end of input")
	// ErrFraming is returned when the input's framing is
	// inconsistent: non-zero padding, a missing terminator, or a
	// length prefix that overruns its container.
	ErrFraming = errors.New("invalid framing")
)

// A Decoder provides utilities to read D-Bus wire format values from
// a byte slice.
//
// Methods advance the read cursor as needed to account for the
// padding required by D-Bus alignment rules, except for
// [Decoder.Read] which reads bytes verbatim.
//
// Byte slices returned by the Decoder alias In. Callers that retain
// them beyond the lifetime of In must copy them.
type Decoder struct {
	// Order is the byte order to use when reading multi-byte values.
	Order ByteOrder
	// Offset is the position of In[0] within the enclosing message.
	Offset int
	// In is the input to read.
	In []byte

	// pos is the number of bytes consumed off the front of In so
	// far. We have to keep track of this because alignment depends
	// on the global offset within the message, and cannot be
	// derived from local context partway through decoding.
	pos int
	// limit is the end of the innermost array being decoded, or
	// len(In) outside of arrays. Zero means len(In).
	limit int
}

// Consumed returns the number of bytes read from In so far.
func (d *Decoder) Consumed() int {
	return d.pos
}

func (d *Decoder) end() int {
	if d.limit == 0 {
		return len(d.In)
	}
	return d.limit
}

// take advances the cursor by n bytes and returns them.
func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrFraming, n)
	}
	if end := d.end(); d.pos+n > end {
		if d.limit != 0 {
			return nil, fmt.Errorf("%w: read of %d bytes overruns array by %d bytes", ErrFraming, n, d.pos+n-end)
		}
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, end-d.pos)
	}
	ret := d.In[d.pos : d.pos+n : d.pos+n]
	d.pos += n
	return ret, nil
}

// Pad consumes padding bytes as needed to make the next read happen
// at a multiple of align bytes. If the decoder is already correctly
// aligned, no bytes are consumed. Padding bytes must be zero.
func (d *Decoder) Pad(align int) error {
	extra := (d.Offset + d.pos) % align
	if extra == 0 {
		return nil
	}
	pad, err := d.take(align - extra)
	if err != nil {
		return err
	}
	for _, b := range pad {
		if b != 0 {
			return fmt.Errorf("%w: non-zero padding byte 0x%02x", ErrFraming, b)
		}
	}
	return nil
}

// Read reads n bytes, with no framing or padding.
func (d *Decoder) Read(n int) ([]byte, error) {
	return d.take(n)
}

// Bytes reads a D-Bus byte array.
func (d *Decoder) Bytes() ([]byte, error) {
	ln, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if ln > MaxArrayLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrArrayTooLong, ln)
	}
	if rem := d.end() - d.pos; int(ln) > rem {
		return nil, fmt.Errorf("%w: byte array length %d exceeds remaining %d bytes", ErrFraming, ln, rem)
	}
	return d.take(int(ln))
}

// String reads a D-Bus string or object path, and returns its bytes
// without the NUL terminator.
func (d *Decoder) String() ([]byte, error) {
	ln, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	ret, err := d.take(int(ln) + 1)
	if err != nil {
		return nil, err
	}
	return terminated(ret)
}

// Signature reads a D-Bus type signature, and returns its text
// without the NUL terminator.
func (d *Decoder) Signature() ([]byte, error) {
	ln, err := d.Uint8()
	if err != nil {
		return nil, err
	}
	ret, err := d.take(int(ln) + 1)
	if err != nil {
		return nil, err
	}
	return terminated(ret)
}

func terminated(bs []byte) ([]byte, error) {
	last := len(bs) - 1
	if bs[last] != 0 {
		return nil, fmt.Errorf("%w: missing NUL terminator", ErrFraming)
	}
	return bs[:last], nil
}

// Uint8 reads a uint8.
func (d *Decoder) Uint8() (uint8, error) {
	bs, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return bs[0], nil
}

// Uint16 reads a uint16.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.Pad(2); err != nil {
		return 0, err
	}
	bs, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint16(bs), nil
}

// Uint32 reads a uint32.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.Pad(4); err != nil {
		return 0, err
	}
	bs, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint32(bs), nil
}

// Uint64 reads a uint64.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.Pad(8); err != nil {
		return 0, err
	}
	bs, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return d.Order.Uint64(bs), nil
}

// Array reads an array.
//
// readElement is called repeatedly while there is array data
// remaining to process, passing in the array index of the element to
// be decoded. readElement must completely consume all array bytes
// from the input, and must not read beyond the end of the array data.
//
// elemAlign is the alignment of the array's element type, so that
// the decoder consumes array header padding appropriately even if
// the array contains no elements.
//
// Array returns the total number of array elements that were
// processed.
func (d *Decoder) Array(elemAlign int, readElement func(int) error) (int, error) {
	ln, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	if ln > MaxArrayLen {
		return 0, fmt.Errorf("%w: %d bytes", ErrArrayTooLong, ln)
	}
	if err := d.Pad(elemAlign); err != nil {
		return 0, err
	}
	end := d.pos + int(ln)
	if end > d.end() {
		return 0, fmt.Errorf("%w: array length %d exceeds remaining %d bytes", ErrFraming, ln, d.end()-d.pos)
	}

	outerLimit := d.limit
	d.limit = end
	defer func() {
		d.limit = outerLimit
	}()
	idx := 0
	for d.pos < end {
		before := d.pos
		if err := readElement(idx); err != nil {
			return idx, err
		}
		if d.pos == before {
			return idx, fmt.Errorf("%w: array element consumed no bytes", ErrFraming)
		}
		idx++
	}
	return idx, nil
}

// Struct reads a struct.
//
// Struct fields must be read within the provided fields function.
func (d *Decoder) Struct(fields func() error) error {
	if err := d.Pad(8); err != nil {
		return err
	}
	return fields()
}
