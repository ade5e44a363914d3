package fragments

import (
	"errors"
	"fmt"
)

// MaxArrayLen is the maximum size in bytes of a D-Bus array's
// contents.
const MaxArrayLen = 1 << 26

// ErrArrayTooLong is returned when an array's contents exceed
// [MaxArrayLen].
var ErrArrayTooLong = errors.New("array exceeds maximum length")

// An Encoder provides utilities to write wire format values to a
// byte slice.
//
// Methods insert padding as needed to conform to alignment rules,
// except for [Encoder.Write] which outputs bytes verbatim. The
// length-prefixed helpers ([Encoder.Bytes], [Encoder.String],
// [Encoder.Signature] and [Encoder.Array]) follow the D-Bus framing
// rules.
type Encoder struct {
	// Order is the byte order to use when encoding multi-byte values.
	Order ByteOrder
	// Offset is the position of Out[0] within the enclosing
	// message. Alignment is computed relative to the start of the
	// message, so encoding a message body after a header must set
	// Offset to the header's length.
	Offset int
	// Out is the encoded output.
	Out []byte
	// Discard, if set, makes the Encoder count the bytes it would
	// write instead of appending them to Out. Out is left
	// untouched.
	Discard bool

	discarded int
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	if e.Discard {
		return e.discarded
	}
	return len(e.Out)
}

func (e *Encoder) write(bs ...byte) {
	if e.Discard {
		e.discarded += len(bs)
		return
	}
	e.Out = append(e.Out, bs...)
}

// Pos returns the position of the next byte to be written, relative
// to the start of the enclosing message.
func (e *Encoder) Pos() int {
	return e.Offset + e.Len()
}

// Pad inserts padding bytes as needed to make the message a multiple
// of align bytes. If the message is already correctly aligned, no
// padding is inserted.
func (e *Encoder) Pad(align int) {
	extra := e.Pos() % align
	if extra == 0 {
		return
	}
	var pad [8]byte
	e.write(pad[:align-extra]...)
}

// Write writes bs as-is to the output. It is the caller's
// responsibility to ensure correct padding and encoding.
func (e *Encoder) Write(bs []byte) {
	e.write(bs...)
}

// WriteString writes s as-is to the output, with no framing.
func (e *Encoder) WriteString(s string) {
	if e.Discard {
		e.discarded += len(s)
		return
	}
	e.Out = append(e.Out, s...)
}

// Bytes writes a D-Bus byte array.
func (e *Encoder) Bytes(bs []byte) error {
	if len(bs) > MaxArrayLen {
		return fmt.Errorf("%w: %d bytes", ErrArrayTooLong, len(bs))
	}
	e.Uint32(uint32(len(bs)))
	e.write(bs...)
	return nil
}

// String writes a D-Bus string or object path: a 4-byte length,
// the string bytes and a NUL terminator.
func (e *Encoder) String(s string) {
	e.Uint32(uint32(len(s)))
	e.WriteString(s)
	e.write(0)
}

// Signature writes a D-Bus type signature: a 1-byte length, the
// signature text and a NUL terminator.
func (e *Encoder) Signature(s string) {
	e.write(byte(len(s)))
	e.WriteString(s)
	e.write(0)
}

// Uint8 writes a uint8.
func (e *Encoder) Uint8(u8 uint8) {
	e.write(u8)
}

// Uint16 writes uint16.
func (e *Encoder) Uint16(u16 uint16) {
	e.Pad(2)
	var bs [2]byte
	e.Order.PutUint16(bs[:], u16)
	e.write(bs[:]...)
}

// Uint32 writes uint32.
func (e *Encoder) Uint32(u32 uint32) {
	e.Pad(4)
	var bs [4]byte
	e.Order.PutUint32(bs[:], u32)
	e.write(bs[:]...)
}

// Uint64 writes uint64.
func (e *Encoder) Uint64(u64 uint64) {
	e.Pad(8)
	var bs [8]byte
	e.Order.PutUint64(bs[:], u64)
	e.write(bs[:]...)
}

// Array writes a D-Bus array to the output.
//
// Array elements must be added within the provided elements
// function. The elements function is responsible for padding each
// array element to the correct alignment for the element type.
//
// elemAlign is the alignment of the array's element type. The array
// header is padded to it even if the array has no elements.
//
// The array's length prefix is computed from the number of bytes
// the elements function emitted.
func (e *Encoder) Array(elemAlign int, elements func() error) error {
	e.Pad(4)
	offset := e.Len()
	e.Uint32(0)
	e.Pad(elemAlign)

	start := e.Len()
	if err := elements(); err != nil {
		return err
	}
	ln := e.Len() - start
	if ln > MaxArrayLen {
		return fmt.Errorf("%w: %d bytes", ErrArrayTooLong, ln)
	}
	if !e.Discard {
		e.Order.PutUint32(e.Out[offset:], uint32(ln))
	}
	return nil
}

// Struct writes a D-Bus struct to the output.
//
// Struct fields must be added within the provided elements function.
func (e *Encoder) Struct(elements func() error) error {
	e.Pad(8)
	return elements()
}
