package fragments_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danderson/wire/fragments"
)

func TestEncoder(t *testing.T) {
	tests := []struct {
		name string
		in   func(*fragments.Encoder)
		want []byte
	}{
		{
			"raw bytes",
			func(e *fragments.Encoder) {
				e.Write([]byte{1, 2, 3})
			},
			[]byte{0x01, 0x02, 0x03},
		},

		{
			"byte array",
			func(e *fragments.Encoder) {
				e.Bytes([]byte{1, 2, 3})
			},
			[]byte{
				0x00, 0x00, 0x00, 0x03, // length
				0x01, 0x02, 0x03, // val
			},
		},

		{
			"string",
			func(e *fragments.Encoder) {
				e.String("foo")
			},
			[]byte{
				0x00, 0x00, 0x00, 0x03, // length
				0x66, 0x6f, 0x6f, // val
				0x00, // terminator
			},
		},

		{
			"signature",
			func(e *fragments.Encoder) {
				e.Signature("a{sv}")
			},
			[]byte{
				0x05, // length
				'a', '{', 's', 'v', '}',
				0x00, // terminator
			},
		},

		{
			"uints",
			func(e *fragments.Encoder) {
				e.Uint8(42)
				e.Uint16(66)
				e.Uint32(42)
				e.Uint64(66)
			},
			[]byte{
				0x2a,
				0x00, // pad
				0x00, 0x42,
				0x00, 0x00, 0x00, 0x2a,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x42,
			},
		},

		{
			"uints padding",
			func(e *fragments.Encoder) {
				e.Uint64(66)
				e.Write([]byte{0})
				e.Uint32(42)
				e.Write([]byte{0})
				e.Uint16(66)
				e.Write([]byte{0})
				e.Uint8(42)
			},
			[]byte{
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x42,
				0x00,             // raw
				0x00, 0x00, 0x00, // pad
				0x00, 0x00, 0x00, 0x2a,
				0x00, // raw
				0x00, // pad
				0x00, 0x42,
				0x00, // raw
				0x2a,
			},
		},

		{
			"struct padding",
			func(e *fragments.Encoder) {
				e.Struct(func() error {
					e.Uint64(66)
					return nil
				})
				e.Struct(func() error {
					e.Uint32(42)
					return nil
				})
				e.Struct(func() error {
					e.Uint16(66)
					return nil
				})
				e.Struct(func() error {
					e.Uint8(42)
					return nil
				})
			},
			[]byte{
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x42,
				0x00, 0x00, 0x00, 0x2a,
				0x00, 0x00, 0x00, 0x00, // pad
				0x00, 0x42,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // pad
				0x2a,
			},
		},

		{
			"array",
			func(e *fragments.Encoder) {
				e.Array(2, func() error {
					e.Uint16(1)
					e.Uint16(2)
					e.Uint16(3)
					return nil
				})
			},
			[]byte{
				0x00, 0x00, 0x00, 0x06, // length
				0x00, 0x01,
				0x00, 0x02,
				0x00, 0x03,
			},
		},

		{
			"array of structs",
			func(e *fragments.Encoder) {
				e.Array(8, func() error {
					e.Struct(func() error {
						e.Uint16(1)
						return nil
					})
					e.Struct(func() error {
						e.Uint16(2)
						return nil
					})
					return nil
				})
			},
			[]byte{
				0x00, 0x00, 0x00, 0x0a, // length
				0x00, 0x00, 0x00, 0x00, // pad to struct
				0x00, 0x01,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // pad to struct
				0x00, 0x02,
			},
		},

		{
			"empty array of structs",
			func(e *fragments.Encoder) {
				e.Array(8, func() error { return nil })
			},
			[]byte{
				0x00, 0x00, 0x00, 0x00, // length
				0x00, 0x00, 0x00, 0x00, // pad to struct
			},
		},

		{
			"offsets",
			func(e *fragments.Encoder) {
				e.Write([]byte{1, 2, 3})
				e.Offsets(1, []int{1, 3})
				e.Offsets(2, []int{0x102})
			},
			[]byte{
				0x01, 0x02, 0x03,
				0x01, 0x03, // 1-byte offsets
				0x02, 0x01, // 2-byte offset, always little-endian
			},
		},

		{
			"little endian",
			func(e *fragments.Encoder) {
				e.Order = fragments.LittleEndian
				e.Uint16(0x0102)
				e.Uint32(0x03040506)
			},
			[]byte{
				0x02, 0x01,
				0x00, 0x00, // pad
				0x06, 0x05, 0x04, 0x03,
			},
		},

		{
			"offset",
			func(e *fragments.Encoder) {
				e.Offset = 3
				e.Uint32(42)
			},
			[]byte{
				0x00, // pad, message position 3
				0x00, 0x00, 0x00, 0x2a,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := fragments.Encoder{
				Order: fragments.BigEndian,
			}
			tc.in(&e)
			if got := e.Out; !bytes.Equal(got, tc.want) {
				t.Errorf("incorrect encode:\n  got: % x\n want: % x", got, tc.want)
			} else if testing.Verbose() {
				t.Logf("encoder got: % x", got)
			}

			counter := fragments.Encoder{
				Order:   fragments.BigEndian,
				Discard: true,
			}
			tc.in(&counter)
			if got, want := counter.Len(), len(tc.want); got != want {
				t.Errorf("discarding encoder counted %d bytes, want %d", got, want)
			}
			if counter.Out != nil {
				t.Errorf("discarding encoder wrote % x", counter.Out)
			}
		})
	}
}

func TestEncoderArrayError(t *testing.T) {
	e := fragments.Encoder{Order: fragments.LittleEndian}
	wantErr := errors.New("element failed")
	err := e.Array(4, func() error {
		e.Uint32(1)
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Array() got err %v, want %v", err, wantErr)
	}
}

func TestFramedSize(t *testing.T) {
	tests := []struct {
		body, count int
		wantWidth   int
		wantTotal   int
	}{
		{0, 0, 0, 0},
		{10, 0, 0, 10},
		{10, 2, 1, 12},
		{253, 2, 1, 255},
		{254, 2, 2, 258},
		{0xfffd, 1, 2, 0xffff},
		{0xfffe, 1, 4, 0x10002},
		{0xffff, 1, 4, 0x10003},
	}
	for _, tc := range tests {
		w, total := fragments.FramedSize(tc.body, tc.count)
		if w != tc.wantWidth || total != tc.wantTotal {
			t.Errorf("FramedSize(%d, %d) = %d, %d, want %d, %d", tc.body, tc.count, w, total, tc.wantWidth, tc.wantTotal)
		}
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	for _, w := range []int{1, 2, 4, 8} {
		max := 1<<(8*min(w, 7)) - 1
		bs := fragments.AppendOffset(nil, w, max)
		if len(bs) != w {
			t.Errorf("AppendOffset(width=%d) wrote %d bytes", w, len(bs))
		}
		if got := fragments.ReadOffset(bs, w); got != max {
			t.Errorf("ReadOffset(width=%d) = %d, want %d", w, got, max)
		}
	}
	if got := fragments.ReadOffset([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, 8); got != -1 {
		t.Errorf("ReadOffset(huge) = %d, want -1", got)
	}
}
