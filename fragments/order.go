package fragments

import (
	"encoding/binary"

	"golang.org/x/sys/cpu"
)

// ByteOrder is the byte order used to encode multi-byte values.
type ByteOrder interface {
	byteOrder
	isBig() bool
}

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type wrapStd struct {
	byteOrder
}

func (w wrapStd) isBig() bool {
	switch w.byteOrder {
	case binary.BigEndian:
		return true
	case binary.LittleEndian:
		return false
	case binary.NativeEndian:
		return cpu.IsBigEndian
	default:
		panic("unknown ByteOrder, how did you manage to make one of those?")
	}
}

var (
	BigEndian    ByteOrder = wrapStd{binary.BigEndian}
	LittleEndian ByteOrder = wrapStd{binary.LittleEndian}
	NativeEndian ByteOrder = wrapStd{binary.NativeEndian}
)

// IsBigEndian reports whether ord writes the most significant byte
// first. NativeEndian resolves to the byte order of the running CPU.
func IsBigEndian(ord ByteOrder) bool {
	return ord.isBig()
}

// ParseByteOrder returns the ByteOrder named by s. It accepts "be",
// "big", "le", "little" and "native".
func ParseByteOrder(s string) (ByteOrder, bool) {
	switch s {
	case "be", "big", "big-endian":
		return BigEndian, true
	case "le", "little", "little-endian":
		return LittleEndian, true
	case "native":
		return NativeEndian, true
	}
	return nil, false
}
