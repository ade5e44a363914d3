package wire

import "fmt"

// Format is a wire format.
type Format uint8

const (
	// DBus is the D-Bus marshalling format: natural alignment,
	// length-prefixed arrays and strings, and 8-byte aligned structs.
	DBus Format = iota
	// GVariant is the GVariant serialization format: trailing framing
	// offsets locate variable-size children, and maybe types are
	// available.
	GVariant

	numFormats
)

func (f Format) String() string {
	switch f {
	case DBus:
		return "dbus"
	case GVariant:
		return "gvariant"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// ParseFormat returns the Format named by s.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "dbus", "bus":
		return DBus, true
	case "gvariant", "variant", "gv":
		return GVariant, true
	}
	return 0, false
}

// layout is the per-format shape of a type.
type layout struct {
	align int
	// size is the encoded size of fixed-size types, or 0 for
	// variable-size types. No fixed-size type encodes to zero
	// bytes.
	size int
	// unsupported is set if the type cannot be encoded in the
	// format.
	unsupported bool
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

var basicLayouts = [numFormats]map[byte]layout{
	DBus: {
		'y': {1, 1, false},
		'b': {4, 4, false},
		'n': {2, 2, false},
		'q': {2, 2, false},
		'i': {4, 4, false},
		'u': {4, 4, false},
		'h': {4, 4, false},
		'x': {8, 8, false},
		't': {8, 8, false},
		'd': {8, 8, false},
		's': {4, 0, false},
		'o': {4, 0, false},
		'g': {1, 0, false},
		'v': {1, 0, false},
	},
	GVariant: {
		'y': {1, 1, false},
		'b': {1, 1, false},
		'n': {2, 2, false},
		'q': {2, 2, false},
		'i': {4, 4, false},
		'u': {4, 4, false},
		'h': {4, 4, false},
		'x': {8, 8, false},
		't': {8, 8, false},
		'd': {8, 8, false},
		's': {1, 0, false},
		'o': {1, 0, false},
		'g': {1, 0, false},
		'v': {8, 0, false},
	},
}

// computeLayout fills in n.layout. The layouts of n's children must
// already be computed.
func computeLayout(n *typeNode) {
	for f := range numFormats {
		n.layout[f] = f.layoutOf(n)
	}
}

func (f Format) layoutOf(n *typeNode) layout {
	if l, ok := basicLayouts[f][n.code]; ok {
		return l
	}

	switch n.code {
	case 'a':
		el := n.elem.layout[f]
		ret := layout{align: el.align, unsupported: el.unsupported}
		if f == DBus {
			ret.align = 4
		}
		return ret
	case 'm':
		el := n.elem.layout[f]
		return layout{align: el.align, unsupported: f == DBus || el.unsupported}
	case '(', '{':
		if len(n.fields) == 0 {
			return layout{align: 1, size: 1}
		}
		var (
			ret   layout
			off   int
			fixed = true
		)
		for _, fn := range n.fields {
			fl := fn.layout[f]
			ret.unsupported = ret.unsupported || fl.unsupported
			ret.align = max(ret.align, fl.align)
			if fl.size == 0 {
				fixed = false
			}
			off = alignUp(off, fl.align) + fl.size
		}
		if f == DBus {
			if n.bare {
				ret.align = n.fields[0].layout[f].align
			} else {
				ret.align = 8
			}
		} else {
			off = alignUp(off, ret.align)
		}
		if fixed {
			ret.size = off
		}
		return ret
	}
	panic(fmt.Sprintf("no layout for type code %q", n.code))
}

// Alignment returns the alignment of sig in the format. The empty
// signature has alignment 1.
func (f Format) Alignment(sig Signature) int {
	if sig.t == nil {
		return 1
	}
	return sig.t.layout[f].align
}

// IsFixedSize reports whether every value of type sig encodes to the
// same number of bytes in the format.
func (f Format) IsFixedSize(sig Signature) bool {
	_, ok := f.FixedSize(sig)
	return ok
}

// FixedSize returns the encoded size of sig, if sig is a fixed-size
// type in the format.
func (f Format) FixedSize(sig Signature) (int, bool) {
	if sig.t == nil {
		return 0, false
	}
	sz := sig.t.layout[f].size
	return sz, sz > 0
}

// Supports returns an error with kind UnsupportedType if sig cannot
// be encoded in the format.
func (f Format) Supports(sig Signature) error {
	if sig.t == nil || !sig.t.layout[f].unsupported {
		return nil
	}
	return errorf(UnsupportedType, "%s format cannot represent %q", f, sig)
}

func (s Signature) layout(f Format) layout {
	return s.t.layout[f]
}
