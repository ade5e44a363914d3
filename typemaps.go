package wire

import (
	"reflect"

	"github.com/creachadair/mds/mapset"
)

var (
	// basicCodes is the set of type codes of basic types, which are
	// the types allowed as dict keys.
	basicCodes = mapset.New[byte]('y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'o', 'g', 'h')

	// kindToSig maps the reflect.Kinds of the basic Go types
	// representable on the wire to the corresponding Signature.
	kindToSig = map[reflect.Kind]Signature{
		reflect.Bool:    SigBool,
		reflect.Uint8:   SigByte,
		reflect.Int16:   SigInt16,
		reflect.Uint16:  SigUint16,
		reflect.Int32:   SigInt32,
		reflect.Uint32:  SigUint32,
		reflect.Int64:   SigInt64,
		reflect.Uint64:  SigUint64,
		reflect.Float64: SigDouble,
		reflect.String:  SigString,
	}

	// typeToSig maps Go types that have a dedicated wire type to
	// their Signature. These take priority over kindToSig.
	typeToSig = map[reflect.Type]Signature{
		reflect.TypeFor[ObjectPath](): SigObjectPath,
		reflect.TypeFor[Signature]():  SigSignature,
		reflect.TypeFor[Fd]():         SigFd,
		reflect.TypeFor[Variant]():    SigVariant,
		reflect.TypeFor[Value]():      SigVariant,
		reflect.TypeFor[any]():        SigVariant,
	}

	// mapKeyKinds is the set of reflect.Kinds that can be in a map
	// key.
	mapKeyKinds = mapset.New(
		reflect.Bool,
		reflect.Uint8,
		reflect.Int16,
		reflect.Uint16,
		reflect.Int32,
		reflect.Uint32,
		reflect.Int64,
		reflect.Uint64,
		reflect.Float64,
		reflect.String,
	)
)
