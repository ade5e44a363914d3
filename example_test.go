package wire_test

import (
	"bytes"
	"fmt"

	"github.com/danderson/wire"
	"github.com/danderson/wire/fragments"
)

// StationNoVardict is a weather station report that carries its
// extension fields in a plain a{sv} dictionary.
type StationNoVardict struct {
	Name string

	// This example protocol documents two extension fields: a
	// location string and a temperature double.
	Extensions map[string]any
}

// StationWithVardict is the same report, with extension fields
// expressed as vardict fields.
type StationWithVardict struct {
	Name        string
	Location    string  `wire:"key=location"`
	Temperature float64 `wire:"key=temperature"`

	UnknownExtensions map[string]any `wire:"vardict"`
}

var bigEndianBus = wire.Context{Format: wire.DBus, Order: fragments.BigEndian}

func mustMarshal(v any, ctx wire.Context) []byte {
	bs, err := wire.Marshal(v, ctx)
	if err != nil {
		panic(err)
	}
	return bs
}

func ExampleMarshal_vardict() {
	a := StationNoVardict{
		Name: "Weather station",
		Extensions: map[string]any{
			"location":    "Helsinki",
			"temperature": -4.2,
		},
	}

	b := StationWithVardict{
		Name:        "Weather station",
		Location:    "Helsinki",
		Temperature: -4.2,
	}

	for _, ctx := range []wire.Context{bigEndianBus, {Format: wire.GVariant}} {
		fmt.Println(ctx.Format, bytes.Equal(mustMarshal(a, ctx), mustMarshal(b, ctx)))
	}
	// Output:
	// dbus true
	// gvariant true
}

func ExampleUnmarshal_vardict() {
	msg := mustMarshal(StationNoVardict{
		Name: "Weather station",
		Extensions: map[string]any{
			"location":    "Helsinki",
			"temperature": -4.2,
		},
	}, bigEndianBus)

	var noVardict StationNoVardict
	if _, err := wire.Unmarshal(msg, bigEndianBus, &noVardict); err != nil {
		panic(err)
	}
	fmt.Println("Name:", noVardict.Name)
	fmt.Println("Location:", noVardict.Extensions["location"])
	fmt.Println("Temperature:", noVardict.Extensions["temperature"])
	fmt.Println("Extensions:", len(noVardict.Extensions))
	fmt.Println("")

	var withVardict StationWithVardict
	if _, err := wire.Unmarshal(msg, bigEndianBus, &withVardict); err != nil {
		panic(err)
	}
	fmt.Println("Name:", withVardict.Name)
	fmt.Println("Location:", withVardict.Location)
	fmt.Println("Temperature:", withVardict.Temperature)
	fmt.Println("Extensions:", len(withVardict.UnknownExtensions))

	// Output:
	// Name: Weather station
	// Location: Helsinki
	// Temperature: -4.2
	// Extensions: 2
	//
	// Name: Weather station
	// Location: Helsinki
	// Temperature: -4.2
	// Extensions: 0
}

func ExampleEncode() {
	v := wire.Struct{wire.String("hi"), wire.Just(wire.Int32(5))}
	bs, err := wire.Encode(v, wire.MustParseSignature("(smi)"), wire.Context{Format: wire.GVariant})
	if err != nil {
		panic(err)
	}
	fmt.Printf("% x\n", bs)
	// Output: 68 69 00 00 05 00 00 00 03
}

func ExampleDecode() {
	raw := []byte{
		0x08, 0x00, 0x00, 0x00, // array length
		0x01, 0x00, 0x00, 0x00, // 1
		0x02, 0x00, 0x00, 0x00, // 2
	}
	v, n, err := wire.Decode(raw, wire.MustParseSignature("au"), wire.Context{})
	if err != nil {
		panic(err)
	}
	fmt.Println(wire.Sprint(v), n)
	// Output: @au [1 2] 12
}
