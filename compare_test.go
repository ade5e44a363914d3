package wire

import (
	"math"
	"testing"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same int", Int32(1), Int32(1), true},
		{"different int", Int32(1), Int32(2), false},
		{"different types", Int32(1), Uint32(1), false},
		{"string and path", String("/a"), ObjectPath("/a"), false},
		{"nil", nil, nil, true},
		{"nil and value", nil, Byte(0), false},
		{"nan", Double(math.NaN()), Double(math.NaN()), false},
		{"zeros", Double(0), Double(math.Copysign(0, -1)), true},
		{"signature", MustParseSignature("a{sv}"), DictOf(SigString, SigVariant), true},
		{"bytes", Bytes{1, 2}, Bytes{1, 2}, true},
		{"nil bytes", Bytes(nil), Bytes{}, true},
		{"bytes and byte array", Bytes{1, 2}, NewArray(SigByte, Byte(1), Byte(2)), true},
		{"byte array and bytes", NewArray(SigByte, Byte(1)), Bytes{1}, true},
		{"bytes and short array", Bytes{1, 2}, NewArray(SigByte, Byte(1)), false},
		{"arrays", NewArray(SigString, String("a")), NewArray(SigString, String("a")), true},
		{"empty arrays of different types", NewArray(SigString), NewArray(SigInt32), false},
		{"structs", Struct{Int32(1), String("a")}, Struct{Int32(1), String("a")}, true},
		{"struct arity", Struct{Int32(1)}, Struct{Int32(1), String("a")}, false},
		{"empty structs", Struct{}, Struct{}, true},
		{"variants", Variant{Int16(1)}, Variant{Int16(1)}, true},
		{"variant contents", Variant{Int16(1)}, Variant{Uint16(1)}, false},
		{"variant and contents", Variant{Int16(1)}, Int16(1), false},
		{"just", Just(Int32(1)), Just(Int32(1)), true},
		{"nothings", Nothing(SigInt32), Nothing(SigInt32), true},
		{"nothings of different types", Nothing(SigInt32), Nothing(SigString), false},
		{"just and nothing", Just(Int32(0)), Nothing(SigInt32), false},
		{"dicts in any order",
			Dict{SigString, SigInt32, []DictEntry{{String("a"), Int32(1)}, {String("b"), Int32(2)}}},
			Dict{SigString, SigInt32, []DictEntry{{String("b"), Int32(2)}, {String("a"), Int32(1)}}},
			true},
		{"dict values",
			Dict{SigString, SigInt32, []DictEntry{{String("a"), Int32(1)}}},
			Dict{SigString, SigInt32, []DictEntry{{String("a"), Int32(2)}}},
			false},
		{"dict keys",
			Dict{SigString, SigInt32, []DictEntry{{String("a"), Int32(1)}}},
			Dict{SigString, SigInt32, []DictEntry{{String("b"), Int32(1)}}},
			false},
		{"dict types", NewDict(SigString, SigInt32), NewDict(SigString, SigUint32), false},
	}

	for _, tc := range tests {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: Equal(%s, %s) = %v, want %v", tc.name, Sprint(tc.a), Sprint(tc.b), got, tc.want)
		}
		if got := Equal(tc.b, tc.a); got != tc.want {
			t.Errorf("%s: Equal(%s, %s) = %v, want %v", tc.name, Sprint(tc.b), Sprint(tc.a), got, tc.want)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b   Value
		want   int
		wantOK bool
	}{
		{Byte(1), Byte(2), -1, true},
		{Int16(-1), Int16(-1), 0, true},
		{Int64(5), Int64(-5), 1, true},
		{Uint64(math.MaxUint64), Uint64(0), 1, true},
		{Double(1.5), Double(2), -1, true},
		{Bool(false), Bool(true), -1, true},
		{Bool(true), Bool(true), 0, true},
		{Bool(true), Bool(false), 1, true},
		{String("a"), String("b"), -1, true},
		{ObjectPath("/b"), ObjectPath("/a"), 1, true},
		{SigInt32, SigString, -1, true},
		{Fd(3), Fd(3), 0, true},

		{Int32(1), Int64(1), 0, false},
		{String("a"), ObjectPath("a"), 0, false},
		{Struct{}, Struct{}, 0, false},
		{NewArray(SigByte), NewArray(SigByte), 0, false},
		{Variant{Int32(1)}, Variant{Int32(1)}, 0, false},
	}
	for _, tc := range tests {
		got, ok := Compare(tc.a, tc.b)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("Compare(%s, %s) = %d, %v, want %d, %v", Sprint(tc.a), Sprint(tc.b), got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestClone(t *testing.T) {
	bs := []byte("hello")
	orig := Struct{
		Bytes(bs),
		NewArray(SigBytes, Bytes(bs)),
		Dict{SigString, SigVariant, []DictEntry{{String("k"), Variant{Bytes(bs)}}}},
		Just(Bytes(bs)),
		Nothing(SigString),
	}
	clone := Clone(orig)
	if !Equal(clone, orig) {
		t.Fatalf("Clone(%s) = %s, not equal to original", Sprint(orig), Sprint(clone))
	}
	bs[0] = 'j'
	if Equal(clone, orig) {
		t.Errorf("Clone shares memory with its input, both are %s after mutation", Sprint(clone))
	}
	want := Struct{
		Bytes("hello"),
		NewArray(SigBytes, Bytes("hello")),
		Dict{SigString, SigVariant, []DictEntry{{String("k"), Variant{Bytes("hello")}}}},
		Just(Bytes("hello")),
		Nothing(SigString),
	}
	if !Equal(clone, want) {
		t.Errorf("Clone after mutation = %s, want %s", Sprint(clone), Sprint(want))
	}
}

func TestDict(t *testing.T) {
	d := NewDict(SigString, SigInt32)
	d.Set(String("a"), Int32(1))
	d.Set(String("b"), Int32(2))
	d.Set(String("a"), Int32(3))
	if got := len(d.Entries); got != 2 {
		t.Fatalf("dict has %d entries after setting 2 keys, want 2", got)
	}
	if got, ok := d.Lookup(String("a")); !ok || !Equal(got, Int32(3)) {
		t.Errorf("Lookup(a) = %s, %v, want 3, true", Sprint(got), ok)
	}
	if got, ok := d.Lookup(String("z")); ok {
		t.Errorf("Lookup(z) = %s, want not found", Sprint(got))
	}
	if got, want := Sprint(d), `@a{si} {"a": 3, "b": 2}`; got != want {
		t.Errorf("Sprint(dict) = %s, want %s", got, want)
	}
	if got := d.Type().String(); got != "a{si}" {
		t.Errorf("dict type = %q, want a{si}", got)
	}
}

func TestSprint(t *testing.T) {
	tests := []struct {
		in   Value
		want string
	}{
		{nil, "<nil>"},
		{Byte(7), "7"},
		{Bool(true), "true"},
		{Double(1.5), "1.5"},
		{String("a\n"), `"a\n"`},
		{ObjectPath("/a"), `objectpath "/a"`},
		{SigVariant, `signature "v"`},
		{Fd(2), "fd 2"},
		{Bytes("ab"), `bytes "ab"`},
		{NewArray(SigInt16, Int16(1), Int16(2)), "@an [1 2]"},
		{Struct{Byte(1), String("x")}, `(1, "x")`},
		{Variant{Struct{}}, "<()>"},
		{Just(Int32(1)), "just 1"},
		{Nothing(SigString), "@ms nothing"},
	}
	for _, tc := range tests {
		if got := Sprint(tc.in); got != tc.want {
			t.Errorf("Sprint(%#v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
