package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/danderson/wire/fragments"
	"github.com/google/go-cmp/cmp"
)

func TestGVariantVectors(t *testing.T) {
	checkVectors(t, gvLE, []vector{
		{"byte", "y", Byte(42), []byte{42}},
		{"true", "b", Bool(true), []byte{1}},
		{"i16", "n", Int16(-2), []byte{0xfe, 0xff}},
		{"i32", "i", Int32(5), []byte{5, 0, 0, 0}},
		{"f64", "d", Double(1), []byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}},
		{"string", "s", String("foo"), []byte{'f', 'o', 'o', 0}},
		{"empty string", "s", String(""), []byte{0}},
		{"object path", "o", ObjectPath("/a/b"), []byte{'/', 'a', '/', 'b', 0}},
		{"signature", "g", MustParseSignature("a{sv}"), []byte{'a', '{', 's', 'v', '}', 0}},
		{"fixed struct", "(ii)", Struct{Int32(1), Int32(2)},
			[]byte{
				1, 0, 0, 0,
				2, 0, 0, 0,
			}},
		{"fixed struct tail padding", "(iy)", Struct{Int32(1), Byte(2)},
			[]byte{
				1, 0, 0, 0,
				2,
				// pad to struct alignment
				0, 0, 0,
			}},
		{"empty struct", "()", Struct{}, []byte{0}},
		{"strings", "as", NewArray(SigString, String("hello"), String("world")),
			[]byte{
				'h', 'e', 'l', 'l', 'o', 0,
				'w', 'o', 'r', 'l', 'd', 0,
				// element end offsets
				6, 12,
			}},
		{"empty strings", "as", NewArray(SigString), []byte{}},
		{"int32s", "ai", NewArray(SigInt32, Int32(1), Int32(2)),
			[]byte{
				1, 0, 0, 0,
				2, 0, 0, 0,
			}},
		{"bytes", "ay", Bytes{1, 2}, []byte{1, 2}},
		{"vardict", "a{sv}",
			Dict{SigString, SigVariant, []DictEntry{
				{String("name"), Variant{String("x")}},
			}},
			[]byte{
				// key
				'n', 'a', 'm', 'e', 0,
				// pad to variant alignment
				0, 0, 0,
				// variant value, separator, signature
				'x', 0, 0, 's',
				// entry: end of key
				5,
				// array: end of entry
				13,
			}},
		{"just int32", "mi", Just(Int32(42)), []byte{42, 0, 0, 0}},
		{"nothing int32", "mi", Nothing(SigInt32), []byte{}},
		{"just string", "ms", Just(String("hi")), []byte{'h', 'i', 0, 0}},
		{"nothing string", "ms", Nothing(SigString), []byte{}},
		{"just false", "mb", Just(Bool(false)), []byte{0}},
		{"just just int32", "mmi", Just(Just(Int32(5))), []byte{5, 0, 0, 0, 0}},
		{"just nothing", "mmi", Just(Nothing(SigInt32)), []byte{0}},
		{"variant", "v", Variant{Int32(5)}, []byte{5, 0, 0, 0, 0, 'i'}},
		{"variant struct", "v", Variant{Struct{Byte(1), String("a")}},
			[]byte{1, 'a', 0, 0, '(', 'y', 's', ')'}},
		{"struct variable first", "(sy)", Struct{String("foo"), Byte(42)},
			[]byte{
				'f', 'o', 'o', 0,
				42,
				// end of field 0
				4,
			}},
		{"struct variable last", "(ys)", Struct{Byte(1), String("ab")},
			[]byte{1, 'a', 'b', 0}},
		{"struct padded field", "(si)", Struct{String("ab"), Int32(7)},
			[]byte{
				'a', 'b', 0,
				// pad
				0,
				7, 0, 0, 0,
				// end of field 0
				3,
			}},
		{"struct offsets reversed", "(sss)", Struct{String("a"), String("bc"), String("d")},
			[]byte{
				'a', 0,
				'b', 'c', 0,
				'd', 0,
				// end of field 1, then end of field 0
				5, 2,
			}},
		{"array of structs", "a(si)", NewArray(MustParseSignature("(si)"), Struct{String("a"), Int32(1)}),
			[]byte{
				'a', 0,
				// pad
				0, 0,
				1, 0, 0, 0,
				// struct: end of field 0
				2,
				// array: end of element 0
				9,
			}},
		{"list", "su", Struct{String("a"), Uint32(7)},
			[]byte{
				'a', 0,
				0, 0,
				7, 0, 0, 0,
				2,
			}},
	})
}

func TestGVariantBigEndian(t *testing.T) {
	ctx := Context{Format: GVariant, Order: fragments.BigEndian}
	checkVectors(t, ctx, []vector{
		{"i32", "i", Int32(0x12345678), []byte{0x12, 0x34, 0x56, 0x78}},
		{"fixed struct", "(ni)", Struct{Int16(1), Int32(2)},
			[]byte{
				0, 1,
				0, 0,
				0, 0, 0, 2,
			}},
		{"strings", "as", NewArray(SigString, String("a"), String("b")),
			[]byte{'a', 0, 'b', 0, 2, 4}},
	})
}

func TestGVariantWideOffsets(t *testing.T) {
	// 300 bytes of content need 2-byte framing offsets.
	long := String(strings.Repeat("x", 299))
	val := NewArray(SigString, long, String("y"))
	sig := ArrayOf(SigString)
	got, err := Encode(val, sig, gvLE)
	if err != nil {
		t.Fatalf("Encode got err: %v", err)
	}
	// 300 + 2 bytes of strings, and two 2-byte offsets.
	if len(got) != 306 {
		t.Fatalf("encoded length = %d, want 306", len(got))
	}
	if n, err := EncodedSize(val, sig, gvLE); err != nil || n != 306 {
		t.Errorf("EncodedSize = %d, %v, want 306", n, err)
	}
	wantTable := []byte{0x2c, 0x01, 0x2e, 0x01}
	if diff := cmp.Diff(got[302:], wantTable); diff != "" {
		t.Errorf("wrong offset table (-got+want):\n%s", diff)
	}
	dec, _, err := Decode(got, sig, gvLE)
	if err != nil {
		t.Fatalf("Decode got err: %v", err)
	}
	if !Equal(dec, val) {
		t.Errorf("Decode = %s, want %s", Sprint(dec), Sprint(val))
	}
}

func TestGVariantBadInput(t *testing.T) {
	checkBadInputs(t, gvLE, []badInput{
		{"short i32", "i", []byte{1, 2}, ErrInsufficientData},
		{"long i32", "i", []byte{1, 2, 3, 4, 5}, ErrInvalidData},
		{"bad bool", "b", []byte{2}, ErrInvalidData},
		{"short fixed struct", "(ii)", []byte{1, 0, 0, 0, 2, 0, 0}, ErrInsufficientData},
		{"empty string", "s", []byte{}, ErrInsufficientData},
		{"missing terminator", "s", []byte{'f', 'o'}, ErrInvalidData},
		{"embedded nul", "s", []byte{'a', 0, 'b', 0}, ErrInvalidData},
		{"invalid utf-8", "s", []byte{0xff, 0}, ErrInvalidUTF8},
		{"bad object path", "o", []byte{'a', 0}, ErrInvalidData},
		{"ragged fixed array", "ai", []byte{1, 0, 0, 0, 2}, ErrInvalidData},
		{"offset table outside array", "as",
			[]byte{'h', 'e', 'l', 'l', 'o', 0, 'w', 'o', 'r', 'l', 'd', 0, 6, 0x20},
			ErrInvalidData},
		{"offsets not monotonic", "as",
			[]byte{'a', 0, 'b', 0, 'c', 0, 2, 1, 6},
			ErrInvalidData},
		{"offset table past end", "as",
			[]byte{'a', 0, 'b', 0, 5},
			ErrInvalidData},
		{"struct offset outside struct", "(sy)",
			[]byte{'f', 'o', 'o', 0, 42, 9},
			ErrInvalidData},
		{"struct trailing bytes", "(ys)", []byte{1, 'a', 0, 0}, ErrInvalidData},
		{"nonzero empty struct", "()", []byte{1}, ErrInvalidData},
		{"bad variant signature", "v", []byte{5, 0, 0, 0, 0, 'z'}, ErrInvalidSignature},
		{"variant list signature", "v", []byte{0, 'i', 'i'}, ErrInvalidSignature},
		{"variant without separator", "v", []byte{'i'}, ErrInvalidData},
		{"maybe wrong size", "mi", []byte{1, 0, 0}, ErrInvalidData},
		{"maybe missing marker", "ms", []byte{'h', 'i', 0, 1}, ErrInvalidData},
		{"dict entry past offset table", "a{sv}", []byte{'a', 0, 5}, ErrInvalidData},
	})
}

func TestGVariantConsumesAll(t *testing.T) {
	// GVariant values are framed by their container, so trailing
	// bytes are part of the value and must be accounted for.
	raw := []byte{'a', 0}
	got, n, err := Decode(raw, SigString, gvLE)
	if err != nil {
		t.Fatalf("Decode got err: %v", err)
	}
	if n != len(raw) {
		t.Errorf("Decode consumed %d bytes, want %d", n, len(raw))
	}
	if !Equal(got, String("a")) {
		t.Errorf("Decode = %s, want \"a\"", Sprint(got))
	}
}

func TestBorrow(t *testing.T) {
	for _, ctx := range []Context{busLE, gvLE} {
		t.Run(ctx.Format.String(), func(t *testing.T) {
			val := Struct{String("hello"), Bytes("world")}
			sig := MustParseSignature("(say)")
			raw, err := Encode(val, sig, ctx)
			if err != nil {
				t.Fatalf("Encode got err: %v", err)
			}

			ctx.Borrow = true
			borrowed, _, err := Decode(raw, sig, ctx)
			if err != nil {
				t.Fatalf("Decode got err: %v", err)
			}
			ctx.Borrow = false
			copied, _, err := Decode(raw, sig, ctx)
			if err != nil {
				t.Fatalf("Decode got err: %v", err)
			}
			detached := Clone(borrowed)

			idx := bytes.Index(raw, []byte("world"))
			raw[idx] = 'W'

			if got := borrowed.(Struct)[1].(Bytes); string(got) != "World" {
				t.Errorf("borrowed bytes = %q, want aliasing of input", got)
			}
			if got := copied.(Struct)[1].(Bytes); string(got) != "world" {
				t.Errorf("copied bytes = %q, want independent copy", got)
			}
			if got := detached.(Struct)[1].(Bytes); string(got) != "world" {
				t.Errorf("cloned bytes = %q, want independent copy", got)
			}
			if !Equal(copied, val) {
				t.Errorf("copied = %s, want %s", Sprint(copied), Sprint(val))
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		ctx      Context
		sig      string
		val      Value
		wantKind Kind
		wantPath string
	}{
		{"wrong scalar", gvLE, "i", String("x"), TypeMismatch, ""},
		{"nil value", gvLE, "i", nil, TypeMismatch, ""},
		{"invalid utf-8", busLE, "s", String("\xff"), InvalidUTF8, ""},
		{"embedded nul", gvLE, "s", String("a\x00b"), InvalidData, ""},
		{"bad object path", busLE, "o", ObjectPath("a/b"), InvalidData, ""},
		{"array item type", busLE, "as", Array{SigString, []Value{String("a"), Int32(1)}}, TypeMismatch, "[1]"},
		{"struct field", gvLE, "(ias)",
			Struct{Int32(1), NewArray(SigString, String("ok"), String("\xff"))},
			InvalidUTF8, ".1[1]"},
		{"struct arity", gvLE, "(ii)", Struct{Int32(1)}, TypeMismatch, ""},
		{"array element type", gvLE, "as", NewArray(SigInt32), TypeMismatch, ""},
		{"empty variant", gvLE, "v", Variant{}, InvalidData, ""},
		{"maybe in bus format", busLE, "mi", Just(Int32(1)), UnsupportedType, ""},
		{"maybe in bus variant", busLE, "v", Variant{Just(Int32(1))}, UnsupportedType, ""},
		{"maybe wrong element", gvLE, "mi", Just(String("x")), TypeMismatch, ""},
		{"dict key type", gvLE, "a{sv}",
			Dict{SigString, SigVariant, []DictEntry{{Int32(1), Variant{Int32(1)}}}},
			TypeMismatch, "[0]"},
		{"duplicate dict key", gvLE, "a{sv}",
			Dict{SigString, SigVariant, []DictEntry{
				{String("a"), Variant{Int32(1)}},
				{String("a"), Variant{Int32(2)}},
			}},
			InvalidData, "[1]"},
		{"value for empty signature", gvLE, "", Int32(1), TypeMismatch, ""},
		{"variant struct with nil field", busLE, "v", Variant{Struct{Int32(1), nil}}, TypeMismatch, ".1"},
		{"variant array without type", busLE, "v", Variant{Array{}}, TypeMismatch, ""},
		{"variant dict without type", gvLE, "v", Variant{Dict{}}, TypeMismatch, ""},
		{"variant dict with struct key", gvLE, "v", Variant{Dict{Key: StructOf(SigInt32), Val: SigByte}}, TypeMismatch, ""},
		{"variant maybe without type", gvLE, "v", Variant{Maybe{}}, TypeMismatch, ""},
		{"nested variant array without type", gvLE, "(iv)", Struct{Int32(1), Variant{Array{}}}, TypeMismatch, ".1"},
		{"malformed dict key", gvLE, "a{sv}",
			Dict{SigString, SigVariant, []DictEntry{{Struct{nil}, Variant{Int32(1)}}}},
			TypeMismatch, "[0].0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(tc.val, MustParseSignature(tc.sig), tc.ctx)
			if err == nil {
				t.Fatalf("Encode(%s, %q) succeeded, want error", Sprint(tc.val), tc.sig)
			}
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("Encode err = %v (%T), want *Error", err, err)
			}
			if e.Kind != tc.wantKind {
				t.Errorf("Encode err kind = %v, want %v (err: %v)", e.Kind, tc.wantKind, err)
			}
			if e.Path != tc.wantPath {
				t.Errorf("Encode err path = %q, want %q (err: %v)", e.Path, tc.wantPath, err)
			}

			n, err := EncodedSize(tc.val, MustParseSignature(tc.sig), tc.ctx)
			if !errors.As(err, &e) || e.Kind != tc.wantKind {
				t.Errorf("EncodedSize(%s, %q) = %d, %v, want %v error", Sprint(tc.val), tc.sig, n, err, tc.wantKind)
			}
		})
	}
}

func TestMalformedValues(t *testing.T) {
	vals := []Value{
		Struct{nil},
		Struct{Int32(1), Struct{nil}},
		Array{},
		Array{Items: []Value{Int32(1)}},
		Dict{},
		Dict{Key: SigVariant, Val: SigByte},
		Maybe{},
	}
	for _, v := range vals {
		// Sprint is for diagnostics and must not panic.
		desc := Sprint(v)
		if _, err := checkedType(v); !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("checkedType(%s) err = %v, want ErrTypeMismatch", desc, err)
		}
		if _, err := SignatureOf(v); !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("SignatureOf(%s) err = %v, want ErrTypeMismatch", desc, err)
		}
		for _, ctx := range []Context{busLE, gvLE} {
			if _, err := Marshal(v, ctx); !errors.Is(err, ErrTypeMismatch) {
				t.Errorf("Marshal(%s) in %s err = %v, want ErrTypeMismatch", desc, ctx.Format, err)
			}
			if _, err := Encode(Variant{v}, SigVariant, ctx); !errors.Is(err, ErrTypeMismatch) {
				t.Errorf("Encode(<%s>) in %s err = %v, want ErrTypeMismatch", desc, ctx.Format, err)
			}
		}
		var dst []int32
		if err := Store(v, &dst); !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("Store(%s, *[]int32) err = %v, want ErrTypeMismatch", desc, err)
		}
	}
}
