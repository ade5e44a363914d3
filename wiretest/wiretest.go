// Package wiretest provides helpers to test types that convert to and
// from the wire formats.
package wiretest

import (
	"encoding/hex"
	"reflect"
	"strings"
	"testing"

	"github.com/danderson/wire"
	"github.com/danderson/wire/fragments"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Contexts returns a Context for every combination of wire format
// and byte order.
func Contexts() []wire.Context {
	return []wire.Context{
		{Format: wire.DBus, Order: fragments.LittleEndian},
		{Format: wire.DBus, Order: fragments.BigEndian},
		{Format: wire.GVariant, Order: fragments.LittleEndian},
		{Format: wire.GVariant, Order: fragments.BigEndian},
	}
}

// Name returns a short name for ctx, suitable for subtest names.
func Name(ctx wire.Context) string {
	order := "le"
	if ctx.Order != nil && fragments.IsBigEndian(ctx.Order) {
		order = "be"
	}
	return ctx.Format.String() + "/" + order
}

// withLogger returns ctx with a test logger attached, if tests are
// running verbosely.
func withLogger(t testing.TB, ctx wire.Context) wire.Context {
	if testing.Verbose() && ctx.Logger == nil {
		ctx.Logger = zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))
	}
	return ctx
}

// RoundTrip marshals v in ctx, unmarshals the result into a new T,
// and reports an error if the result differs from v. It returns the
// encoded bytes.
//
// The comparison uses [cmp.Diff] with the given options.
func RoundTrip[T any](t testing.TB, ctx wire.Context, v T, opts ...cmp.Option) []byte {
	t.Helper()
	ctx = withLogger(t, ctx)
	bs, err := wire.Marshal(v, ctx)
	if err != nil {
		t.Errorf("Marshal(%#v) in %s: %v", v, Name(ctx), err)
		return nil
	}
	var got T
	n, err := wire.Unmarshal(bs, ctx, &got)
	if err != nil {
		t.Errorf("Unmarshal(% x) into %T in %s: %v", bs, got, Name(ctx), err)
		return bs
	}
	if n != len(bs) {
		t.Errorf("Unmarshal(% x) into %T in %s consumed %d bytes, want %d", bs, got, Name(ctx), n, len(bs))
	}
	if diff := cmp.Diff(got, v, opts...); diff != "" {
		t.Errorf("round trip of %T in %s changed value (-got+want):\n%s", v, Name(ctx), diff)
	}
	return bs
}

// RoundTripAll runs [RoundTrip] as a subtest in every context
// returned by [Contexts] whose format can represent T.
func RoundTripAll[T any](t *testing.T, v T, opts ...cmp.Option) {
	t.Helper()
	sig, err := wire.SignatureOf(v)
	if err != nil {
		t.Fatalf("SignatureOf(%T): %v", v, err)
	}
	for _, ctx := range Contexts() {
		if ctx.Format.Supports(sig) != nil {
			continue
		}
		t.Run(Name(ctx), func(t *testing.T) {
			RoundTrip(t, ctx, v, opts...)
		})
	}
}

// WantEncoding reports an error if the encoding of v in ctx is not
// want.
func WantEncoding(t testing.TB, ctx wire.Context, v any, want []byte) {
	t.Helper()
	got, err := wire.Marshal(v, withLogger(t, ctx))
	if err != nil {
		t.Errorf("Marshal(%#v) in %s: %v", v, Name(ctx), err)
		return
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Marshal(%#v) in %s wrong encoding (-got+want):\n%s", v, Name(ctx), diff)
	}
}

// WantValue reports an error if the decoding of raw in ctx into a
// value of want's type is not want.
func WantValue(t testing.TB, ctx wire.Context, raw []byte, want any, opts ...cmp.Option) {
	t.Helper()
	got := reflect.New(reflect.TypeOf(want))
	if _, err := wire.Unmarshal(raw, withLogger(t, ctx), got.Interface()); err != nil {
		t.Errorf("Unmarshal(% x) into %T in %s: %v", raw, want, Name(ctx), err)
		return
	}
	if diff := cmp.Diff(got.Elem().Interface(), want, opts...); diff != "" {
		t.Errorf("Unmarshal(% x) in %s wrong value (-got+want):\n%s", raw, Name(ctx), diff)
	}
}

// Hex decodes a hex dump into bytes. Whitespace is ignored, and '#'
// starts a comment that runs to the end of the line. Hex fails the
// test if the dump is malformed.
func Hex(t testing.TB, dump string) []byte {
	t.Helper()
	var clean strings.Builder
	for _, line := range strings.Split(dump, "\n") {
		line, _, _ = strings.Cut(line, "#")
		for _, f := range strings.Fields(line) {
			clean.WriteString(f)
		}
	}
	ret, err := hex.DecodeString(clean.String())
	if err != nil {
		t.Fatalf("invalid hex dump: %v", err)
	}
	return ret
}
