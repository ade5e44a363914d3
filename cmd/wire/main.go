package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/danderson/wire"
	"github.com/danderson/wire/fragments"
	"github.com/kr/pretty"
	"go.uber.org/zap"
)

// stdout is where commands write their results.
var stdout io.Writer = os.Stdout

var globalArgs = struct {
	Format  string `flag:"format,Wire format (dbus|gvariant)"`
	Order   string `flag:"order,Byte order (le|be|native)"`
	Offset  int    `flag:"offset,Position of the value within its message for dbus alignment"`
	Verbose bool   `flag:"verbose,Log encoder and decoder traces"`
}{
	Format: "dbus",
	Order:  "le",
}

var convertArgs struct {
	Format string `flag:"to-format,Wire format to convert to"`
	Order  string `flag:"to-order,Byte order to convert to"`
}

var decodeArgs struct {
	Go bool `flag:"go,Print the decoded value as a Go value"`
}

// wireContext returns the Context selected by the global flags.
func wireContext(format, order string) (wire.Context, error) {
	f, ok := wire.ParseFormat(format)
	if !ok {
		return wire.Context{}, fmt.Errorf("unknown wire format %q", format)
	}
	o, ok := fragments.ParseByteOrder(order)
	if !ok {
		return wire.Context{}, fmt.Errorf("unknown byte order %q", order)
	}
	ret := wire.Context{
		Format: f,
		Order:  o,
		Offset: globalArgs.Offset,
	}
	if globalArgs.Verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return wire.Context{}, fmt.Errorf("creating logger: %w", err)
		}
		ret.Logger = log
	}
	return ret, nil
}

func main() {
	root := &command.C{
		Name:     "wire",
		Usage:    "command args...",
		Help:     "Inspect, encode and decode D-Bus and GVariant values.",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:  "sig",
				Usage: "sig signature...",
				Help:  "Parse type signatures and show their layout in each wire format.",
				Run:   runSig,
			},
			{
				Name:  "encode",
				Usage: "encode signature json",
				Help: `Encode a JSON value and print the encoding as hex.

The JSON value is interpreted according to the signature:
  - numbers, strings and booleans for basic types
  - arrays for arrays and structs
  - objects for dicts, with keys converted to the dict's key type
  - null for an empty maybe, or the inner value for a full maybe
  - {"type": "signature", "value": ...} for variants

Arrays of bytes also accept a JSON string.`,
				Run: command.Adapt(runEncode),
			},
			{
				Name:     "decode",
				Usage:    "decode signature hex",
				Help:     "Decode a hex encoded value and print it.",
				SetFlags: command.Flags(flax.MustBind, &decodeArgs),
				Run:      command.Adapt(runDecode),
			},
			{
				Name:  "convert",
				Usage: "convert signature hex",
				Help: `Decode a hex encoded value and re-encode it in another format or byte order.

Unset --to-format and --to-order default to the input's format and order.`,
				SetFlags: command.Flags(flax.MustBind, &convertArgs),
				Run:      command.Adapt(runConvert),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	env := root.NewEnv(nil)
	command.RunOrFail(env, os.Args[1:])
}

func runSig(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("missing signature")
	}
	var errs []error
	for _, s := range env.Args {
		sig, err := wire.ParseSignature(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		describeSignature(sig)
	}
	return errors.Join(errs...)
}

func runEncode(env *command.Env, sigStr, input string) error {
	ctx, err := wireContext(globalArgs.Format, globalArgs.Order)
	if err != nil {
		return err
	}
	sig, err := wire.ParseSignature(sigStr)
	if err != nil {
		return err
	}
	v, err := parseJSON(input, sig)
	if err != nil {
		return fmt.Errorf("parsing input: %w", err)
	}
	bs, err := wire.Encode(v, sig, ctx)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", wire.Sprint(v), err)
	}
	fmt.Fprintln(stdout, hex.EncodeToString(bs))
	return nil
}

func runDecode(env *command.Env, sigStr, input string) error {
	ctx, err := wireContext(globalArgs.Format, globalArgs.Order)
	if err != nil {
		return err
	}
	v, rest, err := decodeHex(sigStr, input, ctx)
	if err != nil {
		return err
	}
	if decodeArgs.Go {
		fmt.Fprintf(stdout, "%# v\n", pretty.Formatter(v))
	} else {
		fmt.Fprintln(stdout, wire.Sprint(v))
	}
	if rest > 0 {
		fmt.Fprintf(stdout, "(%d trailing bytes not consumed)\n", rest)
	}
	return nil
}

func runConvert(env *command.Env, sigStr, input string) error {
	from, err := wireContext(globalArgs.Format, globalArgs.Order)
	if err != nil {
		return err
	}
	toFormat, toOrder := globalArgs.Format, globalArgs.Order
	if convertArgs.Format != "" {
		toFormat = convertArgs.Format
	}
	if convertArgs.Order != "" {
		toOrder = convertArgs.Order
	}
	to, err := wireContext(toFormat, toOrder)
	if err != nil {
		return err
	}
	v, _, err := decodeHex(sigStr, input, from)
	if err != nil {
		return err
	}
	sig := wire.MustParseSignature(sigStr)
	bs, err := wire.Encode(v, sig, to)
	if err != nil {
		return fmt.Errorf("encoding as %s: %w", to.Format, err)
	}
	fmt.Fprintln(stdout, hex.EncodeToString(bs))
	return nil
}

// decodeHex decodes the hex encoded input. It also returns the number
// of input bytes left after the value.
func decodeHex(sigStr, input string, ctx wire.Context) (wire.Value, int, error) {
	sig, err := wire.ParseSignature(sigStr)
	if err != nil {
		return nil, 0, err
	}
	bs, err := hex.DecodeString(strings.Join(strings.Fields(input), ""))
	if err != nil {
		return nil, 0, fmt.Errorf("parsing hex input: %w", err)
	}
	v, n, err := wire.Decode(bs, sig, ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %q: %w", sig, err)
	}
	return v, len(bs) - n, nil
}
