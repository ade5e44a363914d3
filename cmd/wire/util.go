package main

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danderson/wire"
	"github.com/tidwall/gjson"
)

type indenter struct {
	out        io.Writer
	prefix     string
	indentNext bool
}

func (i *indenter) f(msg string, args ...any) {
	fmt.Fprintf(i, msg+"\n", args...)
}

func (i *indenter) Write(bs []byte) (int, error) {
	out := i.out
	if out == nil {
		out = stdout
	}
	ret := 0
	for len(bs) > 0 {
		if i.indentNext {
			i.indentNext = false
			_, err := io.WriteString(out, i.prefix)
			if err != nil {
				return ret, err
			}
		}

		wr := bs
		idx := bytes.IndexByte(bs, '\n')
		if idx >= 0 {
			i.indentNext = true
			wr, bs = bs[:idx+1], bs[idx+1:]
		} else {
			bs = nil
		}

		n, err := out.Write(wr)
		ret += n
		if err != nil {
			return ret, err
		}
	}
	return ret, nil
}

func (i *indenter) indent(n int) {
	i.prefix = strings.Repeat("  ", n)
}

func describeSignature(sig wire.Signature) {
	writeSignature(&indenter{}, sig, 0)
}

func writeSignature(out *indenter, sig wire.Signature, depth int) {
	out.indent(depth)
	if sig.IsList() {
		out.f("%q: list of %d types", sig, sig.NumTypes())
	} else {
		out.f("%q: %s", sig, kindName(sig))
	}
	out.indent(depth + 1)
	for _, f := range []wire.Format{wire.DBus, wire.GVariant} {
		if err := f.Supports(sig); err != nil {
			out.f("%s: unsupported", f)
			continue
		}
		size := "variable size"
		if n, ok := f.FixedSize(sig); ok {
			size = fmt.Sprintf("fixed size %d", n)
		}
		out.f("%s: align %d, %s", f, f.Alignment(sig), size)
	}
	switch sig.Code() {
	case 'a', 'm':
		writeSignature(out, sig.Elem(), depth+1)
	case '(', '{':
		for _, f := range sig.Fields() {
			writeSignature(out, f, depth+1)
		}
	}
}

func kindName(sig wire.Signature) string {
	switch sig.Code() {
	case 'y':
		return "byte"
	case 'b':
		return "bool"
	case 'n':
		return "int16"
	case 'q':
		return "uint16"
	case 'i':
		return "int32"
	case 'u':
		return "uint32"
	case 'x':
		return "int64"
	case 't':
		return "uint64"
	case 'd':
		return "double"
	case 's':
		return "string"
	case 'o':
		return "object path"
	case 'g':
		return "signature"
	case 'h':
		return "file descriptor"
	case 'v':
		return "variant"
	case 'm':
		return "maybe"
	case '(':
		return "struct"
	case '{':
		return "dict entry"
	case 'a':
		if sig.IsDict() {
			return "dict"
		}
		return "array"
	}
	return "unknown"
}

// parseJSON converts the JSON text input to a Value of type sig.
func parseJSON(input string, sig wire.Signature) (wire.Value, error) {
	if !gjson.Valid(input) {
		return nil, fmt.Errorf("invalid JSON")
	}
	return fromJSON(gjson.Parse(input), sig)
}

func fromJSON(r gjson.Result, sig wire.Signature) (wire.Value, error) {
	switch sig.Code() {
	case 'y':
		u, err := jsonUint(r, 8)
		return wire.Byte(u), err
	case 'n':
		i, err := jsonInt(r, 16)
		return wire.Int16(i), err
	case 'q':
		u, err := jsonUint(r, 16)
		return wire.Uint16(u), err
	case 'i':
		i, err := jsonInt(r, 32)
		return wire.Int32(i), err
	case 'u':
		u, err := jsonUint(r, 32)
		return wire.Uint32(u), err
	case 'x':
		i, err := jsonInt(r, 64)
		return wire.Int64(i), err
	case 't':
		u, err := jsonUint(r, 64)
		return wire.Uint64(u), err
	case 'h':
		u, err := jsonUint(r, 32)
		return wire.Fd(u), err
	case 'd':
		if r.Type != gjson.Number {
			return nil, fmt.Errorf("want a number, got %s", r.Raw)
		}
		return wire.Double(r.Float()), nil
	case 'b':
		if r.Type != gjson.True && r.Type != gjson.False {
			return nil, fmt.Errorf("want a boolean, got %s", r.Raw)
		}
		return wire.Bool(r.Bool()), nil
	case 's':
		if r.Type != gjson.String {
			return nil, fmt.Errorf("want a string, got %s", r.Raw)
		}
		return wire.String(r.Str), nil
	case 'o':
		if r.Type != gjson.String {
			return nil, fmt.Errorf("want an object path, got %s", r.Raw)
		}
		p := wire.ObjectPath(r.Str)
		if err := p.Valid(); err != nil {
			return nil, err
		}
		return p, nil
	case 'g':
		if r.Type != gjson.String {
			return nil, fmt.Errorf("want a signature, got %s", r.Raw)
		}
		return wire.ParseSignature(r.Str)
	case 'v':
		typ, val := r.Get("type"), r.Get("value")
		if !r.IsObject() || typ.Type != gjson.String || !val.Exists() {
			return nil, fmt.Errorf(`want {"type": ..., "value": ...} for variant, got %s`, r.Raw)
		}
		inner, err := wire.ParseSignature(typ.Str)
		if err != nil {
			return nil, err
		}
		if !inner.IsSingle() {
			return nil, fmt.Errorf("variant type %q is not a single type", inner)
		}
		v, err := fromJSON(val, inner)
		if err != nil {
			return nil, err
		}
		return wire.Variant{Value: v}, nil
	case 'm':
		if r.Type == gjson.Null {
			return wire.Nothing(sig.Elem()), nil
		}
		v, err := fromJSON(r, sig.Elem())
		if err != nil {
			return nil, err
		}
		return wire.Maybe{Elem: sig.Elem(), Value: v}, nil
	case '(':
		return fromJSONFields(r, sig.Fields())
	case 'a':
		if sig.IsDict() {
			return fromJSONDict(r, sig.Elem().Fields())
		}
		elem := sig.Elem()
		if elem.Code() == 'y' && r.Type == gjson.String {
			return wire.Bytes(r.Str), nil
		}
		if !r.IsArray() {
			return nil, fmt.Errorf("want an array, got %s", r.Raw)
		}
		ret := wire.NewArray(elem)
		for i, item := range r.Array() {
			v, err := fromJSON(item, elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			ret.Items = append(ret.Items, v)
		}
		return ret, nil
	}
	return nil, fmt.Errorf("unsupported signature %q", sig)
}

func fromJSONFields(r gjson.Result, fields []wire.Signature) (wire.Value, error) {
	if !r.IsArray() {
		return nil, fmt.Errorf("want an array of %d fields, got %s", len(fields), r.Raw)
	}
	items := r.Array()
	if len(items) != len(fields) {
		return nil, fmt.Errorf("want %d fields, got %d", len(fields), len(items))
	}
	ret := make(wire.Struct, 0, len(fields))
	for i, item := range items {
		v, err := fromJSON(item, fields[i])
		if err != nil {
			return nil, fmt.Errorf(".%d: %w", i, err)
		}
		ret = append(ret, v)
	}
	return ret, nil
}

func fromJSONDict(r gjson.Result, kv []wire.Signature) (wire.Value, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("want an object, got %s", r.Raw)
	}
	keySig, valSig := kv[0], kv[1]
	ret := wire.NewDict(keySig, valSig)
	var err error
	r.ForEach(func(k, v gjson.Result) bool {
		var key, val wire.Value
		// Object keys are always JSON strings, reparse them as
		// the key type's JSON representation.
		switch keySig.Code() {
		case 's', 'o', 'g':
		default:
			k = gjson.Parse(k.Str)
		}
		key, err = fromJSON(k, keySig)
		if err != nil {
			err = fmt.Errorf("key %s: %w", k.Raw, err)
			return false
		}
		val, err = fromJSON(v, valSig)
		if err != nil {
			err = fmt.Errorf("[%s]: %w", k.Raw, err)
			return false
		}
		ret.Entries = append(ret.Entries, wire.DictEntry{Key: key, Value: val})
		return true
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func jsonInt(r gjson.Result, bits int) (int64, error) {
	if r.Type != gjson.Number {
		return 0, fmt.Errorf("want an integer, got %s", r.Raw)
	}
	return strconv.ParseInt(r.Raw, 10, bits)
}

func jsonUint(r gjson.Result, bits int) (uint64, error) {
	if r.Type != gjson.Number {
		return 0, fmt.Errorf("want an unsigned integer, got %s", r.Raw)
	}
	return strconv.ParseUint(r.Raw, 10, bits)
}
