// Package wire encodes and decodes values in the D-Bus wire format
// and in the GVariant serialization format.
//
// Both formats describe values with the same type signatures: basic
// types such as "i" or "s", and containers such as "ai", "a{sv}",
// "(ib)" and, for GVariant only, maybe types like "ms". A
// [Signature] is a parsed, validated type signature, and [Format]
// reports how each format lays a signature out.
//
// Values can be handled in two ways. The dynamic [Value] types
// ([Int32], [String], [Array], [Struct], [Dict], [Variant], [Maybe]
// and friends) mirror the type system directly, and are encoded
// with [Encode] and decoded with [Decode]. Alternatively, [Marshal]
// and [Unmarshal] map ordinary Go values to and from the wire,
// following the rules documented on [ValueOf] and [Store].
//
// The bus format is the D-Bus message body encoding: values are
// aligned to their natural boundary relative to the start of the
// message, arrays carry a byte length and strings carry a length
// prefix. Use [Context].Offset when encoding or decoding a value
// that doesn't start at the beginning of its message.
//
// GVariant values have no length prefixes. Instead, containers with
// variable-size children end with a table of framing offsets, whose
// width depends on the container's total size. Decoding is strict:
// malformed framing is reported as an [Error] of kind InvalidData,
// rather than normalized to a default value.
//
// Decoding with [Context].Borrow set avoids copying strings and byte
// arrays out of the input. The decoded values then alias the input,
// and must be detached with [Clone] before the input is reused.
package wire
