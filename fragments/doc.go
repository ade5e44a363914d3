// package fragments provides low-level encoding and decoding helpers
// for the D-Bus and GVariant wire formats.
//
// The provided encoder and decoder are very low level, and do not
// encode any type semantics. It is the caller's responsibility to
// produce valid messages using these tools.
//
// You should not need to use this package at all, unless you are
// writing a codec for one of the wire formats yourself. Package wire
// builds its two codecs on top of it.
package fragments
