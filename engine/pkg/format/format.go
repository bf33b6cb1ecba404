// Package format maps a single 64-bit entropy word onto the supported
// output encodings. Every encoding is derived from the same per-request
// word with no resampling, so all output types inherit identical
// statistical guarantees.
package format

import (
	"encoding/binary"
	"math"
)

// doubleMantissaBits is the precision of an IEEE-754 double. The top 53
// bits of the entropy word fill the mantissa, scaling into [0, 1).
const doubleMantissaBits = 53

// booleanBit is the bit position sampled for boolean outputs. The most
// significant bit is the designated highest-entropy position.
const booleanBit = 63

// U64 returns the entropy word unchanged.
func U64(word uint64) uint64 {
	return word
}

// U64Bytes encodes the entropy word as 8 little-endian bytes, the wire
// form of a u64 output.
func U64Bytes(word uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, word)
	return out
}

// Double scales the entropy word into the unit interval [0, 1) by using
// its top 53 bits as the mantissa-filling source of an IEEE-754 double.
func Double(word uint64) float64 {
	return float64(word>>(64-doubleMantissaBits)) / (1 << doubleMantissaBits)
}

// DoubleBytes encodes the unit-interval double as 8 little-endian IEEE-754
// bytes, the wire form of a double output.
func DoubleBytes(word uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, math.Float64bits(Double(word)))
	return out
}

// Boolean samples the designated bit of the entropy word.
func Boolean(word uint64) bool {
	return word>>booleanBit&1 == 1
}

// BooleanBytes encodes the boolean as a single byte, nonzero meaning true.
func BooleanBytes(word uint64) []byte {
	if Boolean(word) {
		return []byte{1}
	}
	return []byte{0}
}
