package entropy

import (
	"encoding/binary"
	"math/bits"

	"golang.org/x/crypto/blake2b"
)

// Mixer combines independent raw entropy samples into a uniformly
// distributed 64-bit word. It is pure and stateless: the same sources
// always produce the same word, and no source's structure survives into
// the output.
//
// The pipeline has two stages. A nonlinear diffusion pass spreads every
// input bit across all lanes (rotate, XOR, multiplicative avalanche), so
// flipping any single input bit flips about half of the intermediate
// state. A whitening pass then runs the diffused state through BLAKE2b
// and folds the digest down to 64 bits, removing any residual bias.
type Mixer struct{}

func NewMixer() *Mixer {
	return &Mixer{}
}

// sampleBytes is the fixed gather-buffer size: slot (8) + clock (8) +
// recent blockhash (32) + transaction signature (64).
const sampleBytes = 112

// splitmix64 finalizer constants, used for the avalanche step.
const (
	avalancheMul1 = 0xbf58476d1ce4e5b9
	avalancheMul2 = 0x94d049bb133111eb
	laneSeed      = 0x9e3779b97f4a7c15 // golden ratio increment
)

// Word derives one 64-bit entropy word from the given sources. It returns
// an error without consuming anything if a source is missing.
func (m *Mixer) Word(src Sources) (uint64, error) {
	if err := src.Validate(); err != nil {
		return 0, err
	}

	var buf [sampleBytes]byte
	binary.LittleEndian.PutUint64(buf[0:8], src.Slot)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(src.UnixTimeNs))
	copy(buf[16:48], src.RecentBlockhash[:])
	copy(buf[48:112], src.Signature[:])

	diffused := diffuse(buf)
	return whiten(diffused), nil
}

// diffuse runs the nonlinear mixing pass over the gathered samples. The
// buffer is treated as 14 little-endian 64-bit lanes; each round chains an
// accumulator through every lane with rotations and a multiplicative
// avalanche, then feeds the accumulator back into the lane. Three rounds
// are enough for full cross-lane diffusion (every lane is downstream of
// every other lane twice over).
func diffuse(buf [sampleBytes]byte) [sampleBytes]byte {
	const lanes = sampleBytes / 8

	var state [lanes]uint64
	for i := range state {
		state[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}

	acc := uint64(laneSeed)
	for round := 0; round < 3; round++ {
		for i := range state {
			acc += state[i] ^ bits.RotateLeft64(state[i], 23)
			acc = avalanche(acc ^ uint64(round*lanes+i)*laneSeed)
			state[i] ^= bits.RotateLeft64(acc, 17)
		}
	}

	var out [sampleBytes]byte
	for i := range state {
		binary.LittleEndian.PutUint64(out[i*8:], state[i])
	}
	return out
}

// avalanche is the splitmix64 finalizer: a bijective mixing step where
// every output bit depends on every input bit.
func avalanche(x uint64) uint64 {
	x ^= x >> 30
	x *= avalancheMul1
	x ^= x >> 27
	x *= avalancheMul2
	x ^= x >> 31
	return x
}

// whiten hashes the diffused state with BLAKE2b-512 and folds the digest
// into a single word by XORing its eight 64-bit lanes. The fold preserves
// uniformity: each output bit position independently converges to a 50/50
// distribution regardless of structure in the inputs.
func whiten(buf [sampleBytes]byte) uint64 {
	sum := blake2b.Sum512(buf[:])
	var word uint64
	for i := 0; i < len(sum); i += 8 {
		word ^= binary.LittleEndian.Uint64(sum[i:])
	}
	return word
}
