// Package bloom implements the probabilistic membership filter attached to
// every SSTable. Sizing follows the standard formulas; membership hashing
// uses double hashing over two independently seeded 64-bit digests so that
// k probe positions are derived from exactly two hash evaluations per key.
package bloom

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

const (
	seed1 uint64 = 0
	seed2 uint64 = 1
)

// Filter is a fixed-size bitset plus a hash-function count, populated at
// SSTable write time from the keys in that file.
type Filter struct {
	bits []byte // packed bitset, 8 bits per byte
	m    uint64 // number of bits
	k    uint32 // number of hash functions
}

// New sizes a filter for expectedItems entries at the given false-positive
// rate:
//
//	m = ceil(-n*ln(p) / (ln 2)^2)
//	k = round((m/n) * ln 2), clamped to >= 1
func New(expectedItems int, fpRate float64) *Filter {
	n := float64(expectedItems)
	if n < 1 {
		n = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}

	m := math.Ceil(-n * math.Log(fpRate) / (math.Ln2 * math.Ln2))
	if m < 1 {
		m = 1
	}
	k := math.Round((m / n) * math.Ln2)
	if k < 1 {
		k = 1
	}

	mBits := uint64(m)
	return &Filter{
		bits: make([]byte, (mBits+7)/8),
		m:    mBits,
		k:    uint32(k),
	}
}

func hashes(key []byte) (h1, h2 uint64) {
	d1 := xxhash.NewWithSeed(seed1)
	d1.Write(key)
	h1 = d1.Sum64()

	d2 := xxhash.NewWithSeed(seed2)
	d2.Write(key)
	h2 = d2.Sum64()
	return h1, h2
}

func (f *Filter) position(h1, h2 uint64, i uint32) uint64 {
	return (h1 + uint64(i)*h2) % f.m
}

func (f *Filter) setBit(pos uint64) {
	f.bits[pos/8] |= 1 << (pos % 8)
}

func (f *Filter) getBit(pos uint64) bool {
	return f.bits[pos/8]&(1<<(pos%8)) != 0
}

// Insert adds key to the filter, setting k bits derived from double hashing
// of the key's two seeded digests.
func (f *Filter) Insert(key []byte) {
	h1, h2 := hashes(key)
	for i := uint32(0); i < f.k; i++ {
		f.setBit(f.position(h1, h2, i))
	}
}

// Contains reports whether key may be present. false is definitive; true may
// be a false positive.
func (f *Filter) Contains(key []byte) bool {
	h1, h2 := hashes(key)
	for i := uint32(0); i < f.k; i++ {
		if !f.getBit(f.position(h1, h2, i)) {
			return false
		}
	}
	return true
}

// Serialize encodes the filter as [k:u32][m_bits:u64][bitset bytes].
func (f *Filter) Serialize() []byte {
	out := make([]byte, 4+8+len(f.bits))
	binary.LittleEndian.PutUint32(out[0:4], f.k)
	binary.LittleEndian.PutUint64(out[4:12], f.m)
	copy(out[12:], f.bits)
	return out
}

// Deserialize decodes a filter previously produced by Serialize.
func Deserialize(data []byte) (*Filter, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("bloom: truncated header: %d bytes", len(data))
	}
	k := binary.LittleEndian.Uint32(data[0:4])
	m := binary.LittleEndian.Uint64(data[4:12])
	want := int((m + 7) / 8)
	rest := data[12:]
	if len(rest) < want {
		return nil, fmt.Errorf("bloom: truncated bitset: want %d bytes, got %d", want, len(rest))
	}
	bits := make([]byte, want)
	copy(bits, rest[:want])
	return &Filter{bits: bits, m: m, k: k}, nil
}

// Size returns the serialized byte length of the filter.
func (f *Filter) Size() int {
	return 4 + 8 + len(f.bits)
}
