// Package pow implements the proof-of-work consensus of spec §4.6: a
// 256-bit "densed" difficulty target (Complexity), and a sliding window of
// the last R accepted blocks used to retarget it. Grounded line for line on
// original_source/src/core/consensus.cpp and .hpp.
package pow

import (
	"github.com/holiman/uint256"
)

// Complexity holds a 256-bit densed target; Comparer is its big-endian
// 32-byte representation used for byte-wise <= comparison with a block
// hash.
type Complexity struct {
	densed uint256.Int
}

// InitialComplexity returns densed = 2^256-1 (all-ones): the genesis block
// trivially passes (spec §4.6).
func InitialComplexity() Complexity {
	var c Complexity
	c.densed = *uint256.NewInt(0)
	c.densed.Not(&c.densed) // 0 negated is all-ones (max uint256)
	return c
}

func ComplexityFromDensed(v *uint256.Int) Complexity {
	return Complexity{densed: *v}
}

func (c Complexity) Densed() uint256.Int { return c.densed }

// Comparer renders densed as a big-endian 32-byte array for lexicographic
// comparison against a block hash.
func (c Complexity) Comparer() [32]byte {
	return c.densed.Bytes32()
}
