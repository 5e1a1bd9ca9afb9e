package pow

import (
	"bytes"
	"sync"

	"github.com/holiman/uint256"

	"github.com/lk-network/lkchain/core/block"
	"github.com/lk-network/lkchain/crypto"
	"github.com/lk-network/lkchain/lkerrors"
)

const (
	// DifficultyRecalculationRate is R, the sliding-window size and
	// retarget period (BC_DIFFICULTY_RECALCULATION_RATE).
	DifficultyRecalculationRate = 50
	// TargetBlocksPerMinute is BC_TARGET_BLOCKS_PER_MINUTE.
	TargetBlocksPerMinute = 10
)

// header is the slice of block fields the sliding window needs to
// retarget: depth and timestamp.
type header struct {
	depth     uint64
	timestamp int64
}

// Consensus holds a sliding window of the last R accepted blocks and the
// current Complexity. A block satisfies the PoW predicate iff
// SHA256(serialize(block)) <= complexity.Comparer().
type Consensus struct {
	mu         sync.RWMutex
	window     []header
	complexity Complexity
	r          uint64
	targetBPM  uint64
}

func NewConsensus() *Consensus {
	return &Consensus{
		complexity: InitialComplexity(),
		r:          DifficultyRecalculationRate,
		targetBPM:  TargetBlocksPerMinute,
	}
}

func (c *Consensus) Complexity() Complexity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.complexity
}

// CheckBlock reports whether the block's hash satisfies the current PoW
// target: SHA256(serialize(b)) <= comparer, compared byte-wise as a
// big-endian 32-byte number.
func (c *Consensus) CheckBlock(b *block.ImmutableBlock) bool {
	c.mu.RLock()
	comparer := c.complexity.Comparer()
	c.mu.RUnlock()
	hash := crypto.SHA256(b.Serialize())
	return bytes.Compare(hash[:], comparer[:]) <= 0
}

// ApplyBlock pushes b into the sliding window. If the window has fewer
// than R blocks, there is no retarget. Otherwise the oldest entry is
// dropped to keep size == R; if b.Depth() mod R != 0 there is still no
// retarget; else the complexity is recalculated from the elapsed time
// across the window.
func (c *Consensus) ApplyBlock(b *block.ImmutableBlock) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.window = append(c.window, header{depth: b.Depth(), timestamp: b.Timestamp()})
	if uint64(len(c.window)) < c.r {
		return nil
	}
	if uint64(len(c.window)) > c.r {
		c.window = c.window[uint64(len(c.window))-c.r:]
	}
	if b.Depth()%c.r != 0 {
		return nil
	}

	elapsed := b.Timestamp() - c.window[0].timestamp
	if elapsed <= 0 {
		// A non-positive elapsed span means clock/ordering corruption
		// across the window; the retarget division is meaningless, so
		// this is a fatal consensus error rather than a silent no-op.
		return lkerrors.New(lkerrors.FatalConsensusError, "consensus: non-positive elapsed time in retarget window")
	}

	target := c.r * 60 / c.targetBPM
	var product uint256.Int
	_, overflow := product.MulOverflow(&c.complexity.densed, uint256.NewInt(target))
	if overflow {
		return lkerrors.New(lkerrors.FatalConsensusError, "consensus: difficulty retarget overflowed 256 bits")
	}
	newDensed := new(uint256.Int).Div(&product, uint256.NewInt(uint64(elapsed)))
	c.complexity = ComplexityFromDensed(newDensed)
	return nil
}
