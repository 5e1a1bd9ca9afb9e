package pow

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/core/block"
	"github.com/lk-network/lkchain/core/txset"
)

func buildTestBlock(t *testing.T, depth, nonce uint64, timestamp int64) *block.ImmutableBlock {
	t.Helper()
	blk, err := block.NewBuilder().
		SetDepth(depth).
		SetNonce(nonce).
		SetPrevBlockHash(common.NullHash()).
		SetTimestamp(timestamp).
		SetCoinbase(common.BytesToAddress([]byte{1})).
		SetTxs(txset.New()).
		BuildImmutable()
	if err != nil {
		t.Fatalf("BuildImmutable: %v", err)
	}
	return blk
}

func TestInitialComplexityAcceptsAnyBlock(t *testing.T) {
	c := NewConsensus()
	blk := buildTestBlock(t, 0, 0, 1700000000)
	if !c.CheckBlock(blk) {
		t.Fatalf("genesis-level complexity should accept any block hash")
	}
}

func TestApplyBlockNoRetargetBelowWindow(t *testing.T) {
	c := NewConsensus()
	before := c.Complexity().Densed()
	for i := uint64(0); i < DifficultyRecalculationRate-1; i++ {
		blk := buildTestBlock(t, i, 0, 1700000000+int64(i))
		if err := c.ApplyBlock(blk); err != nil {
			t.Fatalf("ApplyBlock: %v", err)
		}
	}
	after := c.Complexity().Densed()
	if before.Cmp(&after) != 0 {
		t.Fatalf("complexity should not retarget before the window fills")
	}
}

func TestApplyBlockRetargetsAtWindowBoundary(t *testing.T) {
	c := NewConsensus()
	// Start below the all-ones initial target so that multiplying by
	// R*60/TargetBlocksPerMinute does not overflow 256 bits.
	c.complexity = ComplexityFromDensed(uint256.NewInt(1 << 40))
	before := c.Complexity().Densed()
	var last *block.ImmutableBlock
	for i := uint64(1); i <= DifficultyRecalculationRate; i++ {
		last = buildTestBlock(t, i, 0, 1700000000+int64(i)*10)
		if err := c.ApplyBlock(last); err != nil {
			t.Fatalf("ApplyBlock: %v", err)
		}
	}
	after := c.Complexity().Densed()
	if before.Cmp(&after) == 0 {
		t.Fatalf("expected a retarget once the window reaches R blocks at a depth divisible by R")
	}
}

func TestApplyBlockRejectsNonPositiveElapsed(t *testing.T) {
	c := NewConsensus()
	for i := uint64(1); i <= DifficultyRecalculationRate; i++ {
		blk := buildTestBlock(t, i, 0, 1700000000)
		err := c.ApplyBlock(blk)
		if i == DifficultyRecalculationRate {
			if err == nil {
				t.Fatalf("expected a fatal consensus error for a zero-elapsed retarget window")
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error mid-window: %v", err)
		}
	}
}
