// Package chain implements the Blockchain of spec §4.8: the in-memory
// block/depth index, its persistent backing store, and the block validation
// pipeline. Grounded on original_source/src/core/blockchain.cpp.
package chain

import (
	"sync"
	"time"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/consensus/pow"
	"github.com/lk-network/lkchain/core/block"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/lkerrors"
	"github.com/lk-network/lkchain/log"
	"github.com/lk-network/lkchain/state"
	"github.com/lk-network/lkchain/store"
)

type AdditionResult int

const (
	Added AdditionResult = iota
	AlreadyInBlockchain
	InvalidParentHash
	InvalidDepth
	OldTimestamp
	FutureTimestamp
	InvalidTransactions
	ConsensusError
)

func (r AdditionResult) String() string {
	switch r {
	case Added:
		return "ADDED"
	case AlreadyInBlockchain:
		return "ALREADY_IN_BLOCKCHAIN"
	case InvalidParentHash:
		return "INVALID_PARENT_HASH"
	case InvalidDepth:
		return "INVALID_DEPTH"
	case OldTimestamp:
		return "OLD_TIMESTAMP"
	case FutureTimestamp:
		return "FUTURE_TIMESTAMP"
	case InvalidTransactions:
		return "INVALID_TRANSACTIONS"
	case ConsensusError:
		return "CONSENSUS_ERROR"
	default:
		return "UNKNOWN"
	}
}

// AllowedFutureSkew resolves spec §9's open question: a conservative 2-hour
// bound on how far a block's timestamp may sit in the future.
const AllowedFutureSkew = 2 * time.Hour

type Blockchain struct {
	mu            sync.RWMutex
	blocks        map[common.Hash]*block.ImmutableBlock
	blocksByDepth map[uint64]common.Hash
	topBlockHash  common.Hash

	store     *store.Store
	consensus *pow.Consensus
	state     *state.State

	subscribers []func(*block.ImmutableBlock)

	now func() int64
}

func New(s *store.Store, consensus *pow.Consensus, st *state.State) *Blockchain {
	return &Blockchain{
		blocks:        make(map[common.Hash]*block.ImmutableBlock),
		blocksByDepth: make(map[uint64]common.Hash),
		store:         s,
		consensus:     consensus,
		state:         st,
		now:           func() int64 { return time.Now().Unix() },
	}
}

func (bc *Blockchain) Subscribe(fn func(*block.ImmutableBlock)) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.subscribers = append(bc.subscribers, fn)
}

func (bc *Blockchain) Size() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

func (bc *Blockchain) GetTopBlockHash() common.Hash {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.topBlockHash
}

func (bc *Blockchain) GetTopBlock() (*block.ImmutableBlock, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	b, ok := bc.blocks[bc.topBlockHash]
	return b, ok
}

func (bc *Blockchain) FindBlock(h common.Hash) (*block.ImmutableBlock, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	b, ok := bc.blocks[h]
	return b, ok
}

func (bc *Blockchain) FindBlockHashByDepth(depth uint64) (common.Hash, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	h, ok := bc.blocksByDepth[depth]
	return h, ok
}

// FindTransaction linearly scans every block for a transaction with the
// given canonical hash, mirroring original_source's own linear-scan
// findTransaction.
func (bc *Blockchain) FindTransaction(h common.Hash) (tx *TxLookupResult, ok bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	for _, b := range bc.blocks {
		for _, t := range b.Txs().All() {
			if t.Hash() == h {
				return &TxLookupResult{Transaction: t, Block: b}, true
			}
		}
	}
	return nil, false
}

type TxLookupResult struct {
	Transaction *types.Transaction
	Block       *block.ImmutableBlock
}

// AddGenesisBlock is permitted only on an empty chain.
func (bc *Blockchain) AddGenesisBlock(g *block.ImmutableBlock) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if len(bc.blocks) != 0 {
		return lkerrors.New(lkerrors.LogicError, "blockchain: genesis into non-empty chain")
	}
	bc.insertLocked(g)
	return nil
}

// insertLocked must be called with bc.mu held for writing.
func (bc *Blockchain) insertLocked(b *block.ImmutableBlock) {
	h := b.GetHash()
	bc.blocks[h] = b
	bc.blocksByDepth[b.Depth()] = h
	bc.topBlockHash = h
	bc.persistLocked(b)
}

func (bc *Blockchain) persistLocked(b *block.ImmutableBlock) {
	h := b.GetHash()
	if err := bc.store.Put(store.MakeKey(store.TagBlock, h[:]), b.Serialize()); err != nil {
		log.Error("blockchain: persist block failed", "hash", h.String(), "err", err)
	}
	prev := b.PrevBlockHash()
	if err := bc.store.Put(store.MakeKey(store.TagPreviousBlockHash, h[:]), prev[:]); err != nil {
		log.Error("blockchain: persist prev-hash pointer failed", "hash", h.String(), "err", err)
	}
	if err := bc.store.Put(store.MakeKey(store.TagSystem, []byte(store.SystemLastBlockHashKey)), h[:]); err != nil {
		log.Error("blockchain: persist tip pointer failed", "err", err)
	}
}

// TryAddBlock runs the full validation pipeline of spec §4.8. Subscriber
// notification happens after the lock is released but still on the
// caller's goroutine, so events stay ordered with the mutation that
// produced them (spec §5: "events are delivered in the order their
// triggering mutations were committed").
func (bc *Blockchain) TryAddBlock(b *block.ImmutableBlock) AdditionResult {
	bc.mu.Lock()

	if _, ok := bc.blocks[b.GetHash()]; ok {
		bc.mu.Unlock()
		return AlreadyInBlockchain
	}
	if b.PrevBlockHash() != bc.topBlockHash {
		bc.mu.Unlock()
		return InvalidParentHash
	}
	if b.Depth() != uint64(len(bc.blocks)) {
		bc.mu.Unlock()
		return InvalidDepth
	}
	parent, ok := bc.blocks[bc.topBlockHash]
	if !ok {
		bc.mu.Unlock()
		return InvalidParentHash
	}
	if b.Timestamp() < parent.Timestamp() {
		bc.mu.Unlock()
		return OldTimestamp
	}
	if b.Timestamp() > bc.now()+int64(AllowedFutureSkew.Seconds()) {
		bc.mu.Unlock()
		return FutureTimestamp
	}
	if !bc.checkTransactionsLocked(b) {
		bc.mu.Unlock()
		return InvalidTransactions
	}
	if !bc.consensus.CheckBlock(b) {
		bc.mu.Unlock()
		return ConsensusError
	}

	bc.insertLocked(b)
	if err := bc.consensus.ApplyBlock(b); err != nil {
		log.Error("blockchain: consensus retarget failed", "err", err)
	}
	subs := append([]func(*block.ImmutableBlock){}, bc.subscribers...)
	bc.mu.Unlock()

	for _, fn := range subs {
		fn(b)
	}
	return Added
}

// checkTransactionsLocked pre-checks the block's aggregate per-sender cost
// against current balances (spec §4.9/scenario 4: double spend in the same
// block fails here, before execution ever runs).
func (bc *Blockchain) checkTransactionsLocked(b *block.ImmutableBlock) bool {
	deltas := b.Txs().BalanceDelta()
	for sender, cost := range deltas {
		acc := bc.state.GetAccountOrDefault(sender)
		if acc.Balance.Cmp(cost) < 0 {
			return false
		}
	}
	return true
}

// LoadFromStore walks the persisted chain backward from
// SYSTEM:"last_block_hash" via PREVIOUS_BLOCK_HASH entries to genesis,
// reverses the order, and returns the blocks oldest-first. It does not
// insert them — the caller (node.Core) replays each through TryAddBlock
// followed by transaction execution, in order, so that each block's balance
// pre-check sees the state left behind by the ones before it. Any
// inconsistency (missing link, integrity failure) is fatal, per spec §4.8.
func (bc *Blockchain) LoadFromStore() ([]*block.ImmutableBlock, error) {
	tipBytes, found, err := bc.store.Get(store.MakeKey(store.TagSystem, []byte(store.SystemLastBlockHashKey)))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	hash := common.BytesToHash(tipBytes)

	var reversed []*block.ImmutableBlock
	for {
		raw, ok, err := bc.store.Get(store.MakeKey(store.TagBlock, hash[:]))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, lkerrors.Newf(lkerrors.FatalConsensusError, "blockchain: missing block for hash %s during load", hash.String())
		}
		b, err := block.DeserializeImmutable(raw)
		if err != nil {
			return nil, lkerrors.Wrap(lkerrors.FatalConsensusError, "blockchain: corrupt block during load", err)
		}
		reversed = append(reversed, b)
		if b.Depth() == 0 {
			break
		}
		prevBytes, ok, err := bc.store.Get(store.MakeKey(store.TagPreviousBlockHash, hash[:]))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, lkerrors.Newf(lkerrors.FatalConsensusError, "blockchain: missing prev-hash pointer for %s during load", hash.String())
		}
		hash = common.BytesToHash(prevBytes)
	}

	out := make([]*block.ImmutableBlock, len(reversed))
	for i, b := range reversed {
		out[len(reversed)-1-i] = b
	}
	return out, nil
}
