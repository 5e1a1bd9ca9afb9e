// Package node implements Core, the orchestrator that owns the
// Blockchain, the account State, the pending-transaction set, and the
// Miner, wiring them together exactly as
// original_source/src/core/core.cpp's Core class does: seed genesis state,
// replay any persisted blocks, then accept new pending transactions and
// mined blocks from there on.
package node

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/config"
	"github.com/lk-network/lkchain/consensus/pow"
	"github.com/lk-network/lkchain/core/block"
	"github.com/lk-network/lkchain/core/chain"
	"github.com/lk-network/lkchain/core/txset"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/executor"
	"github.com/lk-network/lkchain/lkerrors"
	"github.com/lk-network/lkchain/log"
	"github.com/lk-network/lkchain/miner"
	"github.com/lk-network/lkchain/state"
	"github.com/lk-network/lkchain/store"
)

// EmissionValue is the fixed block reward original_source's
// Core::applyBlockTransactions credits to every block's coinbase, before
// any of that block's own transactions execute.
const EmissionValue = 1000

// sigCacheSize bounds the recent-signature cache checkPendingTransaction
// consults before paying for a secp256k1 verification again, sized like
// consensus/dpos's inmemorySignatures cache in the teacher.
const sigCacheSize = 4096

type Core struct {
	cfg         config.Config
	thisAddress common.Address

	store     *store.Store
	state     *state.State
	consensus *pow.Consensus
	chain     *chain.Blockchain
	miner     *miner.Miner

	pendingMu sync.RWMutex
	pending   *txset.TransactionsSet

	statusMu sync.RWMutex
	status   map[common.Hash]*types.TransactionStatus

	sigCache *lru.ARCCache

	blockAddedMu   sync.Mutex
	blockAddedCond *sync.Cond
	blockSubs      []func(*block.ImmutableBlock)
	pendingTxSubs  []func(*types.Transaction)
}

// New constructs Core over an already-open store, performing genesis seed
// and persisted-chain replay before returning, so callers always start
// from a fully-caught-up in-memory state.
func New(cfg config.Config, s *store.Store, thisAddress common.Address) (*Core, error) {
	genesisAddr, err := cfg.GenesisAddress()
	if err != nil {
		return nil, err
	}

	sigCache, err := lru.NewARC(sigCacheSize)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.LogicError, "node: allocate signature cache", err)
	}
	c := &Core{
		cfg:         cfg,
		thisAddress: thisAddress,
		store:       s,
		state:       state.New(),
		consensus:   pow.NewConsensus(),
		pending:     txset.New(),
		status:      make(map[common.Hash]*types.TransactionStatus),
		sigCache:    sigCache,
	}
	c.blockAddedCond = sync.NewCond(&c.blockAddedMu)
	c.chain = chain.New(s, c.consensus, c.state)
	c.chain.Subscribe(c.onBlockAdded)

	// Read the persisted chain before AddGenesisBlock rewrites the stored
	// tip pointer to the genesis hash.
	persisted, err := c.chain.LoadFromStore()
	if err != nil {
		return nil, err
	}

	genesis, err := buildGenesisBlock(genesisAddr, cfg.Genesis.Amount)
	if err != nil {
		return nil, err
	}
	if err := c.chain.AddGenesisBlock(genesis); err != nil {
		return nil, err
	}
	c.state.UpdateFromGenesis(genesisAddr, common.NewBalance(cfg.Genesis.Amount))

	for _, b := range persisted {
		if b.Depth() == 0 {
			continue // genesis is already seeded above, never re-added
		}
		if res := c.chain.TryAddBlock(b); res != chain.Added {
			return nil, lkerrors.Newf(lkerrors.FatalConsensusError, "node: persisted block at depth %d rejected on replay: %s", b.Depth(), res)
		}
		c.applyBlockTransactions(b)
	}

	c.miner = miner.New(miner.Config{Threads: cfg.Miner.Threads}, c.onNonceFound)
	log.Info("node: core ready", "top_depth", func() uint64 {
		if top, ok := c.chain.GetTopBlock(); ok {
			return top.Depth()
		}
		return 0
	}())
	return c, nil
}

func (c *Core) Chain() *chain.Blockchain { return c.chain }
func (c *Core) State() *state.State      { return c.state }

func (c *Core) SubscribeBlockAdded(fn func(*block.ImmutableBlock)) {
	c.blockAddedMu.Lock()
	defer c.blockAddedMu.Unlock()
	c.blockSubs = append(c.blockSubs, fn)
}

func (c *Core) SubscribePendingTransaction(fn func(*types.Transaction)) {
	c.blockAddedMu.Lock()
	defer c.blockAddedMu.Unlock()
	c.pendingTxSubs = append(c.pendingTxSubs, fn)
}

// AddPendingTransaction validates tx against chain state plus the current
// pending set and, if accepted, adds it and notifies subscribers.
func (c *Core) AddPendingTransaction(tx *types.Transaction) bool {
	if !c.checkPendingTransaction(tx) {
		return false
	}
	c.pendingMu.Lock()
	c.pending.Add(tx)
	c.pendingMu.Unlock()

	c.blockAddedMu.Lock()
	subs := append([]func(*types.Transaction){}, c.pendingTxSubs...)
	c.blockAddedMu.Unlock()
	for _, fn := range subs {
		fn(tx)
	}
	return true
}

// AddPendingTransactionAndWait blocks the caller until tx is mined into a
// block, mirroring original_source's condition-variable wait on
// _event_block_added (spec §5).
func (c *Core) AddPendingTransactionAndWait(tx *types.Transaction) error {
	if !c.checkPendingTransaction(tx) {
		return lkerrors.New(lkerrors.InvalidArgument, "node: invalid pending transaction")
	}
	target := tx.Hash()

	c.blockAddedMu.Lock()
	mined := false
	var found func(*block.ImmutableBlock)
	found = func(b *block.ImmutableBlock) {
		if _, ok := b.Txs().FindByHash(target); ok {
			c.blockAddedMu.Lock()
			mined = true
			c.blockAddedCond.Broadcast()
			c.blockAddedMu.Unlock()
		}
	}
	c.blockSubs = append(c.blockSubs, found)
	c.blockAddedMu.Unlock()

	c.AddPendingTransaction(tx)

	c.blockAddedMu.Lock()
	for !mined {
		c.blockAddedCond.Wait()
	}
	c.blockAddedMu.Unlock()
	return nil
}

func (c *Core) checkPendingTransaction(tx *types.Transaction) bool {
	if !c.checkSignCached(tx) {
		return false
	}
	if _, ok := c.chain.FindTransaction(tx.Hash()); ok {
		return false
	}
	c.pendingMu.RLock()
	if _, ok := c.pending.FindByHash(tx.Hash()); ok {
		c.pendingMu.RUnlock()
		return false
	}
	deltas := c.pending.BalanceDelta()
	c.pendingMu.RUnlock()

	pendingCost, hasPending := deltas[tx.From]
	acc := c.state.GetAccountOrDefault(tx.From)
	cost := tx.Amount.AddUint64(tx.Fee)
	if hasPending {
		cost = cost.Add(pendingCost)
	}
	return acc.Balance.Cmp(cost) >= 0
}

// checkSignCached verifies tx's signature, caching the verdict by
// transaction hash so a transaction relayed by several peers (or retried
// by the same client) only ever pays for secp256k1 verification once.
func (c *Core) checkSignCached(tx *types.Transaction) bool {
	h := tx.Hash()
	if v, ok := c.sigCache.Get(h); ok {
		return v.(bool)
	}
	ok := tx.CheckSign()
	c.sigCache.Add(h, ok)
	return ok
}

// TryAddBlock validates and inserts a block received from a peer or the
// local miner, executing its transactions and removing them from the
// pending set on success.
func (c *Core) TryAddBlock(b *block.ImmutableBlock) chain.AdditionResult {
	res := c.chain.TryAddBlock(b)
	if res != chain.Added {
		return res
	}
	c.pendingMu.Lock()
	for _, tx := range b.Txs().All() {
		c.pending.Remove(tx.Hash())
	}
	c.pendingMu.Unlock()

	c.applyBlockTransactions(b)
	return chain.Added
}

// applyBlockTransactions credits the block reward, then executes every
// transaction in block order, recording each TransactionStatus.
func (c *Core) applyBlockTransactions(b *block.ImmutableBlock) {
	reward := state.NewCommit(c.state)
	acc := reward.CreateClientAccount(b.Coinbase())
	acc.Balance = acc.Balance.Add(common.NewBalance(EmissionValue))
	reward.Apply()

	bctx := executor.BlockContext{
		Depth:        b.Depth(),
		Timestamp:    b.Timestamp(),
		Coinbase:     b.Coinbase(),
		GetBlockHash: c.blockHashAt,
	}
	for _, tx := range b.Txs().All() {
		status := executor.Execute(c.state, tx, bctx)
		c.statusMu.Lock()
		c.status[tx.Hash()] = status
		c.statusMu.Unlock()
	}
}

func (c *Core) blockHashAt(depth uint64) common.Hash {
	h, ok := c.chain.FindBlockHashByDepth(depth)
	if !ok {
		return common.NullHash()
	}
	return h
}

// GetTransactionStatus returns the recorded outcome of a transaction, or
// Pending if it's known only in the mempool, matching
// original_source::getTransactionOutput's default-to-Failed posture for
// truly-unknown hashes.
func (c *Core) GetTransactionStatus(h common.Hash) types.TransactionStatus {
	c.statusMu.RLock()
	if s, ok := c.status[h]; ok {
		c.statusMu.RUnlock()
		return *s
	}
	c.statusMu.RUnlock()

	c.pendingMu.RLock()
	_, pending := c.pending.FindByHash(h)
	c.pendingMu.RUnlock()
	if pending {
		return types.TransactionStatus{Status: types.Pending}
	}
	return types.TransactionStatus{Status: types.Failed, Message: "unknown transaction"}
}

// GetBlockTemplate assembles an unmined block over the current pending set
// for the miner to search a nonce against.
func (c *Core) GetBlockTemplate() (*block.MutableBlock, pow.Complexity, error) {
	top, ok := c.chain.GetTopBlock()
	if !ok {
		return nil, pow.Complexity{}, lkerrors.New(lkerrors.LogicError, "node: no top block")
	}
	c.pendingMu.RLock()
	txs := txset.New()
	for _, tx := range c.pending.All() {
		txs.Add(tx)
	}
	c.pendingMu.RUnlock()

	mut, err := block.NewBuilder().
		SetDepth(top.Depth()+1).
		SetPrevBlockHash(top.GetHash()).
		SetTimestamp(nowUnix()).
		SetCoinbase(c.thisAddress).
		SetTxs(txs).
		BuildMutable()
	if err != nil {
		return nil, pow.Complexity{}, err
	}
	return mut, c.consensus.Complexity(), nil
}

// StartMining installs the current block template as the miner's job.
func (c *Core) StartMining() error {
	tmpl, complexity, err := c.GetBlockTemplate()
	if err != nil {
		return err
	}
	c.miner.FindNonce(tmpl, complexity)
	return nil
}

func (c *Core) onNonceFound(b *block.ImmutableBlock) {
	if res := c.TryAddBlock(b); res != chain.Added {
		log.Warn("node: mined block rejected", "result", res.String())
		return
	}
	log.Info("node: mined block accepted", "depth", b.Depth(), "hash", b.GetHash().String())
	if err := c.StartMining(); err != nil {
		log.Error("node: failed to restart mining job", "err", err)
	}
}

// onBlockAdded is the chain's own subscriber callback; it relays to Core's
// block-added subscribers, which both AddPendingTransactionAndWait and any
// wsapi subscription install.
func (c *Core) onBlockAdded(b *block.ImmutableBlock) {
	c.blockAddedMu.Lock()
	subs := append([]func(*block.ImmutableBlock){}, c.blockSubs...)
	c.blockAddedMu.Unlock()
	for _, fn := range subs {
		fn(b)
	}
}

// CallViewMethod runs a read-only contract call against current state.
func (c *Core) CallViewMethod(contract common.Address, input []byte) ([]byte, error) {
	top, ok := c.chain.GetTopBlock()
	depth, ts, coinbase := uint64(0), int64(0), common.NullAddress()
	if ok {
		depth, ts, coinbase = top.Depth(), top.Timestamp(), top.Coinbase()
	}
	bctx := executor.BlockContext{Depth: depth, Timestamp: ts, Coinbase: coinbase, GetBlockHash: c.blockHashAt}
	return executor.CallView(c.state, contract, input, bctx)
}

func (c *Core) Stop() {
	c.miner.Stop()
}

func nowUnix() int64 { return time.Now().Unix() }
