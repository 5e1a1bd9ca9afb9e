// Package block implements the block records of spec §3/§4.5:
// ImmutableBlock (unmodifiable once built, fingerprinted by its hash),
// MutableBlock (writable, used while assembling a template or mining), and
// BlockBuilder, the only way to produce either from a field set.
package block

import (
	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/core/txset"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/crypto"
	"github.com/lk-network/lkchain/lkerrors"
	"github.com/lk-network/lkchain/serialize"
)

// fields holds the six block fields shared by MutableBlock and
// ImmutableBlock; the hash is computed over exactly these, in this order.
type fields struct {
	Depth         uint64
	Nonce         uint64
	PrevBlockHash common.Hash
	Timestamp     int64
	Coinbase      common.Address
	Txs           *txset.TransactionsSet
}

func (f *fields) serialize() []byte {
	w := serialize.NewWriter()
	w.WriteUint64(f.Depth)
	w.WriteUint64(f.Nonce)
	w.WriteFixed(f.PrevBlockHash[:])
	w.WriteUint64(uint64(f.Timestamp))
	w.WriteFixed(f.Coinbase[:])
	txs := f.Txs.All()
	w.WriteUint32(uint32(len(txs)))
	for _, tx := range txs {
		w.WriteBytes(tx.Serialize())
	}
	return w.Bytes()
}

// MutableBlock mirrors ImmutableBlock with fields still writable; used
// while assembling a template and while the miner substitutes nonces.
type MutableBlock struct {
	fields
}

func (b *MutableBlock) SetNonce(n uint64) { b.Nonce = n }

// Clone returns an independent copy of b. The original's CommonData kept
// its mining template as a std::optional<lk::Block> held by value, so every
// worker thread that read it got its own copy to stamp nonces onto; Clone
// gives a Go worker goroutine the same isolation. Txs is shared rather than
// deep-copied since mining never mutates it.
func (b *MutableBlock) Clone() *MutableBlock {
	return &MutableBlock{fields: b.fields}
}

// Serialize encodes the block in the deterministic binary format (spec
// §4.1/§6.1), identical to the bytes ImmutableBlock hashes.
func (b *MutableBlock) Serialize() []byte { return b.fields.serialize() }

// Hash computes SHA256(serialize(fields)) without caching — used by the
// miner to test candidate nonces before freezing a winning block.
func (b *MutableBlock) Hash() common.Hash { return crypto.SHA256(b.fields.serialize()) }

// ImmutableBlock is unmodifiable once constructed; GetHash returns the
// value cached at construction time, which recomputation must always match.
type ImmutableBlock struct {
	fields
	thisHash common.Hash
}

func (b *ImmutableBlock) Depth() uint64                  { return b.fields.Depth }
func (b *ImmutableBlock) Nonce() uint64                  { return b.fields.Nonce }
func (b *ImmutableBlock) PrevBlockHash() common.Hash     { return b.fields.PrevBlockHash }
func (b *ImmutableBlock) Timestamp() int64               { return b.fields.Timestamp }
func (b *ImmutableBlock) Coinbase() common.Address       { return b.fields.Coinbase }
func (b *ImmutableBlock) Txs() *txset.TransactionsSet    { return b.fields.Txs }
func (b *ImmutableBlock) GetHash() common.Hash           { return b.thisHash }
func (b *ImmutableBlock) Serialize() []byte              { return b.fields.serialize() }

// BlockBuilder collects fields before producing a block; Build* rejects
// construction if a required field was never set (spec §4.5).
type BlockBuilder struct {
	depth, nonce *uint64
	prevHash     *common.Hash
	timestamp    *int64
	coinbase     *common.Address
	txs          *txset.TransactionsSet
}

func NewBuilder() *BlockBuilder { return &BlockBuilder{} }

func (b *BlockBuilder) SetDepth(d uint64) *BlockBuilder           { b.depth = &d; return b }
func (b *BlockBuilder) SetNonce(n uint64) *BlockBuilder           { b.nonce = &n; return b }
func (b *BlockBuilder) SetPrevBlockHash(h common.Hash) *BlockBuilder {
	b.prevHash = &h
	return b
}
func (b *BlockBuilder) SetTimestamp(t int64) *BlockBuilder { b.timestamp = &t; return b }
func (b *BlockBuilder) SetCoinbase(a common.Address) *BlockBuilder {
	b.coinbase = &a
	return b
}
func (b *BlockBuilder) SetTxs(t *txset.TransactionsSet) *BlockBuilder { b.txs = t; return b }

func (b *BlockBuilder) requiredFields() (*fields, error) {
	if b.depth == nil || b.prevHash == nil || b.timestamp == nil || b.coinbase == nil || b.txs == nil {
		return nil, lkerrors.New(lkerrors.InvalidArgument, "block builder: missing required field")
	}
	var nonce uint64
	if b.nonce != nil {
		nonce = *b.nonce
	}
	return &fields{
		Depth:         *b.depth,
		Nonce:         nonce,
		PrevBlockHash: *b.prevHash,
		Timestamp:     *b.timestamp,
		Coinbase:      *b.coinbase,
		Txs:           b.txs,
	}, nil
}

// BuildMutable produces a MutableBlock with all fields still writable
// (used for templates and mining).
func (b *BlockBuilder) BuildMutable() (*MutableBlock, error) {
	f, err := b.requiredFields()
	if err != nil {
		return nil, err
	}
	return &MutableBlock{fields: *f}, nil
}

// BuildImmutable freezes fields and computes the final hash.
func (b *BlockBuilder) BuildImmutable() (*ImmutableBlock, error) {
	f, err := b.requiredFields()
	if err != nil {
		return nil, err
	}
	blk := &ImmutableBlock{fields: *f}
	blk.thisHash = crypto.SHA256(f.serialize())
	return blk, nil
}

// FreezeMutable converts a fully-noncedMutableBlock into an ImmutableBlock
// (the path the miner uses once it finds a satisfying nonce).
func FreezeMutable(m *MutableBlock) *ImmutableBlock {
	blk := &ImmutableBlock{fields: m.fields}
	blk.thisHash = crypto.SHA256(m.fields.serialize())
	return blk
}

// DeserializeImmutable parses a block previously written by Serialize,
// recomputing (never trusting a stored) hash — consistent with "GetHash
// recomputation must yield the same result for a given field tuple".
func DeserializeImmutable(data []byte) (*ImmutableBlock, error) {
	r := serialize.NewReader(data)
	depth, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	nonce, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	prevHash, err := r.ReadFixed(common.HashLength)
	if err != nil {
		return nil, err
	}
	ts, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	coinbase, err := r.ReadFixed(common.AddressLength)
	if err != nil {
		return nil, err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	txs := txset.New()
	for i := uint32(0); i < count; i++ {
		txBytes, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		tx, err := types.DeserializeTransaction(serialize.NewReader(txBytes))
		if err != nil {
			return nil, err
		}
		txs.Add(tx)
	}
	f := &fields{
		Depth:         depth,
		Nonce:         nonce,
		PrevBlockHash: common.BytesToHash(prevHash),
		Timestamp:     int64(ts),
		Coinbase:      common.BytesToAddress(coinbase),
		Txs:           txs,
	}
	blk := &ImmutableBlock{fields: *f}
	blk.thisHash = crypto.SHA256(f.serialize())
	return blk, nil
}
