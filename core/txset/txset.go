// Package txset implements TransactionsSet (spec §4.4): an ordered
// container of transactions with idempotent add, equality/hash lookup,
// order-disturbing removal, and best-by-fee selection.
package txset

import (
	"sort"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/lkerrors"
	"github.com/lk-network/lkchain/core/types"
)

type TransactionsSet struct {
	txs []*types.Transaction
}

func New() *TransactionsSet {
	return &TransactionsSet{}
}

func (s *TransactionsSet) Size() int { return len(s.txs) }

func (s *TransactionsSet) All() []*types.Transaction {
	out := make([]*types.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}

func equalTx(a, b *types.Transaction) bool {
	return a.From == b.From && a.To == b.To && a.Amount.Cmp(b.Amount) == 0 &&
		a.Fee == b.Fee && a.Timestamp == b.Timestamp && string(a.Data) == string(b.Data) &&
		a.Sign == b.Sign
}

// Add is idempotent: adding a transaction equal to one already present has
// no effect.
func (s *TransactionsSet) Add(tx *types.Transaction) {
	for _, t := range s.txs {
		if equalTx(t, tx) {
			return
		}
	}
	s.txs = append(s.txs, tx)
}

// FindEqual reports whether a transaction equal to tx is present.
func (s *TransactionsSet) FindEqual(tx *types.Transaction) bool {
	for _, t := range s.txs {
		if equalTx(t, tx) {
			return true
		}
	}
	return false
}

// FindByHash scans by canonical hash, returning the matching transaction
// and true, or nil/false.
func (s *TransactionsSet) FindByHash(h common.Hash) (*types.Transaction, bool) {
	for _, t := range s.txs {
		if t.Hash() == h {
			return t, true
		}
	}
	return nil, false
}

// Remove deletes tx (matched by hash) from the set. Relative order of the
// remaining elements is preserved only when the removed element was last;
// otherwise the last element is swapped into the vacated slot — callers
// must not depend on order after an arbitrary removal.
func (s *TransactionsSet) Remove(h common.Hash) bool {
	for i, t := range s.txs {
		if t.Hash() == h {
			last := len(s.txs) - 1
			s.txs[i] = s.txs[last]
			s.txs = s.txs[:last]
			return true
		}
	}
	return false
}

// SelectBestByFee partitions by descending fee and truncates to n,
// preserving insertion order among ties. Fails with InvalidArgument if
// n > size.
func (s *TransactionsSet) SelectBestByFee(n int) error {
	if n > len(s.txs) {
		return lkerrors.Newf(lkerrors.InvalidArgument, "selectBestByFee: n=%d exceeds size=%d", n, len(s.txs))
	}
	sort.SliceStable(s.txs, func(i, j int) bool {
		return s.txs[i].Fee > s.txs[j].Fee
	})
	s.txs = s.txs[:n]
	return nil
}

// BalanceDelta returns, per sender, sum(amount+fee) over every transaction
// contained in the set — used to pre-check a block's aggregate cost per
// sender before accepting it (spec §4.8, scenario 4: double spend across
// the same block).
func (s *TransactionsSet) BalanceDelta() map[common.Address]common.Balance {
	out := make(map[common.Address]common.Balance)
	for _, t := range s.txs {
		cost := t.Amount.AddUint64(t.Fee)
		if prev, ok := out[t.From]; ok {
			out[t.From] = prev.Add(cost)
		} else {
			out[t.From] = cost
		}
	}
	return out
}
