package node

import (
	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/core/block"
	"github.com/lk-network/lkchain/core/txset"
	"github.com/lk-network/lkchain/core/types"
)

// genesisTimestamp matches the fixed constant original_source's
// Core::getGenesisBlock hardcodes (2020-03-09 21:13:37 UTC), kept here
// purely so a fresh chain always starts from the same genesis hash given
// the same genesis recipient/amount.
const genesisTimestamp int64 = 1583789617

// buildGenesisBlock constructs the single-transaction genesis block: depth
// 0, null parent hash, null coinbase, one unsigned emission transaction
// from the null address to recipient for amount. Grounded on
// original_source's Core::getGenesisBlock.
func buildGenesisBlock(recipient common.Address, amount uint64) (*block.ImmutableBlock, error) {
	tx, err := types.NewTransactionBuilder().
		SetFrom(common.NullAddress()).
		SetTo(recipient).
		SetAmount(common.NewBalance(amount)).
		SetFee(0).
		SetTimestamp(genesisTimestamp).
		Build()
	if err != nil {
		return nil, err
	}

	txs := txset.New()
	txs.Add(tx)

	return block.NewBuilder().
		SetDepth(0).
		SetPrevBlockHash(common.NullHash()).
		SetTimestamp(genesisTimestamp).
		SetCoinbase(common.NullAddress()).
		SetTxs(txs).
		BuildImmutable()
}
