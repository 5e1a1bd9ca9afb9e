package types

import (
	"github.com/lk-network/lkchain/common"
)

type AccountType int

const (
	AccountClient AccountType = iota
	AccountContract
)

func (t AccountType) String() string {
	if t == AccountContract {
		return "CONTRACT"
	}
	return "CLIENT"
}

// AccountState is the per-account record of spec §3: type, nonce, balance,
// code hash, transaction history, contract storage and runtime code.
// Invariants enforced by the state manager, not this type: contracts carry
// a non-null CodeHash once initialized; Balance never goes negative;
// storage keys/values are fixed 32 bytes.
type AccountState struct {
	Type         AccountType
	Nonce        uint64
	Balance      common.Balance
	CodeHash     common.Hash
	Transactions []common.Hash
	Storage      map[common.Hash][32]byte
	RuntimeCode  []byte
}

func NewClientAccount() *AccountState {
	return &AccountState{
		Type:    AccountClient,
		Storage: make(map[common.Hash][32]byte),
	}
}

func NewContractAccount(codeHash common.Hash) *AccountState {
	return &AccountState{
		Type:     AccountContract,
		CodeHash: codeHash,
		Storage:  make(map[common.Hash][32]byte),
	}
}

// Clone deep-copies the account so a Commit overlay never aliases the
// underlying State's storage map or transaction slice.
func (a *AccountState) Clone() *AccountState {
	c := *a
	c.Transactions = append([]common.Hash(nil), a.Transactions...)
	c.Storage = make(map[common.Hash][32]byte, len(a.Storage))
	for k, v := range a.Storage {
		c.Storage[k] = v
	}
	c.RuntimeCode = append([]byte(nil), a.RuntimeCode...)
	return &c
}

// AccountInfo is the read-only projection returned by API queries (spec
// §6.3 account_info).
type AccountInfo struct {
	Type                AccountType
	Address             common.Address
	Balance             common.Balance
	Nonce               uint64
	TransactionHashes    []common.Hash
}
