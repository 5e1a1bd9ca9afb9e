package state

import (
	"strconv"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/crypto"
	"github.com/lk-network/lkchain/lkerrors"
)

// Commit is a copy-on-write overlay on State: reads fall through to the
// underlying State, writes populate changed/deleted. It is single-threaded
// during one EVM execution; concurrent commits against the same State must
// be serialized by the caller (spec §4.9).
type Commit struct {
	state   *State
	changed map[common.Address]*types.AccountState
	deleted map[common.Address]bool
}

func NewCommit(s *State) *Commit {
	return &Commit{
		state:   s,
		changed: make(map[common.Address]*types.AccountState),
		deleted: make(map[common.Address]bool),
	}
}

// get copies the target account into the overlay from the underlying State
// if it isn't already present there, returning the overlay's own copy.
// Every mutating call goes through this first (spec §4.9's commit
// lifecycle).
func (c *Commit) get(a common.Address) (*types.AccountState, bool) {
	if c.deleted[a] {
		return nil, false
	}
	if acc, ok := c.changed[a]; ok {
		return acc, true
	}
	if acc, ok := c.state.accounts[a]; ok {
		clone := acc.Clone()
		c.changed[a] = clone
		return clone, true
	}
	return nil, false
}

func (c *Commit) HasAccount(a common.Address) bool {
	_, ok := c.get(a)
	return ok
}

func (c *Commit) GetAccount(a common.Address) (*types.AccountState, error) {
	acc, ok := c.get(a)
	if !ok {
		return nil, lkerrors.Newf(lkerrors.InvalidArgument, "commit: no such account %s", a.String())
	}
	return acc, nil
}

func (c *Commit) GetAccountOrDefault(a common.Address) *types.AccountState {
	if acc, ok := c.get(a); ok {
		return acc
	}
	return types.NewClientAccount()
}

// CreateClientAccount inserts a zero-balance CLIENT account if none exists,
// returning the (possibly pre-existing) account.
func (c *Commit) CreateClientAccount(a common.Address) *types.AccountState {
	if acc, ok := c.get(a); ok {
		return acc
	}
	acc := types.NewClientAccount()
	c.changed[a] = acc
	delete(c.deleted, a)
	return acc
}

// CreateContractAccount derives the new contract address deterministically
// as RIPEMD160(code_hash || from.bytes || decimal(from.nonce).bytes) and
// inserts a CONTRACT account with codeHash set and empty runtime code.
// Fails with LogicError if that address already exists — deterministic in
// (code_hash, from.bytes, from.nonce), per spec §8.
func (c *Commit) CreateContractAccount(from common.Address, fromNonce uint64, codeHash common.Hash) (common.Address, error) {
	preimage := make([]byte, 0, common.HashLength+common.AddressLength+20)
	preimage = append(preimage, codeHash[:]...)
	preimage = append(preimage, from[:]...)
	preimage = append(preimage, []byte(strconv.FormatUint(fromNonce, 10))...)
	addr := common.BytesToAddress(crypto.RIPEMD160(preimage))

	if _, ok := c.get(addr); ok {
		return common.Address{}, lkerrors.Newf(lkerrors.LogicError, "commit: contract address %s already exists", addr.String())
	}
	acc := types.NewContractAccount(codeHash)
	c.changed[addr] = acc
	delete(c.deleted, addr)
	return addr, nil
}

// TryTransferMoney moves v from from to to within the overlay. If from is
// missing or its balance < v, it returns false leaving both accounts
// unchanged. If to is missing it is auto-created as CLIENT.
func (c *Commit) TryTransferMoney(from, to common.Address, v common.Balance) bool {
	fromAcc, ok := c.get(from)
	if !ok {
		return false
	}
	newFromBalance, ok := fromAcc.Balance.Sub(v)
	if !ok {
		return false
	}
	toAcc := c.CreateClientAccount(to)
	fromAcc.Balance = newFromBalance
	toAcc.Balance = toAcc.Balance.Add(v)
	return true
}

// DeleteAccount transfers the account's full balance to beneficiary, then
// marks the address deleted in the overlay.
func (c *Commit) DeleteAccount(addr, beneficiary common.Address) error {
	acc, ok := c.get(addr)
	if !ok {
		return lkerrors.Newf(lkerrors.InvalidArgument, "commit: no such account %s", addr.String())
	}
	if !acc.Balance.IsZero() {
		c.TryTransferMoney(addr, beneficiary, acc.Balance)
		acc, _ = c.get(addr)
	}
	delete(c.changed, addr)
	c.deleted[addr] = true
	return nil
}

// CheckStorageValue, GetStorageValue, SetStorageValue implement the
// contract storage API of spec §4.9: a map of 32-byte keys to 32-byte
// values, missing treated as 32 zero bytes by the EVM host.
func (c *Commit) CheckStorageValue(addr common.Address, key common.Hash) bool {
	acc, ok := c.get(addr)
	if !ok {
		return false
	}
	_, ok = acc.Storage[key]
	return ok
}

func (c *Commit) GetStorageValue(addr common.Address, key common.Hash) [32]byte {
	acc, ok := c.get(addr)
	if !ok {
		return [32]byte{}
	}
	return acc.Storage[key]
}

func (c *Commit) SetStorageValue(addr common.Address, key common.Hash, val [32]byte) error {
	acc, ok := c.get(addr)
	if !ok {
		return lkerrors.Newf(lkerrors.InvalidArgument, "commit: no such account %s", addr.String())
	}
	acc.Storage[key] = val
	return nil
}

func (c *Commit) RecordTransaction(addr common.Address, txHash common.Hash) {
	acc := c.CreateClientAccount(addr)
	acc.Transactions = append(acc.Transactions, txHash)
}

// Apply installs changed/deleted into the underlying State and fires
// per-address update events.
func (c *Commit) Apply() {
	c.state.applyCommit(c)
}

// Discard drops every mutation recorded in the overlay without touching the
// underlying State — used by executor.CallView, whose effects are never
// kept.
func (c *Commit) Discard() {
	c.changed = make(map[common.Address]*types.AccountState)
	c.deleted = make(map[common.Address]bool)
}
