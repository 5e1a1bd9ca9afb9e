// Package state implements the account state manager of spec §3/§4.9: a
// reader-writer-locked map of Address to AccountState, and a copy-on-write
// Commit overlay used to execute one transaction reversibly. Grounded on
// original_source/src/core/managers.hpp's StateManager/AccountState pair.
package state

import (
	"sync"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/lkerrors"
)

// UpdateEvent is delivered to subscribers whenever an account is inserted,
// mutated, or deleted via Commit.Apply.
type UpdateEvent struct {
	Address common.Address
	Account *types.AccountState // nil if the account was deleted
}

// State is Map<Address, AccountState> guarded by a reader-writer lock;
// observers subscribe to per-address updates.
type State struct {
	mu          sync.RWMutex
	accounts    map[common.Address]*types.AccountState
	subscribers []func(UpdateEvent)
}

func New() *State {
	return &State{accounts: make(map[common.Address]*types.AccountState)}
}

func (s *State) Subscribe(fn func(UpdateEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *State) HasAccount(a common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[a]
	return ok
}

// GetAccount returns the account or InvalidArgument if it does not exist —
// "reading a missing account raises InvalidArgument in lookups that require
// existence" (spec §4.9). The returned pointer is a snapshot clone, safe to
// read without holding any lock.
func (s *State) GetAccount(a common.Address) (*types.AccountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[a]
	if !ok {
		return nil, lkerrors.Newf(lkerrors.InvalidArgument, "state: no such account %s", a.String())
	}
	return acc.Clone(), nil
}

// GetAccountOrDefault returns a zero-balance CLIENT default for a missing
// account instead of an error — the "public helpers return zero-balance
// defaults" half of spec §4.9.
func (s *State) GetAccountOrDefault(a common.Address) *types.AccountState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if acc, ok := s.accounts[a]; ok {
		return acc.Clone()
	}
	return types.NewClientAccount()
}

// CheckTransaction reports whether the sender exists and can afford
// amount+fee.
func (s *State) CheckTransaction(tx *types.Transaction) bool {
	s.mu.RLock()
	acc, ok := s.accounts[tx.From]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	cost := tx.Amount.AddUint64(tx.Fee)
	return acc.Balance.Cmp(cost) >= 0
}

// applyCommit installs an overlay's changed/deleted sets under an exclusive
// lock, then fires per-address update events outside the lock (spec §4.9:
// "fire per-address update events outside the lock").
func (s *State) applyCommit(c *Commit) {
	var events []UpdateEvent

	s.mu.Lock()
	for addr, acc := range c.changed {
		s.accounts[addr] = acc
		events = append(events, UpdateEvent{Address: addr, Account: acc})
	}
	for addr := range c.deleted {
		delete(s.accounts, addr)
		events = append(events, UpdateEvent{Address: addr, Account: nil})
	}
	subs := append([]func(UpdateEvent){}, s.subscribers...)
	s.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// UpdateFromGenesis seeds the state directly (bypassing Commit) from the
// genesis block's emission transaction, mirroring
// StateManager::updateFromGenesis.
func (s *State) UpdateFromGenesis(addr common.Address, balance common.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := types.NewClientAccount()
	acc.Balance = balance
	s.accounts[addr] = acc
}
