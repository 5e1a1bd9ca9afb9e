// Package executor drives one transaction through a state.Commit,
// producing the TransactionStatus record spec §4.10 defines. Grounded on
// original_source/src/core/core.cpp's Core::tryPerformTransaction, which
// this package follows step for step: record the transaction against
// sender and recipient unconditionally, charge the fee up front, then
// branch on whether the transaction creates a contract, calls one, or is a
// plain transfer.
package executor

import (
	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/crypto"
	"github.com/lk-network/lkchain/state"
	"github.com/lk-network/lkchain/vm"
)

// VIEWFreeMaxGas bounds a read-only CallView invocation (spec §4.12):
// callers never pay for view calls, but execution must still terminate.
const VIEWFreeMaxGas = 5000

// BlockContext carries the block-level facts the EVM host exposes to
// bytecode (NUMBER, TIMESTAMP, COINBASE, BLOCKHASH) for the transaction
// currently being executed.
type BlockContext struct {
	Depth        uint64
	Timestamp    int64
	Coinbase     common.Address
	GetBlockHash func(depth uint64) common.Hash
}

// Execute runs tx against st: on success it applies the resulting Commit,
// on failure it applies a second, minimal Commit that only charges the fee
// and records the transaction hash against sender/recipient, discarding
// every other effect. This mirrors original_source's behavior of always
// consuming the fee and always indexing the transaction, whether or not it
// succeeded.
func Execute(st *state.State, tx *types.Transaction, bctx BlockContext) *types.TransactionStatus {
	c := state.NewCommit(st)
	senderAcc, err := c.GetAccount(tx.From)
	if err != nil {
		return chargeFailure(st, tx, types.Rejected, types.ActionNone, 0, "unknown sender")
	}
	c.RecordTransaction(tx.From, tx.Hash())
	if !tx.To.IsNull() {
		c.RecordTransaction(tx.To, tx.Hash())
	}

	cost := tx.Amount.AddUint64(tx.Fee)
	if senderAcc.Balance.Cmp(cost) < 0 {
		return chargeFailure(st, tx, types.NotEnoughBalance, types.ActionNone, 0, "insufficient balance for amount+fee")
	}
	newBal, ok := senderAcc.Balance.Sub(common.NewBalance(tx.Fee))
	if !ok {
		return chargeFailure(st, tx, types.NotEnoughBalance, types.ActionNone, 0, "insufficient balance for fee")
	}
	senderAcc.Balance = newBal
	feeLeft := tx.Fee

	host := &hostAdapter{commit: c, bctx: bctx, origin: tx.From}

	var status *types.TransactionStatus
	switch {
	case tx.To.IsNull() && len(tx.Data) > 0:
		status = executeCreate(c, host, tx, feeLeft, bctx.Coinbase)
	case !tx.To.IsNull() && accountIsContract(c, tx.To):
		status = executeCall(c, host, tx, feeLeft, bctx.Coinbase)
	default:
		status = executeTransfer(c, tx, feeLeft, bctx.Coinbase)
	}

	if status.Status == types.Success {
		c.Apply()
		return status
	}
	feeLeft = 0
	if status.Status == types.Revert {
		feeLeft = status.FeeLeft
	}
	return chargeFailure(st, tx, status.Status, status.ActionType, feeLeft, status.Message)
}

// chargeFailure re-does the fee charge and bookkeeping in a fresh Commit,
// discarding whatever partial effects the failed attempt produced.
func chargeFailure(st *state.State, tx *types.Transaction, code types.StatusCode, action types.ActionType, feeLeft uint64, msg string) *types.TransactionStatus {
	c := state.NewCommit(st)
	c.RecordTransaction(tx.From, tx.Hash())
	if !tx.To.IsNull() {
		c.RecordTransaction(tx.To, tx.Hash())
	}
	if acc, err := c.GetAccount(tx.From); err == nil {
		if paid, ok := acc.Balance.Sub(common.NewBalance(tx.Fee)); ok {
			acc.Balance = paid
		}
	}
	c.Apply()
	return &types.TransactionStatus{Status: code, ActionType: action, FeeLeft: feeLeft, Message: msg}
}

func accountIsContract(c *state.Commit, addr common.Address) bool {
	acc, err := c.GetAccount(addr)
	if err != nil {
		return false
	}
	return acc.Type == types.AccountContract
}

func executeTransfer(c *state.Commit, tx *types.Transaction, feeLeft uint64, coinbase common.Address) *types.TransactionStatus {
	if tx.Amount.IsZero() {
		payFee(c, coinbase, tx.Fee)
		return &types.TransactionStatus{Status: types.Success, ActionType: types.ActionNone, FeeLeft: feeLeft}
	}
	if !c.TryTransferMoney(tx.From, tx.To, tx.Amount) {
		return &types.TransactionStatus{Status: types.NotEnoughBalance, ActionType: types.ActionTransfer, FeeLeft: feeLeft, Message: "insufficient balance for transfer"}
	}
	payFee(c, coinbase, tx.Fee)
	return &types.TransactionStatus{Status: types.Success, ActionType: types.ActionTransfer, FeeLeft: feeLeft}
}

// payFee credits v to coinbase, auto-creating it as a CLIENT account if
// this is its first ever credit, matching original_source's
// tx_manager.getAccount(coinbase).addBalance(...) on every successful
// transaction.
func payFee(c *state.Commit, coinbase common.Address, v uint64) {
	if v == 0 {
		return
	}
	acc := c.CreateClientAccount(coinbase)
	acc.Balance = acc.Balance.Add(common.NewBalance(v))
}

func executeCreate(c *state.Commit, host *hostAdapter, tx *types.Transaction, feeLeft uint64, coinbase common.Address) *types.TransactionStatus {
	fromAcc, err := c.GetAccount(tx.From)
	if err != nil {
		return &types.TransactionStatus{Status: types.Failed, ActionType: types.ActionContractCreation, Message: "sender vanished"}
	}
	codeHash := crypto.SHA256(tx.Data)
	contractAddr, err := c.CreateContractAccount(tx.From, fromAcc.Nonce, codeHash)
	if err != nil {
		return &types.TransactionStatus{Status: types.Failed, ActionType: types.ActionContractCreation, FeeLeft: feeLeft, Message: err.Error()}
	}
	fromAcc.Nonce++

	if !tx.Amount.IsZero() {
		if !c.TryTransferMoney(tx.From, contractAddr, tx.Amount) {
			return &types.TransactionStatus{Status: types.NotEnoughBalance, ActionType: types.ActionContractCreation, FeeLeft: feeLeft, Message: "insufficient balance to fund new contract"}
		}
	}

	res := vm.Execute(host, &vm.Message{
		Kind:   vm.CallKindCreate,
		Gas:    feeLeft,
		Sender: tx.From,
		Value:  tx.Amount,
		Input:  tx.Data,
	}, contractAddr, tx.Data)

	switch res.Status {
	case vm.StatusSuccess:
		contractAcc, err := c.GetAccount(contractAddr)
		if err != nil {
			return &types.TransactionStatus{Status: types.Failed, ActionType: types.ActionContractCreation, Message: "contract vanished after construction"}
		}
		contractAcc.RuntimeCode = res.Output
		contractAcc.CodeHash = crypto.SHA256(res.Output)
		payFee(c, coinbase, tx.Fee-res.GasLeft)
		fromAcc.Balance = fromAcc.Balance.Add(common.NewBalance(res.GasLeft))
		return &types.TransactionStatus{Status: types.Success, ActionType: types.ActionContractCreation, FeeLeft: res.GasLeft}
	case vm.StatusRevert:
		return &types.TransactionStatus{Status: types.Revert, ActionType: types.ActionContractCreation, FeeLeft: res.GasLeft, Message: string(res.Output)}
	default:
		return &types.TransactionStatus{Status: types.Failed, ActionType: types.ActionContractCreation, Message: "contract constructor failed"}
	}
}

func executeCall(c *state.Commit, host *hostAdapter, tx *types.Transaction, feeLeft uint64, coinbase common.Address) *types.TransactionStatus {
	target, err := c.GetAccount(tx.To)
	if err != nil {
		return &types.TransactionStatus{Status: types.Rejected, ActionType: types.ActionContractCall, FeeLeft: feeLeft, Message: "no such contract"}
	}
	if !tx.Amount.IsZero() {
		if !c.TryTransferMoney(tx.From, tx.To, tx.Amount) {
			return &types.TransactionStatus{Status: types.NotEnoughBalance, ActionType: types.ActionContractCall, FeeLeft: feeLeft, Message: "insufficient balance for call value"}
		}
	}

	res := vm.Execute(host, &vm.Message{
		Kind:        vm.CallKindCall,
		Gas:         feeLeft,
		Destination: tx.To,
		Sender:      tx.From,
		Value:       tx.Amount,
		Input:       tx.Data,
	}, tx.To, target.RuntimeCode)

	switch res.Status {
	case vm.StatusSuccess:
		payFee(c, coinbase, tx.Fee-res.GasLeft)
		if fromAcc, err := c.GetAccount(tx.From); err == nil {
			fromAcc.Balance = fromAcc.Balance.Add(common.NewBalance(res.GasLeft))
		}
		return &types.TransactionStatus{Status: types.Success, ActionType: types.ActionContractCall, FeeLeft: res.GasLeft}
	case vm.StatusRevert:
		return &types.TransactionStatus{Status: types.Revert, ActionType: types.ActionContractCall, FeeLeft: res.GasLeft, Message: string(res.Output)}
	default:
		return &types.TransactionStatus{Status: types.Failed, ActionType: types.ActionContractCall, Message: "contract call failed"}
	}
}

// CallView runs a read-only call against the current state for
// node.Core.CallViewMethod: no fee is charged, effects are discarded, and
// gas is capped at VIEWFreeMaxGas.
func CallView(st *state.State, contract common.Address, input []byte, bctx BlockContext) ([]byte, error) {
	c := state.NewCommit(st)
	target, err := c.GetAccount(contract)
	if err != nil {
		return nil, err
	}
	host := &hostAdapter{commit: c, bctx: bctx, origin: contract}
	res := vm.Execute(host, &vm.Message{
		Kind:        vm.CallKindCall,
		Flags:       vm.FlagStatic,
		Gas:         VIEWFreeMaxGas,
		Destination: contract,
		Sender:      contract,
		Input:       input,
	}, contract, target.RuntimeCode)
	c.Discard()
	if res.Status != vm.StatusSuccess {
		msg := string(res.Output)
		if msg == "" {
			msg = "view call failed"
		}
		return nil, &viewError{msg}
	}
	return res.Output, nil
}

type viewError struct{ msg string }

func (e *viewError) Error() string { return e.msg }
