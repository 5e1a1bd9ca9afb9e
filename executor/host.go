package executor

import (
	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/crypto"
	"github.com/lk-network/lkchain/state"
	"github.com/lk-network/lkchain/vm"
)

// hostAdapter implements vm.Host over a single state.Commit, so that every
// effect a running contract produces — storage writes, transfers, nested
// calls, selfdestructs — lands in the same overlay the top-level
// Execute/CallView will apply or discard as one unit.
type hostAdapter struct {
	commit *state.Commit
	bctx   BlockContext
	origin common.Address
}

func (h *hostAdapter) AccountExists(addr common.Address) bool {
	return h.commit.HasAccount(addr)
}

func (h *hostAdapter) GetStorage(addr common.Address, key common.Hash) [32]byte {
	return h.commit.GetStorageValue(addr, key)
}

func (h *hostAdapter) SetStorage(addr common.Address, key common.Hash, value [32]byte) vm.StorageStatus {
	existed := h.commit.CheckStorageValue(addr, key)
	old := h.commit.GetStorageValue(addr, key)
	_ = h.commit.SetStorageValue(addr, key, value)
	switch {
	case !existed:
		return vm.StorageAdded
	case value == [32]byte{}:
		return vm.StorageDeleted
	case old != value:
		return vm.StorageModified
	default:
		return vm.StorageUnchanged
	}
}

func (h *hostAdapter) GetBalance(addr common.Address) common.Balance {
	return h.commit.GetAccountOrDefault(addr).Balance
}

func (h *hostAdapter) GetCodeSize(addr common.Address) int {
	acc, err := h.commit.GetAccount(addr)
	if err != nil {
		return 0
	}
	return len(acc.RuntimeCode)
}

func (h *hostAdapter) GetCodeHash(addr common.Address) common.Hash {
	acc, err := h.commit.GetAccount(addr)
	if err != nil {
		return common.NullHash()
	}
	return acc.CodeHash
}

func (h *hostAdapter) CopyCode(addr common.Address) []byte {
	acc, err := h.commit.GetAccount(addr)
	if err != nil {
		return nil
	}
	return append([]byte(nil), acc.RuntimeCode...)
}

func (h *hostAdapter) SelfDestruct(addr, beneficiary common.Address) {
	_ = h.commit.DeleteAccount(addr, beneficiary)
}

func (h *hostAdapter) GetTxContext() vm.TxContext {
	return vm.TxContext{
		Origin:     h.origin,
		BlockDepth: h.bctx.Depth,
		Timestamp:  h.bctx.Timestamp,
		Coinbase:   h.bctx.Coinbase,
		Difficulty: [32]byte{},
	}
}

func (h *hostAdapter) GetBlockHash(depth uint64) common.Hash {
	if h.bctx.GetBlockHash == nil {
		return common.NullHash()
	}
	return h.bctx.GetBlockHash(depth)
}

func (h *hostAdapter) EmitLog(addr common.Address, topics []common.Hash, data []byte) {
	// No event subscription surface for contract logs exists in spec §6
	// beyond block/account/tx-status — logs are accepted and dropped, the
	// same posture original_source takes before wiring a real log index.
}

// Call implements nested CALL and CREATE by re-entering the interpreter
// against the same Commit, so a failed nested call only discards the
// value transfer and storage writes from that sub-call's own attempt and
// leaves earlier siblings' mutations intact — a caller must re-check
// account state rather than assume atomicity across nested calls, the same
// limited guarantee original_source's evmc adapter provides.
func (h *hostAdapter) Call(msg *vm.Message) *vm.Result {
	switch msg.Kind {
	case vm.CallKindCreate:
		return h.callCreate(msg)
	default:
		return h.callExisting(msg)
	}
}

func (h *hostAdapter) callCreate(msg *vm.Message) *vm.Result {
	senderAcc, err := h.commit.GetAccount(msg.Sender)
	if err != nil {
		return vm.Failed("create: unknown sender")
	}
	codeHash := crypto.SHA256(msg.Input)
	addr, err := h.commit.CreateContractAccount(msg.Sender, senderAcc.Nonce, codeHash)
	if err != nil {
		return vm.Failed("create: address collision")
	}
	senderAcc.Nonce++
	if !msg.Value.IsZero() {
		if !h.commit.TryTransferMoney(msg.Sender, addr, msg.Value) {
			return vm.Failed("create: insufficient balance")
		}
	}
	sub := &hostAdapter{commit: h.commit, bctx: h.bctx, origin: h.origin}
	res := vm.Execute(sub, msg, addr, msg.Input)
	if res.Status != vm.StatusSuccess {
		return res
	}
	acc, err := h.commit.GetAccount(addr)
	if err != nil {
		return vm.Failed("create: contract vanished")
	}
	acc.RuntimeCode = res.Output
	acc.CodeHash = crypto.SHA256(res.Output)
	res.CreateAddress = addr
	return res
}

func (h *hostAdapter) callExisting(msg *vm.Message) *vm.Result {
	if !msg.Value.IsZero() {
		if !h.commit.TryTransferMoney(msg.Sender, msg.Destination, msg.Value) {
			return vm.Failed("call: insufficient balance")
		}
	}
	target := h.commit.GetAccountOrDefault(msg.Destination)
	if len(target.RuntimeCode) == 0 {
		return &vm.Result{Status: vm.StatusSuccess, GasLeft: msg.Gas}
	}
	sub := &hostAdapter{commit: h.commit, bctx: h.bctx, origin: h.origin}
	return vm.Execute(sub, msg, msg.Destination, target.RuntimeCode)
}
