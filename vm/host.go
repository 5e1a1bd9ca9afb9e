package vm

import "github.com/lk-network/lkchain/common"

// StorageStatus reports how SSTORE changed a storage slot, mirroring
// evmc_storage_status from the original node's evmc-based host; kept even
// though this interpreter's gas model does not yet price by status, because
// CALL/CREATE accounting added later needs the distinction.
type StorageStatus int

const (
	StorageUnchanged StorageStatus = iota
	StorageAdded
	StorageModified
	StorageDeleted
)

// CallKind distinguishes a message CALL from contract CREATE.
type CallKind int

const (
	CallKindCall CallKind = iota
	CallKindCreate
)

type Flags uint32

const (
	FlagNone   Flags = 0
	FlagStatic Flags = 1 << 0
)

// TxContext is the read-only transaction/block context exposed to bytecode
// via ORIGIN/TIMESTAMP/NUMBER/COINBASE/DIFFICULTY/BLOCKHASH, grounded on
// spec §4.10's get_tx_context/get_block_hash host calls.
type TxContext struct {
	Origin      common.Address
	BlockDepth  uint64
	Timestamp   int64
	Coinbase    common.Address
	Difficulty  [32]byte
}

// Message is one call frame's inputs: either a CALL into an existing
// account or a CREATE of a new one.
type Message struct {
	Kind        CallKind
	Flags       Flags
	Depth       int
	Gas         uint64
	Destination common.Address
	Sender      common.Address
	Value       common.Balance
	Input       []byte
}

type StatusCode int

const (
	StatusSuccess StatusCode = iota
	StatusRevert
	StatusFailure
)

// Result is what a call frame (or the top-level Execute) produces.
type Result struct {
	Status        StatusCode
	GasLeft       uint64
	Output        []byte
	CreateAddress common.Address
}

func Failed(msg string) *Result {
	return &Result{Status: StatusFailure, Output: []byte(msg)}
}

// Host is the callback surface a contract's bytecode reaches the rest of
// the node through — the Go-native equivalent of the evmc_host_interface
// the original node implements against evmone. Grounded on spec §4.10's
// host callback table; implemented by executor.hostAdapter over a
// state.Commit.
type Host interface {
	AccountExists(addr common.Address) bool
	GetStorage(addr common.Address, key common.Hash) [32]byte
	SetStorage(addr common.Address, key common.Hash, value [32]byte) StorageStatus
	GetBalance(addr common.Address) common.Balance
	GetCodeSize(addr common.Address) int
	GetCodeHash(addr common.Address) common.Hash
	CopyCode(addr common.Address) []byte
	SelfDestruct(addr, beneficiary common.Address)
	Call(msg *Message) *Result
	GetTxContext() TxContext
	GetBlockHash(depth uint64) common.Hash
	EmitLog(addr common.Address, topics []common.Hash, data []byte)
}
