package executor

import (
	"strconv"
	"testing"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/crypto"
	"github.com/lk-network/lkchain/state"
)

// deterministicContractAddress mirrors state.Commit.CreateContractAccount's
// address derivation, used here to locate the contract this test deploys.
func deterministicContractAddress(from common.Address, fromNonce uint64, codeHash common.Hash) common.Address {
	preimage := make([]byte, 0, common.HashLength+common.AddressLength+20)
	preimage = append(preimage, codeHash[:]...)
	preimage = append(preimage, from[:]...)
	preimage = append(preimage, []byte(strconv.FormatUint(fromNonce, 10))...)
	return common.BytesToAddress(crypto.RIPEMD160(preimage))
}

func addr(b byte) common.Address { return common.BytesToAddress([]byte{b}) }

func testBlockContext() BlockContext {
	return BlockContext{
		Depth:        1,
		Timestamp:    1700000000,
		Coinbase:     addr(0xff),
		GetBlockHash: func(uint64) common.Hash { return common.NullHash() },
	}
}

func testTx(t *testing.T, from, to common.Address, amount, fee uint64, data []byte) *types.Transaction {
	t.Helper()
	tx, err := types.NewTransactionBuilder().
		SetFrom(from).
		SetTo(to).
		SetAmount(common.NewBalance(amount)).
		SetFee(fee).
		SetTimestamp(1700000000).
		SetData(data).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tx
}

func TestExecutePlainTransferSuccess(t *testing.T) {
	st := state.New()
	st.UpdateFromGenesis(addr(1), common.NewBalance(1000))

	tx := testTx(t, addr(1), addr(2), 100, 5, nil)
	status := Execute(st, tx, testBlockContext())

	if status.Status != types.Success {
		t.Fatalf("expected Success, got %v (%s)", status.Status, status.Message)
	}

	from, _ := st.GetAccount(addr(1))
	to, _ := st.GetAccount(addr(2))
	if from.Balance.Uint64() != 895 {
		t.Fatalf("sender balance: have %s want 895", from.Balance.String())
	}
	if to.Balance.Uint64() != 100 {
		t.Fatalf("recipient balance: have %s want 100", to.Balance.String())
	}
	coinbase, _ := st.GetAccount(addr(0xff))
	if coinbase.Balance.Uint64() != 5 {
		t.Fatalf("coinbase balance: have %s want 5", coinbase.Balance.String())
	}
}

func TestExecuteTransferInsufficientBalanceStillChargesFee(t *testing.T) {
	st := state.New()
	st.UpdateFromGenesis(addr(1), common.NewBalance(10))

	tx := testTx(t, addr(1), addr(2), 1000, 5, nil)
	status := Execute(st, tx, testBlockContext())

	if status.Status != types.NotEnoughBalance {
		t.Fatalf("expected NotEnoughBalance, got %v", status.Status)
	}
	from, _ := st.GetAccount(addr(1))
	if from.Balance.Uint64() != 5 {
		t.Fatalf("fee should still be charged on failure: have %s want 5", from.Balance.String())
	}
}

func TestExecuteRejectsUnknownSender(t *testing.T) {
	st := state.New()
	tx := testTx(t, addr(1), addr(2), 10, 1, nil)
	status := Execute(st, tx, testBlockContext())
	if status.Status != types.Rejected {
		t.Fatalf("expected Rejected for an unknown sender, got %v", status.Status)
	}
}

func TestExecuteRecordsTransactionAgainstBothParties(t *testing.T) {
	st := state.New()
	st.UpdateFromGenesis(addr(1), common.NewBalance(1000))
	tx := testTx(t, addr(1), addr(2), 100, 1, nil)
	Execute(st, tx, testBlockContext())

	from, _ := st.GetAccount(addr(1))
	to, _ := st.GetAccount(addr(2))
	if len(from.Transactions) != 1 || from.Transactions[0] != tx.Hash() {
		t.Fatalf("expected the sender to record the transaction hash")
	}
	if len(to.Transactions) != 1 || to.Transactions[0] != tx.Hash() {
		t.Fatalf("expected the recipient to record the transaction hash")
	}
}

// returnEmptyBytecode is PUSH1 0 PUSH1 0 RETURN: a minimal contract whose
// constructor deploys empty runtime code and whose runtime trivially
// succeeds on any call.
var returnEmptyBytecode = []byte{0x60, 0x00, 0x60, 0x00, 0xf3}

func TestExecuteContractCreationAndCall(t *testing.T) {
	st := state.New()
	st.UpdateFromGenesis(addr(1), common.NewBalance(1000))

	createTx := testTx(t, addr(1), common.NullAddress(), 0, 100, returnEmptyBytecode)
	status := Execute(st, createTx, testBlockContext())
	if status.Status != types.Success {
		t.Fatalf("expected contract creation to succeed, got %v (%s)", status.Status, status.Message)
	}
	if status.ActionType != types.ActionContractCreation {
		t.Fatalf("expected ActionContractCreation, got %v", status.ActionType)
	}

	fromAcc, _ := st.GetAccount(addr(1))
	if fromAcc.Nonce != 1 {
		t.Fatalf("expected sender nonce to advance to 1, got %d", fromAcc.Nonce)
	}

	// Calling the freshly created contract must route through executeCall,
	// not the plain-transfer path, since it has AccountContract type. The
	// contract address is derived the same way CreateContractAccount did,
	// from the constructor input's hash and the sender's pre-creation nonce.
	codeHash := crypto.SHA256(returnEmptyBytecode)
	deployed := deterministicContractAddress(addr(1), 0, codeHash)

	acc, err := st.GetAccount(deployed)
	if err != nil {
		t.Fatalf("expected the deployed contract account to exist: %v", err)
	}
	if acc.Type != types.AccountContract {
		t.Fatalf("expected the deployed account to be a CONTRACT account")
	}

	callTx := testTx(t, addr(1), deployed, 0, 10, nil)
	callStatus := Execute(st, callTx, testBlockContext())
	if callStatus.Status != types.Success {
		t.Fatalf("expected the contract call to succeed, got %v (%s)", callStatus.Status, callStatus.Message)
	}
	if callStatus.ActionType != types.ActionContractCall {
		t.Fatalf("expected ActionContractCall, got %v", callStatus.ActionType)
	}

	// Neither transaction moved any value (amount is 0 on both), so every
	// unit of the two fees must land on either the sender (as a gas_left
	// refund) or the coinbase (as fee-gas_left) -- never vanish.
	fromAcc, _ = st.GetAccount(addr(1))
	coinbase, _ := st.GetAccount(addr(0xff))
	if got, want := fromAcc.Balance.Uint64()+coinbase.Balance.Uint64(), uint64(1000); got != want {
		t.Fatalf("fee accounting leaked value: sender+coinbase = %d, want %d", got, want)
	}
	if coinbase.Balance.Uint64() == 0 {
		t.Fatalf("expected the coinbase to have been paid a share of the fees")
	}
}
