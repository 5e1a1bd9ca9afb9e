package types

import (
	"testing"

	"github.com/lk-network/lkchain/common"
)

func TestNewClientAccountDefaults(t *testing.T) {
	acc := NewClientAccount()
	if acc.Type != AccountClient {
		t.Fatalf("expected AccountClient, got %v", acc.Type)
	}
	if !acc.Balance.IsZero() {
		t.Fatalf("expected zero balance for a new account")
	}
	if acc.Storage == nil {
		t.Fatalf("expected an initialized storage map")
	}
}

func TestNewContractAccountCarriesCodeHash(t *testing.T) {
	hash := common.BytesToHash([]byte("contract code"))
	acc := NewContractAccount(hash)
	if acc.Type != AccountContract {
		t.Fatalf("expected AccountContract, got %v", acc.Type)
	}
	if acc.CodeHash != hash {
		t.Fatalf("CodeHash not preserved")
	}
}

func TestAccountCloneDoesNotAliasStorage(t *testing.T) {
	acc := NewClientAccount()
	key := common.BytesToHash([]byte("slot"))
	acc.Storage[key] = [32]byte{1}
	acc.Transactions = append(acc.Transactions, common.BytesToHash([]byte("tx1")))

	clone := acc.Clone()
	clone.Storage[key] = [32]byte{2}
	clone.Transactions[0] = common.BytesToHash([]byte("tx2"))

	if acc.Storage[key] != [32]byte{1} {
		t.Fatalf("mutating the clone's storage leaked into the original")
	}
	if acc.Transactions[0] != common.BytesToHash([]byte("tx1")) {
		t.Fatalf("mutating the clone's transaction list leaked into the original")
	}
}

func TestAccountTypeString(t *testing.T) {
	if AccountClient.String() != "CLIENT" {
		t.Fatalf("have %q want CLIENT", AccountClient.String())
	}
	if AccountContract.String() != "CONTRACT" {
		t.Fatalf("have %q want CONTRACT", AccountContract.String())
	}
}
