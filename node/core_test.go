package node

import (
	"testing"
	"time"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/config"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/crypto"
	"github.com/lk-network/lkchain/store"
)

func newTestCore(t *testing.T, genesisAmount uint64) (*Core, common.Address, *crypto.PrivateKey) {
	t.Helper()
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	s, err := store.Open(t.TempDir(), store.OpenDefault)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := config.Default()
	cfg.Genesis.Address = priv.Address().String()
	cfg.Genesis.Amount = genesisAmount
	cfg.Miner.Threads = 1

	thisAddr, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	c, err := New(cfg, s, thisAddr.Address())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, priv.Address(), priv
}

func signedTransfer(t *testing.T, priv *crypto.PrivateKey, to common.Address, amount, fee uint64) *types.Transaction {
	t.Helper()
	tx, err := types.NewTransactionBuilder().
		SetFrom(priv.Address()).
		SetTo(to).
		SetAmount(common.NewBalance(amount)).
		SetFee(fee).
		SetTimestamp(time.Now().Unix()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := tx.SignWith(priv); err != nil {
		t.Fatalf("SignWith: %v", err)
	}
	return tx
}

func TestNewSeedsGenesisBalance(t *testing.T) {
	c, genesisAddr, _ := newTestCore(t, 1000)
	acc, err := c.State().GetAccount(genesisAddr)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc.Balance.Uint64() != 1000 {
		t.Fatalf("have %s want 1000", acc.Balance.String())
	}
	if c.Chain().Size() != 1 {
		t.Fatalf("expected only the genesis block right after New")
	}
}

// TestAddPendingTransactionRejectsBadSignature covers spec §8's
// bad-signature scenario at the layer that actually gates it: Core's
// checkPendingTransaction calls tx.CheckSign before ever admitting a
// transaction to the pending set.
func TestAddPendingTransactionRejectsBadSignature(t *testing.T) {
	c, genesisAddr, priv := newTestCore(t, 1000)
	_ = genesisAddr
	tx := signedTransfer(t, priv, common.BytesToAddress([]byte{2}), 10, 1)
	tx.Sign[0] ^= 0xff

	if c.AddPendingTransaction(tx) {
		t.Fatalf("expected a tampered signature to be rejected")
	}
}

func TestAddPendingTransactionRejectsInsufficientBalance(t *testing.T) {
	c, _, _ := newTestCore(t, 1000)
	poor, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	tx := signedTransfer(t, poor, common.BytesToAddress([]byte{2}), 10, 1)
	if c.AddPendingTransaction(tx) {
		t.Fatalf("expected a transfer from a zero-balance account to be rejected")
	}
}

func TestAddPendingTransactionRejectsDuplicate(t *testing.T) {
	c, _, priv := newTestCore(t, 1000)
	tx := signedTransfer(t, priv, common.BytesToAddress([]byte{2}), 10, 1)
	if !c.AddPendingTransaction(tx) {
		t.Fatalf("expected the first submission to be accepted")
	}
	if c.AddPendingTransaction(tx) {
		t.Fatalf("expected a duplicate submission to be rejected")
	}
}

// TestMiningConvergesAndAppliesTransaction drives the full pipeline end to
// end: submit a pending transfer, start mining at the chain's initial
// complexity (which accepts any nonce immediately), and confirm the block
// lands with the transfer executed and reflected in account balances.
func TestMiningConvergesAndAppliesTransaction(t *testing.T) {
	c, _, priv := newTestCore(t, 1000)
	to := common.BytesToAddress([]byte{9})
	tx := signedTransfer(t, priv, to, 100, 1)

	if !c.AddPendingTransaction(tx) {
		t.Fatalf("expected the transfer to be admitted to the pending set")
	}
	if err := c.StartMining(); err != nil {
		t.Fatalf("StartMining: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.Chain().Size() > 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.miner.Stop()

	if c.Chain().Size() <= 1 {
		t.Fatalf("expected mining to add at least one block")
	}
	status := c.GetTransactionStatus(tx.Hash())
	if status.Status != types.Success {
		t.Fatalf("expected the mined transfer to succeed, got %v (%s)", status.Status, status.Message)
	}
	toAcc, err := c.State().GetAccount(to)
	if err != nil {
		t.Fatalf("GetAccount(to): %v", err)
	}
	if toAcc.Balance.Uint64() != 100 {
		t.Fatalf("recipient balance: have %s want 100", toAcc.Balance.String())
	}
}
