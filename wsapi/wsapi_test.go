package wsapi

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/config"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/crypto"
	"github.com/lk-network/lkchain/node"
	"github.com/lk-network/lkchain/store"
)

func newTestServer(t *testing.T, genesisAmount uint64) (*httptest.Server, *node.Core, common.Address, *crypto.PrivateKey) {
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

	thisAddr, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	core, err := node.New(cfg, s, thisAddr.Address())
	if err != nil {
		t.Fatalf("node.New: %v", err)
	}

	srv := httptest.NewServer(New(core).Handler())
	t.Cleanup(srv.Close)
	return srv, core, priv.Address(), priv
}

func dialTest(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func callAndRead(t *testing.T, conn *websocket.Conn, id uint64, typ, name string, args interface{}) response {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			t.Fatalf("Marshal args: %v", err)
		}
		raw = b
	}
	req := request{ID: id, Version: 1, Type: typ, Name: name, Args: raw}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return resp
}

func TestLastBlockInfoCall(t *testing.T) {
	srv, _, _, _ := newTestServer(t, 1000)
	conn := dialTest(t, srv)

	resp := callAndRead(t, conn, 1, "call", "last_block_info", nil)
	if resp.Status != "success" {
		t.Fatalf("expected success, got %+v", resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected a JSON object result, got %T", resp.Result)
	}
	if result["top_block_number"].(float64) != 0 {
		t.Fatalf("expected the genesis block at depth 0, got %+v", result)
	}
	if result["top_block_hash"] == nil {
		t.Fatalf("expected a non-nil genesis hash")
	}
}

func TestAccountInfoCall(t *testing.T) {
	srv, _, genesisAddr, _ := newTestServer(t, 1000)
	conn := dialTest(t, srv)

	resp := callAndRead(t, conn, 2, "call", "account_info", map[string]string{"address": genesisAddr.String()})
	if resp.Status != "success" {
		t.Fatalf("expected success, got %+v", resp)
	}
	result := resp.Result.(map[string]interface{})
	if result["balance"] != "1000" {
		t.Fatalf("expected balance 1000, got %+v", result["balance"])
	}
	if result["address"] != genesisAddr.String() {
		t.Fatalf("address mismatch: %+v", result["address"])
	}
}

func TestAccountInfoCallBadAddress(t *testing.T) {
	srv, _, _, _ := newTestServer(t, 1000)
	conn := dialTest(t, srv)

	resp := callAndRead(t, conn, 3, "call", "account_info", map[string]string{"address": "not-base58!!"})
	if resp.Status != "error" {
		t.Fatalf("expected an error response for a malformed address, got %+v", resp)
	}
}

func TestUnknownCallName(t *testing.T) {
	srv, _, _, _ := newTestServer(t, 1000)
	conn := dialTest(t, srv)

	resp := callAndRead(t, conn, 4, "call", "no_such_command", nil)
	if resp.Status != "error" {
		t.Fatalf("expected an error for an unknown command, got %+v", resp)
	}
}

func TestUnknownRequestType(t *testing.T) {
	srv, _, _, _ := newTestServer(t, 1000)
	conn := dialTest(t, srv)

	resp := callAndRead(t, conn, 5, "bogus", "whatever", nil)
	if resp.Status != "error" {
		t.Fatalf("expected an error for an unknown request type, got %+v", resp)
	}
}

func TestPushTransactionSubscribeReturnsPending(t *testing.T) {
	srv, _, _, priv := newTestServer(t, 1000)
	conn := dialTest(t, srv)

	tx, err := types.NewTransactionBuilder().
		SetFrom(priv.Address()).
		SetTo(common.BytesToAddress([]byte{9})).
		SetAmount(common.NewBalance(10)).
		SetFee(1).
		SetTimestamp(time.Now().Unix()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := tx.SignWith(priv); err != nil {
		t.Fatalf("SignWith: %v", err)
	}

	args := map[string]interface{}{
		"from":      tx.From.String(),
		"to":        tx.To.String(),
		"amount":    tx.Amount.String(),
		"fee":       tx.Fee,
		"timestamp": tx.Timestamp,
		"data":      common.Base64Encode(tx.Data),
		"sign":      common.Base64Encode(tx.Sign[:]),
	}
	resp := callAndRead(t, conn, 6, "subscribe", "push_transaction", args)
	if resp.Status != "success" {
		t.Fatalf("expected the transaction to be accepted, got %+v", resp)
	}
	result := resp.Result.(map[string]interface{})
	if result["status_code"] != types.Pending.String() {
		t.Fatalf("expected status Pending immediately after submission, got %+v", result)
	}
}

func TestPushTransactionRejectsBadSignature(t *testing.T) {
	srv, _, _, priv := newTestServer(t, 1000)
	conn := dialTest(t, srv)

	tx, err := types.NewTransactionBuilder().
		SetFrom(priv.Address()).
		SetTo(common.BytesToAddress([]byte{9})).
		SetAmount(common.NewBalance(10)).
		SetFee(1).
		SetTimestamp(time.Now().Unix()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := tx.SignWith(priv); err != nil {
		t.Fatalf("SignWith: %v", err)
	}
	tx.Sign[0] ^= 0xff

	args := map[string]interface{}{
		"from":      tx.From.String(),
		"to":        tx.To.String(),
		"amount":    tx.Amount.String(),
		"fee":       tx.Fee,
		"timestamp": tx.Timestamp,
		"data":      common.Base64Encode(tx.Data),
		"sign":      common.Base64Encode(tx.Sign[:]),
	}
	resp := callAndRead(t, conn, 7, "subscribe", "push_transaction", args)
	if resp.Status != "error" {
		t.Fatalf("expected a tampered signature to be rejected, got %+v", resp)
	}
}

func TestFindTransactionStatusUnknownHash(t *testing.T) {
	srv, _, _, _ := newTestServer(t, 1000)
	conn := dialTest(t, srv)

	resp := callAndRead(t, conn, 8, "call", "find_transaction_status", map[string]string{
		"hash": common.Base64Encode(common.NullHash().Bytes()),
	})
	if resp.Status != "success" {
		t.Fatalf("expected find_transaction_status to always answer, got %+v", resp)
	}
	result := resp.Result.(map[string]interface{})
	if result["status_code"] != types.Failed.String() {
		t.Fatalf("expected Failed for a never-seen hash, got %+v", result)
	}
}
