// Package types defines the transaction and account records of the node:
// the signed transaction tuple, its canonical (text) signing hash, and the
// per-account state tuple the executor mutates. Grounded on
// original_source/src/core/transaction.hpp/.cpp and managers.hpp.
package types

import (
	"strconv"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/crypto"
	"github.com/lk-network/lkchain/lkerrors"
	"github.com/lk-network/lkchain/serialize"
)

// Transaction is the tuple of spec §3: (from, to, amount, fee, timestamp,
// data, sign). to == NullAddress means "contract creation".
type Transaction struct {
	From      common.Address
	To        common.Address
	Amount    common.Balance
	Fee       uint64
	Timestamp int64
	Data      []byte
	Sign      common.Signature
}

// Validate enforces the transaction's only data-model invariant: amount != 0
// || fee != 0 (a transaction that moves nothing and pays nothing is
// meaningless and rejected at construction, not at execution).
func (tx *Transaction) Validate() error {
	if tx.Amount.IsZero() && tx.Fee == 0 {
		return lkerrors.New(lkerrors.InvalidArgument, "transaction must have nonzero amount or fee")
	}
	return nil
}

// CanonicalHash is spec §4.3's signing/identity hash: SHA256 of the
// concatenated textual forms of the fields, not the binary serialization —
// this binds the signature to the human-readable transaction and avoids
// serializer drift.
func (tx *Transaction) CanonicalHash() common.Hash {
	return crypto.SHA256Concat(
		[]byte(tx.From.String()),
		[]byte(tx.To.String()),
		[]byte(tx.Amount.String()),
		[]byte(strconv.FormatUint(tx.Fee, 10)),
		[]byte(strconv.FormatInt(tx.Timestamp, 10)),
		tx.Data,
	)
}

// Hash is the transaction's identity (spec §3: "Identity is hashOf(tx)").
func (tx *Transaction) Hash() common.Hash { return tx.CanonicalHash() }

// SignWith recomputes the canonical hash and stores a 65-byte recoverable
// signature over it.
func (tx *Transaction) SignWith(priv *crypto.PrivateKey) error {
	sig, err := crypto.Sign(priv, tx.CanonicalHash())
	if err != nil {
		return err
	}
	tx.Sign = sig
	return nil
}

// CheckSign recovers the public key from Sign over the canonical hash,
// derives the address, and reports whether it equals From. Any failure
// during recovery is a validation failure (false), never a panic.
func (tx *Transaction) CheckSign() bool {
	addr, ok := crypto.RecoverAddress(tx.Sign, tx.CanonicalHash())
	if !ok {
		return false
	}
	return addr == tx.From
}

// Serialize encodes the transaction in the deterministic binary format of
// spec §4.1/§6.1, used for persistence within a block, not for signing.
func (tx *Transaction) Serialize() []byte {
	w := serialize.NewWriter()
	w.WriteFixed(tx.From[:])
	w.WriteFixed(tx.To[:])
	amount := tx.Amount.Bytes32()
	w.WriteFixed(amount[:])
	w.WriteUint64(tx.Fee)
	w.WriteUint64(uint64(tx.Timestamp))
	w.WriteBytes(tx.Data)
	w.WriteFixed(tx.Sign[:])
	return w.Bytes()
}

func DeserializeTransaction(r *serialize.Reader) (*Transaction, error) {
	from, err := r.ReadFixed(common.AddressLength)
	if err != nil {
		return nil, err
	}
	to, err := r.ReadFixed(common.AddressLength)
	if err != nil {
		return nil, err
	}
	amount, err := r.ReadFixed(32)
	if err != nil {
		return nil, err
	}
	fee, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	ts, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	data, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	sig, err := r.ReadFixed(common.SignatureLength)
	if err != nil {
		return nil, err
	}
	signature, err := common.BytesToSignature(sig)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		From:      common.BytesToAddress(from),
		To:        common.BytesToAddress(to),
		Amount:    common.BalanceFromBig(amount),
		Fee:       fee,
		Timestamp: int64(ts),
		Data:      append([]byte(nil), data...),
		Sign:      signature,
	}
	return tx, nil
}

// TransactionBuilder collects fields before producing a Transaction,
// mirroring original_source's TransactionBuilder: build() fails if a
// required field was never set.
type TransactionBuilder struct {
	from, to     *common.Address
	amount       *common.Balance
	fee          *uint64
	timestamp    *int64
	data         []byte
	sign         *common.Signature
}

func NewTransactionBuilder() *TransactionBuilder { return &TransactionBuilder{} }

func (b *TransactionBuilder) SetFrom(a common.Address) *TransactionBuilder { b.from = &a; return b }
func (b *TransactionBuilder) SetTo(a common.Address) *TransactionBuilder   { b.to = &a; return b }
func (b *TransactionBuilder) SetAmount(v common.Balance) *TransactionBuilder {
	b.amount = &v
	return b
}
func (b *TransactionBuilder) SetFee(v uint64) *TransactionBuilder { b.fee = &v; return b }
func (b *TransactionBuilder) SetTimestamp(v int64) *TransactionBuilder {
	b.timestamp = &v
	return b
}
func (b *TransactionBuilder) SetData(d []byte) *TransactionBuilder { b.data = d; return b }
func (b *TransactionBuilder) SetSign(s common.Signature) *TransactionBuilder {
	b.sign = &s
	return b
}

func (b *TransactionBuilder) Build() (*Transaction, error) {
	if b.from == nil || b.to == nil || b.amount == nil || b.fee == nil || b.timestamp == nil {
		return nil, lkerrors.New(lkerrors.InvalidArgument, "transaction builder: missing required field")
	}
	tx := &Transaction{
		From:      *b.from,
		To:        *b.to,
		Amount:    *b.amount,
		Fee:       *b.fee,
		Timestamp: *b.timestamp,
		Data:      b.data,
	}
	if b.sign != nil {
		tx.Sign = *b.sign
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return tx, nil
}
