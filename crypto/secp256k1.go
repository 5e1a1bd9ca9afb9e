package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/lkerrors"
)

// PrivateKey is a secp256k1 signing key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.CryptoError, "generate private key", err)
	}
	return &PrivateKey{key: key}, nil
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, lkerrors.Newf(lkerrors.CryptoError, "invalid private key length: %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

func (p *PrivateKey) Bytes() []byte {
	return p.key.Serialize()
}

// PublicKeyUncompressed returns the 65-byte uncompressed public key
// (0x04 || X || Y) that Address derivation hashes.
func (p *PrivateKey) PublicKeyUncompressed() []byte {
	return p.key.PubKey().SerializeUncompressed()
}

func (p *PrivateKey) Address() common.Address {
	return AddressFromPubkey(p.PublicKeyUncompressed())
}

// Sign produces a 65-byte recoverable signature over msgHash: sign(msg_hash)
// -> recoverable signature (spec §4.2).
func Sign(priv *PrivateKey, msgHash common.Hash) (common.Signature, error) {
	sig := ecdsa.SignCompact(priv.key, msgHash[:], false)
	return common.BytesToSignature(sig)
}

// Recover recovers the public key that produced sig over msgHash:
// recover(sig, msg_hash) -> pubkey (spec §4.2). Any malformed signature is a
// CryptoError, never a panic.
func Recover(sig common.Signature, msgHash common.Hash) ([]byte, error) {
	pub, _, err := ecdsa.RecoverCompact(sig[:], msgHash[:])
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.CryptoError, "recover public key", err)
	}
	return pub.SerializeUncompressed(), nil
}

// RecoverAddress recovers the signer's address from sig over msgHash. A
// failure to recover is reported as ok=false, never a panic or error
// propagated to the caller — this mirrors checkSign()'s "any failure during
// recovery is a validation failure" rule.
func RecoverAddress(sig common.Signature, msgHash common.Hash) (common.Address, bool) {
	pub, err := Recover(sig, msgHash)
	if err != nil {
		return common.Address{}, false
	}
	return AddressFromPubkey(pub), true
}
