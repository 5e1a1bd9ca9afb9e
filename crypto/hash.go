// Package crypto provides the hashing and signing primitives used across the
// node: SHA-256 for block/transaction identity, RIPEMD-160 for address
// derivation, Keccak-256 for contract-visible hashing, secp256k1 recoverable
// signatures, and AES envelope encryption for the keystore.
package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // retained: address derivation needs this exact hash
	"golang.org/x/crypto/sha3"

	"github.com/lk-network/lkchain/common"
)

// SHA256 hashes b and returns the 32-byte digest used for every block and
// transaction identity hash.
func SHA256(b []byte) common.Hash {
	h := sha256.Sum256(b)
	return h
}

// SHA256Concat hashes the concatenation of all parts in one pass, avoiding
// an intermediate allocation for callers building a canonical hash from
// several fields.
func SHA256Concat(parts ...[]byte) common.Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// RIPEMD160 returns the 20-byte RIPEMD-160 digest of b.
func RIPEMD160(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}

// Keccak256 is available to contracts (spec: "Keccak-256 is available to
// contracts") and is used by the EVM interpreter's SHA3 opcode.
func Keccak256(b ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, p := range b {
		h.Write(p)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// AddressFromPubkey derives an Address from an uncompressed 65-byte
// secp256k1 public key as RIPEMD160(SHA256(pubkey)).
func AddressFromPubkey(pubkey []byte) common.Address {
	shaHash := sha256.Sum256(pubkey)
	ripe := RIPEMD160(shaHash[:])
	return common.BytesToAddress(ripe)
}
