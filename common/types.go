// Package common defines the primitive value types shared by every other
// package: fixed-size addresses and hashes, the recoverable signature
// envelope, and the base58/base64 codecs used to render them.
package common

import (
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	AddressLength   = 20
	HashLength      = 32
	SignatureLength = 65
)

// Address is a 20-byte account identifier, RIPEMD160(SHA256(pubkey)).
type Address [AddressLength]byte

// NullAddress is the 20-zero-byte sentinel meaning "contract creation" as a
// transaction recipient, and the coinbase of the genesis block.
func NullAddress() Address { return Address{} }

func (a Address) IsNull() bool { return a == Address{} }

func (a Address) Bytes() []byte { return a[:] }

func BytesToAddress(b []byte) Address {
	var a Address
	copy(a[max(0, len(b)-AddressLength):], b)
	return a
}

func (a Address) String() string { return Base58Encode(a[:]) }

func AddressFromBase58(s string) (Address, error) {
	b, err := Base58Decode(s)
	if err != nil {
		return Address{}, err
	}
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length: %d", len(b))
	}
	return BytesToAddress(b), nil
}

// Hash is a 32-byte content identifier, normally SHA-256.
type Hash [HashLength]byte

func NullHash() Hash { return Hash{} }

func (h Hash) IsNull() bool { return h == Hash{} }

func (h Hash) Bytes() []byte { return h[:] }

func BytesToHash(b []byte) Hash {
	var h Hash
	copy(h[max(0, len(b)-HashLength):], b)
	return h
}

func (h Hash) String() string { return base64.StdEncoding.EncodeToString(h[:]) }

// Signature is a 65-byte secp256k1 recoverable signature: 64 bytes of (r,s)
// plus a one-byte recovery id.
type Signature [SignatureLength]byte

func (s Signature) Bytes() []byte { return s[:] }

func BytesToSignature(b []byte) (Signature, error) {
	var s Signature
	if len(b) != SignatureLength {
		return s, fmt.Errorf("invalid signature length: %d", len(b))
	}
	copy(s[:], b)
	return s, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
