package common

import (
	"github.com/mr-tron/base58"

	"github.com/lk-network/lkchain/lkerrors"
)

// Base58Encode renders bytes as base58 (Bitcoin alphabet), preserving
// leading zero bytes as leading '1' characters.
func Base58Encode(b []byte) string {
	return base58.Encode(b)
}

// Base58Decode parses base58 text back to bytes. Any character outside the
// alphabet is an InvalidArgument.
func Base58Decode(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, lkerrors.Wrap(lkerrors.InvalidArgument, "base58 decode", err)
	}
	return b, nil
}
