package common

import (
	"github.com/holiman/uint256"
)

// Fee is a plain 64-bit fee/gas amount, kept distinct from Balance because
// transaction fees and EVM gas budgets never need the full 256-bit range.
type Fee = uint64

// Balance is a 256-bit unsigned integer, never negative by construction:
// every mutator on Balance either succeeds leaving the value non-negative
// or returns ok=false without changing it.
type Balance struct {
	v uint256.Int
}

func NewBalance(v uint64) Balance {
	var b Balance
	b.v.SetUint64(v)
	return b
}

func BalanceFromBig(bs []byte) Balance {
	var b Balance
	b.v.SetBytes(bs)
	return b
}

func (b Balance) Bytes32() [32]byte { return b.v.Bytes32() }

func (b Balance) String() string { return b.v.Dec() }

func (b Balance) IsZero() bool { return b.v.IsZero() }

func (b Balance) Cmp(o Balance) int { return b.v.Cmp(&o.v) }

func (b Balance) Uint64() uint64 { return b.v.Uint64() }

// Add returns b+o. Balances never exceed 2^256-1 in any reachable state
// (emission and fees are bounded well under that), so overflow is not
// checked here.
func (b Balance) Add(o Balance) Balance {
	var r Balance
	r.v.Add(&b.v, &o.v)
	return r
}

// Sub returns (b-o, true) if b >= o, else (b, false) leaving b unchanged.
func (b Balance) Sub(o Balance) (Balance, bool) {
	if b.Cmp(o) < 0 {
		return b, false
	}
	var r Balance
	r.v.Sub(&b.v, &o.v)
	return r, true
}

func (b Balance) AddUint64(o uint64) Balance {
	return b.Add(NewBalance(o))
}
