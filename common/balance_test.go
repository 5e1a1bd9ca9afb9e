package common

import "testing"

func TestBalanceAddSub(t *testing.T) {
	a := NewBalance(100)
	b := NewBalance(40)

	sum := a.Add(b)
	if sum.Uint64() != 140 {
		t.Fatalf("Add: have %s want 140", sum.String())
	}

	diff, ok := a.Sub(b)
	if !ok || diff.Uint64() != 60 {
		t.Fatalf("Sub: have %s ok=%v want 60", diff.String(), ok)
	}
}

func TestBalanceSubUnderflow(t *testing.T) {
	a := NewBalance(10)
	b := NewBalance(20)
	result, ok := a.Sub(b)
	if ok {
		t.Fatalf("expected underflow to fail")
	}
	if result != a {
		t.Fatalf("failed Sub must leave the balance unchanged")
	}
}

func TestBalanceIsZero(t *testing.T) {
	if !NewBalance(0).IsZero() {
		t.Fatalf("zero balance should report IsZero")
	}
	if NewBalance(1).IsZero() {
		t.Fatalf("non-zero balance should not report IsZero")
	}
}

func TestBalanceFromBigRoundTrip(t *testing.T) {
	b := NewBalance(123456789)
	bytes32 := b.Bytes32()
	back := BalanceFromBig(bytes32[:])
	if back.Cmp(b) != 0 {
		t.Fatalf("round trip mismatch: have %s want %s", back.String(), b.String())
	}
}

func TestBalanceAddUint64(t *testing.T) {
	b := NewBalance(5).AddUint64(7)
	if b.Uint64() != 12 {
		t.Fatalf("AddUint64: have %d want 12", b.Uint64())
	}
}
