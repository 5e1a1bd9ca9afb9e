package p2p

import (
	"testing"
	"time"

	"github.com/lk-network/lkchain/common"
)

func addr(b byte) common.Address { return common.BytesToAddress([]byte{b}) }

func TestTryAddTracksEveryPeer(t *testing.T) {
	table := NewTable(addr(0))
	for i := byte(1); i <= 5; i++ {
		if !table.TryAdd(&Peer{Address: addr(i), Endpoint: "x"}) {
			t.Fatalf("expected TryAdd(%d) to succeed on a fresh table", i)
		}
	}
	peers := table.AllPeers()
	if len(peers) != 5 {
		t.Fatalf("expected 5 tracked peers, got %d", len(peers))
	}
}

func TestTryAddIsIdempotentForSameAddress(t *testing.T) {
	table := NewTable(addr(0))
	p := &Peer{Address: addr(1), Endpoint: "first"}
	table.TryAdd(p)
	table.TryAdd(&Peer{Address: addr(1), Endpoint: "second"})
	if len(table.AllPeers()) != 1 {
		t.Fatalf("expected re-adding the same address to update in place, not duplicate")
	}
}

// bucketmateAddr returns an address whose first differing bit from the
// all-zero self address is always the top bit of the last byte (0x80), so
// every value of k produces a distinct address that still lands in the
// same bucket as the others.
func bucketmateAddr(k byte) common.Address {
	return common.BytesToAddress([]byte{0x80 | k})
}

func TestBucketFullRejectsUntilEviction(t *testing.T) {
	now := time.Unix(1700000000, 0)
	table := NewTable(addr(0))
	table.now = func() time.Time { return now }

	for i := byte(0); i < MaxBucketSize; i++ {
		a := bucketmateAddr(i)
		if !table.TryAdd(&Peer{Address: a}) {
			t.Fatalf("expected bucket to accept bucketmate %d within capacity", i)
		}
	}
	overflow := bucketmateAddr(MaxBucketSize)
	// One more peer into the same bucket should be rejected: the bucket is
	// full and its least-recently-seen member hasn't gone quiet yet.
	if table.TryAdd(&Peer{Address: overflow}) {
		t.Fatalf("expected a full, all-fresh bucket to reject a new peer")
	}

	// Advance the clock past 2x the ping frequency and retry: now eviction
	// should succeed.
	now = now.Add(2*PingFrequency + time.Second)
	if !table.TryAdd(&Peer{Address: overflow}) {
		t.Fatalf("expected a stale bucket to allow eviction")
	}
}

func TestRemove(t *testing.T) {
	table := NewTable(addr(0))
	table.TryAdd(&Peer{Address: addr(1)})
	table.Remove(addr(1))
	if len(table.AllPeers()) != 0 {
		t.Fatalf("expected Remove to drop the peer")
	}
}

func TestDropZombiesRemovesStalePeers(t *testing.T) {
	now := time.Unix(1700000000, 0)
	table := NewTable(addr(0))
	table.now = func() time.Time { return now }
	table.TryAdd(&Peer{Address: addr(1)})

	now = now.Add(2*PingFrequency + time.Second)
	dropped := table.DropZombies()
	if len(dropped) != 1 || dropped[0] != addr(1) {
		t.Fatalf("expected addr(1) to be reported dropped, got %v", dropped)
	}
	if len(table.AllPeers()) != 0 {
		t.Fatalf("expected the stale peer to actually be removed")
	}
}

func TestTouchKeepsPeerAlive(t *testing.T) {
	now := time.Unix(1700000000, 0)
	table := NewTable(addr(0))
	table.now = func() time.Time { return now }
	table.TryAdd(&Peer{Address: addr(1)})

	now = now.Add(2*PingFrequency - time.Second)
	table.Touch(addr(1))
	now = now.Add(2 * time.Second) // still under 2xPingFrequency since the touch

	dropped := table.DropZombies()
	if len(dropped) != 0 {
		t.Fatalf("expected a recently touched peer to survive the sweep, got dropped=%v", dropped)
	}
}

func TestBucketIndexIdenticalAddressIsSentinel(t *testing.T) {
	a := addr(7)
	if bucketIndex(a, a) != numBuckets-1 {
		t.Fatalf("expected an identical address to land in the sentinel bucket")
	}
}

func TestBucketIndexDiffersByHighBit(t *testing.T) {
	a := common.Address{}
	b := common.Address{}
	b[0] = 0x80 // differs from a at the very first (highest) bit
	if bucketIndex(a, b) != 0 {
		t.Fatalf("expected a high-bit difference to land in bucket 0, got %d", bucketIndex(a, b))
	}
}
