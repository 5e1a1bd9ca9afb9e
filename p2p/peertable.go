// Package p2p implements the Kademlia-style peer bucket table of spec §6.4
// and the typed wire message set it exchanges, grounded on
// original_source/src/core/host.cpp's PeerTable/Host pair. No TCP accept
// loop is included — full networking sits outside this scope (spec §1) —
// but the bucket table and message codecs are real and exercised by tests.
package p2p

import (
	"sync"
	"time"

	"github.com/lk-network/lkchain/common"
)

// MaxBucketSize mirrors PeerTable::MAX_BUCKET_SIZE.
const MaxBucketSize = 10

// PingFrequency mirrors base::config::NET_PING_FREQUENCY: the heartbeat
// interval a connected peer is expected to respond within. A bucket's
// least-recently-seen peer is only evicted once it has been quiet for more
// than 2×PingFrequency.
const PingFrequency = 15 * time.Second

// numBuckets is one bucket per bit of an Address, plus one for an exact
// address match (distance 0), mirroring calcBucketIndex's
// ADDRESS_BYTES_LENGTH*8 sentinel bucket.
const numBuckets = common.AddressLength*8 + 1

// Peer is the minimal identity/liveness record the bucket table reasons
// about; a real networked Peer (original_source's Peer class) layers a
// live connection and protocol state on top of this.
type Peer struct {
	Address  common.Address
	Endpoint string
	lastSeen time.Time
}

func (p *Peer) touch(now time.Time) { p.lastSeen = now }

// Table is the Kademlia-style bucket table: peers are bucketed by the index
// of the first bit at which their address differs from the table owner's,
// each bucket capped at MaxBucketSize, full buckets evicting their
// least-recently-seen member only once it has gone quiet for
// 2×PingFrequency.
type Table struct {
	mu      sync.RWMutex
	self    common.Address
	buckets [numBuckets][]*Peer
	now     func() time.Time
}

func NewTable(self common.Address) *Table {
	return &Table{self: self, now: time.Now}
}

// bucketIndex returns the index of the first differing bit between a and b,
// or numBuckets-1 (the sentinel "identical address" bucket) if they match
// exactly — a direct translation of PeerTable::calcBucketIndex.
func bucketIndex(a, b common.Address) int {
	byteIndex := 0
	for byteIndex < common.AddressLength && a[byteIndex] == b[byteIndex] {
		byteIndex++
	}
	if byteIndex == common.AddressLength {
		return common.AddressLength * 8
	}
	diff := a[byteIndex] ^ b[byteIndex]
	bitInByte := 0
	for mask := byte(0x80); mask != 0 && diff&mask == 0; mask >>= 1 {
		bitInByte++
	}
	return byteIndex*8 + bitInByte
}

// TryAdd attempts to add peer to its bucket. If the bucket is full, it
// evicts the least-recently-seen member only when that member has been
// quiet longer than 2×PingFrequency; otherwise the bucket is left
// unchanged and TryAdd reports false, mirroring
// PeerTable::tryAddPeer.
func (t *Table) TryAdd(p *Peer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p.touch(t.now())
	idx := bucketIndex(t.self, p.Address)
	bucket := t.buckets[idx]

	for _, existing := range bucket {
		if existing.Address == p.Address {
			existing.touch(t.now())
			return true
		}
	}

	if len(bucket) < MaxBucketSize {
		t.buckets[idx] = append(bucket, p)
		return true
	}

	lrsIdx := leastRecentlySeenIndex(bucket)
	quietFor := t.now().Sub(bucket[lrsIdx].lastSeen)
	if quietFor > 2*PingFrequency {
		bucket[lrsIdx] = p
		return true
	}
	return false
}

func leastRecentlySeenIndex(bucket []*Peer) int {
	lrs := 0
	for i := 1; i < len(bucket); i++ {
		if bucket[lrs].lastSeen.After(bucket[i].lastSeen) {
			lrs = i
		}
	}
	return lrs
}

// Remove deletes addr from its bucket, if present.
func (t *Table) Remove(addr common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := bucketIndex(t.self, addr)
	bucket := t.buckets[idx]
	for i, p := range bucket {
		if p.Address == addr {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			t.buckets[idx] = bucket[:last]
			return
		}
	}
}

// Touch records addr as seen now, keeping it alive against eviction.
func (t *Table) Touch(addr common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := bucketIndex(t.self, addr)
	for _, p := range t.buckets[idx] {
		if p.Address == addr {
			p.touch(t.now())
			return
		}
	}
}

// DropZombies removes every peer across all buckets that has been quiet
// longer than 2×PingFrequency, mirroring Host::dropZombiePeers' heartbeat
// sweep.
func (t *Table) DropZombies() []common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	var dropped []common.Address
	now := t.now()
	for idx, bucket := range t.buckets {
		kept := bucket[:0]
		for _, p := range bucket {
			if now.Sub(p.lastSeen) > 2*PingFrequency {
				dropped = append(dropped, p.Address)
				continue
			}
			kept = append(kept, p)
		}
		t.buckets[idx] = kept
	}
	return dropped
}

// ClosestTo returns up to n peers ordered by ascending bucket distance from
// target, mirroring the selection Host::onLookup performs to answer a
// Lookup message.
func (t *Table) ClosestTo(target common.Address, n int) []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	want := bucketIndex(t.self, target)
	var out []Peer
	for offset := 0; offset < numBuckets && len(out) < n; offset++ {
		for _, idx := range []int{want + offset, want - offset} {
			if idx < 0 || idx >= numBuckets || (offset == 0 && idx != want) {
				continue
			}
			for _, p := range t.buckets[idx] {
				out = append(out, *p)
				if len(out) >= n {
					break
				}
			}
			if offset == 0 {
				break
			}
		}
	}
	return out
}

// AllPeers returns every peer currently tracked, across all buckets.
func (t *Table) AllPeers() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Peer
	for _, bucket := range t.buckets {
		for _, p := range bucket {
			out = append(out, *p)
		}
	}
	return out
}
