package transport

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/nomadnet/reticulum-go/packet"
)

// announceDedupTTL is how long a packet hash is remembered before it is
// eligible to be treated as new again.
const announceDedupTTL = 24 * time.Hour

// dedupCapacityHint is the expected number of distinct announces tracked
// within one TTL window, used to size the Bloom filter's bit array, the
// same way a presence filter is sized around its expected membership
// count.
const dedupCapacityHint = 1 << 16

// dedupSet deduplicates packet hashes seen across every interface. A Bloom
// filter answers "definitely new" in O(1) without a map probe; a Bloom
// filter alone cannot be authoritative (false positives exist by
// construction), so an expiry map backs it to guarantee a distinct
// packet_hash is never dropped as a replay. This generalizes the
// presence-tracking blooms idiom from tracking node presence to tracking
// packet identity.
type dedupSet struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	seen   map[packet.Hash]float64 // hash -> expiry (monotonic seconds)
	ttl    time.Duration
}

func newDedupSet(ttl time.Duration) *dedupSet {
	return &dedupSet{
		filter: bloom.NewWithEstimates(dedupCapacityHint, 0.01),
		seen:   make(map[packet.Hash]float64),
		ttl:    ttl,
	}
}

// CheckAndInsert reports whether hash has already been seen within the TTL
// window. If not, it records hash as seen (expiring at now+ttl) and
// returns false. Safe to call concurrently, though the engine's actor
// discipline means all calls are already serialized through Act/Block.
func (d *dedupSet) CheckAndInsert(hash packet.Hash, now float64) (replay bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.filter.Test(hash[:]) {
		if expiry, ok := d.seen[hash]; ok && expiry > now {
			return true
		}
	}
	d.seen[hash] = now + d.ttl.Seconds()
	d.filter.Add(hash[:])
	return false
}

// Expire culls entries past their TTL and, once the authoritative map has
// shrunk enough relative to the filter's sizing, rebuilds the filter so its
// false-positive rate does not drift upward forever. The maintenance tick
// calls this to keep the dedup set from growing without bound.
func (d *dedupSet) Expire(now float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for h, expiry := range d.seen {
		if expiry <= now {
			delete(d.seen, h)
		}
	}
	if len(d.seen)*4 < dedupCapacityHint {
		rebuilt := bloom.NewWithEstimates(dedupCapacityHint, 0.01)
		for h := range d.seen {
			rebuilt.Add(h[:])
		}
		d.filter = rebuilt
	}
}

func (d *dedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
