package transport

import (
	"container/heap"
	"time"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/time/rate"
)

// announceBudgetFraction is the share of nominal bandwidth announce
// traffic is capped at.
const announceBudgetFraction = 0.02

// announceWindowSeconds is the sliding window the announce budget is
// measured over.
const announceWindowSeconds = 60

// announceBudget tracks aggregate announce bytes emitted on one interface
// over a sliding 60-second window, enforcing a cap proportional to the
// interface's nominal bandwidth. It keeps one byte-count bucket per second
// in a ring buffer; a bitset.BitSet of "bucket touched since last full lap"
// flags lets the rotation that advances the window skip buckets it already
// knows are zero, rather than memset-ing the whole ring on every tick.
type announceBudget struct {
	capacityBytesPerWindow float64
	buckets                [announceWindowSeconds]uint64
	touched                *bitset.BitSet
	lastSecond             int64
}

func newAnnounceBudget(nominalBPS uint64, fraction float64) *announceBudget {
	capacityBits := float64(nominalBPS) * fraction * announceWindowSeconds
	return &announceBudget{
		capacityBytesPerWindow: capacityBits / 8,
		touched:                bitset.New(announceWindowSeconds),
	}
}

func (b *announceBudget) bucketIndex(second int64) uint {
	return uint(((second % announceWindowSeconds) + announceWindowSeconds) % announceWindowSeconds)
}

// advance clears any buckets that have scrolled out of the window since
// the last call.
func (b *announceBudget) advance(nowSecond int64) {
	if b.lastSecond == 0 {
		b.lastSecond = nowSecond
		return
	}
	elapsed := nowSecond - b.lastSecond
	if elapsed <= 0 {
		return
	}
	if elapsed > announceWindowSeconds {
		elapsed = announceWindowSeconds
	}
	for s := b.lastSecond + 1; s <= b.lastSecond+elapsed; s++ {
		idx := b.bucketIndex(s)
		if b.touched.Test(idx) {
			b.buckets[idx] = 0
			b.touched.Clear(idx)
		}
	}
	b.lastSecond = nowSecond
}

// Used returns the total announce bytes counted within the current window.
func (b *announceBudget) Used(now float64) uint64 {
	b.advance(int64(now))
	var total uint64
	for _, v := range b.buckets {
		total += v
	}
	return total
}

// Allow reports whether n additional announce bytes fit inside the budget,
// and if so records them.
func (b *announceBudget) Allow(now float64, n int) bool {
	nowSecond := int64(now)
	b.advance(nowSecond)
	used := b.Used(now)
	if used+uint64(n) > uint64(b.capacityBytesPerWindow) {
		return false
	}
	idx := b.bucketIndex(nowSecond)
	b.buckets[idx] += uint64(n)
	b.touched.Set(idx)
	return true
}

// forwardLimiter is a token bucket over forwarded (non-announce) bytes per
// interface.
type forwardLimiter struct {
	limiter *rate.Limiter
}

func newForwardLimiter(nominalBPS uint64) *forwardLimiter {
	bytesPerSec := rate.Limit(float64(nominalBPS) / 8)
	burst := int(nominalBPS/8) + 1
	if burst < 1 {
		burst = 1
	}
	return &forwardLimiter{limiter: rate.NewLimiter(bytesPerSec, burst)}
}

func (f *forwardLimiter) Allow(now float64, n int) bool {
	return f.limiter.AllowN(timeFromFloat(now), n)
}

// timeFromFloat converts a host-supplied simulated timestamp into the
// time.Time golang.org/x/time/rate's token bucket expects, so this package
// never samples the real wall clock itself — every timing decision stays
// driven by whatever time a host hands it.
func timeFromFloat(now float64) time.Time {
	sec := int64(now)
	nsec := int64((now - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// announceQueueItem is a pending re-emission, ordered by (hops ascending,
// arrival time ascending).
type announceQueueItem struct {
	packetBytes []byte
	hops        uint8
	arrival     float64
	index       int
}

// announceQueue is a per-interface min-heap of pending announce
// re-emissions, aged out after 24 hours.
type announceQueue struct {
	items []*announceQueueItem
}

func newAnnounceQueue() *announceQueue { return &announceQueue{} }

func (q *announceQueue) Len() int { return len(q.items) }
func (q *announceQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.hops != b.hops {
		return a.hops < b.hops
	}
	return a.arrival < b.arrival
}
func (q *announceQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}
func (q *announceQueue) Push(x interface{}) {
	item := x.(*announceQueueItem)
	item.index = len(q.items)
	q.items = append(q.items, item)
}
func (q *announceQueue) Pop() interface{} {
	n := len(q.items)
	item := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return item
}

// announceQueueTTL is the age-out for queued re-emissions.
const announceQueueTTL = 24 * time.Hour

func (q *announceQueue) Enqueue(bytes []byte, hops uint8, now float64) {
	heap.Push(q, &announceQueueItem{packetBytes: bytes, hops: hops, arrival: now})
}

// DrainAgedOut removes items older than ttl.
func (q *announceQueue) DrainAgedOut(now float64, ttl time.Duration) {
	cutoff := now - ttl.Seconds()
	kept := q.items[:0]
	for _, item := range q.items {
		if item.arrival >= cutoff {
			kept = append(kept, item)
		}
	}
	q.items = kept
	heap.Init(q)
}

// PopItem removes and returns the highest-priority item, or nil if empty.
func (q *announceQueue) PopItem() *announceQueueItem {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*announceQueueItem)
}
