package transport

import "testing"

func TestAnnounceBudgetCapsAtTwoPercent(t *testing.T) {
	const nominalBPS = 8_000_000 // 1 MB/s nominal
	budget := newAnnounceBudget(nominalBPS, announceBudgetFraction)
	capacityBytes := int(budget.capacityBytesPerWindow)

	now := 0.0
	packetSize := 100
	sent := 0
	// Offer ten times the cap's worth of traffic across the window and
	// confirm admitted bytes land at (within the bucket rounding) the
	// 2% cap, not anywhere near the 10x offered rate — measured over a
	// rolling 60s window.
	for i := 0; i < (capacityBytes/packetSize)*10; i++ {
		if budget.Allow(now, packetSize) {
			sent += packetSize
		}
		now += 60.0 / float64((capacityBytes/packetSize)*10)
	}
	if sent > capacityBytes {
		t.Fatalf("admitted %d bytes, which exceeds the window capacity %d", sent, capacityBytes)
	}
	lowerBound := float64(capacityBytes) * 0.80
	if float64(sent) < lowerBound {
		t.Fatalf("admitted only %d bytes of a %d-byte budget, budget is not being used", sent, capacityBytes)
	}
}

func TestAnnounceQueueOrdering(t *testing.T) {
	q := newAnnounceQueue()
	q.Enqueue([]byte("hop3-early"), 3, 10.0)
	q.Enqueue([]byte("hop1-late"), 1, 20.0)
	q.Enqueue([]byte("hop1-early"), 1, 5.0)

	first := q.PopItem()
	if string(first.packetBytes) != "hop1-early" {
		t.Fatalf("expected hop1-early first, got %s", first.packetBytes)
	}
	second := q.PopItem()
	if string(second.packetBytes) != "hop1-late" {
		t.Fatalf("expected hop1-late second, got %s", second.packetBytes)
	}
	third := q.PopItem()
	if string(third.packetBytes) != "hop3-early" {
		t.Fatalf("expected hop3-early third, got %s", third.packetBytes)
	}
}

func TestAnnounceQueueAgesOut(t *testing.T) {
	q := newAnnounceQueue()
	q.Enqueue([]byte("old"), 1, 0.0)
	q.Enqueue([]byte("new"), 1, 100000.0)
	q.DrainAgedOut(100000.0+announceQueueTTL.Seconds()-1, announceQueueTTL)
	if q.Len() != 1 {
		t.Fatalf("expected exactly one surviving item, got %d", q.Len())
	}
	item := q.PopItem()
	if string(item.packetBytes) != "new" {
		t.Fatalf("expected the surviving item to be 'new', got %s", item.packetBytes)
	}
}
