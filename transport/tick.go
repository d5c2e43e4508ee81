package transport

import "github.com/Arceliar/phony"

// Tick runs periodic maintenance: expires paths past their TTL or whose
// next-hop interface is no longer registered, culls the
// dedup set, flushes each interface's announce queue up to budget, and
// retires pending link slots older than the handshake timeout.
func (e *Engine) Tick(now float64) []TransportAction {
	var actions []TransportAction
	phony.Block(e, func() {
		actions = e.tick(now)
	})
	return actions
}

func (e *Engine) tick(now float64) []TransportAction {
	var actions []TransportAction

	for destHash, entry := range e.pathTable {
		if entry.ExpiresAt <= now || e.interfaces[entry.NextHopInterface] == nil {
			delete(e.pathTable, destHash)
		}
	}

	e.dedup.Expire(now)

	for id, ri := range e.interfaces {
		if !ri.up {
			continue
		}
		ri.announceQueue.DrainAgedOut(now, e.cfg.announceQueueTTL)
		for {
			item := ri.announceQueue.PopItem()
			if item == nil {
				break
			}
			if !ri.announceBudget.Allow(now, len(item.packetBytes)) {
				// Put it back; no room this tick.
				ri.announceQueue.Enqueue(item.packetBytes, item.hops, item.arrival)
				break
			}
			actions = append(actions, sendAction(id, item.packetBytes))
		}
	}

	for linkID, deadline := range e.pendingLinkDeadlines {
		if deadline <= now {
			delete(e.pendingLinkDeadlines, linkID)
			delete(e.localLinks, linkID)
		}
	}

	return actions
}
