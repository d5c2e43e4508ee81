package transport

import (
	"github.com/Arceliar/phony"

	"github.com/nomadnet/reticulum-go/destination"
)

// Outbound admits a locally originated packet.Packet into the network.
// For ANNOUNCE packets it floods on every up interface, subject to each
// interface's announce budget (queuing the rest). For all other packet
// types it looks up the path table and emits a single send on the
// appropriate interface, or returns ErrNoPath synchronously so the caller
// learns immediately that nothing could be sent.
func (e *Engine) Outbound(p *OutboundPacket, now float64) ([]TransportAction, error) {
	var actions []TransportAction
	var outErr error
	phony.Block(e, func() {
		actions, outErr = e.outbound(p, now)
	})
	return actions, outErr
}

// OutboundPacket is the host-facing request to originate a packet,
// wrapping the destination hash and pre-encoded wire bytes so Outbound
// does not need to know per-packet-type encoding rules.
type OutboundPacket struct {
	DestHash   destination.Hash
	IsAnnounce bool
	Wire       []byte // fully packed bytes, as produced by packet.Pack
	Hops       uint8
}

func (e *Engine) outbound(p *OutboundPacket, now float64) ([]TransportAction, error) {
	if len(p.Wire) > mtuLimit {
		return nil, ErrOversizedPacket
	}
	if p.IsAnnounce {
		var actions []TransportAction
		for id, ri := range e.interfaces {
			if !ri.up {
				continue
			}
			if ri.announceBudget.Allow(now, len(p.Wire)) {
				actions = append(actions, sendAction(id, p.Wire))
			} else {
				ri.announceQueue.Enqueue(p.Wire, p.Hops, now)
			}
		}
		return actions, nil
	}

	entry, known := e.pathTable[p.DestHash]
	if !known {
		return nil, ErrNoPath
	}
	ri, ok := e.interfaces[entry.NextHopInterface]
	if !ok || !ri.up {
		return nil, ErrNoPath
	}
	if !ri.forwardLimiter.Allow(now, len(p.Wire)) {
		e.count(DropRateLimited)
		return []TransportAction{dropAction(DropRateLimited)}, nil
	}
	return []TransportAction{sendAction(entry.NextHopInterface, p.Wire)}, nil
}

const mtuLimit = 500
