package transport

import (
	"github.com/Arceliar/phony"

	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/packet"
)

// Inbound processes one framed datagram received on iface and returns the
// ordered batch of actions the host must apply. It performs no I/O.
func (e *Engine) Inbound(frame []byte, iface InterfaceID, now float64) []TransportAction {
	var actions []TransportAction
	phony.Block(e, func() {
		actions = e.inbound(frame, iface, now)
	})
	return actions
}

func (e *Engine) inbound(frame []byte, iface InterfaceID, now float64) []TransportAction {
	p, hash, err := packet.Unpack(frame)
	if err != nil {
		e.count(DropMalformed)
		return []TransportAction{dropAction(DropMalformed)}
	}

	if e.dedup.CheckAndInsert(hash, now) {
		e.count(DropReplay)
		return []TransportAction{dropAction(DropReplay)}
	}

	switch p.PacketType {
	case packet.PacketTypeAnnounce:
		return e.handleAnnounce(p, hash, iface, now)
	default:
		return e.handleRoutable(p, hash, iface, now)
	}
}

func (e *Engine) handleAnnounce(p *packet.Packet, hash packet.Hash, iface InterfaceID, now float64) []TransportAction {
	ann, err := DecodeAnnounce(p.Payload, p.Context)
	if err != nil {
		e.count(DropMalformed)
		return []TransportAction{dropAction(DropMalformed)}
	}
	var destHash destination.Hash
	copy(destHash[:], p.DestHash[:])

	ok, idHash := ann.Validate(destHash)
	if !ok {
		e.count(DropSignatureInvalid)
		return []TransportAction{dropAction(DropSignatureInvalid)}
	}

	arrivalMode := ModeFull
	if ri, found := e.interfaces[iface]; found {
		arrivalMode = ri.Mode
	}

	// Stored path hop counts are "distance from origin": a direct neighbor's
	// announce (wire Hops == 0) yields a path one hop away; each re-flood
	// increments the wire Hops field, so a receiver's stored hop count is
	// always wire Hops + 1.
	candidate := PathEntry{
		DestHash:           destHash,
		NextHopInterface:   iface,
		Hops:                p.Hops + 1,
		ExpiresAt:           now + pathTTLForMode(arrivalMode).Seconds(),
		AnnouncePacketHash:  hash,
		ReceivedFrom:        idHash,
		AnnounceNonce:       ann.RandomHash,
		AnnounceTime:        now,
	}

	existing, haveExisting := e.pathTable[destHash]
	existingIfaceUp := true
	if haveExisting {
		if ri, ok := e.interfaces[existing.NextHopInterface]; !ok || !ri.up {
			existingIfaceUp = false
		}
	}

	actions := make([]TransportAction, 0, 2)
	if shouldReplace(&existing, haveExisting, existingIfaceUp, &candidate) {
		e.pathTable[destHash] = candidate
		actions = append(actions, pathUpdatedAction(destHash, candidate.Hops))
	}

	if !e.routes {
		return actions
	}
	if p.Hops > e.cfg.maxForwardHops {
		return actions
	}

	forwarded := *p
	forwarded.Hops = p.Hops + 1
	wire, err := packFrame(&forwarded)
	if err != nil {
		return actions
	}

	for id, ri := range e.interfaces {
		if id == iface || !ri.up {
			continue
		}
		if ri.announceBudget.Allow(now, len(wire)) {
			actions = append(actions, sendAction(id, wire))
		} else {
			ri.announceQueue.Enqueue(wire, forwarded.Hops, now)
		}
	}
	return actions
}

func (e *Engine) handleRoutable(p *packet.Packet, hash packet.Hash, iface InterfaceID, now float64) []TransportAction {
	var destHash destination.Hash
	copy(destHash[:], p.DestHash[:])

	// A LINKREQUEST forwarded hop by hop leaves a reverse-path breadcrumb at
	// every hop it crosses, exactly as an announce does for its origin
	// destination: this is how the eventual PROOF finds its way back to the
	// initiator without a separate routing mechanism.
	var extra []TransportAction
	if p.PacketType == packet.PacketTypeLinkRequest {
		extra = e.registerLinkReversePath(hash, iface, p.Hops, now)
	}

	if _, local := e.destinations[destHash]; local {
		return append(extra, deliverAction(destHash, p.Payload, hash, p.PacketType, p.Context))
	}
	if _, localLink := e.localLinks[destHash]; localLink {
		return append(extra, deliverAction(destHash, p.Payload, hash, p.PacketType, p.Context))
	}

	if !e.routes {
		e.count(DropNoPath)
		return []TransportAction{dropAction(DropNoPath)}
	}

	entry, known := e.pathTable[destHash]
	if !known || p.Hops > e.cfg.maxForwardHops {
		e.count(DropNoPath)
		return []TransportAction{dropAction(DropNoPath)}
	}
	ri, ok := e.interfaces[entry.NextHopInterface]
	if !ok || !ri.up {
		e.count(DropNoPath)
		return []TransportAction{dropAction(DropNoPath)}
	}

	forwarded := *p
	forwarded.Hops = p.Hops + 1
	forwarded.HeaderType = packet.HeaderTypeTransported
	forwarded.HasTransportID = true
	selfHash := e.id.Hash()
	copy(forwarded.TransportID[:], selfHash[:])

	wire, err := packFrame(&forwarded)
	if err != nil {
		e.count(DropMalformed)
		return []TransportAction{dropAction(DropMalformed)}
	}
	if !ri.forwardLimiter.Allow(now, len(wire)) {
		e.count(DropRateLimited)
		return []TransportAction{dropAction(DropRateLimited)}
	}
	return append(extra, sendAction(entry.NextHopInterface, wire))
}

// registerLinkReversePath records a path-table entry for linkID pointing
// back toward whoever it was just received from, generalizing the
// announce-driven path learning of handleAnnounce to link handshakes: a
// LINKREQUEST is its own reverse-path advertisement.
func (e *Engine) registerLinkReversePath(linkID packet.Hash, iface InterfaceID, hops uint8, now float64) []TransportAction {
	var linkHash destination.Hash
	copy(linkHash[:], linkID[:])

	arrivalMode := ModeFull
	if ri, found := e.interfaces[iface]; found {
		arrivalMode = ri.Mode
	}
	candidate := PathEntry{
		DestHash:         linkHash,
		NextHopInterface: iface,
		Hops:             hops + 1,
		ExpiresAt:        now + pathTTLForMode(arrivalMode).Seconds(),
	}
	existing, haveExisting := e.pathTable[linkHash]
	existingIfaceUp := true
	if haveExisting {
		if ri, ok := e.interfaces[existing.NextHopInterface]; !ok || !ri.up {
			existingIfaceUp = false
		}
	}
	if !haveExisting || !existingIfaceUp || candidate.Hops < existing.Hops {
		e.pathTable[linkHash] = candidate
		return []TransportAction{pathUpdatedAction(linkHash, candidate.Hops)}
	}
	return nil
}
