// Package transport implements Reticulum's routing and session-admission
// core: a pure state machine over a path table, announce dedup set,
// pending-link table, and per-interface rate counters.
//
// The Engine performs no I/O. Every public method funnels through a
// phony.Inbox so that exactly one owner mutates engine tables, even if a
// host calls from multiple goroutines; phony.Block makes each call
// synchronous from the caller's point of view, so the engine only ever
// computes and returns a batch of actions for the host to carry out,
// reusing the actor discipline of a single-owner routing core rather than
// a bespoke mutex.
package transport

import (
	"github.com/Arceliar/phony"

	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/identity"
	"github.com/nomadnet/reticulum-go/packet"
)

// Engine is a single, independent instance of the routing/session-admission
// core. Multiple Engines may coexist in one process.
type Engine struct {
	phony.Inbox

	id     *identity.Identity
	cfg    config
	routes bool // whether this node participates in routing (re-floods/forwards)

	interfaces   map[InterfaceID]*registeredInterface
	destinations map[destination.Hash]struct{}
	localLinks   map[[16]byte]struct{}

	pathTable map[destination.Hash]PathEntry
	dedup     *dedupSet

	pendingLinkDeadlines map[[16]byte]float64

	stats Stats
}

// Stats accumulates simple counters for drop reasons, exposed via Debug()
// for a host's own logging/metrics; the engine itself carries no logger.
type Stats struct {
	Dropped map[DropReason]uint64
}

// New constructs an Engine bound to id, whose identity hash is written as
// the transport id into packets this node forwards.
func New(id *identity.Identity, opts ...Option) *Engine {
	e := &Engine{
		id:                   id,
		routes:               true,
		interfaces:           make(map[InterfaceID]*registeredInterface),
		destinations:         make(map[destination.Hash]struct{}),
		localLinks:           make(map[[16]byte]struct{}),
		pathTable:            make(map[destination.Hash]PathEntry),
		pendingLinkDeadlines: make(map[[16]byte]float64),
		stats:                Stats{Dropped: make(map[DropReason]uint64)},
	}
	opts = append([]Option{configDefaults()}, opts...)
	for _, opt := range opts {
		opt(&e.cfg)
	}
	e.dedup = newDedupSet(e.cfg.announceDedupTTL)
	return e
}

// SetRoutingEnabled toggles whether this node re-floods announces and
// forwards data it is not the destination of.
func (e *Engine) SetRoutingEnabled(enabled bool) {
	phony.Block(e, func() { e.routes = enabled })
}

// RegisterInterface adds iface to the engine's interface registry.
func (e *Engine) RegisterInterface(iface Interface) {
	phony.Block(e, func() {
		iface.up = true
		e.interfaces[iface.ID] = &registeredInterface{
			Interface:      iface,
			announceBudget: newAnnounceBudget(iface.NominalBPS, e.cfg.announceBudgetFrac),
			forwardLimiter: newForwardLimiter(iface.NominalBPS),
			announceQueue:  newAnnounceQueue(),
		}
	})
}

// DeregisterInterface removes an interface. Path entries whose next hop is
// this interface are dropped by the next Tick rather than immediately, to
// avoid doing unbounded work here. Pending link slots carry no interface
// and are retired only by their handshake deadline.
func (e *Engine) DeregisterInterface(id InterfaceID) {
	phony.Block(e, func() {
		if ri, ok := e.interfaces[id]; ok {
			ri.up = false
		}
		delete(e.interfaces, id)
	})
}

// RegisterDestination marks destHash as locally owned: inbound packets
// addressed to it are delivered locally rather than forwarded. Idempotent.
func (e *Engine) RegisterDestination(destHash destination.Hash) {
	phony.Block(e, func() {
		e.destinations[destHash] = struct{}{}
	})
}

// DeregisterDestination reverses RegisterDestination.
func (e *Engine) DeregisterDestination(destHash destination.Hash) {
	phony.Block(e, func() {
		delete(e.destinations, destHash)
	})
}

// RegisterLocalLink marks linkID as addressed to a link endpoint owned by
// this node: once a Link reaches PENDING or later, inbound LINK-addressed
// traffic for it must be delivered locally instead of forwarded.
func (e *Engine) RegisterLocalLink(linkID [16]byte, handshakeDeadline float64) {
	phony.Block(e, func() {
		e.localLinks[linkID] = struct{}{}
		e.pendingLinkDeadlines[linkID] = handshakeDeadline
	})
}

// PromoteLocalLink clears a link's handshake deadline once it reaches
// ACTIVE, so the maintenance tick no longer considers it for timeout.
func (e *Engine) PromoteLocalLink(linkID [16]byte) {
	phony.Block(e, func() {
		delete(e.pendingLinkDeadlines, linkID)
	})
}

// DeregisterLocalLink removes a link's local-delivery registration, e.g.
// once it reaches CLOSED.
func (e *Engine) DeregisterLocalLink(linkID [16]byte) {
	phony.Block(e, func() {
		delete(e.localLinks, linkID)
		delete(e.pendingLinkDeadlines, linkID)
	})
}

// HasPath reports whether the engine currently has a route to destHash.
func (e *Engine) HasPath(destHash destination.Hash) bool {
	var ok bool
	phony.Block(e, func() {
		_, ok = e.pathTable[destHash]
	})
	return ok
}

// HopsTo returns the current hop count to destHash, if known.
func (e *Engine) HopsTo(destHash destination.Hash) (hops uint8, ok bool) {
	phony.Block(e, func() {
		if entry, found := e.pathTable[destHash]; found {
			hops, ok = entry.Hops, true
		}
	})
	return
}

// NextHop returns the interface a packet to destHash would currently be
// forwarded on, if known.
func (e *Engine) NextHop(destHash destination.Hash) (iface InterfaceID, ok bool) {
	phony.Block(e, func() {
		if entry, found := e.pathTable[destHash]; found {
			iface, ok = entry.NextHopInterface, true
		}
	})
	return
}

// Debug returns a point-in-time snapshot of the engine's tables.
type Debug struct {
	Paths      map[destination.Hash]PathEntry
	DedupSize  int
	Interfaces []Interface
	Dropped    map[DropReason]uint64
}

func (e *Engine) Debug() Debug {
	var d Debug
	phony.Block(e, func() {
		d.Paths = make(map[destination.Hash]PathEntry, len(e.pathTable))
		for k, v := range e.pathTable {
			d.Paths[k] = v
		}
		d.Interfaces = make([]Interface, 0, len(e.interfaces))
		for _, ri := range e.interfaces {
			d.Interfaces = append(d.Interfaces, ri.Interface)
		}
		d.Dropped = make(map[DropReason]uint64, len(e.stats.Dropped))
		for k, v := range e.stats.Dropped {
			d.Dropped[k] = v
		}
	})
	d.DedupSize = e.dedup.Len()
	return d
}

func (e *Engine) count(reason DropReason) {
	e.stats.Dropped[reason]++
}

// packFrame is a small helper shared by Inbound's re-flood path and
// Outbound: pack a packet.Packet, swallowing the (here, impossible once
// validated) encode error by falling back to a drop action upstream.
func packFrame(p *packet.Packet) ([]byte, error) {
	return packet.Pack(p)
}
