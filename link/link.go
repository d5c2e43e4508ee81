package link

import (
	crand "crypto/rand"

	"github.com/Arceliar/phony"
	"github.com/oasisprotocol/curve25519-voi/primitives/x25519"

	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/identity"
	"github.com/nomadnet/reticulum-go/packet"
	"github.com/nomadnet/reticulum-go/transport"
)

// Link is one end-to-end session, either side of which this node may play.
type Link struct {
	ID           [16]byte
	Role         Role
	State        State
	PeerDestHash destination.Hash // the peer's long-term SINGLE destination

	localEphPriv  [32]byte
	localEphPub   [32]byte
	remoteEphPub  [32]byte
	usingRatchet  bool // responder only: localEph* is a ratchet keypair, not a one-shot ephemeral

	aesKey  []byte
	hmacKey []byte

	PeerIdentity *identity.Identity

	CreatedAt         float64
	LastInboundAt     float64
	LastOutboundAt    float64
	HandshakeDeadline float64

	seqOut      uint64
	seqInHigh   uint64
	seqInWindow uint64 // bit i set means (seqInHigh - i) has been seen, for i in [0,63]
	seenAny     bool
}

// Stats accumulates simple counters, exposed via Debug() for a host's own
// logging, mirroring transport.Stats.
type Stats struct {
	Closed map[CloseReason]uint64
}

// Manager owns every Link this node is a party to, layered over a
// *transport.Engine: it authenticates and encrypts a session on top of
// the engine's unauthenticated packet delivery, the same way a secure
// session wraps a plain connection without touching the connection's own
// routing concerns.
type Manager struct {
	phony.Inbox

	id     *identity.Identity
	engine *transport.Engine
	cfg    config

	links map[[16]byte]*Link

	responderRatchets map[destination.Hash]*ratchetRing
	peerRatchets      map[destination.Hash]peerRatchet

	stats Stats
}

// New constructs a Manager bound to id (used for signing the optional
// identify exchange) and engine (used for routing link traffic; Manager
// never touches interfaces directly).
func New(id *identity.Identity, engine *transport.Engine, opts ...Option) *Manager {
	m := &Manager{
		id:                id,
		engine:            engine,
		links:             make(map[[16]byte]*Link),
		responderRatchets: make(map[destination.Hash]*ratchetRing),
		peerRatchets:      make(map[destination.Hash]peerRatchet),
		stats:             Stats{Closed: make(map[CloseReason]uint64)},
	}
	opts = append([]Option{configDefaults()}, opts...)
	for _, opt := range opts {
		opt(&m.cfg)
	}
	return m
}

// EnableRatchet starts rotating a ratchet key for a local destination this
// node owns, so its announces can advertise one. The host reads
// CurrentRatchetPub and embeds it in outgoing announces itself;
// Manager never constructs announces (that stays transport's concern).
func (m *Manager) EnableRatchet(destHash destination.Hash, now float64) error {
	var rotateErr error
	phony.Block(m, func() {
		ring := newRatchetRing()
		if err := ring.Rotate(now); err != nil {
			rotateErr = err
			return
		}
		m.responderRatchets[destHash] = ring
	})
	return rotateErr
}

// RotateRatchet advances destHash's ratchet to a new generation,
// permanently retiring the previous one after its retention window.
func (m *Manager) RotateRatchet(destHash destination.Hash, now float64) error {
	var rotateErr error
	phony.Block(m, func() {
		ring, ok := m.responderRatchets[destHash]
		if !ok {
			ring = newRatchetRing()
			m.responderRatchets[destHash] = ring
		}
		rotateErr = ring.Rotate(now)
	})
	return rotateErr
}

// CurrentRatchetPub returns destHash's currently active ratchet public key.
func (m *Manager) CurrentRatchetPub(destHash destination.Hash) (pub [32]byte, ok bool) {
	phony.Block(m, func() {
		ring, found := m.responderRatchets[destHash]
		if !found {
			return
		}
		_, pub, ok = ring.Current()
	})
	return pub, ok
}

// Open begins a handshake toward peerDestHash, returning the new link_id
// and the LINKREQUEST bytes the host must hand to transport.Outbound. The
// caller is responsible for having a path to peerDestHash already (Open
// does not itself consult the path table;
// transport.Outbound will report ErrNoPath if there is none).
//
// peerIdentity, if non-nil, is the long-term identity the caller already
// knows sits behind peerDestHash (typically learned from an earlier
// announce); Identify uses it to address the in-link identify exchange.
// It may be nil, leaving the peer unidentified until the host supplies one
// some other way.
func (m *Manager) Open(peerDestHash destination.Hash, peerIdentity *identity.Identity, now float64) (linkID [16]byte, wire []byte, err error) {
	phony.Block(m, func() {
		var ephPriv [32]byte
		if _, rerr := crand.Read(ephPriv[:]); rerr != nil {
			err = rerr
			return
		}
		ephPubBytes, rerr := x25519.X25519(ephPriv[:], x25519.Basepoint)
		if rerr != nil {
			err = rerr
			return
		}
		var ephPub [32]byte
		copy(ephPub[:], ephPubBytes)

		id := computeLinkID(peerDestHash, ephPub)
		l := &Link{
			ID:                id,
			Role:              RoleInitiator,
			State:             StatePending,
			PeerDestHash:      peerDestHash,
			PeerIdentity:      peerIdentity,
			localEphPriv:      ephPriv,
			localEphPub:       ephPub,
			CreatedAt:         now,
			HandshakeDeadline: now + m.cfg.handshakeTimeout.Seconds(),
		}
		m.links[id] = l
		m.engine.RegisterLocalLink(id, l.HandshakeDeadline)

		p := &packet.Packet{
			HeaderType: packet.HeaderTypeDirect,
			DestType:   packet.DestinationSingle,
			PacketType: packet.PacketTypeLinkRequest,
			Payload:    encodeLinkRequest(ephPub),
		}
		copy(p.DestHash[:], peerDestHash[:])
		w, perr := packet.Pack(p)
		if perr != nil {
			err = perr
			return
		}
		linkID, wire = id, w
	})
	return
}

// Get returns a snapshot of a tracked Link's public fields, for a host
// that wants to inspect state without round-tripping through an action.
func (m *Manager) Get(id [16]byte) (snapshot Link, ok bool) {
	phony.Block(m, func() {
		l, found := m.links[id]
		if !found {
			return
		}
		snapshot = *l
		ok = true
	})
	return
}

// Debug returns a point-in-time snapshot of every tracked link, grounded
// on transport.Debug's equivalent snapshot method.
type Debug struct {
	Links  map[[16]byte]State
	Closed map[CloseReason]uint64
}

func (m *Manager) Debug() Debug {
	var d Debug
	phony.Block(m, func() {
		d.Links = make(map[[16]byte]State, len(m.links))
		for id, l := range m.links {
			d.Links[id] = l.State
		}
		d.Closed = make(map[CloseReason]uint64, len(m.stats.Closed))
		for k, v := range m.stats.Closed {
			d.Closed[k] = v
		}
	})
	return d
}

func (m *Manager) closeLink(l *Link, reason CloseReason) Action {
	l.State = StateClosed
	m.stats.Closed[reason]++
	m.engine.DeregisterLocalLink(l.ID)
	return closedAction(l.ID, reason)
}

// Close tears a link down locally, regardless of its current state. The
// caller is responsible for best-effort sending a TEARDOWN if the peer
// should be notified; Close itself only updates local state.
func (m *Manager) Close(id [16]byte, now float64) []Action {
	var actions []Action
	phony.Block(m, func() {
		l, ok := m.links[id]
		if !ok || l.State == StateClosed {
			return
		}
		actions = []Action{m.closeLink(l, CloseReasonLocal)}
	})
	return actions
}
