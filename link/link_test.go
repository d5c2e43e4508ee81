package link

import (
	"testing"

	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/identity"
	"github.com/nomadnet/reticulum-go/packet"
	"github.com/nomadnet/reticulum-go/transport"
)

// party bundles one simulated node's identity, routing core, and link
// manager, mirroring how a real host would wire the three together.
type party struct {
	id     *identity.Identity
	engine *transport.Engine
	mgr    *Manager
}

func newParty(t *testing.T, opts ...Option) party {
	t.Helper()
	id, err := identity.New()
	if err != nil {
		t.Fatalf("identity.New: %v", err)
	}
	engine := transport.New(id)
	return party{id: id, engine: engine, mgr: New(id, engine, opts...)}
}

// sendActionOf picks the ActionSend out of a batch, failing the test if
// there isn't exactly one.
func sendActionOf(t *testing.T, actions []Action) Action {
	t.Helper()
	for _, a := range actions {
		if a.Kind == ActionSend {
			return a
		}
	}
	t.Fatalf("expected an ActionSend among %d actions, found none", len(actions))
	return Action{}
}

func hasKind(actions []Action, kind ActionKind) bool {
	for _, a := range actions {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

// establish drives a complete four-step handshake between a and b, with a
// as initiator toward destB (b's advertised SINGLE destination), and
// returns the agreed link_id. It fails the test on any unexpected rejection.
func establish(t *testing.T, a, b party, destB destination.Hash, now float64) [16]byte {
	t.Helper()

	linkID, reqWire, err := a.mgr.Open(destB, b.id, now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reqPkt, reqHash, err := packet.Unpack(reqWire)
	if err != nil {
		t.Fatalf("unpack LINKREQUEST: %v", err)
	}

	bActions, err := b.mgr.HandleInbound(reqPkt.PacketType, destination.Hash(reqPkt.DestHash), reqPkt.Payload, reqHash, now)
	if err != nil {
		t.Fatalf("responder handling LINKREQUEST: %v", err)
	}
	proof1 := sendActionOf(t, bActions)
	if proof1.LinkID != linkID {
		t.Fatalf("responder's PROOF carries link_id %x, want %x", proof1.LinkID, linkID)
	}

	proof1Pkt, _, err := packet.Unpack(proof1.Wire)
	if err != nil {
		t.Fatalf("unpack first PROOF: %v", err)
	}
	aActions, err := a.mgr.HandleInbound(proof1Pkt.PacketType, destination.Hash(proof1Pkt.DestHash), proof1Pkt.Payload, packet.Hash{}, now)
	if err != nil {
		t.Fatalf("initiator handling PROOF: %v", err)
	}
	if !hasKind(aActions, ActionEstablished) {
		t.Fatalf("initiator did not report ActionEstablished after valid PROOF")
	}
	proof2 := sendActionOf(t, aActions)

	proof2Pkt, _, err := packet.Unpack(proof2.Wire)
	if err != nil {
		t.Fatalf("unpack confirming PROOF: %v", err)
	}
	bActions2, err := b.mgr.HandleInbound(proof2Pkt.PacketType, destination.Hash(proof2Pkt.DestHash), proof2Pkt.Payload, packet.Hash{}, now)
	if err != nil {
		t.Fatalf("responder handling confirming PROOF: %v", err)
	}
	if !hasKind(bActions2, ActionEstablished) {
		t.Fatalf("responder did not report ActionEstablished after confirming PROOF")
	}

	if snap, ok := a.mgr.Get(linkID); !ok || snap.State != StateActive {
		t.Fatalf("initiator link state = %v, want ACTIVE", snap.State)
	}
	if snap, ok := b.mgr.Get(linkID); !ok || snap.State != StateActive {
		t.Fatalf("responder link state = %v, want ACTIVE", snap.State)
	}
	return linkID
}

func destHashOf(t *testing.T, p party, aspects string) destination.Hash {
	t.Helper()
	return destination.New(aspects, destination.Single, p.id).Hash()
}

func TestHandshakeReachesActive(t *testing.T) {
	a := newParty(t)
	b := newParty(t)
	destB := destHashOf(t, b, "example.link.test")
	establish(t, a, b, destB, 1000.0)
}

func TestEstablishedLinkTransportsPayload(t *testing.T) {
	a := newParty(t)
	b := newParty(t)
	destB := destHashOf(t, b, "example.link.test")
	linkID := establish(t, a, b, destB, 1000.0)

	sendActions, err := a.mgr.Send(linkID, []byte("hello reticulum"), 1001.0)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	wire := sendActionOf(t, sendActions).Wire
	dataPkt, _, err := packet.Unpack(wire)
	if err != nil {
		t.Fatalf("unpack DATA: %v", err)
	}

	actions, err := b.mgr.HandleInbound(dataPkt.PacketType, destination.Hash(dataPkt.DestHash), dataPkt.Payload, packet.Hash{}, 1001.0)
	if err != nil {
		t.Fatalf("responder handling DATA: %v", err)
	}
	var delivered []byte
	for _, act := range actions {
		if act.Kind == ActionDeliverLocal {
			delivered = act.Raw
		}
	}
	if string(delivered) != "hello reticulum" {
		t.Fatalf("delivered payload = %q, want %q", delivered, "hello reticulum")
	}
}

func TestReplayedDataPacketRejected(t *testing.T) {
	a := newParty(t)
	b := newParty(t)
	destB := destHashOf(t, b, "example.link.test")
	linkID := establish(t, a, b, destB, 1000.0)

	sendActions, err := a.mgr.Send(linkID, []byte("once"), 1001.0)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	wire := sendActionOf(t, sendActions).Wire
	dataPkt, _, err := packet.Unpack(wire)
	if err != nil {
		t.Fatalf("unpack DATA: %v", err)
	}

	if _, err := b.mgr.HandleInbound(dataPkt.PacketType, destination.Hash(dataPkt.DestHash), dataPkt.Payload, packet.Hash{}, 1001.0); err != nil {
		t.Fatalf("first delivery: unexpected error %v", err)
	}
	if _, err := b.mgr.HandleInbound(dataPkt.PacketType, destination.Hash(dataPkt.DestHash), dataPkt.Payload, packet.Hash{}, 1001.5); err != ErrReplay {
		t.Fatalf("replayed delivery: got err %v, want ErrReplay", err)
	}
}

func TestHandshakeProofMismatchRejected(t *testing.T) {
	a := newParty(t)
	b := newParty(t)
	destB := destHashOf(t, b, "example.link.test")

	_, reqWire, err := a.mgr.Open(destB, b.id, 1000.0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reqPkt, reqHash, err := packet.Unpack(reqWire)
	if err != nil {
		t.Fatalf("unpack LINKREQUEST: %v", err)
	}
	bActions, err := b.mgr.HandleInbound(reqPkt.PacketType, destination.Hash(reqPkt.DestHash), reqPkt.Payload, reqHash, 1000.0)
	if err != nil {
		t.Fatalf("responder handling LINKREQUEST: %v", err)
	}
	proof1 := sendActionOf(t, bActions)
	proof1Pkt, _, err := packet.Unpack(proof1.Wire)
	if err != nil {
		t.Fatalf("unpack PROOF: %v", err)
	}
	// Flip a byte of the MAC so the initiator's verification fails.
	proof1Pkt.Payload[len(proof1Pkt.Payload)-1] ^= 0xFF

	_, err = a.mgr.HandleInbound(proof1Pkt.PacketType, destination.Hash(proof1Pkt.DestHash), proof1Pkt.Payload, packet.Hash{}, 1000.0)
	if err != ErrHandshakeMismatch {
		t.Fatalf("got err %v, want ErrHandshakeMismatch", err)
	}
}

func TestIdentifyExchange(t *testing.T) {
	a := newParty(t)
	b := newParty(t)
	destB := destHashOf(t, b, "example.link.test")
	linkID := establish(t, a, b, destB, 1000.0)

	actions, err := a.mgr.Identify(linkID, 1001.0)
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	wire := sendActionOf(t, actions).Wire
	idPkt, _, err := packet.Unpack(wire)
	if err != nil {
		t.Fatalf("unpack identify DATA: %v", err)
	}

	bActions, err := b.mgr.HandleInbound(idPkt.PacketType, destination.Hash(idPkt.DestHash), idPkt.Payload, packet.Hash{}, 1001.0)
	if err != nil {
		t.Fatalf("responder handling identify: %v", err)
	}
	var gotHash identity.Hash
	found := false
	for _, act := range bActions {
		if act.Kind == ActionIdentified {
			gotHash = act.PeerIdentityHash
			found = true
		}
	}
	if !found {
		t.Fatalf("responder did not report ActionIdentified")
	}
	if gotHash != a.id.Hash() {
		t.Fatalf("identified peer hash = %x, want %x", gotHash, a.id.Hash())
	}
	if snap, _ := b.mgr.Get(linkID); snap.PeerIdentity == nil || snap.PeerIdentity.Hash() != a.id.Hash() {
		t.Fatalf("responder's link did not record the initiator's identity")
	}
}

func TestTeardownClosesBothSides(t *testing.T) {
	a := newParty(t)
	b := newParty(t)
	destB := destHashOf(t, b, "example.link.test")
	linkID := establish(t, a, b, destB, 1000.0)

	actions, err := a.mgr.Teardown(linkID, 1001.0)
	if err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if !hasKind(actions, ActionClosed) {
		t.Fatalf("Teardown did not close the initiator's side locally")
	}
	if snap, _ := a.mgr.Get(linkID); snap.State != StateClosed {
		t.Fatalf("initiator link state = %v, want CLOSED", snap.State)
	}

	wire := sendActionOf(t, actions).Wire
	tdPkt, _, err := packet.Unpack(wire)
	if err != nil {
		t.Fatalf("unpack TEARDOWN: %v", err)
	}
	bActions, err := b.mgr.HandleInbound(tdPkt.PacketType, destination.Hash(tdPkt.DestHash), tdPkt.Payload, packet.Hash{}, 1001.0)
	if err != nil {
		t.Fatalf("responder handling TEARDOWN: %v", err)
	}
	if !hasKind(bActions, ActionClosed) {
		t.Fatalf("responder did not close on receiving TEARDOWN")
	}
	if snap, _ := b.mgr.Get(linkID); snap.State != StateClosed {
		t.Fatalf("responder link state = %v, want CLOSED", snap.State)
	}
}
