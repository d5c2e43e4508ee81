package link

import (
	"testing"
	"time"

	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/packet"
)

func TestTickSendsKeepaliveAfterOutboundSilence(t *testing.T) {
	a := newParty(t, WithKeepalive(10*time.Second))
	b := newParty(t, WithKeepalive(10*time.Second))
	destB := destHashOf(t, b, "example.link.test")
	linkID := establish(t, a, b, destB, 1000.0)

	actions := a.mgr.Tick(1000.0 + 9.0)
	if len(actions) != 0 {
		t.Fatalf("expected no keepalive before the interval elapses, got %d actions", len(actions))
	}
	actions = a.mgr.Tick(1000.0 + 11.0)
	if !hasKind(actions, ActionSend) {
		t.Fatalf("expected a keepalive ActionSend once outbound silence exceeds the interval")
	}
	wire := sendActionOf(t, actions).Wire
	pkt, _, err := packet.Unpack(wire)
	if err != nil {
		t.Fatalf("unpack keepalive: %v", err)
	}
	if pkt.PacketType != packet.PacketTypeData {
		t.Fatalf("keepalive should be a DATA packet, got %v", pkt.PacketType)
	}
	if snap, _ := a.mgr.Get(linkID); snap.State != StateActive {
		t.Fatalf("sending a keepalive should not itself change link state, got %v", snap.State)
	}
}

func TestTickMovesActiveToStaleOnInboundSilence(t *testing.T) {
	a := newParty(t, WithKeepalive(10*time.Second))
	b := newParty(t, WithKeepalive(10*time.Second))
	destB := destHashOf(t, b, "example.link.test")
	linkID := establish(t, a, b, destB, 1000.0)

	b.mgr.Tick(1000.0)
	if snap, _ := b.mgr.Get(linkID); snap.State != StateActive {
		t.Fatalf("link should still be ACTIVE immediately after establishment, got %v", snap.State)
	}

	// staleAfter is 2x keepalive = 20s of inbound silence.
	b.mgr.Tick(1000.0 + 21.0)
	if snap, _ := b.mgr.Get(linkID); snap.State != StateStale {
		t.Fatalf("link should be STALE after 2x keepalive of inbound silence, got %v", snap.State)
	}
}

func TestInboundTrafficRestoresActiveFromStale(t *testing.T) {
	a := newParty(t, WithKeepalive(10*time.Second))
	b := newParty(t, WithKeepalive(10*time.Second))
	destB := destHashOf(t, b, "example.link.test")
	linkID := establish(t, a, b, destB, 1000.0)

	b.mgr.Tick(1000.0 + 21.0)
	if snap, _ := b.mgr.Get(linkID); snap.State != StateStale {
		t.Fatalf("setup: expected STALE, got %v", snap.State)
	}

	sendActions, err := a.mgr.Send(linkID, []byte("ping"), 1000.0+22.0)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	wire := sendActionOf(t, sendActions).Wire
	dataPkt, _, err := packet.Unpack(wire)
	if err != nil {
		t.Fatalf("unpack DATA: %v", err)
	}
	if _, err := b.mgr.HandleInbound(dataPkt.PacketType, destination.Hash(dataPkt.DestHash), dataPkt.Payload, packet.Hash{}, 1000.0+22.0); err != nil {
		t.Fatalf("responder handling DATA: %v", err)
	}

	if snap, _ := b.mgr.Get(linkID); snap.State != StateActive {
		t.Fatalf("a single inbound packet on a STALE link should restore ACTIVE, got %v", snap.State)
	}
}

func TestTickClosesStaleLinkPastTeardownThreshold(t *testing.T) {
	a := newParty(t, WithKeepalive(10*time.Second), WithTeardownThreshold(5*time.Second))
	b := newParty(t, WithKeepalive(10*time.Second), WithTeardownThreshold(5*time.Second))
	destB := destHashOf(t, b, "example.link.test")
	linkID := establish(t, a, b, destB, 1000.0)

	b.mgr.Tick(1000.0 + 21.0) // -> STALE at 20s
	if snap, _ := b.mgr.Get(linkID); snap.State != StateStale {
		t.Fatalf("setup: expected STALE, got %v", snap.State)
	}

	actions := b.mgr.Tick(1000.0 + 21.0 + 5.0 + 0.001)
	if !hasKind(actions, ActionClosed) {
		t.Fatalf("expected the link to close once the teardown threshold elapses past STALE")
	}
	if snap, _ := b.mgr.Get(linkID); snap.State != StateClosed {
		t.Fatalf("link state = %v, want CLOSED", snap.State)
	}
}

func TestTickClosesHandshakeTimeout(t *testing.T) {
	a := newParty(t, WithHandshakeTimeout(5*time.Second))
	b := newParty(t)
	destB := destHashOf(t, b, "example.link.test")

	linkID, _, err := a.mgr.Open(destB, b.id, 1000.0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	actions := a.mgr.Tick(1000.0 + 4.0)
	if hasKind(actions, ActionClosed) {
		t.Fatalf("link closed before its handshake deadline elapsed")
	}
	actions = a.mgr.Tick(1000.0 + 6.0)
	if !hasKind(actions, ActionClosed) {
		t.Fatalf("expected the pending link to close once its handshake deadline elapses")
	}
	if snap, _ := a.mgr.Get(linkID); snap.State != StateClosed {
		t.Fatalf("link state = %v, want CLOSED", snap.State)
	}
}
