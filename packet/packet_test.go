package packet

import (
	"bytes"
	crand "crypto/rand"
	"testing"
)

func samplePacket(payloadLen int) *Packet {
	p := &Packet{
		HeaderType:  HeaderTypeDirect,
		Propagation: PropagationBroadcast,
		DestType:    DestinationSingle,
		PacketType:  PacketTypeData,
		AccessCode:  false,
		Hops:        3,
		Context:     0x05,
		Payload:     make([]byte, payloadLen),
	}
	crand.Read(p.DestHash[:])
	crand.Read(p.Payload)
	return p
}

func TestPackUnpackRoundTrip(t *testing.T) {
	p := samplePacket(100)
	wire, err := Pack(p)
	if err != nil {
		t.Fatal(err)
	}
	got, hash, err := Unpack(wire)
	if err != nil {
		t.Fatal(err)
	}
	if got.HeaderType != p.HeaderType || got.Propagation != p.Propagation ||
		got.DestType != p.DestType || got.PacketType != p.PacketType ||
		got.AccessCode != p.AccessCode || got.Hops != p.Hops ||
		got.Context != p.Context {
		t.Fatalf("round trip field mismatch: got %+v want %+v", got, p)
	}
	if got.DestHash != p.DestHash {
		t.Fatal("dest hash mismatch")
	}
	if !bytes.Equal(got.Payload, p.Payload) {
		t.Fatal("payload mismatch")
	}
	if hash != got.Hash() {
		t.Fatal("returned hash does not match recomputed hash")
	}
}

func TestPackUnpackWithTransportID(t *testing.T) {
	p := samplePacket(50)
	p.HeaderType = HeaderTypeTransported
	crand.Read(p.TransportID[:])
	wire, err := Pack(p)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Unpack(wire)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasTransportID {
		t.Fatal("expected HasTransportID")
	}
	if got.TransportID != p.TransportID {
		t.Fatal("transport id mismatch")
	}
}

func TestHashInvariantUnderHopMutation(t *testing.T) {
	p := samplePacket(20)
	h1 := p.Hash()
	p.Hops = 99
	h2 := p.Hash()
	if h1 != h2 {
		t.Fatal("packet hash changed when only hop count changed")
	}
}

func TestHashChangesWithPayload(t *testing.T) {
	p := samplePacket(20)
	h1 := p.Hash()
	p.Payload[0] ^= 0xff
	h2 := p.Hash()
	if h1 == h2 {
		t.Fatal("packet hash did not change when payload changed")
	}
}

func TestMTUBoundary(t *testing.T) {
	// Build a packet whose wire size is exactly MTU.
	headerLen := 1 + 1 + DestHashSize + 1 // flags, hops, dest hash, context
	p := samplePacket(MTU - headerLen)
	// Only PLAIN payloads may exceed EncryptedMDU and fill the whole MTU.
	p.DestType = DestinationPlain
	wire, err := Pack(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(wire) != MTU {
		t.Fatalf("wire length = %d, want %d", len(wire), MTU)
	}
	if _, _, err := Unpack(wire); err != nil {
		t.Fatalf("unpack of MTU-sized packet failed: %v", err)
	}

	// One byte over MTU must be rejected by Unpack.
	over := append(wire, 0x00)
	if _, _, err := Unpack(over); err != ErrOversized {
		t.Fatalf("expected ErrOversized, got %v", err)
	}
}

func TestUnpackRejectsShortFrame(t *testing.T) {
	short := make([]byte, minHeaderLen-1)
	if _, _, err := Unpack(short); err != ErrMalformedPacket {
		t.Fatalf("expected ErrMalformedPacket, got %v", err)
	}
}

func TestUnpackRejectsReservedHeaderType(t *testing.T) {
	p := samplePacket(10)
	wire, err := Pack(p)
	if err != nil {
		t.Fatal(err)
	}
	// Bits 7-6 of the flags byte carry HeaderType; only 0 and 1 are defined,
	// so set the field to 3 (both bits) to land in reserved space.
	wire[0] |= 0xC0
	if _, _, err := Unpack(wire); err != ErrReservedBits {
		t.Fatalf("expected ErrReservedBits, got %v", err)
	}
}

func TestUnpackRejectsTruncatedTransportID(t *testing.T) {
	p := samplePacket(10)
	p.HeaderType = HeaderTypeTransported
	wire, err := Pack(p)
	if err != nil {
		t.Fatal(err)
	}
	truncated := wire[:1+1+DestHashSize+5] // cut partway through the transport id
	if _, _, err := Unpack(truncated); err != ErrMalformedPacket {
		t.Fatalf("expected ErrMalformedPacket, got %v", err)
	}
}

func TestHopCountByteIsOpaqueToCodec(t *testing.T) {
	// The codec itself accepts any hop-count byte; only the transport
	// engine's forwarding policy cares about MaxHops.
	for _, hops := range []uint8{0, MaxHops, MaxHops + 1, 255} {
		p := samplePacket(10)
		p.Hops = hops
		wire, err := Pack(p)
		if err != nil {
			t.Fatalf("packing at Hops=%d should succeed: %v", hops, err)
		}
		got, _, err := Unpack(wire)
		if err != nil {
			t.Fatalf("unpacking at Hops=%d should succeed: %v", hops, err)
		}
		if got.Hops != hops {
			t.Fatalf("got Hops=%d, want %d", got.Hops, hops)
		}
	}
}

func TestWireVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, ^uint64(0)}
	for _, v := range values {
		out := WireAppendUint(nil, v)
		var got uint64
		rest := out
		if !WireChopUint(&got, &rest) {
			t.Fatalf("chop failed for %d", v)
		}
		if got != v {
			t.Fatalf("varint round trip: got %d want %d", got, v)
		}
		if len(rest) != 0 {
			t.Fatalf("leftover bytes after chopping %d", v)
		}
	}
}
