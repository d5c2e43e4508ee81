// Package packet implements Reticulum's on-wire packet format: header
// flags, destination-hash addressing, context byte, and the hashable
// region used both for packet identity and for deduplication.
//
// Pack and Unpack are pure and deterministic, following the same
// encode/decode/size triad used throughout this module's wire codecs.
package packet

import (
	"crypto/sha256"
	"errors"
)

// Size limits for the wire format.
const (
	MTU             = 500 // maximum overall packet length in bytes
	EncryptedMDU    = 383 // maximum encrypted payload data unit
	HashSize        = 16
	DestHashSize    = 16
	TransportIDSize = 16
	MaxHops         = 128
)

// HeaderType distinguishes a direct two-address-field packet from one
// carrying an extra transport-id (routed) field.
type HeaderType uint8

const (
	HeaderTypeDirect      HeaderType = 0 // one 16-byte address field
	HeaderTypeTransported HeaderType = 1 // two 16-byte address fields
)

// PropagationType distinguishes broadcast flooding from transport-routed
// unicast forwarding.
type PropagationType uint8

const (
	PropagationBroadcast PropagationType = 0
	PropagationTransport PropagationType = 1
)

// DestinationType mirrors destination.Type at the wire level.
type DestinationType uint8

const (
	DestinationSingle DestinationType = 0
	DestinationGroup  DestinationType = 1
	DestinationPlain  DestinationType = 2
	DestinationLink   DestinationType = 3
)

// PacketType distinguishes the four packet kinds exchanged on the wire.
type PacketType uint8

const (
	PacketTypeData        PacketType = 0
	PacketTypeAnnounce    PacketType = 1
	PacketTypeLinkRequest PacketType = 2
	PacketTypeProof       PacketType = 3
)

// Errors returned by unpack. These are protocol-level: counted by the
// transport engine, never surfaced above it.
var (
	ErrMalformedPacket = errors.New("packet: malformed packet")
	ErrOversized       = errors.New("packet: exceeds MTU")
	ErrReservedBits    = errors.New("packet: reserved flag bits set")
)

// minHeaderLen is the shortest possible valid frame: flags(1) + hops(1) +
// dest_hash(16) + context(1), with no payload and no transport-id.
const minHeaderLen = 1 + 1 + DestHashSize + 1

// Hash is the 16-byte packet identity used for deduplication and proof
// binding.
type Hash [HashSize]byte

// Packet is the structured, decoded form of a wire frame.
type Packet struct {
	HeaderType     HeaderType
	Propagation    PropagationType
	DestType       DestinationType
	PacketType     PacketType
	AccessCode     bool
	Hops           uint8
	DestHash       [DestHashSize]byte
	TransportID    [TransportIDSize]byte // only meaningful if HeaderType == HeaderTypeTransported
	HasTransportID bool
	Context        byte
	Payload        []byte
}

// flagsByte packs the 8 flag bits of byte 0: bit 7-6: header type, bit5:
// propagation type, bit4-3: destination type, bit2-1: packet type, bit0:
// access code flag.
func flagsByte(p *Packet) byte {
	var b byte
	b |= byte(p.HeaderType&0x3) << 6
	b |= byte(p.Propagation&0x1) << 5
	b |= byte(p.DestType&0x3) << 3
	b |= byte(p.PacketType&0x3) << 1
	if p.AccessCode {
		b |= 0x1
	}
	return b
}

func parseFlagsByte(b byte) (ht HeaderType, prop PropagationType, dt DestinationType, pt PacketType, access bool) {
	ht = HeaderType((b >> 6) & 0x3)
	prop = PropagationType((b >> 5) & 0x1)
	dt = DestinationType((b >> 3) & 0x3)
	pt = PacketType((b >> 1) & 0x3)
	access = b&0x1 != 0
	return
}

// Pack serializes p into its wire representation. The hop-count byte is
// opaque to the codec (0-255); whether a given count is still eligible to
// be forwarded is a transport-engine forwarding policy, not a codec
// invariant.
func Pack(p *Packet) ([]byte, error) {
	if len(p.Payload) > EncryptedMDU && p.DestType != DestinationPlain {
		// Encrypted payloads are bounded by EncryptedMDU; plain traffic is
		// bounded only by the MTU check below.
		return nil, ErrOversized
	}
	out := make([]byte, 0, MTU)
	out = append(out, flagsByte(p))
	out = append(out, p.Hops)
	out = append(out, p.DestHash[:]...)
	if p.HeaderType == HeaderTypeTransported {
		out = append(out, p.TransportID[:]...)
	}
	out = append(out, p.Context)
	out = append(out, p.Payload...)
	if len(out) > MTU {
		return nil, ErrOversized
	}
	return out, nil
}

// Unpack deserializes a wire frame into a Packet, computing its packet
// hash. Unpack is total: malformed frames yield ErrMalformedPacket/
// ErrOversized and no partial Packet is returned.
func Unpack(data []byte) (*Packet, Hash, error) {
	if len(data) > MTU {
		return nil, Hash{}, ErrOversized
	}
	if len(data) < minHeaderLen {
		return nil, Hash{}, ErrMalformedPacket
	}
	ht, prop, dt, pt, access := parseFlagsByte(data[0])
	if ht > HeaderTypeTransported {
		return nil, Hash{}, ErrReservedBits
	}
	p := &Packet{
		HeaderType:  ht,
		Propagation: prop,
		DestType:    dt,
		PacketType:  pt,
		AccessCode:  access,
		Hops:        data[1],
	}
	rest := data[2:]
	if len(rest) < DestHashSize {
		return nil, Hash{}, ErrMalformedPacket
	}
	copy(p.DestHash[:], rest[:DestHashSize])
	rest = rest[DestHashSize:]

	if ht == HeaderTypeTransported {
		if len(rest) < TransportIDSize {
			return nil, Hash{}, ErrMalformedPacket
		}
		copy(p.TransportID[:], rest[:TransportIDSize])
		p.HasTransportID = true
		rest = rest[TransportIDSize:]
	}

	if len(rest) < 1 {
		return nil, Hash{}, ErrMalformedPacket
	}
	p.Context = rest[0]
	p.Payload = append([]byte(nil), rest[1:]...)

	if len(p.Payload) > EncryptedMDU && p.DestType != DestinationPlain {
		return nil, Hash{}, ErrOversized
	}

	return p, p.computeHash(), nil
}

// hashablePart returns the region of the packet that participates in the
// packet hash: the flags-and-zeroed-hops header, the addressing fields,
// the context byte, and the payload. Hop count is excluded so the hash is
// stable across forwarding.
func (p *Packet) hashablePart() []byte {
	out := make([]byte, 0, MTU)
	out = append(out, flagsByte(p))
	out = append(out, 0) // hops zeroed
	out = append(out, p.DestHash[:]...)
	if p.HeaderType == HeaderTypeTransported {
		out = append(out, p.TransportID[:]...)
	}
	out = append(out, p.Context)
	out = append(out, p.Payload...)
	return out
}

func (p *Packet) computeHash() Hash {
	sum := sha256.Sum256(p.hashablePart())
	var h Hash
	copy(h[:], sum[:HashSize])
	return h
}

// Hash recomputes the packet hash. Exposed so callers that mutate Hops
// in-place while forwarding can confirm the hash is unaffected.
func (p *Packet) Hash() Hash { return p.computeHash() }
