package link

import (
	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/packet"
)

const (
	ephemeralKeySize = 32
	proofMACSize     = 32
)

// computeLinkID derives link_id = trunc16(SHA256(request_hashable)) by
// packing the would-be LINKREQUEST packet and taking its packet hash.
// Both ends compute this independently from the same bytes: the initiator
// before sending, the responder from the packet hash transport.Inbound
// already returns it.
func computeLinkID(peerDestHash destination.Hash, ephPub [ephemeralKeySize]byte) [16]byte {
	p := &packet.Packet{
		HeaderType: packet.HeaderTypeDirect,
		DestType:   packet.DestinationSingle,
		PacketType: packet.PacketTypeLinkRequest,
		Context:    0,
		Payload:    ephPub[:],
	}
	copy(p.DestHash[:], peerDestHash[:])
	h := p.Hash()
	var id [16]byte
	copy(id[:], h[:])
	return id
}

// encodeLinkRequest serializes the LINKREQUEST payload: ephemeral_pub(32).
func encodeLinkRequest(ephPub [ephemeralKeySize]byte) []byte {
	return append([]byte(nil), ephPub[:]...)
}

func decodeLinkRequest(payload []byte) (ephPub [ephemeralKeySize]byte, err error) {
	if len(payload) != ephemeralKeySize {
		return ephPub, ErrMalformed
	}
	copy(ephPub[:], payload)
	return ephPub, nil
}

// proofMessage is the decoded PROOF payload: ephemeral_pub(32) ∥
// HMAC_SHA256(session_subkey, link_id ∥ ephemeral_pub).
// The same shape carries both the responder's first proof and the
// initiator's confirming proof; which ephemeral key it wraps tells the
// receiver which step of the handshake it just completed.
type proofMessage struct {
	EphPub [ephemeralKeySize]byte
	MAC    [proofMACSize]byte
}

func encodeProof(m proofMessage) []byte {
	out := make([]byte, 0, ephemeralKeySize+proofMACSize)
	out = append(out, m.EphPub[:]...)
	out = append(out, m.MAC[:]...)
	return out
}

func decodeProof(payload []byte) (proofMessage, error) {
	var m proofMessage
	if len(payload) != ephemeralKeySize+proofMACSize {
		return m, ErrMalformed
	}
	copy(m.EphPub[:], payload[:ephemeralKeySize])
	copy(m.MAC[:], payload[ephemeralKeySize:])
	return m, nil
}
