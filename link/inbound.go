package link

import (
	"crypto/hmac"
	crand "crypto/rand"

	"github.com/Arceliar/phony"
	"github.com/oasisprotocol/curve25519-voi/primitives/x25519"

	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/identity"
	"github.com/nomadnet/reticulum-go/packet"
)

// HandleInbound processes one payload the host has already identified, via
// transport.TransportAction's PacketType/DestHash fields, as belonging to
// the link engine (LINKREQUEST, PROOF, or a DATA packet addressed to a
// link_id). It performs no I/O; the host applies the returned batch,
// typically by handing any ActionSend.Wire to transport.Engine.Outbound.
func (m *Manager) HandleInbound(pt packet.PacketType, destHash destination.Hash, payload []byte, packetHash packet.Hash, now float64) ([]Action, error) {
	var actions []Action
	var err error
	phony.Block(m, func() {
		switch pt {
		case packet.PacketTypeLinkRequest:
			actions, err = m.handleLinkRequest(destHash, payload, packetHash, now)
		case packet.PacketTypeProof:
			actions, err = m.handleProof(destHash, payload, now)
		case packet.PacketTypeData:
			actions, err = m.handleData(destHash, payload, now)
		default:
			err = ErrMalformed
		}
	})
	return actions, err
}

func (m *Manager) handleLinkRequest(peerDestHash destination.Hash, payload []byte, packetHash packet.Hash, now float64) ([]Action, error) {
	var linkID [16]byte
	copy(linkID[:], packetHash[:])

	if _, exists := m.links[linkID]; exists {
		// Retransmitted LINKREQUEST for a handshake already underway; the
		// original PROOF is either already in flight or already acked.
		return nil, nil
	}

	ephPubI, err := decodeLinkRequest(payload)
	if err != nil {
		return nil, err
	}

	var ephPrivR, ephPubR [32]byte
	usingRatchet := false
	if ring, ok := m.responderRatchets[peerDestHash]; ok {
		if priv, pub, ok := ring.Current(); ok {
			ephPrivR, ephPubR = priv, pub
			usingRatchet = true
		}
	}
	if !usingRatchet {
		if _, rerr := crand.Read(ephPrivR[:]); rerr != nil {
			return nil, rerr
		}
		pubBytes, rerr := x25519.X25519(ephPrivR[:], x25519.Basepoint)
		if rerr != nil {
			return nil, rerr
		}
		copy(ephPubR[:], pubBytes)
	}

	shared, err := x25519.X25519(ephPrivR[:], ephPubI[:])
	if err != nil {
		return nil, err
	}
	aesKey, hmacKey, err := identity.DeriveLinkKeys(shared, linkID[:])
	if err != nil {
		return nil, err
	}

	l := &Link{
		ID:                linkID,
		Role:              RoleResponder,
		State:             StateHandshake,
		PeerDestHash:      peerDestHash,
		localEphPriv:      ephPrivR,
		localEphPub:       ephPubR,
		remoteEphPub:      ephPubI,
		usingRatchet:      usingRatchet,
		aesKey:            aesKey,
		hmacKey:           hmacKey,
		CreatedAt:         now,
		LastInboundAt:     now,
		HandshakeDeadline: now + m.cfg.handshakeTimeout.Seconds(),
	}
	m.links[linkID] = l
	m.engine.RegisterLocalLink(linkID, l.HandshakeDeadline)

	mac := computeProofMAC(hmacKey, linkID, ephPubR)
	proofPayload := encodeProof(proofMessage{EphPub: ephPubR, MAC: mac})
	p := &packet.Packet{
		HeaderType: packet.HeaderTypeDirect,
		DestType:   packet.DestinationLink,
		PacketType: packet.PacketTypeProof,
		Payload:    proofPayload,
	}
	copy(p.DestHash[:], linkID[:])
	wire, err := packet.Pack(p)
	if err != nil {
		return nil, err
	}
	l.LastOutboundAt = now
	return []Action{sendAction(linkID, linkDestHash(linkID), wire)}, nil
}

func (m *Manager) handleProof(destHash destination.Hash, payload []byte, now float64) ([]Action, error) {
	var linkID [16]byte
	copy(linkID[:], destHash[:])

	l, ok := m.links[linkID]
	if !ok {
		return nil, ErrUnknownLink
	}
	msg, err := decodeProof(payload)
	if err != nil {
		return nil, err
	}

	switch {
	case l.Role == RoleInitiator && l.State == StatePending:
		l.remoteEphPub = msg.EphPub
		shared, derr := x25519.X25519(l.localEphPriv[:], msg.EphPub[:])
		if derr != nil {
			return nil, derr
		}
		aesKey, hmacKey, derr := identity.DeriveLinkKeys(shared, linkID[:])
		if derr != nil {
			return nil, derr
		}
		wantMAC := computeProofMAC(hmacKey, linkID, msg.EphPub)
		if !hmac.Equal(wantMAC[:], msg.MAC[:]) {
			return []Action{m.closeLink(l, CloseReasonHandshakeTimeout)}, ErrHandshakeMismatch
		}
		l.aesKey, l.hmacKey = aesKey, hmacKey
		l.LastInboundAt = now

		myMAC := computeProofMAC(hmacKey, linkID, l.localEphPub)
		p := &packet.Packet{
			HeaderType: packet.HeaderTypeDirect,
			DestType:   packet.DestinationLink,
			PacketType: packet.PacketTypeProof,
			Payload:    encodeProof(proofMessage{EphPub: l.localEphPub, MAC: myMAC}),
		}
		copy(p.DestHash[:], linkID[:])
		wire, perr := packet.Pack(p)
		if perr != nil {
			return nil, perr
		}
		l.LastOutboundAt = now
		l.State = StateActive
		m.engine.PromoteLocalLink(l.ID)
		return []Action{sendAction(l.ID, linkDestHash(l.ID), wire), establishedAction(l.ID)}, nil

	case l.Role == RoleResponder && l.State == StateHandshake:
		if msg.EphPub != l.remoteEphPub {
			return nil, ErrHandshakeMismatch
		}
		wantMAC := computeProofMAC(l.hmacKey, linkID, msg.EphPub)
		if !hmac.Equal(wantMAC[:], msg.MAC[:]) {
			return []Action{m.closeLink(l, CloseReasonHandshakeTimeout)}, ErrHandshakeMismatch
		}
		l.LastInboundAt = now
		l.State = StateActive
		m.engine.PromoteLocalLink(l.ID)
		return []Action{establishedAction(l.ID)}, nil

	default:
		// Duplicate or out-of-order PROOF for a link already past this
		// step; ignore rather than re-verify against now-stale state.
		return nil, nil
	}
}

func (m *Manager) handleData(destHash destination.Hash, payload []byte, now float64) ([]Action, error) {
	var linkID [16]byte
	copy(linkID[:], destHash[:])

	l, ok := m.links[linkID]
	if !ok {
		return nil, ErrUnknownLink
	}
	if l.State == StateClosed || l.aesKey == nil {
		return nil, ErrNotActive
	}

	plaintext, err := identity.DecryptWithKeys(l.aesKey, l.hmacKey, payload)
	if err != nil {
		return nil, err
	}
	seq, ctrl, body, err := decodePlaintext(plaintext)
	if err != nil {
		return nil, err
	}
	if !l.acceptSeq(seq) {
		return nil, ErrReplay
	}
	l.LastInboundAt = now
	if l.State == StateStale {
		l.State = StateActive
	}

	switch ctrl {
	case linkCtrlPayload:
		return []Action{deliverAction(linkID, body)}, nil
	case linkCtrlKeepalive:
		return nil, nil
	case linkCtrlIdentify:
		return m.handleIdentify(l, body)
	case linkCtrlTeardown:
		return []Action{m.closeLink(l, CloseReasonTeardownReceived)}, nil
	default:
		return nil, ErrMalformed
	}
}

func (m *Manager) handleIdentify(l *Link, body []byte) ([]Action, error) {
	const pubKeySize = identity.KeySize
	const sigSize = 64
	if len(body) != pubKeySize+sigSize {
		return nil, ErrMalformed
	}
	peerID, err := identity.FromPublicBytes(body[:pubKeySize])
	if err != nil {
		return nil, err
	}
	sig := body[pubKeySize:]
	sigMsg := append(append([]byte{}, l.ID[:]...), m.id.PublicBytes()...)
	if !peerID.ValidateSignature(sigMsg, sig) {
		return nil, ErrHandshakeMismatch
	}
	l.PeerIdentity = peerID
	return []Action{identifiedAction(l.ID, peerID.Hash())}, nil
}
