package link

import (
	"github.com/Arceliar/phony"

	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/identity"
	"github.com/nomadnet/reticulum-go/packet"
)

// packLinkData encrypts a control-tagged body under l's session keys and
// packs it as a DATA packet addressed to the link (DestType=LINK,
// dest_hash=link_id).
func (l *Link) packLinkData(ctrl byte, body []byte, now float64) ([]byte, error) {
	seq := l.seqOut
	l.seqOut++
	plaintext := encodePlaintext(seq, ctrl, body)
	token, err := identity.EncryptWithKeys(l.aesKey, l.hmacKey, plaintext)
	if err != nil {
		return nil, err
	}
	p := &packet.Packet{
		HeaderType: packet.HeaderTypeDirect,
		DestType:   packet.DestinationLink,
		PacketType: packet.PacketTypeData,
		Payload:    token,
	}
	copy(p.DestHash[:], l.ID[:])
	wire, err := packet.Pack(p)
	if err != nil {
		return nil, err
	}
	l.LastOutboundAt = now
	return wire, nil
}

func linkDestHash(id [16]byte) destination.Hash {
	var d destination.Hash
	copy(d[:], id[:])
	return d
}

// Send encrypts and packs an application payload on an ACTIVE link,
// returning the wire bytes the host must hand to transport.Outbound
// addressed via linkDestHash(id).
func (m *Manager) Send(id [16]byte, payload []byte, now float64) ([]Action, error) {
	var actions []Action
	var err error
	phony.Block(m, func() {
		l, ok := m.links[id]
		if !ok {
			err = ErrUnknownLink
			return
		}
		if l.State != StateActive && l.State != StateStale {
			err = ErrNotActive
			return
		}
		var wire []byte
		wire, err = l.packLinkData(linkCtrlPayload, payload, now)
		if err != nil {
			return
		}
		actions = []Action{sendAction(id, linkDestHash(id), wire)}
	})
	return actions, err
}

// Identify sends the optional in-link identity binding: the initiator's
// long-term public key plus a signature over link_id ∥ responder_pubkey.
// Only meaningful for the initiator side of a link whose peer identity was
// supplied to Open.
func (m *Manager) Identify(id [16]byte, now float64) ([]Action, error) {
	var actions []Action
	var err error
	phony.Block(m, func() {
		l, ok := m.links[id]
		if !ok {
			err = ErrUnknownLink
			return
		}
		if l.Role != RoleInitiator || l.PeerIdentity == nil {
			err = ErrNotActive
			return
		}
		if l.State != StateActive && l.State != StateStale {
			err = ErrNotActive
			return
		}
		sigMsg := append(append([]byte{}, l.ID[:]...), l.PeerIdentity.PublicBytes()...)
		sig := m.id.Sign(sigMsg)
		body := append(append([]byte{}, m.id.PublicBytes()...), sig...)
		wire, perr := l.packLinkData(linkCtrlIdentify, body, now)
		if perr != nil {
			err = perr
			return
		}
		actions = []Action{sendAction(id, linkDestHash(id), wire)}
	})
	return actions, err
}

// Teardown sends a best-effort TEARDOWN and closes the link locally.
// Either side may initiate teardown at any time.
func (m *Manager) Teardown(id [16]byte, now float64) ([]Action, error) {
	var actions []Action
	var err error
	phony.Block(m, func() {
		l, ok := m.links[id]
		if !ok {
			err = ErrUnknownLink
			return
		}
		if l.State == StateClosed {
			return
		}
		if l.aesKey != nil {
			if wire, perr := l.packLinkData(linkCtrlTeardown, nil, now); perr == nil {
				actions = append(actions, sendAction(id, linkDestHash(id), wire))
			}
		}
		actions = append(actions, m.closeLink(l, CloseReasonLocal))
	})
	return actions, err
}
