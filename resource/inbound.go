package resource

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/Arceliar/phony"
)

// HandleInbound processes one resource-protocol message already delivered
// by a link (an ActionDeliverLocal.Raw the host read off link.Manager's
// HandleInbound). It performs no I/O; the host applies the returned batch.
func (m *Manager) HandleInbound(linkID [16]byte, raw []byte, now float64) ([]Action, error) {
	if len(raw) < 1 {
		return nil, ErrMalformed
	}
	kind, body := raw[0], raw[1:]

	var actions []Action
	var err error
	phony.Block(m, func() {
		switch kind {
		case msgAdvertise:
			actions, err = m.handleAdvertise(linkID, body, now)
		case msgAccept:
			actions, err = m.handleAccept(linkID, body, now)
		case msgReject:
			actions, err = m.handleReject(linkID, body, now)
		case msgPart:
			actions, err = m.handlePart(linkID, body, now)
		case msgAck:
			actions, err = m.handleAck(linkID, body, now)
		case msgCompletionProof:
			actions, err = m.handleCompletionProof(linkID, body, now)
		case msgFailed:
			actions, err = m.handleFailedMsg(linkID, body, now)
		default:
			err = ErrMalformed
		}
	})
	return actions, err
}

func (m *Manager) handleAdvertise(linkID [16]byte, body []byte, now float64) ([]Action, error) {
	adv, err := decodeAdvertise(body)
	if err != nil {
		return nil, err
	}
	key := transferKey{LinkID: linkID, ResourceID: adv.ResourceID}
	if _, exists := m.transfers[key]; exists {
		return nil, nil // retransmitted advertisement for one already in progress
	}

	if adv.TotalSize > maxPayloadSize {
		wire := encodeResourceIDOnly(msgReject, adv.ResourceID)
		t := &Transfer{ResourceID: adv.ResourceID, LinkID: linkID}
		return m.sendOverLink(t, wire, now)
	}

	t := &Transfer{
		ResourceID:   adv.ResourceID,
		LinkID:       linkID,
		Role:         RoleReceiver,
		State:        StateTransferring,
		TotalSize:    adv.TotalSize,
		PartCount:    adv.PartCount,
		ExpectedHash: adv.Hash,
		Compressed:   adv.Compressed,
		CreatedAt:    now,
		Deadline:     now + m.cfg.overallDeadline.Seconds(),
		received:     make(map[uint32][]byte),
	}
	m.transfers[key] = t

	wire := encodeResourceIDOnly(msgAccept, adv.ResourceID)
	return m.sendOverLink(t, wire, now)
}

func (m *Manager) handleAccept(linkID [16]byte, body []byte, now float64) ([]Action, error) {
	resourceID, err := decodeResourceIDOnly(body)
	if err != nil {
		return nil, err
	}
	t, ok := m.transfers[transferKey{LinkID: linkID, ResourceID: resourceID}]
	if !ok {
		return nil, ErrUnknownResource
	}
	if t.Role != RoleSender || t.State != StateAdvertised {
		return nil, nil
	}
	t.State = StateTransferring
	return m.sendWindow(t, now)
}

func (m *Manager) handleReject(linkID [16]byte, body []byte, now float64) ([]Action, error) {
	resourceID, err := decodeResourceIDOnly(body)
	if err != nil {
		return nil, err
	}
	t, ok := m.transfers[transferKey{LinkID: linkID, ResourceID: resourceID}]
	if !ok || t.Role != RoleSender {
		return nil, nil
	}
	return m.fail(t, FailReasonRejected, now), nil
}

// sendWindow transmits every part in [t.base, t.base+win.size) that has
// never been sent yet.
func (m *Manager) sendWindow(t *Transfer, now float64) ([]Action, error) {
	limit := t.base + uint32(t.win.size)
	var actions []Action
	for t.nextToSend < t.PartCount && t.nextToSend < limit {
		idx := t.nextToSend
		wire := encodePart(partMsg{ResourceID: t.ResourceID, Index: idx, Data: t.parts[idx]})
		sent, err := m.sendOverLink(t, wire, now)
		if err != nil {
			return actions, err
		}
		actions = append(actions, sent...)
		t.sentAt[idx] = now
		t.nextToSend++
	}
	return actions, nil
}

func (m *Manager) handlePart(linkID [16]byte, body []byte, now float64) ([]Action, error) {
	part, err := decodePart(body)
	if err != nil {
		return nil, err
	}
	t, ok := m.transfers[transferKey{LinkID: linkID, ResourceID: part.ResourceID}]
	if !ok {
		return nil, ErrUnknownResource
	}
	if t.Role != RoleReceiver || t.State != StateTransferring {
		return nil, nil
	}
	if part.Index >= t.PartCount {
		return nil, ErrMalformed
	}
	if _, dup := t.received[part.Index]; !dup {
		t.received[part.Index] = part.Data
	}
	for t.nextExpected < t.PartCount {
		if _, got := t.received[t.nextExpected]; !got {
			break
		}
		t.nextExpected++
	}

	if uint32(len(t.received)) < t.PartCount {
		wire := encodeAck(ackMsg{ResourceID: t.ResourceID, Kind: ackCumulative, Next: t.nextExpected})
		return m.sendOverLink(t, wire, now)
	}
	return m.completeReceive(t, now)
}

func (m *Manager) completeReceive(t *Transfer, now float64) ([]Action, error) {
	t.State = StateCompleting
	reassembled := reassemble(t.received, t.PartCount)

	payload := reassembled
	if t.Compressed {
		decoded, err := decompress(reassembled)
		if err != nil {
			return m.fail(t, FailReasonHashMismatch, now), nil
		}
		payload = decoded
	}

	gotHash := sha256.Sum256(payload)
	if subtle.ConstantTimeCompare(gotHash[:], t.ExpectedHash[:]) != 1 {
		return m.fail(t, FailReasonHashMismatch, now), nil
	}

	t.State = StateComplete
	delete(m.transfers, t.key())

	mac, _ := m.links.SessionMAC(t.LinkID, append(append([]byte{}, t.ResourceID[:]...), t.ExpectedHash[:]...))
	wire := encodeCompletionProof(completionProofMsg{ResourceID: t.ResourceID, MAC: mac})
	actions, err := m.sendOverLink(t, wire, now)
	if err != nil {
		return actions, err
	}
	return append(actions, deliverAction(t.ResourceID, t.LinkID, payload)), nil
}

func (m *Manager) handleAck(linkID [16]byte, body []byte, now float64) ([]Action, error) {
	ack, err := decodeAck(body)
	if err != nil {
		return nil, err
	}
	t, ok := m.transfers[transferKey{LinkID: linkID, ResourceID: ack.ResourceID}]
	if !ok || t.Role != RoleSender || t.State != StateTransferring {
		return nil, nil
	}

	switch ack.Kind {
	case ackCumulative:
		m.applyCumulativeAck(t, ack.Next)
	case ackSelective:
		m.applySelectiveAck(t, ack)
	}
	return m.sendWindow(t, now)
}

func (m *Manager) applyCumulativeAck(t *Transfer, next uint32) {
	if next <= t.base {
		return
	}
	for idx := t.base; idx < next; idx++ {
		delete(t.sentAt, idx)
		delete(t.retries, idx)
	}
	t.base = next
	if !t.lostInWindow {
		t.win.GrowOnFullAck()
	}
	t.lostInWindow = false
}

func (m *Manager) applySelectiveAck(t *Transfer, ack ackMsg) {
	for i := 0; i < len(ack.Bitmap)*8; i++ {
		idx := ack.Base + uint32(i)
		if idx >= t.PartCount || idx < t.base {
			continue
		}
		bit := ack.Bitmap[i/8] & (1 << uint(i%8))
		if bit != 0 {
			delete(t.sentAt, idx)
			delete(t.retries, idx)
			continue
		}
		if _, wasSent := t.sentAt[idx]; wasSent {
			t.retries[idx]++
			t.win.ShrinkOnLoss()
			t.lostInWindow = true
		}
	}
	for t.base < t.PartCount {
		if _, pending := t.sentAt[t.base]; pending {
			break
		}
		t.base++
	}
}

func (m *Manager) handleCompletionProof(linkID [16]byte, body []byte, now float64) ([]Action, error) {
	proof, err := decodeCompletionProof(body)
	if err != nil {
		return nil, err
	}
	t, ok := m.transfers[transferKey{LinkID: linkID, ResourceID: proof.ResourceID}]
	if !ok || t.Role != RoleSender {
		return nil, nil
	}
	want, okMAC := m.links.SessionMAC(linkID, append(append([]byte{}, t.ResourceID[:]...), t.ExpectedHash[:]...))
	if !okMAC || subtle.ConstantTimeCompare(want[:], proof.MAC[:]) != 1 {
		return nil, nil // unauthenticated proof; ignore rather than trust it
	}
	t.State = StateComplete
	delete(m.transfers, t.key())
	return []Action{completeAction(t.ResourceID, t.LinkID)}, nil
}

func (m *Manager) handleFailedMsg(linkID [16]byte, body []byte, now float64) ([]Action, error) {
	resourceID, reason, err := decodeFailed(body)
	if err != nil {
		return nil, err
	}
	t, ok := m.transfers[transferKey{LinkID: linkID, ResourceID: resourceID}]
	if !ok {
		return nil, nil
	}
	t.State = StateFailed
	t.FailReason = reason
	delete(m.transfers, t.key())
	return []Action{failedAction(t.ResourceID, t.LinkID, reason)}, nil
}
