package resource

import "github.com/Arceliar/phony"

// Tick drives every timing-based transition a Manager is responsible for:
// sender-side per-part retransmission on timeout, per-part retry
// exhaustion, and the whole-transfer deadline on either side. A host calls
// this on its own schedule; Tick performs no I/O, only returning the
// actions to carry out.
func (m *Manager) Tick(now float64) []Action {
	var actions []Action
	phony.Block(m, func() {
		for _, t := range m.transfers {
			if now >= t.Deadline {
				actions = append(actions, m.fail(t, FailReasonDeadlineExceeded, now)...)
				continue
			}
			if t.Role != RoleSender || t.State != StateTransferring {
				continue
			}
			retx, failedOut := m.retransmitTimedOutParts(t, now)
			actions = append(actions, retx...)
			if failedOut != nil {
				actions = append(actions, failedOut...)
				continue
			}
			sent, err := m.sendWindow(t, now)
			if err == nil {
				actions = append(actions, sent...)
			}
		}
	})
	return actions
}

// retransmitTimedOutParts resends any unacked part whose deadline has
// elapsed, failing the Transfer outright if any single part exceeds
// maxPartRetries retransmissions. failedOut is non-nil only once the
// transfer has failed, at which point retx should be discarded rather than
// sent.
func (m *Manager) retransmitTimedOutParts(t *Transfer, now float64) (retx []Action, failedOut []Action) {
	for idx, sentAt := range t.sentAt {
		if now-sentAt < m.cfg.partTimeout.Seconds() {
			continue
		}
		if t.retries[idx] >= maxPartRetries {
			return nil, m.fail(t, FailReasonRetryExceeded, now)
		}
		t.retries[idx]++
		t.win.ShrinkOnLoss()
		t.lostInWindow = true
		wire := encodePart(partMsg{ResourceID: t.ResourceID, Index: idx, Data: t.parts[idx]})
		if sent, err := m.sendOverLink(t, wire, now); err == nil {
			t.sentAt[idx] = now
			retx = append(retx, sent...)
		}
	}
	return retx, nil
}
