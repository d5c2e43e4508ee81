package link

import "github.com/Arceliar/phony"

// Tick drives every timing-based state transition a Manager is responsible
// for: handshake timeouts, ACTIVE→STALE on silence, STALE keepalive
// retransmission is not distinguished from ACTIVE's — both send a
// keepalive on outbound silence — and the final STALE→CLOSED teardown. A
// host calls this on its own schedule (e.g. once a second); Tick itself
// performs no I/O, only returning the actions the host must carry out.
func (m *Manager) Tick(now float64) []Action {
	var actions []Action
	phony.Block(m, func() {
		for _, l := range m.links {
			switch l.State {
			case StatePending, StateHandshake:
				if now >= l.HandshakeDeadline {
					actions = append(actions, m.closeLink(l, CloseReasonHandshakeTimeout))
				}
			case StateActive:
				if now-l.LastInboundAt >= m.cfg.staleAfter().Seconds() {
					l.State = StateStale
				}
				actions = append(actions, m.tickKeepalive(l, now)...)
			case StateStale:
				if now-l.LastInboundAt >= m.cfg.staleAfter().Seconds()+m.cfg.teardownThreshold.Seconds() {
					if wire, err := l.packLinkData(linkCtrlTeardown, nil, now); err == nil {
						actions = append(actions, sendAction(l.ID, linkDestHash(l.ID), wire))
					}
					actions = append(actions, m.closeLink(l, CloseReasonStaleTimeout))
					continue
				}
				actions = append(actions, m.tickKeepalive(l, now)...)
			}
		}
		for _, ring := range m.responderRatchets {
			ring.Expire(now)
		}
		for destHash, rec := range m.peerRatchets {
			if rec.expiresAt <= now {
				delete(m.peerRatchets, destHash)
			}
		}
	})
	return actions
}

// tickKeepalive emits a keepalive if l has been silent outbound for at
// least cfg.keepalive; closed/handshake links never reach here.
func (m *Manager) tickKeepalive(l *Link, now float64) []Action {
	if now-l.LastOutboundAt < m.cfg.keepalive.Seconds() {
		return nil
	}
	wire, err := l.packLinkData(linkCtrlKeepalive, nil, now)
	if err != nil {
		return nil
	}
	return []Action{sendAction(l.ID, linkDestHash(l.ID), wire)}
}
