package resource

import (
	crand "crypto/rand"
	"crypto/sha256"

	"github.com/Arceliar/phony"

	"github.com/nomadnet/reticulum-go/link"
)

// Manager owns every Transfer this node is a party to, layered over a
// *link.Manager exactly as link.Manager layers over *transport.Engine.
type Manager struct {
	phony.Inbox

	links *link.Manager
	cfg   config

	transfers map[transferKey]*Transfer
}

// New constructs a Manager bound to links, used to address every resource
// message as an encrypted link payload; Manager never touches transport or
// raw interfaces itself.
func New(links *link.Manager, opts ...Option) *Manager {
	m := &Manager{
		links:     links,
		transfers: make(map[transferKey]*Transfer),
	}
	opts = append([]Option{configDefaults()}, opts...)
	for _, opt := range opts {
		opt(&m.cfg)
	}
	return m
}

// Send begins sending payload over linkID: it segments and optionally
// compresses the payload, then transmits the advertisement; actual part
// transmission starts once HandleInbound sees the receiver's accept.
// Returns the new resource_id and the advertisement's ActionSend.
func (m *Manager) Send(linkID [16]byte, payload []byte, now float64) (resourceID [16]byte, actions []Action, err error) {
	if len(payload) > maxPayloadSize {
		return resourceID, nil, ErrTooLarge
	}
	phony.Block(m, func() {
		if _, rerr := crand.Read(resourceID[:]); rerr != nil {
			err = rerr
			return
		}
		expectedHash := sha256.Sum256(payload)

		effective := payload
		compressed := false
		if c, ok := compress(payload); ok {
			effective = c
			compressed = true
		}
		parts := segment(effective)

		t := &Transfer{
			ResourceID:   resourceID,
			LinkID:       linkID,
			Role:         RoleSender,
			State:        StateAdvertised,
			TotalSize:    uint32(len(payload)),
			PartCount:    uint32(len(parts)),
			ExpectedHash: expectedHash,
			Compressed:   compressed,
			CreatedAt:    now,
			Deadline:     now + m.cfg.overallDeadline.Seconds(),
			win:          newWindow(),
			parts:        parts,
			sentAt:       make(map[uint32]float64),
			retries:      make(map[uint32]int),
		}
		m.transfers[t.key()] = t

		wire := encodeAdvertise(advertiseMsg{
			ResourceID: resourceID,
			TotalSize:  t.TotalSize,
			PartCount:  t.PartCount,
			Hash:       expectedHash,
			Compressed: compressed,
		})
		var sendErr error
		actions, sendErr = m.sendOverLink(t, wire, now)
		err = sendErr
	})
	return resourceID, actions, err
}

// Get returns a snapshot of a tracked Transfer's state.
func (m *Manager) Get(linkID, resourceID [16]byte) (snapshot Transfer, ok bool) {
	phony.Block(m, func() {
		t, found := m.transfers[transferKey{LinkID: linkID, ResourceID: resourceID}]
		if !found {
			return
		}
		snapshot = *t
		ok = true
	})
	return
}

// sendOverLink packs raw as a link payload via m.links.Send and translates
// the resulting link.Action batch into this package's own Action type.
func (m *Manager) sendOverLink(t *Transfer, raw []byte, now float64) ([]Action, error) {
	linkActions, err := m.links.Send(t.LinkID, raw, now)
	if err != nil {
		return nil, err
	}
	var out []Action
	for _, a := range linkActions {
		if a.Kind == link.ActionSend {
			out = append(out, sendAction(t.ResourceID, t.LinkID, a.DestHash, a.Wire))
		}
	}
	return out, nil
}

func (m *Manager) fail(t *Transfer, reason FailReason, now float64) []Action {
	t.State = StateFailed
	t.FailReason = reason
	delete(m.transfers, t.key())
	wire := encodeFailed(t.ResourceID, reason)
	actions, _ := m.sendOverLink(t, wire, now)
	return append(actions, failedAction(t.ResourceID, t.LinkID, reason))
}

// LinkClosed fails every Transfer bound to linkID. A host calls this once
// link.Manager reports the link reached CLOSED.
func (m *Manager) LinkClosed(linkID [16]byte, now float64) []Action {
	var actions []Action
	phony.Block(m, func() {
		for key, t := range m.transfers {
			if key.LinkID != linkID {
				continue
			}
			t.State = StateFailed
			t.FailReason = FailReasonLinkClosed
			delete(m.transfers, key)
			actions = append(actions, failedAction(t.ResourceID, t.LinkID, FailReasonLinkClosed))
		}
	})
	return actions
}
