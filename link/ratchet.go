package link

import (
	crand "crypto/rand"
	"time"

	"github.com/Arceliar/phony"
	"github.com/oasisprotocol/curve25519-voi/primitives/x25519"

	"github.com/nomadnet/reticulum-go/destination"
)

// ratchetRetention is how long a retired ratchet key is kept in the ring
// after rotation before Expire purges it. New handshakes use only the
// current key; an established link keeps its own derived keys and does not
// read the ring.
const ratchetRetention = 30 * time.Minute

type ratchetKey struct {
	priv      [32]byte
	pub       [32]byte
	issuedAt  float64
	retiredAt float64 // 0 while still current
}

// ratchetRing holds a local destination's rotating X25519 keys: at most one
// current key plus however many retired keys are still within their
// retention window.
type ratchetRing struct {
	keys []ratchetKey
}

func newRatchetRing() *ratchetRing { return &ratchetRing{} }

// Rotate generates a fresh key, retiring the previous current one (if any).
func (r *ratchetRing) Rotate(now float64) error {
	for i := range r.keys {
		if r.keys[i].retiredAt == 0 {
			r.keys[i].retiredAt = now
		}
	}
	var priv [32]byte
	if _, err := crand.Read(priv[:]); err != nil {
		return err
	}
	pubBytes, err := x25519.X25519(priv[:], x25519.Basepoint)
	if err != nil {
		return err
	}
	var pub [32]byte
	copy(pub[:], pubBytes)
	r.keys = append(r.keys, ratchetKey{priv: priv, pub: pub, issuedAt: now})
	return nil
}

// Current returns the active (non-retired) key, if one has been generated.
func (r *ratchetRing) Current() (priv, pub [32]byte, ok bool) {
	for i := len(r.keys) - 1; i >= 0; i-- {
		if r.keys[i].retiredAt == 0 {
			return r.keys[i].priv, r.keys[i].pub, true
		}
	}
	return priv, pub, false
}

// Expire drops retired keys past their retention window.
func (r *ratchetRing) Expire(now float64) {
	kept := r.keys[:0]
	for _, k := range r.keys {
		if k.retiredAt == 0 || now-k.retiredAt < ratchetRetention.Seconds() {
			kept = append(kept, k)
		}
	}
	r.keys = kept
}

// peerRatchet is the initiator side's cached record of a destination's
// currently-advertised ratchet public key, learned from that destination's
// announces. A host that decodes an announce's ratchet_pub calls
// Manager.NoteRatchet to populate this. Open does not consult the record:
// the responder's handshake key (its current ratchet key when one is
// enabled) reaches the initiator in the responder's PROOF.
type peerRatchet struct {
	pub       [32]byte
	expiresAt float64
}

// ratchetHorizon bounds how long a learned peer ratchet record is kept;
// Tick drops records past it.
const ratchetHorizon = 6 * time.Hour

// NoteRatchet records destHash's currently-advertised ratchet public key
// until ratchetHorizon passes; Open does not read it.
func (m *Manager) NoteRatchet(destHash destination.Hash, pub [32]byte, now float64) {
	phony.Block(m, func() {
		m.peerRatchets[destHash] = peerRatchet{pub: pub, expiresAt: now + ratchetHorizon.Seconds()}
	})
}

// peerRatchetPub returns destHash's known ratchet public key, if any is
// still unexpired.
func (m *Manager) peerRatchetPub(destHash destination.Hash, now float64) (pub [32]byte, ok bool) {
	rec, found := m.peerRatchets[destHash]
	if !found || rec.expiresAt <= now {
		return pub, false
	}
	return rec.pub, true
}
