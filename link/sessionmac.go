package link

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/Arceliar/phony"
)

// SessionMAC computes HMAC-SHA256(message) under id's established session
// HMAC key, for higher-level protocols layered over a link (such as a
// bulk-transfer engine's completion proof) that need a link-bound
// authenticator without this package exposing its raw session keys. Only
// meaningful once the link has completed its handshake.
func (m *Manager) SessionMAC(id [16]byte, message []byte) (mac [32]byte, ok bool) {
	phony.Block(m, func() {
		l, found := m.links[id]
		if !found || l.hmacKey == nil {
			return
		}
		h := hmac.New(sha256.New, l.hmacKey)
		h.Write(message)
		copy(mac[:], h.Sum(nil))
		ok = true
	})
	return mac, ok
}
