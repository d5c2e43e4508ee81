package link

import (
	"crypto/hmac"
	"crypto/sha256"
)

// computeProofMAC computes HMAC_SHA256(session_subkey, link_id ∥
// ephemeral_pub), the handshake's proof-of-possession MAC. This is a
// direct protocol-level MAC distinct from identity's encrypted-token
// construction (which MACs an IV∥ciphertext pair instead), so it is
// computed directly with the standard library rather than routed through
// identity's token helpers.
func computeProofMAC(hmacKey []byte, linkID [16]byte, ephPub [32]byte) [32]byte {
	h := hmac.New(sha256.New, hmacKey)
	h.Write(linkID[:])
	h.Write(ephPub[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
