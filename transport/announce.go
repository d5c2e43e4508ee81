package transport

import (
	crand "crypto/rand"
	"errors"

	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/identity"
	"github.com/nomadnet/reticulum-go/packet"
)

const (
	announceNonceSize   = 10
	announceRatchetSize = 32
)

// announceContext distinguishes a plain announce from one carrying a
// ratchet key, carried in the packet's context byte the same way
// packet.PacketType already reserves a byte for per-type metadata.
const (
	announceContextPlain   byte = 0x00
	announceContextRatchet byte = 0x01
)

// ErrDecode is returned when an announce's wire payload is truncated or
// malformed.
var ErrDecode = errors.New("transport: malformed announce")

// Announce is the decoded, structured form of the announce payload carried
// by a PacketTypeAnnounce packet.
type Announce struct {
	PubKey     [identity.KeySize]byte
	NameHash   [announceNonceSize]byte
	RandomHash [announceNonceSize]byte
	HasRatchet bool
	RatchetPub [announceRatchetSize]byte
	Signature  [64]byte
	AppData    []byte
}

// bytesForSig reconstructs the signed region: dest_hash ∥ pubkey ∥
// name_hash ∥ random_hash ∥ [ratchet_pub] ∥ app_data.
func (a *Announce) bytesForSig(destHash destination.Hash) []byte {
	out := make([]byte, 0, 16+identity.KeySize+2*announceNonceSize+announceRatchetSize+len(a.AppData))
	out = append(out, destHash[:]...)
	out = append(out, a.PubKey[:]...)
	out = append(out, a.NameHash[:]...)
	out = append(out, a.RandomHash[:]...)
	if a.HasRatchet {
		out = append(out, a.RatchetPub[:]...)
	}
	out = append(out, a.AppData...)
	return out
}

// Encode serializes the announce payload (without the packet header) and
// returns the context byte the caller should set on the enclosing Packet.
func (a *Announce) Encode() (payload []byte, context byte) {
	out := make([]byte, 0, identity.KeySize+2*announceNonceSize+announceRatchetSize+64+len(a.AppData))
	out = append(out, a.PubKey[:]...)
	out = append(out, a.NameHash[:]...)
	out = append(out, a.RandomHash[:]...)
	ctx := announceContextPlain
	if a.HasRatchet {
		out = append(out, a.RatchetPub[:]...)
		ctx = announceContextRatchet
	}
	out = append(out, a.Signature[:]...)
	out = append(out, a.AppData...)
	return out, ctx
}

// DecodeAnnounce parses an announce payload given the context byte carried
// by its enclosing Packet.
func DecodeAnnounce(payload []byte, context byte) (*Announce, error) {
	a := &Announce{HasRatchet: context == announceContextRatchet}
	if !packet.WireChopSlice(a.PubKey[:], &payload) {
		return nil, ErrDecode
	}
	if !packet.WireChopSlice(a.NameHash[:], &payload) {
		return nil, ErrDecode
	}
	if !packet.WireChopSlice(a.RandomHash[:], &payload) {
		return nil, ErrDecode
	}
	if a.HasRatchet {
		if !packet.WireChopSlice(a.RatchetPub[:], &payload) {
			return nil, ErrDecode
		}
	}
	if !packet.WireChopSlice(a.Signature[:], &payload) {
		return nil, ErrDecode
	}
	a.AppData = append([]byte(nil), payload...)
	return a, nil
}

// NewAnnounce builds and signs an announce for dest using the identity
// that owns it, optionally advertising a ratchet public key.
func NewAnnounce(id *identity.Identity, destHash destination.Hash, nameHash [announceNonceSize]byte, appData []byte, ratchetPub *[announceRatchetSize]byte) (*Announce, error) {
	a := &Announce{NameHash: nameHash, AppData: appData}
	copy(a.PubKey[:], id.PublicBytes())
	if _, err := crand.Read(a.RandomHash[:]); err != nil {
		return nil, err
	}
	if ratchetPub != nil {
		a.HasRatchet = true
		a.RatchetPub = *ratchetPub
	}
	sig := id.Sign(a.bytesForSig(destHash))
	copy(a.Signature[:], sig)
	return a, nil
}

// Validate checks the announce's signature and the dest_hash binding: the
// signature must verify under the advertised identity, and dest_hash must
// equal trunc16(SHA256(name_hash ∥ trunc16(SHA256(pubkey)))).
func (a *Announce) Validate(destHash destination.Hash) (ok bool, idHash identity.Hash) {
	id, err := identity.FromPublicBytes(a.PubKey[:])
	if err != nil {
		return false, idHash
	}
	idHash = id.Hash()
	wantHash := destination.HashFromParts(a.NameHash, idHash)
	if wantHash != destHash {
		return false, idHash
	}
	if !id.ValidateSignature(a.bytesForSig(destHash), a.Signature[:]) {
		return false, idHash
	}
	return true, idHash
}
