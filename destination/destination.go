// Package destination implements Reticulum's named-endpoint addressing:
// deriving destination hashes from an identity and a dotted aspect path,
// and the four destination variants (SINGLE, GROUP, PLAIN, LINK) that
// determine how traffic to that endpoint is encrypted.
package destination

import (
	"crypto/sha256"

	"github.com/nomadnet/reticulum-go/identity"
)

// Type distinguishes the four destination variants.
type Type uint8

const (
	// Single addresses one identity; payloads are ECDH-encrypted to its
	// X25519 key.
	Single Type = iota
	// Group addresses a named group; payloads use a pre-shared symmetric key.
	Group
	// Plain carries no encryption at all.
	Plain
	// Link addresses traffic inside an established Link session.
	Link
)

func (t Type) String() string {
	switch t {
	case Single:
		return "SINGLE"
	case Group:
		return "GROUP"
	case Plain:
		return "PLAIN"
	case Link:
		return "LINK"
	default:
		return "UNKNOWN"
	}
}

// NameHashSize is the 80-bit (10-byte) truncation of SHA-256(aspect) used as
// the name component of a destination hash on the wire.
const NameHashSize = 10

// HashSize is the 16-byte truncated destination hash.
const HashSize = identity.HashSize

// Hash is a 16-byte destination identifier.
type Hash [HashSize]byte

// NameHash hashes a dotted aspect path ("example.chat.alpha") the way
// identity.Identity hashes its public key material: truncated SHA-256 of
// the raw aspect bytes, with no case normalization. "Example.Chat" and
// "example.chat" are distinct name components on the wire.
func NameHash(aspects string) [NameHashSize]byte {
	sum := sha256.Sum256([]byte(aspects))
	var out [NameHashSize]byte
	copy(out[:], sum[:NameHashSize])
	return out
}

// Destination names an endpoint: an aspect path plus, for Single, the
// identity that owns it.
type Destination struct {
	Aspects string
	Type    Type
	Ident   *identity.Identity // nil for Plain/Group destinations
}

// New constructs a Destination. For Single destinations ident must be
// non-nil.
func New(aspects string, typ Type, ident *identity.Identity) *Destination {
	return &Destination{Aspects: aspects, Type: typ, Ident: ident}
}

// NameHash returns the 10-byte truncated hash of the aspect path.
func (d *Destination) NameHash() [NameHashSize]byte {
	return NameHash(d.Aspects)
}

// Hash computes dest_hash = trunc16(SHA256(name_hash ∥ trunc16(SHA256(pubkey)))).
// For non-Single destinations, the identity half of the hash is the zero
// hash, matching a PLAIN/GROUP destination's lack of a bound identity.
func (d *Destination) Hash() Hash {
	nameHash := d.NameHash()
	var idHash identity.Hash
	if d.Ident != nil {
		idHash = d.Ident.Hash()
	}
	return HashFromParts(nameHash, idHash)
}

// HashFromParts computes dest_hash directly from a name hash and an
// identity hash, for callers (e.g. announce validation in transport) that
// have already extracted both from wire data rather than holding a live
// Destination value.
func HashFromParts(nameHash [NameHashSize]byte, idHash identity.Hash) Hash {
	buf := make([]byte, 0, NameHashSize+identity.HashSize)
	buf = append(buf, nameHash[:]...)
	buf = append(buf, idHash[:]...)
	sum := sha256.Sum256(buf)
	var h Hash
	copy(h[:], sum[:HashSize])
	return h
}

// Equal reports byte-for-byte hash equality.
func (h Hash) Equal(other Hash) bool { return h == other }

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	var zero Hash
	return h == zero
}
