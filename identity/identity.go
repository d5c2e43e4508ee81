// Package identity implements Reticulum's cryptographic identities: a bundled
// X25519 key-agreement keypair and Ed25519 signing keypair, the truncated
// identity hash derived from both public keys, and the encrypt/decrypt/
// sign/validate operations defined over them.
package identity

import (
	crand "crypto/rand"
	"crypto/sha256"
	"errors"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/oasisprotocol/curve25519-voi/primitives/x25519"
)

const (
	// X25519PublicKeySize is the size in bytes of an X25519 public key.
	X25519PublicKeySize = 32
	// X25519PrivateKeySize is the size in bytes of an X25519 private scalar.
	X25519PrivateKeySize = 32
	// Ed25519PublicKeySize is the size in bytes of an Ed25519 public key.
	Ed25519PublicKeySize = ed25519.PublicKeySize
	// Ed25519PrivateKeySize is the size in bytes of an Ed25519 private key.
	Ed25519PrivateKeySize = ed25519.PrivateKeySize
	// ed25519SeedSize is the size in bytes of the Ed25519 private seed that
	// the persisted representation stores in place of the expanded key.
	ed25519SeedSize = 32
	// HashSize is the truncated identity/packet hash size in bytes (128 bits).
	HashSize = 16
	// KeySize is the size of the concatenated public key material hashed to
	// produce an identity hash (X25519 pub ∥ Ed25519 pub).
	KeySize = X25519PublicKeySize + Ed25519PublicKeySize
)

// Hash is a truncated SHA-256 identifier: 16 bytes.
type Hash [HashSize]byte

// ErrInvalidSignature is returned when a signature fails to verify.
var ErrInvalidSignature = errors.New("identity: invalid signature")

// ErrBadPublicKey is returned when public key material is the wrong length.
var ErrBadPublicKey = errors.New("identity: malformed public key")

// Identity bundles an X25519 keypair (for ECDH) and an Ed25519 keypair (for
// signatures). The private halves are optional: an Identity constructed from
// a peer's announce carries only public material.
type Identity struct {
	x25519Pub  [X25519PublicKeySize]byte
	x25519Priv *[X25519PrivateKeySize]byte // nil for public-only identities

	ed25519Pub  ed25519.PublicKey
	ed25519Priv ed25519.PrivateKey // nil for public-only identities
}

// New generates a fresh Identity with both private keys present.
func New() (*Identity, error) {
	var xPriv [X25519PrivateKeySize]byte
	if _, err := crand.Read(xPriv[:]); err != nil {
		return nil, err
	}
	xPub, err := x25519.X25519(xPriv[:], x25519.Basepoint)
	if err != nil {
		return nil, err
	}
	edPub, edPriv, err := ed25519.GenerateKey(crand.Reader)
	if err != nil {
		return nil, err
	}
	id := &Identity{
		x25519Priv:  &xPriv,
		ed25519Priv: edPriv,
	}
	copy(id.x25519Pub[:], xPub)
	id.ed25519Pub = edPub
	return id, nil
}

// FromPrivateBytes reconstructs an Identity from its 64-byte persisted
// representation: X25519 priv (32) ∥ Ed25519 priv (32). Persistence itself
// is an external collaborator's concern; this only deserializes.
func FromPrivateBytes(b []byte) (*Identity, error) {
	if len(b) != X25519PrivateKeySize+ed25519SeedSize {
		return nil, errors.New("identity: wrong private key length")
	}
	var xPriv [X25519PrivateKeySize]byte
	copy(xPriv[:], b[:X25519PrivateKeySize])
	xPub, err := x25519.X25519(xPriv[:], x25519.Basepoint)
	if err != nil {
		return nil, err
	}
	seed := b[X25519PrivateKeySize:]
	edPriv := ed25519.NewKeyFromSeed(seed)
	id := &Identity{x25519Priv: &xPriv, ed25519Priv: edPriv}
	copy(id.x25519Pub[:], xPub)
	id.ed25519Pub = edPriv.Public().(ed25519.PublicKey)
	return id, nil
}

// ToPrivateBytes serializes the 64-byte persisted representation. Panics if
// called on a public-only identity, since there is nothing to persist.
func (id *Identity) ToPrivateBytes() []byte {
	if id.x25519Priv == nil || id.ed25519Priv == nil {
		panic("identity: ToPrivateBytes on a public-only identity")
	}
	out := make([]byte, X25519PrivateKeySize+ed25519SeedSize)
	copy(out[:X25519PrivateKeySize], id.x25519Priv[:])
	copy(out[X25519PrivateKeySize:], id.ed25519Priv.Seed())
	return out
}

// FromPublicBytes reconstructs a public-only Identity from the concatenated
// 64-byte public key material (X25519 pub ∥ Ed25519 pub) carried in
// announces.
func FromPublicBytes(b []byte) (*Identity, error) {
	if len(b) != KeySize {
		return nil, ErrBadPublicKey
	}
	id := &Identity{ed25519Pub: make(ed25519.PublicKey, Ed25519PublicKeySize)}
	copy(id.x25519Pub[:], b[:X25519PublicKeySize])
	copy(id.ed25519Pub, b[X25519PublicKeySize:])
	return id, nil
}

// PublicBytes returns the concatenated X25519 ∥ Ed25519 public key (64 B).
func (id *Identity) PublicBytes() []byte {
	out := make([]byte, 0, KeySize)
	out = append(out, id.x25519Pub[:]...)
	out = append(out, id.ed25519Pub...)
	return out
}

// X25519PublicKey returns the raw X25519 public key bytes.
func (id *Identity) X25519PublicKey() [X25519PublicKeySize]byte { return id.x25519Pub }

// Ed25519PublicKey returns the raw Ed25519 public key bytes.
func (id *Identity) Ed25519PublicKey() ed25519.PublicKey { return id.ed25519Pub }

// Hash computes the 16-byte truncated SHA-256 identity hash over the
// concatenated public key material.
func (id *Identity) Hash() Hash {
	sum := sha256.Sum256(id.PublicBytes())
	var h Hash
	copy(h[:], sum[:HashSize])
	return h
}

// Sign produces an Ed25519 signature over message. Requires a private key.
func (id *Identity) Sign(message []byte) []byte {
	if id.ed25519Priv == nil {
		panic("identity: Sign called on a public-only identity")
	}
	return ed25519.Sign(id.ed25519Priv, message)
}

// ValidateSignature reports whether sig is a valid Ed25519 signature over
// message under this identity's public key.
func (id *Identity) ValidateSignature(message, sig []byte) bool {
	return ed25519.Verify(id.ed25519Pub, message, sig)
}

// ecdh performs X25519 scalar multiplication between our private key and a
// peer's public key, producing a 32-byte shared secret.
func (id *Identity) ecdh(peerPub []byte) ([]byte, error) {
	if id.x25519Priv == nil {
		return nil, errors.New("identity: ecdh called on a public-only identity")
	}
	return x25519.X25519(id.x25519Priv[:], peerPub)
}

// Encrypt produces an encrypted token (IV ∥ AES-256-CBC ∥ HMAC) addressed
// to the recipient identity's X25519 public key. An ephemeral
// X25519 keypair is generated per call and its public key is prepended so
// the recipient can recompute the shared secret without a prior exchange.
func (id *Identity) Encrypt(recipient *Identity, plaintext []byte) ([]byte, error) {
	var ephPriv [X25519PrivateKeySize]byte
	if _, err := crand.Read(ephPriv[:]); err != nil {
		return nil, err
	}
	ephPub, err := x25519.X25519(ephPriv[:], x25519.Basepoint)
	if err != nil {
		return nil, err
	}
	shared, err := x25519.X25519(ephPriv[:], recipient.x25519Pub[:])
	if err != nil {
		return nil, err
	}
	derivedKey, derivedHMACKey, err := deriveTokenKeys(shared, recipient.Hash())
	if err != nil {
		return nil, err
	}
	token, err := encryptToken(derivedKey, derivedHMACKey, plaintext)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, X25519PublicKeySize+len(token))
	out = append(out, ephPub...)
	out = append(out, token...)
	return out, nil
}

// Decrypt reverses Encrypt using this identity's private X25519 key.
func (id *Identity) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < X25519PublicKeySize {
		return nil, ErrMalformedToken
	}
	ephPub := ciphertext[:X25519PublicKeySize]
	token := ciphertext[X25519PublicKeySize:]
	shared, err := id.ecdh(ephPub)
	if err != nil {
		return nil, err
	}
	derivedKey, derivedHMACKey, err := deriveTokenKeys(shared, id.Hash())
	if err != nil {
		return nil, err
	}
	return decryptToken(derivedKey, derivedHMACKey, token)
}
