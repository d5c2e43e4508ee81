package link

import "errors"

var (
	// ErrUnknownLink is returned when an operation names a link_id the
	// Manager has no record of.
	ErrUnknownLink = errors.New("link: unknown link id")
	// ErrNotActive is returned when Send is called on a Link that has not
	// reached ACTIVE.
	ErrNotActive = errors.New("link: not active")
	// ErrHandshakeMismatch is returned when a PROOF's HMAC does not verify
	// under the session key derived from the handshake's own ephemeral keys.
	ErrHandshakeMismatch = errors.New("link: handshake proof mismatch")
	// ErrReplay is returned when an inbound link-payload packet's sequence
	// number falls outside the anti-replay window.
	ErrReplay = errors.New("link: sequence replay")
	// ErrMalformed is returned when a handshake or payload message is too
	// short to contain its fixed-size fields.
	ErrMalformed = errors.New("link: malformed message")
)
