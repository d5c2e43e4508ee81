// Package link implements Reticulum's end-to-end Link sessions: the 4-step
// ephemeral-key handshake, the post-handshake encrypted-token transport,
// keepalive/staleness/teardown, the optional in-link identify exchange, and
// responder ratchet keys for forward secrecy.
//
// A Manager layers over a *transport.Engine the same way a secure session
// wraps a plain connection: transport remains the only thing that touches
// interfaces and the path table, and Manager only ever calls transport's
// already-synchronous, I/O-free methods.
package link

// State is a Link's position in its handshake/activity state machine.
type State uint8

const (
	StatePending State = iota
	StateHandshake
	StateActive
	StateStale
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateHandshake:
		return "HANDSHAKE"
	case StateActive:
		return "ACTIVE"
	case StateStale:
		return "STALE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Role distinguishes which side of the handshake this node played.
type Role uint8

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleResponder {
		return "RESPONDER"
	}
	return "INITIATOR"
}

// CloseReason explains why a Link transitioned to CLOSED, surfaced once to
// the link's owner as part of this package's session-level error
// propagation.
type CloseReason uint8

const (
	CloseReasonLocal CloseReason = iota
	CloseReasonTeardownReceived
	CloseReasonHandshakeTimeout
	CloseReasonStaleTimeout
)

func (r CloseReason) String() string {
	switch r {
	case CloseReasonLocal:
		return "Local"
	case CloseReasonTeardownReceived:
		return "TeardownReceived"
	case CloseReasonHandshakeTimeout:
		return "HandshakeTimeout"
	case CloseReasonStaleTimeout:
		return "StaleTimeout"
	default:
		return "Unknown"
	}
}
