package link

import (
	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/identity"
)

// ActionKind distinguishes the actions a Manager call can return. As with
// transport.TransportAction, the host applies a returned batch in order;
// Manager itself performs no I/O.
type ActionKind uint8

const (
	// ActionSend carries wire bytes the host must pass to
	// transport.Engine.Outbound, addressed to DestHash.
	ActionSend ActionKind = iota
	// ActionEstablished signals a Link reached ACTIVE.
	ActionEstablished
	// ActionDeliverLocal carries a decrypted link payload for the host.
	ActionDeliverLocal
	// ActionIdentified signals a successful in-link identify exchange.
	ActionIdentified
	// ActionClosed signals a Link reached CLOSED.
	ActionClosed
)

// Action is one item of the batch a Manager method returns.
type Action struct {
	Kind   ActionKind
	LinkID [16]byte

	// ActionSend
	DestHash destination.Hash
	Wire     []byte

	// ActionDeliverLocal
	Raw []byte

	// ActionIdentified
	PeerIdentityHash identity.Hash

	// ActionClosed
	Reason CloseReason
}

func sendAction(linkID [16]byte, destHash destination.Hash, wire []byte) Action {
	return Action{Kind: ActionSend, LinkID: linkID, DestHash: destHash, Wire: wire}
}

func establishedAction(linkID [16]byte) Action {
	return Action{Kind: ActionEstablished, LinkID: linkID}
}

func deliverAction(linkID [16]byte, raw []byte) Action {
	return Action{Kind: ActionDeliverLocal, LinkID: linkID, Raw: raw}
}

func identifiedAction(linkID [16]byte, peerHash identity.Hash) Action {
	return Action{Kind: ActionIdentified, LinkID: linkID, PeerIdentityHash: peerHash}
}

func closedAction(linkID [16]byte, reason CloseReason) Action {
	return Action{Kind: ActionClosed, LinkID: linkID, Reason: reason}
}
