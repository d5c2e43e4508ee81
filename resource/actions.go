package resource

import "github.com/nomadnet/reticulum-go/destination"

// ActionKind distinguishes the actions a Manager call can return, mirroring
// link.ActionKind and transport.TransportAction's batch-of-actions idiom:
// the core computes what needs to happen and returns it for the host to
// carry out, rather than performing I/O itself.
type ActionKind uint8

const (
	// ActionSend carries wire bytes the host must pass to
	// transport.Engine.Outbound, addressed via DestHash — this is the
	// link-level DATA packet link.Manager.Send already built; the
	// resource engine never touches transport directly.
	ActionSend ActionKind = iota
	// ActionDeliverLocal carries a fully reassembled, verified, and
	// (if flagged) decompressed payload for the host, on the receiver side.
	ActionDeliverLocal
	// ActionComplete signals a sender's Transfer reached COMPLETE.
	ActionComplete
	// ActionFailed signals a Transfer reached FAILED.
	ActionFailed
)

// Action is one item of the batch a Manager method returns.
type Action struct {
	Kind       ActionKind
	ResourceID [16]byte
	LinkID     [16]byte

	// ActionSend
	DestHash destination.Hash
	Wire     []byte

	// ActionDeliverLocal
	Raw []byte

	// ActionFailed
	Reason FailReason
}

func sendAction(resourceID, linkID [16]byte, destHash destination.Hash, wire []byte) Action {
	return Action{Kind: ActionSend, ResourceID: resourceID, LinkID: linkID, DestHash: destHash, Wire: wire}
}

func deliverAction(resourceID, linkID [16]byte, raw []byte) Action {
	return Action{Kind: ActionDeliverLocal, ResourceID: resourceID, LinkID: linkID, Raw: raw}
}

func completeAction(resourceID, linkID [16]byte) Action {
	return Action{Kind: ActionComplete, ResourceID: resourceID, LinkID: linkID}
}

func failedAction(resourceID, linkID [16]byte, reason FailReason) Action {
	return Action{Kind: ActionFailed, ResourceID: resourceID, LinkID: linkID, Reason: reason}
}
