package transport

import (
	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/packet"
)

// ActionKind distinguishes the four kinds of TransportAction the engine can
// emit.
type ActionKind uint8

const (
	ActionSendOnInterface ActionKind = iota
	ActionDeliverLocal
	ActionPathUpdated
	ActionDrop
)

// DropReason explains why a frame or packet was dropped, for counters and
// debug logging. Protocol-level reasons are never surfaced above the
// transport engine as errors; they are only visible through this field.
type DropReason uint8

const (
	DropMalformed DropReason = iota
	DropSignatureInvalid
	DropHashMismatch
	DropReplay
	DropRateLimited
	DropNoPath
	DropLoop
)

func (r DropReason) String() string {
	switch r {
	case DropMalformed:
		return "MalformedPacket"
	case DropSignatureInvalid:
		return "SignatureInvalid"
	case DropHashMismatch:
		return "HashMismatch"
	case DropReplay:
		return "Replay"
	case DropRateLimited:
		return "RateLimited"
	case DropNoPath:
		return "NoPath"
	case DropLoop:
		return "Loop"
	default:
		return "Unknown"
	}
}

// TransportAction is one item of the ordered batch the engine returns from
// every Inbound/Outbound/Tick call. The host applies a batch in order.
type TransportAction struct {
	Kind ActionKind

	// ActionSendOnInterface
	InterfaceID InterfaceID
	Bytes       []byte

	// ActionDeliverLocal
	DestHash   destination.Hash
	Raw        []byte
	PacketHash [16]byte
	PacketType packet.PacketType
	Context    byte

	// ActionPathUpdated
	Hops uint8

	// ActionDrop
	Reason DropReason
}

func sendAction(iface InterfaceID, bytes []byte) TransportAction {
	return TransportAction{Kind: ActionSendOnInterface, InterfaceID: iface, Bytes: bytes}
}

func deliverAction(dest destination.Hash, raw []byte, hash [16]byte, pt packet.PacketType, ctx byte) TransportAction {
	return TransportAction{Kind: ActionDeliverLocal, DestHash: dest, Raw: raw, PacketHash: hash, PacketType: pt, Context: ctx}
}

func pathUpdatedAction(dest destination.Hash, hops uint8) TransportAction {
	return TransportAction{Kind: ActionPathUpdated, DestHash: dest, Hops: hops}
}

func dropAction(reason DropReason) TransportAction {
	return TransportAction{Kind: ActionDrop, Reason: reason}
}
