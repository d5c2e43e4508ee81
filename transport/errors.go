package transport

import "errors"

// Session-level errors surfaced synchronously to the caller of Outbound.
// Protocol-level errors (malformed, replay, bad signature) never surface
// as Go errors; they appear only as a DropAction in the returned action
// batch.
var (
	// ErrNoPath is returned by Outbound when forwarding is requested for a
	// destination with no known path.
	ErrNoPath = errors.New("transport: no path to destination")
	// ErrUnknownInterface names an unregistered interface; no Engine method
	// returns it.
	ErrUnknownInterface = errors.New("transport: unknown interface")
	// ErrOversizedPacket is returned by Outbound when the packet exceeds MTU.
	ErrOversizedPacket = errors.New("transport: packet exceeds MTU")
)
