package resource

import "encoding/binary"

// Message type byte leading every resource-protocol message a Manager
// exchanges over an established link's payload channel (link.Manager.Send
// / the ActionDeliverLocal.Raw a host feeds back into HandleInbound).
// Resource messages are plain application payloads from link's point of
// view; only this package interprets the leading byte.
const (
	msgAdvertise       byte = 0
	msgAccept          byte = 1
	msgReject          byte = 2
	msgPart            byte = 3
	msgAck             byte = 4
	msgCompletionProof byte = 5
	msgFailed          byte = 6
)

const (
	resourceIDSize = 16
	hashSize       = 32
	macSize        = 32
)

// maxPartBody is the largest part body that still fits one link DATA
// packet: packet.Payload ≤ 383 B; the encrypted-token construction spends
// 48 B on IV+HMAC and up to 16 B on PKCS7 padding, leaving ≤ 319 B of link
// plaintext; the link's own seq(8)∥ctrl(1) framing spends 9 more; this
// message's own type(1)∥resource_id(16)∥part_index(4) header spends 21,
// leaving 319 − 9 − 21 = 289.
const maxPartBody = 289

// maxPayloadSize is the ceiling on a single Send call's payload, matching
// the largest transfer this protocol is meant to carry over one link.
const maxPayloadSize = 16 * 1024 * 1024

type advertiseMsg struct {
	ResourceID [resourceIDSize]byte
	TotalSize  uint32
	PartCount  uint32
	Hash       [hashSize]byte
	Compressed bool
}

func encodeAdvertise(m advertiseMsg) []byte {
	out := make([]byte, 0, 1+resourceIDSize+4+4+hashSize+1)
	out = append(out, msgAdvertise)
	out = append(out, m.ResourceID[:]...)
	out = appendUint32(out, m.TotalSize)
	out = appendUint32(out, m.PartCount)
	out = append(out, m.Hash[:]...)
	if m.Compressed {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out
}

func decodeAdvertise(body []byte) (advertiseMsg, error) {
	var m advertiseMsg
	if len(body) != resourceIDSize+4+4+hashSize+1 {
		return m, ErrMalformed
	}
	copy(m.ResourceID[:], body[:resourceIDSize])
	body = body[resourceIDSize:]
	m.TotalSize, body = readUint32(body)
	m.PartCount, body = readUint32(body)
	copy(m.Hash[:], body[:hashSize])
	body = body[hashSize:]
	m.Compressed = body[0] != 0
	return m, nil
}

func encodeResourceIDOnly(kind byte, resourceID [resourceIDSize]byte) []byte {
	out := make([]byte, 0, 1+resourceIDSize)
	out = append(out, kind)
	out = append(out, resourceID[:]...)
	return out
}

func decodeResourceIDOnly(body []byte) (id [resourceIDSize]byte, err error) {
	if len(body) != resourceIDSize {
		return id, ErrMalformed
	}
	copy(id[:], body)
	return id, nil
}

type partMsg struct {
	ResourceID [resourceIDSize]byte
	Index      uint32
	Data       []byte
}

func encodePart(m partMsg) []byte {
	out := make([]byte, 0, 1+resourceIDSize+4+len(m.Data))
	out = append(out, msgPart)
	out = append(out, m.ResourceID[:]...)
	out = appendUint32(out, m.Index)
	out = append(out, m.Data...)
	return out
}

func decodePart(body []byte) (partMsg, error) {
	var m partMsg
	if len(body) < resourceIDSize+4 {
		return m, ErrMalformed
	}
	copy(m.ResourceID[:], body[:resourceIDSize])
	body = body[resourceIDSize:]
	m.Index, body = readUint32(body)
	m.Data = append([]byte(nil), body...)
	return m, nil
}

// ackKind distinguishes a cumulative "everything up to N received" ack from
// a selective bitmap naming exactly which parts of a window landed.
type ackKind byte

const (
	ackCumulative ackKind = 0
	ackSelective  ackKind = 1
)

type ackMsg struct {
	ResourceID [resourceIDSize]byte
	Kind       ackKind
	Next       uint32 // ackCumulative: next expected part index
	Base       uint32 // ackSelective: index of bitmap bit 0
	Bitmap     []byte // ackSelective: bit i set means Base+i was received
}

func encodeAck(m ackMsg) []byte {
	out := make([]byte, 0, 1+resourceIDSize+1+4+2+len(m.Bitmap))
	out = append(out, msgAck)
	out = append(out, m.ResourceID[:]...)
	out = append(out, byte(m.Kind))
	if m.Kind == ackCumulative {
		out = appendUint32(out, m.Next)
		return out
	}
	out = appendUint32(out, m.Base)
	out = appendUint16(out, uint16(len(m.Bitmap)))
	out = append(out, m.Bitmap...)
	return out
}

func decodeAck(body []byte) (ackMsg, error) {
	var m ackMsg
	if len(body) < resourceIDSize+1 {
		return m, ErrMalformed
	}
	copy(m.ResourceID[:], body[:resourceIDSize])
	body = body[resourceIDSize:]
	m.Kind = ackKind(body[0])
	body = body[1:]
	switch m.Kind {
	case ackCumulative:
		if len(body) != 4 {
			return m, ErrMalformed
		}
		m.Next, _ = readUint32(body)
	case ackSelective:
		if len(body) < 6 {
			return m, ErrMalformed
		}
		m.Base, body = readUint32(body)
		n, rest := readUint16(body)
		if len(rest) != int(n) {
			return m, ErrMalformed
		}
		m.Bitmap = append([]byte(nil), rest...)
	default:
		return m, ErrMalformed
	}
	return m, nil
}

type completionProofMsg struct {
	ResourceID [resourceIDSize]byte
	MAC        [macSize]byte
}

func encodeCompletionProof(m completionProofMsg) []byte {
	out := make([]byte, 0, 1+resourceIDSize+macSize)
	out = append(out, msgCompletionProof)
	out = append(out, m.ResourceID[:]...)
	out = append(out, m.MAC[:]...)
	return out
}

func decodeCompletionProof(body []byte) (completionProofMsg, error) {
	var m completionProofMsg
	if len(body) != resourceIDSize+macSize {
		return m, ErrMalformed
	}
	copy(m.ResourceID[:], body[:resourceIDSize])
	copy(m.MAC[:], body[resourceIDSize:])
	return m, nil
}

func encodeFailed(resourceID [resourceIDSize]byte, reason FailReason) []byte {
	out := make([]byte, 0, 1+resourceIDSize+1)
	out = append(out, msgFailed)
	out = append(out, resourceID[:]...)
	out = append(out, byte(reason))
	return out
}

func decodeFailed(body []byte) (id [resourceIDSize]byte, reason FailReason, err error) {
	if len(body) != resourceIDSize+1 {
		return id, 0, ErrMalformed
	}
	copy(id[:], body[:resourceIDSize])
	reason = FailReason(body[resourceIDSize])
	return id, reason, nil
}

func appendUint32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

func appendUint16(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}

func readUint32(b []byte) (uint32, []byte) {
	return binary.BigEndian.Uint32(b[:4]), b[4:]
}

func readUint16(b []byte) (uint16, []byte) {
	return binary.BigEndian.Uint16(b[:2]), b[2:]
}
