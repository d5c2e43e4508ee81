package resource

// Transfer is one resource move, either side of which this node may play.
type Transfer struct {
	ResourceID [16]byte
	LinkID     [16]byte
	Role       Role
	State      State
	FailReason FailReason

	TotalSize    uint32
	PartCount    uint32
	ExpectedHash [32]byte
	Compressed   bool

	CreatedAt float64
	Deadline  float64

	win *window

	// sender-side bookkeeping
	parts        [][]byte
	base         uint32 // lowest part index not yet cumulatively acked
	nextToSend   uint32 // lowest part index never yet transmitted
	sentAt       map[uint32]float64
	retries      map[uint32]int
	lostInWindow bool // a retransmission happened since the last full-window growth check

	// receiver-side bookkeeping
	received     map[uint32][]byte
	nextExpected uint32
}

type transferKey struct {
	LinkID     [16]byte
	ResourceID [16]byte
}

func (t *Transfer) key() transferKey {
	return transferKey{LinkID: t.LinkID, ResourceID: t.ResourceID}
}

// segment splits data into maxPartBody-sized parts, the last one short if
// data's length isn't an exact multiple.
func segment(data []byte) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	n := (len(data) + maxPartBody - 1) / maxPartBody
	parts := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := i * maxPartBody
		end := start + maxPartBody
		if end > len(data) {
			end = len(data)
		}
		parts[i] = data[start:end]
	}
	return parts
}

// reassemble concatenates every received part in index order; the caller
// has already confirmed len(received) == partCount.
func reassemble(received map[uint32][]byte, partCount uint32) []byte {
	out := make([]byte, 0)
	for i := uint32(0); i < partCount; i++ {
		out = append(out, received[i]...)
	}
	return out
}
