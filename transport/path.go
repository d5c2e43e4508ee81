package transport

import (
	"time"

	"github.com/nomadnet/reticulum-go/destination"
	"github.com/nomadnet/reticulum-go/identity"
)

// Path expiry TTLs by interface mode.
const (
	pathTTLNormal       = 7 * 24 * time.Hour
	pathTTLAccessPoint   = 24 * time.Hour
	pathTTLRoaming       = 6 * time.Hour
)

func pathTTLForMode(m Mode) time.Duration {
	switch m {
	case ModeAccessPoint:
		return pathTTLAccessPoint
	case ModeRoaming:
		return pathTTLRoaming
	default:
		return pathTTLNormal
	}
}

// PathEntry is the transport engine's routing-table row for a destination.
type PathEntry struct {
	DestHash         destination.Hash
	NextHopInterface InterfaceID
	NextHopNode      identity.Hash
	Hops             uint8
	ExpiresAt        float64 // monotonic seconds, per the host clock
	AnnouncePacketHash [16]byte
	ReceivedFrom     identity.Hash
	AnnounceNonce    [10]byte
	AnnounceTime     float64
}

// shouldReplace implements the path table's announce replacement policy:
// adopt the new path iff there is no existing entry, or it has strictly
// fewer hops, or equal hops with a newer announce, or the existing
// interface is down. The "newer announce" tie-break at equal hop count is
// the Open Question resolved in DESIGN.md: a strictly later AnnounceTime
// wins, and nonce bytes decide only between announces with equal times.
func shouldReplace(existing *PathEntry, haveExisting bool, existingIfaceUp bool, candidate *PathEntry) bool {
	if !haveExisting {
		return true
	}
	if !existingIfaceUp {
		return true
	}
	if candidate.Hops < existing.Hops {
		return true
	}
	if candidate.Hops == existing.Hops {
		return nonceOrdersAfter(candidate.AnnounceNonce, existing.AnnounceNonce, candidate.AnnounceTime, existing.AnnounceTime)
	}
	return false
}

// nonceOrdersAfter decides whether candidate is "newer" than existing at
// equal hop count. We treat a strictly later announce time as newer, and
// break ties on nonce bytes for determinism when two announces carry the
// same timestamp resolution.
func nonceOrdersAfter(candidateNonce, existingNonce [10]byte, candidateTime, existingTime float64) bool {
	if candidateTime > existingTime {
		return true
	}
	if candidateTime < existingTime {
		return false
	}
	for i := range candidateNonce {
		if candidateNonce[i] != existingNonce[i] {
			return candidateNonce[i] > existingNonce[i]
		}
	}
	return false
}
