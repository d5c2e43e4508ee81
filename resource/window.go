package resource

// Window bounds on the sliding window of in-flight parts.
const (
	minWindow = 2
	maxWindow = 75
)

// window tracks a sender's current AIMD-adapted window size: additive
// increase by one part per advancing cumulative ack with no retransmission
// since the previous one, halved — floor minWindow — on any retransmission.
type window struct {
	size int
}

func newWindow() *window {
	return &window{size: minWindow}
}

// GrowOnFullAck adds one part. The sender calls it on every cumulative ack
// that advances the window base with no retransmission since the previous
// one; growth is per advancing ack, not once per fully acknowledged window.
func (w *window) GrowOnFullAck() {
	if w.size < maxWindow {
		w.size++
	}
}

// ShrinkOnLoss is called the moment any part in the current window needs
// retransmission.
func (w *window) ShrinkOnLoss() {
	w.size /= 2
	if w.size < minWindow {
		w.size = minWindow
	}
}
