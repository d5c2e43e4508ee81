package resource

import "time"

// Default timings. partTimeout stands in for a per-link RTT
// estimate: a host with an actual RTT sample should override it with
// WithPartTimeout using its own measurement; the engine itself has no
// clock or connection to the link's raw round-trip time, only the
// timestamps the host hands it.
const (
	defaultPartTimeout     = 5 * time.Second
	defaultOverallDeadline = 2 * time.Minute
	maxPartRetries         = 16
)

type config struct {
	partTimeout     time.Duration
	overallDeadline time.Duration
}

// Option configures a Manager at construction time (the same
// functional-options idiom as transport.Option and link.Option).
type Option func(*config)

func configDefaults() Option {
	return func(c *config) {
		c.partTimeout = defaultPartTimeout
		c.overallDeadline = defaultOverallDeadline
	}
}

// WithPartTimeout overrides the per-part retransmission deadline, ideally
// derived from a measured link RTT.
func WithPartTimeout(d time.Duration) Option {
	return func(c *config) { c.partTimeout = d }
}

// WithOverallDeadline overrides the whole-transfer deadline past which a
// still-incomplete Transfer fails outright.
func WithOverallDeadline(d time.Duration) Option {
	return func(c *config) { c.overallDeadline = d }
}
