package link

import "time"

// Default timings.
const (
	defaultKeepalive         = 360 * time.Second
	defaultHandshakeTimeout  = 15 * time.Second
	defaultTeardownThreshold = 3 * defaultKeepalive // silence past this, after STALE, closes the link
)

type config struct {
	keepalive         time.Duration
	handshakeTimeout  time.Duration
	teardownThreshold time.Duration
}

// Option configures a Manager at construction time, following the same
// functional-options idiom used throughout this module.
type Option func(*config)

func configDefaults() Option {
	return func(c *config) {
		c.keepalive = defaultKeepalive
		c.handshakeTimeout = defaultHandshakeTimeout
		c.teardownThreshold = defaultTeardownThreshold
	}
}

// WithKeepalive overrides the silence interval after which a keepalive is
// scheduled on an ACTIVE link (default 360s).
func WithKeepalive(d time.Duration) Option {
	return func(c *config) { c.keepalive = d }
}

// WithHandshakeTimeout overrides how long a PENDING/HANDSHAKE link waits
// for the next handshake message before closing (default 15s).
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *config) { c.handshakeTimeout = d }
}

// WithTeardownThreshold overrides how long a STALE link tolerates
// continued silence before closing (default 3x keepalive).
func WithTeardownThreshold(d time.Duration) Option {
	return func(c *config) { c.teardownThreshold = d }
}

// staleAfter is the silence duration after which an ACTIVE link moves to
// STALE: 2x keepalive.
func (c config) staleAfter() time.Duration { return 2 * c.keepalive }
