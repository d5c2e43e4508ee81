package transport

import (
	"time"

	"github.com/nomadnet/reticulum-go/packet"
)

// config holds the Engine's tunable constants, set to sensible defaults
// and overridable via functional options.
type config struct {
	announceDedupTTL   time.Duration
	announceQueueTTL   time.Duration
	announceBudgetFrac float64
	maxForwardHops     uint8
}

// Option configures an Engine at construction time.
type Option func(*config)

func configDefaults() Option {
	return func(c *config) {
		c.announceDedupTTL = announceDedupTTL
		c.announceQueueTTL = announceQueueTTL
		c.announceBudgetFrac = announceBudgetFraction
		c.maxForwardHops = packet.MaxHops
	}
}

// WithAnnounceDedupTTL overrides the announce dedup set's TTL.
func WithAnnounceDedupTTL(d time.Duration) Option {
	return func(c *config) { c.announceDedupTTL = d }
}

// WithAnnounceQueueTTL overrides how long a queued re-emission is kept
// before it ages out undelivered.
func WithAnnounceQueueTTL(d time.Duration) Option {
	return func(c *config) { c.announceQueueTTL = d }
}

// WithAnnounceBudgetFraction overrides the fraction of nominal bandwidth
// reserved for announce traffic (default 2%).
func WithAnnounceBudgetFraction(f float64) Option {
	return func(c *config) { c.announceBudgetFrac = f }
}

// WithMaxForwardHops overrides the forwarding hop ceiling: packets at or
// below it are forwarded, past it they are dropped.
func WithMaxForwardHops(h uint8) Option {
	return func(c *config) { c.maxForwardHops = h }
}
