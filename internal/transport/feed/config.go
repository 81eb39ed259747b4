// Package feed is a catalog source backed by a JSON product feed API.
package feed

import (
	"time"

	"go.uber.org/zap"
)

// Defaults.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultRateLimit       = 5.0
	DefaultBurst           = 5
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = time.Minute
	maxResponseBytes       = 4 << 20
)

// Config holds the feed source settings.
type Config struct {
	ID      string
	BaseURL string
	Token   string
	Country string
	Timeout time.Duration
	// RateLimit is the sustained request rate per second; Burst the bucket size.
	RateLimit float64
	Burst     int
	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Logger          *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = DefaultBreakerFailures
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = DefaultBreakerTimeout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
