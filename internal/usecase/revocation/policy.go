package revocation

import (
	"math"
	"time"
)

type DelayPolicy string

const (
	PolicyFixed       DelayPolicy = "fixed"
	PolicyExponential DelayPolicy = "exponential"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 60 * time.Second
	DefaultTimeout     = 8 * time.Second
)

type Config struct {
	// MaxAttempts counts every handler call, the immediate one included.
	MaxAttempts   int
	RetryDelay    time.Duration
	Policy        DelayPolicy
	MaxRetryDelay time.Duration
	// Timeout bounds a single handler call.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Policy == "" {
		c.Policy = PolicyFixed
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Delay is the wait before the next attempt once attempts calls have failed.
func (c Config) Delay(attempts int) time.Duration {
	if c.Policy != PolicyExponential || attempts <= 1 {
		return c.RetryDelay
	}
	d := c.RetryDelay
	for i := 1; i < attempts; i++ {
		d *= 2
		if c.MaxRetryDelay > 0 && d >= c.MaxRetryDelay {
			return c.MaxRetryDelay
		}
		if d <= 0 {
			return time.Duration(math.MaxInt64)
		}
	}
	return d
}
