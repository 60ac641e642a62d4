package remote

import (
	"math"
	"time"
)

// Default retry policy values.
const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxRetries   = 2
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultFactor       = 2.1
)

// Policy configures per-call timeout and retry behaviour.
type Policy struct {
	Timeout      time.Duration // Per attempt, not per fetch
	MaxRetries   int           // Attempts = MaxRetries + 1
	InitialDelay time.Duration
	Factor       float64
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:      DefaultTimeout,
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		Factor:       DefaultFactor,
	}
}

// Attempts returns the total number of attempts a fetch may make.
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// NextDelay returns the wait after the given failed attempt (0-based).
func (p Policy) NextDelay(attempt int) time.Duration {
	return NextDelay(p.InitialDelay, p.Factor, attempt)
}

// NextDelay computes initial * factor^attempt. Negative attempts are treated as 0.
func NextDelay(initial time.Duration, factor float64, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if factor < 1 {
		factor = 1
	}
	d := float64(initial) * math.Pow(factor, float64(attempt))
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
