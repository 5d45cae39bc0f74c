package connection

import (
	"math/rand/v2"
	"time"
)

// Backoff computes bounded exponential reconnect delays with jitter.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64 // 0 = none, 0.5 = delay * (0.5 to 1.5)

	rand func(n int64) int64
}

// NewBackoff returns a Backoff using math/rand/v2 for jitter.
func NewBackoff(base, max time.Duration, jitter float64) Backoff {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return Backoff{Base: base, Max: max, Jitter: jitter, rand: rand.Int64N}
}

// Delay returns the wait before the given attempt (1-based).
// The result never exceeds Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}

	if b.Jitter > 0 && d > 0 && b.rand != nil {
		spread := time.Duration(float64(d) * b.Jitter)
		if spread > 0 {
			d = d - spread + time.Duration(b.rand(int64(2*spread)))
		}
	}

	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}
