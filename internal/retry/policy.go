package retry

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults used by DefaultPolicy and for zero fields of a Policy.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultJitter      = 0.5
)

// Policy describes how many times an operation runs and how long to wait
// between runs. The wait before retry n (0-indexed) is
// min(BaseDelay*2^n, MaxDelay) plus up to Jitter of that value, and is never
// shorter than the previous wait.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64        // fraction of the delay added at random, 0..1
	Rand        func() float64 // source in [0, 1); nil uses math/rand/v2
}

// DefaultPolicy returns 3 attempts, 2s base, 30s cap and 50% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      DefaultJitter,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	if p.Rand == nil {
		p.Rand = rand.Float64
	}
	return p
}

// Ceiling is the longest wait the policy can produce
func (p Policy) Ceiling() time.Duration {
	p = p.normalized()
	return p.MaxDelay + time.Duration(p.Jitter*float64(p.MaxDelay))
}

// Delays returns the waits that precede retries 1..n of a fresh run
func (p Policy) Delays(n int) []time.Duration {
	s := newSchedule(p.normalized())
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.NextBackOff())
	}
	return out
}

// schedule is the backoff.BackOff driven by a Policy
type schedule struct {
	p    Policy
	n    int
	prev time.Duration
}

var _ backoff.BackOff = (*schedule)(nil)

func newSchedule(p Policy) *schedule {
	return &schedule{p: p}
}

func (s *schedule) NextBackOff() time.Duration {
	d := s.p.MaxDelay
	// shifting past 30 overflows long before any sane MaxDelay
	if s.n < 30 {
		if exp := s.p.BaseDelay << uint(s.n); exp > 0 && exp < d {
			d = exp
		}
	}
	d += time.Duration(s.p.Rand() * s.p.Jitter * float64(d))
	if d < s.prev {
		d = s.prev
	}
	s.prev = d
	s.n++
	return d
}

func (s *schedule) Reset() {
	s.n = 0
	s.prev = 0
}
