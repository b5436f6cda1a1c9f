package sequencer

import (
	"context"
	"math/rand/v2"
	"time"

	"surveyreview/internal/workflow"
)

// Clock suspends the run.
//
// Sleep returns nil once d has elapsed, or ctx.Err() if ctx ends first.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on a timer.
type RealClock struct{}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jitter draws simulated step durations and decides probabilistic events.
type Jitter interface {
	// Delay returns a duration inside r.
	Delay(r workflow.DelayRange) time.Duration

	// Fire returns true with probability p.
	Fire(p float64) bool
}

// RandomJitter draws uniformly. A nil Rand uses the package-level source.
type RandomJitter struct {
	Rand *rand.Rand
}

// NewSeededJitter returns a reproducible RandomJitter.
func NewSeededJitter(seed uint64) RandomJitter {
	return RandomJitter{Rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (j RandomJitter) Delay(r workflow.DelayRange) time.Duration {
	span := r.Span()
	if span <= 0 {
		return r.Min
	}
	if j.Rand != nil {
		return r.Min + time.Duration(j.Rand.Int64N(int64(span)+1))
	}
	return r.Min + time.Duration(rand.Int64N(int64(span)+1))
}

func (j RandomJitter) Fire(p float64) bool {
	if p <= 0 {
		return false
	}
	if j.Rand != nil {
		return j.Rand.Float64() < p
	}
	return rand.Float64() < p
}
