package sequencer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"surveyreview/internal/workflow"
)

func TestRealClock_Sleep(t *testing.T) {
	clock := RealClock{}

	assert.NoError(t, clock.Sleep(context.Background(), 0))
	assert.NoError(t, clock.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := clock.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRandomJitter_DelayWithinRange(t *testing.T) {
	for _, j := range []RandomJitter{{}, NewSeededJitter(42)} {
		for _, step := range workflow.Steps() {
			for i := 0; i < 50; i++ {
				d := j.Delay(step.Delay)
				assert.True(t, step.Delay.Contains(d), "%s: %s outside %s", step.Name, d, step.Delay)
			}
		}
	}
}

func TestRandomJitter_DegenerateRange(t *testing.T) {
	r := workflow.Ms(700, 700)
	assert.Equal(t, 700*time.Millisecond, RandomJitter{}.Delay(r))
}

func TestRandomJitter_Fire(t *testing.T) {
	j := NewSeededJitter(7)

	for i := 0; i < 100; i++ {
		assert.False(t, j.Fire(0))
		assert.True(t, j.Fire(1))
	}
}

func TestNewSeededJitter_Reproducible(t *testing.T) {
	a := NewSeededJitter(99)
	b := NewSeededJitter(99)
	r := workflow.Ms(1500, 2500)

	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Delay(r), b.Delay(r))
	}
}
