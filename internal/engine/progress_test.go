package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	p := newProgressTracker(100, 10, 10)

	snap := p.snapshot()
	assert.Equal(t, 0.0, snap.PercentComplete)
	assert.False(t, snap.IsComplete())
	assert.Equal(t, time.Duration(0), snap.EstimatedRemaining)

	p.recordBatch(10, 0)
	snap = p.snapshot()
	assert.Equal(t, 10.0, snap.PercentComplete)
	assert.Equal(t, 10, snap.ProcessedOperations)
	assert.Equal(t, 1, snap.CompletedBatches)

	// Failed operations count toward completion but not the rate.
	p.recordBatch(0, 10)
	snap = p.snapshot()
	assert.Equal(t, 20.0, snap.PercentComplete)
	assert.Equal(t, 10, snap.FailedOperations)
	assert.False(t, snap.IsComplete())

	time.Sleep(5 * time.Millisecond)
	snap = p.snapshot()
	assert.Greater(t, snap.Elapsed, time.Duration(0))
	assert.Greater(t, snap.OperationsPerSecond, 0.0)
	assert.Greater(t, snap.EstimatedRemaining, time.Duration(0))

	for i := 0; i < 8; i++ {
		p.recordBatch(10, 0)
	}
	snap = p.snapshot()
	assert.Equal(t, 100.0, snap.PercentComplete)
	assert.True(t, snap.IsComplete())
	assert.Equal(t, 10, snap.CompletedBatches)
	assert.Equal(t, time.Duration(0), snap.EstimatedRemaining)
}

func TestProgressTracker_EmptyRun(t *testing.T) {
	p := newProgressTracker(0, 0, 10)
	snap := p.snapshot()
	assert.Equal(t, 0.0, snap.PercentComplete)
	assert.True(t, snap.IsComplete())
}
