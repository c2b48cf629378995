package engine

import "time"

// percentMultiplier converts a ratio to a percentage (0-100).
const percentMultiplier = 100

// progressTracker follows a run's completion state. It is owned by the
// coordinating goroutine and needs no locking; external consumers receive
// immutable ProgressSnapshot values through the Observer.
type progressTracker struct {
	totalOperations     int
	processedOperations int
	failedOperations    int
	totalBatches        int
	completedBatches    int
	batchSize           int
	startTime           time.Time
}

func newProgressTracker(totalOperations, totalBatches, batchSize int) *progressTracker {
	return &progressTracker{
		totalOperations: totalOperations,
		totalBatches:    totalBatches,
		batchSize:       batchSize,
		startTime:       time.Now(),
	}
}

// recordBatch accounts for one completed batch.
func (p *progressTracker) recordBatch(succeeded, failed int) {
	p.processedOperations += succeeded
	p.failedOperations += failed
	p.completedBatches++
}

// snapshot returns an immutable copy of the current progress state.
func (p *progressTracker) snapshot() ProgressSnapshot {
	elapsed := time.Since(p.startTime)

	var percent float64
	if p.totalOperations > 0 {
		done := p.processedOperations + p.failedOperations
		percent = float64(done) / float64(p.totalOperations) * percentMultiplier
	}

	var opsPerSecond float64
	if secs := elapsed.Seconds(); secs > 0 {
		opsPerSecond = float64(p.processedOperations) / secs
	}

	var remaining time.Duration
	if done := p.processedOperations + p.failedOperations; done > 0 && done < p.totalOperations {
		perOp := elapsed / time.Duration(done)
		remaining = perOp * time.Duration(p.totalOperations-done)
	}

	return ProgressSnapshot{
		TotalOperations:     p.totalOperations,
		ProcessedOperations: p.processedOperations,
		FailedOperations:    p.failedOperations,
		TotalBatches:        p.totalBatches,
		CompletedBatches:    p.completedBatches,
		BatchSize:           p.batchSize,
		PercentComplete:     percent,
		Elapsed:             elapsed,
		OperationsPerSecond: opsPerSecond,
		EstimatedRemaining:  remaining,
	}
}

// ProgressSnapshot is an immutable view of run progress, delivered to
// observers after every batch.
type ProgressSnapshot struct {
	// TotalOperations is the run's total operation count.
	TotalOperations int

	// ProcessedOperations is the count of successfully processed operations.
	ProcessedOperations int

	// FailedOperations is the count of operations in failed batches.
	FailedOperations int

	// TotalBatches is the run's batch count.
	TotalBatches int

	// CompletedBatches counts batches with a recorded outcome.
	CompletedBatches int

	// BatchSize is the effective batch size of the run.
	BatchSize int

	// PercentComplete is the completion percentage (0-100), counting both
	// processed and failed operations.
	PercentComplete float64

	// Elapsed is the time since the run started.
	Elapsed time.Duration

	// OperationsPerSecond is the successful processing rate so far.
	OperationsPerSecond float64

	// EstimatedRemaining extrapolates the remaining wall time from the
	// rate so far. Zero until the first batch completes.
	EstimatedRemaining time.Duration
}

// IsComplete reports whether every operation has a recorded outcome.
func (s ProgressSnapshot) IsComplete() bool {
	return s.ProcessedOperations+s.FailedOperations >= s.TotalOperations
}
