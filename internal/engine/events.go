package engine

import "time"

// RunPlan describes a run before any batch is dispatched.
type RunPlan struct {
	// RunID uniquely identifies the run.
	RunID string

	// TotalOperations is the number of operations submitted.
	TotalOperations int

	// TotalBatches is the number of batches the run was partitioned into.
	// For streaming runs this is an estimate from the initial batch size,
	// since later chunks may repartition under memory pressure.
	TotalBatches int

	// TotalChunks is the number of chunks for a streaming run, 0 for bulk.
	TotalChunks int

	// BatchSize is the effective batch size after dynamic sizing.
	BatchSize int

	// Workers is the worker count for the run.
	Workers int

	// Streaming indicates streaming mode.
	Streaming bool
}

// ChunkStat describes a delivered streaming chunk.
type ChunkStat struct {
	// Index is the 0-based chunk position.
	Index int

	// Operations is the number of operations in the chunk.
	Operations int

	// Artifacts is the number of artifacts the chunk produced.
	Artifacts int

	// Duration is the wall time from chunk dispatch to sink return.
	Duration time.Duration

	// CumulativeProcessed is the run's processed-operation count after
	// this chunk.
	CumulativeProcessed int64
}

// MemoryWarning describes a governor reaction to heap pressure.
type MemoryWarning struct {
	// HeapBytes is the sampled heap size.
	HeapBytes uint64

	// ThresholdBytes is the configured pressure trigger.
	ThresholdBytes uint64

	// SuggestedBatchSize is the shrunken size future partitioning will use.
	SuggestedBatchSize int

	// EvictedEntries is how many cache entries the governor evicted.
	EvictedEntries int
}

// Observer receives advisory run notifications. All methods are invoked from
// the coordinating goroutine, in order; implementations must return quickly
// and must not call back into the engine. Notifications are never required
// for correctness.
type Observer interface {
	// RunStarted is invoked once per run, before the first dispatch.
	RunStarted(plan RunPlan)

	// BatchCompleted is invoked after every batch outcome is recorded,
	// including cache-served and failed batches.
	BatchCompleted(result BatchResult, progress ProgressSnapshot)

	// ChunkDelivered is invoked after a streaming sink call returns.
	ChunkDelivered(chunk ChunkStat)

	// MemoryPressure is invoked when the governor reacts to heap pressure.
	MemoryPressure(warning MemoryWarning)

	// RunCompleted is invoked once per run with the final metrics, after
	// the last batch outcome and before the engine call returns.
	RunCompleted(metrics Metrics)
}

// NopObserver is an Observer that ignores every notification.
type NopObserver struct{}

// RunStarted implements Observer.
func (NopObserver) RunStarted(RunPlan) {}

// BatchCompleted implements Observer.
func (NopObserver) BatchCompleted(BatchResult, ProgressSnapshot) {}

// ChunkDelivered implements Observer.
func (NopObserver) ChunkDelivered(ChunkStat) {}

// MemoryPressure implements Observer.
func (NopObserver) MemoryPressure(MemoryWarning) {}

// RunCompleted implements Observer.
func (NopObserver) RunCompleted(Metrics) {}
