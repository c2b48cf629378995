package engine

import "errors"

// Engine error taxonomy. Only ErrInvalidConfiguration aborts a call before
// processing starts; batch-level errors are recorded on their batch result
// and the run continues.
var (
	// ErrInvalidConfiguration indicates bad engine options or call
	// arguments. Raised before any processing happens.
	ErrInvalidConfiguration = errors.New("invalid engine configuration")

	// ErrBatchTimeout indicates a batch exceeded the per-batch deadline.
	// Non-fatal: the batch's operations are recorded as failed and other
	// batches are unaffected.
	ErrBatchTimeout = errors.New("batch timed out")

	// ErrWorkerFailure indicates a transform returned an error or panicked.
	// Non-fatal: the affected batch is marked failed.
	ErrWorkerFailure = errors.New("worker failure")

	// ErrCacheCorruption indicates a cache entry did not match the batch it
	// was looked up for. Recovered internally by recomputing; surfaced only
	// in logs and cache statistics.
	ErrCacheCorruption = errors.New("cache entry corrupted")

	// ErrEngineBusy indicates a run is already in progress. The engine
	// executes one run at a time.
	ErrEngineBusy = errors.New("engine run already in progress")

	// ErrSinkFailure indicates a streaming sink returned an error, aborting
	// the run.
	ErrSinkFailure = errors.New("sink failed")
)
