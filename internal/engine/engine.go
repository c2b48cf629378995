package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/specforge/specforge/internal/logging"
)

// Engine turns operation lists into generated artifacts through a fixed pool
// of workers, with result caching, memory governance, and per-batch timeout
// isolation. One run executes at a time; the result cache is the only state
// that survives across runs.
type Engine struct {
	// mu serializes runs and configuration changes. It is held for the
	// full duration of a run, so admin calls either wait (ClearCache) or
	// fail fast (UpdateOptions, concurrent runs).
	mu   sync.Mutex
	opts Options

	cache    *resultCache
	metrics  *metricsAccumulator
	governor *memoryGovernor

	processing atomic.Bool
}

// New creates an Engine. Zero-value option fields select their defaults;
// out-of-range values are fatal configuration errors.
func New(opts Options) (*Engine, error) {
	opts = opts.normalized()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		opts:     opts,
		cache:    newResultCache(opts.CacheMaxEntries, !opts.DisableCaching),
		metrics:  newMetricsAccumulator(),
		governor: newMemoryGovernor(opts.MemoryThresholdMB),
	}, nil
}

// runState carries one run's coordinator-owned bookkeeping between the
// dispatch loop and its helpers.
type runState struct {
	runID    string
	opts     Options
	workers  int
	totalOps int

	progress   *progressTracker
	results    []BatchResult
	failures   []Failure
	sinceCheck int

	log zerolog.Logger
}

// Process generates artifacts for the given operations in bulk mode: the
// list is partitioned into batches, batches run concurrently on the worker
// pool, and artifacts are reassembled in input order. Failed batches are
// recorded in the result and do not abort the run.
//
// Cancelling ctx stops dispatch promptly and returns the partial result
// alongside the context error; operations never dispatched are absent from
// both artifacts and failures.
func (e *Engine) Process(ctx context.Context, operations []Operation, spec SpecHandle, transform TransformFunc) (*Result, error) {
	if transform == nil {
		return nil, fmt.Errorf("%w: transform cannot be nil", ErrInvalidConfiguration)
	}
	if !e.mu.TryLock() {
		return nil, ErrEngineBusy
	}
	defer e.mu.Unlock()

	e.processing.Store(true)
	defer e.processing.Store(false)

	opts := e.opts
	workers := opts.workerCount()
	runID := ulid.Make().String()
	log := logging.ComponentLogger(logging.FromContext(ctx), "engine")

	e.metrics.beginRun(runID, len(operations), workers)
	result := &Result{RunID: runID}

	if len(operations) == 0 {
		opts.Observer.RunStarted(RunPlan{RunID: runID, Workers: workers, BatchSize: opts.BatchSize})
		e.metrics.finalize()
		result.Metrics = e.metrics.Snapshot()
		opts.Observer.RunCompleted(result.Metrics)
		return result, nil
	}

	size := e.effectiveBatchSize(len(operations), opts, workers)
	batches, err := Partition(operations, size)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Ctx(ctx).
		Str("operation", "process").
		Str("run_id", runID).
		Int("operations", len(operations)).
		Int("batches", len(batches)).
		Int("batch_size", size).
		Int("workers", workers).
		Msg("starting bulk run")

	rs := &runState{
		runID:    runID,
		opts:     opts,
		workers:  workers,
		totalOps: len(operations),
		progress: newProgressTracker(len(operations), len(batches), size),
		log:      log,
	}

	opts.Observer.RunStarted(RunPlan{
		RunID:           runID,
		TotalOperations: len(operations),
		TotalBatches:    len(batches),
		BatchSize:       size,
		Workers:         workers,
	})

	pool := startWorkerPool(ctx, workers, opts.Timeout, transform, spec)
	slots, dispatchErr := e.dispatchBatches(ctx, pool, batches, rs)
	pool.shutdown()

	for _, artifacts := range slots {
		result.Artifacts = append(result.Artifacts, artifacts...)
	}
	sort.Slice(rs.results, func(i, j int) bool { return rs.results[i].Index < rs.results[j].Index })
	sort.Slice(rs.failures, func(i, j int) bool { return rs.failures[i].BatchIndex < rs.failures[j].BatchIndex })
	result.Batches = rs.results
	result.Failures = rs.failures

	e.metrics.finalize()
	result.Metrics = e.metrics.Snapshot()
	opts.Observer.RunCompleted(result.Metrics)

	if dispatchErr != nil {
		log.Warn().
			Ctx(ctx).
			Str("operation", "process").
			Str("run_id", runID).
			Err(dispatchErr).
			Msg("bulk run aborted")
		return result, dispatchErr
	}

	log.Info().
		Ctx(ctx).
		Str("operation", "process").
		Str("run_id", runID).
		Int64("processed", result.Metrics.ProcessedOperations).
		Int64("failed", result.Metrics.FailedOperations).
		Int64("cache_hits", result.Metrics.CacheHits).
		Dur("elapsed", result.Metrics.Elapsed).
		Msg("bulk run complete")

	return result, nil
}

// dispatchBatches feeds batches to the pool, serving cache hits without
// dispatch, collecting outcomes as workers finish, and re-dispatching
// retryable failures. The returned slots hold each batch's artifacts at its
// position relative to batches[0].
func (e *Engine) dispatchBatches(ctx context.Context, pool *workerPool, batches []Batch, rs *runState) ([][]Artifact, error) {
	if len(batches) == 0 {
		return nil, nil
	}

	slots := make([][]Artifact, len(batches))
	base := batches[0].Index
	next := 0
	pending := 0
	var retries []batchJob

	handle := func(out batchOutcome) {
		pending--
		slot := out.index - base

		if out.err != nil && errors.Is(out.err, ErrWorkerFailure) && out.attempt < rs.opts.MaxBatchRetries {
			rs.log.Debug().
				Int("batch", out.index).
				Int("attempt", out.attempt).
				Msg("retrying failed batch")
			retries = append(retries, batchJob{
				batch:       batches[slot],
				fingerprint: out.fingerprint,
				attempt:     out.attempt + 1,
			})
			return
		}

		result := BatchResult{
			BatchID:          out.batchID,
			Index:            out.index,
			Operations:       out.operations,
			ProcessingTime:   out.duration,
			MemoryDeltaBytes: out.memoryDelta,
			WorkerID:         out.workerID,
			Retries:          out.attempt,
		}

		if out.err != nil {
			result.Errors = []string{out.err.Error()}
			rs.failures = append(rs.failures, Failure{
				BatchIndex:    out.index,
				OperationKeys: operationKeys(batches[slot].Operations),
				Err:           out.err.Error(),
			})
			rs.log.Warn().
				Int("batch", out.index).
				Int("operations", out.operations).
				Err(out.err).
				Msg("batch failed")
		} else {
			slots[slot] = out.artifacts
			e.cache.Store(out.fingerprint, batches[slot].Operations, out.artifacts)
		}

		e.finishBatch(rs, result)
	}

	for next < len(batches) || len(retries) > 0 || pending > 0 {
		var job batchJob
		haveJob := false
		fromRetry := false

		switch {
		case len(retries) > 0:
			job = retries[0]
			haveJob = true
			fromRetry = true
		case next < len(batches):
			b := batches[next]
			if e.cache.enabled.Load() {
				artifacts, fp, hit, corrupted := e.cache.Lookup(b.Operations)
				e.metrics.recordLookup(hit)
				if corrupted {
					rs.log.Warn().
						Int("batch", b.Index).
						Str("fingerprint", fp.Short()).
						Err(ErrCacheCorruption).
						Msg("dropped corrupted cache entry, recomputing batch")
				}
				if hit {
					next++
					slots[b.Index-base] = artifacts
					rs.log.Debug().
						Int("batch", b.Index).
						Str("fingerprint", fp.Short()).
						Msg("cache hit")
					e.finishBatch(rs, BatchResult{
						BatchID:    b.ID,
						Index:      b.Index,
						Operations: len(b.Operations),
						FromCache:  true,
						WorkerID:   -1,
					})
					continue
				}
				job = batchJob{batch: b, fingerprint: fp}
			} else {
				job = batchJob{batch: b}
			}
			haveJob = true
		}

		if haveJob {
			select {
			case pool.jobs <- job:
				if fromRetry {
					retries = retries[1:]
				} else {
					next++
				}
				pending++
			case out := <-pool.results:
				handle(out)
			case <-ctx.Done():
				return slots, ctx.Err()
			}
			continue
		}

		select {
		case out := <-pool.results:
			handle(out)
		case <-ctx.Done():
			return slots, ctx.Err()
		}
	}

	return slots, nil
}

// finishBatch records a final batch outcome on metrics and progress, fires
// the observer, and runs the governor on its cadence.
func (e *Engine) finishBatch(rs *runState, result BatchResult) {
	e.metrics.recordBatch(result)

	if result.Failed() {
		rs.progress.recordBatch(0, result.Operations)
	} else {
		rs.progress.recordBatch(result.Operations, 0)
	}

	rs.results = append(rs.results, result)
	rs.opts.Observer.BatchCompleted(result, rs.progress.snapshot())

	rs.sinceCheck++
	if rs.sinceCheck >= governorCheckInterval {
		rs.sinceCheck = 0
		e.checkGovernor(rs)
	}
}

// checkGovernor samples heap pressure and, when over threshold, evicts cache
// entries, requests reclamation, and notifies the observer.
func (e *Engine) checkGovernor(rs *runState) {
	heapBytes, over := e.governor.checkPressure()
	e.metrics.observeHeap(heapBytes)
	if !over {
		return
	}

	warning := e.governor.relieve(e.cache, heapBytes, rs.totalOps, rs.opts.BatchSize, rs.workers, rs.opts.MemoryThresholdMB)
	e.metrics.recordPressure()

	rs.log.Warn().
		Uint64("heap_bytes", heapBytes).
		Uint64("threshold_bytes", warning.ThresholdBytes).
		Int("evicted_entries", warning.EvictedEntries).
		Int("suggested_batch_size", warning.SuggestedBatchSize).
		Msg("memory pressure, shrinking footprint")

	rs.opts.Observer.MemoryPressure(warning)
}

// effectiveBatchSize computes this run's batch size from live heap usage,
// clamped to [1, configured].
func (e *Engine) effectiveBatchSize(operationCount int, opts Options, workers int) int {
	return OptimalBatchSize(operationCount, opts.BatchSize, workers, opts.MemoryThresholdMB, e.governor.sampleHeap())
}

// Metrics returns a snapshot of the current run's metrics, or the most
// recent run's once idle. Safe to call from any goroutine.
func (e *Engine) Metrics() Metrics {
	return e.metrics.Snapshot()
}

// CacheStats returns a snapshot of the result cache counters. Safe to call
// from any goroutine.
func (e *Engine) CacheStats() CacheStats {
	return e.cache.Stats()
}

// IsProcessing reports whether a run is currently active.
func (e *Engine) IsProcessing() bool {
	return e.processing.Load()
}

// ClearCache drops every cached entry. If a run is active the call blocks
// until it finishes. Must not be called from Observer callbacks.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache.Clear()
}

// UpdateOptions applies a partial configuration update for subsequent runs.
// Returns ErrEngineBusy while a run is active and ErrInvalidConfiguration
// if the patched options are out of range; the engine is unchanged on error.
func (e *Engine) UpdateOptions(patch OptionsPatch) error {
	if !e.mu.TryLock() {
		return ErrEngineBusy
	}
	defer e.mu.Unlock()

	updated := patch.apply(e.opts).normalized()
	if err := updated.Validate(); err != nil {
		return err
	}

	e.opts = updated
	e.governor.thresholdBytes = uint64(updated.MemoryThresholdMB) * bytesPerMB
	e.cache.enabled.Store(!updated.DisableCaching)
	e.cache.maxEntries.Store(int64(updated.CacheMaxEntries))
	e.cache.EvictOldest(updated.CacheMaxEntries)

	return nil
}

// operationKeys returns the identity keys for a batch's operations.
func operationKeys(operations []Operation) []string {
	keys := make([]string, len(operations))
	for i, op := range operations {
		keys[i] = op.Key()
	}
	return keys
}
