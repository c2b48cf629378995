package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/specforge/specforge/internal/logging"
)

// ProcessStreaming generates artifacts chunk by chunk and hands each chunk
// to sink as soon as it completes, so callers never hold the full artifact
// set in memory. Chunks are delivered strictly in input order from the
// coordinating goroutine; sink is never invoked concurrently. A chunkSize
// of zero or less selects the configured ChunkSize.
//
// The worker pool is shared across chunks, so workers stay busy at chunk
// boundaries. The returned Result carries batch outcomes, failures, and
// metrics but no artifacts; those belong to the sink.
//
// A sink error aborts the run after the failing chunk and is reported
// wrapped in ErrSinkFailure. Cancelling ctx aborts between batches; the
// in-flight chunk is never delivered partially.
func (e *Engine) ProcessStreaming(ctx context.Context, operations []Operation, spec SpecHandle, chunkSize int, transform TransformFunc, sink SinkFunc) (*Result, error) {
	if transform == nil {
		return nil, fmt.Errorf("%w: transform cannot be nil", ErrInvalidConfiguration)
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: sink cannot be nil", ErrInvalidConfiguration)
	}
	if !e.mu.TryLock() {
		return nil, ErrEngineBusy
	}
	defer e.mu.Unlock()

	e.processing.Store(true)
	defer e.processing.Store(false)

	opts := e.opts
	if chunkSize <= 0 {
		chunkSize = opts.ChunkSize
	}
	workers := opts.workerCount()
	runID := ulid.Make().String()
	log := logging.ComponentLogger(logging.FromContext(ctx), "engine")

	e.metrics.beginRun(runID, len(operations), workers)
	result := &Result{RunID: runID}

	if len(operations) == 0 {
		opts.Observer.RunStarted(RunPlan{RunID: runID, Workers: workers, BatchSize: opts.BatchSize, Streaming: true})
		e.metrics.finalize()
		result.Metrics = e.metrics.Snapshot()
		opts.Observer.RunCompleted(result.Metrics)
		return result, nil
	}

	chunks := chunkOperations(operations, chunkSize)
	size := e.effectiveBatchSize(len(operations), opts, workers)
	estimatedBatches := (len(operations) + size - 1) / size

	log.Debug().
		Ctx(ctx).
		Str("operation", "process_streaming").
		Str("run_id", runID).
		Int("operations", len(operations)).
		Int("chunks", len(chunks)).
		Int("chunk_size", chunkSize).
		Int("batch_size", size).
		Int("workers", workers).
		Msg("starting streaming run")

	rs := &runState{
		runID:    runID,
		opts:     opts,
		workers:  workers,
		totalOps: len(operations),
		progress: newProgressTracker(len(operations), estimatedBatches, size),
		log:      log,
	}

	opts.Observer.RunStarted(RunPlan{
		RunID:           runID,
		TotalOperations: len(operations),
		TotalBatches:    estimatedBatches,
		TotalChunks:     len(chunks),
		BatchSize:       size,
		Workers:         workers,
		Streaming:       true,
	})

	pool := startWorkerPool(ctx, workers, opts.Timeout, transform, spec)

	var runErr error
	nextIndex := 0
	for i, chunk := range chunks {
		chunkStart := time.Now()

		// Batch sizing tracks live heap, so chunks partitioned after a
		// governor reaction come out smaller.
		size = e.effectiveBatchSize(len(operations), opts, workers)
		batches, err := Partition(chunk, size)
		if err != nil {
			runErr = err
			break
		}
		for j := range batches {
			batches[j].Index += nextIndex
		}
		nextIndex += len(batches)

		slots, dispatchErr := e.dispatchBatches(ctx, pool, batches, rs)
		if dispatchErr != nil {
			runErr = dispatchErr
			break
		}

		var artifacts []Artifact
		for _, batchArtifacts := range slots {
			artifacts = append(artifacts, batchArtifacts...)
		}

		snap := rs.progress.snapshot()
		chunkResult := ChunkResult{
			Index:               i,
			Operations:          len(chunk),
			Artifacts:           artifacts,
			ProcessedOperations: int64(snap.ProcessedOperations),
			FailedOperations:    int64(snap.FailedOperations),
			TotalOperations:     int64(len(operations)),
		}

		if err := sink(ctx, chunkResult); err != nil {
			runErr = fmt.Errorf("%w: chunk %d: %w", ErrSinkFailure, i, err)
			break
		}

		e.metrics.recordChunk()
		opts.Observer.ChunkDelivered(ChunkStat{
			Index:               i,
			Operations:          len(chunk),
			Artifacts:           len(artifacts),
			Duration:            time.Since(chunkStart),
			CumulativeProcessed: int64(snap.ProcessedOperations),
		})

		if (i+1)%governorChunkInterval == 0 {
			e.checkGovernor(rs)
		}
	}

	pool.shutdown()

	sort.Slice(rs.results, func(i, j int) bool { return rs.results[i].Index < rs.results[j].Index })
	sort.Slice(rs.failures, func(i, j int) bool { return rs.failures[i].BatchIndex < rs.failures[j].BatchIndex })
	result.Batches = rs.results
	result.Failures = rs.failures

	e.metrics.finalize()
	result.Metrics = e.metrics.Snapshot()
	opts.Observer.RunCompleted(result.Metrics)

	if runErr != nil {
		log.Warn().
			Ctx(ctx).
			Str("operation", "process_streaming").
			Str("run_id", runID).
			Err(runErr).
			Msg("streaming run aborted")
		return result, runErr
	}

	log.Info().
		Ctx(ctx).
		Str("operation", "process_streaming").
		Str("run_id", runID).
		Int64("processed", result.Metrics.ProcessedOperations).
		Int64("failed", result.Metrics.FailedOperations).
		Int64("chunks", result.Metrics.ChunksDelivered).
		Dur("elapsed", result.Metrics.Elapsed).
		Msg("streaming run complete")

	return result, nil
}
