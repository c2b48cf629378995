package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// batchJob is a unit of work handed to a worker. The fingerprint is carried
// through so the coordinator can store the outcome without rehashing.
type batchJob struct {
	batch       Batch
	fingerprint Fingerprint
	attempt     int
}

// batchOutcome is a worker's reply to the coordinator. Workers never touch
// engine state; everything they learn travels back in this message.
type batchOutcome struct {
	index       int
	batchID     string
	fingerprint Fingerprint
	operations  int
	artifacts   []Artifact
	err         error
	duration    time.Duration
	memoryDelta int64
	workerID    int
	attempt     int
}

// workerPool owns a fixed set of worker goroutines for one run. Batches are
// dispatched over an unbuffered jobs channel, so at most `workers` batches
// are in flight and idle workers pick up work as they free up.
type workerPool struct {
	workers   int
	timeout   time.Duration
	transform TransformFunc
	spec      SpecHandle

	jobs    chan batchJob
	results chan batchOutcome
	wg      sync.WaitGroup
}

// startWorkerPool launches the workers. The pool must be released with
// shutdown once the coordinator has collected every expected outcome.
func startWorkerPool(ctx context.Context, workers int, timeout time.Duration, transform TransformFunc, spec SpecHandle) *workerPool {
	p := &workerPool{
		workers:   workers,
		timeout:   timeout,
		transform: transform,
		spec:      spec,
		jobs:      make(chan batchJob),
		results:   make(chan batchOutcome, workers),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	return p
}

// worker pulls jobs until the jobs channel closes or the run context ends.
func (p *workerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			outcome := p.runBatch(ctx, id, job)
			select {
			case p.results <- outcome:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// runBatch executes the transform for one batch under the per-batch
// deadline. The transform runs in a child goroutine so a stalled transform
// cannot wedge the worker past the deadline; on timeout the worker abandons
// it (the buffered reply channel lets it finish into the void) and reclaims
// itself for the next batch. Panics inside the transform are recovered and
// surfaced as worker failures.
func (p *workerPool) runBatch(ctx context.Context, workerID int, job batchJob) batchOutcome {
	outcome := batchOutcome{
		index:       job.batch.Index,
		batchID:     job.batch.ID,
		fingerprint: job.fingerprint,
		operations:  len(job.batch.Operations),
		workerID:    workerID,
		attempt:     job.attempt,
	}

	var before runtime.MemStats
	runtime.ReadMemStats(&before)
	start := time.Now()

	batchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type transformReply struct {
		artifacts []Artifact
		err       error
	}
	reply := make(chan transformReply, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				reply <- transformReply{err: fmt.Errorf("%w: transform panicked: %v", ErrWorkerFailure, r)}
			}
		}()
		artifacts, err := p.transform(batchCtx, job.batch.Operations, p.spec)
		if err != nil {
			reply <- transformReply{err: fmt.Errorf("%w: %w", ErrWorkerFailure, err)}
			return
		}
		reply <- transformReply{artifacts: artifacts}
	}()

	select {
	case r := <-reply:
		outcome.artifacts = r.artifacts
		outcome.err = r.err
	case <-batchCtx.Done():
		if ctx.Err() != nil {
			outcome.err = ctx.Err()
		} else {
			outcome.err = fmt.Errorf("%w: batch %d exceeded %s", ErrBatchTimeout, job.batch.Index, p.timeout)
		}
	}

	outcome.duration = time.Since(start)

	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	outcome.memoryDelta = int64(after.HeapAlloc) - int64(before.HeapAlloc)

	return outcome
}

// shutdown closes the jobs channel, drains any leftover outcomes so blocked
// workers can finish their sends, and waits for every worker to exit.
func (p *workerPool) shutdown() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
	for range p.results {
		// Drain outcomes nobody collected.
	}
}
