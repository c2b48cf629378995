package engine

import (
	"sync/atomic"
	"time"
)

// Metrics is a snapshot of run metrics. Counters reflect the current run
// while one is active, or the most recent run otherwise. All values are
// real outcomes: ProcessedOperations+FailedOperations always equals
// TotalOperations once a run completes.
type Metrics struct {
	// RunID identifies the run the metrics describe.
	RunID string `json:"run_id"`

	// TotalOperations is the number of operations submitted to the run.
	TotalOperations int64 `json:"total_operations"`

	// ProcessedOperations is the number of operations whose batches
	// succeeded.
	ProcessedOperations int64 `json:"processed_operations"`

	// FailedOperations is the number of operations whose batches failed.
	FailedOperations int64 `json:"failed_operations"`

	// BatchCount is the number of batches with a recorded outcome,
	// including cache-served batches.
	BatchCount int64 `json:"batch_count"`

	// CacheHits is the number of cache-served batches in the run.
	CacheHits int64 `json:"cache_hits"`

	// CacheLookups is the number of cache lookups in the run.
	CacheLookups int64 `json:"cache_lookups"`

	// CacheHitRatio is CacheHits/CacheLookups for the run.
	CacheHitRatio float64 `json:"cache_hit_ratio"`

	// WorkerCount is the number of workers the run used.
	WorkerCount int `json:"worker_count"`

	// ChunksDelivered is the number of sink deliveries for a streaming
	// run, 0 for bulk.
	ChunksDelivered int64 `json:"chunks_delivered"`

	// Elapsed is the run's wall time so far, frozen at completion.
	Elapsed time.Duration `json:"elapsed"`

	// OperationsPerSecond is TotalOperations divided by elapsed seconds.
	OperationsPerSecond float64 `json:"operations_per_second"`

	// AverageBatchTime is the mean recorded batch processing time,
	// including the zero times of cache-served batches.
	AverageBatchTime time.Duration `json:"average_batch_time"`

	// MemoryWarnings is the number of governor pressure reactions during
	// the run.
	MemoryWarnings int64 `json:"memory_warnings"`

	// PeakHeapBytes is the highest heap sample the governor observed
	// during the run.
	PeakHeapBytes uint64 `json:"peak_heap_bytes"`
}

// metricsAccumulator aggregates one run's counters. Mutated only by the
// coordinating goroutine; every field is an atomic so Snapshot is safe to
// call from any goroutine mid-run.
type metricsAccumulator struct {
	runID atomic.Value // string

	totalOperations     atomic.Int64
	processedOperations atomic.Int64
	failedOperations    atomic.Int64
	batchCount          atomic.Int64
	cacheHits           atomic.Int64
	cacheLookups        atomic.Int64
	batchTimeTotal      atomic.Int64 // nanoseconds
	workerCount         atomic.Int64
	chunksDelivered     atomic.Int64
	memoryWarnings      atomic.Int64
	peakHeap            atomic.Uint64

	startNano atomic.Int64
	endNano   atomic.Int64
}

func newMetricsAccumulator() *metricsAccumulator {
	m := &metricsAccumulator{}
	m.runID.Store("")
	return m
}

// beginRun resets every counter for a new run.
func (m *metricsAccumulator) beginRun(runID string, totalOperations, workers int) {
	m.runID.Store(runID)
	m.totalOperations.Store(int64(totalOperations))
	m.processedOperations.Store(0)
	m.failedOperations.Store(0)
	m.batchCount.Store(0)
	m.cacheHits.Store(0)
	m.cacheLookups.Store(0)
	m.batchTimeTotal.Store(0)
	m.workerCount.Store(int64(workers))
	m.chunksDelivered.Store(0)
	m.memoryWarnings.Store(0)
	m.peakHeap.Store(0)
	m.startNano.Store(time.Now().UnixNano())
	m.endNano.Store(0)
}

// recordBatch accounts for one batch outcome.
func (m *metricsAccumulator) recordBatch(result BatchResult) {
	m.batchCount.Add(1)
	m.batchTimeTotal.Add(int64(result.ProcessingTime))
	if result.Failed() {
		m.failedOperations.Add(int64(result.Operations))
		return
	}
	m.processedOperations.Add(int64(result.Operations))
}

// recordLookup accounts for one cache lookup and whether it hit.
func (m *metricsAccumulator) recordLookup(hit bool) {
	m.cacheLookups.Add(1)
	if hit {
		m.cacheHits.Add(1)
	}
}

// recordChunk accounts for one delivered streaming chunk.
func (m *metricsAccumulator) recordChunk() {
	m.chunksDelivered.Add(1)
}

// recordPressure accounts for one governor reaction.
func (m *metricsAccumulator) recordPressure() {
	m.memoryWarnings.Add(1)
}

// observeHeap tracks the peak heap sample.
func (m *metricsAccumulator) observeHeap(heapBytes uint64) {
	for {
		peak := m.peakHeap.Load()
		if heapBytes <= peak || m.peakHeap.CompareAndSwap(peak, heapBytes) {
			return
		}
	}
}

// finalize freezes the run's elapsed time.
func (m *metricsAccumulator) finalize() {
	m.endNano.Store(time.Now().UnixNano())
}

// Snapshot returns the current metrics. Elapsed runs live until finalize.
func (m *metricsAccumulator) Snapshot() Metrics {
	start := m.startNano.Load()
	end := m.endNano.Load()

	var elapsed time.Duration
	switch {
	case start == 0:
		elapsed = 0
	case end == 0:
		elapsed = time.Duration(time.Now().UnixNano() - start)
	default:
		elapsed = time.Duration(end - start)
	}

	total := m.totalOperations.Load()
	batches := m.batchCount.Load()
	hits := m.cacheHits.Load()
	lookups := m.cacheLookups.Load()

	var opsPerSecond float64
	if secs := elapsed.Seconds(); secs > 0 {
		opsPerSecond = float64(total) / secs
	}

	var avgBatch time.Duration
	if batches > 0 {
		avgBatch = time.Duration(m.batchTimeTotal.Load() / batches)
	}

	var hitRatio float64
	if lookups > 0 {
		hitRatio = float64(hits) / float64(lookups)
	}

	runID, _ := m.runID.Load().(string)

	return Metrics{
		RunID:               runID,
		TotalOperations:     total,
		ProcessedOperations: m.processedOperations.Load(),
		FailedOperations:    m.failedOperations.Load(),
		BatchCount:          batches,
		CacheHits:           hits,
		CacheLookups:        lookups,
		CacheHitRatio:       hitRatio,
		WorkerCount:         int(m.workerCount.Load()),
		ChunksDelivered:     m.chunksDelivered.Load(),
		Elapsed:             elapsed,
		OperationsPerSecond: opsPerSecond,
		AverageBatchTime:    avgBatch,
		MemoryWarnings:      m.memoryWarnings.Load(),
		PeakHeapBytes:       m.peakHeap.Load(),
	}
}
