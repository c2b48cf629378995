package engine

import (
	"fmt"
	"runtime"
	"time"
)

// Default engine configuration.
const (
	// DefaultBatchSize is the default upper bound on operations per batch.
	DefaultBatchSize = 10

	// DefaultChunkSize is the default number of operations per streamed chunk.
	DefaultChunkSize = 50

	// DefaultMemoryThresholdMB is the default governor pressure trigger.
	DefaultMemoryThresholdMB = 512

	// DefaultTimeout is the default per-batch deadline.
	DefaultTimeout = 30 * time.Second

	// DefaultCacheMaxEntries is the default result cache ceiling.
	DefaultCacheMaxEntries = 256

	// MaxWorkerCeiling caps the worker count regardless of available cores.
	MaxWorkerCeiling = 8
)

// Options configures an Engine. The zero value selects every default:
// callers only set what they need to change.
type Options struct {
	// MaxWorkers is the upper bound on concurrent workers. The effective
	// worker count is min(available parallelism, MaxWorkers). Defaults to
	// MaxWorkerCeiling.
	MaxWorkers int

	// BatchSize is the upper bound on operations per batch. Dynamic sizing
	// may shrink batches below this, never grow them. Defaults to
	// DefaultBatchSize.
	BatchSize int

	// MemoryThresholdMB is the heap size at which the memory governor
	// reacts. Defaults to DefaultMemoryThresholdMB.
	MemoryThresholdMB int

	// DisableCaching turns the result cache off. Caching is enabled by
	// default.
	DisableCaching bool

	// DisableStreaming makes drivers that consult the options prefer bulk
	// mode. Both entry points remain callable either way. Streaming is
	// preferred by default.
	DisableStreaming bool

	// ChunkSize is the number of operations per streamed chunk. Defaults
	// to DefaultChunkSize.
	ChunkSize int

	// Timeout is the per-batch processing deadline. Defaults to
	// DefaultTimeout.
	Timeout time.Duration

	// CacheMaxEntries is the result cache ceiling; oldest entries are
	// evicted beyond it. Defaults to DefaultCacheMaxEntries.
	CacheMaxEntries int

	// MaxBatchRetries is how many times a batch is re-dispatched after a
	// worker failure. Timeouts are never retried. Defaults to 0.
	MaxBatchRetries int

	// Observer receives advisory run notifications. Defaults to
	// NopObserver.
	Observer Observer
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		MaxWorkers:        MaxWorkerCeiling,
		BatchSize:         DefaultBatchSize,
		MemoryThresholdMB: DefaultMemoryThresholdMB,
		ChunkSize:         DefaultChunkSize,
		Timeout:           DefaultTimeout,
		CacheMaxEntries:   DefaultCacheMaxEntries,
		Observer:          NopObserver{},
	}
}

// normalized returns a copy of o with zero-value fields replaced by defaults.
func (o Options) normalized() Options {
	defaults := DefaultOptions()
	if o.MaxWorkers == 0 {
		o.MaxWorkers = defaults.MaxWorkers
	}
	if o.BatchSize == 0 {
		o.BatchSize = defaults.BatchSize
	}
	if o.MemoryThresholdMB == 0 {
		o.MemoryThresholdMB = defaults.MemoryThresholdMB
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = defaults.ChunkSize
	}
	if o.Timeout == 0 {
		o.Timeout = defaults.Timeout
	}
	if o.CacheMaxEntries == 0 {
		o.CacheMaxEntries = defaults.CacheMaxEntries
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	return o
}

// Validate checks option bounds. Violations are fatal configuration errors.
func (o Options) Validate() error {
	if o.MaxWorkers < 1 {
		return fmt.Errorf("%w: max workers must be >= 1, got %d", ErrInvalidConfiguration, o.MaxWorkers)
	}
	if o.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidConfiguration, o.BatchSize)
	}
	if o.MemoryThresholdMB < 1 {
		return fmt.Errorf("%w: memory threshold must be >= 1 MB, got %d", ErrInvalidConfiguration, o.MemoryThresholdMB)
	}
	if o.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk size must be >= 1, got %d", ErrInvalidConfiguration, o.ChunkSize)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfiguration, o.Timeout)
	}
	if o.CacheMaxEntries < 1 {
		return fmt.Errorf("%w: cache max entries must be >= 1, got %d", ErrInvalidConfiguration, o.CacheMaxEntries)
	}
	if o.MaxBatchRetries < 0 {
		return fmt.Errorf("%w: max batch retries must be >= 0, got %d", ErrInvalidConfiguration, o.MaxBatchRetries)
	}
	return nil
}

// workerCount returns the effective worker count for the options: the lesser
// of available parallelism and MaxWorkers.
func (o Options) workerCount() int {
	n := runtime.GOMAXPROCS(0)
	if o.MaxWorkers < n {
		n = o.MaxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// OptionsPatch is a partial configuration update. Nil fields leave the
// corresponding option unchanged.
type OptionsPatch struct {
	// MaxWorkers updates Options.MaxWorkers.
	MaxWorkers *int

	// BatchSize updates Options.BatchSize.
	BatchSize *int

	// MemoryThresholdMB updates Options.MemoryThresholdMB.
	MemoryThresholdMB *int

	// DisableCaching updates Options.DisableCaching.
	DisableCaching *bool

	// DisableStreaming updates Options.DisableStreaming.
	DisableStreaming *bool

	// ChunkSize updates Options.ChunkSize.
	ChunkSize *int

	// Timeout updates Options.Timeout.
	Timeout *time.Duration

	// CacheMaxEntries updates Options.CacheMaxEntries.
	CacheMaxEntries *int

	// MaxBatchRetries updates Options.MaxBatchRetries.
	MaxBatchRetries *int

	// Observer updates Options.Observer.
	Observer Observer
}

// apply returns a copy of base with the patch's non-nil fields applied.
func (p OptionsPatch) apply(base Options) Options {
	if p.MaxWorkers != nil {
		base.MaxWorkers = *p.MaxWorkers
	}
	if p.BatchSize != nil {
		base.BatchSize = *p.BatchSize
	}
	if p.MemoryThresholdMB != nil {
		base.MemoryThresholdMB = *p.MemoryThresholdMB
	}
	if p.DisableCaching != nil {
		base.DisableCaching = *p.DisableCaching
	}
	if p.DisableStreaming != nil {
		base.DisableStreaming = *p.DisableStreaming
	}
	if p.ChunkSize != nil {
		base.ChunkSize = *p.ChunkSize
	}
	if p.Timeout != nil {
		base.Timeout = *p.Timeout
	}
	if p.CacheMaxEntries != nil {
		base.CacheMaxEntries = *p.CacheMaxEntries
	}
	if p.MaxBatchRetries != nil {
		base.MaxBatchRetries = *p.MaxBatchRetries
	}
	if p.Observer != nil {
		base.Observer = p.Observer
	}
	return base
}
