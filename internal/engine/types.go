package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Operation is a single API operation descriptor supplied by the caller.
// Operations are immutable inputs; the engine never mutates them.
type Operation struct {
	// ID is the operation identifier from the source document (e.g. "listUsers").
	ID string `json:"id"`

	// Method is the HTTP method ("GET", "POST", ...).
	Method string `json:"method"`

	// Path is the route template ("/users/{id}").
	Path string `json:"path"`

	// Description is an optional human-readable summary.
	Description string `json:"description,omitempty"`

	// Definition is the raw operation definition handed through to the
	// transform. The engine treats it as opaque.
	Definition json.RawMessage `json:"definition,omitempty"`
}

// Key returns the identity of the operation used for fingerprinting and
// failure traceability.
func (o Operation) Key() string {
	return fmt.Sprintf("%s %s#%s", o.Method, o.Path, o.ID)
}

// Artifact is a single generated test artifact. The engine treats artifact
// content as opaque; it only guarantees ordering and delivery.
type Artifact struct {
	// ID uniquely identifies the artifact within a run.
	ID string `json:"id"`

	// OperationKey links the artifact back to the operation it was
	// generated for.
	OperationKey string `json:"operation_key"`

	// Kind classifies the artifact (e.g. "request", "negative", "fuzz").
	Kind string `json:"kind"`

	// Name is a human-readable artifact name.
	Name string `json:"name"`

	// Data is the artifact payload.
	Data json.RawMessage `json:"data"`
}

// SpecHandle is an opaque read-only context object passed through to the
// transform, typically the parsed source document.
type SpecHandle interface{}

// TransformFunc synthesizes artifacts for a batch of operations. It is
// supplied by the caller and executed on worker goroutines; it must be safe
// for concurrent invocation and should honor ctx cancellation. The result
// cache replays stored artifacts for previously seen operation sequences, so
// transforms are expected to be deterministic; disable caching when they are
// not.
type TransformFunc func(ctx context.Context, operations []Operation, spec SpecHandle) ([]Artifact, error)

// SinkFunc receives one streamed chunk's artifacts. Sinks are invoked
// serially in chunk order; the next chunk is not processed until the sink
// returns. A sink error aborts the streaming run.
type SinkFunc func(ctx context.Context, chunk ChunkResult) error

// Batch is a contiguous slice of operations submitted together to one worker.
type Batch struct {
	// ID is the unique batch identifier.
	ID string

	// Index is the 0-based position of the batch within the run.
	Index int

	// Operations are the batch members, in input order.
	Operations []Operation

	// SubmittedAt records when the batch was formed.
	SubmittedAt time.Time
}

// BatchResult describes the outcome of a single batch.
type BatchResult struct {
	// BatchID is the identifier of the batch this result belongs to.
	BatchID string `json:"batch_id"`

	// Index is the batch's 0-based position within the run.
	Index int `json:"index"`

	// Operations is the number of operations in the batch.
	Operations int `json:"operations"`

	// ProcessingTime is how long the transform took. Zero for cache-served
	// batches.
	ProcessingTime time.Duration `json:"processing_time"`

	// MemoryDeltaBytes is the heap delta observed across the transform.
	// Negative values indicate the collector ran during processing.
	MemoryDeltaBytes int64 `json:"memory_delta_bytes"`

	// FromCache indicates the batch was served from the result cache
	// without worker dispatch.
	FromCache bool `json:"from_cache"`

	// WorkerID is the index of the worker that processed the batch, or -1
	// for cache-served batches.
	WorkerID int `json:"worker_id"`

	// Retries is the number of times the batch was re-dispatched after a
	// worker failure.
	Retries int `json:"retries"`

	// Errors holds the failure messages for the batch. Empty on success.
	Errors []string `json:"errors,omitempty"`
}

// Failed reports whether the batch produced no artifacts due to an error.
func (r BatchResult) Failed() bool {
	return len(r.Errors) > 0
}

// Failure records a failed batch with enough detail to trace every excluded
// operation back to its error.
type Failure struct {
	// BatchIndex is the 0-based index of the failed batch.
	BatchIndex int `json:"batch_index"`

	// OperationKeys identifies every operation excluded by the failure.
	OperationKeys []string `json:"operation_keys"`

	// Err is the failure message.
	Err string `json:"error"`
}

// ChunkResult is the unit delivered to a streaming sink: one chunk's
// artifacts plus cumulative run progress.
type ChunkResult struct {
	// Index is the 0-based chunk position.
	Index int `json:"index"`

	// Operations is the number of operations in this chunk.
	Operations int `json:"operations"`

	// Artifacts holds the chunk's generated artifacts in input order.
	Artifacts []Artifact `json:"artifacts"`

	// ProcessedOperations is the cumulative count of successfully processed
	// operations across the run so far, including this chunk.
	ProcessedOperations int64 `json:"processed_operations"`

	// FailedOperations is the cumulative count of failed operations across
	// the run so far.
	FailedOperations int64 `json:"failed_operations"`

	// TotalOperations is the total operation count of the run.
	TotalOperations int64 `json:"total_operations"`
}

// Result is the outcome of a Process or ProcessStreaming call.
type Result struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Artifacts holds all generated artifacts in input operation order.
	// Nil for streaming runs, where artifacts are delivered via the sink.
	Artifacts []Artifact `json:"artifacts,omitempty"`

	// Batches describes every batch outcome, ordered by batch index.
	Batches []BatchResult `json:"batches"`

	// Failures enumerates failed batches and their excluded operations.
	Failures []Failure `json:"failures,omitempty"`

	// Metrics is the metrics snapshot taken when the run finished.
	Metrics Metrics `json:"metrics"`
}
