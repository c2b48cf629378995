// Package engine implements the parallel batch-processing core that turns
// API operation descriptors into generated test artifacts.
//
// The engine partitions an operation list into contiguous batches, dispatches
// them to a fixed pool of workers through channels, memoizes batch outputs in
// a fingerprint-keyed cache, and reassembles artifacts in input order. A
// memory governor watches heap usage and reacts by evicting cache entries and
// shrinking future batch sizing. Streaming mode processes one chunk at a time
// and hands each chunk's artifacts to a caller-supplied sink before the next
// chunk starts, bounding peak resident artifacts independent of input size.
//
// All cache, metrics, and partition state is owned by the coordinating
// goroutine; workers receive batches and return outcomes purely via message
// passing, so engine state needs no locks. Counters are mirrored through
// atomics so snapshot accessors are safe to call from any goroutine.
//
// The transformation that synthesizes artifacts from operations is supplied
// by the caller; the engine never decides artifact content, never parses
// documents, and never persists results.
package engine
