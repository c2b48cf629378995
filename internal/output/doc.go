// Package output persists generated artifacts to disk.
//
// Two layouts are supported: one JSON file per artifact (written
// concurrently), or a single NDJSON bundle appended in artifact order.
// Both optionally compress with zstd. A Writer doubles as the sink target
// for streaming runs: chunks append to the same bundle across calls and
// the running artifact count feeds the final report.
package output
