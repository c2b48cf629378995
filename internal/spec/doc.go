// Package spec loads and validates API surface documents, the source input
// for artifact generation.
//
// A surface document describes an API's operations (id, method, path,
// request and response shapes) plus document-level defaults. Documents are
// authored in YAML, JSON, or JSONC; every format is normalized to JSON
// before validation so one JSON Schema covers all three.
//
// Loading runs the full pipeline: decode, schema validation, semantic
// checks (duplicate operation ids), and the specVersion compatibility gate.
// A *Document returned without error is safe to hand to the engine.
package spec
