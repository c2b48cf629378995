// Package generator synthesizes executable test cases from API operation
// descriptors. It supplies the default transform handed to the engine.
//
// For every operation it emits a positive "request" artifact (method, URL
// with example values, headers, body, expected statuses) and, unless
// disabled, one "negative" artifact per required field with that field
// omitted. Credentials are never resolved here; artifacts carry
// {{credential:NAME}} references a test runner substitutes later.
//
// Output is deterministic for a given document so identical batches hash
// to identical artifacts and engine cache replay is transparent.
package generator
