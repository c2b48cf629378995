// Package report renders generation run reports.
//
// A Report is built once from the engine result plus document metadata,
// then rendered to any of the supported targets: canonical JSON, a
// Markdown document with sample artifacts as fenced code blocks, an HTML
// page with syntax-highlighted snippets, and a styled terminal summary.
package report
