package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// RenderMarkdown writes the report as a Markdown document. Output is
// deterministic for a given report, so rendered reports diff cleanly
// between runs.
func RenderMarkdown(w io.Writer, r *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run Report: %s\n", r.Title)
	b.WriteString("\n")
	if r.DocumentPath != "" {
		fmt.Fprintf(&b, "- Document: %s\n", r.DocumentPath)
	}
	fmt.Fprintf(&b, "- Spec version: %s\n", r.SpecVersion)
	fmt.Fprintf(&b, "- Generator: specforge %s\n", r.GeneratorVersion)
	fmt.Fprintf(&b, "- Run ID: %s\n", r.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Mode: %s\n", r.mode())

	b.WriteString("\n## Summary\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	for _, row := range summaryRows(r) {
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], row[1])
	}

	if len(r.Failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		b.WriteString("| Batch | Operations | Error |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, failure := range r.Failures {
			fmt.Fprintf(&b, "| %d | %s | %s |\n",
				failure.BatchIndex, strings.Join(failure.OperationKeys, ", "), failure.Err)
		}
	}

	if len(r.Samples) > 0 {
		b.WriteString("\n## Sample Artifacts\n")
		for _, sample := range r.Samples {
			fmt.Fprintf(&b, "\n### %s (%s)\n\n", sample.Name, sample.Kind)
			b.WriteString("```json\n")
			b.WriteString(indentJSON(sample.Data))
			b.WriteString("\n```\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func summaryRows(r *Report) [][2]string {
	m := r.Metrics
	return [][2]string{
		{"Operations", strconv.FormatInt(m.TotalOperations, 10)},
		{"Processed", strconv.FormatInt(m.ProcessedOperations, 10)},
		{"Failed", strconv.FormatInt(m.FailedOperations, 10)},
		{"Artifacts", strconv.Itoa(r.ArtifactCount)},
		{"Batches", strconv.FormatInt(m.BatchCount, 10)},
		{"Cached batches", strconv.Itoa(r.CachedBatches)},
		{"Failed batches", strconv.Itoa(r.FailedBatches)},
		{"Workers", strconv.Itoa(m.WorkerCount)},
		{"Elapsed", m.Elapsed.Round(time.Millisecond).String()},
		{"Average batch time", m.AverageBatchTime.Round(time.Millisecond).String()},
		{"Throughput", fmt.Sprintf("%.1f ops/s", m.OperationsPerSecond)},
		{"Cache hit ratio", fmt.Sprintf("%.1f%%", m.CacheHitRatio*100)},
		{"Peak heap", formatBytes(m.PeakHeapBytes)},
		{"Memory warnings", strconv.FormatInt(m.MemoryWarnings, 10)},
	}
}

// indentJSON pretty-prints a raw JSON value, falling back to the raw
// bytes if they do not indent cleanly.
func indentJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
