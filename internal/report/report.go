package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/specforge/specforge/internal/engine"
	"github.com/specforge/specforge/internal/spec"
)

// defaultSampleLimit caps how many artifacts a report embeds as samples.
const defaultSampleLimit = 3

// Report is the full record of one generation run.
type Report struct {
	// Title is the surface document title.
	Title string `json:"title"`

	// DocumentPath is the source document location, when known.
	DocumentPath string `json:"document_path,omitempty"`

	// SpecVersion is the document's declared format version.
	SpecVersion string `json:"spec_version"`

	// GeneratorVersion is the specforge build that produced the run.
	GeneratorVersion string `json:"generator_version"`

	// GeneratedAt is when the report was built.
	GeneratedAt time.Time `json:"generated_at"`

	// RunID identifies the engine run.
	RunID string `json:"run_id"`

	// Streaming marks runs delivered chunk-by-chunk through a sink.
	Streaming bool `json:"streaming"`

	// ArtifactCount is the number of artifacts the run produced.
	ArtifactCount int `json:"artifact_count"`

	// CachedBatches counts batches served from the result cache.
	CachedBatches int `json:"cached_batches"`

	// FailedBatches counts batches that produced no artifacts.
	FailedBatches int `json:"failed_batches"`

	// Metrics is the engine's metrics snapshot for the run.
	Metrics engine.Metrics `json:"metrics"`

	// Failures traces failed batches to their excluded operations.
	Failures []engine.Failure `json:"failures,omitempty"`

	// Samples embeds the first few artifacts for human inspection.
	Samples []Sample `json:"samples,omitempty"`
}

// Sample is one artifact embedded in the report.
type Sample struct {
	ID   string          `json:"id"`
	Kind string          `json:"kind"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// Params carries everything Build needs to assemble a Report.
type Params struct {
	// Document is the loaded surface document.
	Document *spec.Document

	// DocumentPath is the source path, for provenance. Optional.
	DocumentPath string

	// Result is the engine outcome for the run.
	Result *engine.Result

	// Version is the specforge build version string.
	Version string

	// GeneratedAt stamps the report. Callers pass time.Now().
	GeneratedAt time.Time

	// Streaming marks a streaming run.
	Streaming bool

	// ArtifactCount overrides the artifact count for streaming runs,
	// where Result.Artifacts is nil and the sink kept the tally. Zero
	// means count Result.Artifacts.
	ArtifactCount int

	// SampleLimit caps embedded samples. Zero means the default.
	SampleLimit int
}

// Build assembles a Report from a finished run.
func Build(params Params) *Report {
	result := params.Result

	cached, failed := 0, 0
	for _, batch := range result.Batches {
		if batch.FromCache {
			cached++
		}
		if batch.Failed() {
			failed++
		}
	}

	artifactCount := params.ArtifactCount
	if artifactCount == 0 {
		artifactCount = len(result.Artifacts)
	}

	limit := params.SampleLimit
	if limit <= 0 {
		limit = defaultSampleLimit
	}
	if limit > len(result.Artifacts) {
		limit = len(result.Artifacts)
	}
	samples := make([]Sample, 0, limit)
	for _, artifact := range result.Artifacts[:limit] {
		samples = append(samples, Sample{
			ID:   artifact.ID,
			Kind: artifact.Kind,
			Name: artifact.Name,
			Data: artifact.Data,
		})
	}

	return &Report{
		Title:            params.Document.Title,
		DocumentPath:     params.DocumentPath,
		SpecVersion:      params.Document.SpecVersion,
		GeneratorVersion: params.Version,
		GeneratedAt:      params.GeneratedAt,
		RunID:            result.RunID,
		Streaming:        params.Streaming,
		ArtifactCount:    artifactCount,
		CachedBatches:    cached,
		FailedBatches:    failed,
		Metrics:          result.Metrics,
		Failures:         result.Failures,
		Samples:          samples,
	}
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func (r *Report) mode() string {
	if r.Streaming {
		return "streaming"
	}
	return "bulk"
}

// formatBytes renders a byte count in binary units.
func formatBytes(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
