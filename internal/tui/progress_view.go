package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/specforge/specforge/internal/engine"
)

// bytesPerMiB converts heap byte counts for display.
const bytesPerMiB = 1 << 20

// textualDurationUnit is the rounding unit for durations shown in views.
const textualDurationUnit = time.Millisecond

// Styles shared by the progress views.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorHeader)
	okStyle      = lipgloss.NewStyle().Foreground(ColorOK)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	warnStyle    = lipgloss.NewStyle().Foreground(ColorWarning)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	helpStyle    = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
	cancelStyle  = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	batchIDStyle = lipgloss.NewStyle().Foreground(ColorMuted)
)

// RenderRunHeader renders the run title line.
//
// Parameters:
//   - plan: The run plan announced at dispatch time
//
// Returns a styled header including the run mode and worker count.
func RenderRunHeader(plan engine.RunPlan) string {
	mode := "bulk"
	if plan.Streaming {
		mode = "streaming"
	}

	title := titleStyle.Render("SpecForge")
	detail := mutedStyle.Render(fmt.Sprintf("run %s  %s  %d workers", plan.RunID, mode, plan.Workers))
	return title + "  " + detail
}

// RenderActivityLine renders the line next to the spinner describing what
// the run is currently doing.
func RenderActivityLine(plan engine.RunPlan, snapshot engine.ProgressSnapshot, chunks int) string {
	if snapshot.TotalBatches == 0 {
		return " preparing batches"
	}

	line := fmt.Sprintf(" batch %d/%d", snapshot.CompletedBatches, snapshot.TotalBatches)
	if plan.Streaming && plan.TotalChunks > 0 {
		line += fmt.Sprintf("  chunk %d/%d", chunks, plan.TotalChunks)
	}
	if snapshot.EstimatedRemaining > 0 {
		line += mutedStyle.Render(fmt.Sprintf("  ~%s left", snapshot.EstimatedRemaining.Round(textualDurationUnit)))
	}
	return line
}

// RenderCountsLine renders processed/failed operation counts with batch
// outcome tallies.
func RenderCountsLine(snapshot engine.ProgressSnapshot, failedBatches, cachedBatches int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%d/%d operations", snapshot.ProcessedOperations, snapshot.TotalOperations)

	if snapshot.OperationsPerSecond > 0 {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("  %.0f ops/s", snapshot.OperationsPerSecond)))
	}
	if cachedBatches > 0 {
		sb.WriteString("  ")
		sb.WriteString(okStyle.Render(fmt.Sprintf("%s %d cached", IconCache, cachedBatches)))
	}
	if failedBatches > 0 {
		sb.WriteString("  ")
		sb.WriteString(errorStyle.Render(fmt.Sprintf("%s %d failed", IconError, failedBatches)))
	}

	return sb.String()
}

// RenderBatchLine renders a one-line outcome for a completed batch.
//
// Returns a styled string with:
//   - ✓ for processed batches (OK color)
//   - ↺ for cache-served batches (OK color)
//   - ✗ with the first error for failed batches (error color)
func RenderBatchLine(result engine.BatchResult) string {
	id := batchIDStyle.Render(result.BatchID)

	switch {
	case result.Failed():
		return fmt.Sprintf("  %s %s  %s", errorStyle.Render(IconError), id, errorStyle.Render(result.Errors[0]))
	case result.FromCache:
		return fmt.Sprintf("  %s %s  %s", okStyle.Render(IconCache), id, mutedStyle.Render("cache"))
	default:
		return fmt.Sprintf("  %s %s  %d ops in %s", okStyle.Render(IconOK), id,
			result.Operations, result.ProcessingTime.Round(textualDurationUnit))
	}
}

// RenderMemoryWarning renders the governor's latest pressure reaction.
func RenderMemoryWarning(warning engine.MemoryWarning, count int) string {
	detail := fmt.Sprintf("%s heap %.0f MiB over %.0f MiB, batch size now %d",
		IconWarning,
		float64(warning.HeapBytes)/bytesPerMiB,
		float64(warning.ThresholdBytes)/bytesPerMiB,
		warning.SuggestedBatchSize)
	if count > 1 {
		detail += fmt.Sprintf(" (%d warnings)", count)
	}
	return warnStyle.Render(detail)
}

// RenderFinalLine renders the closing line shown when the run completes.
func RenderFinalLine(metrics engine.Metrics, failedBatches int) string {
	if failedBatches > 0 || metrics.FailedOperations > 0 {
		return errorStyle.Render(fmt.Sprintf("%s generation finished with failures: %d of %d operations failed in %s",
			IconError, metrics.FailedOperations, metrics.TotalOperations, metrics.Elapsed.Round(textualDurationUnit)))
	}
	return okStyle.Render(fmt.Sprintf("%s generated from %d operations in %s",
		IconOK, metrics.TotalOperations, metrics.Elapsed.Round(textualDurationUnit)))
}
