package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer is the locale-aware message printer for number formatting.
// English locale keeps thousand separators consistent everywhere.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

// FormatNumber formats an integer with thousand separators.
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true)
	summaryLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	summaryValueStyle = lipgloss.NewStyle().Bold(true)
	summaryOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	summaryFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// RenderSummary writes a short styled run summary for the terminal.
func RenderSummary(w io.Writer, r *Report) error {
	var b strings.Builder

	status := summaryOKStyle.Render("ok")
	if len(r.Failures) > 0 {
		status = summaryFailStyle.Render("failed batches")
	}
	b.WriteString(summaryTitleStyle.Render("Generation complete: "+r.Title) + " [" + status + "]\n")

	m := r.Metrics
	writeSummaryLine(&b, "Operations",
		fmt.Sprintf("%s processed, %s failed",
			FormatNumber(m.ProcessedOperations), FormatNumber(m.FailedOperations)))
	writeSummaryLine(&b, "Artifacts", FormatNumber(int64(r.ArtifactCount)))
	writeSummaryLine(&b, "Batches",
		fmt.Sprintf("%s (%d cached, %d failed)",
			FormatNumber(m.BatchCount), r.CachedBatches, r.FailedBatches))
	writeSummaryLine(&b, "Elapsed",
		fmt.Sprintf("%s (%.1f ops/s)", m.Elapsed.Round(time.Millisecond), m.OperationsPerSecond))
	writeSummaryLine(&b, "Cache",
		fmt.Sprintf("%.1f%% hit ratio", m.CacheHitRatio*100))
	writeSummaryLine(&b, "Memory",
		fmt.Sprintf("peak %s, %d warnings", formatBytes(m.PeakHeapBytes), m.MemoryWarnings))

	if len(r.Failures) > 0 {
		b.WriteString(summaryFailStyle.Render("Failures:") + "\n")
		for _, failure := range r.Failures {
			b.WriteString(fmt.Sprintf("  batch %d: %s (%d operations)\n",
				failure.BatchIndex, failure.Err, len(failure.OperationKeys)))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSummaryLine(b *strings.Builder, label, value string) {
	b.WriteString("  " + summaryLabelStyle.Render(fmt.Sprintf("%-12s", label)) +
		summaryValueStyle.Render(value) + "\n")
}
