package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/config"
	"github.com/specforge/specforge/internal/engine"
	"github.com/specforge/specforge/internal/generator"
	"github.com/specforge/specforge/internal/logging"
	"github.com/specforge/specforge/internal/output"
	"github.com/specforge/specforge/internal/report"
	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/internal/tui"
	"github.com/specforge/specforge/pkg/version"
)

// generateParams holds the parameters for the generate command execution.
type generateParams struct {
	outputDir  string
	outputMode string
	compress   bool
	workers    int
	batchSize  int
	chunkSize  int
	stream     bool
	noCache    bool
	noNegative bool
	timeout    int
	reportDir  string
	html       bool
	quiet      bool
	plain      bool
}

// NewGenerateCmd creates the "generate" subcommand, the end-to-end driver:
// load and validate a surface document, run the engine on its operations,
// persist artifacts, and render run reports.
//
// plainDefault seeds the --plain flag so environments that cannot host the
// interactive progress view (CI, SPECFORGE_NO_TUI) fall back to the plain
// progress bar without per-invocation flags.
//
// Registered flags:
//   - --output-dir, --output-mode, --compress: artifact layout
//   - --workers, --batch-size, --chunk-size, --timeout: engine tuning
//   - --stream: deliver artifacts chunk by chunk instead of in bulk
//   - --no-cache, --no-negative: disable the result cache / negative cases
//   - --report-dir, --html: run report location and formats
//   - --quiet, --plain: progress surface selection
func NewGenerateCmd(plainDefault bool) *cobra.Command {
	var params generateParams

	cmd := &cobra.Command{
		Use:   "generate <document>",
		Short: "Generate test-case artifacts from a surface document",
		Long: `Generate loads a surface document, validates it, and runs every operation
through the worker pool to produce test-case artifacts. Artifacts are
written as individual files or a single bundle; each run also produces a
report in the configured formats.

On an interactive terminal progress is shown in a full-screen view (press q
to cancel the run). Pipes and CI runs get a plain progress bar on stderr;
--quiet suppresses progress entirely.`,
		Example: generateExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeGenerate(cmd, params, args[0])
		},
	}

	cmd.Flags().StringVarP(&params.outputDir, "output-dir", "o", "",
		"artifact output directory (default from config)")
	cmd.Flags().StringVar(&params.outputMode, "output-mode", "",
		"artifact layout, files or bundle (default from config)")
	cmd.Flags().BoolVar(&params.compress, "compress", false, "zstd-compress written artifacts")
	cmd.Flags().IntVar(&params.workers, "workers", 0, "worker goroutines (0 = CPU count, capped)")
	cmd.Flags().IntVar(&params.batchSize, "batch-size", 0, "operations per batch (0 = config default)")
	cmd.Flags().IntVar(&params.chunkSize, "chunk-size", 0, "operations per streamed chunk (0 = config default)")
	cmd.Flags().BoolVar(&params.stream, "stream", false,
		"stream artifacts chunk by chunk instead of collecting the run in memory")
	cmd.Flags().BoolVar(&params.noCache, "no-cache", false, "disable the batch result cache")
	cmd.Flags().BoolVar(&params.noNegative, "no-negative", false,
		"generate only request artifacts, no negative cases")
	cmd.Flags().IntVar(&params.timeout, "timeout", 0, "per-batch timeout in seconds (0 = config default)")
	cmd.Flags().StringVar(&params.reportDir, "report-dir", "reports", "run report output directory")
	cmd.Flags().BoolVar(&params.html, "html", false, "also render the run report as HTML")
	cmd.Flags().BoolVarP(&params.quiet, "quiet", "q", false, "suppress progress output")
	cmd.Flags().BoolVar(&params.plain, "plain", plainDefault,
		"plain progress output instead of the interactive view")

	return cmd
}

const generateExample = `  # Generate with defaults (files mode, interactive progress on a terminal)
  specforge generate api.yaml

  # Bundle output with zstd compression
  specforge generate api.yaml --output-mode bundle --compress

  # Stream chunks of 25 operations through 4 workers
  specforge generate api.yaml --stream --chunk-size 25 --workers 4

  # Plain progress plus an HTML report
  specforge generate api.yaml --plain --html

  # Scripting: no progress, summary only
  specforge generate api.yaml --quiet`

// executeGenerate runs the full generation pipeline for the "generate"
// command: document load, engine run (bulk or streaming), artifact
// persistence, and report rendering. Flag overrides are applied on top of
// the resolved configuration before anything runs.
//
// Returns an ExitError with a distinct code when the document is invalid,
// when the run finishes with failed batches, or when the user cancels from
// the progress view.
func executeGenerate(cmd *cobra.Command, params generateParams, documentPath string) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)

	cfg := *configFromCommand(cmd)
	applyGenerateOverrides(cmd, &cfg, params)

	formats, err := reportFormats(cfg.Report.Formats, params.html)
	if err != nil {
		return err
	}

	doc, err := spec.LoadWithContext(ctx, documentPath)
	if err != nil {
		return documentLoadError(cmd, err)
	}

	operations := doc.EngineOperations()
	log.Info().
		Ctx(ctx).
		Str("operation", "generate").
		Str("document_path", documentPath).
		Str("title", doc.Title).
		Int("operations", len(operations)).
		Bool("streaming", cfg.Generation.Streaming).
		Msg("starting artifact generation")

	gen := generator.New(generator.Options{DisableNegative: cfg.Generation.DisableNegative})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := cfg.EngineOptions()
	var program *tea.Program
	switch {
	case params.quiet:
		opts.Observer = engine.NopObserver{}
	case params.plain || !tui.IsTerminalWriter(cmd.OutOrStdout()):
		opts.Observer = tui.NewPlainObserver(cmd.ErrOrStderr())
	default:
		program = tea.NewProgram(tui.NewProgressModel(cancel))
		opts.Observer = tui.NewProgramObserver(program)
	}

	eng, err := engine.New(opts)
	if err != nil {
		return fmt.Errorf("configuring engine: %w", err)
	}

	writer, err := output.New(output.Options{
		Dir:      cfg.Output.Dir,
		Mode:     output.Mode(cfg.Output.Mode),
		Compress: cfg.Output.Compress,
	})
	if err != nil {
		return fmt.Errorf("opening artifact writer: %w", err)
	}
	defer func() { _ = writer.Close() }()

	result, runErr := runEngine(cancel, program, func() (*engine.Result, error) {
		if cfg.Generation.Streaming {
			sink := func(ctx context.Context, chunk engine.ChunkResult) error {
				return writer.WriteArtifacts(ctx, chunk.Artifacts)
			}
			return eng.ProcessStreaming(runCtx, operations, doc, cfg.Generation.ChunkSize, gen.Transform, sink)
		}
		return eng.Process(runCtx, operations, doc, gen.Transform)
	})
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return &ExitError{ExitCode: exitCodeCancelled, Reason: "generation cancelled"}
		}
		return fmt.Errorf("generating artifacts: %w", runErr)
	}

	if !cfg.Generation.Streaming {
		if err := writer.WriteArtifacts(ctx, result.Artifacts); err != nil {
			return fmt.Errorf("writing artifacts: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing artifact writer: %w", err)
	}

	rep := report.Build(report.Params{
		Document:      doc,
		DocumentPath:  documentPath,
		Result:        result,
		Version:       version.GetVersion(),
		GeneratedAt:   time.Now(),
		Streaming:     cfg.Generation.Streaming,
		ArtifactCount: writer.Count(),
		SampleLimit:   cfg.Report.SampleLimit,
	})
	if err := writeReports(params.reportDir, formats, rep); err != nil {
		return err
	}
	if err := report.RenderSummary(cmd.OutOrStdout(), rep); err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}

	log.Info().
		Ctx(ctx).
		Str("operation", "generate").
		Str("run_id", result.RunID).
		Int("artifacts", writer.Count()).
		Int64("failed_operations", result.Metrics.FailedOperations).
		Msg("generation finished")

	if len(result.Failures) > 0 {
		return &ExitError{
			ExitCode: exitCodePartialFailure,
			Reason: fmt.Sprintf("%d of %d operations failed",
				result.Metrics.FailedOperations, result.Metrics.TotalOperations),
		}
	}
	return nil
}

// runEngine executes run, pumping the interactive progress program when one
// is attached. The engine runs on a goroutine in that case so the program
// can own the terminal; run always completes before runEngine returns.
func runEngine(
	cancel context.CancelFunc,
	program *tea.Program,
	run func() (*engine.Result, error),
) (*engine.Result, error) {
	if program == nil {
		return run()
	}

	var result *engine.Result
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = run()
		// Covers early exits that never reach the completion notification.
		program.Quit()
	}()

	if _, uiErr := program.Run(); uiErr != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("running progress view: %w", uiErr)
	}
	<-done
	return result, runErr
}

// applyGenerateOverrides layers explicitly set generate flags over the
// resolved configuration. Boolean flags consult Changed so a bare default
// never masks a config file value.
func applyGenerateOverrides(cmd *cobra.Command, cfg *config.Config, params generateParams) {
	if params.outputDir != "" {
		cfg.Output.Dir = params.outputDir
	}
	if params.outputMode != "" {
		cfg.Output.Mode = params.outputMode
	}
	if cmd.Flags().Changed("compress") {
		cfg.Output.Compress = params.compress
	}
	if params.workers > 0 {
		cfg.Generation.Workers = params.workers
	}
	if params.batchSize > 0 {
		cfg.Generation.BatchSize = params.batchSize
	}
	if params.chunkSize > 0 {
		cfg.Generation.ChunkSize = params.chunkSize
	}
	if cmd.Flags().Changed("stream") {
		cfg.Generation.Streaming = params.stream
	}
	if params.noCache {
		cfg.Generation.DisableCaching = true
	}
	if params.noNegative {
		cfg.Generation.DisableNegative = true
	}
	if params.timeout > 0 {
		cfg.Generation.TimeoutSeconds = params.timeout
	}
}

// reportFormats validates the configured report formats and appends html
// when the --html flag asks for it.
func reportFormats(configured []string, includeHTML bool) ([]string, error) {
	formats := make([]string, 0, len(configured)+1)
	for _, format := range configured {
		switch format {
		case "json", "markdown", "html":
		default:
			return nil, fmt.Errorf("unknown report format %q (want json, markdown, or html)", format)
		}
		if !slices.Contains(formats, format) {
			formats = append(formats, format)
		}
	}
	if includeHTML && !slices.Contains(formats, "html") {
		formats = append(formats, "html")
	}
	return formats, nil
}

// writeReports renders the report in every requested format under dir.
func writeReports(dir string, formats []string, rep *report.Report) error {
	if len(formats) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	for _, format := range formats {
		name, render := reportRenderer(format)
		path := filepath.Join(dir, name)
		f, err := os.Create(path) //nolint:gosec // G304: report directory is operator-chosen
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		if err := render(f, rep); err != nil {
			_ = f.Close()
			return fmt.Errorf("rendering %s report: %w", format, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing report file: %w", err)
		}
	}
	return nil
}

// reportRenderer maps a format name to its file name and render function.
// Formats are validated before the run starts, so unknown names cannot
// reach here; json is the fallthrough.
func reportRenderer(format string) (string, func(io.Writer, *report.Report) error) {
	switch format {
	case "markdown":
		return "report.md", report.RenderMarkdown
	case "html":
		return "report.html", report.RenderHTML
	default:
		return "report.json", report.RenderJSON
	}
}

// documentLoadError converts surface document load failures into user
// output plus an ExitError for validation problems, leaving other errors
// (missing file, unknown extension) on the normal error path.
func documentLoadError(cmd *cobra.Command, err error) error {
	var verr *spec.ValidationError
	if errors.As(err, &verr) {
		printIssues(cmd, verr.Issues)
		return &ExitError{
			ExitCode: exitCodeInvalidDocument,
			Reason:   fmt.Sprintf("document failed validation with %d issues", len(verr.Issues)),
		}
	}
	if errors.Is(err, spec.ErrUnsupportedVersion) {
		return &ExitError{ExitCode: exitCodeInvalidDocument, Reason: err.Error()}
	}
	return fmt.Errorf("loading document: %w", err)
}

// printIssues lists validation issues on stderr, one line per issue.
func printIssues(cmd *cobra.Command, issues []spec.Issue) {
	cmd.PrintErrf("Document is invalid (%d issues):\n", len(issues))
	for _, issue := range issues {
		cmd.PrintErrf("  %s %s: %s\n", tui.IconError, issue.Path, issue.Message)
	}
}
