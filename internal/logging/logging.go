package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Output destination names accepted by Config.Output.
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputFile   = "file"
)

// Format names accepted by Config.Format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config describes how a logger should be constructed.
type Config struct {
	// Level is the minimum level to emit ("trace", "debug", "info", "warn", "error").
	// Invalid or empty values default to "info".
	Level string

	// Format selects the output encoding: "console" or "json".
	Format string

	// Output selects the destination: "stderr", "stdout", or "file".
	Output string

	// File is the log file path, used when Output is "file".
	File string

	// Caller enables caller annotation on every event.
	Caller bool
}

// LogPathResult reports the outcome of logger construction, including whether
// file output is active and any fallback that occurred.
type LogPathResult struct {
	// Logger is the constructed logger.
	Logger zerolog.Logger

	// UsingFile indicates log output is going to FilePath.
	UsingFile bool

	// FilePath is the active log file path when UsingFile is true.
	FilePath string

	// FallbackUsed indicates the requested file could not be opened and
	// output fell back to stderr.
	FallbackUsed bool

	// FallbackReason describes why the fallback was taken.
	FallbackReason string

	file *os.File
}

// Close releases the log file handle, if any. Safe to call on a result that
// never opened a file.
func (r *LogPathResult) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// NewLoggerWithPath builds a logger from cfg and reports where output went.
// When cfg requests file output and the file cannot be opened, the logger
// falls back to stderr and the result records the reason.
func NewLoggerWithPath(cfg Config) LogPathResult {
	var result LogPathResult

	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer
	switch cfg.Output {
	case OutputFile:
		logFile, openErr := openLogFile(cfg.File)
		if openErr != nil {
			result.FallbackUsed = true
			result.FallbackReason = openErr.Error()
			out = os.Stderr
		} else {
			result.UsingFile = true
			result.FilePath = cfg.File
			result.file = logFile
			out = logFile
		}
	case OutputStdout:
		out = os.Stdout
	default:
		out = os.Stderr
	}

	// File output is always JSON for machine parsing; terminal output honors
	// the configured format.
	if !result.UsingFile && cfg.Format != FormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logCtx := zerolog.New(out).Level(lvl).With().Timestamp()
	if cfg.Caller {
		logCtx = logCtx.Caller()
	}

	result.Logger = logCtx.Logger().Hook(TraceHook{})
	return result
}

// openLogFile opens path for appending, creating parent directories as needed.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return logFile, nil
}

// FromContext returns the logger attached to ctx, or a disabled logger when
// none is attached. Components should attach loggers with WithContext.
func FromContext(ctx context.Context) zerolog.Logger {
	return *zerolog.Ctx(ctx)
}

// WithContext returns a copy of ctx carrying the given logger, retrievable
// via FromContext.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// ComponentLogger returns a child logger scoped to the named component.
// Every event emitted through it carries a "component" field.
func ComponentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// PrintLogPathMessage writes a one-line notice telling the user where log
// output is going.
func PrintLogPathMessage(w io.Writer, path string) {
	_, _ = fmt.Fprintf(w, "Logging to %s\n", path)
}

// PrintFallbackWarning writes a one-line warning that file logging was
// requested but unavailable.
func PrintFallbackWarning(w io.Writer, reason string) {
	_, _ = fmt.Fprintf(w, "Warning: file logging unavailable (%s), logging to stderr\n", reason)
}
