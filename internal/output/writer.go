package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/specforge/specforge/internal/engine"
	"github.com/specforge/specforge/internal/logging"
)

// Mode selects the on-disk layout.
type Mode string

const (
	// ModeFiles writes one JSON file per artifact.
	ModeFiles Mode = "files"

	// ModeBundle appends all artifacts to a single NDJSON file.
	ModeBundle Mode = "bundle"
)

// bundleName is the bundle file name inside the output directory.
const bundleName = "artifacts.ndjson"

var (
	// ErrInvalidOptions indicates the writer options fail validation.
	ErrInvalidOptions = errors.New("invalid output options")

	// ErrClosed indicates a write after Close.
	ErrClosed = errors.New("output writer is closed")
)

// zstdEncoder and zstdDecoder are reused across calls; both are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("output: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("output: zstd decoder initialization failed: " + err.Error())
	}
}

// Options configure a Writer.
type Options struct {
	// Dir is the output directory. Created if missing.
	Dir string

	// Mode selects files or bundle layout. Empty means files.
	Mode Mode

	// Compress enables zstd compression (.zst suffix).
	Compress bool

	// Workers bounds concurrent file writes in files mode. Zero means
	// the number of CPUs.
	Workers int
}

// Writer persists artifacts per the configured layout. WriteArtifacts may
// be called repeatedly; bundle mode appends across calls, which is how
// streaming sinks use it.
type Writer struct {
	opts Options

	mu     sync.Mutex
	bundle *os.File
	zw     *zstd.Encoder
	closed bool

	written atomic.Int64
}

// New validates options, creates the output directory, and returns a
// Writer.
func New(opts Options) (*Writer, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: output directory is required", ErrInvalidOptions)
	}
	switch opts.Mode {
	case "":
		opts.Mode = ModeFiles
	case ModeFiles, ModeBundle:
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidOptions, opts.Mode)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Writer{opts: opts}, nil
}

// WriteArtifacts persists one batch of artifacts. Files mode writes
// concurrently and fails fast on the first error; bundle mode appends
// serially in input order.
func (w *Writer) WriteArtifacts(ctx context.Context, artifacts []engine.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}

	log := logging.FromContext(ctx)
	log.Debug().
		Ctx(ctx).
		Str("component", "output").
		Str("operation", "write_artifacts").
		Str("mode", string(w.opts.Mode)).
		Int("artifact_count", len(artifacts)).
		Msg("writing artifacts")

	if w.opts.Mode == ModeBundle {
		return w.appendBundle(artifacts)
	}
	return w.writeFiles(ctx, artifacts)
}

func (w *Writer) writeFiles(ctx context.Context, artifacts []engine.Artifact) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Workers)

	for _, artifact := range artifacts {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			data, err := json.MarshalIndent(artifact, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding artifact %s: %w", artifact.ID, err)
			}
			data = append(data, '\n')

			name := fileName(artifact.ID)
			if w.opts.Compress {
				data = zstdEncoder.EncodeAll(data, nil)
				name += ".zst"
			}

			path := filepath.Join(w.opts.Dir, name)
			if err := os.WriteFile(path, data, 0o640); err != nil {
				return fmt.Errorf("writing artifact file: %w", err)
			}
			w.written.Add(1)
			return nil
		})
	}

	return g.Wait()
}

func (w *Writer) appendBundle(artifacts []engine.Artifact) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := w.openBundleLocked(); err != nil {
		return err
	}

	for _, artifact := range artifacts {
		line, err := json.Marshal(artifact)
		if err != nil {
			return fmt.Errorf("encoding artifact %s: %w", artifact.ID, err)
		}
		line = append(line, '\n')

		var writeErr error
		if w.zw != nil {
			_, writeErr = w.zw.Write(line)
		} else {
			_, writeErr = w.bundle.Write(line)
		}
		if writeErr != nil {
			return fmt.Errorf("appending to bundle: %w", writeErr)
		}
		w.written.Add(1)
	}
	return nil
}

func (w *Writer) openBundleLocked() error {
	if w.bundle != nil {
		return nil
	}

	file, err := os.OpenFile(w.BundlePath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("creating bundle: %w", err)
	}
	w.bundle = file
	if w.opts.Compress {
		zw, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			file.Close()
			w.bundle = nil
			return fmt.Errorf("creating bundle compressor: %w", err)
		}
		w.zw = zw
	}
	return nil
}

// Close flushes and closes the bundle, if one was opened. The writer
// rejects further writes.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("flushing bundle compressor: %w", err))
		}
		w.zw = nil
	}
	if w.bundle != nil {
		if err := w.bundle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing bundle: %w", err))
		}
		w.bundle = nil
	}
	return errors.Join(errs...)
}

// Count returns the number of artifacts written so far.
func (w *Writer) Count() int {
	return int(w.written.Load())
}

// BundlePath returns the bundle file path, or "" in files mode.
func (w *Writer) BundlePath() string {
	if w.opts.Mode != ModeBundle {
		return ""
	}
	name := bundleName
	if w.opts.Compress {
		name += ".zst"
	}
	return filepath.Join(w.opts.Dir, name)
}

// fileName derives a safe file name from an artifact ID.
func fileName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String() + ".json"
}
