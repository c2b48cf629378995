package tui

import (
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/specforge/specforge/internal/engine"
)

// Program is the subset of *tea.Program the observer needs. Decoupling on
// an interface keeps observer tests free of a live terminal program.
type Program interface {
	Send(msg tea.Msg)
}

// ProgramObserver adapts engine run notifications to Bubble Tea messages.
// It is safe for the engine's coordinating goroutine to call while the
// program runs on another goroutine; Send only enqueues.
type ProgramObserver struct {
	program Program
}

// NewProgramObserver creates an observer that forwards notifications to p.
func NewProgramObserver(p Program) *ProgramObserver {
	return &ProgramObserver{program: p}
}

// RunStarted implements engine.Observer.
func (o *ProgramObserver) RunStarted(plan engine.RunPlan) {
	o.program.Send(runStartedMsg{plan: plan})
}

// BatchCompleted implements engine.Observer.
func (o *ProgramObserver) BatchCompleted(result engine.BatchResult, progress engine.ProgressSnapshot) {
	o.program.Send(batchCompletedMsg{result: result, progress: progress})
}

// ChunkDelivered implements engine.Observer.
func (o *ProgramObserver) ChunkDelivered(chunk engine.ChunkStat) {
	o.program.Send(chunkDeliveredMsg{chunk: chunk})
}

// MemoryPressure implements engine.Observer.
func (o *ProgramObserver) MemoryPressure(warning engine.MemoryWarning) {
	o.program.Send(memoryPressureMsg{warning: warning})
}

// RunCompleted implements engine.Observer.
func (o *ProgramObserver) RunCompleted(metrics engine.Metrics) {
	o.program.Send(runCompletedMsg{metrics: metrics})
}

// PlainObserver renders run progress as a line-oriented progress bar for
// non-interactive output. Engine notifications arrive from the coordinating
// goroutine only, but the mutex keeps the bar safe if a caller also drives
// it directly.
type PlainObserver struct {
	out io.Writer

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewPlainObserver creates an observer writing progress lines to out.
func NewPlainObserver(out io.Writer) *PlainObserver {
	return &PlainObserver{out: out}
}

// RunStarted implements engine.Observer.
func (o *PlainObserver) RunStarted(plan engine.RunPlan) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.bar = progressbar.NewOptions64(int64(plan.TotalOperations),
		progressbar.OptionSetDescription("generating"),
		progressbar.OptionSetWriter(o.out),
		progressbar.OptionSetWidth(progressBarWidth),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// BatchCompleted implements engine.Observer. Failed batches advance the bar
// too, mirroring how the engine counts completion.
func (o *PlainObserver) BatchCompleted(result engine.BatchResult, _ engine.ProgressSnapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.bar == nil {
		return
	}
	_ = o.bar.Add(result.Operations)

	if result.Failed() {
		fmt.Fprintf(o.out, "\nbatch %s failed: %s\n", result.BatchID, result.Errors[0])
	}
}

// ChunkDelivered implements engine.Observer. Chunk operations are already
// counted batch by batch.
func (o *PlainObserver) ChunkDelivered(engine.ChunkStat) {}

// MemoryPressure implements engine.Observer.
func (o *PlainObserver) MemoryPressure(warning engine.MemoryWarning) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.bar == nil {
		return
	}
	o.bar.Describe(fmt.Sprintf("generating (batch size %d)", warning.SuggestedBatchSize))
}

// RunCompleted implements engine.Observer.
func (o *PlainObserver) RunCompleted(engine.Metrics) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.bar == nil {
		return
	}
	_ = o.bar.Finish()
	fmt.Fprintln(o.out)
}

// IsTerminalWriter reports whether w is an interactive terminal. The full
// TUI is only worth starting when it is; pipes and CI logs get PlainObserver.
func IsTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
