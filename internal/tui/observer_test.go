package tui

import (
	"bytes"
	"os"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/internal/engine"
)

// fakeProgram records sent messages instead of driving a terminal.
type fakeProgram struct {
	msgs []tea.Msg
}

func (p *fakeProgram) Send(msg tea.Msg) {
	p.msgs = append(p.msgs, msg)
}

// TestProgramObserver tests the engine-to-program bridge.
func TestProgramObserver(t *testing.T) {
	t.Run("forwards every notification as a message", func(t *testing.T) {
		program := &fakeProgram{}
		observer := NewProgramObserver(program)

		observer.RunStarted(engine.RunPlan{RunID: "01TESTRUN"})
		observer.BatchCompleted(engine.BatchResult{BatchID: "b-0"}, engine.ProgressSnapshot{CompletedBatches: 1})
		observer.ChunkDelivered(engine.ChunkStat{Index: 0})
		observer.MemoryPressure(engine.MemoryWarning{SuggestedBatchSize: 64})
		observer.RunCompleted(engine.Metrics{TotalOperations: 10})

		require.Len(t, program.msgs, 5)
		assert.IsType(t, runStartedMsg{}, program.msgs[0])
		assert.IsType(t, batchCompletedMsg{}, program.msgs[1])
		assert.IsType(t, chunkDeliveredMsg{}, program.msgs[2])
		assert.IsType(t, memoryPressureMsg{}, program.msgs[3])
		assert.IsType(t, runCompletedMsg{}, program.msgs[4])
	})

	t.Run("preserves notification payloads", func(t *testing.T) {
		program := &fakeProgram{}
		observer := NewProgramObserver(program)

		observer.BatchCompleted(
			engine.BatchResult{BatchID: "b-7", Operations: 25, ProcessingTime: 8 * time.Millisecond},
			engine.ProgressSnapshot{ProcessedOperations: 25},
		)

		require.Len(t, program.msgs, 1)
		msg, ok := program.msgs[0].(batchCompletedMsg)
		require.True(t, ok)
		assert.Equal(t, "b-7", msg.result.BatchID)
		assert.Equal(t, 25, msg.progress.ProcessedOperations)
	})

	t.Run("satisfies the engine observer interface", func(t *testing.T) {
		var _ engine.Observer = NewProgramObserver(&fakeProgram{})
		var _ engine.Observer = NewPlainObserver(&bytes.Buffer{})
	})
}

// TestPlainObserver tests the non-interactive progress fallback.
func TestPlainObserver(t *testing.T) {
	t.Run("renders a bar across a run", func(t *testing.T) {
		var out bytes.Buffer
		observer := NewPlainObserver(&out)

		observer.RunStarted(engine.RunPlan{RunID: "01TESTRUN", TotalOperations: 60})
		observer.BatchCompleted(engine.BatchResult{BatchID: "b-0", Operations: 30}, engine.ProgressSnapshot{})
		observer.BatchCompleted(engine.BatchResult{BatchID: "b-1", Operations: 30}, engine.ProgressSnapshot{})
		observer.RunCompleted(engine.Metrics{})

		assert.Contains(t, out.String(), "generating")
		assert.Contains(t, out.String(), "60/60")
	})

	t.Run("surfaces batch failures", func(t *testing.T) {
		var out bytes.Buffer
		observer := NewPlainObserver(&out)

		observer.RunStarted(engine.RunPlan{TotalOperations: 10})
		observer.BatchCompleted(engine.BatchResult{
			BatchID:    "b-3",
			Operations: 10,
			Errors:     []string{"worker failure: boom"},
		}, engine.ProgressSnapshot{})

		assert.Contains(t, out.String(), "batch b-3 failed: worker failure: boom")
	})

	t.Run("updates the description under memory pressure", func(t *testing.T) {
		var out bytes.Buffer
		observer := NewPlainObserver(&out)

		observer.RunStarted(engine.RunPlan{TotalOperations: 10})
		observer.MemoryPressure(engine.MemoryWarning{SuggestedBatchSize: 32})
		observer.BatchCompleted(engine.BatchResult{Operations: 5}, engine.ProgressSnapshot{})

		assert.Contains(t, out.String(), "batch size 32")
	})

	t.Run("ignores notifications before the run starts", func(t *testing.T) {
		observer := NewPlainObserver(&bytes.Buffer{})

		assert.NotPanics(t, func() {
			observer.BatchCompleted(engine.BatchResult{Operations: 5}, engine.ProgressSnapshot{})
			observer.MemoryPressure(engine.MemoryWarning{})
			observer.RunCompleted(engine.Metrics{})
		})
	})
}

// TestIsTerminalWriter tests terminal detection for writer values.
func TestIsTerminalWriter(t *testing.T) {
	t.Run("rejects plain buffers", func(t *testing.T) {
		assert.False(t, IsTerminalWriter(&bytes.Buffer{}))
	})

	t.Run("rejects non-terminal files", func(t *testing.T) {
		f, err := os.Open(os.DevNull)
		require.NoError(t, err)
		defer f.Close()

		assert.False(t, IsTerminalWriter(f))
	})
}
