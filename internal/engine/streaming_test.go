package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkRecorder is a SinkFunc that records deliveries and verifies the sink
// is never invoked concurrently.
type chunkRecorder struct {
	chunks   []ChunkResult
	inFlight atomic.Int32
	overlap  atomic.Bool
	failAt   int // chunk index to fail on, -1 for never
}

func newChunkRecorder() *chunkRecorder {
	return &chunkRecorder{failAt: -1}
}

func (r *chunkRecorder) sink(_ context.Context, chunk ChunkResult) error {
	if r.inFlight.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.inFlight.Add(-1)

	time.Sleep(time.Millisecond)
	if chunk.Index == r.failAt {
		return errors.New("disk full")
	}
	r.chunks = append(r.chunks, chunk)
	return nil
}

func TestEngine_ProcessStreaming(t *testing.T) {
	ctx := context.Background()

	t.Run("DeliversChunksInOrder", func(t *testing.T) {
		ops := makeOperations(1000)
		recorder := newChunkRecorder()

		e, err := New(Options{MaxWorkers: 4, BatchSize: 10})
		require.NoError(t, err)

		result, err := e.ProcessStreaming(ctx, ops, nil, 50, echoTransform, recorder.sink)
		require.NoError(t, err)
		require.NotNil(t, result)

		require.Len(t, recorder.chunks, 20)
		assert.False(t, recorder.overlap.Load())

		var allKeys []string
		for i, chunk := range recorder.chunks {
			assert.Equal(t, i, chunk.Index)
			assert.Equal(t, 50, chunk.Operations)
			assert.Len(t, chunk.Artifacts, 50)
			assert.Equal(t, int64(1000), chunk.TotalOperations)
			assert.Equal(t, int64((i+1)*50), chunk.ProcessedOperations)
			assert.Equal(t, int64(0), chunk.FailedOperations)
			allKeys = append(allKeys, artifactKeys(chunk.Artifacts)...)
		}

		// Cumulative progress lands exactly on the total, and artifacts
		// arrive in global input order across chunk boundaries.
		assert.Equal(t, int64(1000), recorder.chunks[19].ProcessedOperations)
		require.Len(t, allKeys, 1000)
		for i, op := range ops {
			assert.Equal(t, op.Key(), allKeys[i])
		}

		assert.Nil(t, result.Artifacts)
		assert.Len(t, result.Batches, 100)
		assert.Equal(t, int64(20), result.Metrics.ChunksDelivered)
		assert.Equal(t, int64(1000), result.Metrics.ProcessedOperations)
	})

	t.Run("ZeroChunkSizeUsesConfigured", func(t *testing.T) {
		ops := makeOperations(100)
		recorder := newChunkRecorder()

		e, err := New(Options{MaxWorkers: 2, BatchSize: 10, ChunkSize: 25})
		require.NoError(t, err)

		_, err = e.ProcessStreaming(ctx, ops, nil, 0, echoTransform, recorder.sink)
		require.NoError(t, err)
		assert.Len(t, recorder.chunks, 4)
	})

	t.Run("SinkErrorAbortsRun", func(t *testing.T) {
		ops := makeOperations(250)
		recorder := newChunkRecorder()
		recorder.failAt = 2

		e, err := New(Options{MaxWorkers: 2, BatchSize: 10})
		require.NoError(t, err)

		result, err := e.ProcessStreaming(ctx, ops, nil, 50, echoTransform, recorder.sink)
		require.ErrorIs(t, err, ErrSinkFailure)
		assert.Contains(t, err.Error(), "chunk 2")
		assert.Contains(t, err.Error(), "disk full")

		// Chunks 0 and 1 were delivered before the abort.
		assert.Len(t, recorder.chunks, 2)
		require.NotNil(t, result)
		assert.Equal(t, int64(2), result.Metrics.ChunksDelivered)
	})

	t.Run("FailedBatchesSurfaceInChunkProgress", func(t *testing.T) {
		ops := makeOperations(100)
		transform := func(ctx context.Context, operations []Operation, spec SpecHandle) ([]Artifact, error) {
			if batchContains(operations, "op013") {
				return nil, errors.New("boom")
			}
			return echoTransform(ctx, operations, spec)
		}
		recorder := newChunkRecorder()

		e, err := New(Options{MaxWorkers: 2, BatchSize: 10})
		require.NoError(t, err)

		result, err := e.ProcessStreaming(ctx, ops, nil, 50, transform, recorder.sink)
		require.NoError(t, err)

		require.Len(t, recorder.chunks, 2)
		first := recorder.chunks[0]
		assert.Len(t, first.Artifacts, 40)
		assert.Equal(t, int64(40), first.ProcessedOperations)
		assert.Equal(t, int64(10), first.FailedOperations)

		second := recorder.chunks[1]
		assert.Len(t, second.Artifacts, 50)
		assert.Equal(t, int64(90), second.ProcessedOperations)
		assert.Equal(t, int64(10), second.FailedOperations)

		require.Len(t, result.Failures, 1)
		assert.Equal(t, 1, result.Failures[0].BatchIndex)
	})

	t.Run("SecondStreamingRunServedFromCache", func(t *testing.T) {
		ops := makeOperations(100)
		e, err := New(Options{MaxWorkers: 2, BatchSize: 10})
		require.NoError(t, err)

		firstRecorder := newChunkRecorder()
		_, err = e.ProcessStreaming(ctx, ops, nil, 50, echoTransform, firstRecorder.sink)
		require.NoError(t, err)

		secondRecorder := newChunkRecorder()
		second, err := e.ProcessStreaming(ctx, ops, nil, 50, echoTransform, secondRecorder.sink)
		require.NoError(t, err)

		assert.Equal(t, int64(10), second.Metrics.CacheHits)
		for _, b := range second.Batches {
			assert.True(t, b.FromCache)
		}
		require.Len(t, secondRecorder.chunks, 2)
		assert.Equal(t, firstRecorder.chunks[0].Artifacts, secondRecorder.chunks[0].Artifacts)
	})

	t.Run("EmptyOperations", func(t *testing.T) {
		recorder := newChunkRecorder()
		e, err := New(Options{})
		require.NoError(t, err)

		result, err := e.ProcessStreaming(ctx, nil, nil, 50, echoTransform, recorder.sink)
		require.NoError(t, err)
		assert.Empty(t, recorder.chunks)
		assert.Equal(t, int64(0), result.Metrics.TotalOperations)
		assert.Equal(t, int64(0), result.Metrics.ChunksDelivered)
	})

	t.Run("NilArguments", func(t *testing.T) {
		e, err := New(Options{})
		require.NoError(t, err)

		_, err = e.ProcessStreaming(ctx, makeOperations(5), nil, 0, nil, newChunkRecorder().sink)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)

		_, err = e.ProcessStreaming(ctx, makeOperations(5), nil, 0, echoTransform, nil)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("CancellationStopsDeliveries", func(t *testing.T) {
		ops := makeOperations(100)
		runCtx, cancel := context.WithCancel(context.Background())
		transform := func(ctx context.Context, operations []Operation, spec SpecHandle) ([]Artifact, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		recorder := newChunkRecorder()

		e, err := New(Options{MaxWorkers: 2, BatchSize: 10})
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		result, err := e.ProcessStreaming(runCtx, ops, nil, 50, transform, recorder.sink)
		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, result)
		assert.Empty(t, recorder.chunks)
	})

	t.Run("ObserverSeesChunks", func(t *testing.T) {
		ops := makeOperations(150)
		obs := &recordingObserver{}
		recorder := newChunkRecorder()

		e, err := New(Options{MaxWorkers: 2, BatchSize: 10, Observer: obs})
		require.NoError(t, err)

		_, err = e.ProcessStreaming(ctx, ops, nil, 50, echoTransform, recorder.sink)
		require.NoError(t, err)

		require.Len(t, obs.plans, 1)
		assert.True(t, obs.plans[0].Streaming)
		assert.Equal(t, 3, obs.plans[0].TotalChunks)

		require.Len(t, obs.chunks, 3)
		for i, stat := range obs.chunks {
			assert.Equal(t, i, stat.Index)
			assert.Equal(t, 50, stat.Operations)
			assert.Equal(t, 50, stat.Artifacts)
			assert.Greater(t, stat.Duration, time.Duration(0))
		}
		assert.Equal(t, int64(150), obs.chunks[2].CumulativeProcessed)
	})
}
