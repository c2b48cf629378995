package engine

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

const bytesPerMB = 1024 * 1024

// Partition splits operations into contiguous batches of at most size
// operations, preserving input order. The final batch may be smaller. An
// empty input yields no batches; size < 1 is a configuration error.
func Partition(operations []Operation, size int) ([]Batch, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidConfiguration, size)
	}
	if len(operations) == 0 {
		return nil, nil
	}

	total := (len(operations) + size - 1) / size
	batches := make([]Batch, 0, total)
	now := time.Now()

	for index := 0; index < total; index++ {
		start := index * size
		end := start + size
		if end > len(operations) {
			end = len(operations)
		}
		batches = append(batches, Batch{
			ID:          ulid.Make().String(),
			Index:       index,
			Operations:  operations[start:end],
			SubmittedAt: now,
		})
	}

	return batches, nil
}

// OptimalBatchSize computes a best-effort batch size from live heap usage.
// The per-operation memory cost is approximated as heapBytes/operationCount,
// the threshold budget is divided across workers, and the result is clamped
// to [1, configured]. This is a sizing heuristic, not a memory guarantee.
func OptimalBatchSize(operationCount, configured, workers, memoryThresholdMB int, heapBytes uint64) int {
	if configured < 1 {
		configured = 1
	}
	if operationCount < 1 || heapBytes == 0 {
		return configured
	}
	if workers < 1 {
		workers = 1
	}

	perOperation := heapBytes / uint64(operationCount)
	if perOperation == 0 {
		return configured
	}

	budgetPerWorker := uint64(memoryThresholdMB) * bytesPerMB / uint64(workers)
	size := int(budgetPerWorker / perOperation)

	if size < 1 {
		return 1
	}
	if size > configured {
		return configured
	}
	return size
}

// chunkOperations splits operations into contiguous chunks of at most size
// operations, preserving input order. Callers validate size >= 1.
func chunkOperations(operations []Operation, size int) [][]Operation {
	if len(operations) == 0 {
		return nil
	}

	total := (len(operations) + size - 1) / size
	chunks := make([][]Operation, 0, total)
	for start := 0; start < len(operations); start += size {
		end := start + size
		if end > len(operations) {
			end = len(operations)
		}
		chunks = append(chunks, operations[start:end])
	}
	return chunks
}
