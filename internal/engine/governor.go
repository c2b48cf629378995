package engine

import (
	"runtime"
	"runtime/debug"
)

// governorCheckInterval is how many completed batches pass between governor
// checks in bulk mode; checking every batch would dominate small workloads.
const governorCheckInterval = 10

// governorChunkInterval is how many delivered chunks pass between governor
// checks in streaming mode.
const governorChunkInterval = 10

// memoryGovernor samples heap usage and reacts to pressure by evicting cache
// entries and shrinking future batch sizing. It is advisory: it never pauses
// or stops workers, and it never enforces a hard ceiling.
type memoryGovernor struct {
	thresholdBytes uint64

	// readMemStats and reclaim are swapped out in tests.
	readMemStats func(*runtime.MemStats)
	reclaim      func()
}

func newMemoryGovernor(thresholdMB int) *memoryGovernor {
	return &memoryGovernor{
		thresholdBytes: uint64(thresholdMB) * bytesPerMB,
		readMemStats:   runtime.ReadMemStats,
		reclaim:        debug.FreeOSMemory,
	}
}

// sampleHeap returns the current heap allocation.
func (g *memoryGovernor) sampleHeap() uint64 {
	var stats runtime.MemStats
	g.readMemStats(&stats)
	return stats.HeapAlloc
}

// checkPressure samples the heap and reports whether it exceeds the
// threshold. The returned heap size is valid either way.
func (g *memoryGovernor) checkPressure() (heapBytes uint64, over bool) {
	heapBytes = g.sampleHeap()
	return heapBytes, heapBytes > g.thresholdBytes
}

// relieve reacts to confirmed pressure: it halves the cache, asks the
// runtime to return memory to the OS, and computes the shrunken batch size
// future partitioning should use.
func (g *memoryGovernor) relieve(cache *resultCache, heapBytes uint64, operationCount, configuredBatch, workers int, thresholdMB int) MemoryWarning {
	stats := cache.Stats()
	evicted := cache.EvictOldest(stats.Size / 2)

	g.reclaim()

	suggested := OptimalBatchSize(operationCount, configuredBatch, workers, thresholdMB, heapBytes)

	return MemoryWarning{
		HeapBytes:          heapBytes,
		ThresholdBytes:     g.thresholdBytes,
		SuggestedBatchSize: suggested,
		EvictedEntries:     evicted,
	}
}
