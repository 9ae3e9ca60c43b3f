package sieve

// Stats facilitates the retrieval of statistics about a reduce table
type Stats struct {
	// SpillCount is the number of runs spilled to external storage so far,
	// including runs re-scattered during external merges at Flush
	SpillCount int64
	// SpilledBytes is the total number of bytes written to external storage so far
	SpilledBytes int64
	// MaxPartitionSize is the largest in-memory item count any single partition has reached
	MaxPartitionSize int64
}
