package reduce

import (
	sieve "github.com/go-sif/sieve"
)

// TableOptions are options for a reduce table, configuring its partitioning,
// storage, memory budget and spill behaviour
type TableOptions struct {
	NumPartitions     int                   // post-tables only: internal sub-partition count, chosen for parallelism and locality
	MemoryBudgetBytes int64                 // [REQUIRED] hard ceiling on the in-memory byte estimate, shared across all partitions
	InitialCapacity   int                   // slots (or buckets) per partition storage at construction
	MaxChainLength    int                   // bucket storage: chain length which triggers growth or a spill
	MaxProbeLength    int                   // probing storage: probe distance which triggers growth or a spill
	LimitFillRate     float64               // probing storage: fill fraction which triggers growth or a spill
	AvgItemBytes      int                   // average serialized item size used for the byte estimate
	Storage           sieve.StorageKind     // in-memory storage variant
	Addressing        sieve.AddressingKind  // ByHashKey or ByIndex
	KeySpaceSize      uint64                // [REQUIRED for ByIndex] dense key space size N; keys lie in [0, N)
	VictimPolicy      sieve.VictimPolicy    // which partition to spill when over budget
	KeyHasher         sieve.KeyHasher       // hashes and compares keys; defaulted per Addressing
	KeyCodec          sieve.Codec           // [REQUIRED] serializes keys for spilling
	ValueCodec        sieve.Codec           // [REQUIRED] serializes values for spilling
	TempDir           string                // location for spill files; defaults to the OS temp dir
	FlushParallelism  int64                 // partitions merged concurrently at Flush; emitters must be thread-safe when > 1
	Compression       sieve.CompressionKind // spill run compression
	ImmediateFlush    bool                  // pre-tables only: emit partial aggregates to the sink instead of spilling
}

// CloneTableOptions makes a copy of a TableOptions
func CloneTableOptions(opts *TableOptions) *TableOptions {
	return &TableOptions{
		NumPartitions:     opts.NumPartitions,
		MemoryBudgetBytes: opts.MemoryBudgetBytes,
		InitialCapacity:   opts.InitialCapacity,
		MaxChainLength:    opts.MaxChainLength,
		MaxProbeLength:    opts.MaxProbeLength,
		LimitFillRate:     opts.LimitFillRate,
		AvgItemBytes:      opts.AvgItemBytes,
		Storage:           opts.Storage,
		Addressing:        opts.Addressing,
		KeySpaceSize:      opts.KeySpaceSize,
		VictimPolicy:      opts.VictimPolicy,
		KeyHasher:         opts.KeyHasher,
		KeyCodec:          opts.KeyCodec,
		ValueCodec:        opts.ValueCodec,
		TempDir:           opts.TempDir,
		FlushParallelism:  opts.FlushParallelism,
		Compression:       opts.Compression,
		ImmediateFlush:    opts.ImmediateFlush,
	}
}

func ensureDefaultTableOptionsValues(opts *TableOptions) {
	if opts.NumPartitions == 0 {
		// 32 sub-partitions keeps merge sets cache-friendly while leaving
		// room for parallel flushing
		opts.NumPartitions = 32
	}
	if opts.InitialCapacity == 0 {
		opts.InitialCapacity = 64
	}
	if opts.MaxChainLength == 0 {
		opts.MaxChainLength = 8
	}
	if opts.MaxProbeLength == 0 {
		opts.MaxProbeLength = 32
	}
	if opts.LimitFillRate == 0 {
		opts.LimitFillRate = 0.8
	}
	if opts.AvgItemBytes == 0 {
		opts.AvgItemBytes = 64
	}
	if opts.FlushParallelism == 0 {
		opts.FlushParallelism = 1
	}
	if opts.TempDir == "" {
		opts.TempDir = tempDir()
	}
	if opts.KeyHasher == nil && opts.Addressing == sieve.ByIndex {
		opts.KeyHasher = sieve.NewUint64Hasher(0)
	}
}

// SplitBudget divides one overall memory budget between the pre- and
// post-reduce stages. The default split is half and half.
func SplitBudget(totalBytes int64) (preBytes int64, postBytes int64) {
	preBytes = totalBytes / 2
	return preBytes, totalBytes - preBytes
}
