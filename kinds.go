package sieve

// StorageKind selects the in-memory storage variant backing each partition of a reduce table
type StorageKind int

const (
	// StorageBucket resolves collisions via index-based bucket chains in an entry arena
	StorageBucket StorageKind = iota
	// StorageProbing resolves collisions via open addressing with linear probing
	StorageProbing
	// StorageDirect stores entries in a dense array over a partition's local key range.
	// It requires ByIndex addressing.
	StorageDirect
)

// AddressingKind selects how keys are mapped to partitions and slots
type AddressingKind int

const (
	// ByHashKey routes a key to partition hash(key) mod P
	ByHashKey AddressingKind = iota
	// ByIndex range-partitions a dense integer key space of known size across P partitions
	ByIndex
)

// VictimPolicy selects which partition is spilled when the memory budget is exceeded
type VictimPolicy int

const (
	// VictimLargest spills the partition holding the most in-memory items,
	// falling back to round-robin when partitions are equally full
	VictimLargest VictimPolicy = iota
	// VictimRoundRobin spills partitions in rotation, bounding worst-case selection latency
	VictimRoundRobin
)

// CompressionKind selects how spilled runs are compressed on disk
type CompressionKind int

const (
	// CompressionZstd compresses runs with zstd at its fastest level
	CompressionZstd CompressionKind = iota
	// CompressionLZ4 compresses runs with lz4
	CompressionLZ4
	// CompressionNone writes runs uncompressed
	CompressionNone
)
