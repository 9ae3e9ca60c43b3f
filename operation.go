package sieve

// KeyExtractor - A generic function for deriving the grouping key from an item submitted to a reduce table
type KeyExtractor func(item interface{}) (interface{}, error)

// ValueExtractor - A generic function for deriving the value to be combined from an item submitted to a reduce table
type ValueExtractor func(item interface{}) (interface{}, error)

// ReduceOperation - A generic function for combining two values which share a key, returning the
// combined value. ReduceOperations should be associative and commutative - Sieve applies them in
// run order during external merges, so a non-associative or non-commutative operation yields an
// order-dependent (but still single-valued-per-key) result.
type ReduceOperation func(left interface{}, right interface{}) (interface{}, error)

// An Emitter receives exactly one fully-combined (key, value) pair per distinct key when a
// reduce table is flushed
type Emitter interface {
	Emit(key interface{}, value interface{}) error
}

// A ShuffleSink receives combined (key, value) pairs from a pre-reduce table, keyed by the
// destination partition, for transfer to the worker responsible for that partition
type ShuffleSink interface {
	EmitTo(partition int, key interface{}, value interface{}) error
}

// An Addressing maps keys to partitions, and to slots within a partition's in-memory storage.
// PartitionOf must be a pure, deterministic function of the key for a fixed configuration.
type Addressing interface {
	PartitionOf(key interface{}) (int, error)
	SlotOf(key interface{}, capacity int) (int, error)
}

// A RangeAddressing is an Addressing over a dense key space which additionally exposes the
// contiguous key range assigned to each partition. Ranges tile the key space without gap
// or overlap, even when the key space size is not a multiple of the partition count.
type RangeAddressing interface {
	Addressing
	PartitionRange(partition int) (begin uint64, end uint64)
}
