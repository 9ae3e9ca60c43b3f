// Package reduce constructs Sieve reduce tables: pre-tables, which combine
// locally before a network shuffle, and post-tables, which perform the final
// aggregation on the shuffle-receiving side.
package reduce

import (
	"os"

	sieve "github.com/go-sif/sieve"
	errors "github.com/go-sif/sieve/errors"
	"github.com/go-sif/sieve/internal/addr"
	"github.com/go-sif/sieve/internal/table"
)

// Table binds KeyExtractor, ValueExtractor and ReduceOperation to a
// partitioned reduce table engine. Exactly one goroutine may call Insert.
type Table struct {
	engine *table.Table
	keyfn  sieve.KeyExtractor
	valfn  sieve.ValueExtractor
}

// CreatePreTable creates a reduce table for the combining (pre-shuffle) stage
// of a distributed reduction. Partitions correspond one-to-one with the
// numWorkers destination workers; at Flush, each partition's combined stream is
// handed to the ShuffleSink keyed by its destination partition id.
func CreatePreTable(opts *TableOptions, numWorkers int, keyfn sieve.KeyExtractor, valfn sieve.ValueExtractor, reducefn sieve.ReduceOperation, sink sieve.ShuffleSink) (*Table, error) {
	if sink == nil {
		return nil, errors.ConfigurationError{Message: "a pre-table requires a ShuffleSink"}
	}
	opts = CloneTableOptions(opts)
	opts.NumPartitions = numWorkers
	return createTable(opts, keyfn, valfn, reducefn, sink.EmitTo)
}

// CreatePostTable creates a reduce table for the final (post-shuffle) stage of
// a distributed reduction. The partition count is internal, unrelated to
// network routing; at Flush, combined pairs are emitted directly downstream.
func CreatePostTable(opts *TableOptions, keyfn sieve.KeyExtractor, valfn sieve.ValueExtractor, reducefn sieve.ReduceOperation, emitter sieve.Emitter) (*Table, error) {
	if emitter == nil {
		return nil, errors.ConfigurationError{Message: "a post-table requires an Emitter"}
	}
	opts = CloneTableOptions(opts)
	if opts.ImmediateFlush {
		return nil, errors.ConfigurationError{Message: "immediate flush emits partial aggregates and is only legal for pre-tables"}
	}
	emit := func(partition int, key interface{}, value interface{}) error {
		return emitter.Emit(key, value)
	}
	return createTable(opts, keyfn, valfn, reducefn, emit)
}

func createTable(opts *TableOptions, keyfn sieve.KeyExtractor, valfn sieve.ValueExtractor, reducefn sieve.ReduceOperation, emit func(int, interface{}, interface{}) error) (*Table, error) {
	if keyfn == nil || valfn == nil || reducefn == nil {
		return nil, errors.ConfigurationError{Message: "a table requires a KeyExtractor, a ValueExtractor and a ReduceOperation"}
	}
	ensureDefaultTableOptionsValues(opts)
	addressing, err := createAddressing(opts)
	if err != nil {
		return nil, err
	}
	engine, err := table.NewTable(&table.Config{
		NumPartitions:    opts.NumPartitions,
		MemoryBudget:     opts.MemoryBudgetBytes,
		InitialCapacity:  opts.InitialCapacity,
		AvgItemBytes:     opts.AvgItemBytes,
		Storage:          opts.Storage,
		MaxChainLength:   opts.MaxChainLength,
		MaxProbeLength:   opts.MaxProbeLength,
		LimitFillRate:    opts.LimitFillRate,
		VictimPolicy:     opts.VictimPolicy,
		Addressing:       addressing,
		Hasher:           opts.KeyHasher,
		KeyCodec:         opts.KeyCodec,
		ValueCodec:       opts.ValueCodec,
		TempDir:          opts.TempDir,
		FlushParallelism: opts.FlushParallelism,
		Compression:      opts.Compression,
		ImmediateFlush:   opts.ImmediateFlush,
		Reduce:           reducefn,
		Emit:             emit,
	})
	if err != nil {
		return nil, err
	}
	return &Table{engine: engine, keyfn: keyfn, valfn: valfn}, nil
}

func createAddressing(opts *TableOptions) (sieve.Addressing, error) {
	switch opts.Addressing {
	case sieve.ByHashKey:
		return addr.ByHashKey(opts.KeyHasher, opts.NumPartitions)
	case sieve.ByIndex:
		return addr.ByIndex(opts.KeySpaceSize, opts.NumPartitions)
	}
	return nil, errors.ConfigurationError{Message: "unknown addressing kind"}
}

func tempDir() string {
	return os.TempDir()
}

// Insert extracts an item's key and value and combines the pair into the
// table, spilling to external storage if the memory budget is exceeded
func (t *Table) Insert(item interface{}) error {
	key, err := t.keyfn(item)
	if err != nil {
		return err
	}
	value, err := t.valfn(item)
	if err != nil {
		return err
	}
	return t.engine.Insert(key, value)
}

// InsertPair combines an already-extracted (key, value) pair into the table
func (t *Table) InsertPair(key interface{}, value interface{}) error {
	return t.engine.Insert(key, value)
}

// Flush merges in-memory residue with all spilled runs and emits exactly one
// fully-combined (key, value) pair per distinct key. One-way transition.
func (t *Table) Flush() error {
	return t.engine.Flush()
}

// Dispose releases spill files and in-memory storage without completing
// Flush. Safe from any state, idempotent.
func (t *Table) Dispose() {
	t.engine.Dispose()
}

// Size returns the current number of in-memory items
func (t *Table) Size() int {
	return t.engine.Size()
}

// Stats returns a snapshot of the table's spill statistics
func (t *Table) Stats() sieve.Stats {
	return t.engine.Stats()
}
