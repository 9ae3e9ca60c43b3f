package table

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	sieve "github.com/go-sif/sieve"
	errors "github.com/go-sif/sieve/errors"
	"github.com/go-sif/sieve/internal/spill"
	"github.com/go-sif/sieve/internal/store"
	"github.com/go-sif/sieve/internal/util"
	"github.com/go-sif/sieve/logging"
)

// Config configures a partitioned reduce table engine
type Config struct {
	NumPartitions    int
	MemoryBudget     int64
	InitialCapacity  int
	AvgItemBytes     int
	Storage          sieve.StorageKind
	MaxChainLength   int
	MaxProbeLength   int
	LimitFillRate    float64
	VictimPolicy     sieve.VictimPolicy
	Addressing       sieve.Addressing
	Hasher           sieve.KeyHasher
	KeyCodec         sieve.Codec
	ValueCodec       sieve.Codec
	TempDir          string
	FlushParallelism int64
	Compression      sieve.CompressionKind
	ImmediateFlush   bool
	Reduce           sieve.ReduceOperation
	Emit             func(partition int, key interface{}, value interface{}) error
}

const (
	stateBuilding = iota
	stateFlushing
	stateFlushed
	stateClosed
)

func stateName(state int) string {
	switch state {
	case stateFlushing:
		return "being flushed"
	case stateFlushed:
		return "already flushed"
	case stateClosed:
		return "disposed"
	}
	return "building"
}

// partitionState is one partition's in-memory storage plus its live item count.
// Spilled run bookkeeping lives in the spill Manager.
type partitionState struct {
	storage store.Storage
	items   int
}

// Table is a partitioned, memory-bounded reduce table. Exactly one goroutine
// may call Insert; Flush is a one-way transition after which the table only
// accepts Dispose. NOT THREAD SAFE.
type Table struct {
	conf       *Config
	partitions []*partitionState
	spills     *spill.Manager
	state      int
	// poisoned is read and written with sync/atomic: concurrent flush workers
	// can each hit a failing ReduceOperation
	poisoned     int32
	liveItems    int64
	rrNext       int
	stats        sieve.Stats
	scatterRuns  int64
	scatterBytes int64
}

// NewTable produces a Table from a validated Config
func NewTable(conf *Config) (*Table, error) {
	if conf.NumPartitions <= 0 {
		return nil, errors.ConfigurationError{Message: "number of partitions must be greater than 0"}
	}
	if conf.MemoryBudget <= 0 {
		return nil, errors.ConfigurationError{Message: "memory budget must be greater than 0 bytes"}
	}
	if conf.InitialCapacity <= 0 {
		return nil, errors.ConfigurationError{Message: "initial capacity must be greater than 0"}
	}
	if conf.AvgItemBytes <= 0 {
		return nil, errors.ConfigurationError{Message: "average item size must be greater than 0 bytes"}
	}
	if conf.FlushParallelism <= 0 {
		return nil, errors.ConfigurationError{Message: "flush parallelism must be greater than 0"}
	}
	if conf.Addressing == nil || conf.Hasher == nil {
		return nil, errors.ConfigurationError{Message: "a table requires an Addressing and a KeyHasher"}
	}
	if conf.Reduce == nil || conf.Emit == nil {
		return nil, errors.ConfigurationError{Message: "a table requires a ReduceOperation and an emitter"}
	}
	spills, err := spill.NewManager(&spill.Config{
		Dir:           conf.TempDir,
		NumPartitions: conf.NumPartitions,
		KeyCodec:      conf.KeyCodec,
		ValueCodec:    conf.ValueCodec,
		Compression:   conf.Compression,
	})
	if err != nil {
		return nil, err
	}
	t := &Table{conf: conf, spills: spills}
	t.partitions = make([]*partitionState, conf.NumPartitions)
	for p := range t.partitions {
		st, err := t.createStorage(p, conf.InitialCapacity)
		if err != nil {
			return nil, err
		}
		t.partitions[p] = &partitionState{storage: st}
	}
	return t, nil
}

func (t *Table) createStorage(partition int, capacity int) (store.Storage, error) {
	return store.Create(&store.Config{
		Kind:          t.conf.Storage,
		Capacity:      capacity,
		MaxChain:      t.conf.MaxChainLength,
		MaxProbe:      t.conf.MaxProbeLength,
		LimitFillRate: t.conf.LimitFillRate,
		Addressing:    t.conf.Addressing,
		Hasher:        t.conf.Hasher,
		Partition:     partition,
	})
}

// Insert routes one (key, value) pair to its partition's storage, combining it
// with any existing entry for the same key, then enforces the memory budget
func (t *Table) Insert(key interface{}, value interface{}) error {
	if err := t.checkState("Insert"); err != nil {
		return err
	}
	p, err := t.conf.Addressing.PartitionOf(key)
	if err != nil {
		return err
	}
	if err := t.insertInto(p, key, value); err != nil {
		return err
	}
	return t.enforceBudget()
}

func (t *Table) checkState(op string) error {
	if atomic.LoadInt32(&t.poisoned) == 1 {
		return errors.LogicError{Op: op, State: "in a failed state and must be disposed"}
	}
	if t.state != stateBuilding {
		return errors.LogicError{Op: op, State: stateName(t.state)}
	}
	return nil
}

// insertInto delegates to the partition's storage, growing or spilling on
// overflow. A spill empties the storage, so the retry loop terminates.
func (t *Table) insertInto(p int, key interface{}, value interface{}) error {
	ps := t.partitions[p]
	for {
		err := ps.storage.InsertOrCombine(key, value, t.conf.Reduce)
		if err == nil {
			break
		}
		if err != store.ErrFull {
			return t.classifyInsertError(p, key, err)
		}
		if t.canGrow(ps) {
			if err := ps.storage.Grow(); err != nil {
				return err
			}
			continue
		}
		if err := t.spillPartition(p); err != nil {
			return err
		}
	}
	added := ps.storage.Len() - ps.items
	ps.items += added
	t.liveItems += int64(added)
	if int64(ps.items) > t.stats.MaxPartitionSize {
		t.stats.MaxPartitionSize = int64(ps.items)
	}
	return nil
}

// classifyInsertError separates Sieve's own addressing/storage errors from
// failures of the user's ReduceOperation, which poison the table
func (t *Table) classifyInsertError(p int, key interface{}, err error) error {
	switch err.(type) {
	case errors.ConfigurationError, errors.StorageError:
		return err
	}
	atomic.StoreInt32(&t.poisoned, 1)
	return errors.ReduceError{PartitionID: p, KeyHash: t.conf.Hasher.Hash(key), Err: err}
}

// canGrow reports whether doubling a storage's capacity keeps the table's
// total capacity estimate within the memory budget
func (t *Table) canGrow(ps *partitionState) bool {
	if t.conf.Storage == sieve.StorageDirect {
		return false
	}
	total := 0
	for _, other := range t.partitions {
		total += other.storage.Cap()
	}
	projected := int64(total+ps.storage.Cap()) * int64(t.conf.AvgItemBytes)
	return projected <= t.conf.MemoryBudget
}

// enforceBudget spills victim partitions until the in-memory byte estimate
// fits the budget again. The estimate may exceed the budget only within the
// transient window of a single Insert call.
func (t *Table) enforceBudget() error {
	for t.liveItems*int64(t.conf.AvgItemBytes) > t.conf.MemoryBudget {
		victim := t.pickVictim()
		if victim < 0 {
			break
		}
		if err := t.spillPartition(victim); err != nil {
			return err
		}
	}
	return nil
}

// pickVictim selects the partition to spill, or -1 when nothing can be reclaimed
func (t *Table) pickVictim() int {
	if t.conf.VictimPolicy == sieve.VictimRoundRobin {
		for i := 0; i < t.conf.NumPartitions; i++ {
			p := (t.rrNext + i) % t.conf.NumPartitions
			if t.partitions[p].items > 0 {
				t.rrNext = (p + 1) % t.conf.NumPartitions
				return p
			}
		}
		return -1
	}
	victim := -1
	most := 0
	for p, ps := range t.partitions {
		if ps.items > most {
			victim = p
			most = ps.items
		}
	}
	return victim
}

// spillPartition serializes every in-memory entry of a partition as a new run
// (or, in immediate-flush mode, hands the partial aggregates straight to the
// emitter) and clears the partition's storage. This is the only way memory is
// reclaimed.
func (t *Table) spillPartition(p int) error {
	ps := t.partitions[p]
	if ps.items == 0 {
		return nil
	}
	if t.conf.ImmediateFlush {
		if logging.Enabled(logging.DebugLevel) {
			log.Printf("Flushing %d items of partition %d to the sink", ps.items, p)
		}
		if err := t.emitStorage(p, ps.storage); err != nil {
			return err
		}
	} else {
		if _, err := t.spills.AppendRun(p, ps.storage.ForEach); err != nil {
			return err
		}
		t.stats.SpillCount++
	}
	ps.storage.Clear()
	t.liveItems -= int64(ps.items)
	ps.items = 0
	return nil
}

func (t *Table) emitStorage(p int, st store.Storage) error {
	return st.ForEach(func(key interface{}, value interface{}) error {
		return t.conf.Emit(p, key, value)
	})
}

// Flush merges each partition's in-memory residue with its spilled runs and
// emits exactly one fully-combined (key, value) pair per distinct key. Flush
// is a one-way transition: afterwards the table only accepts Dispose.
// Partitions are flushed by a bounded worker pool; emitted content per
// partition is deterministic irrespective of the parallelism degree, but the
// emitter must be safe for concurrent use when FlushParallelism exceeds 1.
func (t *Table) Flush() error {
	if err := t.checkState("Flush"); err != nil {
		return err
	}
	t.state = stateFlushing
	sem := semaphore.NewWeighted(t.conf.FlushParallelism)
	ctx := context.Background()
	var wg sync.WaitGroup
	asyncErrors := util.CreateAsyncErrorChannel(t.conf.NumPartitions)
	for p := range t.partitions {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			defer sem.Release(1)
			asyncErrors <- t.flushPartition(p)
		}(p)
	}
	if err := util.WaitAndFetchErrors(&wg, asyncErrors); err != nil {
		// a failed flush cannot be resumed; the table is Dispose-only
		atomic.StoreInt32(&t.poisoned, 1)
		return err
	}
	t.state = stateFlushed
	t.spills.Dispose()
	return nil
}

// Dispose releases spill files and in-memory storage without completing Flush.
// Safe to call from any state, idempotent.
func (t *Table) Dispose() {
	if t.state == stateClosed {
		return
	}
	t.state = stateClosed
	t.spills.Dispose()
	for _, ps := range t.partitions {
		ps.storage.Clear()
		ps.items = 0
	}
	t.liveItems = 0
}

// Size returns the current number of in-memory items across all partitions
func (t *Table) Size() int {
	total := 0
	for _, ps := range t.partitions {
		total += ps.items
	}
	return total
}

// Stats returns a snapshot of the table's spill statistics, including runs
// and bytes written by re-scatters during external merges
func (t *Table) Stats() sieve.Stats {
	stats := t.stats
	stats.SpillCount += atomic.LoadInt64(&t.scatterRuns)
	stats.SpilledBytes = t.spills.SpilledBytes() + atomic.LoadInt64(&t.scatterBytes)
	return stats
}
