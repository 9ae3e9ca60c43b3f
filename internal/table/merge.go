package table

import (
	"log"
	"sync/atomic"

	sieve "github.com/go-sif/sieve"
	"github.com/go-sif/sieve/internal/spill"
	"github.com/go-sif/sieve/internal/store"
	"github.com/go-sif/sieve/logging"
)

// scatterFanout is the number of sub-partitions a merge set is re-hashed into
// when it exceeds the memory budget
const scatterFanout = 8

// maxScatterDepth bounds the re-hash recursion; beyond it a single merge pass
// is forced, exceeding the budget transiently rather than never terminating
const maxScatterDepth = 64

// saltStep derives a fresh hash salt per recursion level (64-bit golden ratio)
const saltStep = 0x9E3779B97F4A7C15

// flushPartition emits one fully-combined pair per distinct key of a
// partition. A never-spilled partition is already fully combined in memory and
// is emitted directly, without I/O.
func (t *Table) flushPartition(p int) error {
	ps := t.partitions[p]
	if t.spills.RunCount(p) == 0 {
		if ps.items == 0 {
			return nil
		}
		if err := t.emitStorage(p, ps.storage); err != nil {
			return err
		}
		ps.storage.Clear()
		ps.items = 0
		return nil
	}
	if logging.Enabled(logging.DebugLevel) {
		log.Printf("Merging %d runs and %d residual items of partition %d",
			t.spills.RunCount(p), ps.items, p)
	}
	estimate := t.spills.ItemsSpilled(p) + ps.items
	if t.conf.Storage == sieve.StorageDirect || t.fitsBudget(estimate) {
		return t.mergePass(p, estimate)
	}
	return t.scatterMerge(t.spills, p, p, true, 0)
}

// fitsBudget reports whether a merge set's item estimate fits the memory
// budget in a single in-memory pass. The estimate counts duplicate keys once
// per run, so it is conservative.
func (t *Table) fitsBudget(items int) bool {
	return int64(items)*int64(t.conf.AvgItemBytes) <= t.conf.MemoryBudget
}

// mergePass re-inserts every record of every run (oldest first), followed by
// the in-memory residue, into a fresh storage, then emits the combined result
func (t *Table) mergePass(p int, capacityHint int) error {
	ps := t.partitions[p]
	fresh, err := t.createMergeStorage(p, capacityHint)
	if err != nil {
		return err
	}
	insert := func(key interface{}, value interface{}) error {
		return t.insertUnbounded(fresh, p, key, value)
	}
	if err := t.spills.ReadRuns(p, insert); err != nil {
		return err
	}
	if err := ps.storage.ForEach(insert); err != nil {
		return err
	}
	ps.storage.Clear()
	ps.items = 0
	if err := t.emitStorage(p, fresh); err != nil {
		return err
	}
	return t.spills.DropPartition(p)
}

// createMergeStorage produces a fresh storage sized to fit one merge set
func (t *Table) createMergeStorage(p int, capacityHint int) (store.Storage, error) {
	if capacityHint < t.conf.InitialCapacity {
		capacityHint = t.conf.InitialCapacity
	}
	return t.createStorage(p, capacityHint)
}

// insertUnbounded is insert-or-combine with growth always permitted - merge
// storages are pre-sized to estimates which already fit the budget
func (t *Table) insertUnbounded(st store.Storage, p int, key interface{}, value interface{}) error {
	for {
		err := st.InsertOrCombine(key, value, t.conf.Reduce)
		if err == nil {
			return nil
		}
		if err != store.ErrFull {
			return t.classifyInsertError(p, key, err)
		}
		if err := st.Grow(); err != nil {
			return err
		}
	}
}

// scatterMerge handles a merge set too large for one in-memory pass: it
// repartitions every record by a salted re-hash into sub-runs, then merges
// each sub-partition independently, recursing while a sub-set still exceeds
// the budget. Distinct keys land in exactly one sub-partition, so each is
// still emitted exactly once, attributed to the original partition.
func (t *Table) scatterMerge(src *spill.Manager, p int, origin int, includeResidue bool, depth int) error {
	hasher := t.conf.Hasher.WithSalt(uint64(depth+1) * saltStep)
	sub, err := spill.NewManager(&spill.Config{
		Dir:           t.conf.TempDir,
		NumPartitions: scatterFanout,
		KeyCodec:      t.conf.KeyCodec,
		ValueCodec:    t.conf.ValueCodec,
		Compression:   t.conf.Compression,
	})
	if err != nil {
		return err
	}
	defer sub.Dispose()
	// fold scatter I/O into the table's spill statistics; flush workers for
	// other partitions accumulate concurrently
	defer func() {
		atomic.AddInt64(&t.scatterRuns, sub.RunsWritten())
		atomic.AddInt64(&t.scatterBytes, sub.SpilledBytes())
	}()
	scatter := func(run spill.EntryIterator) error {
		return t.scatterRun(sub, hasher, run)
	}
	if err := src.ForEachRun(p, scatter); err != nil {
		return err
	}
	if includeResidue {
		ps := t.partitions[origin]
		if ps.items > 0 {
			if err := scatter(ps.storage.ForEach); err != nil {
				return err
			}
			ps.storage.Clear()
			ps.items = 0
		}
	}
	if err := src.DropPartition(p); err != nil {
		return err
	}
	for sp := 0; sp < scatterFanout; sp++ {
		if sub.RunCount(sp) == 0 {
			continue
		}
		estimate := sub.ItemsSpilled(sp)
		if t.fitsBudget(estimate) || depth >= maxScatterDepth {
			if err := t.mergeScattered(sub, sp, origin, estimate); err != nil {
				return err
			}
			continue
		}
		if err := t.scatterMerge(sub, sp, origin, false, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// scatterRun splits one run across the sub-partitions of a scatter Manager,
// holding at most one run's records in memory
func (t *Table) scatterRun(sub *spill.Manager, hasher sieve.KeyHasher, run spill.EntryIterator) error {
	buckets := make([][]kvPair, scatterFanout)
	err := run(func(key interface{}, value interface{}) error {
		sp := int(hasher.Hash(key) % scatterFanout)
		buckets[sp] = append(buckets[sp], kvPair{key: key, value: value})
		return nil
	})
	if err != nil {
		return err
	}
	for sp, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		if _, err := sub.AppendRun(sp, pairIterator(bucket)); err != nil {
			return err
		}
	}
	return nil
}

// mergeScattered performs the terminal in-memory pass for one sub-partition
// of a scatter Manager
func (t *Table) mergeScattered(sub *spill.Manager, sp int, origin int, capacityHint int) error {
	fresh, err := t.createMergeStorage(origin, capacityHint)
	if err != nil {
		return err
	}
	err = sub.ReadRuns(sp, func(key interface{}, value interface{}) error {
		return t.insertUnbounded(fresh, origin, key, value)
	})
	if err != nil {
		return err
	}
	if err := t.emitStorage(origin, fresh); err != nil {
		return err
	}
	return sub.DropPartition(sp)
}

type kvPair struct {
	key   interface{}
	value interface{}
}

func pairIterator(pairs []kvPair) spill.EntryIterator {
	return func(fn func(key interface{}, value interface{}) error) error {
		for i := range pairs {
			if err := fn(pairs[i].key, pairs[i].value); err != nil {
				return err
			}
		}
		return nil
	}
}
