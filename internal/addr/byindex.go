package addr

import (
	"fmt"
	"math"

	sieve "github.com/go-sif/sieve"
	errors "github.com/go-sif/sieve/errors"
)

// byIndex range-partitions a dense integer key space [0, keySpace) across
// numPartitions partitions. Partition p owns keys [ceil(p*N/P), ceil((p+1)*N/P)),
// which is exactly the set of keys with floor(k*P/N) == p, so the ranges tile
// the key space without gap or overlap even when N is not a multiple of P.
type byIndex struct {
	keySpace      uint64
	numPartitions int
}

// ByIndex produces a RangeAddressing for a dense key space of the given size
func ByIndex(keySpace uint64, numPartitions int) (sieve.RangeAddressing, error) {
	if numPartitions <= 0 {
		return nil, errors.ConfigurationError{Message: "number of partitions must be greater than 0"}
	}
	if keySpace == 0 {
		return nil, errors.ConfigurationError{Message: "ByIndex addressing requires a key space size greater than 0"}
	}
	// partition arithmetic multiplies keys (and partition ids) by P before
	// dividing, so k*P must stay within uint64 for every k < N
	if keySpace > math.MaxUint64/uint64(numPartitions) {
		return nil, errors.ConfigurationError{Message: fmt.Sprintf("key space size %d with %d partitions overflows partition arithmetic", keySpace, numPartitions)}
	}
	return &byIndex{keySpace: keySpace, numPartitions: numPartitions}, nil
}

func (a *byIndex) index(key interface{}) (uint64, error) {
	k, ok := indexOf(key)
	if !ok {
		return 0, errors.ConfigurationError{Message: fmt.Sprintf("key type %T is not indexable", key)}
	}
	if k >= a.keySpace {
		return 0, errors.ConfigurationError{Message: fmt.Sprintf("key %d is outside the key space [0, %d)", k, a.keySpace)}
	}
	return k, nil
}

// PartitionOf returns the partition owning an integer key, floor(k*P/N)
// clamped to [0, P-1] so the last partition absorbs any remainder
func (a *byIndex) PartitionOf(key interface{}) (int, error) {
	k, err := a.index(key)
	if err != nil {
		return 0, err
	}
	p := int(k * uint64(a.numPartitions) / a.keySpace)
	if p >= a.numPartitions {
		p = a.numPartitions - 1
	}
	return p, nil
}

// SlotOf returns a key's offset within its partition's local range, folded
// modulo capacity when the storage is smaller than the range (bucket and
// probing storages size themselves independently). Direct storage covers the
// full local range, for which the slot is bijective onto [0, end-begin).
func (a *byIndex) SlotOf(key interface{}, capacity int) (int, error) {
	k, err := a.index(key)
	if err != nil {
		return 0, err
	}
	p, err := a.PartitionOf(key)
	if err != nil {
		return 0, err
	}
	begin, _ := a.PartitionRange(p)
	slot := int(k - begin)
	if capacity > 0 && slot >= capacity {
		slot %= capacity
	}
	return slot, nil
}

// PartitionRange returns the key range [begin, end) owned by a partition.
// begin is the smallest key k with floor(k*P/N) == p, i.e. ceil(p*N/P).
func (a *byIndex) PartitionRange(partition int) (uint64, uint64) {
	return a.rangeBegin(partition), a.rangeBegin(partition + 1)
}

func (a *byIndex) rangeBegin(p int) uint64 {
	if p >= a.numPartitions {
		return a.keySpace
	}
	n := a.keySpace
	pp := uint64(a.numPartitions)
	return (uint64(p)*n + pp - 1) / pp
}

// indexOf coerces integer-typed keys to a key-space index
func indexOf(key interface{}) (uint64, bool) {
	switch k := key.(type) {
	case uint64:
		return k, true
	case int:
		if k < 0 {
			return 0, false
		}
		return uint64(k), true
	case uint32:
		return uint64(k), true
	case int64:
		if k < 0 {
			return 0, false
		}
		return uint64(k), true
	case uint:
		return uint64(k), true
	case int32:
		if k < 0 {
			return 0, false
		}
		return uint64(k), true
	}
	return 0, false
}
