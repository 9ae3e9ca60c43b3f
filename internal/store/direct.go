package store

import (
	sieve "github.com/go-sif/sieve"
)

// directStorage stores values in a dense array over a partition's local key
// range, as assigned by a RangeAddressing. Multiple source items can still map
// to the same slot, so inserts combine via the ReduceOperation rather than
// overwriting.
type directStorage struct {
	addressing sieve.Addressing
	begin      uint64
	keys       []interface{}
	values     []interface{}
	present    []bool
	size       int
}

func createDirectStorage(conf *Config) (Storage, error) {
	if conf.Addressing == nil {
		return nil, errConfig("direct storage requires an Addressing")
	}
	ranged, ok := conf.Addressing.(sieve.RangeAddressing)
	if !ok {
		return nil, errConfig("direct storage requires ByIndex addressing")
	}
	begin, end := ranged.PartitionRange(conf.Partition)
	if end < begin {
		return nil, errConfig("partition %d has an inverted key range [%d, %d)", conf.Partition, begin, end)
	}
	local := int(end - begin)
	if local == 0 {
		// a partition can own zero keys when P exceeds the key space
		local = 1
	}
	return &directStorage{
		addressing: conf.Addressing,
		begin:      begin,
		keys:       make([]interface{}, local),
		values:     make([]interface{}, local),
		present:    make([]bool, local),
	}, nil
}

// InsertOrCombine combines the value into the key's slot, or occupies it.
// Direct storage never overflows - its capacity is the partition's full
// local range.
func (s *directStorage) InsertOrCombine(key interface{}, value interface{}, reduce sieve.ReduceOperation) error {
	idx, err := s.addressing.SlotOf(key, len(s.values))
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(s.values) {
		return errConfig("slot %d is outside the partition's local range [0, %d)", idx, len(s.values))
	}
	if s.present[idx] {
		combined, err := reduce(s.values[idx], value)
		if err != nil {
			return err
		}
		s.values[idx] = combined
		return nil
	}
	s.present[idx] = true
	s.keys[idx] = key
	s.values[idx] = value
	s.size++
	return nil
}

// Grow is an error for direct storage - the local range fixes the capacity
func (s *directStorage) Grow() error {
	return errConfig("direct storage cannot grow beyond its partition's local range")
}

// ForEach visits every present slot in index order
func (s *directStorage) ForEach(fn func(key interface{}, value interface{}) error) error {
	for i := range s.values {
		if s.present[i] {
			if err := fn(s.keys[i], s.values[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the number of present slots
func (s *directStorage) Len() int {
	return s.size
}

// Cap returns the partition's local range size
func (s *directStorage) Cap() int {
	return len(s.values)
}

// Clear empties every slot, retaining the allocation
func (s *directStorage) Clear() {
	for i := range s.values {
		s.present[i] = false
		s.keys[i] = nil
		s.values[i] = nil
	}
	s.size = 0
}
