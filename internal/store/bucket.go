package store

import (
	sieve "github.com/go-sif/sieve"
)

// entry is one (key, value) pair in the arena. next links entries sharing a
// bucket, by arena index rather than pointer, which keeps chains compact and
// trivially serializable.
type entry struct {
	key   interface{}
	value interface{}
	next  int32
}

const noEntry = int32(-1)

// bucketStorage resolves collisions by chaining entries per bucket within a
// shared index-based arena
type bucketStorage struct {
	addressing sieve.Addressing
	hasher     sieve.KeyHasher
	buckets    []int32
	arena      []entry
	maxChain   int
}

func createBucketStorage(conf *Config) (Storage, error) {
	if conf.Capacity <= 0 {
		return nil, errConfig("bucket storage capacity must be greater than 0")
	}
	if conf.MaxChain <= 0 {
		return nil, errConfig("bucket storage max chain length must be greater than 0")
	}
	if conf.Addressing == nil || conf.Hasher == nil {
		return nil, errConfig("bucket storage requires an Addressing and a KeyHasher")
	}
	s := &bucketStorage{
		addressing: conf.Addressing,
		hasher:     conf.Hasher,
		buckets:    make([]int32, conf.Capacity),
		arena:      make([]entry, 0, conf.Capacity),
		maxChain:   conf.MaxChain,
	}
	clearBuckets(s.buckets)
	return s, nil
}

// InsertOrCombine combines the value into the chain entry with an equal key, or
// appends a new entry to the target bucket's chain. A chain already at the
// configured maximum length returns ErrFull without inserting.
func (s *bucketStorage) InsertOrCombine(key interface{}, value interface{}, reduce sieve.ReduceOperation) error {
	slot, err := s.addressing.SlotOf(key, len(s.buckets))
	if err != nil {
		return err
	}
	chain := 0
	for idx := s.buckets[slot]; idx != noEntry; idx = s.arena[idx].next {
		e := &s.arena[idx]
		if s.hasher.Equal(e.key, key) {
			combined, err := reduce(e.value, value)
			if err != nil {
				return err
			}
			e.value = combined
			return nil
		}
		chain++
	}
	if chain >= s.maxChain {
		return ErrFull
	}
	s.arena = append(s.arena, entry{key: key, value: value, next: s.buckets[slot]})
	s.buckets[slot] = int32(len(s.arena) - 1)
	return nil
}

// Grow doubles the bucket count and re-chains every arena entry
func (s *bucketStorage) Grow() error {
	s.buckets = make([]int32, len(s.buckets)*2)
	clearBuckets(s.buckets)
	for i := range s.arena {
		slot, err := s.addressing.SlotOf(s.arena[i].key, len(s.buckets))
		if err != nil {
			return err
		}
		s.arena[i].next = s.buckets[slot]
		s.buckets[slot] = int32(i)
	}
	return nil
}

// ForEach visits every entry in arena order
func (s *bucketStorage) ForEach(fn func(key interface{}, value interface{}) error) error {
	for i := range s.arena {
		if err := fn(s.arena[i].key, s.arena[i].value); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of entries
func (s *bucketStorage) Len() int {
	return len(s.arena)
}

// Cap returns the number of buckets
func (s *bucketStorage) Cap() int {
	return len(s.buckets)
}

// Clear removes all entries, retaining the arena's allocation
func (s *bucketStorage) Clear() {
	s.arena = s.arena[:0]
	clearBuckets(s.buckets)
}

func clearBuckets(buckets []int32) {
	for i := range buckets {
		buckets[i] = noEntry
	}
}
