package store

import (
	sieve "github.com/go-sif/sieve"
)

// slot is one cell of the open-addressed table. Occupancy is an explicit flag
// rather than a sentinel key, so any key value is legal.
type slot struct {
	occupied bool
	key      interface{}
	value    interface{}
}

// probingStorage resolves collisions via linear probing with wraparound.
// Entries are never deleted individually, only cleared wholesale on spill,
// so no tombstones are required.
type probingStorage struct {
	addressing sieve.Addressing
	hasher     sieve.KeyHasher
	slots      []slot
	size       int
	maxProbe   int
	fillRate   float64
	limitItems int
}

func createProbingStorage(conf *Config) (Storage, error) {
	if conf.Capacity <= 0 {
		return nil, errConfig("probing storage capacity must be greater than 0")
	}
	if conf.MaxProbe <= 0 {
		return nil, errConfig("probing storage max probe length must be greater than 0")
	}
	if conf.LimitFillRate <= 0 || conf.LimitFillRate > 1 {
		return nil, errConfig("probing storage fill rate limit %f must be in (0, 1]", conf.LimitFillRate)
	}
	if conf.Addressing == nil || conf.Hasher == nil {
		return nil, errConfig("probing storage requires an Addressing and a KeyHasher")
	}
	s := &probingStorage{
		addressing: conf.Addressing,
		hasher:     conf.Hasher,
		slots:      make([]slot, conf.Capacity),
		maxProbe:   conf.MaxProbe,
		fillRate:   conf.LimitFillRate,
	}
	s.limitItems = fillLimit(conf.Capacity, conf.LimitFillRate)
	return s, nil
}

func fillLimit(capacity int, rate float64) int {
	limit := int(float64(capacity) * rate)
	if limit < 1 {
		limit = 1
	}
	if limit > capacity {
		limit = capacity
	}
	return limit
}

// InsertOrCombine probes with a fixed step from the key's starting slot,
// combining on a key match and occupying the first empty slot otherwise.
// Exceeding the probe limit, or inserting past the fill-rate limit, returns
// ErrFull without inserting.
func (s *probingStorage) InsertOrCombine(key interface{}, value interface{}, reduce sieve.ReduceOperation) error {
	start, err := s.addressing.SlotOf(key, len(s.slots))
	if err != nil {
		return err
	}
	probes := s.maxProbe
	if probes > len(s.slots) {
		probes = len(s.slots)
	}
	for i := 0; i < probes; i++ {
		cell := &s.slots[(start+i)%len(s.slots)]
		if !cell.occupied {
			if s.size >= s.limitItems {
				return ErrFull
			}
			cell.occupied = true
			cell.key = key
			cell.value = value
			s.size++
			return nil
		}
		if s.hasher.Equal(cell.key, key) {
			combined, err := reduce(cell.value, value)
			if err != nil {
				return err
			}
			cell.value = combined
			return nil
		}
	}
	return ErrFull
}

// Grow doubles the slot array and re-probes every entry into it
func (s *probingStorage) Grow() error {
	old := s.slots
	s.slots = make([]slot, len(old)*2)
	s.limitItems = fillLimit(len(s.slots), s.fillRate)
	for i := range old {
		if !old[i].occupied {
			continue
		}
		start, err := s.addressing.SlotOf(old[i].key, len(s.slots))
		if err != nil {
			return err
		}
		// capacity doubled while size held, so an empty slot always exists
		for j := 0; ; j++ {
			cell := &s.slots[(start+j)%len(s.slots)]
			if !cell.occupied {
				*cell = old[i]
				break
			}
		}
	}
	return nil
}

// ForEach visits every occupied slot
func (s *probingStorage) ForEach(fn func(key interface{}, value interface{}) error) error {
	for i := range s.slots {
		if s.slots[i].occupied {
			if err := fn(s.slots[i].key, s.slots[i].value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the number of entries
func (s *probingStorage) Len() int {
	return s.size
}

// Cap returns the number of slots
func (s *probingStorage) Cap() int {
	return len(s.slots)
}

// Clear empties every slot, retaining the allocation
func (s *probingStorage) Clear() {
	for i := range s.slots {
		s.slots[i] = slot{}
	}
	s.size = 0
}
