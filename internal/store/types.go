package store

import (
	"fmt"

	sieve "github.com/go-sif/sieve"
	errors "github.com/go-sif/sieve/errors"
)

// A Storage is one partition's in-memory collection of (key, value) entries,
// implementing insert-or-combine. At most one entry exists per distinct key.
// NOT THREAD SAFE.
type Storage interface {
	// InsertOrCombine combines the value into an existing entry with an equal key, or
	// inserts a new entry. It returns ErrFull (without inserting) when the variant's
	// overflow condition is hit - the table decides whether to Grow or to spill.
	InsertOrCombine(key interface{}, value interface{}, reduce sieve.ReduceOperation) error
	// Grow doubles the storage's capacity, rehashing existing entries
	Grow() error
	// ForEach visits every entry
	ForEach(fn func(key interface{}, value interface{}) error) error
	// Len returns the number of entries
	Len() int
	// Cap returns the current capacity in slots
	Cap() int
	// Clear removes all entries, retaining allocated memory where possible
	Clear()
}

type fullError struct{}

// Error returns a textual representation of this fullError
func (e fullError) Error() string {
	return "Storage overflow threshold reached"
}

// ErrFull is returned by InsertOrCombine when an insert would exceed the
// storage's overflow threshold
var ErrFull error = fullError{}

// Config configures a Storage instance
type Config struct {
	Kind          sieve.StorageKind
	Capacity      int
	MaxChain      int     // bucket: chain length triggering overflow
	MaxProbe      int     // probing: probe distance triggering overflow
	LimitFillRate float64 // probing: fill fraction triggering overflow
	Addressing    sieve.Addressing
	Hasher        sieve.KeyHasher
	Partition     int // direct: which partition's local range to cover
}

// Create produces a Storage of the configured kind
func Create(conf *Config) (Storage, error) {
	switch conf.Kind {
	case sieve.StorageBucket:
		return createBucketStorage(conf)
	case sieve.StorageProbing:
		return createProbingStorage(conf)
	case sieve.StorageDirect:
		return createDirectStorage(conf)
	}
	return nil, errConfig("unknown storage kind %d", int(conf.Kind))
}

func errConfig(format string, args ...interface{}) error {
	return errors.ConfigurationError{Message: fmt.Sprintf(format, args...)}
}
