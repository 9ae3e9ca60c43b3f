package addr

import (
	sieve "github.com/go-sif/sieve"
	errors "github.com/go-sif/sieve/errors"
)

// hashByKey routes keys to partitions and slots by hashing
type hashByKey struct {
	hasher        sieve.KeyHasher
	numPartitions int
}

// ByHashKey produces an Addressing which routes a key to partition hash(key) mod P,
// and to slot hash(key) mod capacity within a partition's storage
func ByHashKey(hasher sieve.KeyHasher, numPartitions int) (sieve.Addressing, error) {
	if numPartitions <= 0 {
		return nil, errors.ConfigurationError{Message: "number of partitions must be greater than 0"}
	}
	if hasher == nil {
		return nil, errors.ConfigurationError{Message: "ByHashKey addressing requires a KeyHasher"}
	}
	return &hashByKey{hasher: hasher, numPartitions: numPartitions}, nil
}

// PartitionOf returns the partition a key is routed to
func (a *hashByKey) PartitionOf(key interface{}) (int, error) {
	return int(a.hasher.Hash(key) % uint64(a.numPartitions)), nil
}

// SlotOf returns the slot a key starts at within a storage of the given capacity
func (a *hashByKey) SlotOf(key interface{}, capacity int) (int, error) {
	if capacity <= 0 {
		return 0, errors.ConfigurationError{Message: "storage capacity must be greater than 0"}
	}
	return int(a.hasher.Hash(key) % uint64(capacity)), nil
}
