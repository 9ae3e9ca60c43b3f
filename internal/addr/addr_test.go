package addr

import (
	"math"
	"testing"

	sieve "github.com/go-sif/sieve"
	errors "github.com/go-sif/sieve/errors"
	"github.com/stretchr/testify/require"
)

func TestByHashKeyIsDeterministic(t *testing.T) {
	a, err := ByHashKey(sieve.NewBytesHasher(0), 16)
	require.Nil(t, err)
	for _, key := range []string{"a", "b", "hello", ""} {
		p1, err := a.PartitionOf(key)
		require.Nil(t, err)
		p2, err := a.PartitionOf(key)
		require.Nil(t, err)
		require.Equal(t, p1, p2)
		require.True(t, p1 >= 0 && p1 < 16)
		s1, err := a.SlotOf(key, 64)
		require.Nil(t, err)
		s2, err := a.SlotOf(key, 64)
		require.Nil(t, err)
		require.Equal(t, s1, s2)
		require.True(t, s1 >= 0 && s1 < 64)
	}
}

func TestByHashKeyConfigurationErrors(t *testing.T) {
	_, err := ByHashKey(sieve.NewBytesHasher(0), 0)
	require.NotNil(t, err)
	_, ok := err.(errors.ConfigurationError)
	require.True(t, ok)
	_, err = ByHashKey(nil, 4)
	require.NotNil(t, err)
	a, err := ByHashKey(sieve.NewBytesHasher(0), 4)
	require.Nil(t, err)
	_, err = a.SlotOf("key", 0)
	require.NotNil(t, err)
	_, ok = err.(errors.ConfigurationError)
	require.True(t, ok)
}

func TestByIndexTilesKeySpace(t *testing.T) {
	// 103 keys across 32 partitions: the non-multiple boundary must leave
	// no gaps and no overlaps
	const n = 103
	const p = 32
	a, err := ByIndex(n, p)
	require.Nil(t, err)
	covered := 0
	prevEnd := uint64(0)
	for i := 0; i < p; i++ {
		begin, end := a.PartitionRange(i)
		require.Equal(t, prevEnd, begin)
		require.True(t, end >= begin)
		prevEnd = end
		covered += int(end - begin)
	}
	require.Equal(t, uint64(n), prevEnd)
	require.Equal(t, n, covered)
	// every key maps to exactly the partition whose range owns it, at an
	// in-range local slot
	for k := uint64(0); k < n; k++ {
		part, err := a.PartitionOf(k)
		require.Nil(t, err)
		require.True(t, part >= 0 && part < p)
		begin, end := a.PartitionRange(part)
		require.True(t, k >= begin && k < end)
		slot, err := a.SlotOf(k, 0)
		require.Nil(t, err)
		require.Equal(t, int(k-begin), slot)
		require.True(t, slot >= 0 && slot < int(end-begin))
	}
}

func TestByIndexRejectsOutOfRangeKeys(t *testing.T) {
	a, err := ByIndex(10, 2)
	require.Nil(t, err)
	_, err = a.PartitionOf(uint64(10))
	require.NotNil(t, err)
	_, err = a.PartitionOf(-1)
	require.NotNil(t, err)
	_, err = a.PartitionOf("key")
	require.NotNil(t, err)
}

func TestByIndexConfigurationErrors(t *testing.T) {
	_, err := ByIndex(0, 4)
	require.NotNil(t, err)
	_, ok := err.(errors.ConfigurationError)
	require.True(t, ok)
	_, err = ByIndex(100, 0)
	require.NotNil(t, err)
}

func TestByIndexRejectsOverflowingKeySpace(t *testing.T) {
	_, err := ByIndex(math.MaxUint64, 2)
	require.NotNil(t, err)
	require.IsType(t, errors.ConfigurationError{}, err)
	// the largest key space which keeps k*P within uint64 still routes its
	// top key correctly
	limit := uint64(math.MaxUint64) / 4
	a, err := ByIndex(limit, 4)
	require.Nil(t, err)
	p, err := a.PartitionOf(limit - 1)
	require.Nil(t, err)
	require.Equal(t, 3, p)
	begin, end := a.PartitionRange(3)
	require.True(t, limit-1 >= begin && limit-1 < end)
	_, err = ByIndex(limit+1, 4)
	require.NotNil(t, err)
}

func TestByIndexFoldsSlotsIntoSmallStorage(t *testing.T) {
	a, err := ByIndex(1000, 2)
	require.Nil(t, err)
	// a hashed storage may be smaller than the partition's 500-key range
	for k := uint64(0); k < 500; k++ {
		slot, err := a.SlotOf(k, 16)
		require.Nil(t, err)
		require.True(t, slot >= 0 && slot < 16)
	}
}

func TestByIndexMorePartitionsThanKeys(t *testing.T) {
	a, err := ByIndex(3, 8)
	require.Nil(t, err)
	seen := make(map[int]bool)
	for k := uint64(0); k < 3; k++ {
		part, err := a.PartitionOf(k)
		require.Nil(t, err)
		begin, end := a.PartitionRange(part)
		require.True(t, k >= begin && k < end)
		seen[part] = true
	}
	require.Equal(t, 3, len(seen))
}
