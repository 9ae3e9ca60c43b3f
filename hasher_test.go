package sieve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint64HasherCoercesIntegerTypes(t *testing.T) {
	hasher := NewUint64Hasher(0)
	// the same logical key hashes identically regardless of integer type
	h := hasher.Hash(uint64(42))
	require.Equal(t, h, hasher.Hash(int(42)))
	require.Equal(t, h, hasher.Hash(int64(42)))
	require.Equal(t, h, hasher.Hash(uint32(42)))
	require.True(t, hasher.Equal(uint64(42), int(42)))
	require.False(t, hasher.Equal(uint64(42), uint64(43)))
}

func TestHashersSaltChangesDistribution(t *testing.T) {
	hashers := map[string]KeyHasher{
		"uint64":  NewUint64Hasher(0),
		"bytes":   NewBytesHasher(0),
		"murmur3": NewMurmur3Hasher(0),
	}
	keys := map[string]interface{}{
		"uint64":  uint64(7),
		"bytes":   []byte("seven"),
		"murmur3": []byte("seven"),
	}
	for name, hasher := range hashers {
		salted := hasher.WithSalt(1)
		key := keys[name]
		require.Equal(t, hasher.Hash(key), hasher.Hash(key))
		require.NotEqual(t, hasher.Hash(key), salted.Hash(key), "salting did not change the %s hash", name)
	}
}

func TestBytesHasherTreatsStringAndBytesAlike(t *testing.T) {
	for _, hasher := range []KeyHasher{NewBytesHasher(5), NewMurmur3Hasher(5)} {
		require.Equal(t, hasher.Hash([]byte("key")), hasher.Hash("key"))
		require.True(t, hasher.Equal([]byte("key"), "key"))
		require.False(t, hasher.Equal([]byte("key"), []byte("other")))
	}
}
