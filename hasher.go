package sieve

import (
	"bytes"
	"log"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// A KeyHasher hashes keys and tests them for equality. Hashers are salted at
// construction: external merges re-hash spilled keys with a fresh salt at each
// recursion level, so two hashers with different salts must distribute the
// same keys differently.
type KeyHasher interface {
	Hash(key interface{}) uint64
	Equal(a interface{}, b interface{}) bool
	WithSalt(salt uint64) KeyHasher
}

// mix64 folds a salt into a 64-bit hash (the Hash128to64 function from
// Google's cityhash, available under the MIT License).
func mix64(upper uint64, lower uint64) uint64 {
	const k = 0x9DDFEA08EB382D69
	a := (lower ^ upper) * k
	a ^= a >> 47
	b := (upper ^ a) * k
	b ^= b >> 47
	return b * k
}

// keyToUint64 coerces integer-typed keys to uint64
func keyToUint64(key interface{}) (uint64, bool) {
	switch k := key.(type) {
	case uint64:
		return k, true
	case int:
		return uint64(k), true
	case uint32:
		return uint64(k), true
	case int64:
		return uint64(k), true
	case uint:
		return uint64(k), true
	case int32:
		return uint64(k), true
	}
	return 0, false
}

type uint64Hasher struct {
	salt uint64
}

// NewUint64Hasher produces a KeyHasher for integer-typed keys, mixing the
// key with the given salt
func NewUint64Hasher(salt uint64) KeyHasher {
	return &uint64Hasher{salt: salt}
}

// Hash hashes an integer-typed key
func (h *uint64Hasher) Hash(key interface{}) uint64 {
	k, ok := keyToUint64(key)
	if !ok {
		log.Panicf("Key type %T is not supported by Uint64Hasher", key)
	}
	return mix64(h.salt, k)
}

// Equal returns true iff two integer-typed keys are identical
func (h *uint64Hasher) Equal(a interface{}, b interface{}) bool {
	ka, ok := keyToUint64(a)
	if !ok {
		log.Panicf("Key type %T is not supported by Uint64Hasher", a)
	}
	kb, ok := keyToUint64(b)
	if !ok {
		log.Panicf("Key type %T is not supported by Uint64Hasher", b)
	}
	return ka == kb
}

// WithSalt produces a Uint64Hasher with a different salt
func (h *uint64Hasher) WithSalt(salt uint64) KeyHasher {
	return &uint64Hasher{salt: salt}
}

type bytesHasher struct {
	salt uint64
}

// NewBytesHasher produces a KeyHasher for []byte and string keys, hashing
// key bytes with xxhash and mixing with the given salt
func NewBytesHasher(salt uint64) KeyHasher {
	return &bytesHasher{salt: salt}
}

// Hash hashes the bytes of a []byte or string key
func (h *bytesHasher) Hash(key interface{}) uint64 {
	switch k := key.(type) {
	case []byte:
		return mix64(h.salt, xxhash.Sum64(k))
	case string:
		return mix64(h.salt, xxhash.Sum64String(k))
	}
	log.Panicf("Key type %T is not supported by BytesHasher", key)
	return 0
}

// Equal returns true iff two []byte or string keys contain identical bytes
func (h *bytesHasher) Equal(a interface{}, b interface{}) bool {
	return keyBytesEqual(a, b, "BytesHasher")
}

// WithSalt produces a BytesHasher with a different salt
func (h *bytesHasher) WithSalt(salt uint64) KeyHasher {
	return &bytesHasher{salt: salt}
}

type murmur3Hasher struct {
	salt uint64
}

// NewMurmur3Hasher produces a KeyHasher for []byte and string keys, hashing
// key bytes with murmur3 and mixing with the given salt
func NewMurmur3Hasher(salt uint64) KeyHasher {
	return &murmur3Hasher{salt: salt}
}

// Hash hashes the bytes of a []byte or string key
func (h *murmur3Hasher) Hash(key interface{}) uint64 {
	switch k := key.(type) {
	case []byte:
		return mix64(h.salt, murmur3.Sum64(k))
	case string:
		return mix64(h.salt, murmur3.Sum64([]byte(k)))
	}
	log.Panicf("Key type %T is not supported by Murmur3Hasher", key)
	return 0
}

// Equal returns true iff two []byte or string keys contain identical bytes
func (h *murmur3Hasher) Equal(a interface{}, b interface{}) bool {
	return keyBytesEqual(a, b, "Murmur3Hasher")
}

// WithSalt produces a Murmur3Hasher with a different salt
func (h *murmur3Hasher) WithSalt(salt uint64) KeyHasher {
	return &murmur3Hasher{salt: salt}
}

func keyBytes(key interface{}, hasherName string) []byte {
	switch k := key.(type) {
	case []byte:
		return k
	case string:
		return []byte(k)
	}
	log.Panicf("Key type %T is not supported by %s", key, hasherName)
	return nil
}

func keyBytesEqual(a interface{}, b interface{}, hasherName string) bool {
	return bytes.Equal(keyBytes(a, hasherName), keyBytes(b, hasherName))
}
