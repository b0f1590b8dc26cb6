package core

import (
	"github.com/spaolacci/murmur3"
)

// bucket computes the deterministic bucket assignment for unit under
// salt, modulo bucketCount. The double-hashing — salt hashed to a seed,
// then unit hashed with that seed — is mandatory for bit-exact
// cross-implementation compatibility; do not simplify to a single pass.
func bucket(salt []byte, unit string, bucketCount uint32) uint32 {
	if bucketCount == 0 {
		panic("core: bucket called with bucketCount == 0")
	}
	if unit == "" {
		panic("core: bucket called with empty unit")
	}
	h := fullHash(salt, unit)
	return h % bucketCount
}

// fullHash returns the raw 32-bit murmur3 digest of unit, seeded by the
// digest of salt. bucket(salt, u, k) == fullHash(salt, u) % k for any k,
// so callers may change the modulus without recomputing the hash.
func fullHash(salt []byte, unit string) uint32 {
	seed := murmur3.Sum32WithSeed(salt, 0)
	return murmur3.Sum32WithSeed([]byte(unit), seed)
}

// fractionalBucket maps (salt, unit) onto [0, 1), used for segment
// allocation checks. It must use the segment's own salt, not a rule's.
func fractionalBucket(salt []byte, unit string) float64 {
	h := fullHash(salt, unit)
	return float64(h) / 4294967296.0 // 2^32
}
