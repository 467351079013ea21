package fingerprint

import "github.com/cespare/xxhash/v2"

// SurrogateID derives a 64-bit content-addressed identifier from the wire
// encoding of a fingerprint. Collisions are possible but tolerated: the
// exact Hamming re-check filters false candidates. Repeated inserts of the
// same value converge on the same surrogate, which keeps inserts idempotent
// without a separate dedup pass.
func SurrogateID(encoded []byte) uint64 {
	return xxhash.Sum64(encoded)
}

// IdentityID returns v unchanged, used when the fingerprint is small enough
// to serve as its own identifier and a hash layer would buy nothing.
func IdentityID[T comparable](v T) T {
	return v
}
