package ratelimit

import "strconv"

// DefaultPrefix is the key prefix used when WithPrefix is not given.
const DefaultPrefix = "ratelimit"

// keyScheme maps (identifier, bucket index) to store keys. The namespace
// embeds the algorithm's fingerprint (for a sliding window, its size), so
// limiters with different windows sharing one store never read each other's
// buckets.
type keyScheme struct {
	namespace string
}

func newKeyScheme(prefix, fingerprint string) keyScheme {
	return keyScheme{namespace: prefix + ":" + fingerprint}
}

// keyFor returns "{prefix}:{fingerprint}:{identifier}:{index}". The bucket
// index is always the final, purely numeric segment, so distinct
// (identifier, index) pairs never produce the same key.
func (k keyScheme) keyFor(identifier string, index int64) string {
	return k.namespace + ":" + identifier + ":" + strconv.FormatInt(index, 10)
}
