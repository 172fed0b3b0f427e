package snapshot

import "time"

// Expired decides whether a persisted cart is stale given its write-time
// marker. savedAt is an RFC 3339 timestamp or empty when no marker exists.
//
// An absent marker is never expired: a cart with items must have one, so a
// marker-less snapshot is either truly empty or a legacy state we keep
// usable. A marker that fails to parse is also treated as fresh — data is
// never destroyed on ambiguous input.
func Expired(savedAt string, ttl time.Duration, now time.Time) bool {
	if savedAt == "" {
		return false
	}
	ts, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return false
	}
	return now.Sub(ts) >= ttl
}
