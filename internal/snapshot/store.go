// Package snapshot holds the device-local cart persistence: a small
// key-value snapshot of the in-memory cart plus a write-time marker that
// anchors the expiry window. It is the only source of truth for guests and
// an offline cache for authenticated users.
package snapshot

import (
	"context"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
)

// Store persists the cart snapshot for one device session.
//
// Load applies the expiry policy and degrades to an empty cart on absence or
// corruption; the returned error is diagnostic only and the caller is
// expected to log it and continue with the returned lines.
//
// Save owns the write-time marker lifecycle: the marker is set when the cart
// transitions from empty to non-empty, left untouched while it stays
// non-empty, and removed when the cart empties.
type Store interface {
	Load(ctx context.Context, sessionID string) (domain.Lines, error)
	Save(ctx context.Context, sessionID string, lines domain.Lines) error
	Clear(ctx context.Context, sessionID string) error
}
