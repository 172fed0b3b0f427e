// Package remote defines the authenticated-user cart store: the server-side
// copy of the cart, reachable only when a user identity is present.
package remote

import (
	"context"
	"time"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
)

// Store is the remote cart persistence contract consumed by the
// reconciliation engine. Failures are non-fatal to callers: the engine logs
// them and falls back to local state.
type Store interface {
	// FetchActive returns the user's lines whose last update falls within
	// the TTL window; older lines are treated as absent.
	FetchActive(ctx context.Context, userID string, ttl time.Duration) (domain.Lines, error)

	// ReplaceAll atomically replaces the user's whole cart. The last write
	// observed by the store wins.
	ReplaceAll(ctx context.Context, userID string, lines domain.Lines) error

	// Clear deletes all lines for the user.
	Clear(ctx context.Context, userID string) error
}
