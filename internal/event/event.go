// Package event publishes cart lifecycle notifications. Publishing is
// fire and forget: a broker outage must never block or fail a cart
// mutation, so implementations log failures and move on.
package event

import (
	"context"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
)

// Publisher emits cart lifecycle events.
type Publisher interface {
	// CartUpdated announces the current cart contents after a mutation
	// reached the remote store.
	CartUpdated(ctx context.Context, userID string, lines domain.Lines, total int64)

	// CartCleared announces that a cart was emptied.
	CartCleared(ctx context.Context, userID string)

	// CartCheckedOut announces a successful checkout.
	CartCheckedOut(ctx context.Context, userID, orderID string, lines domain.Lines, total int64)
}

// Nop is a Publisher that discards all events. Used in tests and when no
// broker is configured.
type Nop struct{}

func (Nop) CartUpdated(context.Context, string, domain.Lines, int64)            {}
func (Nop) CartCleared(context.Context, string)                                 {}
func (Nop) CartCheckedOut(context.Context, string, string, domain.Lines, int64) {}
