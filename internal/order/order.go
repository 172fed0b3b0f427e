// Package order holds the order-creation collaborator: the external service
// that turns a cart into a persisted order at checkout. The cart engine
// treats it as opaque — it only needs success with an order ID, or failure.
package order

import (
	"context"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
)

// Creator persists an order snapshot of the cart. On failure the caller
// leaves the cart completely untouched so the donor can retry.
type Creator interface {
	Create(ctx context.Context, userID string, lines domain.Lines, total int64) (orderID string, err error)
}
