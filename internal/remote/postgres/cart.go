package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
)

// DB is the subset of pgxpool.Pool used by the store. Both *pgxpool.Pool and
// pgxmock satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements remote.Store on PostgreSQL. Rows are keyed by
// (user_id, product_id, group_id); group_id is stored as an empty string for
// ungrouped lines. A position column preserves insertion order and
// updated_at drives the TTL filter at query time.
type Store struct {
	db  DB
	now func() time.Time
}

// NewStore creates a PostgreSQL-backed remote cart store.
func NewStore(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

// FetchActive returns the user's cart lines updated within the TTL window,
// in insertion order. Stale rows are filtered out, not deleted.
func (s *Store) FetchActive(ctx context.Context, userID string, ttl time.Duration) (domain.Lines, error) {
	query := `
		SELECT product_id, group_id, product_name, unit_price, quantity, max_quantity, group_label
		FROM cart_items
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY position`

	cutoff := s.now().UTC().Add(-ttl)

	rows, err := s.db.Query(ctx, query, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("fetch cart items: %w", err)
	}
	defer rows.Close()

	lines := domain.Lines{}
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ProductID, &l.GroupID, &l.ProductName, &l.UnitPrice, &l.Quantity, &l.MaxQuantity, &l.GroupLabel); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}

	return lines, nil
}

// ReplaceAll deletes the user's existing lines and inserts the given cart in
// a single transaction, so concurrent replacements resolve to the last
// committed writer.
func (s *Store) ReplaceAll(ctx context.Context, userID string, lines domain.Lines) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace cart: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}

	insert := `
		INSERT INTO cart_items
			(user_id, product_id, group_id, product_name, unit_price, quantity, max_quantity, group_label, position, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := s.now().UTC()
	for i, l := range lines {
		if _, err := tx.Exec(ctx, insert,
			userID, l.ProductID, l.GroupID, l.ProductName, l.UnitPrice, l.Quantity, l.MaxQuantity, l.GroupLabel, i, now,
		); err != nil {
			return fmt.Errorf("insert cart item %s: %w", l.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace cart: %w", err)
	}

	return nil
}

// Clear deletes all lines for the user.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	return nil
}
