// Package engine implements the cart reconciliation state machine: the
// single writer that keeps the in-memory cart, the device-local snapshot
// and the remote store consistent across guest and authenticated sessions.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fundacjapwm/paw-aid-cart/internal/domain"
	"github.com/fundacjapwm/paw-aid-cart/internal/event"
	"github.com/fundacjapwm/paw-aid-cart/internal/order"
	"github.com/fundacjapwm/paw-aid-cart/internal/remote"
	"github.com/fundacjapwm/paw-aid-cart/internal/snapshot"
	apperrors "github.com/fundacjapwm/paw-aid-cart/pkg/errors"
)

// Engine owns the cart of one device session. All mutations go through its
// methods; nothing else writes to the snapshot or remote store for the
// session.
//
// Mutations apply to in-memory state and the local snapshot synchronously,
// then schedule a remote push that a background worker performs. Pushes are
// coalesced: only the latest cart generation is ever sent, so a push that
// fails is superseded by the next mutation's push.
//
// Lock order: pushMu before mu, always. Mutations take mu only; identity
// transitions, clear and checkout take both so no push can interleave with
// a reconciliation pass.
type Engine struct {
	sessionID string
	snapshots snapshot.Store
	remote    remote.Store
	orders    order.Creator
	events    event.Publisher
	logger    *slog.Logger
	ttl       time.Duration

	pushMu sync.Mutex

	mu          sync.Mutex
	lines       domain.Lines
	userID      string
	addedGroups map[string]struct{}
	generation  uint64
	syncedGen   uint64

	signal    chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New loads the session's snapshot and starts the push worker. A degraded
// snapshot load (corruption, backend failure) is logged and the engine
// starts with whatever lines the store could recover.
func New(
	ctx context.Context,
	sessionID string,
	snapshots snapshot.Store,
	remoteStore remote.Store,
	orders order.Creator,
	events event.Publisher,
	ttl time.Duration,
	logger *slog.Logger,
) *Engine {
	lines, err := snapshots.Load(ctx, sessionID)
	if err != nil {
		logger.WarnContext(ctx, "local snapshot degraded on load",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	e := &Engine{
		sessionID:   sessionID,
		snapshots:   snapshots,
		remote:      remoteStore,
		orders:      orders,
		events:      events,
		logger:      logger,
		ttl:         ttl,
		lines:       lines,
		addedGroups: make(map[string]struct{}),
		signal:      make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	e.wg.Add(1)
	go e.run()

	return e
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case <-e.signal:
			_ = e.push(context.Background())
		}
	}
}

// requestPush schedules a remote push without blocking. A request arriving
// while one is already pending is dropped; the pending push will carry the
// latest state anyway.
func (e *Engine) requestPush() {
	select {
	case e.signal <- struct{}{}:
	default:
		remotePushesCoalesced.Inc()
	}
}

// push sends the current cart to the remote store if an authenticated
// identity is present and the cart has changed since the last successful
// push. The generation it sent is recorded only if no newer generation
// appeared meanwhile.
func (e *Engine) push(ctx context.Context) error {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	e.mu.Lock()
	gen := e.generation
	userID := e.userID
	if userID == "" || gen == e.syncedGen {
		e.mu.Unlock()
		return nil
	}
	lines := e.lines.Clone()
	e.mu.Unlock()

	if err := e.remote.ReplaceAll(ctx, userID, lines); err != nil {
		remotePushesTotal.WithLabelValues("error").Inc()
		e.logger.WarnContext(ctx, "remote cart push failed",
			slog.String("session_id", e.sessionID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return err
	}
	remotePushesTotal.WithLabelValues("success").Inc()

	e.mu.Lock()
	if gen > e.syncedGen {
		e.syncedGen = gen
	}
	e.mu.Unlock()

	e.events.CartUpdated(ctx, userID, lines, lines.Total())
	return nil
}

// writeThrough mirrors the in-memory cart to the local snapshot and, for an
// authenticated session, marks the cart dirty for the push worker. Caller
// must hold mu.
func (e *Engine) writeThrough(ctx context.Context) {
	if err := e.snapshots.Save(ctx, e.sessionID, e.lines); err != nil {
		e.logger.WarnContext(ctx, "local snapshot save failed",
			slog.String("session_id", e.sessionID),
			slog.String("error", err.Error()),
		)
	}

	e.generation++
	if e.userID != "" {
		e.requestPush()
	}
}

// Lines returns a copy of the current cart.
func (e *Engine) Lines() domain.Lines {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.Clone()
}

// Total returns the cart value in minor units.
func (e *Engine) Total() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.Total()
}

// Count returns the summed quantity across all lines.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.Count()
}

// UserID returns the authenticated user ID, or empty for a guest session.
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// Add puts quantity units of the given product line into the cart,
// accumulating onto an existing line with the same (product, group)
// identity. When the resulting quantity would exceed the line's bound the
// whole add is rejected and the existing line is left unchanged; the
// requested delta is never silently truncated.
func (e *Engine) Add(ctx context.Context, line domain.CartLine, quantity int, silent bool) domain.Outcome {
	if quantity <= 0 {
		quantity = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.lines.FindIndex(line.ProductID, line.GroupID)
	if idx >= 0 {
		existing := &e.lines[idx]
		newQty := existing.Quantity + quantity
		if existing.Bounded() && newQty > existing.MaxQuantity {
			out := domain.LimitReached(existing.ProductName, existing.MaxQuantity)
			out.Silent = silent
			return out
		}
		existing.Quantity = newQty
		existing.ProductName = line.ProductName
		existing.UnitPrice = line.UnitPrice
		existing.GroupLabel = line.GroupLabel
	} else {
		if line.Bounded() && quantity > line.MaxQuantity {
			out := domain.LimitReached(line.ProductName, line.MaxQuantity)
			out.Silent = silent
			return out
		}
		added := line
		added.Quantity = quantity
		e.lines = append(e.lines, added)
	}

	e.writeThrough(ctx)

	out := domain.Added(line.ProductName)
	out.Silent = silent
	return out
}

// BulkAdd sets each given line to its maximum sensible quantity (the bound
// when one exists, otherwise 1), overwriting any existing line with the
// same identity. An empty input reports nothing to do and leaves the cart
// untouched.
func (e *Engine) BulkAdd(ctx context.Context, lines domain.Lines, groupLabel string) domain.Outcome {
	if len(lines) == 0 {
		return domain.NothingToDo(groupLabel)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, l := range lines {
		l.Quantity = 1
		if l.Bounded() {
			l.Quantity = l.MaxQuantity
		}
		if idx := e.lines.FindIndex(l.ProductID, l.GroupID); idx >= 0 {
			e.lines[idx] = l
		} else {
			e.lines = append(e.lines, l)
		}
	}

	e.writeThrough(ctx)

	return domain.Outcome{Kind: domain.OutcomeSuccess, GroupLabel: groupLabel}
}

// UpdateQuantity sets the line's quantity to an absolute value. Zero or
// negative removes the line. A value above the bound is clamped to the
// bound, unlike Add which rejects.
func (e *Engine) UpdateQuantity(ctx context.Context, productID, groupID string, quantity int) domain.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.lines.FindIndex(productID, groupID)
	if idx < 0 {
		return domain.NothingToDo("")
	}
	line := e.lines[idx]

	if quantity <= 0 {
		e.lines = append(e.lines[:idx], e.lines[idx+1:]...)
		e.writeThrough(ctx)
		return domain.Removed(line.ProductName)
	}

	out := domain.Outcome{Kind: domain.OutcomeSuccess, ProductName: line.ProductName}
	if line.Bounded() && quantity > line.MaxQuantity {
		quantity = line.MaxQuantity
		out = domain.LimitReached(line.ProductName, line.MaxQuantity)
	}

	e.lines[idx].Quantity = quantity
	e.writeThrough(ctx)
	return out
}

// Remove deletes the matching line. Absent lines are a no-op, not an error.
func (e *Engine) Remove(ctx context.Context, productID, groupID string) domain.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.lines.FindIndex(productID, groupID)
	if idx < 0 {
		return domain.NothingToDo("")
	}
	line := e.lines[idx]

	e.lines = append(e.lines[:idx], e.lines[idx+1:]...)
	e.writeThrough(ctx)
	return domain.Removed(line.ProductName)
}

// RemoveGroup deletes every line belonging to the group and evicts the
// group from the fully-added marker set. Reports the aggregate quantity and
// value removed.
func (e *Engine) RemoveGroup(ctx context.Context, groupID, groupLabel string) domain.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.addedGroups, groupID)

	qty, value := e.lines.GroupQuantityValue(groupID)
	if qty == 0 {
		return domain.NothingToDo(groupLabel)
	}

	e.lines = e.lines.WithoutGroup(groupID)
	e.writeThrough(ctx)
	return domain.GroupRemoved(groupLabel, qty, value)
}

// Clear empties the cart. For an authenticated session the remote store is
// cleared first: clear exists for irreversible disposal, so a failed remote
// clear must not hide behind a locally emptied cart. The remote failure is
// still non-fatal and the local clear proceeds.
func (e *Engine) Clear(ctx context.Context) domain.Outcome {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.userID != "" {
		if err := e.remote.Clear(ctx, e.userID); err != nil {
			e.logger.WarnContext(ctx, "remote cart clear failed, clearing local anyway",
				slog.String("session_id", e.sessionID),
				slog.String("user_id", e.userID),
				slog.String("error", err.Error()),
			)
		}
		e.events.CartCleared(ctx, e.userID)
	}

	e.clearLocked(ctx)
	return domain.Outcome{Kind: domain.OutcomeRemoved}
}

// clearLocked resets the in-memory cart and its snapshot and marks the
// cart generation as synced. Caller must hold mu.
func (e *Engine) clearLocked(ctx context.Context) {
	e.lines = nil
	e.generation++
	e.syncedGen = e.generation
	if err := e.snapshots.Save(ctx, e.sessionID, nil); err != nil {
		e.logger.WarnContext(ctx, "local snapshot save failed",
			slog.String("session_id", e.sessionID),
			slog.String("error", err.Error()),
		)
	}
}

// CompletePurchase hands the cart to the order-creation collaborator and
// empties both stores only after it succeeds. On failure the cart is left
// completely untouched so the donor can retry.
func (e *Engine) CompletePurchase(ctx context.Context) (string, error) {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.lines) == 0 {
		return "", apperrors.InvalidInput("cart is empty")
	}

	lines := e.lines.Clone()
	total := lines.Total()
	userID := e.userID

	orderID, err := e.orders.Create(ctx, userID, lines, total)
	if err != nil {
		return "", err
	}

	if userID != "" {
		if err := e.remote.Clear(ctx, userID); err != nil {
			e.logger.WarnContext(ctx, "remote cart clear after checkout failed",
				slog.String("session_id", e.sessionID),
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	e.clearLocked(ctx)

	e.events.CartCheckedOut(ctx, userID, orderID, lines, total)
	return orderID, nil
}

// SetUser runs the one-time reconciliation pass for a freshly acquired
// identity. A non-empty remote cart wins outright and replaces any guest
// cart; an empty remote cart inherits a non-empty guest cart via a one-time
// upload. Either way the local snapshot is rewritten so the two stores
// agree before the next mutation. Holding both locks for the duration keeps
// any queued push from racing ahead of the reconciliation.
func (e *Engine) SetUser(ctx context.Context, userID string) {
	if userID == "" {
		return
	}

	e.pushMu.Lock()
	defer e.pushMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.userID == userID {
		return
	}
	e.userID = userID

	synced := true
	remoteLines, err := e.remote.FetchActive(ctx, userID, e.ttl)
	switch {
	case err != nil:
		synced = false
		e.logger.WarnContext(ctx, "remote cart fetch failed, keeping local cart",
			slog.String("session_id", e.sessionID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	case len(remoteLines) > 0:
		e.lines = remoteLines
	case len(e.lines) > 0:
		if err := e.remote.ReplaceAll(ctx, userID, e.lines.Clone()); err != nil {
			synced = false
			e.logger.WarnContext(ctx, "guest cart upload failed",
				slog.String("session_id", e.sessionID),
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := e.snapshots.Save(ctx, e.sessionID, e.lines); err != nil {
		e.logger.WarnContext(ctx, "local snapshot save failed",
			slog.String("session_id", e.sessionID),
			slog.String("error", err.Error()),
		)
	}

	e.generation++
	if synced {
		e.syncedGen = e.generation
	}
}

// ClearUser drops the identity and the cart on logout. The remote cart is
// left untouched so the user can resume on their next login; the local
// snapshot is emptied because it may hold account data that must not leak
// into the next guest session on this device.
func (e *Engine) ClearUser(ctx context.Context) {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.userID == "" {
		return
	}
	e.userID = ""
	e.addedGroups = make(map[string]struct{})
	e.clearLocked(ctx)
}

// IsGroupFullyAdded reports whether the group was bulk-added in full during
// this session.
func (e *Engine) IsGroupFullyAdded(groupID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.addedGroups[groupID]
	return ok
}

// MarkGroupAsAdded records that the group's wishlist was bulk-added in
// full. Session-scoped only; never persisted.
func (e *Engine) MarkGroupAsAdded(groupID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addedGroups[groupID] = struct{}{}
}

// Flush performs any pending remote push synchronously. Used on shutdown
// and in tests that need a deterministic sync point.
func (e *Engine) Flush(ctx context.Context) error {
	return e.push(ctx)
}

// Close stops the push worker and flushes any pending push.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	e.wg.Wait()
	return e.push(ctx)
}
