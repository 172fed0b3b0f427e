package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fundacjapwm/paw-aid-cart/internal/event"
	"github.com/fundacjapwm/paw-aid-cart/internal/order"
	"github.com/fundacjapwm/paw-aid-cart/internal/remote"
	"github.com/fundacjapwm/paw-aid-cart/internal/snapshot"
)

type session struct {
	engine   *Engine
	lastSeen time.Time
}

// Manager holds one Engine per device session and evicts engines that have
// been idle longer than the configured window. Eviction only drops the
// in-memory engine; the session's snapshot stays in the local store, so a
// returning session resumes its cart.
type Manager struct {
	snapshots snapshot.Store
	remote    remote.Store
	orders    order.Creator
	events    event.Publisher
	logger    *slog.Logger
	cartTTL   time.Duration
	idleTTL   time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	done chan struct{}
	wg   sync.WaitGroup
}

// NewManager creates the session registry and starts the idle sweeper.
func NewManager(
	snapshots snapshot.Store,
	remoteStore remote.Store,
	orders order.Creator,
	events event.Publisher,
	cartTTL, idleTTL time.Duration,
	logger *slog.Logger,
) *Manager {
	m := &Manager{
		snapshots: snapshots,
		remote:    remoteStore,
		orders:    orders,
		events:    events,
		logger:    logger,
		cartTTL:   cartTTL,
		idleTTL:   idleTTL,
		now:       time.Now,
		sessions:  make(map[string]*session),
		done:      make(chan struct{}),
	}

	m.wg.Add(1)
	go m.sweepLoop()

	return m
}

// Get returns the engine for the session, creating it from the session's
// snapshot on first sight, and refreshes the session's idle clock.
func (m *Manager) Get(ctx context.Context, sessionID string) *Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		s = &session{
			engine: New(ctx, sessionID, m.snapshots, m.remote, m.orders, m.events, m.cartTTL, m.logger),
		}
		m.sessions[sessionID] = s
		activeSessions.Set(float64(len(m.sessions)))
	}
	s.lastSeen = m.now()
	return s.engine
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	interval := m.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep(context.Background())
		}
	}
}

// sweep closes and evicts engines idle past the window.
func (m *Manager) sweep(ctx context.Context) {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var evicted []*Engine
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			evicted = append(evicted, s.engine)
			delete(m.sessions, id)
		}
	}
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, e := range evicted {
		if err := e.Close(ctx); err != nil {
			m.logger.WarnContext(ctx, "flush on session eviction failed",
				slog.String("session_id", e.sessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(evicted) > 0 {
		m.logger.InfoContext(ctx, "evicted idle cart sessions",
			slog.Int("count", len(evicted)),
		)
	}
}

// Close stops the sweeper and shuts down every engine, flushing pending
// pushes.
func (m *Manager) Close(ctx context.Context) error {
	close(m.done)
	m.wg.Wait()

	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.sessions))
	for _, s := range m.sessions {
		engines = append(engines, s.engine)
	}
	m.sessions = make(map[string]*session)
	activeSessions.Set(0)
	m.mu.Unlock()

	var lastErr error
	for _, e := range engines {
		if err := e.Close(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
