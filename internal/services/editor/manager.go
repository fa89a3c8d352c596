package editor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ManagerOptions struct {
	SessionTTL      time.Duration
	MaxZoom         float64
	MaxSourcePixels int64
	Tracker         CropTracker
	Now             func() time.Time
}

// Manager keeps the open editing sessions and expires abandoned ones.
type Manager struct {
	exporter Exporter
	opts     ManagerOptions
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(exporter Exporter, opts ManagerOptions, logger *zap.Logger) *Manager {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.Tracker == nil {
		opts.Tracker = SquareCropTracker{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		exporter: exporter,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session owned by owner.
func (m *Manager) Create(owner string) *Session {
	id := uuid.New().String()
	s := NewSession(id, m.exporter, SessionOptions{
		Owner:           owner,
		Tracker:         m.opts.Tracker,
		MaxZoom:         m.opts.MaxZoom,
		MaxSourcePixels: m.opts.MaxSourcePixels,
		Logger:          m.logger,
		Now:             m.opts.Now,
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	return s
}

// Get returns the session with id if owner holds it. Sessions of other users
// are reported as not found.
func (m *Manager) Get(id, owner string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok || s.Owner() != owner {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close cancels the session and forgets it.
func (m *Manager) Close(ctx context.Context, id, owner string) error {
	s, err := m.Get(id, owner)
	if err != nil {
		return err
	}
	if err := s.Cancel(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep cancels and removes sessions idle for longer than the TTL. Sessions
// with a save in flight are skipped.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.opts.Now().Add(-m.opts.SessionTTL)

	m.mu.RLock()
	var stale []*Session
	for _, s := range m.sessions {
		if s.IdleSince().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, s := range stale {
		if err := s.Cancel(ctx); err != nil {
			continue
		}
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
		removed++
	}

	if removed > 0 {
		m.logger.Info("Expired editing sessions", zap.Int("count", removed))
	}
	return removed
}

// StartJanitor sweeps on every tick until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Session janitor stopping")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Shutdown cancels every session, releasing their sources.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Cancel(ctx); err != nil {
			m.logger.Warn("Session still saving at shutdown", zap.String("session_id", s.ID()))
		}
	}
}
