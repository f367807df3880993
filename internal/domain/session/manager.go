package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/serenata/internal/domain/playlist"
)

// Manager opens and tracks sessions.
type Manager struct {
	provider playlist.Provider
	defaults Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. defaults supplies the clock and RNG; the
// widget factory and listener are given per session.
func NewManager(provider playlist.Provider, defaults Options) *Manager {
	return &Manager{
		provider: provider,
		defaults: defaults,
		sessions: make(map[string]*Session),
	}
}

// Open loads the record for slug and starts a new session.
func (m *Manager) Open(ctx context.Context, slug string, opts Options) (*Session, error) {
	rec, err := m.provider.Get(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to open session for %q: %w", slug, err)
	}

	if opts.Clock == nil {
		opts.Clock = m.defaults.Clock
	}
	if opts.Intn == nil {
		opts.Intn = m.defaults.Intn
	}
	if opts.NewWidget == nil {
		opts.NewWidget = m.defaults.NewWidget
	}

	s := New(slug, rec, opts)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.Start()
	return s, nil
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close ends a session. Unknown ids are ignored.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := lo.Values(m.sessions)
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	if len(all) > 0 {
		log.Info().Int("sessions", len(all)).Msg("Closed all sessions")
	}
}
