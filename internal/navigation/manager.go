package navigation

import (
	"sync"
	"time"

	"github.com/mozilla/clouseau/internal/common"
	"github.com/mozilla/clouseau/pkg/logger"
)

// Manager tracks live sessions by id and evicts the ones left idle
type Manager struct {
	loader Loader
	ttl    time.Duration
	opts   []SessionOption
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. A non-positive ttl disables eviction.
// opts apply to every session it creates.
func NewManager(loader Loader, ttl time.Duration, opts ...SessionOption) *Manager {
	return &Manager{
		loader:   loader,
		ttl:      ttl,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the live session for id. The session is touched before m.mu
// is released so a concurrent Sweep cannot evict it.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Create starts a session under id, replacing any previous one
func (m *Manager) Create(id string) *Session {
	m.Sweep()

	s := NewSession(id, m.loader, m.opts...)
	s.touch(m.now())
	m.mu.Lock()
	prev := m.sessions[id]
	m.sessions[id] = s
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return s
}

// Sweep closes sessions not seen within the ttl and returns how many
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		logger.GetLogger().Debug().Int("count", len(expired)).Msg("evicted idle sessions")
	}
	return len(expired)
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	activeSessions.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
