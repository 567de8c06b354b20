package editor

import (
	"sync"
	"time"

	"clipsync/logger"

	"github.com/google/uuid"
)

// Session bundles one editor instance: a registry, its controller, and
// the render sink the client attached. Sessions hold no persistent state;
// closing one releases everything it allocated.
type Session struct {
	ID         string
	Registry   *Registry
	Controller *Controller
	CreatedAt  time.Time

	cleanup   func()
	closeOnce sync.Once
}

// Close tears the session down: the redraw loop stops, every transport is
// released, and the cleanup hook (stored clip removal) runs. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Controller.Close()
		s.Registry.Close()
		if s.cleanup != nil {
			s.cleanup()
		}
		logger.Info("session closed", logger.String("sessionId", s.ID))
	})
}

// Manager tracks live editor sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create builds a new session. build, when non-nil, receives the
// generated session ID and returns the render sink plus a cleanup hook
// that runs once on close; callers hook stored-clip removal there.
func (m *Manager) Create(build func(id string) (RenderSink, func())) *Session {
	id := uuid.NewString()

	var sink RenderSink
	var cleanup func()
	if build != nil {
		sink, cleanup = build(id)
	}

	registry := NewRegistry()
	session := &Session{
		ID:         id,
		Registry:   registry,
		Controller: NewController(registry, sink),
		CreatedAt:  time.Now(),
		cleanup:    cleanup,
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	logger.Info("session created", logger.String("sessionId", session.ID))
	return session
}

// Get looks a session up by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

// Close removes and closes one session. Returns false when the ID is
// unknown.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	session.Close()
	return true
}

// CloseAll closes every live session. Used on server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
