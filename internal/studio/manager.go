package studio

import (
	"fmt"
	"sort"
	"sync"
)

// Manager keeps the open sessions. Sessions live in memory only.
type Manager struct {
	gen       Generator
	opts      Options
	listeners []Listener

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(gen Generator, opts Options) *Manager {
	return &Manager{
		gen:      gen,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// OnEvent attaches l to every session opened afterwards.
func (m *Manager) OnEvent(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Open creates a session under id seeded with lyrics and the writer's
// profile.
func (m *Manager) Open(id, lyrics string, profile Profile) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, fmt.Errorf("session %s already open", id)
	}

	s := NewSession(id, m.gen, m.opts, NewState(lyrics, profile.RequestContext(), profile.AutoSuggest))
	for _, l := range m.listeners {
		s.Subscribe(l)
	}
	m.sessions[id] = s
	return s, nil
}

// GetOrOpen returns the session under id, opening an empty one if needed.
func (m *Manager) GetOrOpen(id string, profile Profile) *Session {
	if s, ok := m.Get(id); ok {
		return s
	}
	s, err := m.Open(id, "", profile)
	if err != nil {
		// lost a race with another Open
		s, _ = m.Get(id)
	}
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	return s, ok
}

// Close closes and forgets the session under id.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// IDs returns the open session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
