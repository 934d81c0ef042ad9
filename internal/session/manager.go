// Package session provides in-memory conversation session tracking with
// idle expiry.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datapilot/analyst/internal/domain"
)

// Message is one conversation turn stored on a session.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the conversational state for one user interaction.
type Session struct {
	ID           string             `json:"session_id"`
	UserID       string             `json:"user_id,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	LastActivity time.Time          `json:"last_activity"`
	Messages     []Message          `json:"messages"`
	SchemaInfo   *domain.SchemaInfo `json:"schema_info,omitempty"`
	Preferences  map[string]any     `json:"preferences"`
	Variables    map[string]any     `json:"variables"`
}

// Manager tracks sessions in memory. Safe for concurrent use.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
}

// NewManager creates a session manager. Sessions idle longer than
// idleTimeout are removed by CleanupExpired.
func NewManager(idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
	}
}

// Create registers a new session and returns its ID. An empty sessionID
// gets a generated UUID.
func (m *Manager) Create(sessionID, userID string) string {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = &Session{
		ID:           sessionID,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		Preferences:  map[string]any{},
		Variables:    map[string]any{},
	}
	return sessionID
}

// Get returns a snapshot of the session and refreshes its activity
// timestamp. The second return is false for an unknown session.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	s.LastActivity = time.Now().UTC()
	return snapshot(s), true
}

// Exists reports whether the session is known, without touching it.
func (m *Manager) Exists(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok
}

// UpdateSchemaInfo caches the warehouse schema on the session.
func (m *Manager) UpdateSchemaInfo(sessionID string, schema *domain.SchemaInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	s.SchemaInfo = schema
	s.LastActivity = time.Now().UTC()
	return true
}

// SchemaInfo returns the cached schema for the session, if any.
func (m *Manager) SchemaInfo(sessionID string) (*domain.SchemaInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.SchemaInfo == nil {
		return nil, false
	}
	return s.SchemaInfo, true
}

// UpdatePreferences merges the given preferences into the session.
func (m *Manager) UpdatePreferences(sessionID string, prefs map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	for k, v := range prefs {
		s.Preferences[k] = v
	}
	s.LastActivity = time.Now().UTC()
	return true
}

// SetVariable stores a session-scoped variable.
func (m *Manager) SetVariable(sessionID, key string, value any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	s.Variables[key] = value
	s.LastActivity = time.Now().UTC()
	return true
}

// GetVariable returns a session-scoped variable. Unknown session or key
// returns (nil, false).
func (m *Manager) GetVariable(sessionID, key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	v, ok := s.Variables[key]
	return v, ok
}

// AddMessage appends a conversation turn to the session.
func (m *Manager) AddMessage(sessionID, role, content string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	s.LastActivity = time.Now().UTC()
	return true
}

// History returns the most recent limit messages, oldest first. A limit
// of zero or less returns all messages.
func (m *Manager) History(sessionID string, limit int) ([]Message, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	msgs := s.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, true
}

// Delete removes the session. Returns false for an unknown session.
func (m *Manager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	return true
}

// CleanupExpired removes sessions idle longer than the configured
// timeout and returns how many were removed.
func (m *Manager) CleanupExpired() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := time.Now().UTC().Add(-m.idleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.LastActivity.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Stats returns aggregate counters over the live sessions. A session
// counts as active when it saw activity within the last hour.
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	activeCutoff := time.Now().UTC().Add(-time.Hour)
	totalMessages := 0
	activeSessions := 0
	for _, s := range m.sessions {
		totalMessages += len(s.Messages)
		if s.LastActivity.After(activeCutoff) {
			activeSessions++
		}
	}
	return map[string]any{
		"total_sessions":       len(m.sessions),
		"active_sessions":      activeSessions,
		"total_messages":       totalMessages,
		"idle_timeout_seconds": m.idleTimeout.Seconds(),
	}
}

// RunCleanupLoop sweeps expired sessions on the given interval until
// the context is cancelled.
func (m *Manager) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupExpired(); n > 0 {
				log.Printf("INFO: cleaned up %d expired sessions", n)
			}
		}
	}
}

func snapshot(s *Session) *Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	out.Preferences = make(map[string]any, len(s.Preferences))
	for k, v := range s.Preferences {
		out.Preferences[k] = v
	}
	out.Variables = make(map[string]any, len(s.Variables))
	for k, v := range s.Variables {
		out.Variables[k] = v
	}
	return &out
}
