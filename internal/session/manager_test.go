package session

import (
	"sync"
	"testing"
	"time"

	"github.com/datapilot/analyst/internal/domain"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager(time.Hour)
	id := m.Create("", "u1")
	if id == "" {
		t.Fatalf("expected generated session ID")
	}

	s, ok := m.Get(id)
	if !ok {
		t.Fatalf("session not found")
	}
	if s.UserID != "u1" {
		t.Fatalf("unexpected user: %s", s.UserID)
	}

	if _, ok := m.Get("unknown"); ok {
		t.Fatalf("unknown session must not be found")
	}
}

func TestCreateWithExplicitID(t *testing.T) {
	m := NewManager(time.Hour)
	id := m.Create("explicit", "u1")
	if id != "explicit" {
		t.Fatalf("expected explicit ID, got %s", id)
	}
}

func TestSessionIsolation(t *testing.T) {
	m := NewManager(time.Hour)
	a := m.Create("", "u1")
	b := m.Create("", "u2")

	m.SetVariable(a, "key", "value-a")

	if _, ok := m.GetVariable(b, "key"); ok {
		t.Fatalf("variable leaked across sessions")
	}
	v, ok := m.GetVariable(a, "key")
	if !ok || v != "value-a" {
		t.Fatalf("unexpected variable: %v", v)
	}
}

func TestUnknownSessionOperations(t *testing.T) {
	m := NewManager(time.Hour)

	if m.AddMessage("missing", "user", "hi") {
		t.Fatalf("AddMessage on unknown session must return false")
	}
	if m.SetVariable("missing", "k", "v") {
		t.Fatalf("SetVariable on unknown session must return false")
	}
	if m.UpdateSchemaInfo("missing", &domain.SchemaInfo{}) {
		t.Fatalf("UpdateSchemaInfo on unknown session must return false")
	}
	if m.Delete("missing") {
		t.Fatalf("Delete on unknown session must return false")
	}
	if _, ok := m.History("missing", 0); ok {
		t.Fatalf("History on unknown session must return false")
	}
}

func TestHistoryTailLimit(t *testing.T) {
	m := NewManager(time.Hour)
	id := m.Create("", "u1")

	m.AddMessage(id, "user", "one")
	m.AddMessage(id, "assistant", "two")
	m.AddMessage(id, "user", "three")

	msgs, ok := m.History(id, 2)
	if !ok {
		t.Fatalf("session not found")
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "two" || msgs[1].Content != "three" {
		t.Fatalf("expected most recent messages oldest first, got %+v", msgs)
	}

	all, _ := m.History(id, 0)
	if len(all) != 3 {
		t.Fatalf("limit 0 should return all messages, got %d", len(all))
	}
}

func TestSchemaCache(t *testing.T) {
	m := NewManager(time.Hour)
	id := m.Create("", "u1")

	if _, ok := m.SchemaInfo(id); ok {
		t.Fatalf("expected no schema before caching")
	}

	schema := &domain.SchemaInfo{AvailableTables: []string{"orders"}}
	if !m.UpdateSchemaInfo(id, schema) {
		t.Fatalf("UpdateSchemaInfo failed")
	}

	got, ok := m.SchemaInfo(id)
	if !ok || len(got.AvailableTables) != 1 {
		t.Fatalf("unexpected schema: %+v", got)
	}
}

func TestCleanupExpired(t *testing.T) {
	m := NewManager(50 * time.Millisecond)
	stale := m.Create("", "u1")
	m.Create("", "u2")

	// Age the first session past the idle timeout.
	m.mu.Lock()
	m.sessions[stale].LastActivity = time.Now().UTC().Add(-time.Minute)
	m.mu.Unlock()

	if removed := m.CleanupExpired(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if m.Exists(stale) {
		t.Fatalf("stale session should be gone")
	}
}

func TestGetRefreshesActivity(t *testing.T) {
	m := NewManager(time.Hour)
	id := m.Create("", "u1")

	m.mu.Lock()
	m.sessions[id].LastActivity = time.Now().UTC().Add(-time.Minute)
	m.mu.Unlock()

	before := time.Now().UTC().Add(-time.Second)
	m.Get(id)

	m.mu.RLock()
	activity := m.sessions[id].LastActivity
	m.mu.RUnlock()
	if activity.Before(before) {
		t.Fatalf("Get did not refresh activity")
	}
}

func TestConcurrentAddMessage(t *testing.T) {
	m := NewManager(time.Hour)
	id := m.Create("", "u1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddMessage(id, "user", "hello")
		}()
	}
	wg.Wait()

	msgs, _ := m.History(id, 0)
	if len(msgs) != 50 {
		t.Fatalf("expected 50 messages, got %d", len(msgs))
	}
}

func TestStats(t *testing.T) {
	m := NewManager(24 * time.Hour)
	id := m.Create("", "u1")
	m.AddMessage(id, "user", "hi")
	stale := m.Create("", "u2")

	// The second session is live but has been quiet for over an hour.
	m.mu.Lock()
	m.sessions[stale].LastActivity = time.Now().UTC().Add(-2 * time.Hour)
	m.mu.Unlock()

	stats := m.Stats()
	if stats["total_sessions"] != 2 {
		t.Fatalf("unexpected total_sessions: %v", stats["total_sessions"])
	}
	if stats["active_sessions"] != 1 {
		t.Fatalf("unexpected active_sessions: %v", stats["active_sessions"])
	}
	if stats["total_messages"] != 1 {
		t.Fatalf("unexpected total_messages: %v", stats["total_messages"])
	}
}

func TestSnapshotIsolation(t *testing.T) {
	m := NewManager(time.Hour)
	id := m.Create("", "u1")
	m.AddMessage(id, "user", "hi")

	snap, _ := m.Get(id)
	snap.Messages[0].Content = "mutated"
	snap.Preferences["theme"] = "dark"

	msgs, _ := m.History(id, 0)
	if msgs[0].Content != "hi" {
		t.Fatalf("snapshot mutation leaked into the manager")
	}
	s, _ := m.Get(id)
	if _, ok := s.Preferences["theme"]; ok {
		t.Fatalf("preference mutation leaked into the manager")
	}
}
