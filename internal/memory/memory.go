// Package memory holds per-session conversation state. A History is an
// append-only record of the turns exchanged within one session; a Registry
// maps session IDs to their histories so every surface (terminal, HTTP)
// addresses memory explicitly instead of through process-global state.
//
// Histories live only as long as the process: nothing here persists across
// restarts. Durable transcripts are the archive package's concern.
package memory

import (
	"sync"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks a turn authored by the person asking questions.
	RoleUser Role = "user"

	// RoleAssistant marks a turn authored by the bot.
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a conversation. Turns are immutable once appended.
type Turn struct {
	// Role is the author of the turn.
	Role Role

	// Content is the full text of the turn.
	Content string

	// CreatedAt is when the turn was recorded.
	CreatedAt time.Time
}

// History is the append-only, insertion-ordered record of one session's
// conversation. It is safe for concurrent use. A History starts empty and is
// never truncated — windowing for model context happens downstream, at the
// generation boundary.
type History struct {
	mu    sync.RWMutex
	turns []Turn

	// now is swappable for tests.
	now func() time.Time
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{now: time.Now}
}

// AppendUser records a user turn.
func (h *History) AppendUser(content string) {
	h.append(RoleUser, content)
}

// AppendAssistant records an assistant turn.
func (h *History) AppendAssistant(content string) {
	h.append(RoleAssistant, content)
}

func (h *History) append(role Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, Turn{
		Role:      role,
		Content:   content,
		CreatedAt: h.now().UTC(),
	})
}

// All returns a snapshot copy of the turns in insertion order. Appends made
// after All returns never mutate a previously returned snapshot.
func (h *History) All() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of recorded turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Registry maps session IDs to their histories. Session identity is always
// explicit: there is no default or singleton history.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*History
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*History)}
}

// Get returns the History for sessionID, creating an empty one on first use.
func (r *Registry) Get(sessionID string) *History {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[sessionID]
	if !ok {
		h = NewHistory()
		r.sessions[sessionID] = h
	}
	return h
}

// Lookup returns the History for sessionID without creating one.
func (r *Registry) Lookup(sessionID string) (*History, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[sessionID]
	return h, ok
}

// Remove destroys the session's history. Removing an unknown ID is a no-op.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// IDs returns the IDs of all live sessions, in no particular order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
