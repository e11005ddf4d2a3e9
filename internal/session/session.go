// Package session enforces the conversation contract around the answer
// pipeline: blank questions are rejected before anything mutates, the user
// turn is recorded before generation starts, one generation runs at a time
// per session, and the assistant turn is committed from exactly what was
// streamed — including the partial text of an interrupted answer, so replay
// always matches what the person actually saw.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/skcet-ai/skcetbot/internal/archive"
	"github.com/skcet-ai/skcetbot/internal/logging"
	"github.com/skcet-ai/skcetbot/internal/memory"
	"github.com/skcet-ai/skcetbot/internal/rag"
)

// ErrBlankQuery reports that a query was empty or whitespace-only. Blank
// queries are a no-op: no turn is recorded and the pipeline never runs.
var ErrBlankQuery = errors.New("session: blank query")

// Runner runs the answer pipeline for one question. *rag.Pipeline satisfies
// this; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, query string, history []memory.Turn) (*schema.StreamReader[string], error)
}

// Session binds one conversation's memory to the pipeline. All methods are
// safe for concurrent use; Ask serialises generations so a session never has
// two answers in flight.
type Session struct {
	// id is the explicit session identity, used for archival.
	id string

	// history is this session's live conversation memory.
	history *memory.History

	// runner produces the token stream for each question.
	runner Runner

	// arch, when non-nil, receives a best-effort copy of every committed turn.
	arch archive.TranscriptArchive

	// mu is held from the start of Ask until the returned stream finishes
	// (drained, failed, or closed), serialising generations per session.
	mu sync.Mutex
}

// New constructs a Session. arch may be nil to disable transcript archival.
func New(id string, history *memory.History, runner Runner, arch archive.TranscriptArchive) *Session {
	return &Session{id: id, history: history, runner: runner, arch: arch}
}

// ID returns the session's identity.
func (s *Session) ID() string { return s.id }

// History returns a snapshot of the session's conversation so far.
func (s *Session) History() []memory.Turn {
	return s.history.All()
}

// Greet records greeting as the opening assistant turn, but only when the
// session has no history yet. Returns whether the greeting was recorded —
// false means the caller should replay the existing turns instead.
func (s *Session) Greet(ctx context.Context, greeting string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history.Len() > 0 {
		return false
	}
	s.history.AppendAssistant(greeting)
	s.archiveTurn(ctx, memory.RoleAssistant, greeting)
	return true
}

// Ask answers one question. The user turn is appended before the pipeline
// runs, so a later failure still leaves the question on record. The returned
// stream delivers tokens as the model produces them; once it ends — fully
// drained, failed mid-stream, or closed early — the text streamed so far is
// committed as the assistant turn and the session accepts the next question.
//
// The caller must drain or Close the stream; until then further Asks on this
// session block.
func (s *Session) Ask(ctx context.Context, query string) (*schema.StreamReader[string], error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrBlankQuery
	}

	s.mu.Lock()

	s.history.AppendUser(query)
	s.archiveTurn(ctx, memory.RoleUser, query)

	// The prior turns go to generation; the question itself reaches the
	// model inside the rendered prompt, so it is excluded here to avoid
	// being presented twice.
	snapshot := s.history.All()
	prior := snapshot[:len(snapshot)-1]

	src, err := s.runner.Run(ctx, query, prior)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	return s.commitOnFinish(ctx, src), nil
}

// commitOnFinish forwards tokens from src while buffering them, and commits
// the buffered text as the assistant turn when the stream ends for any
// reason. The session lock is released exactly once, at commit.
func (s *Session) commitOnFinish(ctx context.Context, src *schema.StreamReader[string]) *schema.StreamReader[string] {
	log := logging.FromContext(ctx)
	sr, sw := schema.Pipe[string](8)

	go func() {
		defer src.Close()

		var answer strings.Builder
		var once sync.Once
		finish := func() {
			once.Do(func() {
				s.commit(log, answer.String())
				s.mu.Unlock()
			})
		}
		defer finish()

		for {
			tok, err := src.Recv()
			if err == io.EOF {
				// Commit before closing so a consumer that sees EOF also
				// sees the assistant turn in history.
				finish()
				sw.Close()
				return
			}
			if err != nil {
				// Something already streamed: classify as an interruption
				// and keep the partial text.
				finish()
				sw.Send("", fmt.Errorf("%w: %w", rag.ErrGenerationInterrupted, err))
				sw.Close()
				return
			}
			answer.WriteString(tok)
			if closed := sw.Send(tok, nil); closed {
				// Consumer closed early; the text forwarded so far still
				// counts as what they saw.
				return
			}
		}
	}()

	return sr
}

// commit records the assistant turn. An answer that never produced text is
// not recorded — the failed exchange leaves only the user turn behind.
func (s *Session) commit(log *slog.Logger, answer string) {
	if answer == "" {
		return
	}
	s.history.AppendAssistant(answer)
	s.archiveWith(log, memory.RoleAssistant, answer)
}

// archiveTurn copies a turn to the transcript archive, best-effort.
func (s *Session) archiveTurn(ctx context.Context, role memory.Role, content string) {
	s.archiveWith(logging.FromContext(ctx), role, content)
}

func (s *Session) archiveWith(log *slog.Logger, role memory.Role, content string) {
	if s.arch == nil {
		return
	}
	// Archive writes outlive request cancellation: a turn the user saw
	// should still reach the transcript.
	if err := s.arch.Append(context.Background(), s.id, role, content); err != nil {
		log.Warn("session: transcript archive write failed",
			slog.String("session", s.id),
			slog.String("error", err.Error()),
		)
	}
}

// Manager is the explicit registry of live sessions. Each surface resolves
// its session by ID; nothing here is process-global.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	registry *memory.Registry
	runner   Runner
	arch     archive.TranscriptArchive
}

// NewManager constructs a Manager. arch may be nil to disable archival.
func NewManager(runner Runner, registry *memory.Registry, arch archive.TranscriptArchive) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		runner:   runner,
		arch:     arch,
	}
}

// Session returns the Session for the given ID, creating it (with a fresh
// empty history) on first use.
func (m *Manager) Session(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s
	}
	s := New(sessionID, m.registry.Get(sessionID), m.runner, m.arch)
	m.sessions[sessionID] = s
	return s
}

// Ask resolves the session and answers one question on it.
func (m *Manager) Ask(ctx context.Context, sessionID, query string) (*schema.StreamReader[string], error) {
	return m.Session(sessionID).Ask(ctx, query)
}

// History returns the conversation snapshot for a session, or nil when the
// session does not exist yet.
func (m *Manager) History(sessionID string) []memory.Turn {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.History()
}

// End destroys a session and its history. Ending an unknown session is a
// no-op. Archived transcripts are unaffected.
func (m *Manager) End(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	m.registry.Remove(sessionID)
}
