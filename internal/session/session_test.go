package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/skcet-ai/skcetbot/internal/archive"
	"github.com/skcet-ai/skcetbot/internal/memory"
	"github.com/skcet-ai/skcetbot/internal/rag"
)

// fakeRunner streams canned tokens, optionally failing before or during the
// stream, and records how it was invoked.
type fakeRunner struct {
	tokens     []string
	midErr     error // delivered after tokens, simulating a dropped stream
	runErr     error // pre-stream failure
	calls      int
	gotQuery   string
	gotHistory []memory.Turn
}

func (f *fakeRunner) Run(_ context.Context, query string, history []memory.Turn) (*schema.StreamReader[string], error) {
	f.calls++
	f.gotQuery = query
	f.gotHistory = history
	if f.runErr != nil {
		return nil, f.runErr
	}
	sr, sw := schema.Pipe[string](len(f.tokens) + 1)
	go func() {
		defer sw.Close()
		for _, tok := range f.tokens {
			sw.Send(tok, nil)
		}
		if f.midErr != nil {
			sw.Send("", f.midErr)
		}
	}()
	return sr, nil
}

// drainAll reads the stream to completion, returning the concatenated text
// and the terminal error (nil for a clean EOF).
func drainAll(t *testing.T, s *schema.StreamReader[string]) (string, error) {
	t.Helper()
	defer s.Close()
	var b strings.Builder
	for {
		tok, err := s.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(tok)
	}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func Test_Ask_CommitsDrainedAnswer(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{tokens: []string{"The fee ", "is paid ", "online."}}
	s := New("s1", memory.NewHistory(), runner, nil)

	stream, err := s.Ask(context.Background(), "how do I pay fees?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	got, streamErr := drainAll(t, stream)
	if streamErr != nil {
		t.Fatalf("stream error: %v", streamErr)
	}
	if got != "The fee is paid online." {
		t.Errorf("streamed = %q", got)
	}

	waitFor(t, func() bool { return s.history.Len() == 2 }, "assistant turn never committed")
	turns := s.History()
	if turns[0].Role != memory.RoleUser || turns[0].Content != "how do I pay fees?" {
		t.Errorf("turn[0] = %+v", turns[0])
	}
	if turns[1].Role != memory.RoleAssistant || turns[1].Content != got {
		t.Errorf("committed turn %q != streamed text %q", turns[1].Content, got)
	}
}

func Test_Ask_BlankQueryIsNoOp(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{tokens: []string{"never"}}
	s := New("s1", memory.NewHistory(), runner, nil)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := s.Ask(context.Background(), q)
		if !errors.Is(err, ErrBlankQuery) {
			t.Errorf("Ask(%q): want ErrBlankQuery, got %v", q, err)
		}
	}
	if runner.calls != 0 {
		t.Errorf("pipeline ran %d times for blank queries", runner.calls)
	}
	if s.history.Len() != 0 {
		t.Errorf("blank query mutated history: %d turns", s.history.Len())
	}
}

func Test_Ask_PreStreamFailureKeepsUserTurnOnly(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{runErr: &rag.StageError{Stage: rag.StageRetrieving, Err: rag.ErrRetrievalUnavailable}}
	s := New("s1", memory.NewHistory(), runner, nil)

	_, err := s.Ask(context.Background(), "library hours?")
	if !errors.Is(err, rag.ErrRetrievalUnavailable) {
		t.Fatalf("want retrieval failure, got %v", err)
	}

	turns := s.History()
	if len(turns) != 1 || turns[0].Role != memory.RoleUser {
		t.Fatalf("want only the user turn, got %+v", turns)
	}

	// The session must accept the next question (lock released on failure).
	runner.runErr = nil
	runner.tokens = []string{"8am to 8pm"}
	stream, err := s.Ask(context.Background(), "library hours again?")
	if err != nil {
		t.Fatalf("Ask after failure: %v", err)
	}
	drainAll(t, stream)
}

func Test_Ask_InterruptionCommitsPartial(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{
		tokens: []string{"The campus is in "},
		midErr: errors.New("connection reset"),
	}
	s := New("s1", memory.NewHistory(), runner, nil)

	stream, err := s.Ask(context.Background(), "where is the campus?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	got, streamErr := drainAll(t, stream)
	if !errors.Is(streamErr, rag.ErrGenerationInterrupted) {
		t.Fatalf("want ErrGenerationInterrupted, got %v", streamErr)
	}
	if got != "The campus is in " {
		t.Errorf("partial = %q", got)
	}

	waitFor(t, func() bool { return s.history.Len() == 2 }, "partial answer never committed")
	turns := s.History()
	if turns[1].Role != memory.RoleAssistant || turns[1].Content != got {
		t.Errorf("committed partial %q, want %q", turns[1].Content, got)
	}
}

func Test_Ask_EarlyCloseCommitsForwardedText(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{tokens: []string{"one ", "two ", "three ", "four ", "five ", "six ", "seven ", "eight ", "nine ", "ten "}}
	s := New("s1", memory.NewHistory(), runner, nil)

	stream, err := s.Ask(context.Background(), "count for me")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if _, err := stream.Recv(); err != nil {
		t.Fatalf("first Recv: %v", err)
	}
	stream.Close()

	waitFor(t, func() bool { return s.history.Len() == 2 }, "early close never committed")
	turns := s.History()
	if turns[1].Role != memory.RoleAssistant || turns[1].Content == "" {
		t.Errorf("want non-empty partial assistant turn, got %+v", turns[1])
	}
}

func Test_Ask_HistoryExcludesCurrentQuestion(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{tokens: []string{"answer one"}}
	s := New("s1", memory.NewHistory(), runner, nil)

	stream, err := s.Ask(context.Background(), "first?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	drainAll(t, stream)
	waitFor(t, func() bool { return s.history.Len() == 2 }, "first answer never committed")

	runner.tokens = []string{"answer two"}
	stream, err = s.Ask(context.Background(), "second?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	drainAll(t, stream)

	if runner.gotQuery != "second?" {
		t.Errorf("query = %q", runner.gotQuery)
	}
	if len(runner.gotHistory) != 2 {
		t.Fatalf("history passed to pipeline has %d turns, want 2 (prior exchange only)", len(runner.gotHistory))
	}
	if runner.gotHistory[0].Content != "first?" || runner.gotHistory[1].Content != "answer one" {
		t.Errorf("history = %+v", runner.gotHistory)
	}
}

func Test_Manager_SessionsAreIsolated(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{tokens: []string{"hi"}}
	m := NewManager(runner, memory.NewRegistry(), nil)

	stream, err := m.Ask(context.Background(), "alpha", "hello?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	drainAll(t, stream)
	waitFor(t, func() bool { return len(m.History("alpha")) == 2 }, "alpha never committed")

	if got := m.History("beta"); got != nil {
		t.Errorf("unknown session has history: %+v", got)
	}
	if m.Session("alpha") != m.Session("alpha") {
		t.Error("same ID resolved to different sessions")
	}
}

func Test_Manager_EndDestroysHistory(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{tokens: []string{"hi"}}
	m := NewManager(runner, memory.NewRegistry(), nil)

	stream, _ := m.Ask(context.Background(), "gone", "hello?")
	drainAll(t, stream)
	waitFor(t, func() bool { return len(m.History("gone")) == 2 }, "never committed")

	m.End("gone")
	if got := m.History("gone"); got != nil {
		t.Errorf("history survived End: %+v", got)
	}
	if got := m.Session("gone").History(); len(got) != 0 {
		t.Errorf("recreated session inherited %d turns", len(got))
	}
}

func Test_Session_ArchivesCommittedTurns(t *testing.T) {
	t.Parallel()
	arch, err := archive.Open(":memory:")
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = arch.Close() })

	runner := &fakeRunner{tokens: []string{"archived answer"}}
	s := New("arch-session", memory.NewHistory(), runner, arch)

	stream, err := s.Ask(context.Background(), "archived question?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	drainAll(t, stream)
	waitFor(t, func() bool {
		turns, err := arch.Transcript(context.Background(), "arch-session", 10)
		return err == nil && len(turns) == 2
	}, "turns never reached the archive")

	turns, _ := arch.Transcript(context.Background(), "arch-session", 10)
	if turns[0].Content != "archived question?" || turns[1].Content != "archived answer" {
		t.Errorf("archived transcript = %+v", turns)
	}
}
