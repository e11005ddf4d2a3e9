package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skcet-ai/skcetbot/internal/rag"
)

// fakeEmbedder returns a one-dimensional embedding per text.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

// fakeStore records upserted passages and embeddings.
type fakeStore struct {
	passages   []rag.Passage
	embeddings [][]float32
	err        error
}

func (f *fakeStore) Upsert(_ context.Context, passages []rag.Passage, embeddings [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.passages = append(f.passages, passages...)
	f.embeddings = append(f.embeddings, embeddings...)
	return nil
}

func (f *fakeStore) Search(context.Context, []float32, int, float32) ([]rag.Passage, error) {
	return nil, nil
}
func (f *fakeStore) Delete(context.Context, []string) error { return nil }
func (f *fakeStore) Close() error                           { return nil }

func TestIngest_FetchChunkEmbedUpsert(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("a", 25)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "skcetbot/") {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	store := &fakeStore{}
	p, err := NewPipeline(&fakeEmbedder{}, store, &Config{ChunkSize: 10, ChunkOverlap: 2})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	var progress []string
	src := Source{URL: srv.URL, Category: "admissions", DocType: "page"}
	if err := p.Ingest(context.Background(), []Source{src}, func(msg string) {
		progress = append(progress, msg)
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// 25 chars, size 10, overlap 2 → chunks [0:10] [8:18] [16:25].
	if len(store.passages) != 3 {
		t.Fatalf("want 3 chunks, got %d", len(store.passages))
	}
	if len(store.embeddings) != len(store.passages) {
		t.Fatalf("embeddings not parallel: %d vs %d", len(store.embeddings), len(store.passages))
	}
	first := store.passages[0]
	if first.Content != strings.Repeat("a", 10) {
		t.Errorf("chunk content = %q", first.Content)
	}
	if first.Source != srv.URL {
		t.Errorf("source = %q", first.Source)
	}
	if first.Metadata["category"] != "admissions" || first.Metadata["doc_type"] != "page" || first.Metadata["chunk_index"] != "0" {
		t.Errorf("metadata = %v", first.Metadata)
	}
	if len(progress) == 0 {
		t.Error("no progress reported")
	}
}

func TestIngest_DeterministicChunkIDs(t *testing.T) {
	t.Parallel()
	a := chunkID("https://skcet.ac.in/admissions", 0)
	b := chunkID("https://skcet.ac.in/admissions", 0)
	c := chunkID("https://skcet.ac.in/admissions", 1)

	if a != b {
		t.Errorf("same input gave different IDs: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different chunk index gave same ID")
	}
	// UUID shape: 8-4-4-4-12 hex groups.
	parts := strings.Split(a, "-")
	if len(parts) != 5 || len(parts[0]) != 8 || len(parts[4]) != 12 {
		t.Errorf("ID not UUID-shaped: %q", a)
	}
}

func TestIngest_FetchFailureAborts(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := &fakeStore{}
	p, err := NewPipeline(&fakeEmbedder{}, store, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	err = p.Ingest(context.Background(), []Source{{URL: srv.URL}}, nil)
	if err == nil || !strings.Contains(err.Error(), "fetch failed") {
		t.Fatalf("want fetch failure, got %v", err)
	}
	if len(store.passages) != 0 {
		t.Errorf("upserted %d passages after failed fetch", len(store.passages))
	}
}

func TestIngest_EmbedFailureAborts(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("some campus content"))
	}))
	defer srv.Close()

	store := &fakeStore{}
	p, err := NewPipeline(&fakeEmbedder{err: errors.New("ollama down")}, store, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	err = p.Ingest(context.Background(), []Source{{URL: srv.URL}}, nil)
	if err == nil || !strings.Contains(err.Error(), "embedding failed") {
		t.Fatalf("want embedding failure, got %v", err)
	}
	if len(store.passages) != 0 {
		t.Errorf("upserted %d passages after failed embed", len(store.passages))
	}
}

func TestNewPipeline_Defaults(t *testing.T) {
	t.Parallel()
	p, err := NewPipeline(&fakeEmbedder{}, &fakeStore{}, &Config{ChunkSize: 100, ChunkOverlap: 100})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if p.cfg.ChunkOverlap != 10 {
		t.Errorf("overlap >= size not clamped to size/10: %d", p.cfg.ChunkOverlap)
	}

	if _, err := NewPipeline(nil, &fakeStore{}, nil); err == nil {
		t.Error("nil embedder accepted")
	}
	if _, err := NewPipeline(&fakeEmbedder{}, nil, nil); err == nil {
		t.Error("nil store accepted")
	}
}
