package rag

import (
	"context"
	"errors"
	"testing"
)

// fakeEmbedder returns a canned vector or a canned error.
type fakeEmbedder struct {
	vectors [][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

// fakeStore records the search parameters it was called with.
type fakeStore struct {
	passages     []Passage
	err          error
	gotTopK      int
	gotThreshold float32
	gotEmbedding []float32
	searchCalls  int
}

func (f *fakeStore) Upsert(context.Context, []Passage, [][]float32) error { return nil }

func (f *fakeStore) Search(_ context.Context, embedding []float32, topK int, threshold float32) ([]Passage, error) {
	f.searchCalls++
	f.gotEmbedding = embedding
	f.gotTopK = topK
	f.gotThreshold = threshold
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

func (f *fakeStore) Delete(context.Context, []string) error { return nil }
func (f *fakeStore) Close() error                           { return nil }

func Test_SimilarityRetriever_Defaults(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vectors: [][]float32{{0.1, 0.2}}}
	store := &fakeStore{}

	r, err := NewSimilarityRetriever(emb, store, 0, 0)
	if err != nil {
		t.Fatalf("NewSimilarityRetriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "admissions deadline"); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if store.gotThreshold != DefaultThreshold {
		t.Errorf("threshold = %v, want default %v", store.gotThreshold, DefaultThreshold)
	}
	if store.gotTopK != DefaultTopK {
		t.Errorf("topK = %d, want default %d", store.gotTopK, DefaultTopK)
	}
}

func Test_SimilarityRetriever_EmptyResultIsNotError(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vectors: [][]float32{{0.1}}}
	store := &fakeStore{passages: nil}

	r, _ := NewSimilarityRetriever(emb, store, 0.75, 5)
	got, err := r.Retrieve(context.Background(), "something off-topic")
	if err != nil {
		t.Fatalf("expected no error for empty retrieval, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want 0 passages, got %d", len(got))
	}
}

func Test_SimilarityRetriever_EmbedderDown(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{err: errors.New("connection refused")}
	store := &fakeStore{}

	r, _ := NewSimilarityRetriever(emb, store, 0.75, 5)
	_, err := r.Retrieve(context.Background(), "hostel fees")
	if !errors.Is(err, ErrRetrievalUnavailable) {
		t.Errorf("want ErrRetrievalUnavailable, got %v", err)
	}
	if store.searchCalls != 0 {
		t.Errorf("search should not run when embedding fails, got %d calls", store.searchCalls)
	}
}

func Test_SimilarityRetriever_StoreDown(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vectors: [][]float32{{0.1}}}
	store := &fakeStore{err: errors.New("qdrant unreachable")}

	r, _ := NewSimilarityRetriever(emb, store, 0.75, 5)
	_, err := r.Retrieve(context.Background(), "placement statistics")
	if !errors.Is(err, ErrRetrievalUnavailable) {
		t.Errorf("want ErrRetrievalUnavailable, got %v", err)
	}
	// The single failed attempt must not be retried.
	if store.searchCalls != 1 {
		t.Errorf("want exactly 1 search attempt, got %d", store.searchCalls)
	}
}

func Test_SimilarityRetriever_RejectsEmptyQuery(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vectors: [][]float32{{0.1}}}
	r, _ := NewSimilarityRetriever(emb, &fakeStore{}, 0.75, 5)

	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := r.Retrieve(context.Background(), q); err == nil {
			t.Errorf("Retrieve(%q): expected error for blank query", q)
		}
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for blank queries", emb.calls)
	}
}

func Test_NewSimilarityRetriever_Validation(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{}
	store := &fakeStore{}

	if _, err := NewSimilarityRetriever(nil, store, 0.75, 5); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewSimilarityRetriever(emb, nil, 0.75, 5); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := NewSimilarityRetriever(emb, store, 1.5, 5); err == nil {
		t.Error("expected error for threshold > 1")
	}
}
