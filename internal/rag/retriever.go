package rag

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultThreshold is the similarity cutoff below which a passage is
	// considered irrelevant to the question.
	DefaultThreshold float32 = 0.75

	// DefaultTopK caps the number of passages retrieved per question.
	DefaultTopK = 5
)

// SimilarityRetriever implements Retriever by combining an Embedder and a
// VectorStore: the question is embedded at retrieval time and the store
// performs a threshold-filtered similarity search.
type SimilarityRetriever struct {
	// embedder converts the question text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// threshold is the minimum similarity score a passage must reach.
	threshold float32

	// topK caps the number of passages returned.
	topK int
}

// NewSimilarityRetriever constructs a SimilarityRetriever. A zero threshold
// or topK falls back to the package defaults.
func NewSimilarityRetriever(embedder Embedder, store VectorStore, threshold float32, topK int) (*SimilarityRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if threshold > 1 {
		return nil, fmt.Errorf("rag: threshold %v out of range (0, 1]", threshold)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &SimilarityRetriever{
		embedder:  embedder,
		store:     store,
		threshold: threshold,
		topK:      topK,
	}, nil
}

// Retrieve embeds the question and returns the passages that cleared the
// similarity threshold, best first. An empty result is not an error — it
// means the corpus holds nothing relevant enough. Backend failures are
// wrapped in [ErrRetrievalUnavailable].
func (r *SimilarityRetriever) Retrieve(ctx context.Context, query string) ([]Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("rag: query must not be empty")
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrievalUnavailable, err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vector for query", ErrRetrievalUnavailable)
	}

	passages, err := r.store.Search(ctx, embeddings[0], r.topK, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", ErrRetrievalUnavailable, err)
	}

	return passages, nil
}
