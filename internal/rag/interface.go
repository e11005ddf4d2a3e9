// Package rag implements the retrieval-augmented answer pipeline: similarity
// retrieval from a vector store, context assembly, prompt rendering, and the
// hand-off to streamed generation. Concrete backends (Qdrant, the embedding
// providers, the chat models) satisfy small interfaces so the pipeline never
// depends on a specific vendor.
package rag

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/skcet-ai/skcetbot/internal/memory"
)

// Passage is a unit of retrieved or stored knowledge: one chunk of the
// indexed corpus, optionally scored by a similarity search.
type Passage struct {
	// ID is the unique identifier for this chunk.
	ID string

	// Content is the raw text of the chunk.
	Content string

	// Source is the origin URI or file path of the document the chunk
	// was cut from.
	Source string

	// Metadata holds arbitrary key-value pairs (section, page, etc.).
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval (0.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching passage
// embeddings. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of passages with their pre-computed
	// embeddings. embeddings[i] is the vector for passages[i].
	Upsert(ctx context.Context, passages []Passage, embeddings [][]float32) error

	// Search performs a similarity search and returns at most topK passages
	// whose score is at or above threshold, best first.
	Search(ctx context.Context, queryEmbedding []float32, topK int, threshold float32) ([]Passage, error)

	// Delete removes passages by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the passages relevant to a question. The relevance cutoff
// and result cap are fixed at construction; an empty result means nothing in
// the corpus cleared the cutoff and is not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Passage, error)
}

// PromptBuilder renders the final answer prompt from a question and its
// assembled context.
type PromptBuilder interface {
	Build(question, context string) string
}

// Generator produces a streamed completion for a rendered prompt, given the
// conversation turns that precede it.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []memory.Turn) (*schema.StreamReader[string], error)
}
