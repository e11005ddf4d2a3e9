package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaEmbedder turns text into vectors through a local Ollama server's
// /api/embed endpoint. This is the default backend: the campus deployment
// runs Ollama next to the chat model, so no API key is involved.
// Safe for concurrent use.
type OllamaEmbedder struct {
	host   string // base URL, e.g. "http://localhost:11434"
	model  string // embedding model, e.g. "nomic-embed-text"
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL.
	Host string
	// Model is the embedding model name. Must be an embedding model —
	// pointing this at the chat model produces garbage vectors.
	Model string
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
// The generous timeout covers first-use model loads on cold servers.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		host:   cfg.Host,
		model:  cfg.Model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts a batch of texts into embeddings, one vector per input,
// in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: read response: %w", err)
	}

	// Ollama reports failures as a JSON error field, so parse the body even
	// on non-2xx to surface the server's own message.
	var result ollamaEmbedResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("ollama embedder: decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if result.Error != "" {
			return nil, fmt.Errorf("ollama embedder: %s", result.Error)
		}
		return nil, fmt.Errorf("ollama embedder: HTTP %d", resp.StatusCode)
	}

	if got := len(result.Embeddings); got != len(texts) {
		return nil, fmt.Errorf("ollama embedder: got %d embeddings for %d inputs", got, len(texts))
	}
	return result.Embeddings, nil
}
