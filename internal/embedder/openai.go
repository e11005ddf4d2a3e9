// Package embedder implements rag.Embedder over the embedding HTTP APIs the
// assistant can be pointed at: a local Ollama server (the default) or the
// OpenAI / Azure OpenAI embeddings endpoint. The APIs are a single POST each,
// so the package talks plain net/http rather than pulling in provider SDKs.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenAIEmbedder implements rag.Embedder against the OpenAI embeddings REST
// API, in either plain OpenAI or Azure OpenAI flavour. The two differ only in
// URL shape and auth header; everything else is shared. Safe for concurrent
// use.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	// dimensions requests a specific vector length; 0 leaves it to the model.
	// Must match the Qdrant collection's configured size.
	dimensions int
	// azure switches to the api-key header and deployment-style URLs.
	azure      bool
	apiVersion string
	client     *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base. OpenAI: "https://api.openai.com/v1".
	// Azure: "https://<resource>.openai.azure.com/openai".
	BaseURL string
	// APIKey authenticates the request (Bearer for OpenAI, api-key for Azure).
	APIKey string
	// Model is the embedding model name, e.g. "text-embedding-3-small".
	// Under Azure this doubles as the deployment name.
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// Azure enables Azure OpenAI mode.
	Azure bool
	// APIVersion is the Azure api-version query param; ignored otherwise.
	APIVersion string
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		azure:      cfg.Azure,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed converts a batch of texts into embeddings, one vector per input,
// in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := openaiEmbedRequest{Input: texts, Model: e.model}
	if e.dimensions > 0 {
		body.Dimensions = e.dimensions
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: marshal request: %w", err)
	}

	url := e.baseURL + "/embeddings"
	if e.azure {
		url = e.baseURL + "/deployments/" + e.model + "/embeddings?api-version=" + e.apiVersion
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.azure {
		req.Header.Set("api-key", e.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("openai embedder: decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if result.Error != nil {
			return nil, fmt.Errorf("openai embedder: %s", result.Error.Message)
		}
		return nil, fmt.Errorf("openai embedder: HTTP %d", resp.StatusCode)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: got %d embeddings for %d inputs", len(result.Data), len(texts))
	}

	// Data is not guaranteed to arrive in input order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}
