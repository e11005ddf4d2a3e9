package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_OllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		resp := ollamaEmbedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			resp.Embeddings[i] = []float32{float32(i), 0.5}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	got, err := emb.Embed(context.Background(), []string{"hostel fees", "bus routes"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 embeddings, got %d", len(got))
	}
	if got[1][0] != 1 {
		t.Errorf("embeddings not parallel to input: %v", got)
	}
}

func Test_OllamaEmbedder_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"})
	if _, err := emb.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func Test_OllamaEmbedder_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{0.1}}})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	if _, err := emb.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error when embedding count mismatches input count")
	}
}

func Test_LooksLikeChatModel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		model string
		want  bool
	}{
		{"llama3", true},
		{"gpt-4o", true},
		{"mistral:7b", true},
		{"nomic-embed-text", false},
		{"text-embedding-3-small", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := looksLikeChatModel(tc.model); got != tc.want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", tc.model, got, tc.want)
		}
	}
}
