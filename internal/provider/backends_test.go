package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
)

// Test_New_OllamaCarriesTemperature verifies the shared tuning temperature
// reaches the Ollama request options. Ollama applies its own non-zero default
// when the key is absent, which would silently break answer stability at
// temperature 0.
func Test_New_OllamaCarriesTemperature(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		temp float32
	}{
		{name: "deterministic default", temp: 0},
		{name: "explicit non-zero", temp: 0.7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			bodyCh := make(chan []byte, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/chat" {
					http.NotFound(w, r)
					return
				}
				b, _ := io.ReadAll(r.Body)
				bodyCh <- b
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprintln(w, `{"model":"llama3","created_at":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":"ok"},"done":true,"done_reason":"stop"}`)
			}))
			defer srv.Close()

			cfg := &Config{
				Backend: BackendOllama,
				Ollama:  ProviderOllama{Host: srv.URL, Model: "llama3"},
				Tuning:  SharedTuning{MaxTokens: 256, Temperature: tc.temp},
			}
			m, err := New(context.Background(), cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			if _, err := m.Generate(context.Background(), []*schema.Message{
				schema.UserMessage("When was SKCET founded?"),
			}); err != nil {
				t.Fatalf("Generate: %v", err)
			}

			var req struct {
				Options map[string]any `json:"options"`
			}
			if err := json.Unmarshal(<-bodyCh, &req); err != nil {
				t.Fatalf("unmarshal request body: %v", err)
			}
			got, ok := req.Options["temperature"]
			if !ok {
				t.Fatalf("request options missing temperature key: %v", req.Options)
			}
			f, ok := got.(float64)
			if !ok || float32(f) != tc.temp {
				t.Errorf("temperature = %v, want %v", got, tc.temp)
			}
		})
	}
}
