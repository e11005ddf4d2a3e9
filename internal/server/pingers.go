package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// OllamaPinger probes an Ollama backend with a zero-cost GET /api/tags
// request — no tokens are consumed. It satisfies the Pinger interface and is
// used by GET /api/ready.
type OllamaPinger struct {
	// baseURL is the Ollama server base URL (e.g. http://localhost:11434).
	baseURL string
	// client is the HTTP client used for probes.
	client *http.Client
}

// NewOllamaPinger constructs an OllamaPinger for the given base URL.
func NewOllamaPinger(baseURL string) *OllamaPinger {
	return &OllamaPinger{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Name returns the backend label used in readiness responses.
func (p *OllamaPinger) Name() string { return "ollama" }

// Ping issues GET /api/tags against the Ollama server.
// Returns nil if the server responds 200, a descriptive error otherwise.
func (p *OllamaPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
