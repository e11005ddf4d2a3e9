package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skcet-ai/skcetbot/internal/memory"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds a single /api/chat generation, receipt to stream
	// completion. Defaults to 5 minutes if zero.
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's metric registrations. Defaults to
	// prometheus.DefaultRegisterer; tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// asker is the interface the chat and history handlers call.
// *session.Manager satisfies it; tests inject a fake.
type asker interface {
	// Ask answers one question on the identified session, streaming tokens.
	Ask(ctx context.Context, sessionID, query string) (*schema.StreamReader[string], error)
	// History returns the session's conversation so far, nil if unknown.
	History(sessionID string) []memory.Turn
}

// Server is the HTTP front end over the session manager.
type Server struct {
	// asker resolves sessions and runs the answer pipeline.
	asker asker
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds this instance's Prometheus collectors.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// SessionID identifies the conversation. If empty the server generates
	// one and reports it in the SSE "session" event.
	SessionID string `json:"session_id"`
	// Message is the user's question.
	Message string `json:"message"`
}

// historyTurn is one conversation turn in the GET /api/history response.
type historyTurn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the turn's text exactly as recorded.
	Content string `json:"content"`
	// CreatedAt is the UTC timestamp the turn was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// historyResponse is the JSON response for GET /api/history.
type historyResponse struct {
	// SessionID echoes the requested session.
	SessionID string `json:"session_id"`
	// Turns is the full conversation, oldest first.
	Turns []historyTurn `json:"turns"`
}
