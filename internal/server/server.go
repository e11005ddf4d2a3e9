// Package server implements the HTTP server that exposes the campus Q&A
// pipeline via a REST/SSE API. The server is started by the
// `skcetbot serve` CLI command.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skcet-ai/skcetbot/internal/logging"
)

// New constructs a Server over the provided session asker and config.
func New(a asker, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("server: asker must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = 5 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		asker:   a,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: no API key configured, authentication disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", protect("chat", s.handleChat))
	mux.Handle("GET /api/history", protect("history", s.handleHistory))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat requests. It streams the answer using
// Server-Sent Events (SSE) so the client can render tokens as they arrive.
// When the request carries no session_id the server generates one and
// announces it in a "session" event before the first token.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = newRequestID()
	}

	// Set SSE headers so the client receives a streaming response.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()
	start := time.Now()
	outcome := "ok"
	defer func() {
		s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	sw := &sseWriter{w: w, flusher: flusher}
	sw.Event("session", req.SessionID)

	stream, err := s.asker.Ask(ctx, req.SessionID, req.Message)
	if err != nil {
		outcome = "error"
		log.Error("chat request failed",
			slog.String("session", req.SessionID),
			slog.String("error", err.Error()),
		)
		sw.Event("error", err.Error())
		return
	}
	defer stream.Close()

	for {
		tok, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				outcome = "timeout"
			default:
				outcome = "error"
			}
			log.Error("chat stream interrupted",
				slog.String("session", req.SessionID),
				slog.String("error", err.Error()),
			)
			sw.Event("error", err.Error())
			return
		}
		if _, err := sw.Write([]byte(tok)); err != nil {
			outcome = "error"
			return
		}
	}

	// Signal stream completion.
	sw.Event("done", "[DONE]")
}

// handleHistory handles GET /api/history?session_id=... and returns the
// session's recorded turns, oldest first. Unknown sessions get 404 so a
// client can distinguish "no such conversation" from an empty one.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	turns := s.asker.History(sessionID)
	if turns == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	resp := historyResponse{SessionID: sessionID, Turns: make([]historyTurn, 0, len(turns))}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, historyTurn{
			Role:      string(t.Role),
			Content:   t.Content,
			CreatedAt: t.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.FromContext(r.Context()).Error("history encode error", slog.Any("error", err))
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// sseWriter wraps an http.ResponseWriter to emit Server-Sent Event data frames.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// Write formats p as one or more SSE data lines and flushes to the client.
// Each newline in p is prefixed with "data: " so multi-line chunks never
// break the SSE frame boundary.
func (s *sseWriter) Write(p []byte) (n int, err error) {
	chunk := strings.TrimRight(string(bytes.Clone(p)), "\n")
	lines := strings.Split(chunk, "\n")
	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	if _, err = fmt.Fprint(s.w, buf.String()); err != nil {
		return 0, err
	}
	s.flusher.Flush()
	return len(p), nil
}

// Event emits a named SSE frame carrying msg as its data payload. The payload
// goes through the same line splitting as Write so error messages with
// embedded newlines cannot terminate the frame early.
func (s *sseWriter) Event(name, msg string) {
	fmt.Fprintf(s.w, "event: %s\n", name)
	s.Write([]byte(msg)) //nolint:errcheck // client gone; nothing to do
}
