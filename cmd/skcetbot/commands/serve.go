package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/skcet-ai/skcetbot/internal/archive"
	"github.com/skcet-ai/skcetbot/internal/logging"
	"github.com/skcet-ai/skcetbot/internal/memory"
	"github.com/skcet-ai/skcetbot/internal/server"
	"github.com/skcet-ai/skcetbot/internal/session"
	"github.com/skcet-ai/skcetbot/internal/tracing"
)

// NewServeCmd constructs the `skcetbot serve` command, which starts the
// HTTP server exposing the SSE chat API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the skcetbot HTTP server",
		Long: `Start the skcetbot HTTP server on localhost.

The server exposes POST /api/chat (SSE token streaming, session-keyed
memory), GET /api/history, liveness and readiness probes, and Prometheus
metrics on /metrics. Set SKCETBOT_API_KEY to require a Bearer token on the
chat and history endpoints.

Examples:
  skcetbot serve
  skcetbot serve --port 9090
  MODEL_PROVIDER=openai skcetbot serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			pipeline, store, cleanup, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			var tarch archive.TranscriptArchive
			if arch := openArchive(log); arch != nil {
				defer func() { _ = arch.Close() }()
				tarch = arch
			}

			manager := session.NewManager(pipeline, memory.NewRegistry(), tarch)

			pingers := buildPingers(store, log)

			srv, err := server.New(manager, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("SKCETBOT_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
