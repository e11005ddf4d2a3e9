package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skcet-ai/skcetbot/internal/archive"
	"github.com/skcet-ai/skcetbot/internal/chat"
	"github.com/skcet-ai/skcetbot/internal/logging"
	"github.com/skcet-ai/skcetbot/internal/memory"
	"github.com/skcet-ai/skcetbot/internal/session"
)

// NewChatCmd constructs the `skcetbot chat` command: an interactive
// terminal conversation with per-session memory.
func NewChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation about SKCET",
		Long: `Start a terminal conversation with the campus assistant.

Each question is answered with retrieved campus context, and the
conversation history feeds back into later answers. Type 'exit' or 'quit'
to leave. Transcripts are archived to the local SQLite database unless
SKCETBOT_HISTORY_DB=disabled.

Examples:
  skcetbot chat
  skcetbot chat --session open-day-demo`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			pipeline, _, cleanup, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer cleanup()

			// Keep the interface nil when archival is disabled; a typed nil
			// pointer would defeat the session's nil check.
			var tarch archive.TranscriptArchive
			if arch := openArchive(log); arch != nil {
				defer func() { _ = arch.Close() }()
				tarch = arch
			}

			if sessionID == "" {
				sessionID = newSessionID()
			}

			sess := session.New(sessionID, memory.NewHistory(), pipeline, tarch)
			loop := chat.NewLoop(sess, os.Stdin, os.Stdout)
			return loop.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for transcript archival (default: random)")

	return cmd
}

// newSessionID returns an 8-byte random hex session identifier.
func newSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "local"
	}
	return hex.EncodeToString(b)
}
