package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skcet-ai/skcetbot/internal/logging"
	"github.com/skcet-ai/skcetbot/internal/memory"
)

// NewSessionsCmd constructs the `skcetbot sessions` command, which lists
// archived conversations or dumps one transcript.
func NewSessionsCmd() *cobra.Command {
	var show string
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List archived conversations or show one transcript",
		Long: `Inspect the local transcript archive.

With no flags, lists archived session IDs, most recently active first.
With --show, prints that session's transcript oldest first.

Archived transcripts are for inspection only; they are never fed back
into live conversations.

Examples:
  skcetbot sessions
  skcetbot sessions --show open-day-demo
  skcetbot sessions --show open-day-demo --limit 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			arch := openArchive(log)
			if arch == nil {
				return fmt.Errorf("sessions: transcript archive unavailable")
			}
			defer arch.Close()

			if show == "" {
				ids, err := arch.Sessions(ctx)
				if err != nil {
					return fmt.Errorf("sessions: %w", err)
				}
				if len(ids) == 0 {
					fmt.Fprintln(os.Stdout, "no archived sessions")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintln(os.Stdout, id)
				}
				return nil
			}

			turns, err := arch.Transcript(ctx, show, limit)
			if err != nil {
				return fmt.Errorf("sessions: %w", err)
			}
			if len(turns) == 0 {
				return fmt.Errorf("sessions: no transcript for %q", show)
			}
			for _, turn := range turns {
				label := "skcetbot"
				if turn.Role == memory.RoleUser {
					label = "you"
				}
				fmt.Fprintf(os.Stdout, "[%s] %s> %s\n",
					turn.CreatedAt.Format("2006-01-02 15:04:05"), label, turn.Content)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&show, "show", "", "Session ID whose transcript to print")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of turns to print (most recent)")

	return cmd
}
