package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skcet-ai/skcetbot/internal/logging"
	"github.com/skcet-ai/skcetbot/internal/memory"
	"github.com/skcet-ai/skcetbot/internal/session"
)

// NewAskCmd constructs the `skcetbot ask` command, which answers a single
// question and streams the response to stdout.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question about SKCET",
		Long: `Ask one question about the college and stream the answer to stdout.

The answer is grounded in the ingested campus knowledge base. For a
multi-turn conversation with memory, use 'skcetbot chat' instead.

Examples:
  skcetbot ask "what are the hostel fees?"
  skcetbot ask "which companies recruit from the CSE department?"
  skcetbot ask "when was SKCET established?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			pipeline, _, cleanup, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer cleanup()

			// A one-shot question still goes through a session so the
			// commit rules are identical to the chat surfaces.
			sess := session.New("ask", memory.NewHistory(), pipeline, nil)

			question := strings.Join(args, " ")
			stream, err := sess.Ask(ctx, question)
			if err != nil {
				if errors.Is(err, session.ErrBlankQuery) {
					return fmt.Errorf("ask: question must not be empty")
				}
				return fmt.Errorf("ask: %w", err)
			}
			defer stream.Close()

			for {
				tok, err := stream.Recv()
				if err == io.EOF {
					fmt.Fprintln(os.Stdout)
					return nil
				}
				if err != nil {
					fmt.Fprintln(os.Stdout)
					return fmt.Errorf("ask: %w", err)
				}
				fmt.Fprint(os.Stdout, tok)
			}
		},
	}

	return cmd
}
