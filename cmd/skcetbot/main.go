// Command skcetbot is the entry point for the SKCET campus Q&A assistant.
// It provides a CLI interface (via Cobra) and an optional HTTP server with
// an SSE streaming API.
package main

import (
	"fmt"
	"os"

	"github.com/skcet-ai/skcetbot/cmd/skcetbot/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
