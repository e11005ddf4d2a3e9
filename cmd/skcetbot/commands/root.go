// Package commands defines all Cobra CLI commands for the skcetbot binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/skcet-ai/skcetbot/internal/audit"
	"github.com/skcet-ai/skcetbot/internal/config"
	"github.com/skcet-ai/skcetbot/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "skcetbot",
		Short: "skcetbot — campus Q&A assistant for SKCET, grounded in college documents",
		Long: `skcetbot answers questions about Sri Krishna College of Engineering and
Technology — admissions, academics, placements, facilities — using retrieval
over an ingested campus knowledge base and a streaming LLM backend.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.skcetbot/config.yaml).
See 'skcetbot --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.skcetbot/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewSessionsCmd(),
		NewVersionCmd(),
	)

	return root
}
