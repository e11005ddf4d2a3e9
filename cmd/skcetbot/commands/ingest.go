package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/skcet-ai/skcetbot/internal/embedder"
	"github.com/skcet-ai/skcetbot/internal/ingestion"
	"github.com/skcet-ai/skcetbot/internal/logging"
)

// NewIngestCmd constructs the `skcetbot ingest` command, which runs the
// document ingestion pipeline to populate the campus knowledge base.
func NewIngestCmd() *cobra.Command {
	var category string
	var docType string
	var urls []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest campus documents into the knowledge base",
		Long: `Fetch and index campus documents into the Qdrant vector store.

Ingested documents are what the assistant retrieves from when answering
questions — admissions pages, department pages, placement statistics,
hostel rules, circulars, and so on.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: skcet)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Metadata flags (--category, --doc-type) are optional. When omitted,
metadata is auto-inferred from the URL pattern (e.g. skcet.ac.in/admissions
URLs resolve the category automatically). Explicit flags override inference.

Examples:
  skcetbot ingest --url https://skcet.ac.in/admissions/eligibility
  skcetbot ingest --url https://skcet.ac.in/placement/recruiters --url https://skcet.ac.in/hostel/rules
  skcetbot ingest --category academics --url https://example.com/cse-syllabus.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(urls) == 0 {
				return fmt.Errorf("ingest: at least one --url is required")
			}

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))))

			store, err := buildQdrantStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			pipeline, err := ingestion.NewPipeline(emb, store, nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			categorySet := cmd.Flags().Changed("category")
			docTypeSet := cmd.Flags().Changed("doc-type")

			sources := make([]ingestion.Source, 0, len(urls))
			for _, u := range urls {
				inferred := ingestion.InferMetadata(u)

				src := ingestion.Source{URL: u}
				if categorySet {
					src.Category = category
				} else {
					src.Category = inferred.Category
				}
				if docTypeSet {
					src.DocType = docType
				} else {
					src.DocType = inferred.DocType
				}

				log.Info("source metadata",
					slog.String("url", u),
					slog.String("category", src.Category),
					slog.String("doc_type", src.DocType),
				)
				sources = append(sources, src)
			}

			log.Info("starting ingestion", slog.Int("sources", len(sources)))

			if err := pipeline.Ingest(ctx, sources, func(msg string) {
				log.Info(msg)
			}); err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			log.Info("ingestion complete", slog.Int("sources", len(sources)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "general", "Campus topic label (admissions, academics, placements, facilities, research, general)")
	cmd.Flags().StringVarP(&docType, "doc-type", "d", "page", "Document type (page, faq, brochure, circular)")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Document URL to ingest (repeatable)")

	return cmd
}
