package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/skcet-ai/skcetbot/internal/archive"
	"github.com/skcet-ai/skcetbot/internal/embedder"
	"github.com/skcet-ai/skcetbot/internal/generate"
	"github.com/skcet-ai/skcetbot/internal/prompt"
	"github.com/skcet-ai/skcetbot/internal/provider"
	"github.com/skcet-ai/skcetbot/internal/rag"
	"github.com/skcet-ai/skcetbot/internal/server"
)

// buildQdrantStore connects to Qdrant using the QDRANT_* environment
// variables and ensures the collection exists. The vector size follows the
// configured embedding backend's default dimensionality.
func buildQdrantStore(ctx context.Context, log *slog.Logger) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "skcet")
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return store, nil
}

// buildPipeline assembles the full answer pipeline: embedder → retriever →
// context assembler → prompt builder → streaming generator. The returned
// store is the live Qdrant connection (shared with readiness probes); the
// cleanup function closes it.
func buildPipeline(ctx context.Context, log *slog.Logger) (*rag.Pipeline, *rag.QdrantStore, func(), error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	store, err := buildQdrantStore(ctx, log)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = store.Close() }

	threshold := float32(getEnvFloat64("RETRIEVAL_THRESHOLD", float64(rag.DefaultThreshold)))
	topK := getEnvInt("RETRIEVAL_TOP_K", rag.DefaultTopK)
	retriever, err := rag.NewSimilarityRetriever(emb, store, threshold, topK)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	assembler := rag.NewContextAssembler(os.Getenv("SKCETBOT_AUDIT_DIR"))

	builder, err := prompt.Shared(os.Getenv("SKCETBOT_PROMPT_FILE"))
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to load prompt template: %w", err)
	}

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	gen, err := generate.New(chatModel, getEnvInt("MODEL_MAX_CONTEXT_TOKENS", 0))
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to create generator: %w", err)
	}

	pipeline, err := rag.NewPipeline(retriever, assembler, builder, gen)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	return pipeline, store, cleanup, nil
}

// buildPingers assembles the dependency probes for GET /api/ready. The
// Qdrant probe reuses the pipeline's gRPC connection; the Ollama probe is
// added only when an Ollama backend is in play.
func buildPingers(store *rag.QdrantStore, log *slog.Logger) []server.Pinger {
	pingers := []server.Pinger{server.NewQdrantPinger(store.Client())}

	modelBackend := getEnvOrDefault("MODEL_PROVIDER", "ollama")
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", modelBackend)
	if modelBackend == "ollama" || embBackend == "ollama" {
		host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		pingers = append(pingers, server.NewOllamaPinger(host))
		log.Info("readiness probes registered", slog.String("ollama", host))
	}

	return pingers
}

// openArchive opens the transcript archive, honouring SKCETBOT_HISTORY_DB.
// Returns nil (archival disabled) when the variable is "disabled" or the
// store cannot be opened — a broken archive never blocks answering.
func openArchive(log *slog.Logger) *archive.SQLiteArchive {
	dbPath := os.Getenv("SKCETBOT_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("transcripts: disabled via SKCETBOT_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = archive.DefaultDBPath()
		if err != nil {
			log.Warn("transcripts: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}

	arch, err := archive.Open(dbPath)
	if err != nil {
		log.Warn("transcripts: failed to open archive, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("transcripts: archive opened", slog.String("path", dbPath))
	return arch
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat64 returns the float value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat64(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
