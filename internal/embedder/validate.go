package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// chatModelFragments are name fragments of chat/completion models. A model
// matching one of these in EMBEDDING_MODEL almost always means the operator
// reused the chat model name (e.g. OLLAMA_MODEL=llama3 copied over) — the
// embeddings would be dimensionally valid but semantically useless.
var chatModelFragments = []string{
	// OpenAI / Azure
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	// common Ollama chat models
	"llama3", "llama2", "llama-3", "llama-2",
	"mistral", "mixtral", "gemma", "phi-", "phi3",
	"qwen", "deepseek", "vicuna", "falcon", "solar", "yi-",
	// hosted elsewhere but seen in configs
	"claude", "command-r",
}

// looksLikeChatModel reports whether the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, f := range chatModelFragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// ValidateForRAG is a pre-flight check of the embedding configuration, run
// before the embedder or Qdrant store is constructed so a misconfigured
// deployment fails at startup with a named env var instead of failing on the
// first question. It is a no-op when QDRANT_HOST is unset (no retrieval
// configured). Hard misconfigurations (a cloud backend with no credentials)
// return an error; suspicious-but-workable ones only log a warning.
func ValidateForRAG(log *slog.Logger) error {
	if os.Getenv("QDRANT_HOST") == "" {
		return nil
	}

	backend := os.Getenv("EMBEDDING_PROVIDER")
	if backend == "" {
		backend = getEnvOrDefault("MODEL_PROVIDER", "ollama")
	}

	// A cloud chat backend silently becoming the embedding backend is a
	// common footgun when EMBEDDING_PROVIDER is left unset.
	if backend != "ollama" && os.Getenv("EMBEDDING_PROVIDER") == "" {
		log.Warn("embedder: QDRANT_HOST is set but EMBEDDING_PROVIDER is not — "+
			"inheriting MODEL_PROVIDER as embedding backend",
			slog.String("backend", backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure) to be explicit"),
		)
	}

	switch backend {
	case "openai":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: QDRANT_HOST is set but no OpenAI API key found — set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case "azure":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: QDRANT_HOST is set but no Azure API key found — set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if os.Getenv("EMBEDDING_ENDPOINT") == "" && os.Getenv("AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: QDRANT_HOST is set but no Azure endpoint found — set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}

	case "bedrock":
		return fmt.Errorf("embedder: QDRANT_HOST is set but bedrock embedding is not yet implemented — set EMBEDDING_PROVIDER to ollama, openai, or azure")

	case "gemini":
		return fmt.Errorf("embedder: QDRANT_HOST is set but gemini embedding is not yet implemented — set EMBEDDING_PROVIDER to ollama, openai, or azure")
	}

	if model := os.Getenv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
