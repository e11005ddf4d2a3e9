// Package provider selects and constructs the LLM chat model backend at
// runtime. Supported backends: Ollama (default), OpenAI, Azure OpenAI,
// AWS Bedrock, Google Gemini.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Ollama holds Ollama-specific settings.
	Ollama ProviderOllama

	// OpenAI holds OpenAI-specific settings.
	OpenAI ProviderOpenAI

	// AzureOpenAI holds Azure OpenAI-specific settings.
	AzureOpenAI ProviderAzureOpenAI

	// Bedrock holds AWS Bedrock-specific settings.
	Bedrock ProviderBedrock

	// Gemini holds Google Gemini-specific settings.
	Gemini ProviderGemini

	// Tuning holds backend-independent generation settings.
	Tuning SharedTuning
}

// ProviderOllama holds Ollama connection settings.
type ProviderOllama struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string
	// Model is the Ollama model name (default: llama3).
	Model string
}

// ProviderOpenAI holds OpenAI API settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the OpenAI model name.
	Model string
}

// ProviderAzureOpenAI holds Azure OpenAI Service settings.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI API key.
	APIKey string
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string
	// Deployment is the Azure OpenAI deployment name.
	Deployment string
	// APIVersion is the Azure OpenAI REST API version.
	APIVersion string
}

// ProviderBedrock holds AWS Bedrock settings.
type ProviderBedrock struct {
	// AWSRegion is the AWS region for Bedrock.
	AWSRegion string
	// ModelID is the Bedrock model identifier.
	ModelID string
	// Endpoint overrides the Bedrock runtime endpoint.
	Endpoint string
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is the Google API key.
	APIKey string
	// Model is the Gemini model name.
	Model string
}

// SharedTuning holds generation settings shared by all backends.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0). skcetbot defaults
	// to 0 so retrieval-grounded answers stay stable across runs.
	Temperature float32
}

// Validate checks that the selected backend has its required settings.
// Error messages name the env var the operator should set.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: OLLAMA_MODEL is required for ollama backend")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY is required for openai backend")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: OPENAI_MODEL is required for openai backend")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY is required for azure backend")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
		}
	case BackendBedrock:
		if c.Bedrock.ModelID == "" {
			return fmt.Errorf("provider: BEDROCK_MODEL_ID is required for bedrock backend")
		}
		if c.Bedrock.AWSRegion == "" {
			return fmt.Errorf("provider: AWS_REGION is required for bedrock backend")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY is required for gemini backend")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: GEMINI_MODEL is required for gemini backend")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q — valid values: ollama, openai, azure, bedrock, gemini", c.Backend)
	}
	return nil
}

// isAzureReasoningModel reports whether an Azure deployment name looks like a
// reasoning-class model (o-series, codex). These deployments reject the
// temperature parameter, so the factory must not send one.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, p := range []string{"o1", "o3", "o4", "codex"} {
		if d == p || strings.HasPrefix(d, p+"-") {
			return true
		}
	}
	return false
}
