// Package generate produces streamed model completions for rendered prompts.
// It adapts an eino chat model to the pipeline's Generator contract: history
// turns become chat messages ahead of the prompt, the model's message stream
// becomes a plain token stream, and the conversation window is cut to the
// model's context budget right here — stored history is never touched.
package generate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/skcet-ai/skcetbot/internal/budget"
	"github.com/skcet-ai/skcetbot/internal/logging"
	"github.com/skcet-ai/skcetbot/internal/memory"
	"github.com/skcet-ai/skcetbot/internal/rag"
)

// StreamingGenerator implements rag.Generator on top of an eino chat model.
// It is safe for concurrent use.
type StreamingGenerator struct {
	// model is the backing chat model, already configured for temperature 0
	// by the provider factory unless the operator overrides it.
	model model.BaseChatModel

	// maxContextTokens caps prompt + history handed to the model.
	maxContextTokens int
}

// New constructs a StreamingGenerator. A maxContextTokens of 0 selects
// [budget.DefaultMaxContextTokens].
func New(chatModel model.BaseChatModel, maxContextTokens int) (*StreamingGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("generate: chat model must not be nil")
	}
	if maxContextTokens <= 0 {
		maxContextTokens = budget.DefaultMaxContextTokens
	}
	return &StreamingGenerator{
		model:            chatModel,
		maxContextTokens: maxContextTokens,
	}, nil
}

// Generate streams a completion for the rendered prompt. history is passed
// to the backend as prior chat turns (windowed to the context budget,
// oldest first); the prompt itself travels as the final user message.
//
// A failure before the stream opens is wrapped in
// [rag.ErrGenerationUnavailable]. Failures mid-stream surface through the
// returned stream's Recv and are the consumer's to classify.
func (g *StreamingGenerator) Generate(ctx context.Context, prompt string, history []memory.Turn) (*schema.StreamReader[string], error) {
	log := logging.FromContext(ctx)

	windowed := budget.WindowTurns(prompt, history, g.maxContextTokens)
	if dropped := len(history) - len(windowed); dropped > 0 {
		log.Warn("generate: conversation window trimmed to fit context budget",
			slog.Int("dropped_turns", dropped),
			slog.Int("kept_turns", len(windowed)),
			slog.Int("max_context_tokens", g.maxContextTokens),
		)
	}
	if budget.Estimate(prompt) > g.maxContextTokens {
		log.Warn("generate: rendered prompt alone exceeds context budget",
			slog.Int("prompt_tokens_est", budget.Estimate(prompt)),
			slog.Int("max_context_tokens", g.maxContextTokens),
		)
	}

	msgs := make([]*schema.Message, 0, len(windowed)+1)
	for _, turn := range windowed {
		switch turn.Role {
		case memory.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(turn.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(turn.Content))
		}
	}
	msgs = append(msgs, schema.UserMessage(prompt))

	stream, err := g.model.Stream(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rag.ErrGenerationUnavailable, err)
	}

	// The model streams *schema.Message chunks; the pipeline speaks plain
	// tokens. Empty chunks (role-only frames, tool noise) are skipped.
	return schema.StreamReaderWithConvert(stream, func(m *schema.Message) (string, error) {
		if m == nil || m.Content == "" {
			return "", schema.ErrNoValue
		}
		return m.Content, nil
	}), nil
}
