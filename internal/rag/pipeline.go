package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/schema"

	"github.com/skcet-ai/skcetbot/internal/logging"
	"github.com/skcet-ai/skcetbot/internal/memory"
)

// Pipeline orchestrates one question's journey from retrieval to streamed
// generation. Each run walks the stages received → retrieving → assembling →
// prompting → generating and either hands back a live token stream
// (completed once the caller drains it) or fails with a [StageError] naming
// the stage that broke.
//
// The pipeline is stateless across runs: conversation memory is owned by the
// caller and passed in as a snapshot.
type Pipeline struct {
	retriever Retriever
	assembler *ContextAssembler
	builder   PromptBuilder
	generator Generator
}

// NewPipeline wires the pipeline from its four stage implementations.
func NewPipeline(retriever Retriever, assembler *ContextAssembler, builder PromptBuilder, generator Generator) (*Pipeline, error) {
	if retriever == nil {
		return nil, fmt.Errorf("rag: retriever must not be nil")
	}
	if assembler == nil {
		return nil, fmt.Errorf("rag: assembler must not be nil")
	}
	if builder == nil {
		return nil, fmt.Errorf("rag: prompt builder must not be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("rag: generator must not be nil")
	}
	return &Pipeline{
		retriever: retriever,
		assembler: assembler,
		builder:   builder,
		generator: generator,
	}, nil
}

// Run answers one question. history is the snapshot of conversation turns
// taken by the caller at prompt time; it is passed to generation for
// turn-taking, never spliced into the template. The returned stream is
// unbuffered — tokens reach the caller as the model produces them.
//
// Zero retrieved passages is not a failure: generation proceeds with an
// empty context and the model answers from the question and history alone.
func (p *Pipeline) Run(ctx context.Context, query string, history []memory.Turn) (*schema.StreamReader[string], error) {
	log := logging.FromContext(ctx)
	log.Debug("rag: pipeline run", slog.String("stage", string(StageReceived)))

	passages, err := p.retriever.Retrieve(ctx, query)
	if err != nil {
		log.Error("rag: retrieval failed", slog.String("stage", string(StageRetrieving)), slog.String("error", err.Error()))
		return nil, &StageError{Stage: StageRetrieving, Err: err}
	}
	log.Debug("rag: retrieved passages",
		slog.String("stage", string(StageRetrieving)),
		slog.Int("passages", len(passages)),
	)

	assembled := p.assembler.Assemble(ctx, passages)
	log.Debug("rag: assembled context",
		slog.String("stage", string(StageAssembling)),
		slog.Int("context_chars", len(assembled)),
	)

	prompt := p.builder.Build(query, assembled)
	log.Debug("rag: rendered prompt",
		slog.String("stage", string(StagePrompting)),
		slog.Int("prompt_chars", len(prompt)),
		slog.Int("history_turns", len(history)),
	)

	stream, err := p.generator.Generate(ctx, prompt, history)
	if err != nil {
		log.Error("rag: generation failed to start", slog.String("stage", string(StageGenerating)), slog.String("error", err.Error()))
		return nil, &StageError{Stage: StageGenerating, Err: err}
	}

	return stream, nil
}
