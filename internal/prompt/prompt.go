// Package prompt renders the answer prompt handed to the language model.
// The instruction template is fixed for the process lifetime: it is resolved
// once at startup — from an operator-supplied file when configured, otherwise
// from the built-in default — and never re-fetched per question. Conversation
// history is deliberately absent from the template; it travels to the model
// separately as chat turns.
package prompt

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/skcet-ai/skcetbot/internal/rag"
)

const (
	// questionSlot marks where the user's question is substituted.
	questionSlot = "{question}"

	// contextSlot marks where the assembled retrieval context is substituted.
	contextSlot = "{context}"
)

// defaultTemplate is the built-in QA instruction template.
const defaultTemplate = `You are an assistant for question-answering tasks. Use the following pieces of retrieved context to answer the question. If you don't know the answer, just say that you don't know. Use three sentences maximum and keep the answer concise.
Question: {question}
Context: {context}
Answer:`

// Builder renders prompts from one immutable template. Build is a pure
// function of its inputs: same question and context, same prompt.
type Builder struct {
	template string
}

// Load resolves the template. A non-empty path must name a readable file
// containing both the {question} and {context} slots; failures are wrapped
// in [rag.ErrTemplateFetch] and are fatal at startup. An empty path selects
// the built-in default.
func Load(path string) (*Builder, error) {
	if path == "" {
		return &Builder{template: defaultTemplate}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", rag.ErrTemplateFetch, path, err)
	}
	tmpl := string(data)
	if !strings.Contains(tmpl, questionSlot) || !strings.Contains(tmpl, contextSlot) {
		return nil, fmt.Errorf("%w: template %s must contain %s and %s slots",
			rag.ErrTemplateFetch, path, questionSlot, contextSlot)
	}
	return &Builder{template: tmpl}, nil
}

// Build substitutes the question and assembled context into the template.
// An empty context is substituted as-is — the instruction text then carries
// the whole weight of telling the model to admit ignorance.
func (b *Builder) Build(question, context string) string {
	out := strings.ReplaceAll(b.template, questionSlot, question)
	return strings.ReplaceAll(out, contextSlot, context)
}

// Template returns the raw template text.
func (b *Builder) Template() string {
	return b.template
}

var (
	sharedOnce sync.Once
	shared     *Builder
	sharedErr  error
)

// Shared resolves the process-wide Builder exactly once. Later calls return
// the first result regardless of path, matching the fetch-once contract.
func Shared(path string) (*Builder, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = Load(path)
	})
	return shared, sharedErr
}
