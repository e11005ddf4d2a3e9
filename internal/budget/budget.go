// Package budget provides token budget estimation and history windowing for
// generation. Because skcetbot supports multiple LLM backends with different
// tokenizers, this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose). This deliberately under-estimates
// token counts to leave headroom for model-specific overhead.
//
// Windowing happens here, at the generation boundary — the session's stored
// history is never truncated.
package budget

import (
	"github.com/skcet-ai/skcetbot/internal/memory"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// turnOverheadTokens is the per-message framing cost most chat APIs add
	// (role markers, separators).
	turnOverheadTokens = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B)
	// while leaving room for the retrieved context and the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateTurns returns the estimated total token count for a slice of
// conversation turns, including per-turn framing overhead.
func EstimateTurns(turns []memory.Turn) int {
	total := 0
	for _, t := range turns {
		total += turnOverheadTokens
		total += Estimate(string(t.Role))
		total += Estimate(t.Content)
	}
	return total
}

// WindowTurns drops the oldest turns from history until the estimated token
// count of fixed + history fits within maxTokens. fixed is the text that must
// always reach the model (the rendered prompt, which already embeds the
// current question and retrieved context).
//
// Returns the windowed history slice. If even an empty history exceeds the
// budget, the empty slice is returned — the fixed prompt is never dropped
// here; callers should warn separately when the prompt alone busts the budget.
func WindowTurns(fixed string, history []memory.Turn, maxTokens int) []memory.Turn {
	if len(history) == 0 {
		return history
	}

	fixedTokens := Estimate(fixed)

	// History is typically short (tens of turns); a linear scan dropping the
	// oldest turn each round is clear and correct.
	for len(history) > 0 {
		if fixedTokens+EstimateTurns(history) <= maxTokens {
			break
		}
		history = history[1:]
	}
	return history
}
