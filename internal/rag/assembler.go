package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skcet-ai/skcetbot/internal/logging"
)

// contextSeparator joins passages into a single context block. A blank line
// keeps passage boundaries visible to the model without implying order.
const contextSeparator = "\n\n"

// ContextAssembler turns retrieved passages into the single context string
// handed to the prompt. Passages are joined in retrieval order; there is no
// re-ranking, deduplication, or truncation here.
type ContextAssembler struct {
	// auditDir, when non-empty, receives one timestamped file per assembled
	// context. Useful for answering "what did the bot actually read?".
	auditDir string

	// now is swappable for tests.
	now func() time.Time
}

// NewContextAssembler constructs a ContextAssembler. auditDir may be empty
// to disable the context audit trail.
func NewContextAssembler(auditDir string) *ContextAssembler {
	return &ContextAssembler{auditDir: auditDir, now: time.Now}
}

// Assemble joins the passages' text in retrieval order with a blank-line
// separator. Zero passages yield the empty string. When an audit directory
// is configured the assembled context is also persisted to a timestamped
// file; audit failures are logged and swallowed — they never block the
// answer flow.
func (a *ContextAssembler) Assemble(ctx context.Context, passages []Passage) string {
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.Content)
	}
	joined := strings.Join(texts, contextSeparator)

	if a.auditDir != "" {
		if err := a.writeAudit(joined); err != nil {
			logging.FromContext(ctx).Warn("rag: context audit write failed",
				"dir", a.auditDir,
				"error", fmt.Errorf("%w: %w", ErrAuditWrite, err),
			)
		}
	}

	return joined
}

// writeAudit persists one assembled context to a timestamped file. Colons in
// the RFC3339 timestamp are replaced so the name is valid on all filesystems.
func (a *ContextAssembler) writeAudit(content string) error {
	if err := os.MkdirAll(a.auditDir, 0o755); err != nil {
		return err
	}
	stamp := strings.ReplaceAll(a.now().UTC().Format(time.RFC3339Nano), ":", "-")
	path := filepath.Join(a.auditDir, "context-"+stamp+".txt")
	return os.WriteFile(path, []byte(content), 0o644)
}
