package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors for the answer pipeline. Callers classify failures with
// [errors.Is]; the concrete cause stays wrapped underneath.
var (
	// ErrRetrievalUnavailable reports that the vector store or the query
	// embedder could not be reached. Retrieval is not retried automatically.
	ErrRetrievalUnavailable = errors.New("rag: retrieval backend unavailable")

	// ErrGenerationUnavailable reports that the language model backend could
	// not be reached before any output was produced.
	ErrGenerationUnavailable = errors.New("rag: generation backend unavailable")

	// ErrGenerationInterrupted reports that a generation stream failed after
	// producing at least one fragment.
	ErrGenerationInterrupted = errors.New("rag: generation interrupted mid-stream")

	// ErrTemplateFetch reports that an explicitly configured prompt template
	// could not be loaded. Fatal at startup.
	ErrTemplateFetch = errors.New("rag: prompt template fetch failed")

	// ErrAuditWrite reports that persisting an assembled context to the audit
	// directory failed. Never fatal: the answer flow continues.
	ErrAuditWrite = errors.New("rag: context audit write failed")
)

// Stage names one phase of the answer pipeline.
type Stage string

const (
	StageReceived   Stage = "received"
	StageRetrieving Stage = "retrieving"
	StageAssembling Stage = "assembling"
	StagePrompting  Stage = "prompting"
	StageGenerating Stage = "generating"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// StageError tags a pipeline failure with the stage it occurred in, so
// callers and logs can tell a retrieval outage from a generation outage
// without string matching.
type StageError struct {
	// Stage is the pipeline phase that failed.
	Stage Stage

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("rag: pipeline stage %s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}
