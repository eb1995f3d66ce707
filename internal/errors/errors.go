// Package errors defines the retrieval error taxonomy shared across pinpoint.
//
// The taxonomy distinguishes caller errors (InvalidConfig), contract
// violations (DimensionMismatch), transient backend failures
// (EmbeddingUnavailable, LexicalUnavailable) that trigger degraded
// single-mode search, and hard failures (SearchUnavailable, SearchTimeout)
// that are surfaced to the caller.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval core. Callers match with errors.Is.
var (
	// ErrInvalidConfig indicates bad chunking, fusion, or search parameters.
	// Caller error, never retried.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingUnavailable indicates a transient embedder failure.
	// Search degrades to lexical-only rather than failing the query.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrLexicalUnavailable indicates a transient lexical index failure.
	// Search degrades to vector-only rather than failing the query.
	ErrLexicalUnavailable = errors.New("lexical backend unavailable")

	// ErrSearchUnavailable indicates both search backends are down.
	// Surfaced to the caller as a hard failure.
	ErrSearchUnavailable = errors.New("search unavailable: all backends failed")

	// ErrSearchTimeout indicates the per-query deadline fired before any
	// sub-search completed. If at least one sub-search completed, partial
	// results are returned instead of this error. Always surfaced wrapped
	// together with ErrSearchUnavailable, so callers matching either
	// sentinel see it.
	ErrSearchTimeout = errors.New("search timed out")
)

// DimensionMismatchError indicates a vector whose dimensionality does not
// match the index. It signals an embedder/index version mismatch and is
// fatal to the ingestion of the affected document.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// IsDimensionMismatch reports whether err is a DimensionMismatchError.
func IsDimensionMismatch(err error) bool {
	var dm *DimensionMismatchError
	return errors.As(err, &dm)
}

// ChunkingError wraps a failure to split a document into chunks.
// Non-fatal to the service; the caller may retry the document.
type ChunkingError struct {
	DocID string
	Err   error
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunking document %s: %v", e.DocID, e.Err)
}

func (e *ChunkingError) Unwrap() error { return e.Err }

// EmbeddingError wraps a failure to embed a document's chunks during
// ingestion. Non-fatal to the service; the caller may retry the document.
type EmbeddingError struct {
	DocID string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding document %s: %v", e.DocID, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// InvalidConfig builds an ErrInvalidConfig with a formatted reason.
func InvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether the error represents a transient backend
// failure worth retrying. Config and contract errors are not retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrLexicalUnavailable) ||
		errors.Is(err, ErrSearchTimeout)
}
