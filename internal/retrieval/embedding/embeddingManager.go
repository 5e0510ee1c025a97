package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrModelUnavailable means the embedding backend never came up. It is
// signaled once per process by a backend whose initialization failed and is
// never retried per call; any operation needing embeddings fails fast on it.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// EmbeddingError marks a failure scoped to one batch. The engine reacts with
// isolate-and-continue: halve the batch, retry, and ultimately skip single
// offending items rather than abort the document.
type EmbeddingError struct {
	BatchStart int
	BatchSize  int
	Err        error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch [%d..%d) failed: %v", e.BatchStart, e.BatchStart+e.BatchSize, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Embedder is the process-wide embedding backend. Implementations must be
// safe for concurrent batch submissions and deterministic for a fixed model
// version: the same text yields the same vector within a run.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error)

	// ModelVersion tags cache entries; changing the model silently
	// invalidates everything computed under the old one.
	ModelVersion() string
}

// L2Normalize returns v scaled to unit length. Zero vectors come back
// unchanged so cosine against them is simply 0.
func L2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
