package retrieval_test

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"sync/atomic"

	"github.com/docuqa/docuqa/internal/retrieval/embedding"
)

// MockEmbedder implements embedding.Embedder. Its default vectors are a
// deterministic bag-of-words hash, so texts sharing words land near each
// other and every test run ranks identically without a live backend.
type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string) ([][]float32, error)

	BatchCalls atomic.Int32
}

func (m *MockEmbedder) ModelVersion() string { return "mock-v1" }

func (m *MockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, text)
	}
	return WordHashVector(text), nil
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	m.BatchCalls.Add(1)
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks)
	}
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		out[i] = WordHashVector(c)
	}
	return out, nil
}

// WordHashVector buckets each lowercased word into one of 64 dimensions.
// Shared vocabulary means overlapping buckets means higher cosine.
func WordHashVector(text string) []float32 {
	vec := make([]float32, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(strings.Trim(word, ".,!?;:")))
		bucket := binary.LittleEndian.Uint32(sum[:4]) % 64
		vec[bucket]++
	}
	return embedding.L2Normalize(vec)
}
