package rank

import (
	"context"
	"sort"

	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/internal/retrieval/cache"
)

// Ranker scores a document's chunks against a query vector. Index and
// Remove let backends with their own storage track ingested documents; the
// linear backend reads everything it needs from the cached content.
type Ranker interface {
	Index(ctx context.Context, content *cache.Content) error
	Rank(ctx context.Context, content *cache.Content, queryVector []float32, k int, minScore float32) ([]docModel.RankedResult, error)
	Remove(ctx context.Context, fingerprint string) error
}

// Confidence maps a cosine score onto a 0-100 scale. The mapping is fixed
// so the same score always reports the same confidence.
func Confidence(score float32) float32 {
	c := score * 100
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// CosineSimilarity assumes both vectors are already unit length, so the dot
// product is the whole computation. Mismatched lengths score zero.
func CosineSimilarity(a []float32, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// Linear is the in-process backend: a full scan over the document's cached
// vectors. No external services, exact results.
type Linear struct{}

func NewLinear() *Linear { return &Linear{} }

func (l *Linear) Index(ctx context.Context, content *cache.Content) error { return nil }

func (l *Linear) Remove(ctx context.Context, fingerprint string) error { return nil }

func (l *Linear) Rank(ctx context.Context, content *cache.Content, queryVector []float32, k int, minScore float32) ([]docModel.RankedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var results []docModel.RankedResult
	for i, vec := range content.Vectors {
		if vec == nil {
			continue //skipped during embedding
		}
		score := CosineSimilarity(queryVector, vec)
		if score < minScore {
			continue
		}
		results = append(results, docModel.RankedResult{
			Chunk:      content.Chunks[i],
			Score:      score,
			Confidence: Confidence(score),
		})
	}

	SortResults(results)
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// SortResults orders by score descending; equal scores fall back to page
// then to position within the page, so ranking output is deterministic.
func SortResults(results []docModel.RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.PageIndex != b.Chunk.PageIndex {
			return a.Chunk.PageIndex < b.Chunk.PageIndex
		}
		return a.Chunk.SeqIndex < b.Chunk.SeqIndex
	})
}
