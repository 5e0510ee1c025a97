package rank

import (
	"context"
	"math"
	"testing"

	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/internal/retrieval/cache"
)

func contentWith(vectors [][]float32) *cache.Content {
	c := &cache.Content{Fingerprint: "fp", Vectors: vectors}
	for i := range vectors {
		c.Chunks = append(c.Chunks, docModel.Chunk{
			DocFingerprint: "fp",
			PageIndex:      i / 2,
			SeqIndex:       i % 2,
			Text:           "chunk",
		})
	}
	return c
}

func TestLinearRank_OrdersByScore(t *testing.T) {
	content := contentWith([][]float32{
		{0, 1},                  //orthogonal to query
		{1, 0},                  //exact match
		{0.7071068, 0.7071068},  //45 degrees
	})

	results, err := NewLinear().Rank(context.Background(), content, []float32{1, 0}, 5, 0.3)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (orthogonal chunk below minScore)", len(results))
	}
	if results[0].Chunk.SeqIndex != 1 || results[1].Chunk.PageIndex != 1 {
		t.Errorf("wrong order: %+v", results)
	}
	if math.Abs(float64(results[0].Score)-1) > 1e-5 {
		t.Errorf("top score = %f, want 1", results[0].Score)
	}
}

func TestLinearRank_TopKCutoff(t *testing.T) {
	content := contentWith([][]float32{
		{1, 0}, {0.9, 0.4358899}, {0.8, 0.6}, {0.7, 0.7141428},
	})

	results, err := NewLinear().Rank(context.Background(), content, []float32{1, 0}, 2, 0)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Error("results not descending")
	}
}

func TestLinearRank_SkipsNilVectors(t *testing.T) {
	content := contentWith([][]float32{{1, 0}, nil, {0.9, 0.4358899}})

	results, err := NewLinear().Rank(context.Background(), content, []float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestLinearRank_TieBreakByPageThenSeq(t *testing.T) {
	vec := []float32{1, 0}
	content := &cache.Content{
		Fingerprint: "fp",
		Chunks: []docModel.Chunk{
			{PageIndex: 2, SeqIndex: 0, Text: "late page"},
			{PageIndex: 0, SeqIndex: 1, Text: "early page second chunk"},
			{PageIndex: 0, SeqIndex: 0, Text: "early page first chunk"},
		},
		Vectors: [][]float32{vec, vec, vec},
	}

	results, err := NewLinear().Rank(context.Background(), content, vec, 5, 0)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	want := []struct{ page, seq int }{{0, 0}, {0, 1}, {2, 0}}
	for i, w := range want {
		if results[i].Chunk.PageIndex != w.page || results[i].Chunk.SeqIndex != w.seq {
			t.Errorf("result %d = page %d seq %d, want page %d seq %d",
				i, results[i].Chunk.PageIndex, results[i].Chunk.SeqIndex, w.page, w.seq)
		}
	}
}

func TestConfidence_Clamped(t *testing.T) {
	cases := []struct {
		score float32
		want  float32
	}{
		{score: 1.0, want: 100},
		{score: 0.5, want: 50},
		{score: 0, want: 0},
		{score: -0.3, want: 0},
		{score: 1.2, want: 100}, //float drift above 1
	}
	for _, tc := range cases {
		if got := Confidence(tc.score); got != tc.want {
			t.Errorf("Confidence(%f) = %f, want %f", tc.score, got, tc.want)
		}
	}
}

func TestCosineSimilarity_LengthMismatch(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths scored %f, want 0", got)
	}
}
