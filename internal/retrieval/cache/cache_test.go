package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docuqa/docuqa/internal/domain/docModel"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return New(store, "test-model-v1")
}

func sampleContent(fingerprint string) Content {
	return Content{
		Fingerprint: fingerprint,
		PageCount:   2,
		Chunks: []docModel.Chunk{
			{DocFingerprint: fingerprint, PageIndex: 0, SeqIndex: 0, Text: "Paris is the capital of France."},
			{DocFingerprint: fingerprint, PageIndex: 1, SeqIndex: 0, Text: "The Eiffel Tower is in Paris."},
		},
		Vectors: [][]float32{
			{0.1, 0.2, 0.3},
			{0.4, 0.5, 0.6},
		},
	}
}

func TestContentCache_Roundtrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	fp := "fp-roundtrip"

	if _, found := c.GetContent(ctx, fp); found {
		t.Fatal("expected miss before put")
	}

	want := sampleContent(fp)
	if err := c.PutContent(ctx, want); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}

	got, found := c.GetContent(ctx, fp)
	if !found {
		t.Fatal("expected hit after put")
	}
	if len(got.Chunks) != len(want.Chunks) || got.PageCount != want.PageCount {
		t.Errorf("content mismatch: got %+v", got)
	}
	for i := range want.Vectors {
		for j := range want.Vectors[i] {
			if got.Vectors[i][j] != want.Vectors[i][j] {
				t.Errorf("vector[%d][%d] = %f, want %f", i, j, got.Vectors[i][j], want.Vectors[i][j])
			}
		}
	}
}

func TestContentCache_SkippedVectorSlots(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	content := sampleContent("fp-skipped")
	content.Vectors[1] = nil
	content.SkippedCount = 1
	if err := c.PutContent(ctx, content); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}

	got, found := c.GetContent(ctx, "fp-skipped")
	if !found {
		t.Fatal("expected hit")
	}
	if got.Vectors[0] == nil || got.Vectors[1] != nil {
		t.Errorf("skipped slot not preserved: %v", got.Vectors)
	}
	if got.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", got.SkippedCount)
	}
}

func TestCache_ModelVersionMismatchIsMiss(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	ctx := context.Background()

	old := New(store, "model-v1")
	if err := old.PutContent(ctx, sampleContent("fp-ver")); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}

	//same store, new embedding model
	upgraded := New(store, "model-v2")
	if _, found := upgraded.GetContent(ctx, "fp-ver"); found {
		t.Error("entry written under old model version must read as miss")
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	c := New(store, "m")
	ctx := context.Background()

	if err := c.PutContent(ctx, sampleContent("fp-corrupt")); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}
	//scribble over the committed file
	path := filepath.Join(dir, "content", "fp-corrupt")
	if err := os.WriteFile(path, []byte("{not json"), 0o640); err != nil {
		t.Fatalf("corrupting file: %v", err)
	}

	if _, found := c.GetContent(ctx, "fp-corrupt"); found {
		t.Error("corrupt entry must read as miss, not an error")
	}
}

func TestQueryCache_RoundtripAndNormalization(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	fp := "fp-query"

	results := []docModel.RankedResult{
		{Chunk: docModel.Chunk{PageIndex: 0, SeqIndex: 0, Text: "Paris is the capital of France."}, Score: 0.82, Confidence: 82},
	}
	norm := docModel.NormalizeText("  Capital   OF France ")
	c.PutResults(ctx, fp, norm, 5, 0.3, results)

	got, found := c.GetResults(ctx, fp, docModel.NormalizeText("capital of france"), 5, 0.3)
	if !found {
		t.Fatal("normalized query variants must share one entry")
	}
	if len(got) != 1 || got[0].Score != 0.82 {
		t.Errorf("results mismatch: %+v", got)
	}
}

func TestQueryCache_KeyedByParameters(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	fp := "fp-params"

	loose := []docModel.RankedResult{
		{Chunk: docModel.Chunk{Text: "a"}, Score: 0.22, Confidence: 22},
		{Chunk: docModel.Chunk{Text: "b"}, Score: 0.09, Confidence: 9},
	}
	c.PutResults(ctx, fp, "capital of france", 10, 0.01, loose)

	if _, found := c.GetResults(ctx, fp, "capital of france", 1, 0.99); found {
		t.Fatal("results cached under loose parameters must not satisfy a stricter call")
	}
	if _, found := c.GetResults(ctx, fp, "capital of france", 10, 0.01); !found {
		t.Fatal("same parameters must still hit")
	}
}

func TestCache_InvalidateRemovesContentAndDerivedQueries(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	fp, other := "fp-dead", "fp-alive"

	for _, f := range []string{fp, other} {
		if err := c.PutContent(ctx, sampleContent(f)); err != nil {
			t.Fatalf("PutContent(%s) failed: %v", f, err)
		}
		c.PutResults(ctx, f, "capital of france", 5, 0.3, []docModel.RankedResult{{Score: 0.5, Confidence: 50}})
		c.PutResults(ctx, f, "eiffel tower", 5, 0.3, []docModel.RankedResult{{Score: 0.6, Confidence: 60}})
	}

	if err := c.Invalidate(ctx, fp); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if _, found := c.GetContent(ctx, fp); found {
		t.Error("content entry survived invalidation")
	}
	for _, q := range []string{"capital of france", "eiffel tower"} {
		if _, found := c.GetResults(ctx, fp, q, 5, 0.3); found {
			t.Errorf("query entry %q survived invalidation", q)
		}
	}

	//the other document is untouched
	if _, found := c.GetContent(ctx, other); !found {
		t.Error("invalidation leaked into another fingerprint")
	}
	if _, found := c.GetResults(ctx, other, "capital of france", 5, 0.3); !found {
		t.Error("invalidation removed another document's query entries")
	}
}

func TestCache_ClearQueriesLeavesContent(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for _, fp := range []string{"fp-a", "fp-b"} {
		if err := c.PutContent(ctx, sampleContent(fp)); err != nil {
			t.Fatalf("PutContent(%s) failed: %v", fp, err)
		}
		c.PutResults(ctx, fp, "capital of france", 5, 0.3, []docModel.RankedResult{{Score: 0.5, Confidence: 50}})
	}

	if err := c.ClearQueries(ctx); err != nil {
		t.Fatalf("ClearQueries failed: %v", err)
	}

	for _, fp := range []string{"fp-a", "fp-b"} {
		if _, found := c.GetResults(ctx, fp, "capital of france", 5, 0.3); found {
			t.Errorf("query entry for %s survived ClearQueries", fp)
		}
		if _, found := c.GetContent(ctx, fp); !found {
			t.Errorf("content entry for %s removed by ClearQueries", fp)
		}
	}

	//idempotent on an already-empty namespace
	if err := c.ClearQueries(ctx); err != nil {
		t.Fatalf("second ClearQueries failed: %v", err)
	}
}

func TestCache_DocumentBinding(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if _, found := c.ResolveDocument(ctx, "report.pdf"); found {
		t.Fatal("unexpected binding")
	}
	if err := c.BindDocument(ctx, "report.pdf", "fp-1"); err != nil {
		t.Fatalf("BindDocument failed: %v", err)
	}
	fp, found := c.ResolveDocument(ctx, "report.pdf")
	if !found || fp != "fp-1" {
		t.Errorf("ResolveDocument = (%q, %v), want (fp-1, true)", fp, found)
	}

	//re-ingest with changed content rebinds
	if err := c.BindDocument(ctx, "report.pdf", "fp-2"); err != nil {
		t.Fatalf("rebind failed: %v", err)
	}
	if fp, _ := c.ResolveDocument(ctx, "report.pdf"); fp != "fp-2" {
		t.Errorf("ResolveDocument after rebind = %q, want fp-2", fp)
	}

	c.UnbindDocument(ctx, "report.pdf")
	if _, found := c.ResolveDocument(ctx, "report.pdf"); found {
		t.Error("binding survived unbind")
	}
}

func TestFileStore_AtomicTempFilesInvisible(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	ctx := context.Background()

	//a leftover temp file from a crashed writer must not show up in List
	if err := os.MkdirAll(filepath.Join(dir, "content"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "content", ".tmp-123"), []byte("partial"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "content/fp", []byte("committed")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	keys, err := store.List(ctx, "content/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, k := range keys {
		if strings.Contains(k, ".tmp-") {
			t.Errorf("temp file visible in listing: %s", k)
		}
	}
	if len(keys) != 1 || keys[0] != "content/fp" {
		t.Errorf("List = %v, want [content/fp]", keys)
	}
}
