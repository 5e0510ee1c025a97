package retrieval_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/internal/retrieval"
	"github.com/docuqa/docuqa/internal/retrieval/cache"
	"github.com/docuqa/docuqa/internal/retrieval/chunk"
	"github.com/docuqa/docuqa/internal/retrieval/embedding"
	"github.com/docuqa/docuqa/internal/retrieval/rank"
)

func newService(t *testing.T, embedder *MockEmbedder) (retrieval.Service, *cache.Cache) {
	t.Helper()
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	c := cache.New(store, embedder.ModelVersion())
	engine := embedding.NewEngine(embedder, 4, 2)
	svc := retrieval.NewService(chunk.NewBuilder(chunk.Config{}), embedder, engine, c, rank.NewLinear())
	return svc, c
}

func parisPages() []docModel.RawPage {
	return []docModel.RawPage{
		{Index: 0, Text: "Paris is the capital of France. The city sits on the Seine river and has been a major European center for centuries. Its population is around two million people inside the city limits."},
		{Index: 1, Text: "The Eiffel Tower stands in Paris on the Champ de Mars. The tower was completed in 1889 for the World Fair. Visitors climb the Eiffel Tower for views over the whole city."},
		{Index: 2, Text: "French cuisine is famous for bread and cheese. Bakeries sell fresh baguettes every morning across every neighborhood of the country."},
	}
}

func TestIngest_SecondCallServedFromCache(t *testing.T) {
	embedder := &MockEmbedder{}
	svc, _ := newService(t, embedder)
	ctx := context.Background()

	first, err := svc.IngestDocument(ctx, "doc-1", parisPages(), nil)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if first.FromCache {
		t.Error("first ingest reported FromCache")
	}
	if first.ChunkCount == 0 {
		t.Fatal("first ingest produced no chunks")
	}
	callsAfterFirst := embedder.BatchCalls.Load()

	second, err := svc.IngestDocument(ctx, "doc-1", parisPages(), nil)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if !second.FromCache {
		t.Error("second ingest was not served from cache")
	}
	if second.ChunkCount != first.ChunkCount {
		t.Errorf("chunk count changed: %d vs %d", second.ChunkCount, first.ChunkCount)
	}
	if embedder.BatchCalls.Load() != callsAfterFirst {
		t.Error("second ingest hit the embedding backend")
	}
}

func TestIngest_ConcurrentCallsShareOneEmbeddingPass(t *testing.T) {
	embedder := &MockEmbedder{}
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	embedder.OnBatchEmbedding = func(ctx context.Context, chunks []string) ([][]float32, error) {
		once.Do(func() { close(started); <-release })
		out := make([][]float32, len(chunks))
		for i, c := range chunks {
			out[i] = WordHashVector(c)
		}
		return out, nil
	}
	svc, _ := newService(t, embedder)

	var wg sync.WaitGroup
	results := make([]docModel.IngestResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := svc.IngestDocument(context.Background(), "doc-1", parisPages(), nil)
			if err != nil {
				t.Errorf("ingest %d failed: %v", i, err)
			}
			results[i] = r
		}(i)
	}
	<-started
	close(release)
	wg.Wait()

	if results[0].ChunkCount != results[1].ChunkCount {
		t.Errorf("callers saw different chunk counts: %+v vs %+v", results[0], results[1])
	}
	if !results[0].FromCache && !results[1].FromCache {
		t.Error("both callers claim to have run the pipeline")
	}

	// a third ingest proves the embedding pass already happened exactly once
	callsSoFar := embedder.BatchCalls.Load()
	if _, err := svc.IngestDocument(context.Background(), "doc-1", parisPages(), nil); err != nil {
		t.Fatalf("third ingest failed: %v", err)
	}
	if embedder.BatchCalls.Load() != callsSoFar {
		t.Error("ingest after completion hit the embedding backend again")
	}
}

func TestIngest_GarbagePagesReturnErrNoContent(t *testing.T) {
	embedder := &MockEmbedder{}
	svc, _ := newService(t, embedder)
	ctx := context.Background()

	garbage := []docModel.RawPage{
		{Index: 0, Text: "123 456 789 000 111 222"},
		{Index: 1, Text: "..... ----- ....."},
	}

	result, err := svc.IngestDocument(ctx, "scan-junk", garbage, nil)
	if !errors.Is(err, retrieval.ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent", err)
	}
	if result.ChunkCount != 0 {
		t.Errorf("ChunkCount = %d, want 0", result.ChunkCount)
	}
	if embedder.BatchCalls.Load() != 0 {
		t.Error("embedding backend called for a document with no chunks")
	}

	//the empty ingest is still committed: queries answer empty, not "not ingested"
	results, err := svc.AnswerQuery(ctx, "scan-junk", "anything at all", 5, 0.3)
	if err != nil {
		t.Fatalf("query after empty ingest failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("query returned %d results from an empty document", len(results))
	}
}

func TestQuery_BeforeIngest(t *testing.T) {
	svc, _ := newService(t, &MockEmbedder{})

	_, err := svc.AnswerQuery(context.Background(), "ghost-doc", "anything", 5, 0.3)
	if !errors.Is(err, retrieval.ErrDocumentNotIngested) {
		t.Fatalf("err = %v, want ErrDocumentNotIngested", err)
	}
}

func TestQuery_EndToEnd(t *testing.T) {
	embedder := &MockEmbedder{}
	svc, _ := newService(t, embedder)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, "paris", parisPages(), nil); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	results, err := svc.AnswerQuery(ctx, "paris", "Where does the Eiffel Tower stand?", 3, 0.05)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results for a question the document answers")
	}
	if !strings.Contains(results[0].Chunk.Text, "Eiffel") {
		t.Errorf("top result does not mention the Eiffel Tower: %q", results[0].Chunk.Text)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not sorted by score")
		}
	}
	for _, r := range results {
		if r.Confidence < 0 || r.Confidence > 100 {
			t.Errorf("confidence out of range: %f", r.Confidence)
		}
	}
}

func TestQuery_DeterministicAcrossCacheRoundTrip(t *testing.T) {
	embedder := &MockEmbedder{}
	svc, _ := newService(t, embedder)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, "paris", parisPages(), nil); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	first, err := svc.AnswerQuery(ctx, "paris", "capital of France", 5, 0.05)
	if err != nil {
		t.Fatalf("first query failed: %v", err)
	}
	// second call is served from the query cache
	second, err := svc.AnswerQuery(ctx, "paris", "Capital   of  FRANCE", 5, 0.05)
	if err != nil {
		t.Fatalf("second query failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cache round trip changed results:\n%+v\nvs\n%+v", first, second)
	}
}

func TestQuery_RespectsTopKAndMinScore(t *testing.T) {
	embedder := &MockEmbedder{}
	svc, _ := newService(t, embedder)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, "paris", parisPages(), nil); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	one, err := svc.AnswerQuery(ctx, "paris", "Paris Eiffel Tower France city", 1, 0.01)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(one) > 1 {
		t.Errorf("k=1 returned %d results", len(one))
	}

	none, err := svc.AnswerQuery(ctx, "paris", "quantum chromodynamics lattice gauge", 5, 0.99)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("minScore=0.99 returned %d results, want 0", len(none))
	}
}

func TestQuery_StricterParametersIgnoreLooserCachedResults(t *testing.T) {
	embedder := &MockEmbedder{}
	svc, _ := newService(t, embedder)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, "paris", parisPages(), nil); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	question := "Paris Eiffel Tower France city"
	loose, err := svc.AnswerQuery(ctx, "paris", question, 10, 0.01)
	if err != nil {
		t.Fatalf("loose query failed: %v", err)
	}
	if len(loose) == 0 {
		t.Fatal("loose query returned nothing, fixture broken")
	}

	//same question again with stricter parameters
	strict, err := svc.AnswerQuery(ctx, "paris", question, 1, 0.99)
	if err != nil {
		t.Fatalf("strict query failed: %v", err)
	}
	if len(strict) > 1 {
		t.Errorf("k=1 returned %d results", len(strict))
	}
	for _, r := range strict {
		if r.Score < 0.99 {
			t.Errorf("result below requested minScore 0.99: %v", r.Score)
		}
	}
}

func TestInvalidate_RemovesDocument(t *testing.T) {
	embedder := &MockEmbedder{}
	svc, _ := newService(t, embedder)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, "paris", parisPages(), nil); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if _, err := svc.AnswerQuery(ctx, "paris", "capital of France", 5, 0.05); err != nil {
		t.Fatalf("warm-up query failed: %v", err)
	}

	if err := svc.Invalidate(ctx, "paris"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	if _, err := svc.AnswerQuery(ctx, "paris", "capital of France", 5, 0.05); !errors.Is(err, retrieval.ErrDocumentNotIngested) {
		t.Fatalf("query after invalidation: err = %v, want ErrDocumentNotIngested", err)
	}
	if state := svc.State(ctx, "paris"); state != docModel.DocStateUningested {
		t.Errorf("state after invalidation = %s, want uningested", state)
	}
}

func TestIngest_ModelUnavailable(t *testing.T) {
	embedder := &MockEmbedder{}
	embedder.OnBatchEmbedding = func(ctx context.Context, chunks []string) ([][]float32, error) {
		return nil, embedding.ErrModelUnavailable
	}
	svc, c := newService(t, embedder)
	ctx := context.Background()

	_, err := svc.IngestDocument(ctx, "paris", parisPages(), nil)
	if !errors.Is(err, embedding.ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}

	// nothing was committed
	fp := docModel.Fingerprint(parisPages())
	if _, ok := c.GetContent(ctx, fp); ok {
		t.Error("failed ingest left a content entry behind")
	}
	if _, ok := c.ResolveDocument(ctx, "paris"); ok {
		t.Error("failed ingest left an id binding behind")
	}
}

func TestIngest_ReportsProgress(t *testing.T) {
	embedder := &MockEmbedder{}
	svc, _ := newService(t, embedder)

	var mu sync.Mutex
	var seen []docModel.Progress
	observer := docModel.ProgressFunc(func(p docModel.Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})

	if _, err := svc.IngestDocument(context.Background(), "paris", parisPages(), observer); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(seen) == 0 {
		t.Fatal("observer never called")
	}
	last := seen[len(seen)-1]
	if last.PagesDone != last.PagesTotal || last.PagesTotal != len(parisPages()) {
		t.Errorf("final progress %+v, want all %d pages done", last, len(parisPages()))
	}
}

func TestIngest_ChangedContentRebindsDocument(t *testing.T) {
	embedder := &MockEmbedder{}
	svc, c := newService(t, embedder)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, "doc", parisPages(), nil); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	oldFp := docModel.Fingerprint(parisPages())

	newPages := []docModel.RawPage{{Index: 0, Text: "Completely different content now. The document was rescanned with better OCR settings this time around."}}
	if _, err := svc.IngestDocument(ctx, "doc", newPages, nil); err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}

	if _, ok := c.GetContent(ctx, oldFp); ok {
		t.Error("previous fingerprint's content survived the rebind")
	}
	if fp, _ := c.ResolveDocument(ctx, "doc"); fp != docModel.Fingerprint(newPages) {
		t.Errorf("binding points at %s, want the new fingerprint", fp)
	}
}
