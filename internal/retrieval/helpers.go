package retrieval

import (
	"context"
	"time"

	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/internal/metrics"
	"github.com/docuqa/docuqa/internal/retrieval/cache"
	"github.com/docuqa/docuqa/internal/retrieval/embedding"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

func applyQueryDefaults(k int, minScore float32) (int, float32) {
	if k <= 0 {
		k = config.DefaultTopK
	}
	if minScore <= 0 {
		minScore = config.DefaultMinScore
	}
	return k, minScore
}

// runIngest is the miss path: build chunks, embed them, commit everything
// at once. It runs inside singleflight, so one execution per fingerprint.
func (s *service) runIngest(ctx context.Context, fingerprint string, pages []docModel.RawPage, observer docModel.ProgressObserver, start time.Time) (docModel.IngestResult, error) {
	log := s.logger.With("fingerprint", fingerprint)

	if cached, ok := s.cache.GetContent(ctx, fingerprint); ok {
		log.Debug("Ingestion served from cache")
		result := docModel.IngestResult{
			Fingerprint:   fingerprint,
			PageCount:     cached.PageCount,
			ChunkCount:    len(cached.Chunks),
			EmbeddedCount: len(cached.Chunks) - cached.SkippedCount,
			SkippedCount:  cached.SkippedCount,
			FromCache:     true,
		}
		if len(cached.Chunks) == 0 {
			return result, ErrNoContent
		}
		return result, nil
	}

	chunks := s.builder.Build(pages)
	log.Debug("Chunking finished", "pages", len(pages), "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	outcome, err := s.engine.EmbedAll(ctx, texts, progressRelay(observer, len(pages), start))
	if err != nil {
		return docModel.IngestResult{}, err
	}

	// commit nothing on a cancelled ingest
	if err := ctx.Err(); err != nil {
		return docModel.IngestResult{}, err
	}

	content := cache.Content{
		Fingerprint:  fingerprint,
		PageCount:    len(pages),
		Chunks:       chunks,
		Vectors:      outcome.Vectors,
		SkippedCount: outcome.Skipped,
	}
	if err := s.cache.PutContent(ctx, content); err != nil {
		return docModel.IngestResult{}, err
	}
	if err := s.ranker.Index(ctx, &content); err != nil {
		log.Warn("Ranker indexing failed, linear scan still works off the cache", "error", err)
	}

	result := docModel.IngestResult{
		Fingerprint:   fingerprint,
		PageCount:     len(pages),
		ChunkCount:    len(chunks),
		EmbeddedCount: len(chunks) - outcome.Skipped,
		SkippedCount:  outcome.Skipped,
	}
	// the empty entry is still committed: queries against this document
	// answer with no results instead of "not ingested"
	if len(chunks) == 0 {
		return result, ErrNoContent
	}
	return result, nil
}

// progressRelay rescales batch completion onto page counts and adds a
// naive remaining-time estimate from the elapsed average.
func progressRelay(observer docModel.ProgressObserver, pagesTotal int, start time.Time) func(done int, total int) {
	if observer == nil {
		return nil
	}
	return func(done int, total int) {
		elapsed := time.Since(start).Seconds()
		var eta float64
		if done > 0 {
			eta = elapsed / float64(done) * float64(total-done)
		}
		observer.OnProgress(docModel.Progress{
			PagesDone:                 pagesTotal * done / total,
			PagesTotal:                pagesTotal,
			ElapsedSeconds:            elapsed,
			EstimatedSecondsRemaining: eta,
		})
	}
}

// rebind points docID at the new fingerprint. When the document's content
// changed since the last ingest the old fingerprint's entries go away, so
// stale results cannot be served under this id.
func (s *service) rebind(ctx context.Context, docID string, fingerprint string, log *logger_i.Logger) error {
	if previous, ok := s.cache.ResolveDocument(ctx, docID); ok && previous != fingerprint {
		log.Info("Document content changed, invalidating previous ingest", "previous", previous)
		if err := s.ranker.Remove(ctx, previous); err != nil {
			log.Warn("Ranker cleanup failed", "fingerprint", previous, "error", err)
		}
		if err := s.cache.Invalidate(ctx, previous); err != nil {
			log.Warn("Could not invalidate previous fingerprint", "error", err)
		}
	}
	return s.cache.BindDocument(ctx, docID, fingerprint)
}

func (s *service) executeEmbeddingStep(ctx context.Context, query string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("query_embedding", time.Since(start)) }()

	vec, err := s.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	return embedding.L2Normalize(vec), nil
}

func (s *service) executeRankingStep(ctx context.Context, content *cache.Content, queryVector []float32, k int, minScore float32) ([]docModel.RankedResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("ranking", time.Since(start)) }()

	return s.ranker.Rank(ctx, content, queryVector, k, minScore)
}
