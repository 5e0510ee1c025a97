package retrieval

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/internal/metrics"
	"github.com/docuqa/docuqa/internal/retrieval/cache"
	"github.com/docuqa/docuqa/internal/retrieval/chunk"
	"github.com/docuqa/docuqa/internal/retrieval/embedding"
	"github.com/docuqa/docuqa/internal/retrieval/rank"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

var (
	// ErrDocumentNotIngested is user-correctable: ingest first, then query.
	ErrDocumentNotIngested = errors.New("document not ingested")

	// ErrNoContent marks a document whose pages yielded nothing retrievable.
	ErrNoContent = errors.New("no content extracted")
)

// Service is the whole pipeline behind one interface. The worker calls this
// and never touches the builder, the embedder or the caches directly.
type Service interface {
	IngestDocument(ctx context.Context, docID string, pages []docModel.RawPage, observer docModel.ProgressObserver) (docModel.IngestResult, error)
	AnswerQuery(ctx context.Context, docID string, query string, k int, minScore float32) ([]docModel.RankedResult, error)
	Invalidate(ctx context.Context, docID string) error
	State(ctx context.Context, docID string) docModel.DocState
}

type service struct {
	builder  *chunk.Builder
	embedder embedding.Embedder
	engine   *embedding.Engine
	cache    *cache.Cache
	ranker   rank.Ranker
	logger   *logger_i.Logger

	flight    singleflight.Group
	ingesting sync.Map //docID -> struct{}
}

// NewService constructor
func NewService(builder *chunk.Builder, embedder embedding.Embedder, engine *embedding.Engine, c *cache.Cache, ranker rank.Ranker) Service {
	return &service{
		builder:  builder,
		embedder: embedder,
		engine:   engine,
		cache:    c,
		ranker:   ranker,
		logger:   logger_i.NewLogger("Retrieval Service :"),
	}
}

// IngestDocument chunks, embeds and commits a document. The second call
// with the same content is a cache hit and does no embedding work; two
// concurrent calls with the same content share one embedding pass. Nothing
// is committed on cancellation. Only the call that actually runs the
// pipeline drives the observer.
func (s *service) IngestDocument(ctx context.Context, docID string, pages []docModel.RawPage, observer docModel.ProgressObserver) (docModel.IngestResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()

	fingerprint := docModel.Fingerprint(pages)
	log := s.logger.With("docId", docID, "fingerprint", fingerprint)

	s.ingesting.Store(docID, struct{}{})
	defer s.ingesting.Delete(docID)

	v, err, shared := s.flight.Do(fingerprint, func() (interface{}, error) {
		return s.runIngest(ctx, fingerprint, pages, observer, start)
	})
	noContent := errors.Is(err, ErrNoContent)
	if err != nil && !noContent {
		return docModel.IngestResult{}, err
	}

	result := v.(docModel.IngestResult)
	if shared {
		log.Debug("Joined in-flight ingestion")
		result.FromCache = true
	}

	if err := s.rebind(ctx, docID, fingerprint, log); err != nil {
		return docModel.IngestResult{}, err
	}
	result.Elapsed = time.Since(start)
	if noContent {
		// the binding and the empty entry are committed; the sentinel
		// tells the caller the document yielded nothing retrievable
		return result, ErrNoContent
	}
	return result, nil
}

// AnswerQuery ranks a document's chunks against the question. Results come
// from the query cache when the same normalized question was asked before.
func (s *service) AnswerQuery(ctx context.Context, docID string, query string, k int, minScore float32) ([]docModel.RankedResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("answer_query", time.Since(start)) }()

	log := s.logger.With("docId", docID)

	fingerprint, ok := s.cache.ResolveDocument(ctx, docID)
	if !ok {
		return nil, ErrDocumentNotIngested
	}

	k, minScore = applyQueryDefaults(k, minScore)
	normQuery := docModel.NormalizeText(query)
	if normQuery == "" {
		return []docModel.RankedResult{}, nil
	}

	if results, ok := s.cache.GetResults(ctx, fingerprint, normQuery, k, minScore); ok {
		log.Debug("Query served from cache")
		return results, nil
	}

	content, ok := s.cache.GetContent(ctx, fingerprint)
	if !ok {
		// binding survived but content was invalidated underneath it
		return nil, ErrDocumentNotIngested
	}
	if len(content.Chunks) == 0 {
		return []docModel.RankedResult{}, nil
	}

	queryVector, err := s.executeEmbeddingStep(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := s.executeRankingStep(ctx, &content, queryVector, k, minScore)
	if err != nil {
		return nil, err
	}

	s.cache.PutResults(ctx, fingerprint, normQuery, k, minScore, results)
	return results, nil
}

// Invalidate drops the document's content entry, every query entry derived
// from it and the id binding, and tells the ranker to forget the document.
func (s *service) Invalidate(ctx context.Context, docID string) error {
	fingerprint, ok := s.cache.ResolveDocument(ctx, docID)
	if !ok {
		return ErrDocumentNotIngested
	}

	if err := s.ranker.Remove(ctx, fingerprint); err != nil {
		s.logger.Warn("Ranker cleanup failed", "fingerprint", fingerprint, "error", err)
	}
	if err := s.cache.Invalidate(ctx, fingerprint); err != nil {
		return err
	}
	s.cache.UnbindDocument(ctx, docID)
	return nil
}

func (s *service) State(ctx context.Context, docID string) docModel.DocState {
	if _, busy := s.ingesting.Load(docID); busy {
		return docModel.DocStateIngesting
	}
	if fingerprint, ok := s.cache.ResolveDocument(ctx, docID); ok {
		if _, ok := s.cache.GetContent(ctx, fingerprint); ok {
			return docModel.DocStateIngested
		}
	}
	return docModel.DocStateUningested
}
