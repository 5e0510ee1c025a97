package qdrantRank

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/internal/retrieval/cache"
	"github.com/docuqa/docuqa/internal/retrieval/rank"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

var logger *logger_i.Logger
var qdrantInstance *qdrant.Client
var once sync.Once
var dimension = uint64(config.EmbeddingOutputDimensionality)

var _ rank.Ranker = (*Index)(nil)

// Index keeps one qdrant collection per document fingerprint, so Remove can
// drop a document without touching the others.
type Index struct {
	qObj *qdrant.Client
}

func GetQdrantIndex(ctx context.Context) *Index {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient()
		if res != nil {
			qdrantInstance = res
			go closeQdrant(ctx, qdrantInstance)
		}
	})

	if qdrantInstance == nil {
		return nil
	}
	return &Index{qObj: qdrantInstance}
}

func newClient() *qdrant.Client {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.QdrantHost,
		Port:   config.QdrantPort,
		UseTLS: config.QdrantUseTLS,
	})
	if err != nil {
		logger.Error("could not instantiate: ", "error:", err)
		return nil
	}
	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
	logger.Info("Closed Qdrant")
}

func collectionFor(fingerprint string) string {
	return "doc_" + fingerprint
}

func (db *Index) Index(ctx context.Context, content *cache.Content) error {
	if err := db.createCollection(ctx, collectionFor(content.Fingerprint)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(content.Chunks))
	for i, chunk := range content.Chunks {
		if content.Vectors[i] == nil {
			continue //skipped during embedding
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.ContentHash)).String()),
			Vectors: qdrant.NewVectors(content.Vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":    chunk.Text,
				"page_index": int64(chunk.PageIndex),
				"seq_index":  int64(chunk.SeqIndex),
				"chunk_hash": chunk.ContentHash,
			}),
		})
	}
	if len(points) == 0 {
		return nil
	}

	_, err := db.qObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionFor(content.Fingerprint),
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (db *Index) Rank(ctx context.Context, content *cache.Content, queryVector []float32, k int, minScore float32) ([]docModel.RankedResult, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	result, err := db.qObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionFor(content.Fingerprint),
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		ScoreThreshold: qdrant.PtrOf(minScore),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant: ", "error:", err)
		return nil, err
	}

	var results []docModel.RankedResult
	for _, hit := range result {
		results = append(results, docModel.RankedResult{
			Chunk: docModel.Chunk{
				DocFingerprint: content.Fingerprint,
				PageIndex:      int(hit.Payload["page_index"].GetIntegerValue()),
				SeqIndex:       int(hit.Payload["seq_index"].GetIntegerValue()),
				Text:           hit.Payload["content"].GetStringValue(),
				ContentHash:    hit.Payload["chunk_hash"].GetStringValue(),
			},
			Score:      hit.Score,
			Confidence: rank.Confidence(hit.Score),
		})
	}

	// qdrant breaks score ties by point id; re-sort for document order.
	rank.SortResults(results)
	return results, nil
}

func (db *Index) Remove(ctx context.Context, fingerprint string) error {
	return db.qObj.DeleteCollection(ctx, collectionFor(fingerprint))
}

func (db *Index) createCollection(ctx context.Context, collectionName string) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := db.qObj.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return db.qObj.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
