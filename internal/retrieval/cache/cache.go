package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/internal/metrics"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

// Cache owns the two durable namespaces: content (fingerprint -> chunks +
// embeddings) and query ((fingerprint, normalized query) -> ranked results),
// plus the documentId -> fingerprint binding. Keeping them on one type is
// what makes Invalidate reliable: query entries can never outlive the
// content entry they reference.
//
// Every entry carries a schema and embedding-model version. A mismatch reads
// as a miss, never an error; the caller recomputes and overwrites. Store
// errors are likewise demoted to misses.
type Cache struct {
	store        Store
	modelVersion string
	logger       *logger_i.Logger
}

func New(store Store, modelVersion string) *Cache {
	return &Cache{
		store:        store,
		modelVersion: modelVersion,
		logger:       logger_i.NewLogger("Cache"),
	}
}

// Content is a decoded content-cache entry. Vectors align 1:1 with Chunks;
// a nil vector marks a chunk whose embedding batch was skipped.
type Content struct {
	Fingerprint  string
	PageCount    int
	Chunks       []docModel.Chunk
	Vectors      [][]float32
	SkippedCount int
}

type contentEntry struct {
	SchemaVersion int              `json:"schema_version"`
	ModelVersion  string           `json:"model_version"`
	Fingerprint   string           `json:"fingerprint"`
	PageCount     int              `json:"page_count"`
	Chunks        []docModel.Chunk `json:"chunks"`
	Vectors       [][]byte         `json:"vectors"`
	SkippedCount  int              `json:"skipped_count"`
	CreatedAt     time.Time        `json:"created_at"`
}

type queryEntry struct {
	SchemaVersion int                     `json:"schema_version"`
	ModelVersion  string                  `json:"model_version"`
	Results       []docModel.RankedResult `json:"results"`
	CachedAt      time.Time               `json:"cached_at"`
}

func (c *Cache) GetContent(ctx context.Context, fingerprint string) (Content, bool) {
	data, err := c.store.Get(ctx, contentKey(fingerprint))
	if err != nil {
		c.miss(ctx, "content", err)
		return Content{}, false
	}

	var entry contentEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.miss(ctx, "content", fmt.Errorf("corrupt entry: %w", err))
		return Content{}, false
	}
	if entry.SchemaVersion != config.CacheSchemaVersion || entry.ModelVersion != c.modelVersion {
		//model or layout changed underneath the cache; silently recompute
		metrics.IncrementCacheLookup("content", "miss")
		return Content{}, false
	}

	vectors := make([][]float32, len(entry.Vectors))
	for i, blob := range entry.Vectors {
		if len(blob) == 0 {
			continue
		}
		vec, err := bytesToVector(blob)
		if err != nil {
			c.miss(ctx, "content", err)
			return Content{}, false
		}
		vectors[i] = vec
	}

	metrics.IncrementCacheLookup("content", "hit")
	return Content{
		Fingerprint:  entry.Fingerprint,
		PageCount:    entry.PageCount,
		Chunks:       entry.Chunks,
		Vectors:      vectors,
		SkippedCount: entry.SkippedCount,
	}, true
}

// PutContent commits a full content entry in one atomic write. Unlike query
// writes this error is surfaced: without a committed content entry there is
// nothing to answer queries from.
func (c *Cache) PutContent(ctx context.Context, content Content) error {
	blobs := make([][]byte, len(content.Vectors))
	for i, vec := range content.Vectors {
		if vec != nil {
			blobs[i] = vectorToBytes(vec)
		}
	}

	data, err := json.Marshal(contentEntry{
		SchemaVersion: config.CacheSchemaVersion,
		ModelVersion:  c.modelVersion,
		Fingerprint:   content.Fingerprint,
		PageCount:     content.PageCount,
		Chunks:        content.Chunks,
		Vectors:       blobs,
		SkippedCount:  content.SkippedCount,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("encoding content entry: %w", err)
	}
	if err := c.store.Set(ctx, contentKey(content.Fingerprint), data); err != nil {
		return fmt.Errorf("committing content entry: %w", err)
	}
	return nil
}

func (c *Cache) GetResults(ctx context.Context, fingerprint, normQuery string, k int, minScore float32) ([]docModel.RankedResult, bool) {
	data, err := c.store.Get(ctx, queryKey(fingerprint, normQuery, k, minScore))
	if err != nil {
		c.miss(ctx, "query", err)
		return nil, false
	}
	var entry queryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.miss(ctx, "query", fmt.Errorf("corrupt entry: %w", err))
		return nil, false
	}
	if entry.SchemaVersion != config.CacheSchemaVersion || entry.ModelVersion != c.modelVersion {
		metrics.IncrementCacheLookup("query", "miss")
		return nil, false
	}
	metrics.IncrementCacheLookup("query", "hit")
	return entry.Results, true
}

// PutResults memoizes a ranked result set. A failed write costs a future
// recomputation, nothing more, so it only logs.
func (c *Cache) PutResults(ctx context.Context, fingerprint, normQuery string, k int, minScore float32, results []docModel.RankedResult) {
	data, err := json.Marshal(queryEntry{
		SchemaVersion: config.CacheSchemaVersion,
		ModelVersion:  c.modelVersion,
		Results:       results,
		CachedAt:      time.Now(),
	})
	if err != nil {
		c.logger.Error("Encoding query entry failed", "error", err)
		return
	}
	if err := c.store.Set(ctx, queryKey(fingerprint, normQuery, k, minScore), data); err != nil {
		c.logger.Warn("Caching query result failed", "error", err)
	}
}

// ResolveDocument maps a caller-supplied document id to the fingerprint it
// was last ingested as.
func (c *Cache) ResolveDocument(ctx context.Context, docID string) (string, bool) {
	data, err := c.store.Get(ctx, docKey(docID))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *Cache) BindDocument(ctx context.Context, docID, fingerprint string) error {
	return c.store.Set(ctx, docKey(docID), []byte(fingerprint))
}

func (c *Cache) UnbindDocument(ctx context.Context, docID string) {
	if err := c.store.Delete(ctx, docKey(docID)); err != nil {
		c.logger.Warn("Removing document binding failed", "docId", docID, "error", err)
	}
}

// Invalidate removes the content entry for fingerprint and every query entry
// derived from it, in that order: once the content entry is gone a stale
// query entry could dangle, so queries go immediately after.
func (c *Cache) Invalidate(ctx context.Context, fingerprint string) error {
	if err := c.store.Delete(ctx, contentKey(fingerprint)); err != nil {
		return fmt.Errorf("removing content entry: %w", err)
	}
	keys, err := c.store.List(ctx, "query/"+fingerprint+"/")
	if err != nil {
		return fmt.Errorf("listing query entries: %w", err)
	}
	if len(keys) > 0 {
		if err := c.store.Delete(ctx, keys...); err != nil {
			return fmt.Errorf("removing query entries: %w", err)
		}
	}
	c.logger.Debug("Invalidated document", "fingerprint", fingerprint, "queryEntries", len(keys))
	return nil
}

// ClearQueries drops the whole query namespace. Content entries stay.
func (c *Cache) ClearQueries(ctx context.Context) error {
	keys, err := c.store.List(ctx, "query/")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.store.Delete(ctx, keys...)
}

func (c *Cache) miss(_ context.Context, namespace string, err error) {
	metrics.IncrementCacheLookup(namespace, "miss")
	if !errors.Is(err, ErrNotFound) {
		c.logger.Warn("Cache read degraded to miss", "namespace", namespace, "error", err)
	}
}

func contentKey(fingerprint string) string {
	return "content/" + fingerprint
}

// queryKey hashes the normalized question together with k and minScore: a
// cached result set only satisfies a later call made with the same
// parameters. Invalidate still sweeps by fingerprint prefix.
func queryKey(fingerprint, normQuery string, k int, minScore float32) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x1fk=%d\x1fmin=%g", normQuery, k, minScore)))
	return "query/" + fingerprint + "/" + hex.EncodeToString(sum[:])
}

func docKey(docID string) string {
	sum := sha256.Sum256([]byte(docID))
	return "doc/" + hex.EncodeToString(sum[:])
}
