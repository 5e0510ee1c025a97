package docModel

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// RawPage is the unit the OCR/extraction collaborator hands us: UTF-8 text
// plus a zero-based page index.
type RawPage struct {
	Index int    `json:"page_index"`
	Text  string `json:"text"`
}

// Chunk is the atomic retrieval item. Order within a document is always
// (PageIndex, SeqIndex), regardless of how embedding work was parallelized.
type Chunk struct {
	DocFingerprint string `json:"doc_fingerprint"`
	PageIndex      int    `json:"page_index"`
	SeqIndex       int    `json:"seq_index"`
	Text           string `json:"text"`
	ContentHash    string `json:"content_hash"`
}

// RankedResult pairs a chunk with its cosine score and the user-facing
// confidence percentage derived from it.
type RankedResult struct {
	Chunk      Chunk   `json:"chunk"`
	Score      float32 `json:"score"`
	Confidence float32 `json:"confidence"`
}

type IngestResult struct {
	Fingerprint   string        `json:"fingerprint"`
	PageCount     int           `json:"page_count"`
	ChunkCount    int           `json:"chunk_count"`
	EmbeddedCount int           `json:"embedded_count"`
	SkippedCount  int           `json:"skipped_count"`
	FromCache     bool          `json:"from_cache"`
	Elapsed       time.Duration `json:"-"`
}

// Progress is reported to the observer at page granularity during ingestion.
type Progress struct {
	PagesDone                 int     `json:"pages_done"`
	PagesTotal                int     `json:"pages_total"`
	ElapsedSeconds            float64 `json:"elapsed_seconds"`
	EstimatedSecondsRemaining float64 `json:"estimated_seconds_remaining"`
}

type ProgressObserver interface {
	OnProgress(p Progress)
}

// ProgressFunc adapts a plain function to ProgressObserver.
type ProgressFunc func(p Progress)

func (f ProgressFunc) OnProgress(p Progress) { f(p) }

// DocState is the ingestion lifecycle of a single fingerprint.
type DocState string

const (
	DocStateUningested DocState = "Uningested"
	DocStateIngesting  DocState = "Ingesting"
	DocStateIngested   DocState = "Ingested"
)

// Fingerprint derives the content identity of a document from its extracted
// page text. Pages are ordered by index first so the hash does not depend on
// the order the collaborator delivered them in.
func Fingerprint(pages []RawPage) string {
	ordered := make([]RawPage, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	h := sha256.New()
	for _, p := range ordered {
		h.Write([]byte(p.Text))
		h.Write([]byte{0x1e}) //page separator, keeps "ab"+"c" distinct from "a"+"bc"
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeText lowercases and collapses whitespace. Chunk dedup hashes and
// query-cache keys both go through this, so "Foo  bar" and "foo bar" are the
// same content.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ContentHash is the normalized-content hash used for chunk dedup.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}
