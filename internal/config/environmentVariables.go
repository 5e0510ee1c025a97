package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type ContextKey string

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo

	TRACE_ID_KEY ContextKey = "traceId"

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//schema stamp written into every cache entry; bump when the
	//serialized layout changes so stale entries read as a miss
	CacheSchemaVersion = 1

	//chunk builder defaults (tunable, see env overrides below)
	MaxChunkWords      = 150
	MinChunkWords      = 5
	MinAlphaRatio      = 0.5
	HeaderMinPageCount = 3

	//retrieval defaults
	DefaultTopK     = 5
	DefaultMinScore = 0.3

	//embedding engine
	EmbeddingBatchSize            = 100
	EmbeddingOutputDimensionality = 1536

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 10 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//per-job deadlines; ingestion can chew through a large scan
	IngestJobTimeout = 10 * time.Minute
	QueryJobTimeout  = 30 * time.Second

	//vector index (qdrant backend)
	QdrantConnectionTimeout = 30 * time.Second
	QdrantPort              = 6334 //grpc
	QdrantUseTLS            = false

	//embedding backends
	GoogleEmbeddingModel = "gemini-embedding-001"
	OpenAIEmbeddingModel = "text-embedding-3-small"
	GeminiModelName      = "gemini-2.5-flash-lite-preview-09-2025"

	SummarizerInstruction = "You summarize document passages retrieved for a user question. Be brief, stay strictly within the passages, and say so when they do not answer the question."

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	RedisAddr = "127.0.0.1:6379"

	//redis has 16 DBs we can use
	RedisJobStore   = 0
	RedisCacheStore = 1

	RedisJobStoreTTL = 24 * time.Hour
)

// Backend selectors. "file" and "linear" need no external services and are
// the defaults; the alternatives reuse the same interfaces.
const (
	CacheBackendFile    = "file"
	CacheBackendRedis   = "redis"
	RankerBackendLinear = "linear"
	RankerBackendQdrant = "qdrant"

	EmbedderBackendGoogle = "google"
	EmbedderBackendOpenAI = "openai"
)

var (
	AuthToken    = envOr("DOCUQA_AUTH_TOKEN", "")
	NoAuthBypass = AuthToken == ""

	GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	EmbedderBackend = envOr("DOCUQA_EMBEDDER", EmbedderBackendGoogle)
	CacheBackend    = envOr("DOCUQA_CACHE_BACKEND", CacheBackendFile)
	RankerBackend   = envOr("DOCUQA_RANKER", RankerBackendLinear)

	//base directory for the durable content/query stores; empty means
	//os.UserCacheDir()/docuqa
	CacheBaseDir = os.Getenv("DOCUQA_CACHE_DIR")

	QdrantHost = envOr("QDRANT_HOST", "localhost")

	RedisPassword = os.Getenv("REDIS_PASSWORD")

	SummarizerEnabled = envBool("DOCUQA_SUMMARIZER", false)
)

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
