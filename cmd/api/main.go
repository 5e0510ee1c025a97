package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/docuqa/docuqa/internal/analysis"
	"github.com/docuqa/docuqa/internal/analysis/gemini"
	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/data/store"
	"github.com/docuqa/docuqa/internal/domain/jobModel"
	"github.com/docuqa/docuqa/internal/handlers"
	"github.com/docuqa/docuqa/internal/job"
	"github.com/docuqa/docuqa/internal/retrieval"
	"github.com/docuqa/docuqa/internal/retrieval/cache"
	"github.com/docuqa/docuqa/internal/retrieval/chunk"
	"github.com/docuqa/docuqa/internal/retrieval/embedding"
	"github.com/docuqa/docuqa/internal/retrieval/embedding/googleEmbedding"
	"github.com/docuqa/docuqa/internal/retrieval/embedding/openaiEmbedding"
	"github.com/docuqa/docuqa/internal/retrieval/rank"
	"github.com/docuqa/docuqa/internal/retrieval/rank/qdrantRank"
	"github.com/docuqa/docuqa/internal/server"
	"github.com/docuqa/docuqa/internal/worker"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

var (
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	logger_i.Init(config.IS_PROD, config.LOG_LEVEL_PROD)
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	//init buffered job channel
	jobChannel := make(chan jobModel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init job service and job store
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
	}
	logger.Info("Starting job service")

	if redisStore := store.GetRedisJobStore(serviceContext); redisStore != nil {
		serviceConfig.JobStore = redisStore
	} else {
		logger.Error("Redis job store is offline, falling back to in-memory")
		serviceConfig.JobStore = store.InitInMemoryJobStore()
	}
	service := job.InitJobService(serviceConfig)

	embedder := buildEmbedder(serviceContext, logger)
	if embedder == nil {
		logger.Error("Embedding backend failed to initialize. Shutting down.")
		return
	}

	cacheStore := buildCacheStore(serviceContext, logger)
	if cacheStore == nil {
		logger.Error("Cache store failed to initialize. Shutting down.")
		return
	}
	retrievalCache := cache.New(cacheStore, embedder.ModelVersion())

	ranker := buildRanker(serviceContext, logger)
	if ranker == nil {
		logger.Error("Ranker backend failed to initialize. Shutting down.")
		return
	}

	builder := chunk.NewBuilder(chunk.Config{})
	engine := embedding.NewEngine(embedder, config.EmbeddingBatchSize, 0)
	retrievalService := retrieval.NewService(builder, embedder, engine, retrievalCache, ranker)

	var summarizer analysis.Provider
	if config.SummarizerEnabled {
		summarizer = gemini.GetGeminiSummarizer(serviceContext, config.GeminiModelName, config.GoogleAPIKey)
		if summarizer == nil {
			logger.Error("Summarizer enabled but failed to initialize, continuing without it")
		}
	}

	handlers.InitJobHandler(service)

	//init worker pool
	worker.InitServices(service, retrievalService, summarizer)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

func buildEmbedder(ctx context.Context, logger *logger_i.Logger) embedding.Embedder {
	switch config.EmbedderBackend {
	case config.EmbedderBackendOpenAI:
		logger.Info("Using OpenAI embedding backend")
		return openaiEmbedding.GetOpenAIEmbeddingClient(config.OpenAIAPIKey, config.OpenAIEmbeddingModel)
	default:
		logger.Info("Using Google embedding backend")
		return googleEmbedding.GetGoogleEmbeddingClient(ctx, config.GoogleEmbeddingModel, config.GoogleAPIKey)
	}
}

func buildCacheStore(ctx context.Context, logger *logger_i.Logger) cache.Store {
	switch config.CacheBackend {
	case config.CacheBackendRedis:
		logger.Info("Using Redis cache store")
		if s := store.GetRedisCacheStore(ctx); s != nil {
			return s
		}
		logger.Error("Redis cache store offline, falling back to file store")
		fallthrough
	default:
		s, err := cache.NewFileStore(config.CacheBaseDir)
		if err != nil {
			logger.Error("Could not create file store", "error", err)
			return nil
		}
		logger.Info("Using file cache store", "dir", config.CacheBaseDir)
		return s
	}
}

func buildRanker(ctx context.Context, logger *logger_i.Logger) rank.Ranker {
	switch config.RankerBackend {
	case config.RankerBackendQdrant:
		logger.Info("Using Qdrant ranker backend")
		if idx := qdrantRank.GetQdrantIndex(ctx); idx != nil {
			return idx
		}
		logger.Error("Qdrant offline, falling back to linear ranker")
		fallthrough
	default:
		return rank.NewLinear()
	}
}
