package googleEmbedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/retrieval/embedding"
	"github.com/docuqa/docuqa/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var dimension int32 = config.EmbeddingOutputDimensionality

type client struct {
	genAi *genai.Client
	model string
}

func newGoogleEmbedder(ctx context.Context, modelName string, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
		return
	}
	embeddingClient = &client{
		genAi: c,
		model: modelName,
	}
	logger.Debug("Google Embedding model name: " + modelName)
	logger.Info("Google Embedding client created")
	go closeClient(ctx, embeddingClient)
}

func closeClient(ctx context.Context, embeddingClient *client) {
	<-ctx.Done()
	logger.Info("Closing Google Embedding client")
	embeddingClient.genAi = nil
	embeddingClient.model = ""
}

// GetGoogleEmbeddingClient returns a shared client. Init runs once; if it
// fails every call on the returned client reports ErrModelUnavailable.
func GetGoogleEmbeddingClient(ctx context.Context, modelName string, apikey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		newGoogleEmbedder(ctx, modelName, apikey)
	})

	if embeddingClient == nil {
		return unavailable{model: modelName}
	}
	return &client{genAi: embeddingClient.genAi, model: embeddingClient.model}
}

func (c *client) ModelVersion() string {
	return c.model + "/dim" + fmt.Sprint(dimension)
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	result, err := c.doCall(ctx, genai.Text(query), "RETRIEVAL_QUERY")
	if err != nil {
		if doRetry(err, log) {
			time.Sleep(5 * time.Second)
			log.Debug("Retrying in 5 seconds")
			result, err = c.doCall(ctx, genai.Text(query), "RETRIEVAL_QUERY")
		}
		if err != nil {
			log.Error("Error getting Embedding from Google", "error", err.Error())
			return nil, translate(err)
		}
	}
	if len(result.Embeddings) == 0 {
		return nil, &embedding.EmbeddingError{BatchSize: 1, Err: fmt.Errorf("empty embedding response")}
	}
	return result.Embeddings[0].Values, nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	res, err := c.doCall(ctx, getContent(chunks), "RETRIEVAL_DOCUMENT")
	if err != nil {
		if doRetry(err, log) {
			time.Sleep(5 * time.Second)
			log.Debug("Retrying in 5 seconds")
			res, err = c.doCall(ctx, getContent(chunks), "RETRIEVAL_DOCUMENT")
		}
		if err != nil {
			log.Error("Error getting batch Embeddings from Google", "error", err.Error())
			return nil, translate(err)
		}
	}

	embeddingResults := make([][]float32, 0, len(res.Embeddings))
	for _, r := range res.Embeddings {
		embeddingResults = append(embeddingResults, r.Values)
	}
	return embeddingResults, nil
}

func (c *client) doCall(ctx context.Context, content []*genai.Content, taskType string) (*genai.EmbedContentResponse, error) {
	return c.genAi.Models.EmbedContent(ctx, c.model, content,
		&genai.EmbedContentConfig{OutputDimensionality: &dimension, TaskType: taskType})
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(err); ok {
		if s.Code() == codes.ResourceExhausted {
			log.Error("Rate limit hit!", "error", err)
			return true
		}
	}
	return false
}

// translate maps transport failures that no amount of batch splitting can
// cure onto ErrModelUnavailable.
func translate(err error) error {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.Unauthenticated, codes.PermissionDenied:
			return fmt.Errorf("%w: %s", embedding.ErrModelUnavailable, s.Message())
		}
	}
	return err
}

// unavailable stands in when client init failed so callers always get the
// sticky sentinel instead of a nil dereference.
type unavailable struct {
	model string
}

func (u unavailable) ModelVersion() string { return u.model }

func (u unavailable) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return nil, embedding.ErrModelUnavailable
}

func (u unavailable) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	return nil, embedding.ErrModelUnavailable
}
