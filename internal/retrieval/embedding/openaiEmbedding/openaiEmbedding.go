package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/customHttpClient"
	"github.com/docuqa/docuqa/internal/retrieval/embedding"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

var _ embedding.Embedder = (*client)(nil)

type client struct {
	openAi openai.Client
	model  string
	logger *logger_i.Logger
}

// GetOpenAIEmbeddingClient builds an embedder over the OpenAI embeddings
// API. The SDK's own retry loop handles rate limits.
func GetOpenAIEmbeddingClient(apikey string, modelName string) embedding.Embedder {
	return &client{
		openAi: openai.NewClient(
			option.WithAPIKey(apikey),
			option.WithHTTPClient(customHttpClient.PooledClient()),
		),
		model:  modelName,
		logger: logger_i.NewLogger("openai_embedding"),
	}
}

func (c *client) ModelVersion() string {
	return c.model + "/dim" + fmt.Sprint(config.EmbeddingOutputDimensionality)
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vecs, err := c.BatchEmbedding(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	request := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks},
		Model:          c.model,
		Dimensions:     openai.Int(int64(config.EmbeddingOutputDimensionality)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	res, err := c.openAi.Embeddings.New(ctx, request)
	if err != nil {
		c.logger.Error("Error getting Embeddings from OpenAI", "error", err.Error())
		return nil, translate(err)
	}
	if len(res.Data) != len(chunks) {
		return nil, &embedding.EmbeddingError{BatchSize: len(chunks),
			Err: fmt.Errorf("got %d embeddings for %d inputs", len(res.Data), len(chunks))}
	}

	// OpenAI may reorder results; Index says which input each row belongs to.
	results := make([][]float32, len(chunks))
	for _, d := range res.Data {
		vec := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			vec[i] = float32(x)
		}
		results[d.Index] = vec
	}
	return results, nil
}

func translate(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %s", embedding.ErrModelUnavailable, apiErr.Error())
		}
	}
	return err
}
