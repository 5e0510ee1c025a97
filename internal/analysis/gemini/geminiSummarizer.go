package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/docuqa/docuqa/internal/analysis"
	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/domain/docModel"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

type summarizerClient struct {
	client      *genai.Client
	modelName   string
	instruction string
}

var logger *logger_i.Logger
var geminiClient *summarizerClient
var once sync.Once

func GetGeminiSummarizer(ctx context.Context, modelName string, apikey string) analysis.Provider {
	once.Do(func() {
		logger = logger_i.NewLogger("summarizer_gemini")
		newGeminiClient(ctx, modelName, apikey)
	})

	if geminiClient == nil {
		return nil
	}
	return &summarizerClient{
		client:      geminiClient.client,
		modelName:   geminiClient.modelName,
		instruction: geminiClient.instruction,
	}
}

func newGeminiClient(ctx context.Context, modelName string, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Gemini client:", "error", err)
		return
	}
	geminiClient = &summarizerClient{
		client:      c,
		modelName:   modelName,
		instruction: config.SummarizerInstruction,
	}
	logger.Info("Gemini summarizer client created")
	go closeClient(ctx, geminiClient)
}

func (c *summarizerClient) Summarize(ctx context.Context, question string, results []docModel.RankedResult) (string, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	if len(results) == 0 {
		return "", nil
	}

	var passages []string
	for _, r := range results {
		passages = append(passages, fmt.Sprintf("[page %d, confidence %.0f%%] %s",
			r.Chunk.PageIndex+1, r.Confidence, r.Chunk.Text))
	}
	userPrompt := fmt.Sprintf("Passages:\n%s\n\nUser Question: %s",
		strings.Join(passages, "\n"), question)

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: c.instruction},
			},
		},
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(userPrompt), contentConfig)
	if err != nil {
		log.Error("Error generating summary", "error", err)
		return "", err
	}
	if result == nil {
		return "", errors.New("empty response from Gemini")
	}
	return result.Text(), nil
}

func closeClient(ctx context.Context, s *summarizerClient) {
	<-ctx.Done()
	logger.Info("Closing Gemini summarizer client")
	s.client = nil
	s.modelName = ""
	s.instruction = ""
}
