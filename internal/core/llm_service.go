package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"veritas.app/backend/internal/logging"
)

const defaultAnalysisModelName = "gemini-2.0-flash"

// TextAnalyzer sends a prompt to a language model and returns its text.
type TextAnalyzer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type LLMService struct {
	client    *genai.Client
	modelName string
	log       *logrus.Entry
}

var _ TextAnalyzer = (*LLMService)(nil)

func NewLLMService(ctx context.Context, apiKey, modelName string, logger logrus.FieldLogger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = defaultAnalysisModelName
	}

	return &LLMService{
		client:    client,
		modelName: modelName,
		log:       logging.Component(logger, "llm"),
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.WithError(err).Error("error closing GenAI client")
		} else {
			s.log.Info("GenAI client closed")
		}
	}
}

// Generate runs a single-turn completion. An empty or non-text answer is
// an error so callers never see a half-filled analysis.
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	model := s.client.GenerativeModel(s.modelName)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini GenerateContent failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response was empty or had no valid candidates")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.log.Debugf("gemini response part was not text: %T", part)
		}
	}

	if strings.TrimSpace(responseText.String()) == "" {
		return "", fmt.Errorf("gemini response contained no text")
	}
	return responseText.String(), nil
}
