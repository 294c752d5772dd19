package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

// ErrEmptyResponse is returned when the model answered without any text part.
var ErrEmptyResponse = errors.New("gemini returned no text")

type GeminiVision struct {
	client    *genai.Client
	modelName string
}

func NewGeminiVision(ctx context.Context, apiKey, modelName string) (*GeminiVision, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiVision{client: cl, modelName: modelName}, nil
}

func (g *GeminiVision) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// ExtractImageText sends the image inline with the instruction and returns the model's text.
func (g *GeminiVision) ExtractImageText(ctx context.Context, image []byte, mimeType, instruction string, maxTokens int32) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	if maxTokens > 0 {
		m.SetMaxOutputTokens(maxTokens)
	}
	m.SetTemperature(0.1)

	resp, err := m.GenerateContent(ctx, genai.Blob{MIMEType: mimeType, Data: image}, genai.Text(instruction))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", classify(err))
	}

	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}

var _ core.VisionProvider = (*GeminiVision)(nil)
