package llm

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms/googleai"
)

// NewGoogleAI builds a Client over the Gemini API.
func NewGoogleAI(ctx context.Context, apiKey, model string, temperature float64) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("googleai: api key is required")
	}
	m, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, errors.Wrap(err, "googleai client")
	}
	return NewClient(m, temperature), nil
}
