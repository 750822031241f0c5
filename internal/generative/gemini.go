package generative

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Gemini summarizes through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, text string, params Params) (string, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(params.MaxLength),
	}
	if params.DoSample {
		cfg.Temperature = genai.Ptr(float32(params.Temperature))
		cfg.TopP = genai.Ptr(float32(params.TopP))
		cfg.TopK = genai.Ptr(float32(params.TopK))
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(instruction(text, params)), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	out := resp.Text()
	if out == "" {
		return "", errors.New("gemini returned no text")
	}
	return out, nil
}
