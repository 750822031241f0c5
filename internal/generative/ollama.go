package generative

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// Ollama summarizes with a locally served model.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama creates a client for the Ollama server at host.
func NewOllama(host, model string, timeout time.Duration) (*Ollama, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &Ollama{
		client: ollama.NewClient(u, &http.Client{Timeout: timeout}),
		model:  model,
	}, nil
}

func (o *Ollama) Generate(ctx context.Context, text string, params Params) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  o.model,
		Prompt: instruction(text, params),
		Stream: &stream,
		Options: map[string]any{
			"num_predict": params.MaxLength,
			"temperature": params.Temperature,
			"top_k":       params.TopK,
			"top_p":       params.TopP,
			"num_ctx":     params.MaxInputTokens * 4,
		},
	}
	var out strings.Builder
	err := o.client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		out.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}
