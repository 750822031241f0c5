package generative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGenerator calls a sequence-to-sequence inference server (for example
// a t5-small deployment) that accepts the decoding parameters verbatim.
//
// Request:  POST {endpoint}/summarize {"model", "text", "params"}
// Response: {"summary": "..."}
type HTTPGenerator struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewHTTPGenerator creates a client for the server at endpoint.
func NewHTTPGenerator(endpoint, model, apiKey string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type summarizeRequest struct {
	Model  string `json:"model"`
	Text   string `json:"text"`
	Params Params `json:"params"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, text string, params Params) (string, error) {
	body, err := json.Marshal(summarizeRequest{Model: g.model, Text: params.Prefix + text, Params: params})
	if err != nil {
		return "", fmt.Errorf("encoding summarize request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/summarize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building summarize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling generator: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generator returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var sr summarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decoding summarize response: %w", err)
	}
	return sr.Summary, nil
}

// Ping checks the server's health route.
func (g *HTTPGenerator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("generator health returned %d", resp.StatusCode)
	}
	return nil
}
