package phi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPDetector calls an entity-tagging inference server.
//
// Request:  POST {endpoint}/predict {"text": "...", "labels": [...], "threshold": 0.5}
// Response: {"entities": [{"text", "label", "score", "start", "end"}]}
type HTTPDetector struct {
	endpoint  string
	apiKey    string
	threshold float64
	client    *http.Client
	logger    *slog.Logger
}

// NewHTTPDetector creates a detector for the server at endpoint.
func NewHTTPDetector(endpoint, apiKey string, threshold float64, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		endpoint:  strings.TrimRight(endpoint, "/"),
		apiKey:    apiKey,
		threshold: threshold,
		client:    &http.Client{Timeout: timeout},
		logger:    slog.Default().With("component", "phi-http-detector"),
	}
}

type predictRequest struct {
	Text      string   `json:"text"`
	Labels    []string `json:"labels"`
	Threshold float64  `json:"threshold,omitempty"`
}

type predictResponse struct {
	Entities []struct {
		Text  string  `json:"text"`
		Label string  `json:"label"`
		Score float64 `json:"score"`
		Start int     `json:"start"`
		End   int     `json:"end"`
	} `json:"entities"`
}

func (d *HTTPDetector) Detect(ctx context.Context, text string, labels []Type) ([]Entity, error) {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = string(l)
	}
	body, err := json.Marshal(predictRequest{Text: text, Labels: names, Threshold: d.threshold})
	if err != nil {
		return nil, fmt.Errorf("encoding predict request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling detector: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decoding predict response: %w", err)
	}
	entities := make([]Entity, 0, len(pr.Entities))
	for _, e := range pr.Entities {
		entities = append(entities, Entity{
			Text:       e.Text,
			Type:       Type(e.Label),
			Confidence: e.Score,
			Start:      e.Start,
			End:        e.End,
		})
	}
	d.logger.Debug("entities detected", "count", len(entities))
	return AboveThreshold(entities, d.threshold), nil
}

// Ping checks that the inference server answers its health route.
func (d *HTTPDetector) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("detector health returned %d", resp.StatusCode)
	}
	return nil
}
