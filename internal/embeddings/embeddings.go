// Package embeddings defines the embedding provider boundary: text in,
// fixed-length vector out. A nil vector with a nil error means the
// capability is disabled, which callers must treat as silent degradation
// rather than a failure.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider maps text to a fixed-length vector. Implementations return
// (nil, nil) when embeddings are unavailable; that is not an error.
type Provider interface {
	// Embed returns the embedding vector for text, or nil when disabled.
	Embed(ctx context.Context, text string) ([]float32, error)
	// ModelName identifies the model producing the vectors. Vectors from
	// different models are never comparable.
	ModelName() string
}

// HTTPProvider calls an Ollama-compatible /api/embeddings endpoint.
type HTTPProvider struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewHTTPProvider creates a provider against the given base URL
// (e.g. http://localhost:11434) and model name.
func NewHTTPProvider(endpoint, model string) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// ModelName returns the configured model identifier.
func (p *HTTPProvider) ModelName() string {
	return p.model
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed requests an embedding over HTTP. Errors are returned to the caller;
// deciding whether to degrade silently is the caller's policy.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embeddings: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings: call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embeddings: provider returned %d: %s", resp.StatusCode, body)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embeddings: decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, nil
	}
	return out.Embedding, nil
}
