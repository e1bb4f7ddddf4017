// Package llm asks a local Ollama model to judge query/document relevance.
package llm

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

// Config configures an Ollama completion client. Zero fields fall back to
// http://localhost:11434, llama3.2 and a one minute HTTP timeout.
type Config struct {
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// Ollama requests deterministic JSON completions from /api/generate.
type Ollama struct {
	endpoint  string
	model     string
	maxTokens int
	client    *http.Client
}

// NewOllama returns a client for cfg.
func NewOllama(cfg Config) *Ollama {
	o := &Ollama{
		endpoint:  strings.TrimSuffix(cfg.BaseURL, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    cfg.HTTPClient,
	}
	if o.endpoint == "" {
		o.endpoint = "http://localhost:11434"
	}
	o.endpoint += "/api/generate"
	if o.model == "" {
		o.model = "llama3.2"
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: time.Minute}
	}
	return o
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Format  string         `json:"format"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

// Generate returns the model's answer to prompt.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	options := map[string]any{"temperature": 0}
	if o.maxTokens > 0 {
		options["num_predict"] = o.maxTokens
	}
	body, err := json.Marshal(generateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Format:  "json",
		Options: options,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama generate: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama generate: decoding response: %w", err)
	}
	return out.Response, nil
}
