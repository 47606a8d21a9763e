// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package ollama embeds text through a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sigil-dev/supportbot/internal/embed"
	"github.com/sigil-dev/supportbot/internal/retry"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

const (
	ProviderName    = "ollama"
	DefaultEndpoint = "http://localhost:11434"
	defaultTimeout  = 30 * time.Second
)

// Config holds Ollama embedder configuration.
type Config struct {
	Endpoint string
	Model    string
	Options  embed.Options
}

// Embedder calls POST /api/embeddings once per text.
type Embedder struct {
	client *http.Client
	config Config
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// statusError carries a non-200 response so retries can skip client errors.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ollama: %d %s: %s", e.status, http.StatusText(e.status), e.body)
}

func New(cfg Config) (*Embedder, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, boterr.New(boterr.CodeEmbedRequestInvalid, "ollama: embedding model is empty", boterr.FieldProvider(ProviderName))
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	timeout := cfg.Options.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Embedder{client: &http.Client{Timeout: timeout}, config: cfg}, nil
}

// Factory adapts New to embed.Factory.
func Factory(_ context.Context, model string, opts embed.Options) (embed.Embedder, error) {
	return New(Config{Endpoint: opts.Endpoint, Model: model, Options: opts})
}

func (e *Embedder) Model() string { return ProviderName + "/" + e.config.Model }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := retry.DoWithData(ctx, e.config.Options.Retry, isPermanent, func() ([]float64, error) {
			return e.embedOne(ctx, text)
		})
		if err != nil {
			code := boterr.CodeEmbedUpstreamFailure
			if isPermanent(err) {
				code = boterr.CodeEmbedRequestInvalid
			}
			return nil, boterr.Wrap(err, code, "ollama: embedding request", boterr.FieldProvider(ProviderName), boterr.FieldModel(e.config.Model))
		}
		out[i] = embed.Float64To32(vec)
	}
	return out, nil
}

func (e *Embedder) embedOne(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.config.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response returned empty vector")
	}
	return parsed.Embedding, nil
}

func (e *Embedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func isPermanent(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status >= 400 && se.status < 500 && se.status != http.StatusTooManyRequests
}
