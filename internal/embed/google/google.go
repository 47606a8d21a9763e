// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package google embeds text through the Gemini API.
package google

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"

	"github.com/sigil-dev/supportbot/internal/embed"
	"github.com/sigil-dev/supportbot/internal/retry"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

const ProviderName = "google"

// Config holds Google embedder configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Options embed.Options
}

// Embedder implements embed.Embedder using the Gemini embedContent API.
type Embedder struct {
	client *genai.Client
	config Config
}

// New creates a new Google embedder. Returns an error if the API key or
// model is missing.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, boterr.New(boterr.CodeEmbedRequestInvalid, "google: missing api_key in config", boterr.FieldProvider(ProviderName))
	}
	if cfg.Model == "" {
		return nil, boterr.New(boterr.CodeEmbedRequestInvalid, "google: missing model", boterr.FieldProvider(ProviderName))
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Options.Timeout > 0 {
		timeout := cfg.Options.Timeout
		cc.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, boterr.Wrapf(err, boterr.CodeEmbedUpstreamFailure, "google: creating client")
	}

	return &Embedder{client: client, config: cfg}, nil
}

// Factory adapts New to embed.Factory.
func Factory(ctx context.Context, model string, opts embed.Options) (embed.Embedder, error) {
	return New(ctx, Config{
		APIKey:  opts.APIKey,
		BaseURL: opts.Endpoint,
		Model:   model,
		Options: opts,
	})
}

func (e *Embedder) Model() string { return ProviderName + "/" + e.config.Model }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := retry.DoWithData(ctx, e.config.Options.Retry, isPermanent, func() (*genai.EmbedContentResponse, error) {
		return e.client.Models.EmbedContent(ctx, e.config.Model, contents, nil)
	})
	if err != nil {
		code := boterr.CodeEmbedUpstreamFailure
		if isPermanent(err) {
			code = boterr.CodeEmbedRequestInvalid
		}
		return nil, boterr.Wrap(err, code, "google: embed content", boterr.FieldProvider(ProviderName), boterr.FieldModel(e.config.Model))
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, boterr.Errorf(boterr.CodeEmbedResponseInvalid, "google: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, boterr.Errorf(boterr.CodeEmbedResponseInvalid, "google: empty embedding at %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *Embedder) Close() error { return nil }

func isPermanent(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code >= 400 && apiErrPtr.Code < 500 && apiErrPtr.Code != http.StatusTooManyRequests
	}
	return false
}
