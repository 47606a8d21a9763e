// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package openai embeds text through the OpenAI embeddings API or any
// compatible endpoint.
package openai

import (
	"context"
	"errors"
	"net/http"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sigil-dev/supportbot/internal/embed"
	"github.com/sigil-dev/supportbot/internal/retry"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

const ProviderName = "openai"

// Config holds OpenAI embedder configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, for compatible endpoints and mock servers
	Model   string
	Options embed.Options
}

// Embedder implements embed.Embedder using the OpenAI embeddings endpoint.
type Embedder struct {
	client openaisdk.Client
	config Config
}

// New creates a new OpenAI embedder. Returns an error if the API key or
// model is missing.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, boterr.New(boterr.CodeEmbedRequestInvalid, "openai: missing api_key in config", boterr.FieldProvider(ProviderName))
	}
	if cfg.Model == "" {
		return nil, boterr.New(boterr.CodeEmbedRequestInvalid, "openai: missing model", boterr.FieldProvider(ProviderName))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Options.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Options.Timeout))
	}

	return &Embedder{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

// Factory adapts New to embed.Factory.
func Factory(_ context.Context, model string, opts embed.Options) (embed.Embedder, error) {
	return New(Config{
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

	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openaisdk.EmbeddingModel(e.config.Model),
	}

	resp, err := retry.DoWithData(ctx, e.config.Options.Retry, isPermanent, func() (*openaisdk.CreateEmbeddingResponse, error) {
		return e.client.Embeddings.New(ctx, params)
	})
	if err != nil {
		code := boterr.CodeEmbedUpstreamFailure
		if isPermanent(err) {
			code = boterr.CodeEmbedRequestInvalid
		}
		return nil, boterr.Wrap(err, code, "openai: embeddings request", boterr.FieldProvider(ProviderName), boterr.FieldModel(e.config.Model))
	}

	return collect(resp, len(texts))
}

func (e *Embedder) Close() error { return nil }

// collect orders response vectors by their index field.
func collect(resp *openaisdk.CreateEmbeddingResponse, n int) ([][]float32, error) {
	if len(resp.Data) != n {
		return nil, boterr.Errorf(boterr.CodeEmbedResponseInvalid, "openai: got %d embeddings for %d inputs", len(resp.Data), n)
	}
	out := make([][]float32, n)
	for _, d := range resp.Data {
		i := int(d.Index)
		if i < 0 || i >= n || out[i] != nil {
			return nil, boterr.Errorf(boterr.CodeEmbedResponseInvalid, "openai: unexpected embedding index %d", d.Index)
		}
		out[i] = embed.Float64To32(d.Embedding)
	}
	return out, nil
}

// isPermanent reports client errors that retrying cannot fix.
func isPermanent(err error) bool {
	var apiErr *openaisdk.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
}
