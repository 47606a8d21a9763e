// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package embed defines the text embedding interface and the model
// identifiers persisted alongside an index.
package embed

import (
	"context"
	"strings"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// Embedder maps texts to vectors of a fixed width. Implementations must
// return exactly one vector per input text, in input order.
type Embedder interface {
	// Model returns the model identifier in provider/model form.
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// ModelID names an embedding model together with the provider that serves it.
type ModelID struct {
	Provider string
	Model    string
}

// ParseModelID splits "provider/model". The model part may itself contain
// slashes, e.g. "ollama/library/nomic-embed-text".
func ParseModelID(s string) (ModelID, error) {
	s = strings.TrimSpace(s)
	provider, model, ok := strings.Cut(s, "/")
	if !ok || provider == "" || model == "" {
		return ModelID{}, boterr.Errorf(boterr.CodeEmbedRequestInvalid, "model identifier %q is not in provider/model form", s)
	}
	return ModelID{Provider: provider, Model: model}, nil
}

func (m ModelID) String() string {
	return m.Provider + "/" + m.Model
}

// Dimension embeds a probe text and reports the width of the result.
func Dimension(ctx context.Context, e Embedder) (int, error) {
	vecs, err := e.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return 0, boterr.New(boterr.CodeEmbedResponseInvalid, "probe returned no vector", boterr.FieldModel(e.Model()))
	}
	return len(vecs[0]), nil
}

// EmbedAll embeds texts in batches of batchSize, preserving order. Every
// batch must return one vector per text and all vectors share one width.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int, progress func(done, total int)) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	dim := 0
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		vecs, err := e.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, boterr.With(err, boterr.FieldModel(e.Model()), boterr.Field("batch_start", start))
		}
		if len(vecs) != end-start {
			return nil, boterr.New(boterr.CodeEmbedResponseInvalid,
				"embedder returned wrong number of vectors",
				boterr.FieldModel(e.Model()), boterr.Field("want", end-start), boterr.Field("got", len(vecs)))
		}
		for i, v := range vecs {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) == 0 || len(v) != dim {
				return nil, boterr.New(boterr.CodeEmbedDimensionMismatch,
					"embedder returned inconsistent vector width",
					boterr.FieldModel(e.Model()), boterr.FieldPosition(start+i))
			}
		}
		out = append(out, vecs...)

		if progress != nil {
			progress(end, len(texts))
		}
	}
	return out, nil
}

// Float64To32 narrows a float64 vector as returned by JSON APIs.
func Float64To32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
