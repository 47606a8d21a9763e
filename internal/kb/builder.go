// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package kb

import (
	"context"
	"log/slog"

	"github.com/sigil-dev/supportbot/internal/corpus"
	"github.com/sigil-dev/supportbot/internal/embed"
	"github.com/sigil-dev/supportbot/internal/index"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// DefaultBatchSize is the number of questions sent to the embedder per call.
const DefaultBatchSize = 64

// Builder embeds knowledge-base questions and indexes them.
type Builder struct {
	embedder  embed.Embedder
	batchSize int
}

// NewBuilder returns a builder using e. A non-positive batchSize selects
// DefaultBatchSize.
func NewBuilder(e embed.Embedder, batchSize int) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Builder{embedder: e, batchSize: batchSize}
}

// Build embeds every entry's question in order, normalizes the vectors and
// returns the in-memory artifacts. No entry is skipped: a question whose
// embedding has zero norm fails the build.
func (b *Builder) Build(ctx context.Context, entries []corpus.Entry) (*Artifacts, error) {
	if len(entries) == 0 {
		return nil, boterr.New(boterr.CodeIndexBuildInvalidInput, "no entries to index")
	}
	model := b.embedder.Model()

	slog.Info("embedding knowledge base", "count", len(entries), "model", model, "batch_size", b.batchSize)
	vectors, err := embed.EmbedAll(ctx, b.embedder, corpus.Questions(entries), b.batchSize, func(done, total int) {
		slog.Debug("embedded batch", "done", done, "total", total)
	})
	if err != nil {
		return nil, err
	}

	flat, err := index.BuildFlat(vectors)
	if err != nil {
		return nil, boterr.With(err, boterr.FieldModel(model))
	}
	slog.Info("index built", "count", flat.Len(), "dimensions", flat.Dim())

	return &Artifacts{
		Model:   model,
		Entries: entries,
		Index:   flat,
	}, nil
}

// BuildAndSave runs Build and writes the result into dir.
func (b *Builder) BuildAndSave(ctx context.Context, dir string, entries []corpus.Entry) (*Artifacts, error) {
	a, err := b.Build(ctx, entries)
	if err != nil {
		return nil, err
	}
	if err := a.Save(ctx, dir); err != nil {
		return nil, err
	}
	slog.Info("artifacts saved", "path", dir, "count", len(a.Entries), "model", a.Model)
	return a, nil
}
