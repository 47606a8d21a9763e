// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package kb

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sigil-dev/supportbot/internal/corpus"
	"github.com/sigil-dev/supportbot/internal/embed"
	"github.com/sigil-dev/supportbot/internal/index"
	"github.com/sigil-dev/supportbot/internal/store/sqlite"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// EmbedderFunc constructs the embedder for a persisted model identifier.
type EmbedderFunc func(ctx context.Context, model string) (embed.Embedder, error)

// LoadOptions controls how artifacts are loaded.
type LoadOptions struct {
	// Embedders builds the query embedder for the persisted model.
	Embedders EmbedderFunc
	// ExpectedModel, when set, must equal the persisted model id.
	ExpectedModel string
	// OnDisk searches the sqlite index directly instead of loading the
	// vectors into memory.
	OnDisk bool
}

// KnowledgeBase is a loaded, consistency-checked set of artifacts together
// with the embedder for its model. It is read-only and safe for concurrent
// use.
type KnowledgeBase struct {
	Model    string
	Entries  []corpus.Entry
	Index    index.Index
	Embedder embed.Embedder

	closers []func() error
}

// Close releases the embedder and any open index database.
func (k *KnowledgeBase) Close() error {
	var errs []error
	for i := len(k.closers) - 1; i >= 0; i-- {
		errs = append(errs, k.closers[i]())
	}
	k.closers = nil
	return boterr.Join(errs...)
}

// Load reads the three artifacts from dir and checks that they belong
// together: entry count equals index size, the index is non-empty and the
// model's output width equals the index dimension. Any violation is fatal.
func Load(ctx context.Context, dir string, opts LoadOptions) (*KnowledgeBase, error) {
	if opts.Embedders == nil {
		return nil, boterr.New(boterr.CodeEmbedProviderNotFound, "no embedder constructor supplied")
	}

	model, err := ReadModel(filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, err
	}
	if opts.ExpectedModel != "" && opts.ExpectedModel != model {
		return nil, boterr.New(boterr.CodeArtifactLoadMismatch,
			"artifacts were built with a different embedding model",
			boterr.FieldModel(model), boterr.Field("expected_model", opts.ExpectedModel))
	}

	entries, err := ReadEntries(filepath.Join(dir, EntriesFile))
	if err != nil {
		return nil, err
	}

	kb := &KnowledgeBase{Model: model, Entries: entries}
	fail := func(err error) (*KnowledgeBase, error) {
		_ = kb.Close()
		return nil, err
	}

	indexPath := filepath.Join(dir, IndexFile)
	vi, err := openIndex(ctx, indexPath)
	if err != nil {
		return nil, err
	}
	kb.closers = append(kb.closers, vi.Close)

	if vi.Len() == 0 {
		return fail(boterr.New(boterr.CodeArtifactLoadMismatch, "index is empty", boterr.FieldPath(indexPath)))
	}
	if vi.Len() != len(entries) {
		return fail(boterr.New(boterr.CodeArtifactLoadMismatch,
			"entry count does not match index size",
			boterr.Field("entries", len(entries)), boterr.Field("index_count", vi.Len())))
	}

	if opts.OnDisk {
		kb.Index = vi
	} else {
		flat, err := vi.Flat(ctx)
		if err != nil {
			return fail(boterr.With(err, boterr.FieldPath(indexPath)))
		}
		if flat.Len() != len(entries) {
			return fail(boterr.New(boterr.CodeArtifactLoadMismatch, "index rows do not match index metadata", boterr.FieldPath(indexPath)))
		}
		kb.Index = flat
	}

	emb, err := opts.Embedders(ctx, model)
	if err != nil {
		return fail(boterr.With(err, boterr.FieldModel(model)))
	}
	kb.Embedder = emb
	kb.closers = append(kb.closers, emb.Close)

	dim, err := embed.Dimension(ctx, emb)
	if err != nil {
		return fail(boterr.With(err, boterr.FieldModel(model)))
	}
	if dim != kb.Index.Dim() {
		return fail(boterr.New(boterr.CodeArtifactLoadMismatch,
			"embedding model width does not match index dimension",
			boterr.FieldModel(model), boterr.Field("model_dimensions", dim), boterr.Field("index_dimensions", kb.Index.Dim())))
	}

	slog.Info("knowledge base loaded", "path", dir, "count", len(entries), "model", model, "dimensions", dim, "on_disk", opts.OnDisk)
	return kb, nil
}

func openIndex(ctx context.Context, path string) (*sqlite.VectorIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, missingOr(err, path, "opening index")
	}
	return sqlite.OpenVectorIndex(ctx, path)
}
