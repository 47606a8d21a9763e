// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package kb builds, persists and loads the knowledge-base artifacts: the
// normalized entries, their similarity index and the embedding model id.
package kb

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sigil-dev/supportbot/internal/corpus"
	"github.com/sigil-dev/supportbot/internal/index"
	"github.com/sigil-dev/supportbot/internal/store/sqlite"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// Artifact file names inside the artifacts directory.
const (
	EntriesFile = "knowledge_base.jsonl"
	IndexFile   = "index.db"
	ModelFile   = "model_name.txt"
)

// Files lists the artifact names in the order they are written.
var Files = []string{EntriesFile, IndexFile, ModelFile}

// Artifacts is a built knowledge base. Entries[i] corresponds to index
// position i.
type Artifacts struct {
	Model   string
	Entries []corpus.Entry
	Index   *index.Flat
}

// Present reports which artifact files exist in dir.
func Present(dir string) map[string]bool {
	out := make(map[string]bool, len(Files))
	for _, name := range Files {
		_, err := os.Stat(filepath.Join(dir, name))
		out[name] = err == nil
	}
	return out
}

// Save writes the three artifacts into dir. Each file is written under a
// temporary name first; nothing in dir is replaced until all three are
// complete.
func (a *Artifacts) Save(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return boterr.Wrap(err, boterr.CodeArtifactWriteFailure, "creating artifacts directory", boterr.FieldPath(dir))
	}

	staging, err := os.MkdirTemp(dir, ".staging-*")
	if err != nil {
		return boterr.Wrap(err, boterr.CodeArtifactWriteFailure, "creating staging directory", boterr.FieldPath(dir))
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := WriteEntries(filepath.Join(staging, EntriesFile), a.Entries); err != nil {
		return err
	}
	if err := writeIndex(ctx, filepath.Join(staging, IndexFile), a.Index); err != nil {
		return err
	}
	if err := WriteModel(filepath.Join(staging, ModelFile), a.Model); err != nil {
		return err
	}

	for _, name := range Files {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(dir, name)); err != nil {
			return boterr.Wrap(err, boterr.CodeArtifactWriteFailure, "moving artifact into place", boterr.FieldPath(filepath.Join(dir, name)))
		}
	}
	return nil
}

func writeIndex(ctx context.Context, path string, flat *index.Flat) error {
	vi, err := sqlite.CreateVectorIndex(ctx, path, flat.Dim())
	if err != nil {
		return boterr.With(err, boterr.FieldPath(path))
	}

	vectors := make([][]float32, flat.Len())
	for i := range vectors {
		vectors[i] = flat.Vector(i)
	}
	if err := vi.Append(ctx, vectors); err != nil {
		_ = vi.Close()
		return boterr.With(err, boterr.FieldPath(path))
	}
	if err := vi.Close(); err != nil {
		return boterr.Wrap(err, boterr.CodeArtifactWriteFailure, "closing index", boterr.FieldPath(path))
	}
	return nil
}

// WriteEntries writes one JSON entry per line, preserving order.
func WriteEntries(path string, entries []corpus.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return boterr.Wrap(err, boterr.CodeArtifactWriteFailure, "creating entries file", boterr.FieldPath(path))
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, e := range entries {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			return boterr.Wrap(err, boterr.CodeArtifactWriteFailure, "encoding entry", boterr.FieldPath(path), boterr.FieldPosition(i))
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return boterr.Wrap(err, boterr.CodeArtifactWriteFailure, "flushing entries file", boterr.FieldPath(path))
	}
	if err := f.Close(); err != nil {
		return boterr.Wrap(err, boterr.CodeArtifactWriteFailure, "closing entries file", boterr.FieldPath(path))
	}
	return nil
}

// ReadEntries reads the entries file written by WriteEntries.
func ReadEntries(path string) ([]corpus.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, missingOr(err, path, "opening entries file")
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var entries []corpus.Entry
	for line := 1; scanner.Scan(); line++ {
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		var e corpus.Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, boterr.Wrap(err, boterr.CodeArtifactLoadCorrupt, "parsing entry", boterr.FieldPath(path), boterr.Field("line", line))
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, boterr.Wrap(err, boterr.CodeArtifactLoadCorrupt, "reading entries file", boterr.FieldPath(path))
	}
	return entries, nil
}

// WriteModel writes the model identifier as a single line.
func WriteModel(path, model string) error {
	if err := os.WriteFile(path, []byte(model+"\n"), 0o644); err != nil {
		return boterr.Wrap(err, boterr.CodeArtifactWriteFailure, "writing model file", boterr.FieldPath(path))
	}
	return nil
}

// ReadModel reads the model identifier, ignoring surrounding whitespace.
func ReadModel(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", missingOr(err, path, "reading model file")
	}
	model := strings.TrimSpace(string(raw))
	if model == "" {
		return "", boterr.New(boterr.CodeArtifactLoadCorrupt, "model file is empty", boterr.FieldPath(path))
	}
	return model, nil
}

func missingOr(err error, path, msg string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return boterr.Wrap(err, boterr.CodeArtifactLoadMissing, msg, boterr.FieldPath(path))
	}
	return boterr.Wrap(err, boterr.CodeArtifactLoadCorrupt, msg, boterr.FieldPath(path))
}
