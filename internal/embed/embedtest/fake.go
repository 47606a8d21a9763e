// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package embedtest provides a scriptable embedder for tests.
package embedtest

import (
	"context"
	"sync"

	"github.com/sigil-dev/supportbot/internal/embed"
)

var _ embed.Embedder = (*Fake)(nil)

// Fake returns fixed vectors for known texts and Default for everything
// else. Err, when set, is returned by every Embed call.
type Fake struct {
	ModelName string
	Vectors   map[string][]float32
	Default   []float32
	Err       error

	mu    sync.Mutex
	calls [][]string
}

func (f *Fake) Model() string {
	if f.ModelName == "" {
		return "fake/test"
	}
	return f.ModelName
}

func (f *Fake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.Vectors[t]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		out[i] = append([]float32(nil), f.Default...)
	}
	return out, nil
}

func (f *Fake) Close() error { return nil }

// Calls returns the text batches received so far.
func (f *Fake) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}
