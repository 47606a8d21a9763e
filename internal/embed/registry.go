// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embed

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sigil-dev/supportbot/internal/retry"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// Options carries provider-independent construction settings.
type Options struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Retry    retry.Policy
}

// Factory builds an embedder for a model served by one provider.
type Factory func(ctx context.Context, model string, opts Options) (Embedder, error)

// Registry maps provider names to factories. The local hashing provider is
// always registered.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(LocalProvider, func(_ context.Context, model string, _ Options) (Embedder, error) {
		return NewHashingFromModel(model)
	})
	return r
}

// Register adds or replaces the factory for provider.
func (r *Registry) Register(provider string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = f
}

// Providers lists registered provider names in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the embedder named by id ("provider/model").
func (r *Registry) New(ctx context.Context, id string, opts Options) (Embedder, error) {
	mid, err := ParseModelID(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	f, ok := r.factories[mid.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, boterr.New(boterr.CodeEmbedProviderNotFound,
			"no embedding provider registered for model", boterr.FieldModel(id), boterr.FieldProvider(mid.Provider))
	}

	e, err := f(ctx, mid.Model, opts)
	if err != nil {
		return nil, boterr.With(err, boterr.FieldModel(id), boterr.FieldProvider(mid.Provider))
	}
	return e, nil
}
