// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embed

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// Cached memoizes per-text vectors of another embedder. Only texts missing
// from the cache are sent upstream, in one call.
type Cached struct {
	next  Embedder
	cache *cache.Cache
}

// NewCached wraps next with an expiring cache. A zero ttl keeps entries
// until the process exits.
func NewCached(next Embedder, ttl time.Duration) *Cached {
	expiration := ttl
	cleanup := ttl * 2
	if ttl <= 0 {
		expiration = cache.NoExpiration
		cleanup = 0
	}
	return &Cached{next: next, cache: cache.New(expiration, cleanup)}
}

func (c *Cached) Model() string { return c.next.Model() }

func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing   []string
		missingAt []int
	)
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v.([]float32)
			continue
		}
		missing = append(missing, t)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, boterr.New(boterr.CodeEmbedResponseInvalid, "embedder returned wrong number of vectors", boterr.FieldModel(c.Model()))
	}
	for j, v := range vecs {
		out[missingAt[j]] = v
		c.cache.SetDefault(missing[j], v)
	}
	return out, nil
}

// Len reports the number of cached texts.
func (c *Cached) Len() int { return c.cache.ItemCount() }

func (c *Cached) Close() error {
	c.cache.Flush()
	return c.next.Close()
}
