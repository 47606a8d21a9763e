// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package index provides nearest-neighbour search over unit-length
// embedding vectors by inner product.
package index

import (
	"context"
	"sort"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// MaxK is the largest k any index accepts. It is the vec0 KNN limit.
const MaxK = 4096

// Hit is a single search result. Position is the entry's position in the
// knowledge base; Score is the inner product with the query.
type Hit struct {
	Position int
	Score    float32
}

// Index answers top-k inner-product queries.
type Index interface {
	Dim() int
	Len() int
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
}

// Flat is an exact, in-memory inner-product index. Vectors are stored
// row-major in insertion order.
type Flat struct {
	dim  int
	data []float32
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, boterr.Errorf(boterr.CodeIndexBuildInvalidInput, "dimension must be positive, got %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// BuildFlat normalizes every vector and adds it to a new Flat index. The
// i-th vector becomes position i.
func BuildFlat(vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, boterr.New(boterr.CodeIndexBuildInvalidInput, "no vectors to index")
	}
	f, err := NewFlat(len(vectors[0]))
	if err != nil {
		return nil, err
	}
	for i, v := range vectors {
		unit, err := Normalize(v)
		if err != nil {
			return nil, boterr.With(err, boterr.FieldPosition(i))
		}
		if err := f.Add(unit); err != nil {
			return nil, boterr.With(err, boterr.FieldPosition(i))
		}
	}
	return f, nil
}

func (f *Flat) Dim() int { return f.dim }

func (f *Flat) Len() int { return len(f.data) / f.dim }

// Add appends an already-normalized vector.
func (f *Flat) Add(v []float32) error {
	if len(v) != f.dim {
		return boterr.Errorf(boterr.CodeIndexBuildInvalidInput, "vector has %d dimensions, index has %d", len(v), f.dim)
	}
	f.data = append(f.data, v...)
	return nil
}

// Vector returns the stored vector at position i. The slice aliases the
// index storage.
func (f *Flat) Vector(i int) []float32 {
	return f.data[i*f.dim : (i+1)*f.dim]
}

// Search returns the k highest-scoring positions, best first. Ties keep
// ascending position order.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, boterr.Errorf(boterr.CodeIndexSearchInvalidInput, "query has %d dimensions, index has %d", len(query), f.dim)
	}
	if k <= 0 {
		return nil, boterr.Errorf(boterr.CodeIndexSearchInvalidInput, "k must be positive, got %d", k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := f.Len()
	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		hits[i] = Hit{Position: i, Score: Dot(query, f.Vector(i))}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
