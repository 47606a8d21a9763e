// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package resolver answers customer queries from the knowledge base,
// falling back to canned keyword answers when nothing is close enough.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sigil-dev/supportbot/internal/corpus"
	"github.com/sigil-dev/supportbot/internal/embed"
	"github.com/sigil-dev/supportbot/internal/index"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/sigil-dev/supportbot/pkg/types"
)

// DefaultTopK is the number of neighbours retrieved per query. Only the
// best one is used.
const DefaultTopK = 3

// DegradedAnswer is shown when a query could not be processed.
const DegradedAnswer = "⚠️ Sorry, I couldn't process that question right now. Please try again or rephrase it."

// Kind distinguishes normal outcomes from degraded ones.
type Kind string

const (
	KindResolved Kind = "resolved"
	KindDegraded Kind = "degraded"
)

// Source records where an answer came from.
type Source string

const (
	SourceMatch    Source = "match"
	SourceFallback Source = "fallback"
	SourceError    Source = "error"
)

// Outcome is the result of resolving one query. Position is -1 unless the
// answer came from the knowledge base.
type Outcome struct {
	Kind       Kind
	Answer     string
	Confidence types.Confidence
	Source     Source
	Score      float32
	Position   int
	Intent     string
	Category   string
	Keyword    string
	Err        error
}

// Degraded reports whether the query failed and was answered with an
// explanatory message.
func (o Outcome) Degraded() bool { return o.Kind == KindDegraded }

// Resolver is the retrieval context shared by all queries: the embedder of
// the index's model, the entries, the index and the thresholds. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	embedder   embed.Embedder
	entries    []corpus.Entry
	index      index.Index
	thresholds Thresholds
	topK       int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThresholds overrides DefaultThresholds.
func WithThresholds(t Thresholds) Option {
	return func(r *Resolver) { r.thresholds = t }
}

// WithTopK overrides DefaultTopK.
func WithTopK(k int) Option {
	return func(r *Resolver) { r.topK = k }
}

// New builds a resolver. entries[i] must correspond to index position i.
func New(e embed.Embedder, entries []corpus.Entry, idx index.Index, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		embedder:   e,
		entries:    entries,
		index:      idx,
		thresholds: DefaultThresholds(),
		topK:       DefaultTopK,
	}
	for _, opt := range opts {
		opt(r)
	}

	if e == nil || idx == nil {
		return nil, boterr.New(boterr.CodeArtifactLoadMismatch, "resolver needs an embedder and an index")
	}
	if idx.Len() == 0 || idx.Len() != len(entries) {
		return nil, boterr.New(boterr.CodeArtifactLoadMismatch, "entry count does not match index size",
			boterr.Field("entries", len(entries)), boterr.Field("index_count", idx.Len()))
	}
	if err := r.thresholds.Validate(); err != nil {
		return nil, err
	}
	if r.topK <= 0 {
		return nil, boterr.Errorf(boterr.CodeConfigValidateInvalidValue, "top_k must be positive, got %d", r.topK)
	}
	return r, nil
}

// Thresholds returns the classification thresholds in use.
func (r *Resolver) Thresholds() Thresholds { return r.thresholds }

// Len returns the number of knowledge-base entries.
func (r *Resolver) Len() int { return len(r.entries) }

// Model returns the embedding model identifier.
func (r *Resolver) Model() string { return r.embedder.Model() }

// Dim returns the index dimension.
func (r *Resolver) Dim() int { return r.index.Dim() }

// Resolve answers a query. It never returns an error: failures produce a
// Degraded outcome with Low confidence and the cause in Err.
func (r *Resolver) Resolve(ctx context.Context, query string) Outcome {
	if strings.TrimSpace(query) == "" {
		return Fallback(query)
	}

	hit, err := r.best(ctx, query)
	if err != nil {
		return degraded(err)
	}

	switch r.thresholds.Classify(hit.Score) {
	case types.ConfidenceLow:
		out := Fallback(query)
		out.Score = hit.Score
		return out
	case types.ConfidenceMedium:
		return r.matched(hit, types.ConfidenceMedium)
	default:
		return r.matched(hit, types.ConfidenceHigh)
	}
}

func (r *Resolver) best(ctx context.Context, query string) (index.Hit, error) {
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return index.Hit{}, err
	}
	if len(vecs) != 1 {
		return index.Hit{}, boterr.Errorf(boterr.CodeEmbedResponseInvalid, "embedder returned %d vectors for one query", len(vecs))
	}
	if len(vecs[0]) != r.index.Dim() {
		return index.Hit{}, boterr.New(boterr.CodeEmbedDimensionMismatch, "query vector width does not match index",
			boterr.Field("query_dimensions", len(vecs[0])), boterr.Field("index_dimensions", r.index.Dim()))
	}

	q, err := index.Normalize(vecs[0])
	if err != nil {
		return index.Hit{}, err
	}

	hits, err := r.index.Search(ctx, q, min(r.topK, r.index.Len()))
	if err != nil {
		return index.Hit{}, err
	}
	if len(hits) == 0 {
		return index.Hit{}, boterr.New(boterr.CodeIndexSearchFailure, "search returned no results")
	}
	slog.DebugContext(ctx, "neighbours retrieved", "count", len(hits), "best_score", hits[0].Score, "best_position", hits[0].Position)
	best := hits[0]
	if best.Position < 0 || best.Position >= len(r.entries) {
		return index.Hit{}, boterr.New(boterr.CodeIndexSearchFailure, "search returned a position outside the knowledge base",
			boterr.FieldPosition(best.Position))
	}
	return best, nil
}

func (r *Resolver) matched(hit index.Hit, c types.Confidence) Outcome {
	e := r.entries[hit.Position]
	return Outcome{
		Kind:       KindResolved,
		Answer:     e.Answer,
		Confidence: c,
		Source:     SourceMatch,
		Score:      hit.Score,
		Position:   hit.Position,
		Intent:     e.Intent,
		Category:   e.Category,
	}
}

func degraded(err error) Outcome {
	return Outcome{
		Kind:       KindDegraded,
		Answer:     DegradedAnswer,
		Confidence: types.ConfidenceLow,
		Source:     SourceError,
		Position:   -1,
		Err:        boterr.Wrap(err, boterr.CodeResolverQueryDegraded, "resolving query"),
	}
}
