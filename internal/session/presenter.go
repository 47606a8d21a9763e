// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sigil-dev/supportbot/internal/resolver"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/sigil-dev/supportbot/pkg/types"
)

// Resolver answers a single query.
type Resolver interface {
	Resolve(ctx context.Context, query string) resolver.Outcome
}

// Presenter runs user prompts through a Resolver and records both sides of
// the exchange.
type Presenter struct {
	store    *Store
	resolver Resolver
}

func NewPresenter(store *Store, r Resolver) *Presenter {
	return &Presenter{store: store, resolver: r}
}

// Store returns the underlying session store.
func (p *Presenter) Store() *Store { return p.store }

// Start creates a new empty session and returns its id.
func (p *Presenter) Start(ctx context.Context) (string, error) {
	sess, err := p.store.Create(ctx)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// Ask appends prompt as a user turn, resolves it and appends the answer as
// an assistant turn. It returns the assistant turn and the full outcome.
func (p *Presenter) Ask(ctx context.Context, id, prompt string) (Turn, resolver.Outcome, error) {
	if strings.TrimSpace(prompt) == "" {
		return Turn{}, resolver.Outcome{}, boterr.New(boterr.CodeSessionInvalidInput, "prompt must not be empty", boterr.FieldSessionID(id))
	}
	if _, err := p.store.Append(ctx, id, Turn{Role: types.RoleUser, Content: prompt}); err != nil {
		return Turn{}, resolver.Outcome{}, err
	}

	out := p.resolver.Resolve(ctx, prompt)
	if out.Degraded() {
		slog.Warn("query degraded", "session_id", id, "error", out.Err)
	}

	reply := Turn{
		Role:       types.RoleAssistant,
		Content:    out.Answer,
		Confidence: out.Confidence,
	}
	sess, err := p.store.Append(ctx, id, reply)
	if err != nil {
		return Turn{}, out, err
	}
	return sess.Turns[len(sess.Turns)-1], out, nil
}
