// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package session keeps chat transcripts in memory and runs each user turn
// through the resolver.
package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/sigil-dev/supportbot/pkg/types"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 30 * time.Minute

// NoExpiration keeps sessions until they are deleted.
const NoExpiration = cache.NoExpiration

// Turn is one message in a transcript. Confidence is empty for user turns.
type Turn struct {
	Role       types.Role       `json:"role"`
	Content    string           `json:"content"`
	Confidence types.Confidence `json:"confidence,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Session is an append-only transcript, oldest turn first.
type Session struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds sessions in memory. Sessions expire after ttl without
// activity; nothing is persisted.
type Store struct {
	mu    sync.Mutex
	items *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewStore returns a Store expiring idle sessions after ttl. NoExpiration
// disables expiry; any other non-positive ttl uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	cleanup := ttl
	switch {
	case ttl == NoExpiration:
		cleanup = 0
	case ttl <= 0:
		ttl, cleanup = DefaultTTL, DefaultTTL
	}
	return &Store{
		items: cache.New(ttl, cleanup),
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetNowFunc overrides the clock used for timestamps. For testing.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = fn
}

// Create starts an empty session.
func (s *Store) Create(_ context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items.Set(sess.ID, sess, s.ttl)
	return sess.clone(), nil
}

// Get returns a copy of the session.
func (s *Store) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.clone(), nil
}

// Append adds turns to the end of the session and refreshes its expiry.
func (s *Store) Append(_ context.Context, id string, turns ...Turn) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	for _, t := range turns {
		if !t.Role.Valid() {
			return nil, boterr.Errorf(boterr.CodeSessionInvalidInput, "invalid turn role %q", t.Role)
		}
	}

	now := s.now()
	for _, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		sess.Turns = append(sess.Turns, t)
	}
	sess.UpdatedAt = now
	s.items.Set(id, sess, s.ttl)
	return sess.clone(), nil
}

// Delete removes a session.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(id); err != nil {
		return err
	}
	s.items.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.items.ItemCount()
}

func (s *Store) lookup(id string) (*Session, error) {
	v, ok := s.items.Get(id)
	if !ok {
		return nil, boterr.New(boterr.CodeSessionNotFound, "session not found", boterr.FieldSessionID(id))
	}
	return v.(*Session), nil
}

func (s *Session) clone() *Session {
	out := *s
	out.Turns = slices.Clone(s.Turns)
	return &out
}
