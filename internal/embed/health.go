// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embed

import (
	"context"
	"sync"
	"time"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/sigil-dev/supportbot/pkg/health"
)

// DefaultHealthCooldown is how long an embedder is reported unavailable
// after a failed call.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker records the outcome of embedder calls. An embedder is
// healthy until a call fails, then unhealthy for the cooldown period.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	calls        int64
	failureCount int64
	lastError    string
	nowFunc      func() time.Time
}

// NewHealthTracker creates a HealthTracker that starts healthy.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, boterr.Errorf(boterr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// isHealthyLocked requires h.mu to be held.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.calls++
	h.healthy = true
	h.mu.Unlock()
}

// RecordFailure marks the embedder unhealthy. A nil err is recorded
// without a message.
func (h *HealthTracker) RecordFailure(err error) {
	h.mu.Lock()
	h.calls++
	if err != nil {
		h.lastError = err.Error()
	}
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Metrics returns a point-in-time snapshot safe to serialize.
func (h *HealthTracker) Metrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{Calls: h.calls, FailureCount: h.failureCount, LastError: h.lastError}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	m.Available = h.isHealthyLocked()
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}

// Monitored reports every call of an embedder to a HealthTracker.
// Context cancellation is not counted as a failure.
type Monitored struct {
	Embedder
	health *HealthTracker
}

func NewMonitored(next Embedder, tracker *HealthTracker) *Monitored {
	return &Monitored{Embedder: next, health: tracker}
}

func (m *Monitored) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := m.Embedder.Embed(ctx, texts)
	switch {
	case err == nil:
		m.health.RecordSuccess()
	case ctx.Err() == nil:
		m.health.RecordFailure(err)
	}
	return vecs, err
}

// Health returns the tracker's current snapshot.
func (m *Monitored) Health() health.Metrics {
	s := m.health.Metrics()
	s.Model = m.Model()
	return s
}
