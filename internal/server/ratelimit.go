// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

const (
	defaultMaxVisitors = 10000
	visitorIdleTTL     = 10 * time.Minute
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// MaxVisitors caps the number of IPs tracked at once. Requests from new
	// IPs beyond the cap are rejected until idle entries expire.
	MaxVisitors int
}

// Validate checks the config and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return boterr.Errorf(boterr.CodeConfigValidateInvalidValue,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return boterr.Errorf(boterr.CodeConfigValidateInvalidValue,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)", c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return boterr.Errorf(boterr.CodeConfigValidateInvalidValue,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = defaultMaxVisitors
	}
	return nil
}

// bucket is a token bucket for one client IP.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

type rateLimiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	visitors *cache.Cache
	now      func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		cfg:      cfg,
		visitors: cache.New(visitorIdleTTL, visitorIdleTTL/2),
		now:      time.Now,
	}
}

// allow takes one token from ip's bucket.
func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var b *bucket
	if v, ok := l.visitors.Get(ip); ok {
		b = v.(*bucket)
	} else {
		if l.visitors.ItemCount() >= l.cfg.MaxVisitors {
			l.visitors.DeleteExpired()
			if l.visitors.ItemCount() >= l.cfg.MaxVisitors {
				return false
			}
		}
		b = &bucket{tokens: float64(l.cfg.Burst), lastRefill: now}
	}

	b.tokens = min(b.tokens+now.Sub(b.lastRefill).Seconds()*l.cfg.RequestsPerSecond, float64(l.cfg.Burst))
	b.lastRefill = now
	l.visitors.Set(ip, b, cache.DefaultExpiration)

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// rateLimitMiddleware enforces per-IP limits. It passes everything through
// when cfg.RequestsPerSecond is zero.
func rateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := newRateLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Key by host so several connections from one client share a bucket.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !limiter.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":"rate limit exceeded"}`)); err != nil {
					slog.Warn("failed to write rate limit response", "error", err)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
