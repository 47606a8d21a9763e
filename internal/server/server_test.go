// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sigil-dev/supportbot/internal/resolver"
	"github.com/sigil-dev/supportbot/internal/server"
	"github.com/sigil-dev/supportbot/internal/session"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/sigil-dev/supportbot/pkg/health"
	"github.com/sigil-dev/supportbot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver answers "hello" from the knowledge base and everything else
// from the keyword fallback.
type stubResolver struct {
	degrade bool
}

func (s *stubResolver) Resolve(_ context.Context, q string) resolver.Outcome {
	switch {
	case s.degrade:
		return resolver.Outcome{
			Kind:       resolver.KindDegraded,
			Answer:     resolver.DegradedAnswer,
			Confidence: types.ConfidenceLow,
			Source:     resolver.SourceError,
			Position:   -1,
			Err:        errors.New("embedder unavailable"),
		}
	case q == "hello":
		return resolver.Outcome{
			Kind:       resolver.KindResolved,
			Answer:     "Hi! How can I help?",
			Confidence: types.ConfidenceHigh,
			Source:     resolver.SourceMatch,
			Score:      0.93,
			Intent:     "greeting",
			Category:   "GENERAL",
		}
	default:
		return resolver.Fallback(q)
	}
}

func (s *stubResolver) Model() string { return "local/hashing-384" }
func (s *stubResolver) Dim() int { return 384 }
func (s *stubResolver) Len() int { return 12 }

func newTestServer(t *testing.T, r server.Resolver, opts ...func(*server.Config, *server.Services)) *server.Server {
	t.Helper()
	cfg := server.Config{ListenAddr: "127.0.0.1:0"}
	svc := server.Services{
		Resolver:  r,
		Presenter: session.NewPresenter(session.NewStore(time.Minute), r),
	}
	for _, opt := range opts {
		opt(&cfg, &svc)
	}
	srv, err := server.New(cfg, svc)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestServer_NewValidation(t *testing.T) {
	r := &stubResolver{}
	p := session.NewPresenter(session.NewStore(time.Minute), r)

	_, err := server.New(server.Config{}, server.Services{Resolver: r, Presenter: p})
	assert.True(t, boterr.HasCode(err, boterr.CodeServerStartFailure))

	_, err = server.New(server.Config{ListenAddr: ":0"}, server.Services{Presenter: p})
	assert.True(t, boterr.HasCode(err, boterr.CodeServerStartFailure))

	_, err = server.New(server.Config{ListenAddr: ":0", RateLimit: server.RateLimitConfig{RequestsPerSecond: 1}},
		server.Services{Resolver: r, Presenter: p})
	assert.True(t, boterr.IsInvalidInput(err))
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubResolver{})

	w := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestServer_OpenAPISpec(t *testing.T) {
	srv := newTestServer(t, &stubResolver{})

	w := do(t, srv.Handler(), http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, path := range []string{"/api/v1/resolve", "/api/v1/status", "/api/v1/sessions/{id}/messages"} {
		assert.Contains(t, w.Body.String(), path)
	}
}

func TestServer_Status(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, func(_ *server.Config, svc *server.Services) {
		svc.Health = func() health.Metrics { return health.Metrics{Available: false, FailureCount: 2} }
	})

	w := do(t, srv.Handler(), http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "local/hashing-384", body["model"])
	assert.EqualValues(t, 384, body["dimensions"])
	assert.EqualValues(t, 12, body["entries"])
	embedder, ok := body["embedder"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, embedder["failure_count"])
}

func TestServer_StatusWithoutHealth(t *testing.T) {
	srv := newTestServer(t, &stubResolver{})

	body := decode(t, do(t, srv.Handler(), http.MethodGet, "/api/v1/status", nil))
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "embedder")
}

func TestServer_Resolve(t *testing.T) {
	srv := newTestServer(t, &stubResolver{})

	tests := []struct {
		name       string
		query      string
		answer     string
		confidence string
		source     string
	}{
		{"match", "hello", "Hi! How can I help?", "High", "match"},
		{"keyword", "I want to cancel", "", "Medium", "fallback"},
		{"no keyword", "blorp", resolver.HelpMessage, "Low", "fallback"},
		{"empty", "", resolver.HelpMessage, "Low", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv.Handler(), http.MethodPost, "/api/v1/resolve", map[string]string{"query": tt.query})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			body := decode(t, w)
			if tt.answer != "" {
				assert.Equal(t, tt.answer, body["answer"])
			} else {
				assert.NotEmpty(t, body["answer"])
			}
			assert.Equal(t, tt.confidence, body["confidence"])
			assert.Equal(t, tt.source, body["source"])
			assert.Equal(t, false, body["degraded"])
		})
	}
}

func TestServer_ResolveDegraded(t *testing.T) {
	srv := newTestServer(t, &stubResolver{degrade: true})

	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/resolve", map[string]string{"query": "track my order"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["degraded"])
	assert.Equal(t, "Low", body["confidence"])
	assert.Equal(t, resolver.DegradedAnswer, body["answer"])
}

func TestServer_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t, &stubResolver{})
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decode(t, w)["session_id"].(string)
	require.NotEmpty(t, id)

	w = do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/messages", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reply := decode(t, w)
	assert.Equal(t, "assistant", reply["role"])
	assert.Equal(t, "Hi! How can I help?", reply["answer"])
	assert.Equal(t, "High", reply["confidence"])
	assert.Equal(t, id, reply["session_id"])

	w = do(t, h, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	transcript := decode(t, w)
	turns, ok := transcript["turns"].([]any)
	require.True(t, ok)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].(map[string]any)["role"])
	assert.Equal(t, "High", turns[1].(map[string]any)["confidence"])

	w = do(t, h, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_UnknownSession(t *testing.T) {
	srv := newTestServer(t, &stubResolver{})

	w := do(t, srv.Handler(), http.MethodGet, "/api/v1/sessions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv.Handler(), http.MethodPost, "/api/v1/sessions/does-not-exist/messages", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_EmptyMessageRejected(t *testing.T) {
	srv := newTestServer(t, &stubResolver{})
	h := srv.Handler()

	id, _ := decode(t, do(t, h, http.MethodPost, "/api/v1/sessions", nil))["session_id"].(string)
	w := do(t, h, http.MethodPost, "/api/v1/sessions/"+id+"/messages", map[string]string{"content": ""})
	assert.GreaterOrEqual(t, w.Code, 400)
	assert.Less(t, w.Code, 500)
}

func TestServer_CORS(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, func(cfg *server.Config, _ *server.Services) {
		cfg.CORSOrigins = []string{"https://support.example.test"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/resolve", nil)
	req.Header.Set("Origin", "https://support.example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "https://support.example.test", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RateLimit(t *testing.T) {
	srv := newTestServer(t, &stubResolver{}, func(cfg *server.Config, _ *server.Services) {
		cfg.RateLimit = server.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	})

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, do(t, srv.Handler(), http.MethodGet, "/health", nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, &stubResolver{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_StartRejectsBadAddress(t *testing.T) {
	r := &stubResolver{}
	srv, err := server.New(server.Config{ListenAddr: "not-an-address"},
		server.Services{Resolver: r, Presenter: session.NewPresenter(session.NewStore(time.Minute), r)})
	require.NoError(t, err)

	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not-an-address"))
}
