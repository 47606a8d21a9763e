// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package bootstrap_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigil-dev/supportbot/internal/bootstrap"
	"github.com/sigil-dev/supportbot/internal/retry"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() retry.Policy {
	return retry.Policy{Attempts: 3, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestEnsure_PresentFilesAreNotFetched(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("remote"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.db"), []byte("local"), 0o644))

	report, err := bootstrap.NewFetcher(fastPolicy()).Ensure(context.Background(), dir, []bootstrap.Artifact{
		{Name: "index.db", Source: srv.URL + "/index.db"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"index.db"}, report.Present)
	assert.Empty(t, report.Fetched)
	assert.Zero(t, hits.Load())

	data, err := os.ReadFile(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestEnsure_EachArtifactUsesItsOwnSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("body of " + r.URL.Path))
	}))
	defer srv.Close()

	dir := t.TempDir()
	report, err := bootstrap.NewFetcher(fastPolicy()).Ensure(context.Background(), dir, []bootstrap.Artifact{
		{Name: "knowledge_base.jsonl", Source: srv.URL + "/kb"},
		{Name: "model_name.txt", Source: srv.URL + "/model"},
	})
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, []string{"knowledge_base.jsonl", "model_name.txt"}, report.Fetched)

	kb, err := os.ReadFile(filepath.Join(dir, "knowledge_base.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "body of /kb", string(kb))

	model, err := os.ReadFile(filepath.Join(dir, "model_name.txt"))
	require.NoError(t, err)
	assert.Equal(t, "body of /model", string(model))
}

func TestEnsure_RetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := bootstrap.NewFetcher(fastPolicy()).Ensure(context.Background(), dir, []bootstrap.Artifact{
		{Name: "model_name.txt", Source: srv.URL},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestEnsure_NotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	report, err := bootstrap.NewFetcher(fastPolicy()).Ensure(context.Background(), dir, []bootstrap.Artifact{
		{Name: "index.db", Source: srv.URL},
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
	require.Contains(t, report.Failed, "index.db")
	assert.True(t, boterr.HasCode(report.Failed["index.db"], boterr.CodeBootstrapFetchFailure))

	_, statErr := os.Stat(filepath.Join(dir, "index.db"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnsure_CopiesLocalSources(t *testing.T) {
	src := filepath.Join(t.TempDir(), "model.txt")
	require.NoError(t, os.WriteFile(src, []byte("local/hashing-384\n"), 0o644))

	dir := t.TempDir()
	report, err := bootstrap.NewFetcher(fastPolicy()).Ensure(context.Background(), dir, []bootstrap.Artifact{
		{Name: "model_name.txt", Source: src},
		{Name: "copy.txt", Source: "file://" + src},
	})
	require.NoError(t, err)
	assert.Len(t, report.Fetched, 2)

	for _, name := range []string{"model_name.txt", "copy.txt"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, "local/hashing-384\n", string(data))
	}
}

func TestEnsure_CollectsFailuresPerFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "entries.jsonl")
	require.NoError(t, os.WriteFile(src, []byte("{}\n"), 0o644))

	dir := t.TempDir()
	report, err := bootstrap.NewFetcher(fastPolicy()).Ensure(context.Background(), dir, []bootstrap.Artifact{
		{Name: "index.db", Source: ""},
		{Name: "knowledge_base.jsonl", Source: src},
		{Name: "model_name.txt", Source: filepath.Join(t.TempDir(), "absent.txt")},
	})
	require.Error(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{"knowledge_base.jsonl"}, report.Fetched)

	require.Len(t, report.Failed, 2)
	assert.True(t, boterr.HasCode(report.Failed["index.db"], boterr.CodeBootstrapSourceMissing))
	assert.True(t, boterr.IsNotFound(report.Failed["model_name.txt"]))
	assert.Equal(t, "index.db", boterr.FieldsOf(report.Failed["index.db"])["artifact"])
}

func TestEnsure_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := bootstrap.NewFetcher(fastPolicy()).Ensure(ctx, t.TempDir(), []bootstrap.Artifact{
		{Name: "index.db", Source: srv.URL},
	})
	require.Error(t, err)
	assert.Contains(t, report.Failed, "index.db")
}
