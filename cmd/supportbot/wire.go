// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/sigil-dev/supportbot/internal/bootstrap"
	"github.com/sigil-dev/supportbot/internal/config"
	"github.com/sigil-dev/supportbot/internal/embed"
	googleemb "github.com/sigil-dev/supportbot/internal/embed/google"
	ollamaemb "github.com/sigil-dev/supportbot/internal/embed/ollama"
	openaiemb "github.com/sigil-dev/supportbot/internal/embed/openai"
	"github.com/sigil-dev/supportbot/internal/kb"
	"github.com/sigil-dev/supportbot/internal/resolver"
	"github.com/sigil-dev/supportbot/internal/server"
	"github.com/sigil-dev/supportbot/internal/session"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// Runtime holds the loaded knowledge base and the resolver built on it.
type Runtime struct {
	KB       *kb.KnowledgeBase
	Resolver *resolver.Resolver
	Embedder *embed.Monitored
}

// Close releases the knowledge base.
func (r *Runtime) Close() error {
	return r.KB.Close()
}

// newRegistry returns an embedding registry with every built-in provider.
func newRegistry() *embed.Registry {
	reg := embed.NewRegistry()
	reg.Register(openaiemb.ProviderName, openaiemb.Factory)
	reg.Register(googleemb.ProviderName, googleemb.Factory)
	reg.Register(ollamaemb.ProviderName, ollamaemb.Factory)
	return reg
}

func embedOptions(cfg *config.Config) embed.Options {
	return embed.Options{
		Endpoint: cfg.Embedding.Endpoint,
		APIKey:   cfg.Embedding.APIKey,
		Timeout:  cfg.Embedding.Timeout,
		Retry:    cfg.Embedding.Retry.Policy(),
	}
}

// remoteArtifacts pairs each artifact file with its configured source.
func remoteArtifacts(cfg *config.Config) []bootstrap.Artifact {
	return []bootstrap.Artifact{
		{Name: kb.EntriesFile, Source: cfg.Artifacts.Remote.Entries},
		{Name: kb.IndexFile, Source: cfg.Artifacts.Remote.Index},
		{Name: kb.ModelFile, Source: cfg.Artifacts.Remote.Model},
	}
}

// fetchArtifacts downloads missing artifacts. Failures are logged; loading
// reports the fatal error if a file is still missing afterwards.
func fetchArtifacts(ctx context.Context, cfg *config.Config) bootstrap.Report {
	report, err := bootstrap.NewFetcher(cfg.Bootstrap.Policy()).Ensure(ctx, cfg.Artifacts.Dir, remoteArtifacts(cfg))
	if err != nil {
		slog.Warn("artifact bootstrap incomplete", "path", cfg.Artifacts.Dir, "failed", len(report.Failed))
	}
	return report
}

// WireRuntime fetches and loads the artifacts and builds the resolver.
// The query embedder is wrapped with a cache and a health tracker.
func WireRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	fetchArtifacts(ctx, cfg)

	reg := newRegistry()
	opts := embedOptions(cfg)

	var monitored *embed.Monitored
	k, err := kb.Load(ctx, cfg.Artifacts.Dir, kb.LoadOptions{
		OnDisk: cfg.Artifacts.OnDisk,
		Embedders: func(ctx context.Context, model string) (embed.Embedder, error) {
			e, err := reg.New(ctx, model, opts)
			if err != nil {
				return nil, err
			}
			tracker, err := embed.NewHealthTracker(embed.DefaultHealthCooldown)
			if err != nil {
				_ = e.Close()
				return nil, err
			}
			monitored = embed.NewMonitored(embed.NewCached(e, cfg.Embedding.CacheTTL), tracker)
			return monitored, nil
		},
	})
	if err != nil {
		return nil, err
	}

	if want := cfg.Embedding.ModelID(); want != k.Model {
		slog.Warn("configured embedding model differs from the knowledge base; using the knowledge base model",
			"configured", want, "model", k.Model)
	}

	res, err := resolver.New(k.Embedder, k.Entries, k.Index,
		resolver.WithThresholds(resolver.Thresholds{
			Low:  float32(cfg.Retrieval.LowThreshold),
			High: float32(cfg.Retrieval.HighThreshold),
		}),
		resolver.WithTopK(cfg.Retrieval.TopK),
	)
	if err != nil {
		_ = k.Close()
		return nil, err
	}

	return &Runtime{KB: k, Resolver: res, Embedder: monitored}, nil
}

// WireServer builds the HTTP API over a loaded runtime.
func WireServer(cfg *config.Config, rt *Runtime) (*server.Server, error) {
	store := session.NewStore(cfg.Sessions.TTL)

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RPS,
			Burst:             cfg.Server.RateLimit.Burst,
		},
		Version: version,
	}, server.Services{
		Resolver:  rt.Resolver,
		Presenter: session.NewPresenter(store, rt.Resolver),
		Health:    rt.Embedder.Health,
	})
	if err != nil {
		return nil, boterr.With(err, boterr.Field("listen", cfg.Server.Listen))
	}
	return srv, nil
}
