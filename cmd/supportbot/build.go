// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sigil-dev/supportbot/internal/bootstrap"
	"github.com/sigil-dev/supportbot/internal/config"
	"github.com/sigil-dev/supportbot/internal/corpus"
	"github.com/sigil-dev/supportbot/internal/kb"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/spf13/cobra"
)

func newBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the knowledge-base artifacts from the corpus",
		Long: "Read corpus.source, normalize the answers, embed every question with the configured " +
			"model and write knowledge_base.jsonl, index.db and model_name.txt to the artifacts directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			n, cfg, err := a.runBuild(cmd.Context())
			if err != nil {
				_, _ = fmt.Fprintf(out, "❌ Build failed: %v\n", err)
				return err
			}
			_, err = fmt.Fprintf(out, "✅ Knowledge base built: %d entries embedded with %s, saved to %s\n",
				n, cfg.Embedding.ModelID(), cfg.Artifacts.Dir)
			return err
		},
	}
}

func (a *app) runBuild(ctx context.Context) (int, *config.Config, error) {
	cfg, err := a.config(true)
	if err != nil {
		return 0, nil, err
	}
	if strings.TrimSpace(cfg.Corpus.Source) == "" {
		return 0, cfg, boterr.New(boterr.CodeCLIInputInvalid, "corpus.source is not set")
	}

	src, cleanup, err := localCorpus(ctx, cfg)
	if err != nil {
		return 0, cfg, err
	}
	defer cleanup()

	records, err := corpus.Load(ctx, src)
	if err != nil {
		return 0, cfg, err
	}
	entries := corpus.Normalize(records)

	e, err := newRegistry().New(ctx, cfg.Embedding.ModelID(), embedOptions(cfg))
	if err != nil {
		return 0, cfg, err
	}
	defer func() { _ = e.Close() }()

	arts, err := kb.NewBuilder(e, cfg.Embedding.BatchSize).BuildAndSave(ctx, cfg.Artifacts.Dir, entries)
	if err != nil {
		return 0, cfg, err
	}
	return len(arts.Entries), cfg, nil
}

// localCorpus returns a local path for corpus.source, downloading it to a
// temporary directory when it is an http(s) URL.
func localCorpus(ctx context.Context, cfg *config.Config) (string, func(), error) {
	noop := func() {}
	src := cfg.Corpus.Source

	u, err := url.Parse(src)
	if err != nil {
		return src, noop, nil
	}
	switch u.Scheme {
	case "file":
		return u.Path, noop, nil
	case "http", "https":
	default:
		return src, noop, nil
	}

	dir, err := os.MkdirTemp("", "supportbot-corpus-*")
	if err != nil {
		return "", noop, boterr.Wrap(err, boterr.CodeCorpusLoadReadFailure, "creating download directory")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "corpus.csv"
	}
	if _, err := bootstrap.NewFetcher(cfg.Bootstrap.Policy()).Ensure(ctx, dir, []bootstrap.Artifact{{Name: name, Source: src}}); err != nil {
		cleanup()
		return "", noop, err
	}
	return filepath.Join(dir, name), cleanup, nil
}
