// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package bootstrap fetches missing knowledge-base artifacts before the
// resolver is loaded.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sigil-dev/supportbot/internal/retry"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

const defaultTimeout = 2 * time.Minute

// Artifact names a file inside the artifacts directory and where to get it
// from when it is absent. Source is an http(s) URL, a file:// URL or a
// local path.
type Artifact struct {
	Name   string
	Source string
}

// Report describes what Ensure did for each artifact.
type Report struct {
	Present []string
	Fetched []string
	Failed  map[string]error
}

// OK reports whether every artifact is available.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// Fetcher downloads or copies missing artifacts.
type Fetcher struct {
	client *http.Client
	policy retry.Policy
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// NewFetcher returns a Fetcher retrying downloads according to policy.
func NewFetcher(policy retry.Policy, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: defaultTimeout},
		policy: policy,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ensure makes every artifact exist in dir. Files already present are left
// untouched. Failures are collected per file; the returned error joins them
// and the report lists which files failed.
func (f *Fetcher) Ensure(ctx context.Context, dir string, artifacts []Artifact) (Report, error) {
	report := Report{Failed: map[string]error{}}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report, boterr.Wrap(err, boterr.CodeBootstrapWriteFailure, "creating artifacts directory", boterr.FieldPath(dir))
	}

	var errs []error
	for _, a := range artifacts {
		dest := filepath.Join(dir, a.Name)
		if _, err := os.Stat(dest); err == nil {
			report.Present = append(report.Present, a.Name)
			continue
		}

		if err := f.fetch(ctx, a.Source, dest); err != nil {
			err = boterr.With(err, boterr.Field("artifact", a.Name))
			report.Failed[a.Name] = err
			errs = append(errs, err)
			slog.Warn("artifact fetch failed", "artifact", a.Name, "source", a.Source, "error", err)
			continue
		}
		report.Fetched = append(report.Fetched, a.Name)
		slog.Info("artifact fetched", "artifact", a.Name, "source", a.Source)
	}

	if len(errs) > 0 {
		return report, boterr.Join(errs...)
	}
	return report, nil
}

func (f *Fetcher) fetch(ctx context.Context, source, dest string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return boterr.New(boterr.CodeBootstrapSourceMissing, "artifact missing and no source configured", boterr.FieldPath(dest))
	}

	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return retry.Do(ctx, f.policy, isPermanent, func() error {
			return f.download(ctx, source, dest)
		})
	}

	path := source
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	return copyFile(path, dest)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func isPermanent(err error) bool {
	if boterr.HasCode(err, boterr.CodeBootstrapWriteFailure) {
		return true
	}
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests
}

func (f *Fetcher) download(ctx context.Context, source, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return boterr.Wrap(err, boterr.CodeBootstrapFetchFailure, "building request", boterr.Field("source", source))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return boterr.Wrap(err, boterr.CodeBootstrapFetchFailure, "downloading artifact", boterr.Field("source", source))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return boterr.Wrap(&statusError{code: resp.StatusCode}, boterr.CodeBootstrapFetchFailure,
			"downloading artifact", boterr.Field("source", source), boterr.Field("status", resp.StatusCode))
	}

	return writeAtomic(dest, resp.Body)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		code := boterr.CodeBootstrapFetchFailure
		if os.IsNotExist(err) {
			code = boterr.CodeBootstrapSourceMissing
		}
		return boterr.Wrap(err, code, "opening artifact source", boterr.FieldPath(src))
	}
	defer func() { _ = in.Close() }()

	return writeAtomic(dest, in)
}

// writeAtomic copies r into a temporary file next to dest and renames it
// into place once complete.
func writeAtomic(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return boterr.Wrap(err, boterr.CodeBootstrapWriteFailure, "creating temp file", boterr.FieldPath(dest))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return boterr.Wrap(err, boterr.CodeBootstrapFetchFailure, "copying artifact", boterr.FieldPath(dest))
	}
	if err := tmp.Close(); err != nil {
		return boterr.Wrap(err, boterr.CodeBootstrapWriteFailure, "closing temp file", boterr.FieldPath(dest))
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return boterr.Wrap(err, boterr.CodeBootstrapWriteFailure, "moving artifact into place", boterr.FieldPath(dest))
	}
	return nil
}
