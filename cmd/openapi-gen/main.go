// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigil-dev/supportbot/internal/resolver"
	"github.com/sigil-dev/supportbot/internal/server"
	"github.com/sigil-dev/supportbot/internal/session"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec registers every route on a server backed by a stub resolver
// and returns the OpenAPI document huma derives from the handler types.
func generateSpec() ([]byte, error) {
	var r stubResolver
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, server.Services{
		Resolver:  r,
		Presenter: session.NewPresenter(session.NewStore(0), r),
	})
	if err != nil {
		return nil, boterr.Errorf(boterr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// stubResolver is never queried during spec generation.
type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, q string) resolver.Outcome { return resolver.Fallback(q) }
func (stubResolver) Model() string { return "" }
func (stubResolver) Dim() int { return 0 }
func (stubResolver) Len() int { return 0 }
