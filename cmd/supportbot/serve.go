// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  "Load the knowledge base and serve the resolve and session endpoints until interrupted.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.v.BindPFlag("server.listen", cmd.Flags().Lookup("listen")); err != nil {
				return boterr.Errorf(boterr.CodeCLISetupFailure, "binding listen flag: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := a.config(true)
			if err != nil {
				return err
			}
			rt, err := WireRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			srv, err := WireServer(cfg, rt)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving %d entries (%s) on %s\n", rt.Resolver.Len(), rt.Resolver.Model(), cfg.Server.Listen)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	return cmd
}
