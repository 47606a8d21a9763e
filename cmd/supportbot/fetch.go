// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"sort"

	"github.com/sigil-dev/supportbot/internal/bootstrap"
	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download missing artifacts from artifacts.remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config(false)
			if err != nil {
				return err
			}

			report, err := bootstrap.NewFetcher(cfg.Bootstrap.Policy()).Ensure(cmd.Context(), cfg.Artifacts.Dir, remoteArtifacts(cfg))

			out := cmd.OutOrStdout()
			for _, name := range report.Present {
				_, _ = fmt.Fprintf(out, "present  %s\n", name)
			}
			for _, name := range report.Fetched {
				_, _ = fmt.Fprintf(out, "fetched  %s\n", name)
			}
			failed := make([]string, 0, len(report.Failed))
			for name := range report.Failed {
				failed = append(failed, name)
			}
			sort.Strings(failed)
			for _, name := range failed {
				_, _ = fmt.Fprintf(out, "failed   %s: %v\n", name, report.Failed[name])
			}
			return err
		},
	}
}
