// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sigil-dev/supportbot/internal/server"
	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			cfg, err := a.config(true)
			if err != nil {
				return err
			}
			rt, err := WireRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			o := rt.Resolver.Resolve(cmd.Context(), strings.Join(args, " "))
			if o.Degraded() {
				slog.Warn("query degraded", "error", o.Err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(server.NewAnswer(o))
			}
			_, err = fmt.Fprintf(out, "%s\nConfidence: %s\n", o.Answer, o.Confidence)
			return err
		},
	}

	cmd.Flags().Bool("json", false, "print the answer as JSON")
	return cmd
}
