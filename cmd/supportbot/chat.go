// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sigil-dev/supportbot/internal/session"
	"github.com/sigil-dev/supportbot/internal/tui"
	"github.com/spf13/cobra"
)

const chatTitle = "Customer Support Assistant"

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Long:  "Open an interactive chat. When stdin is not a terminal, questions are read one per line.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config(true)
			if err != nil {
				return err
			}
			rt, err := WireRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			// The process owns its one chat session.
			store := session.NewStore(session.NoExpiration)
			sess, err := store.Create(cmd.Context())
			if err != nil {
				return err
			}
			p := session.NewPresenter(store, rt.Resolver)

			if isTerminal(cmd.InOrStdin()) && isTerminal(cmd.OutOrStdout()) {
				return tui.Run(cmd.Context(), p, sess.ID, chatTitle)
			}
			return tui.REPL(cmd.Context(), p, sess.ID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

