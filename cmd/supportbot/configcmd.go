// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"

	"github.com/sigil-dev/supportbot/internal/config"
	"github.com/sigil-dev/supportbot/internal/secrets"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "********"

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := a.config(false)
				if err != nil {
					return err
				}
				data, err := renderConfig(cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file in use",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				used := a.v.ConfigFileUsed()
				if used == "" {
					used = "(none; using defaults and environment)"
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), used)
				return err
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the default commented config to ~/.config/supportbot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				out := cmd.OutOrStdout()
				if path := config.BootstrapConfig(); path != "" {
					_, err := fmt.Fprintf(out, "Config written to: %s\n", path)
					return err
				}
				path, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "Config already exists at %s (or could not be written)\n", path)
				return err
			},
		},
	)

	return cmd
}

// renderConfig marshals cfg with inline API keys masked. keyring:// references
// are shown as they are.
func renderConfig(cfg *config.Config) ([]byte, error) {
	shown := *cfg
	if key := shown.Embedding.APIKey; key != "" && !secrets.IsRef(key) {
		shown.Embedding.APIKey = redacted
	}

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return nil, boterr.Errorf(boterr.CodeCLISetupFailure, "encoding config: %w", err)
	}
	return data, nil
}
