// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/sigil-dev/supportbot/internal/config"
	"github.com/sigil-dev/supportbot/internal/secrets"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// secretKeys are config keys that may hold keyring:// references.
var secretKeys = []string{"embedding.api_key"}

// app carries the per-invocation configuration shared by subcommands.
type app struct {
	v *viper.Viper
}

// NewRootCmd creates the root supportbot command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "supportbot",
		Short:         "Semantic-search customer support assistant",
		Long:          "supportbot answers customer questions by retrieving the closest entry from a prebuilt knowledge base.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("artifacts-dir", "", "path to the knowledge-base artifacts directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newBuildCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newServeCmd(a),
		newFetchCmd(a),
		newConfigCmd(a),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// init loads .env, sets up logging and reads configuration with the
// precedence flag > env > file > defaults.
func (a *app) init(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return boterr.Errorf(boterr.CodeCLISetupFailure, "loading .env: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	config.SetDefaults(a.v)
	config.SetupEnv(a.v)

	cfgFile, _ := cmd.Flags().GetString("config")
	used, err := config.ReadFile(a.v, cfgFile)
	if err != nil {
		return err
	}
	if used != "" {
		slog.Debug("using config file", "path", used)
	}

	if err := a.v.BindPFlag("artifacts.dir", cmd.Root().PersistentFlags().Lookup("artifacts-dir")); err != nil {
		return boterr.Errorf(boterr.CodeCLISetupFailure, "binding artifacts-dir flag: %w", err)
	}
	return nil
}

// config decodes the effective configuration. With resolveSecrets set,
// keyring:// references are replaced by the stored secrets.
func (a *app) config(resolveSecrets bool) (*config.Config, error) {
	if resolveSecrets {
		resolved, err := secrets.ResolveKeys(secretStoreFactory(), a.v.GetString, a.v.Set, secretKeys...)
		if err != nil {
			return nil, err
		}
		for _, key := range resolved {
			slog.Debug("resolved secret from keyring", "key", key)
		}
	}

	cfg, err := config.FromViper(a.v)
	if err != nil {
		return nil, err
	}
	config.WarnInsecurePermissions(cfg)
	return cfg, nil
}
