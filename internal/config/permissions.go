// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// WarnInsecurePermissions logs a warning when the config file holds an
// inline API key and is readable by group or others. Keyring references
// are not secrets and never trigger the warning.
func WarnInsecurePermissions(cfg *Config) {
	if cfg == nil || cfg.File == "" || !hasInlineSecret(cfg) {
		return
	}

	info, err := os.Stat(cfg.File)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", cfg.File, "error", err)
		return
	}

	mode := info.Mode()
	const groupRead fs.FileMode = 0o040
	const otherRead fs.FileMode = 0o004

	if mode.Perm()&(groupRead|otherRead) != 0 {
		slog.Warn(
			"config file with an inline api_key has insecure permissions",
			"path", cfg.File,
			"mode", mode,
			"recommended", "0600",
		)
	}
}

func hasInlineSecret(cfg *Config) bool {
	key := cfg.Embedding.APIKey
	return key != "" && !strings.HasPrefix(key, "keyring://")
}
