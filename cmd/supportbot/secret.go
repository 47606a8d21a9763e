// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/sigil-dev/supportbot/internal/secrets"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/spf13/cobra"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage API keys stored in the OS keyring",
		Long: "Store, show, list and delete secrets kept under the supportbot keyring service. " +
			"Reference a stored key from the config as keyring://supportbot/<name>.",
	}

	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret (value from --value or the first line of stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
	set.Flags().String("value", "", "secret value; read from stdin when omitted")

	get := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a stored secret, masked unless --reveal is given",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretGet,
	}
	get.Flags().Bool("reveal", false, "print the full value")

	cmd.AddCommand(
		set,
		get,
		&cobra.Command{
			Use:   "list",
			Short: "List stored secret names",
			Args:  cobra.NoArgs,
			RunE:  runSecretList,
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a secret by name",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretDelete,
		},
	)

	return cmd
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	value, _ := cmd.Flags().GetString("value")
	if value == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return boterr.Errorf(boterr.CodeCLIInputInvalid, "reading secret value from stdin: %w", err)
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		return boterr.New(boterr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	if err := secretStoreFactory().Store(secrets.ServiceName, name, value); err != nil {
		return err
	}

	ref := secrets.Ref{Service: secrets.ServiceName, Key: name}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s\nReference it as: %s\n", name, ref)
	return nil
}

func runSecretGet(cmd *cobra.Command, args []string) error {
	reveal, _ := cmd.Flags().GetBool("reveal")

	value, err := secretStoreFactory().Retrieve(secrets.ServiceName, args[0])
	if err != nil {
		return err
	}
	if !reveal {
		value = mask(value)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
	return err
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.ServiceName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := secretStoreFactory().Delete(secrets.ServiceName, name); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}

// mask keeps the last four characters of values longer than eight.
func mask(value string) string {
	if len(value) <= 8 {
		return redacted
	}
	return redacted + value[len(value)-4:]
}
