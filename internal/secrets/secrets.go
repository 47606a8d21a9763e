// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps embedding API keys out of config files by storing
// them in the OS keyring and resolving keyring:// references.
package secrets

// ServiceName is the keyring service used by the secret command.
const ServiceName = "supportbot"

// Store provides secure secret storage operations.
type Store interface {
	Store(service, key, value string) error

	// Retrieve returns an error with CodeSecretNotFound if the key does
	// not exist.
	Retrieve(service, key string) (string, error)

	// Delete returns an error with CodeSecretNotFound if the key does not
	// exist.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}
