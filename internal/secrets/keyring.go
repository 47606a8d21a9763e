// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/zalando/go-keyring"
)

// indexKey holds a JSON list of the key names stored for a service, since
// go-keyring cannot enumerate entries.
const indexKey = "::index"

var _ Store = (*KeyringStore)(nil)

// KeyringStore implements Store on the OS keyring (Keychain, Secret Service
// or Windows Credential Manager).
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkNames(op, service, key string) error {
	if service == "" {
		return boterr.New(boterr.CodeSecretInvalidInput, "secret "+op+": service must not be empty")
	}
	if key == "" || key == indexKey {
		return boterr.New(boterr.CodeSecretInvalidInput, "secret "+op+": invalid key name "+key)
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkNames("store", service, key); err != nil {
		return err
	}

	if err := keyring.Set(service, key, value); err != nil {
		return boterr.Wrapf(err, boterr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}

	if err := s.addToIndex(service, key); err != nil {
		return err
	}

	return nil
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkNames("retrieve", service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", boterr.Errorf(boterr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", boterr.Wrapf(err, boterr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkNames("delete", service, key); err != nil {
		return err
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return boterr.Errorf(boterr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return boterr.Wrapf(err, boterr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}

	if err := s.removeFromIndex(service, key); err != nil {
		return err
	}

	return nil
}

// List returns the key names stored for service in sorted order.
func (s *KeyringStore) List(service string) ([]string, error) {
	return s.loadIndex(service)
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, boterr.Wrapf(err, boterr.CodeSecretListFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, boterr.Wrapf(err, boterr.CodeSecretListFailure, "decoding key index for %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) saveIndex(service string, keys []string) error {
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to remove empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return boterr.Wrapf(err, boterr.CodeSecretListFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return boterr.Wrapf(err, boterr.CodeSecretListFailure, "saving key index for %s", service)
	}
	return nil
}

func (s *KeyringStore) addToIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	keys = append(keys, key)
	slices.Sort(keys)
	return s.saveIndex(service, keys)
}

func (s *KeyringStore) removeFromIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	return s.saveIndex(service, slices.DeleteFunc(keys, func(k string) bool { return k == key }))
}
