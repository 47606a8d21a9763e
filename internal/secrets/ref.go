// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"strings"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

const scheme = "keyring://"

// Ref points at a keyring entry: keyring://service/key.
type Ref struct {
	Service string
	Key     string
}

// IsRef reports whether value uses the keyring:// scheme.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef parses keyring://service/key. The key may contain slashes.
func ParseRef(uri string) (Ref, error) {
	if !IsRef(uri) {
		return Ref{}, boterr.Errorf(boterr.CodeSecretInvalidInput, "not a keyring reference: %q", uri)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(uri, scheme), "/")
	if !ok || service == "" || key == "" {
		return Ref{}, boterr.Errorf(boterr.CodeSecretInvalidInput,
			"invalid keyring reference %q: expected keyring://service/key", uri)
	}
	return Ref{Service: service, Key: key}, nil
}

func (r Ref) String() string {
	return scheme + r.Service + "/" + r.Key
}

// Resolve returns value unchanged unless it is a keyring reference, in
// which case the referenced secret is returned.
func Resolve(store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}

	ref, err := ParseRef(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(ref.Service, ref.Key)
	if err != nil {
		return "", boterr.Wrapf(err, boterr.CodeSecretResolveFailure, "resolving %s", ref)
	}
	return secret, nil
}

// ResolveKeys replaces keyring references stored under keys, reading and
// writing through get and set (typically viper's GetString and Set). It
// returns the keys that held references.
func ResolveKeys(store Store, get func(key string) string, set func(key string, value any), keys ...string) ([]string, error) {
	var resolved []string
	for _, key := range keys {
		value := get(key)
		if !IsRef(value) {
			continue
		}
		secret, err := Resolve(store, value)
		if err != nil {
			return resolved, boterr.With(err, boterr.Field("config_key", key))
		}
		set(key, secret)
		resolved = append(resolved, key)
	}
	return resolved, nil
}
