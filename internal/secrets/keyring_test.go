// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets_test

import (
	"testing"

	"github.com/sigil-dev/supportbot/internal/secrets"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func init() {
	keyring.MockInit()
}

func TestKeyringStore_StoreRetrieveDelete(t *testing.T) {
	store := secrets.NewKeyringStore()
	service := "test-" + t.Name()

	require.NoError(t, store.Store(service, "openai", "sk-one"))
	require.NoError(t, store.Store(service, "google", "g-two"))

	got, err := store.Retrieve(service, "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-one", got)

	keys, err := store.List(service)
	require.NoError(t, err)
	assert.Equal(t, []string{"google", "openai"}, keys)

	require.NoError(t, store.Delete(service, "openai"))
	_, err = store.Retrieve(service, "openai")
	assert.True(t, boterr.HasCode(err, boterr.CodeSecretNotFound))

	keys, err = store.List(service)
	require.NoError(t, err)
	assert.Equal(t, []string{"google"}, keys)
}

func TestKeyringStore_OverwriteKeepsSingleIndexEntry(t *testing.T) {
	store := secrets.NewKeyringStore()
	service := "test-" + t.Name()

	require.NoError(t, store.Store(service, "k", "v1"))
	require.NoError(t, store.Store(service, "k", "v2"))

	got, err := store.Retrieve(service, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	keys, err := store.List(service)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}

func TestKeyringStore_ListEmpty(t *testing.T) {
	keys, err := secrets.NewKeyringStore().List("test-" + t.Name())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeyringStore_DeleteMissing(t *testing.T) {
	err := secrets.NewKeyringStore().Delete("test-"+t.Name(), "absent")
	assert.True(t, boterr.IsNotFound(err))
}

func TestKeyringStore_InvalidNames(t *testing.T) {
	store := secrets.NewKeyringStore()

	tests := []struct {
		name    string
		service string
		key     string
	}{
		{"empty service", "", "k"},
		{"empty key", "svc", ""},
		{"reserved key", "svc", "::index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, boterr.IsInvalidInput(store.Store(tt.service, tt.key, "v")))
			_, err := store.Retrieve(tt.service, tt.key)
			assert.True(t, boterr.IsInvalidInput(err))
			assert.True(t, boterr.IsInvalidInput(store.Delete(tt.service, tt.key)))
		})
	}
}
