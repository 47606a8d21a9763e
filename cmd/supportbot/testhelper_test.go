// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sigil-dev/supportbot/internal/secrets"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testCorpus = `instruction,response,intent,category
how do I track my order,You can track order {{Order Number}} on the {{Online Order Interaction}} page.,track_order,ORDER
I want a refund,Refunds are issued to your original payment method within 5 days.,get_refund,REFUND
can I change my delivery address,Update the address under {{Delivery Address}} before dispatch.,change_shipping_address,SHIPPING
what payment methods do you accept,We accept cards and PayPal.,check_payment_methods,PAYMENT
`

// testEnv is an isolated working directory with a corpus and config file.
type testEnv struct {
	dir       string
	artifacts string
	config    string
}

func newTestEnv(t *testing.T, extraConfig string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	corpusPath := filepath.Join(dir, "corpus.csv")
	require.NoError(t, os.WriteFile(corpusPath, []byte(testCorpus), 0o600))

	env := &testEnv{
		dir:       dir,
		artifacts: filepath.Join(dir, "artifacts"),
		config:    filepath.Join(dir, "supportbot.yaml"),
	}
	cfg := fmt.Sprintf("artifacts:\n  dir: %q\ncorpus:\n  source: %q\nembedding:\n  provider: local\n  model: hashing-256\n%s",
		env.artifacts, corpusPath, extraConfig)
	require.NoError(t, os.WriteFile(env.config, []byte(cfg), 0o600))
	return env
}

// run executes the root command and returns combined stdout.
func (e *testEnv) run(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	if stdin != nil {
		root.SetIn(stdin)
	} else {
		root.SetIn(strings.NewReader(""))
	}
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.Execute()
	return out.String(), err
}

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string
}

func newMockSecretStore() *mockSecretStore {
	return &mockSecretStore{data: make(map[string]string)}
}

func (m *mockSecretStore) Store(service, key, value string) error {
	m.data[service+"/"+key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(service, key string) (string, error) {
	v, ok := m.data[service+"/"+key]
	if !ok {
		return "", boterr.Errorf(boterr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return v, nil
}

func (m *mockSecretStore) Delete(service, key string) error {
	if _, ok := m.data[service+"/"+key]; !ok {
		return boterr.Errorf(boterr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	delete(m.data, service+"/"+key)
	return nil
}

func (m *mockSecretStore) List(service string) ([]string, error) {
	var keys []string
	for k := range m.data {
		if name, ok := strings.CutPrefix(k, service+"/"); ok {
			keys = append(keys, name)
		}
	}
	return keys, nil
}

func useMockSecrets(t *testing.T) *mockSecretStore {
	t.Helper()
	store := newMockSecretStore()
	prev := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = prev })
	return store
}
