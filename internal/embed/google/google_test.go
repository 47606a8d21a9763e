// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google_test

import (
	"context"
	"testing"

	"github.com/sigil-dev/supportbot/internal/embed"
	"github.com/sigil-dev/supportbot/internal/embed/google"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface satisfaction check.
var _ embed.Embedder = (*google.Embedder)(nil)

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := google.New(context.Background(), google.Config{Model: "text-embedding-004"})
	require.Error(t, err)
	assert.True(t, boterr.HasCode(err, boterr.CodeEmbedRequestInvalid))
	assert.Equal(t, "google", boterr.FieldsOf(err)["provider"])
}

func TestNew_MissingModel(t *testing.T) {
	_, err := google.New(context.Background(), google.Config{APIKey: "k"})
	assert.True(t, boterr.HasCode(err, boterr.CodeEmbedRequestInvalid))
}

func TestFactory_ModelName(t *testing.T) {
	e, err := google.Factory(context.Background(), "text-embedding-004", embed.Options{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "google/text-embedding-004", e.Model())
	assert.NoError(t, e.Close())
}
