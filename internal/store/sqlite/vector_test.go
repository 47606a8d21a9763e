// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/sigil-dev/supportbot/internal/index"
	"github.com/sigil-dev/supportbot/internal/store/sqlite"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVectors(t *testing.T, raw ...[]float32) [][]float32 {
	t.Helper()
	out := make([][]float32, len(raw))
	for i, v := range raw {
		u, err := index.Normalize(v)
		require.NoError(t, err)
		out[i] = u
	}
	return out
}

func TestVectorIndex_AppendAndSearch(t *testing.T) {
	ctx := context.Background()
	vi, err := sqlite.CreateVectorIndex(ctx, testDBPath(t, "vectors"), 3)
	require.NoError(t, err)
	defer func() { _ = vi.Close() }()

	vectors := unitVectors(t, []float32{1, 0, 0}, []float32{0, 1, 0}, []float32{0.9, 0.1, 0})
	require.NoError(t, vi.Append(ctx, vectors))
	assert.Equal(t, 3, vi.Len())
	assert.Equal(t, 3, vi.Dim())

	hits, err := vi.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Position)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Equal(t, 2, hits[1].Position)
	assert.InDelta(t, index.Dot(vectors[0], vectors[2]), hits[1].Score, 1e-4)
}

func TestVectorIndex_ScoresMatchFlat(t *testing.T) {
	ctx := context.Background()
	vi, err := sqlite.CreateVectorIndex(ctx, testDBPath(t, "parity"), 4)
	require.NoError(t, err)
	defer func() { _ = vi.Close() }()

	raw := [][]float32{{1, 2, 3, 4}, {-1, 0, 2, 1}, {0, 0, 0, 1}, {3, -2, 1, 0}, {1, 1, 1, 1}}
	require.NoError(t, vi.Append(ctx, unitVectors(t, raw...)))

	flat, err := index.BuildFlat(raw)
	require.NoError(t, err)

	query := unitVectors(t, []float32{0.5, 1, 2, 0})[0]
	want, err := flat.Search(ctx, query, 5)
	require.NoError(t, err)
	got, err := vi.Search(ctx, query, 5)
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Position, got[i].Position)
		assert.InDelta(t, want[i].Score, got[i].Score, 1e-4)
	}
}

func TestVectorIndex_ReopenAndLoadFlat(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t, "reopen")

	vi, err := sqlite.CreateVectorIndex(ctx, path, 2)
	require.NoError(t, err)
	vectors := unitVectors(t, []float32{1, 0}, []float32{1, 1}, []float32{0, 1})
	require.NoError(t, vi.Append(ctx, vectors[:2]))
	require.NoError(t, vi.Append(ctx, vectors[2:]))
	require.NoError(t, vi.Close())

	reopened, err := sqlite.OpenVectorIndex(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	assert.Equal(t, 2, reopened.Dim())
	assert.Equal(t, 3, reopened.Len())

	stored, err := reopened.Vectors(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i := range vectors {
		assert.InDeltaSlice(t, vectors[i], stored[i], 1e-7)
	}

	flat, err := reopened.Flat(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, flat.Len())
	hits, err := flat.Search(ctx, vectors[2], 1)
	require.NoError(t, err)
	assert.Equal(t, 2, hits[0].Position)
}

func TestVectorIndex_InvalidInput(t *testing.T) {
	ctx := context.Background()

	_, err := sqlite.CreateVectorIndex(ctx, testDBPath(t, "zero"), 0)
	assert.True(t, boterr.HasCode(err, boterr.CodeIndexBuildInvalidInput))

	vi, err := sqlite.CreateVectorIndex(ctx, testDBPath(t, "invalid"), 2)
	require.NoError(t, err)
	defer func() { _ = vi.Close() }()

	err = vi.Append(ctx, [][]float32{{1, 0, 0}})
	assert.True(t, boterr.HasCode(err, boterr.CodeIndexBuildInvalidInput))
	assert.Equal(t, 0, vi.Len())

	_, err = vi.Search(ctx, []float32{1}, 1)
	assert.True(t, boterr.HasCode(err, boterr.CodeIndexSearchInvalidInput))
}

func TestVectorIndex_SearchCapsK(t *testing.T) {
	ctx := context.Background()
	vi, err := sqlite.CreateVectorIndex(ctx, testDBPath(t, "large"), 2)
	require.NoError(t, err)
	defer func() { _ = vi.Close() }()

	n := index.MaxK + 10
	vectors := make([][]float32, n)
	for i := range vectors {
		a := float64(i) * math.Pi / float64(n)
		vectors[i] = []float32{float32(math.Cos(a)), float32(math.Sin(a))}
	}
	require.NoError(t, vi.Append(ctx, vectors))

	hits, err := vi.Search(ctx, []float32{1, 0}, index.MaxK+1)
	require.NoError(t, err)
	assert.Len(t, hits, index.MaxK)
	assert.Equal(t, 0, hits[0].Position)
}

func TestOpenVectorIndex_NotAnIndex(t *testing.T) {
	path := testDBPath(t, "garbage")
	require.NoError(t, os.WriteFile(path, []byte("not a database at all, just text padding it out"), 0o644))

	_, err := sqlite.OpenVectorIndex(context.Background(), path)
	require.Error(t, err)
}
