// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sqlite persists the similarity index as a sqlite-vec database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/supportbot/internal/index"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ index.Index = (*VectorIndex)(nil)

// VectorIndex is an exact inner-product index stored in a vec0 virtual
// table. Row i of the knowledge base is stored under rowid i+1.
//
// vec0 ranks by L2 distance. For unit vectors |a-b|² = 2 - 2a·b, so the
// inner product is recovered as 1 - d²/2 without changing the ordering.
type VectorIndex struct {
	db         *sql.DB
	dimensions int
	count      int
}

// CreateVectorIndex creates a new, empty index database at dbPath. The file
// must not already contain an index.
func CreateVectorIndex(ctx context.Context, dbPath string, dimensions int) (*VectorIndex, error) {
	if dimensions <= 0 {
		return nil, boterr.Errorf(boterr.CodeIndexBuildInvalidInput, "dimension must be positive, got %d", dimensions)
	}

	db, err := open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateVector(ctx, db, dimensions); err != nil {
		_ = db.Close()
		return nil, boterr.Wrap(err, boterr.CodeIndexStoreFailure, "migrating vector tables", boterr.FieldPath(dbPath))
	}

	return &VectorIndex{db: db, dimensions: dimensions}, nil
}

// OpenVectorIndex opens an index database written by CreateVectorIndex.
func OpenVectorIndex(ctx context.Context, dbPath string) (*VectorIndex, error) {
	db, err := open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	v := &VectorIndex{db: db}
	const q = `SELECT dimensions, count FROM index_meta WHERE id = 1`
	if err := db.QueryRowContext(ctx, q).Scan(&v.dimensions, &v.count); err != nil {
		_ = db.Close()
		return nil, boterr.Wrap(err, boterr.CodeArtifactLoadCorrupt, "reading index metadata", boterr.FieldPath(dbPath))
	}
	return v, nil
}

func open(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=DELETE&_busy_timeout=5000")
	if err != nil {
		return nil, boterr.Wrap(err, boterr.CodeIndexStoreFailure, "opening sqlite db", boterr.FieldPath(dbPath))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, boterr.Wrap(err, boterr.CodeIndexStoreFailure, "pinging sqlite db", boterr.FieldPath(dbPath))
	}
	return db, nil
}

func migrateVector(ctx context.Context, db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(`CREATE VIRTUAL TABLE vectors USING vec0(embedding float[%d])`, dimensions)
	if _, err := db.ExecContext(ctx, vecDDL); err != nil {
		return fmt.Errorf("creating vectors virtual table: %w", err)
	}

	const metaDDL = `
CREATE TABLE index_meta (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	dimensions INTEGER NOT NULL,
	count      INTEGER NOT NULL DEFAULT 0
)`
	if _, err := db.ExecContext(ctx, metaDDL); err != nil {
		return fmt.Errorf("creating index_meta table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO index_meta(id, dimensions, count) VALUES (1, ?, 0)`, dimensions); err != nil {
		return fmt.Errorf("seeding index_meta: %w", err)
	}
	return nil
}

// Append adds unit vectors after the current last position in a single
// transaction.
func (v *VectorIndex) Append(ctx context.Context, vectors [][]float32) error {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return boterr.Wrap(err, boterr.CodeIndexStoreFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors(rowid, embedding) VALUES (?, ?)`)
	if err != nil {
		return boterr.Wrap(err, boterr.CodeIndexStoreFailure, "preparing vector insert")
	}
	defer func() { _ = stmt.Close() }()

	for i, vec := range vectors {
		pos := v.count + i
		if len(vec) != v.dimensions {
			return boterr.Errorf(boterr.CodeIndexBuildInvalidInput,
				"vector at position %d has %d dimensions, index has %d", pos, len(vec), v.dimensions)
		}
		blob, err := sqlite_vec.SerializeFloat32(vec)
		if err != nil {
			return boterr.Wrap(err, boterr.CodeIndexStoreFailure, "serializing embedding", boterr.FieldPosition(pos))
		}
		if _, err := stmt.ExecContext(ctx, int64(pos+1), blob); err != nil {
			return boterr.Wrap(err, boterr.CodeIndexStoreFailure, "inserting vector", boterr.FieldPosition(pos))
		}
	}

	newCount := v.count + len(vectors)
	if _, err := tx.ExecContext(ctx, `UPDATE index_meta SET count = ? WHERE id = 1`, newCount); err != nil {
		return boterr.Wrap(err, boterr.CodeIndexStoreFailure, "updating index_meta")
	}

	if err := tx.Commit(); err != nil {
		return boterr.Wrap(err, boterr.CodeIndexStoreFailure, "committing vectors")
	}
	v.count = newCount
	return nil
}

func (v *VectorIndex) Dim() int { return v.dimensions }

func (v *VectorIndex) Len() int { return v.count }

// Search performs an exact k-nearest-neighbour scan. Scores are inner
// products, highest first. k is capped at index.MaxK.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]index.Hit, error) {
	if len(query) != v.dimensions {
		return nil, boterr.Errorf(boterr.CodeIndexSearchInvalidInput, "query has %d dimensions, index has %d", len(query), v.dimensions)
	}
	if k <= 0 {
		return nil, boterr.Errorf(boterr.CodeIndexSearchInvalidInput, "k must be positive, got %d", k)
	}
	k = min(k, index.MaxK)
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, boterr.Wrap(err, boterr.CodeIndexSearchFailure, "serializing query vector")
	}

	const q = `SELECT rowid, distance
FROM vectors
WHERE embedding MATCH ? AND k = ?
ORDER BY distance`

	rows, err := v.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, boterr.Wrap(err, boterr.CodeIndexSearchFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	var hits []index.Hit
	for rows.Next() {
		var (
			rowid    int64
			distance float64
		)
		if err := rows.Scan(&rowid, &distance); err != nil {
			return nil, boterr.Wrap(err, boterr.CodeIndexSearchFailure, "scanning vector result")
		}
		hits = append(hits, index.Hit{
			Position: int(rowid - 1),
			Score:    float32(1 - distance*distance/2),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, boterr.Wrap(err, boterr.CodeIndexSearchFailure, "iterating vector results")
	}

	return hits, nil
}

// Vectors reads every stored vector in position order.
func (v *VectorIndex) Vectors(ctx context.Context) ([][]float32, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT rowid, embedding FROM vectors ORDER BY rowid`)
	if err != nil {
		return nil, boterr.Wrap(err, boterr.CodeIndexStoreFailure, "reading vectors")
	}
	defer func() { _ = rows.Close() }()

	out := make([][]float32, 0, v.count)
	for rows.Next() {
		var (
			rowid int64
			blob  []byte
		)
		if err := rows.Scan(&rowid, &blob); err != nil {
			return nil, boterr.Wrap(err, boterr.CodeIndexStoreFailure, "scanning vector")
		}
		if rowid != int64(len(out)+1) {
			return nil, boterr.Errorf(boterr.CodeArtifactLoadCorrupt, "vector rowid %d out of sequence", rowid)
		}
		vec, err := decodeFloat32(blob, v.dimensions)
		if err != nil {
			return nil, boterr.With(err, boterr.FieldPosition(len(out)))
		}
		out = append(out, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, boterr.Wrap(err, boterr.CodeIndexStoreFailure, "iterating vectors")
	}
	return out, nil
}

// Flat loads the stored vectors into an in-memory index.
func (v *VectorIndex) Flat(ctx context.Context) (*index.Flat, error) {
	vectors, err := v.Vectors(ctx)
	if err != nil {
		return nil, err
	}
	f, err := index.NewFlat(v.dimensions)
	if err != nil {
		return nil, err
	}
	for i, vec := range vectors {
		if err := f.Add(vec); err != nil {
			return nil, boterr.With(err, boterr.FieldPosition(i))
		}
	}
	return f, nil
}

// Close closes the underlying database connection.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}

// decodeFloat32 reverses sqlite_vec.SerializeFloat32 (little-endian float32).
func decodeFloat32(blob []byte, dimensions int) ([]float32, error) {
	if len(blob) != dimensions*4 {
		return nil, boterr.Errorf(boterr.CodeArtifactLoadCorrupt, "vector blob has %d bytes, want %d", len(blob), dimensions*4)
	}
	out := make([]float32, dimensions)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
