// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package index

import (
	"math"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// Normalize returns a copy of v scaled to unit L2 norm. A zero or non-finite
// vector cannot be normalized and is reported as degenerate.
func Normalize(v []float32) ([]float32, error) {
	norm := Norm(v)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, boterr.New(boterr.CodeIndexBuildDegenerateVector, "vector has zero or non-finite norm")
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
