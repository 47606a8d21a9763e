// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embed

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// LocalProvider is the provider name of the in-process hashing embedder.
const LocalProvider = "local"

// DefaultHashingDimensions is used for "local/hashing" without a width suffix.
const DefaultHashingDimensions = 384

const trigramWeight = 0.5

// Hashing is a deterministic, dependency-free embedder based on signed
// feature hashing of lowercase words and character trigrams. Texts sharing
// vocabulary land close together; identical texts embed identically.
type Hashing struct {
	dim int
}

// NewHashing returns a hashing embedder producing dim-wide vectors.
func NewHashing(dim int) (*Hashing, error) {
	if dim <= 0 {
		return nil, boterr.Errorf(boterr.CodeEmbedRequestInvalid, "hashing dimension must be positive, got %d", dim)
	}
	return &Hashing{dim: dim}, nil
}

// NewHashingFromModel parses "hashing" or "hashing-<dim>".
func NewHashingFromModel(model string) (*Hashing, error) {
	name, width, found := strings.Cut(model, "-")
	if name != "hashing" {
		return nil, boterr.New(boterr.CodeEmbedProviderNotFound, "unknown local model "+model, boterr.FieldModel(model))
	}
	if !found {
		return NewHashing(DefaultHashingDimensions)
	}
	dim, err := strconv.Atoi(width)
	if err != nil {
		return nil, boterr.Wrapf(err, boterr.CodeEmbedRequestInvalid, "parsing hashing width %q", width)
	}
	return NewHashing(dim)
}

func (h *Hashing) Model() string {
	return LocalProvider + "/hashing-" + strconv.Itoa(h.dim)
}

func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *Hashing) Close() error { return nil }

func (h *Hashing) vector(text string) []float32 {
	v := make([]float32, h.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h.add(v, "w:"+w, 1)
		padded := []rune(" " + w + " ")
		for j := 0; j+3 <= len(padded); j++ {
			h.add(v, "t:"+string(padded[j:j+3]), trigramWeight)
		}
	}
	return v
}

func (h *Hashing) add(v []float32, feature string, weight float32) {
	hf := fnv.New64a()
	_, _ = hf.Write([]byte(feature))
	sum := hf.Sum64()
	idx := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}
