// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package types

import (
	"strings"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// Confidence is the coarse label attached to every answer.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// Valid reports whether c is a recognized confidence tier.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	default:
		return false
	}
}

func (c Confidence) String() string { return string(c) }

// ParseConfidence parses a case-insensitive tier name.
func ParseConfidence(s string) (Confidence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ConfidenceLow, nil
	case "medium":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	default:
		return "", boterr.Errorf(boterr.CodeServerRequestInvalid, "invalid confidence: %q", s)
	}
}
