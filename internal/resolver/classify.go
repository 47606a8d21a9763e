// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package resolver

import (
	"math"

	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/sigil-dev/supportbot/pkg/types"
)

const (
	DefaultLowThreshold  = 0.3
	DefaultHighThreshold = 0.7
)

// Thresholds split similarity scores into confidence bands. Both bounds
// belong to the Medium band.
type Thresholds struct {
	Low  float32
	High float32
}

func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLowThreshold, High: DefaultHighThreshold}
}

// Validate requires 0 <= Low <= High <= 1.
func (t Thresholds) Validate() error {
	if math.IsNaN(float64(t.Low)) || math.IsNaN(float64(t.High)) || t.Low < 0 || t.High > 1 || t.Low > t.High {
		return boterr.Errorf(boterr.CodeConfigValidateInvalidValue,
			"thresholds must satisfy 0 <= low <= high <= 1, got low=%v high=%v", t.Low, t.High)
	}
	return nil
}

// Classify maps a score to a confidence band: below Low is Low (answered by
// the fallback), Low through High inclusive is Medium, above High is High.
func (t Thresholds) Classify(score float32) types.Confidence {
	switch {
	case score < t.Low:
		return types.ConfidenceLow
	case score <= t.High:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceHigh
	}
}
