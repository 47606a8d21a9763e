// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package resolver_test

import (
	"math"
	"testing"

	"github.com/sigil-dev/supportbot/internal/resolver"
	"github.com/sigil-dev/supportbot/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestClassify_Boundaries(t *testing.T) {
	th := resolver.DefaultThresholds()
	tests := []struct {
		score float32
		want  types.Confidence
	}{
		{-1, types.ConfidenceLow},
		{0, types.ConfidenceLow},
		{math.Nextafter32(0.3, 0), types.ConfidenceLow},
		{0.3, types.ConfidenceMedium},
		{0.5, types.ConfidenceMedium},
		{0.7, types.ConfidenceMedium},
		{math.Nextafter32(0.7, 1), types.ConfidenceHigh},
		{1, types.ConfidenceHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.score), "score %v", tt.score)
	}
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, resolver.DefaultThresholds().Validate())
	assert.NoError(t, resolver.Thresholds{Low: 0.5, High: 0.5}.Validate())
	assert.NoError(t, resolver.Thresholds{Low: 0, High: 1}.Validate())
	assert.Error(t, resolver.Thresholds{Low: -0.1, High: 0.5}.Validate())
	assert.Error(t, resolver.Thresholds{Low: 0.2, High: 1.1}.Validate())
	assert.Error(t, resolver.Thresholds{Low: 0.8, High: 0.7}.Validate())
	assert.Error(t, resolver.Thresholds{Low: float32(math.NaN()), High: 0.7}.Validate())
}
