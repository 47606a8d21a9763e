// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package health holds the embedder health snapshot reported by the
// status endpoint.
package health

import "time"

// Metrics is a point-in-time view of the query embedder.
type Metrics struct {
	Model         string     `json:"model,omitempty"`
	Calls         int64      `json:"calls"`
	FailureCount  int64      `json:"failure_count"`
	LastError     string     `json:"last_error,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}
