// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package types

// Role identifies who authored a chat turn.
type Role string

const (
	// RoleUser marks a turn typed by the customer.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the resolver.
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is a known turn author.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}
