// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package resolver

import (
	"strings"

	"github.com/sigil-dev/supportbot/pkg/types"
)

// HelpMessage is returned when neither the index nor a keyword matches.
const HelpMessage = "🤖 I'm here to help! Ask about orders, shipping, returns, or payments."

// cannedAnswers is checked in order; the first keyword contained in the
// lowercased query wins.
var cannedAnswers = []struct {
	keyword string
	answer  string
}{
	{"track", "📦 Track your order in 'My Account' > 'Order History'."},
	{"return", "🔄 We offer 30-day returns. Start in your account."},
	{"refund", "💵 Refunds process in 5-7 business days."},
	{"cancel", "❌ Cancel orders within 1 hour in your account."},
	{"shipping", "🚚 Standard: 3-5 days, Express: 1-2 days"},
	{"payment", "💳 We accept cards, PayPal, Apple Pay, Google Pay"},
}

// Fallback answers from the canned keyword table. It never fails and never
// consults the index.
func Fallback(query string) Outcome {
	q := strings.ToLower(query)
	for _, c := range cannedAnswers {
		if strings.Contains(q, c.keyword) {
			return Outcome{
				Kind:       KindResolved,
				Answer:     c.answer,
				Confidence: types.ConfidenceMedium,
				Source:     SourceFallback,
				Position:   -1,
				Keyword:    c.keyword,
			}
		}
	}
	return Outcome{
		Kind:       KindResolved,
		Answer:     HelpMessage,
		Confidence: types.ConfidenceLow,
		Source:     SourceFallback,
		Position:   -1,
	}
}
