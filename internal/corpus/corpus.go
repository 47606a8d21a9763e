// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package corpus turns raw customer-support records into knowledge-base
// entries.
package corpus

import "strings"

// Record is one raw dataset row before normalization.
type Record struct {
	Instruction string `json:"instruction"`
	Response    string `json:"response"`
	Intent      string `json:"intent"`
	Category    string `json:"category"`
}

// Entry is a normalized knowledge-base entry. Its position in the entry
// slice is its key into the similarity index, so entry order must never
// change once an index has been built from it.
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Intent   string `json:"intent"`
	Category string `json:"category"`
}

// placeholders are applied in order, every occurrence.
var placeholders = []struct {
	token string
	text  string
}{
	{"{{Order Number}}", "your order"},
	{"{{Online Company Portal Info}}", "our website"},
	{"{{Online Order Interaction}}", "Order History"},
	{"{{Customer Support Hours}}", "business hours"},
	{"{{Customer Support Phone Number}}", "our support line"},
	{"{{Website Url}}", "our website"},
}

// NormalizeAnswer replaces the dataset's template placeholders with plain text.
func NormalizeAnswer(response string) string {
	for _, p := range placeholders {
		response = strings.ReplaceAll(response, p.token, p.text)
	}
	return response
}

// Normalize converts raw records into entries. No record is dropped.
func Normalize(records []Record) []Entry {
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{
			Question: r.Instruction,
			Answer:   NormalizeAnswer(r.Response),
			Intent:   r.Intent,
			Category: r.Category,
		}
	}
	return entries
}

// Questions returns the question text of every entry in order.
func Questions(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Question
	}
	return out
}
