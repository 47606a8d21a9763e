// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package tui_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sigil-dev/supportbot/internal/resolver"
	"github.com/sigil-dev/supportbot/internal/session"
	"github.com/sigil-dev/supportbot/internal/tui"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/sigil-dev/supportbot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fallbackResolver struct{}

func (fallbackResolver) Resolve(_ context.Context, q string) resolver.Outcome {
	return resolver.Fallback(q)
}

func newPresenter(t *testing.T) (*session.Presenter, string) {
	t.Helper()
	store := session.NewStore(time.Minute)
	sess, err := store.Create(context.Background())
	require.NoError(t, err)
	return session.NewPresenter(store, fallbackResolver{}), sess.ID
}

func typeText(m tea.Model, s string) tea.Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

// submit presses enter and runs the resulting command batch until the
// answer arrives.
func submit(t *testing.T, m tea.Model) tea.Model {
	t.Helper()
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.True(t, m.(tui.Model).Pending())

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		msg := c()
		if _, tick := msg.(spinner.TickMsg); tick {
			continue
		}
		m, _ = m.Update(msg)
	}
	return m
}

func TestModel_SubmitAppendsBothTurns(t *testing.T) {
	p, id := newPresenter(t)
	var m tea.Model = tui.New(context.Background(), p, id, "Support")

	m = typeText(m, "how do I track my order")
	m = submit(t, m)

	model := m.(tui.Model)
	assert.False(t, model.Pending())
	turns := model.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, "how do I track my order", turns[0].Content)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
	assert.Equal(t, types.ConfidenceMedium, turns[1].Confidence)

	view := model.View()
	assert.Contains(t, view, "Confidence: Medium")
}

func TestModel_EmptyInputIgnored(t *testing.T) {
	p, id := newPresenter(t)
	var m tea.Model = tui.New(context.Background(), p, id, "Support")

	m = typeText(m, "   ")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, m.(tui.Model).Turns())
}

func TestModel_QuitKeys(t *testing.T) {
	p, id := newPresenter(t)
	for _, key := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		m := tui.New(context.Background(), p, id, "Support")
		_, cmd := m.Update(tea.KeyMsg{Type: key})
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	}
}

type failingAsker struct{}

func (failingAsker) Ask(context.Context, string, string) (session.Turn, resolver.Outcome, error) {
	return session.Turn{}, resolver.Outcome{}, boterr.New(boterr.CodeSessionNotFound, "session not found")
}

func TestModel_AskErrorIsShown(t *testing.T) {
	var m tea.Model = tui.New(context.Background(), failingAsker{}, "gone", "Support")
	m = typeText(m, "hello")
	m = submit(t, m)

	view := m.View()
	assert.Contains(t, view, tui.ErrorNotice)
	assert.NotContains(t, view, "session not found")
	assert.Len(t, m.(tui.Model).Turns(), 1)
}

// expiredPresenter returns a presenter whose only session has already
// expired.
func expiredPresenter(t *testing.T) (*session.Presenter, string) {
	t.Helper()
	store := session.NewStore(20 * time.Millisecond)
	sess, err := store.Create(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), sess.ID)
		return boterr.IsNotFound(err)
	}, time.Second, 10*time.Millisecond)
	return session.NewPresenter(store, fallbackResolver{}), sess.ID
}

func TestModel_ExpiredSessionIsReplaced(t *testing.T) {
	p, id := expiredPresenter(t)
	var m tea.Model = tui.New(context.Background(), p, id, "Support")

	m = typeText(m, "I want to track my order")
	m = submit(t, m)

	model := m.(tui.Model)
	require.Len(t, model.Turns(), 2)
	assert.Equal(t, types.ConfidenceMedium, model.Turns()[1].Confidence)
	assert.NotEqual(t, id, model.SessionID())
	assert.NotContains(t, m.View(), tui.ErrorNotice)
}

func TestModel_WindowResize(t *testing.T) {
	p, id := newPresenter(t)
	var m tea.Model = tui.New(context.Background(), p, id, "Support")
	m, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Support")
}

func TestRenderTranscript(t *testing.T) {
	assert.Contains(t, tui.RenderTranscript(nil, 80), "No messages yet.")

	out := tui.RenderTranscript([]session.Turn{
		{Role: types.RoleUser, Content: "refund please"},
		{Role: types.RoleAssistant, Content: "Refunds take 5 days.", Confidence: types.ConfidenceHigh},
	}, 0)
	assert.Less(t, strings.Index(out, "refund please"), strings.Index(out, "Refunds take 5 days."))
	assert.Contains(t, out, "Confidence: High")
}

func TestREPL(t *testing.T) {
	p, id := newPresenter(t)
	in := strings.NewReader("what payment methods?\n\nblorp\nquit\nnever asked\n")
	var out bytes.Buffer

	require.NoError(t, tui.REPL(context.Background(), p, id, in, &out))

	text := out.String()
	assert.Contains(t, text, "Confidence: Medium")
	assert.Contains(t, text, resolver.HelpMessage+"\nConfidence: Low")

	sess, err := p.Store().Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, sess.Turns, 4)
}

func TestREPL_AskError(t *testing.T) {
	err := tui.REPL(context.Background(), failingAsker{}, "x", strings.NewReader("hi\n"), &bytes.Buffer{})
	assert.True(t, boterr.IsNotFound(err))
}

func TestREPL_ExpiredSessionKeepsAnswering(t *testing.T) {
	p, id := expiredPresenter(t)
	var out bytes.Buffer

	err := tui.REPL(context.Background(), p, id, strings.NewReader("I want to track my order\nwhat about a refund?\n"), &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, resolver.Fallback("track").Answer+"\nConfidence: Medium")
	assert.Equal(t, 2, strings.Count(text, "Confidence: Medium"))
}

func TestREPL_ContextCancelled(t *testing.T) {
	p, id := newPresenter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tui.REPL(ctx, p, id, strings.NewReader("hi\n"), &bytes.Buffer{})
	assert.True(t, errors.Is(err, context.Canceled))
}
