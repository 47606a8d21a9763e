// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package tui is the terminal chat front end.
package tui

import (
	"context"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sigil-dev/supportbot/internal/resolver"
	"github.com/sigil-dev/supportbot/internal/session"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/sigil-dev/supportbot/pkg/types"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// Rows taken by the title, input and help lines.
	chromeHeight = 6
)

// ErrorNotice replaces the raw error text of a failed question.
const ErrorNotice = "Sorry, something went wrong with that question. Please try again."

// Asker answers a prompt within a session.
type Asker interface {
	Ask(ctx context.Context, sessionID, prompt string) (session.Turn, resolver.Outcome, error)
}

// Starter is implemented by askers that can open a fresh session.
type Starter interface {
	Start(ctx context.Context) (string, error)
}

// askOrRestart asks within sessionID. If that session is gone and the
// asker is a Starter, the prompt is retried once in a new session, whose
// id is returned.
func askOrRestart(ctx context.Context, asker Asker, sessionID, prompt string) (session.Turn, resolver.Outcome, string, error) {
	turn, out, err := asker.Ask(ctx, sessionID, prompt)
	if err == nil || !boterr.IsNotFound(err) {
		return turn, out, sessionID, err
	}
	starter, ok := asker.(Starter)
	if !ok {
		return turn, out, sessionID, err
	}
	fresh, serr := starter.Start(ctx)
	if serr != nil {
		return turn, out, sessionID, boterr.Join(err, serr)
	}
	slog.Debug("chat session expired, continuing in a new one", "session_id", sessionID, "new_session_id", fresh)

	turn, out, err = asker.Ask(ctx, fresh, prompt)
	return turn, out, fresh, err
}

// --- bubbletea messages ---

type answerMsg struct {
	turn      session.Turn
	outcome   resolver.Outcome
	sessionID string
}

type errMsg struct{ err error }

// --- lipgloss styles ---

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	botStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	confidenceTint = map[types.Confidence]lipgloss.Style{
		types.ConfidenceHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		types.ConfidenceMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		types.ConfidenceLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

// Model is the chat screen: a scrolling transcript above a text input.
type Model struct {
	ctx       context.Context
	asker     Asker
	sessionID string
	title     string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	turns   []session.Turn
	pending bool
	err     error
}

// New returns a chat model bound to an existing session.
func New(ctx context.Context, asker Asker, sessionID, title string) Model {
	in := textinput.New()
	in.Placeholder = "Ask about orders, shipping, returns or payments"
	in.Prompt = "> "
	in.CharLimit = 4000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(defaultWidth, defaultHeight-chromeHeight)

	m := Model{
		ctx:       ctx,
		asker:     asker,
		sessionID: sessionID,
		title:     title,
		input:     in,
		viewport:  vp,
		spinner:   sp,
	}
	m.refresh()
	return m
}

// Turns returns the transcript shown so far.
func (m Model) Turns() []session.Turn { return m.turns }

// Pending reports whether a question is being resolved.
func (m Model) Pending() bool { return m.pending }

// SessionID returns the session questions are currently asked in.
func (m Model) SessionID() string { return m.sessionID }

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case answerMsg:
		m.pending = false
		m.sessionID = msg.sessionID
		m.turns = append(m.turns, msg.turn)
		m.refresh()
		return m, nil

	case errMsg:
		m.pending = false
		m.err = msg.err
		slog.Debug("chat question failed", "session_id", m.sessionID, "error", msg.err)
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyEnter:
		prompt := strings.TrimSpace(m.input.Value())
		if prompt == "" || m.pending {
			return m, nil
		}
		m.input.SetValue("")
		m.err = nil
		m.pending = true
		m.turns = append(m.turns, session.Turn{Role: types.RoleUser, Content: prompt})
		m.refresh()
		return m, tea.Batch(m.spinner.Tick, m.ask(prompt))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(prompt string) tea.Cmd {
	ctx, asker, id := m.ctx, m.asker, m.sessionID
	return func() tea.Msg {
		turn, out, sid, err := askOrRestart(ctx, asker, id, prompt)
		if err != nil {
			return errMsg{err: err}
		}
		return answerMsg{turn: turn, outcome: out, sessionID: sid}
	}
}

// refresh re-renders the transcript into the viewport, newest last.
func (m *Model) refresh() {
	m.viewport.SetContent(RenderTranscript(m.turns, m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  "+m.title+"  ") + "\n\n")
	b.WriteString(m.viewport.View() + "\n")

	switch {
	case m.pending:
		b.WriteString(m.spinner.View() + " Searching the knowledge base…\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("  "+ErrorNotice) + "\n")
	default:
		b.WriteString("\n")
	}

	b.WriteString(m.input.View() + "\n")
	b.WriteString(dimStyle.Render("enter to send  ↑/↓ to scroll  esc to quit"))
	return b.String()
}

// RenderTranscript formats turns oldest first. Assistant turns carry a
// confidence line.
func RenderTranscript(turns []session.Turn, width int) string {
	if len(turns) == 0 {
		return dimStyle.Render("No messages yet.")
	}

	wrap := lipgloss.NewStyle()
	if width > 0 {
		wrap = wrap.Width(width)
	}

	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		switch t.Role {
		case types.RoleUser:
			b.WriteString(userStyle.Render("You") + "\n")
			b.WriteString(wrap.Render(t.Content) + "\n")
		default:
			b.WriteString(botStyle.Render("Assistant") + "\n")
			b.WriteString(wrap.Render(t.Content) + "\n")
			if t.Confidence != "" {
				tint := confidenceTint[t.Confidence]
				b.WriteString(tint.Render("Confidence: "+t.Confidence.String()) + "\n")
			}
		}
	}
	return b.String()
}

// Run starts the chat program and blocks until the user quits.
func Run(ctx context.Context, asker Asker, sessionID, title string) error {
	p := tea.NewProgram(New(ctx, asker, sessionID, title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
