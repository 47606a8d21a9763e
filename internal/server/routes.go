// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sigil-dev/supportbot/internal/resolver"
	"github.com/sigil-dev/supportbot/internal/session"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/sigil-dev/supportbot/pkg/health"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*healthOutput, error) {
		return &healthOutput{Body: healthBody{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Knowledge base status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "resolve",
		Method:      http.MethodPost,
		Path:        "/api/v1/resolve",
		Summary:     "Answer a single question",
		Tags:        []string{"resolve"},
	}, s.handleResolve)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Start a chat session",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{id}",
		Summary:     "Get a session transcript",
		Tags:        []string{"sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-session",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{id}",
		Summary:       "End a chat session",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "send-message",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{id}/messages",
		Summary:     "Ask a question within a session",
		Tags:        []string{"sessions"},
	}, s.handleSendMessage)
}

// --- Request/Response types for huma ---

type healthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

type healthOutput struct {
	Body healthBody
}

type statusOutput struct {
	Body struct {
		Status     string          `json:"status" example:"ok" doc:"ok, or degraded while the embedder is cooling down"`
		Model      string          `json:"model" doc:"Embedding model identifier"`
		Dimensions int             `json:"dimensions" doc:"Vector dimensionality"`
		Entries    int             `json:"entries" doc:"Knowledge-base entry count"`
		Sessions   int             `json:"sessions" doc:"Live chat sessions"`
		Embedder   *health.Metrics `json:"embedder,omitempty" doc:"Embedder call health"`
	}
}

type resolveInput struct {
	Body struct {
		Query string `json:"query" maxLength:"4000" doc:"Customer question"`
	}
}

// AnswerBody is the wire form of a resolver outcome.
type AnswerBody struct {
	Answer     string  `json:"answer" doc:"Answer text"`
	Confidence string  `json:"confidence" enum:"Low,Medium,High" doc:"Confidence tier"`
	Source     string  `json:"source" enum:"match,fallback,error" doc:"Where the answer came from"`
	Score      float32 `json:"score" doc:"Best similarity score, 0 when the index was not consulted"`
	Degraded   bool    `json:"degraded" doc:"True when the question could not be processed"`
	Intent     string  `json:"intent,omitempty"`
	Category   string  `json:"category,omitempty"`
}

type resolveOutput struct {
	Body AnswerBody
}

type sessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type createSessionOutput struct {
	Body struct {
		SessionID string `json:"session_id"`
	}
}

type getSessionOutput struct {
	Body *session.Session
}

type sendMessageInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Content string `json:"content" minLength:"1" maxLength:"4000" doc:"Message content"`
	}
}

type sendMessageOutput struct {
	Body struct {
		SessionID string    `json:"session_id"`
		Role      string    `json:"role"`
		CreatedAt time.Time `json:"created_at"`
		AnswerBody
	}
}

// --- Handlers ---

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{}
	out.Body.Status = "ok"
	out.Body.Model = s.services.Resolver.Model()
	out.Body.Dimensions = s.services.Resolver.Dim()
	out.Body.Entries = s.services.Resolver.Len()
	out.Body.Sessions = s.services.Presenter.Store().Len()
	if s.services.Health != nil {
		m := s.services.Health()
		out.Body.Embedder = &m
		if !m.Available {
			out.Body.Status = "degraded"
		}
	}
	return out, nil
}

func (s *Server) handleResolve(ctx context.Context, input *resolveInput) (*resolveOutput, error) {
	o := s.services.Resolver.Resolve(ctx, input.Body.Query)
	if o.Degraded() {
		slog.Warn("query degraded", "error", o.Err)
	}
	return &resolveOutput{Body: NewAnswer(o)}, nil
}

func (s *Server) handleCreateSession(ctx context.Context, _ *struct{}) (*createSessionOutput, error) {
	sess, err := s.services.Presenter.Store().Create(ctx)
	if err != nil {
		return nil, apiError("creating session", err)
	}
	out := &createSessionOutput{}
	out.Body.SessionID = sess.ID
	return out, nil
}

func (s *Server) handleGetSession(ctx context.Context, input *sessionIDInput) (*getSessionOutput, error) {
	sess, err := s.services.Presenter.Store().Get(ctx, input.ID)
	if err != nil {
		return nil, apiError("session not found", err)
	}
	return &getSessionOutput{Body: sess}, nil
}

func (s *Server) handleDeleteSession(ctx context.Context, input *sessionIDInput) (*struct{}, error) {
	if err := s.services.Presenter.Store().Delete(ctx, input.ID); err != nil {
		return nil, apiError("session not found", err)
	}
	return nil, nil
}

func (s *Server) handleSendMessage(ctx context.Context, input *sendMessageInput) (*sendMessageOutput, error) {
	turn, o, err := s.services.Presenter.Ask(ctx, input.ID, input.Body.Content)
	if err != nil {
		return nil, apiError("sending message", err)
	}

	out := &sendMessageOutput{}
	out.Body.SessionID = input.ID
	out.Body.Role = string(turn.Role)
	out.Body.CreatedAt = turn.CreatedAt
	out.Body.AnswerBody = NewAnswer(o)
	return out, nil
}

// NewAnswer converts a resolver outcome to its wire form.
func NewAnswer(o resolver.Outcome) AnswerBody {
	return AnswerBody{
		Answer:     o.Answer,
		Confidence: o.Confidence.String(),
		Source:     string(o.Source),
		Score:      o.Score,
		Degraded:   o.Degraded(),
		Intent:     o.Intent,
		Category:   o.Category,
	}
}

// apiError maps a coded error to the matching HTTP status.
func apiError(msg string, err error) error {
	status := boterr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, "error", err)
	}
	return huma.NewError(status, msg, err)
}
