package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvloznov/perla/internal/api/middleware"
	"github.com/dvloznov/perla/internal/assistant"
	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/logger"
	"github.com/dvloznov/perla/internal/reconcile"
)

// Sessions hands out the per-owner conversation.
type Sessions interface {
	Get(ctx context.Context, ownerID string) (*reconcile.Session, error)
}

// ChatHandler serves the stateful endpoints: the server keeps the
// conversation, ledger and selection of each owner.
type ChatHandler struct {
	sessions  Sessions
	assistant Assistant
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(sessions Sessions, a Assistant) *ChatHandler {
	return &ChatHandler{sessions: sessions, assistant: a}
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// SessionView is the snapshot returned by GET /api/session.
type SessionView struct {
	State     reconcile.State             `json:"state"`
	Selection []string                    `json:"selection"`
	Pending   []assistant.EntityCandidate `json:"pendingMatches,omitempty"`
	Sales     int                         `json:"sales"`
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	out, err := s.Submit(r.Context(), req.Message)
	switch {
	case errors.Is(err, reconcile.ErrEmptyInput):
		middleware.WriteError(w, http.StatusBadRequest, "Message is required")
		return
	case errors.Is(err, reconcile.ErrBusy):
		middleware.WriteError(w, http.StatusConflict, "A request is already in progress")
		return
	case errors.Is(err, reconcile.ErrClosed):
		middleware.WriteError(w, http.StatusServiceUnavailable, "Session is closed")
		return
	case err != nil:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Chat request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Chat request failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, out)
}

// ListSales handles GET /api/sales.
func (h *ChatHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	sales := s.Ledger()
	if sales == nil {
		sales = []domain.SaleRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sales": sales,
		"count": len(sales),
	})
}

// SelectionRequest is the body of PUT /api/selection.
type SelectionRequest struct {
	IDs []string `json:"ids"`
}

// SetSelection handles PUT /api/selection. The request replaces the
// selection; an empty list clears it.
func (h *ChatHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	s.ClearSelection()
	s.Select(req.IDs...)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"selection": nonNil(s.Selection()),
	})
}

// GetSession handles GET /api/session.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, SessionView{
		State:     s.State(),
		Selection: nonNil(s.Selection()),
		Pending:   s.PendingMatches(),
		Sales:     len(s.Ledger()),
	})
}

// Insights handles POST /api/sales/insights over the owner's ledger.
func (h *ChatHandler) Insights(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeInsights(w, r, h.assistant, s.Ledger())
}

func (h *ChatHandler) session(w http.ResponseWriter, r *http.Request) (*reconcile.Session, bool) {
	owner := middleware.GetOwnerID(r.Context())
	s, err := h.sessions.Get(r.Context(), owner)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to open session")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load sales")
		return nil, false
	}
	return s, true
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
