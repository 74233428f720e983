// Package handlers implements the HTTP endpoints of the sales assistant.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dvloznov/perla/internal/api/middleware"
	"github.com/dvloznov/perla/internal/assistant"
	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/logger"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Assistant is the model-facing surface the handlers use.
type Assistant interface {
	Ask(ctx context.Context, conv domain.Conversation, ledger []domain.SaleRecord, sel []string, opts ...assistant.AskOption) *assistant.Response
	Insights(ctx context.Context, sales []domain.SaleRecord) (string, error)
}

// AssistantHandler serves the stateless assistant endpoints: the caller
// sends the conversation and ledger with every request.
type AssistantHandler struct {
	assistant Assistant
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(a Assistant) *AssistantHandler {
	return &AssistantHandler{assistant: a}
}

// AskRequest is the body of POST /api/ask. Either Prompt or Messages is
// required; Prompt wins when both are set.
type AskRequest struct {
	Prompt        string              `json:"prompt"`
	Messages      []domain.Turn       `json:"messages"`
	Model         string              `json:"model"`
	MaxTokens     int                 `json:"max_tokens"`
	PreviousSales []domain.SaleRecord `json:"previousSales"`
	SelectedSales []string            `json:"selectedSales"`
}

// Conversation returns the turns to send to the model.
func (r AskRequest) Conversation() (domain.Conversation, error) {
	if strings.TrimSpace(r.Prompt) != "" {
		return domain.Conversation{{Role: domain.RoleUser, Content: r.Prompt}}, nil
	}
	if len(r.Messages) == 0 {
		return nil, errors.New("Either prompt or messages is required")
	}
	conv := make(domain.Conversation, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			return nil, errors.New("Message roles must be user or assistant")
		}
		conv = append(conv, m)
	}
	return conv, nil
}

// Ask handles POST /api/ask. Failures reaching or understanding the model
// are still a 200 with success=false, matching the envelope contract.
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	conv, err := req.Conversation()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var opts []assistant.AskOption
	if req.MaxTokens > 0 {
		opts = append(opts, assistant.WithMaxTokens(req.MaxTokens))
	}
	if req.Model != "" {
		opts = append(opts, assistant.WithModel(req.Model))
	}

	resp := h.assistant.Ask(r.Context(), conv, req.PreviousSales, req.SelectedSales, opts...)
	if resp.Kind == assistant.KindFailure {
		log := logger.FromContext(r.Context())
		log.Warn().Err(resp.Failure).Msg("Assistant request failed")
	}

	middleware.WriteJSON(w, http.StatusOK, assistant.NewEnvelope(resp))
}

// InsightsRequest is the body of POST /api/insights.
type InsightsRequest struct {
	Sales []domain.SaleRecord `json:"sales"`
}

// Insights handles POST /api/insights for the sales in the body.
func (h *AssistantHandler) Insights(w http.ResponseWriter, r *http.Request) {
	var req InsightsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	writeInsights(w, r, h.assistant, req.Sales)
}

func writeInsights(w http.ResponseWriter, r *http.Request, a Assistant, sales []domain.SaleRecord) {
	log := logger.FromContext(r.Context())
	text, err := a.Insights(r.Context(), sales)
	if errors.Is(err, assistant.ErrNoSales) {
		middleware.WriteError(w, http.StatusBadRequest, "No sales data provided")
		return
	}
	if err != nil {
		log.Error().Err(err).Int("sales", len(sales)).Msg("Failed to generate insights")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to generate insights")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"insights": text,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
