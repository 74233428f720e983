package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/perla/internal/assistant"
	"github.com/dvloznov/perla/internal/domain"
)

func existing(id, product, client string) domain.SaleRecord {
	return domain.SaleRecord{
		ID: id, Product: product, Amount: 1, UnitPrice: 100, TotalPrice: 100,
		Client: client, PaymentMethod: "Efectivo", Date: "2024-05-01",
	}
}

func TestCreate_HighConfidenceMatchIsApplied(t *testing.T) {
	asker := &fakeAsker{replies: []*assistant.Response{{
		Kind:    assistant.KindCreate,
		Records: []map[string]interface{}{rawSale("galletita", 3, 500)},
	}}}
	s, p := newTestSession(t, asker, existing("s1", "galletitas", "Ana"))

	out, err := s.Submit(context.Background(), "vendí 3 galletita a 500")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, out.Kind)
	assert.Equal(t, StateIdle, out.State)
	assert.Empty(t, out.Candidates)

	rec := s.Ledger()[0]
	assert.Equal(t, "galletita", rec.Product)
	assert.Equal(t, "galletitas", rec.NormalizedProduct)
	require.Len(t, p.upserts, 1)
	assert.Equal(t, "galletitas", p.upserts[0].NormalizedProduct)
}

func createWithCandidate(t *testing.T) (*Session, *fakePersister, *fakeAsker) {
	t.Helper()
	raw := rawSale("brownie", 1, 2500)
	raw["client"] = "Marcos"
	asker := &fakeAsker{replies: []*assistant.Response{{
		Kind:    assistant.KindCreate,
		Message: "¡Venta registrada!",
		Records: []map[string]interface{}{raw},
	}}}
	s, p := newTestSession(t, asker, existing("s1", "cookie", "Marco"))

	out, err := s.Submit(context.Background(), "vendí un brownie a Marcos a 2500")
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, out.Kind)
	require.Equal(t, StateAwaitingMatchConfirmation, out.State)
	require.Len(t, out.Candidates, 1)

	c := out.Candidates[0]
	assert.Equal(t, domain.FieldClient, c.Field)
	assert.Equal(t, "Marcos", c.Original)
	assert.Equal(t, "Marco", c.Canonical)
	assert.InDelta(t, 5.0/6.0, c.Similarity, 1e-9)
	assert.Contains(t, out.Message, `Cliente: "Marcos" → "Marco"`)
	return s, p, asker
}

func TestCreate_MediumMatchAsksAndYesApplies(t *testing.T) {
	s, p, asker := createWithCandidate(t)
	newID := s.Ledger()[0].ID

	out, err := s.Submit(context.Background(), "sí")
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatchApplied, out.Kind)
	assert.Equal(t, StateIdle, out.State)
	require.Len(t, out.Updated, 1)
	assert.Equal(t, newID, out.Updated[0].ID)

	rec := s.Ledger()[0]
	assert.Equal(t, "Marcos", rec.Client)
	assert.Equal(t, "Marco", rec.NormalizedClient)
	assert.Equal(t, "", s.Ledger()[1].NormalizedClient)

	assert.Len(t, asker.Calls(), 1, "confirmation is handled without the assistant")
	assert.Len(t, p.upserts, 2)
	assert.Empty(t, s.PendingMatches())
}

func TestCreate_MediumMatchNoDiscards(t *testing.T) {
	s, p, asker := createWithCandidate(t)

	out, err := s.Submit(context.Background(), "no")
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatchDiscarded, out.Kind)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, "", s.Ledger()[0].NormalizedClient)
	assert.Len(t, asker.Calls(), 1)
	assert.Len(t, p.upserts, 1)
}

func TestCreate_OtherInputDuringConfirmationIsNewRequest(t *testing.T) {
	s, _, asker := createWithCandidate(t)
	asker.mu.Lock()
	asker.replies = []*assistant.Response{{Kind: assistant.KindConversational, Message: "¡Hola!"}}
	asker.mu.Unlock()

	out, err := s.Submit(context.Background(), "¿cuánto vendí hoy?")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConversational, out.Kind)
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.PendingMatches())

	calls := asker.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, domain.Conversation{{Role: domain.RoleUser, Content: "¿cuánto vendí hoy?"}}, calls[1].conv)
}

func TestEntityMatchFromAssistant(t *testing.T) {
	asker := &fakeAsker{replies: []*assistant.Response{{
		Kind:    assistant.KindEntityMatch,
		Message: "¿Unifico?",
		Candidates: []assistant.EntityCandidate{
			{Field: domain.FieldProduct, Original: "galleta", Canonical: "galletas", Similarity: 0.875},
		},
	}}}
	s, _ := newTestSession(t, asker,
		existing("s1", "galleta", "Ana"),
		existing("s2", "Galleta", "Beto"),
		existing("s3", "galletas", "Ana"),
	)

	out, err := s.Submit(context.Background(), "unificá los productos")
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatchPending, out.Kind)
	assert.Equal(t, StateAwaitingMatchConfirmation, out.State)

	out, err = s.Submit(context.Background(), "dale")
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatchApplied, out.Kind)
	assert.Len(t, out.Updated, 2)

	ledger := s.Ledger()
	assert.Equal(t, "galletas", ledger[0].NormalizedProduct)
	assert.Equal(t, "galletas", ledger[1].NormalizedProduct)
	assert.Equal(t, "", ledger[2].NormalizedProduct)
}

func TestSelectionGuard_DeletesSelectedSale(t *testing.T) {
	asker := &fakeAsker{replies: []*assistant.Response{{
		Kind:          assistant.KindClarification,
		Message:       "¿A qué venta te refieres?",
		Clarification: &assistant.Clarification{Question: "¿A qué venta te refieres?", Category: assistant.CategoryOther},
	}}}
	s, p := newTestSession(t, asker, cookie())
	s.Select("s1")

	out, err := s.Submit(context.Background(), "eliminala")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, out.Kind)
	assert.Equal(t, StateIdle, out.State)
	assert.Empty(t, s.Ledger())
	assert.Empty(t, s.Selection())
	assert.Equal(t, [][]string{{"s1"}}, p.deletes)
}

func TestSelectionGuard_UpdatesSelectedSale(t *testing.T) {
	asker := &fakeAsker{replies: []*assistant.Response{{
		Kind:    assistant.KindClarification,
		Message: "¿Cuál venta querés modificar?",
	}}}
	s, p := newTestSession(t, asker, cookie())
	s.Select("s1")

	out, err := s.Submit(context.Background(), "cambiá el precio a 4000")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out.Kind)

	rec := s.Ledger()[0]
	assert.Equal(t, 4000.0, rec.UnitPrice)
	assert.Equal(t, 8000.0, rec.TotalPrice)
	assert.Empty(t, s.Selection())
	assert.Len(t, p.upserts, 1)
}

func TestSelectionGuard_DescribesSaleWhenNothingToApply(t *testing.T) {
	asker := &fakeAsker{replies: []*assistant.Response{{
		Kind:    assistant.KindClarification,
		Message: "¿Cuál es el ID de la venta?",
	}}}
	s, p := newTestSession(t, asker, cookie())
	s.Select("s1")

	out, err := s.Submit(context.Background(), "modificala")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConversational, out.Kind)
	assert.Contains(t, out.Message, "cookie")
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, []string{"s1"}, s.Selection())
	assert.Empty(t, p.upserts)
}

func TestSelectionGuard_NotTriggeredWithoutSelection(t *testing.T) {
	asker := &fakeAsker{replies: []*assistant.Response{{
		Kind:    assistant.KindClarification,
		Message: "¿Qué venta querés borrar?",
	}}}
	s, _ := newTestSession(t, asker, cookie())

	out, err := s.Submit(context.Background(), "borrala")
	require.NoError(t, err)
	assert.Equal(t, OutcomeClarification, out.Kind)
	assert.Equal(t, StateAwaitingClarification, s.State())
	assert.Len(t, s.Ledger(), 1)
}

func TestGuardUpdate(t *testing.T) {
	orig := cookie()
	merged := orig
	merged.Amount = 4
	merged.Client = "Beto"
	merged.TotalPrice = 1

	rec, reverted := guardUpdate(orig, merged, newClassifier().Classify("eran 4 unidades"))
	assert.Equal(t, 4.0, rec.Amount)
	assert.Equal(t, "Ana", rec.Client)
	assert.Equal(t, 12000.0, rec.TotalPrice)
	assert.Equal(t, []domain.Field{domain.FieldClient}, reverted)
}

func TestGuardUpdate_NumberBoundToAmountDoesNotMovePrice(t *testing.T) {
	orig := cookie()
	merged := orig
	merged.Amount = 3
	merged.UnitPrice = 3
	merged.TotalPrice = 9

	rec, reverted := guardUpdate(orig, merged, newClassifier().Classify("cambia la cantidad a 3"))
	assert.Equal(t, 3.0, rec.Amount)
	assert.Equal(t, 3000.0, rec.UnitPrice)
	assert.Equal(t, 9000.0, rec.TotalPrice)
	assert.Contains(t, reverted, domain.FieldUnitPrice)
	assert.NotContains(t, reverted, domain.FieldTotalPrice)
}
