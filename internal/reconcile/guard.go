package reconcile

import (
	"github.com/dvloznov/perla/internal/assistant"
	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/intent"
)

// guardSelection answers "which sale?" questions locally when the user has
// already selected sales: the model should have used the selection. The
// first selected sale is the target.
func (s *Session) guardSelection(t *turn, resp *assistant.Response) (*Outcome, bool) {
	if len(t.selection) == 0 {
		return nil, false
	}
	question := resp.Message
	if resp.Clarification != nil && resp.Clarification.Question != "" {
		question = resp.Clarification.Question
	}
	if !intent.IsWhichSaleQuestion(question) {
		return nil, false
	}
	id := t.selection[0]
	idx := t.indexOf(id)
	if idx < 0 {
		return nil, false
	}

	s.log.Info().Str("sale_id", id).Str("question", question).Msg("Answering sale clarification from selection")

	in := s.classifier.Classify(t.input)
	if in.Delete {
		return s.remove(t, []string{id}, msgDeleted), true
	}

	original := t.ledger[idx]
	rec := applyIntentValues(original, in)
	if rec == original {
		t.reset()
		return &Outcome{Kind: OutcomeConversational, Message: describeSale(original)}, true
	}

	t.reset()
	rec.UpdatedAt = s.now()
	t.ledger[idx] = rec
	t.clearSelection = true
	s.persistUpsert(rec)
	return &Outcome{Kind: OutcomeUpdated, Message: msgUpdated, Updated: []domain.SaleRecord{rec}}, true
}

// applyIntentValues sets the amount, price or client extracted from the
// utterance on a copy of rec.
func applyIntentValues(rec domain.SaleRecord, in intent.Intent) domain.SaleRecord {
	priced := false
	if v, ok := in.Number(domain.FieldAmount); ok && v > 0 && v != rec.Amount {
		rec.Amount = v
		priced = true
	}
	if v, ok := in.Number(domain.FieldUnitPrice); ok && v >= 0 && v != rec.UnitPrice {
		rec.UnitPrice = v
		priced = true
	}
	if c := in.Values[domain.FieldClient]; c != "" && c != rec.Client {
		rec.Client = c
		rec.NormalizedClient = ""
	}
	if priced {
		rec.TotalPrice = rec.Amount * rec.UnitPrice
	}
	return rec
}
