package reconcile

import (
	"github.com/dvloznov/perla/internal/assistant"
	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/intent"
	"github.com/dvloznov/perla/internal/sales"
)

// update applies returned records to the sales they name. A field only
// changes when the user's words support it; any other change the model made
// is reverted.
func (s *Session) update(t *turn, resp *assistant.Response) *Outcome {
	t.reset()
	in := s.classifier.Classify(t.input)
	now := s.now()

	var updated []domain.SaleRecord
	found := 0
	for _, raw := range resp.Records {
		id, _ := raw["id"].(string)
		idx := t.indexOf(id)
		if idx < 0 {
			s.log.Warn().Str("sale_id", id).Msg("Update refers to unknown sale")
			continue
		}
		original := t.ledger[idx]
		found++

		merged, err := sales.Merge(original, raw, now)
		if err != nil {
			s.log.Warn().Err(err).Str("sale_id", id).Msg("Rejected invalid update from assistant")
			continue
		}

		rec, reverted := guardUpdate(original, *merged, in)
		if len(reverted) > 0 {
			s.log.Warn().
				Str("event", "inconsistent_update").
				Str("sale_id", id).
				Strs("fields", fieldNames(reverted)).
				Msg("Reverted fields the user did not ask to change")
		}
		if rec == original {
			continue
		}
		rec.UpdatedAt = now
		t.ledger[idx] = rec
		updated = append(updated, rec)
	}

	if len(updated) == 0 {
		if found > 0 {
			return &Outcome{Kind: OutcomeRejected, Message: msgNothingChanged}
		}
		return &Outcome{Kind: OutcomeRejected, Message: msgSaleNotFound}
	}

	t.clearSelection = true
	s.persistUpsert(updated...)
	return &Outcome{Kind: OutcomeUpdated, Message: orDefault(resp.Message, msgUpdated), Updated: updated}
}

// guardUpdate starts from original and copies each field of merged that the
// intent allows. totalPrice is recomputed when amount or price changed,
// unless the user set the total explicitly.
func guardUpdate(original, merged domain.SaleRecord, in intent.Intent) (domain.SaleRecord, []domain.Field) {
	rec := original
	var reverted []domain.Field
	changed := make(map[domain.Field]bool)

	for _, f := range domain.EditableFields {
		if merged.Equal(original, f) {
			continue
		}
		if !in.Allows(f, merged) {
			reverted = append(reverted, f)
			continue
		}
		rec.CopyField(merged, f)
		changed[f] = true
	}

	if changed[domain.FieldProduct] {
		rec.NormalizedProduct = ""
	}
	if changed[domain.FieldClient] {
		rec.NormalizedClient = ""
	}

	if (changed[domain.FieldAmount] || changed[domain.FieldUnitPrice]) && !changed[domain.FieldTotalPrice] {
		total := rec.Amount * rec.UnitPrice
		if total != rec.TotalPrice {
			rec.TotalPrice = total
			// The recomputed total is not a reverted change.
			reverted = removeField(reverted, domain.FieldTotalPrice)
		}
	}
	return rec, reverted
}

func removeField(fs []domain.Field, f domain.Field) []domain.Field {
	out := fs[:0]
	for _, v := range fs {
		if v != f {
			out = append(out, v)
		}
	}
	return out
}

func fieldNames(fs []domain.Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}
