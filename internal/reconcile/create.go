package reconcile

import (
	"github.com/dvloznov/perla/internal/assistant"
	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/sales"
	"github.com/dvloznov/perla/internal/similarity"
)

// create validates every returned sale, all or nothing, and prepends them to
// the ledger. New names that look like existing ones are normalized right
// away when the match is strong, or proposed for confirmation otherwise.
func (s *Session) create(t *turn, resp *assistant.Response) *Outcome {
	t.reset()

	recs, err := sales.ValidateAll(resp.Records, s.now())
	if err != nil {
		s.log.Warn().Err(err).Int("records", len(resp.Records)).Msg("Rejected invalid sale from assistant")
		return &Outcome{Kind: OutcomeRejected, Message: rejectedMessage(err)}
	}

	prior := t.ledger
	var cands []assistant.EntityCandidate
	for i := range recs {
		cands = appendCandidates(cands, s.normalizeNew(&recs[i], prior)...)
	}

	// Most recent first; within one batch the first mentioned sale ends up on top.
	ledger := make([]domain.SaleRecord, 0, len(recs)+len(prior))
	ledger = append(ledger, recs...)
	t.ledger = append(ledger, prior...)
	s.persistUpsert(recs...)

	message := resp.Message
	if message == "" {
		message = msgCreated
		if len(recs) > 1 {
			message = msgCreatedMany
		}
	}

	out := &Outcome{Kind: OutcomeCreated, Message: message, Created: recs}
	if len(cands) > 0 {
		t.state = StateAwaitingMatchConfirmation
		t.pending = cands
		out.Candidates = cands
		out.Message = message + "\n\n" + matchPrompt(cands)
	}
	return out
}

// normalizeNew compares rec against the prior ledger. High-confidence
// matches are applied to rec; weaker ones are returned as candidates.
func (s *Session) normalizeNew(rec *domain.SaleRecord, prior []domain.SaleRecord) []assistant.EntityCandidate {
	e := similarity.Entities{Product: rec.Product, PaymentMethod: rec.PaymentMethod}
	if rec.Client != domain.DefaultClient {
		e.Client = rec.Client
	}
	matches := similarity.FindSimilarEntities(prior, e)

	var cands []assistant.EntityCandidate
	consider := func(f domain.Field, value string, ms []similarity.Match) {
		if len(ms) == 0 {
			return
		}
		best := ms[0]
		if best.AutoApply() {
			setCanonical(rec, f, best.Original)
			s.log.Debug().
				Str("field", string(f)).
				Str("value", value).
				Str("canonical", best.Original).
				Float64("similarity", best.Similarity).
				Msg("Normalized entity")
			return
		}
		cands = append(cands, assistant.EntityCandidate{
			Field:      f,
			Original:   value,
			Canonical:  best.Original,
			Similarity: best.Similarity,
			RecordIDs:  []string{rec.ID},
		})
	}
	consider(domain.FieldProduct, rec.Product, matches.Products)
	consider(domain.FieldClient, rec.Client, matches.Clients)
	consider(domain.FieldPaymentMethod, rec.PaymentMethod, matches.PaymentMethods)
	return cands
}

// appendCandidates merges candidates proposing the same replacement.
func appendCandidates(dst []assistant.EntityCandidate, add ...assistant.EntityCandidate) []assistant.EntityCandidate {
	for _, c := range add {
		merged := false
		for i := range dst {
			if dst[i].Field == c.Field && dst[i].Original == c.Original && dst[i].Canonical == c.Canonical {
				dst[i].RecordIDs = append(dst[i].RecordIDs, c.RecordIDs...)
				merged = true
				break
			}
		}
		if !merged {
			dst = append(dst, c)
		}
	}
	return dst
}

// setCanonical records canonical as the normalized value of field f.
// Payment methods have no separate normalized field and are replaced.
func setCanonical(rec *domain.SaleRecord, f domain.Field, canonical string) {
	switch f {
	case domain.FieldProduct:
		rec.NormalizedProduct = canonical
	case domain.FieldClient:
		rec.NormalizedClient = canonical
	case domain.FieldPaymentMethod:
		rec.PaymentMethod = canonical
	}
}

func fieldValue(rec domain.SaleRecord, f domain.Field) string {
	switch f {
	case domain.FieldProduct:
		return rec.Product
	case domain.FieldClient:
		return rec.Client
	case domain.FieldPaymentMethod:
		return rec.PaymentMethod
	}
	return ""
}

// applyPending applies every pending candidate after the user confirmed.
func (s *Session) applyPending(t *turn) *Outcome {
	cands := t.pending
	t.reset()

	changed := make(map[string]bool)
	for _, c := range cands {
		targets := make(map[string]bool, len(c.RecordIDs))
		for _, id := range c.RecordIDs {
			targets[id] = true
		}
		want := similarity.Normalize(c.Original)
		for i := range t.ledger {
			rec := &t.ledger[i]
			if len(targets) > 0 && !targets[rec.ID] {
				continue
			}
			if len(targets) == 0 && similarity.Normalize(fieldValue(*rec, c.Field)) != want {
				continue
			}
			setCanonical(rec, c.Field, c.Canonical)
			rec.UpdatedAt = s.now()
			changed[rec.ID] = true
		}
	}

	var updated []domain.SaleRecord
	for _, rec := range t.ledger {
		if changed[rec.ID] {
			updated = append(updated, rec)
		}
	}
	s.persistUpsert(updated...)
	return &Outcome{Kind: OutcomeMatchApplied, Message: msgMatchApplied, Updated: updated}
}

func (s *Session) discardPending(t *turn) *Outcome {
	t.reset()
	return &Outcome{Kind: OutcomeMatchDiscarded, Message: msgMatchDiscarded}
}

func normalizeReply(s string) string {
	return similarity.Normalize(s)
}
