// Package intent infers which sale fields a user utterance refers to.
package intent

import (
	"strconv"
	"strings"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/similarity"
)

// Classifier inspects a user utterance and reports what it asks for.
type Classifier interface {
	Classify(utterance string) Intent
}

// Intent is the result of classifying one utterance.
type Intent struct {
	// Delete is set when the utterance asks to remove something.
	Delete bool
	// Fields are the sale fields the utterance refers to.
	Fields map[domain.Field]bool
	// Values holds a value extracted for a field, when one was found.
	Values map[domain.Field]string

	normalized string
}

// NewIntent returns an empty intent for utterance.
func NewIntent(utterance string) Intent {
	return Intent{
		Fields:     make(map[domain.Field]bool),
		Values:     make(map[domain.Field]string),
		normalized: " " + similarity.Normalize(utterance) + " ",
	}
}

// References reports whether the utterance refers to field f.
func (i Intent) References(f domain.Field) bool {
	return i.Fields[f]
}

// Mentions reports whether value literally appears in the utterance, ignoring
// case, accents and punctuation. Numbers are matched as whole tokens.
func (i Intent) Mentions(value string) bool {
	v := similarity.Normalize(value)
	if v == "" {
		return false
	}
	return strings.Contains(i.normalized, " "+v+" ")
}

// MentionsNumber reports whether f appears as a number in the utterance.
func (i Intent) MentionsNumber(f float64) bool {
	return i.Mentions(strconv.FormatFloat(f, 'f', -1, 64))
}

// Allows reports whether a change of field f from original to updated is
// evidenced by the utterance, either by keyword or by the new value itself.
// A number bound by keyword to another numeric field is no evidence for f.
func (i Intent) Allows(f domain.Field, updated domain.SaleRecord) bool {
	if i.Fields[f] {
		return true
	}
	switch f {
	case domain.FieldAmount:
		return i.mentionsFreeNumber(f, updated.Amount)
	case domain.FieldUnitPrice:
		return i.mentionsFreeNumber(f, updated.UnitPrice)
	case domain.FieldTotalPrice:
		return i.mentionsFreeNumber(f, updated.TotalPrice)
	case domain.FieldProduct:
		return i.Mentions(updated.Product)
	case domain.FieldClient:
		return i.Mentions(updated.Client)
	case domain.FieldPaymentMethod:
		return i.Mentions(updated.PaymentMethod)
	case domain.FieldDate:
		return i.Mentions(updated.Date)
	}
	return false
}

func (i Intent) mentionsFreeNumber(f domain.Field, n float64) bool {
	if !i.MentionsNumber(n) {
		return false
	}
	for _, other := range []domain.Field{domain.FieldAmount, domain.FieldUnitPrice, domain.FieldTotalPrice} {
		if other == f {
			continue
		}
		if v, ok := i.Number(other); ok && v == n {
			return false
		}
	}
	return true
}
