package intent

import (
	"regexp"
	"strings"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/sales"
	"github.com/dvloznov/perla/internal/similarity"
)

var (
	deleteStems = []string{"elimin", "borr", "quit", "remov", "remuev"}

	fieldKeywords = map[domain.Field][]string{
		domain.FieldAmount:        {"monto", "cantidad", "unidades", "cuantas", "cuantos"},
		domain.FieldUnitPrice:     {"precio", "valor", "cuesta", "por unidad", "cada unidad", "cada uno", "cada una"},
		domain.FieldTotalPrice:    {"total"},
		domain.FieldClient:        {"cliente", "clienta"},
		domain.FieldProduct:       {"producto"},
		domain.FieldPaymentMethod: {"pago", "efectivo", "tarjeta", "transferencia"},
		domain.FieldDate:          {"fecha", "ayer", "hoy"},
	}

	numberPattern  = regexp.MustCompile(`\d{1,3}(?:\.\d{3})+(?:,\d+)?|\d+(?:[.,]\d+)?`)
	clientPattern  = regexp.MustCompile(`(?i)client[ea]\s+(?:(?:a|es|por|de|sea)\s+)?(\p{L}[\p{L} ]*)`)
	productPattern = regexp.MustCompile(`(?i)producto\s+(?:(?:a|es|por|de|sea)\s+)?(\p{L}[\p{L} ]*)`)

	whichSalePhrases = []string{
		"id de la venta",
		"cual es el id",
		"que venta",
		"cual venta",
		"cuales ventas",
		"identificar la venta",
		"especificar la venta",
		"cuantas unidades",
		"cuantos",
		"que cantidad",
		"cual es la cantidad",
		"a que venta te refieres",
	}
)

// Spanish is a keyword classifier for the Spanish phrasing users type or dictate.
type Spanish struct{}

// NewSpanish returns the default keyword classifier.
func NewSpanish() *Spanish {
	return &Spanish{}
}

// Classify implements Classifier.
func (Spanish) Classify(utterance string) Intent {
	in := NewIntent(utterance)
	norm := in.normalized
	folded := similarity.Fold(utterance)

	for _, stem := range deleteStems {
		if strings.Contains(norm, " "+stem) {
			in.Delete = true
			break
		}
	}

	for field, words := range fieldKeywords {
		for _, w := range words {
			if !containsWord(norm, w) {
				continue
			}
			in.Fields[field] = true
			if field.IsNumeric() {
				if n := numberAfter(folded, w); n != "" {
					in.Values[field] = n
				}
			}
			break
		}
	}

	if in.Fields[domain.FieldClient] {
		if m := clientPattern.FindStringSubmatch(utterance); m != nil {
			in.Values[domain.FieldClient] = strings.TrimSpace(m[1])
		}
	}
	if in.Fields[domain.FieldProduct] {
		if m := productPattern.FindStringSubmatch(utterance); m != nil {
			in.Values[domain.FieldProduct] = strings.TrimSpace(m[1])
		}
	}

	return in
}

// containsWord matches w as a whole word, or as a prefix for longer words so
// that plurals and conjugations still count.
func containsWord(norm, w string) bool {
	if strings.Contains(norm, " "+w+" ") {
		return true
	}
	return len(w) > 4 && strings.Contains(norm, " "+w)
}

// numberAfter returns the first number following keyword w in folded text.
func numberAfter(folded, w string) string {
	idx := strings.Index(folded, w)
	if idx < 0 {
		return ""
	}
	return numberPattern.FindString(folded[idx+len(w):])
}

// Number parses the value extracted for a numeric field.
func (i Intent) Number(f domain.Field) (float64, bool) {
	v, ok := i.Values[f]
	if !ok {
		return 0, false
	}
	n, err := sales.ParseNumber(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsWhichSaleQuestion reports whether an assistant question asks the user to
// identify a sale, which only makes sense when nothing is selected.
func IsWhichSaleQuestion(question string) bool {
	norm := " " + similarity.Normalize(question) + " "
	for _, p := range whichSalePhrases {
		if strings.Contains(norm, " "+p+" ") {
			return true
		}
	}
	return false
}

var _ Classifier = (*Spanish)(nil)
