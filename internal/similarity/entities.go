package similarity

import (
	"sort"

	"github.com/dvloznov/perla/internal/domain"
)

// Entities are the freshly entered names to compare against the ledger.
// Empty fields are skipped.
type Entities struct {
	Product       string
	Client        string
	PaymentMethod string
}

// Match is an existing ledger value similar to a new entity.
type Match struct {
	Original   string  `json:"original"`
	Similarity float64 `json:"similarity"`
}

// AutoApply reports whether the match is strong enough to apply without asking.
func (m Match) AutoApply() bool {
	return m.Similarity >= HighConfidence
}

// Matches groups candidate matches per entity kind, best first.
type Matches struct {
	Products       []Match `json:"products"`
	Clients        []Match `json:"clients"`
	PaymentMethods []Match `json:"paymentMethods"`
}

// Empty reports whether no kind has any candidate.
func (m Matches) Empty() bool {
	return len(m.Products) == 0 && len(m.Clients) == 0 && len(m.PaymentMethods) == 0
}

// FindSimilarEntities scans the distinct product, client and payment method
// values of ledger and returns those scoring in [Threshold, 1) against the
// matching field of e.
func FindSimilarEntities(ledger []domain.SaleRecord, e Entities) Matches {
	var out Matches
	if len(ledger) == 0 {
		return out
	}

	if e.Product != "" {
		out.Products = rank(distinct(ledger, func(s domain.SaleRecord) string { return s.Product }), e.Product)
	}
	if e.Client != "" {
		out.Clients = rank(distinct(ledger, func(s domain.SaleRecord) string { return s.Client }), e.Client)
	}
	if e.PaymentMethod != "" {
		out.PaymentMethods = rank(distinct(ledger, func(s domain.SaleRecord) string { return s.PaymentMethod }), e.PaymentMethod)
	}
	return out
}

func distinct(ledger []domain.SaleRecord, get func(domain.SaleRecord) string) []string {
	seen := make(map[string]bool, len(ledger))
	var values []string
	for _, s := range ledger {
		v := get(s)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

func rank(existing []string, candidate string) []Match {
	var matches []Match
	for _, v := range existing {
		score := Similarity(v, candidate)
		if score >= Threshold && score < 1 {
			matches = append(matches, Match{Original: v, Similarity: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}
