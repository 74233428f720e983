package assistant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/llm"
)

// ErrNoSales is returned by Insights for an empty ledger.
var ErrNoSales = errors.New("no sales to analyse")

const summaryTopN = 5

// Total is an aggregated amount for one product, client or payment method.
type Total struct {
	Name  string
	Count int
	Sum   decimal.Decimal
}

// Summary aggregates a ledger for reporting.
type Summary struct {
	Sales     int
	Revenue   decimal.Decimal
	Products  []Total
	Clients   []Total
	Payments  []Total
	FirstDate string
	LastDate  string
}

// Summarize totals sales per product, client and payment method, sorted by
// revenue descending.
func Summarize(sales []domain.SaleRecord) Summary {
	s := Summary{Sales: len(sales), Revenue: decimal.Zero}
	products := map[string]*Total{}
	clients := map[string]*Total{}
	payments := map[string]*Total{}

	for _, sale := range sales {
		amount := decimal.NewFromFloat(sale.TotalPrice)
		s.Revenue = s.Revenue.Add(amount)
		add(products, sale.DisplayProduct(), amount)
		add(clients, sale.DisplayClient(), amount)
		add(payments, sale.PaymentMethod, amount)

		if sale.Date != "" {
			if s.FirstDate == "" || sale.Date < s.FirstDate {
				s.FirstDate = sale.Date
			}
			if sale.Date > s.LastDate {
				s.LastDate = sale.Date
			}
		}
	}

	s.Products = sorted(products)
	s.Clients = sorted(clients)
	s.Payments = sorted(payments)
	return s
}

func add(m map[string]*Total, name string, amount decimal.Decimal) {
	key := strings.TrimSpace(name)
	t, ok := m[key]
	if !ok {
		t = &Total{Name: key, Sum: decimal.Zero}
		m[key] = t
	}
	t.Count++
	t.Sum = t.Sum.Add(amount)
}

func sorted(m map[string]*Total) []Total {
	out := make([]Total, 0, len(m))
	for _, t := range m {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Sum.Cmp(out[j].Sum); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// String renders the summary as the plain-text block sent to the model.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ventas: %d\nIngresos totales: $%s\n", s.Sales, s.Revenue.StringFixed(2))
	if s.FirstDate != "" {
		fmt.Fprintf(&b, "Período: %s a %s\n", s.FirstDate, s.LastDate)
	}
	writeTotals(&b, "Productos", s.Products)
	writeTotals(&b, "Clientes", s.Clients)
	writeTotals(&b, "Métodos de pago", s.Payments)
	return b.String()
}

func writeTotals(b *strings.Builder, title string, totals []Total) {
	fmt.Fprintf(b, "%s:\n", title)
	for i, t := range totals {
		if i == summaryTopN {
			fmt.Fprintf(b, "  ... y %d más\n", len(totals)-summaryTopN)
			break
		}
		fmt.Fprintf(b, "  - %s: %d ventas, $%s\n", t.Name, t.Count, t.Sum.StringFixed(2))
	}
}

// Insights asks the model for a short analysis of the ledger.
func (g *Gateway) Insights(ctx context.Context, sales []domain.SaleRecord) (string, error) {
	if len(sales) == 0 {
		return "", ErrNoSales
	}

	req := llm.CompletionRequest{
		Model: g.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: insightsPrompt},
			{Role: llm.RoleUser, Content: Summarize(sales).String()},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		JSONMode:    true,
	}

	resp := g.complete(ctx, req)
	switch resp.Kind {
	case KindFailure:
		return "", fmt.Errorf("Gateway.Insights: %w", resp.Failure)
	case KindConversational:
		return strings.TrimSpace(resp.Message), nil
	}
	return "", fmt.Errorf("Gateway.Insights: unexpected reply kind %s", resp.Kind)
}
