package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/llm"
)

// scripted answers each call with the next entry; an entry is either a
// content string or an error.
func scripted(entries ...interface{}) *llm.MockProvider {
	i := 0
	return &llm.MockProvider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			e := entries[i]
			if i < len(entries)-1 {
				i++
			}
			if err, ok := e.(error); ok {
				return nil, err
			}
			return &llm.CompletionResponse{Content: e.(string), Endpoint: "mock"}, nil
		},
	}
}

func newTestGateway(p llm.Provider) (*Gateway, *[]time.Duration) {
	g := NewGateway(p, GatewayConfig{}, zerolog.Nop())
	var waits []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return g, &waits
}

func userConv(text string) domain.Conversation {
	return domain.Conversation{{Role: domain.RoleUser, Content: text}}
}

var errUnavailable = &llm.TransientError{StatusCode: 503, Err: errors.New("service unavailable")}

func TestAsk_RequestShape(t *testing.T) {
	p := scripted(`{"success":true,"message":"hola"}`)
	g, _ := newTestGateway(p)

	conv := domain.Conversation{
		{Role: domain.RoleUser, Content: "vendí 2kg a 8000"},
		{Role: domain.RoleAssistant, Content: "¿2kg de qué?"},
		{Role: domain.RoleUser, Content: "papa"},
	}
	before := conv.Clone()

	resp := g.Ask(context.Background(), conv, nil, nil)
	require.Equal(t, KindConversational, resp.Kind)
	assert.Equal(t, before, conv)

	calls := p.Calls()
	require.Len(t, calls, 1)
	req := calls[0]
	assert.True(t, req.JSONMode)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 500, req.MaxTokens)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, systemPrompt, req.Messages[0].Content)
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
	assert.Equal(t, llm.RoleAssistant, req.Messages[2].Role)
	assert.Equal(t, "papa", req.Messages[3].Content)
}

func TestAsk_Options(t *testing.T) {
	p := scripted(`{"message":"ok"}`)
	g, _ := newTestGateway(p)

	g.Ask(context.Background(), userConv("hola"), nil, nil, WithMaxTokens(800), WithModel("gpt-4o"))
	req := p.Calls()[0]
	assert.Equal(t, 800, req.MaxTokens)
	assert.Equal(t, "gpt-4o", req.Model)
}

func TestAsk_SelectionTurn(t *testing.T) {
	p := scripted(`{"message":"ok"}`)
	g, _ := newTestGateway(p)

	ledger := []domain.SaleRecord{{ID: "s1", Product: "cookie", Amount: 2, UnitPrice: 3000, TotalPrice: 6000, Client: "Ana"}}
	g.Ask(context.Background(), userConv("cambiá el precio"), ledger, []string{"s1", "ghost"})

	msgs := p.Calls()[0].Messages
	require.Len(t, msgs, 3)
	sel := msgs[1]
	assert.Equal(t, llm.RoleSystem, sel.Role)
	assert.Contains(t, sel.Content, "ATTENTION: The user has explicitly selected 2 sale(s)")
	assert.Contains(t, sel.Content, "ID=s1, Product=cookie, Amount=2, Price=3000")
	assert.Contains(t, sel.Content, "WARNING: Sale details for IDs [ghost] were not found")
}

func TestAsk_RetriesTransientWithDoublingBackoff(t *testing.T) {
	p := scripted(errUnavailable, errUnavailable, `{"success":true,"message":"listo"}`)
	g, waits := newTestGateway(p)

	resp := g.Ask(context.Background(), userConv("hola"), nil, nil)
	require.Equal(t, KindConversational, resp.Kind)
	assert.Equal(t, "listo", resp.Message)
	assert.Len(t, p.Calls(), 3)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, *waits)
}

func TestAsk_ExhaustedAttemptsIsTransportFailure(t *testing.T) {
	p := scripted(errUnavailable)
	g, waits := newTestGateway(p)

	resp := g.Ask(context.Background(), userConv("hola"), nil, nil)
	require.Equal(t, KindFailure, resp.Kind)
	assert.Equal(t, ReasonTransport, resp.Failure.Reason)
	assert.Len(t, p.Calls(), 3)
	assert.Len(t, *waits, 2)
}

func TestAsk_PermanentErrorIsNotRetried(t *testing.T) {
	p := scripted(errors.New("400 bad request"))
	g, waits := newTestGateway(p)

	resp := g.Ask(context.Background(), userConv("hola"), nil, nil)
	require.Equal(t, KindFailure, resp.Kind)
	assert.Equal(t, ReasonTransport, resp.Failure.Reason)
	assert.Len(t, p.Calls(), 1)
	assert.Empty(t, *waits)
}

func TestAsk_CanceledContext(t *testing.T) {
	p := scripted(`{"message":"never"}`)
	g, _ := newTestGateway(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := g.Ask(ctx, userConv("hola"), nil, nil)
	require.Equal(t, KindFailure, resp.Kind)
	assert.Equal(t, ReasonCanceled, resp.Failure.Reason)
	assert.Empty(t, p.Calls())
}

func TestAsk_CanceledDuringBackoff(t *testing.T) {
	p := scripted(errUnavailable)
	g := NewGateway(p, GatewayConfig{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	g.sleep = func(c context.Context, d time.Duration) error {
		cancel()
		return sleepContext(c, d)
	}

	resp := g.Ask(ctx, userConv("hola"), nil, nil)
	require.Equal(t, KindFailure, resp.Kind)
	assert.Equal(t, ReasonCanceled, resp.Failure.Reason)
	assert.Len(t, p.Calls(), 1)
}

func TestAsk_EndpointIsReported(t *testing.T) {
	g, _ := newTestGateway(scripted(`{"message":"hola"}`))
	resp := g.Ask(context.Background(), userConv("hola"), nil, nil)
	assert.Equal(t, "mock", resp.Endpoint)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestInsights(t *testing.T) {
	p := scripted(`{"insight":"Las cookies son tu producto estrella."}`)
	g, _ := newTestGateway(p)

	sales := []domain.SaleRecord{
		{ID: "1", Product: "cookie", Amount: 2, UnitPrice: 3000, TotalPrice: 6000, Client: "Ana", PaymentMethod: "Efectivo", Date: "2024-05-01"},
		{ID: "2", Product: "brownie", Amount: 1, UnitPrice: 2500, TotalPrice: 2500, Client: "Ana", PaymentMethod: "Tarjeta", Date: "2024-05-03"},
	}
	text, err := g.Insights(context.Background(), sales)
	require.NoError(t, err)
	assert.Equal(t, "Las cookies son tu producto estrella.", text)

	user := p.Calls()[0].Messages[1].Content
	assert.Contains(t, user, "Ingresos totales: $8500.00")
	assert.Contains(t, user, "cookie: 1 ventas, $6000.00")
}

func TestInsights_Empty(t *testing.T) {
	g, _ := newTestGateway(scripted(`{}`))
	_, err := g.Insights(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSales)
}

func TestInsights_Failure(t *testing.T) {
	g, _ := newTestGateway(scripted(errors.New("unauthorized")))
	_, err := g.Insights(context.Background(), []domain.SaleRecord{{ID: "1", TotalPrice: 1}})
	require.Error(t, err)
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, ReasonTransport, f.Reason)
}

func TestSummarize(t *testing.T) {
	sales := []domain.SaleRecord{
		{Product: "cookie", TotalPrice: 0.1, Client: "Ana", PaymentMethod: "Efectivo", Date: "2024-05-02"},
		{Product: "cookie", TotalPrice: 0.2, Client: "Beto", PaymentMethod: "Efectivo", Date: "2024-05-01"},
		{Product: "galletita", NormalizedProduct: "galletitas", TotalPrice: 5, Client: "Ana", PaymentMethod: "Tarjeta", Date: "2024-05-04"},
	}
	s := Summarize(sales)

	assert.Equal(t, 3, s.Sales)
	assert.Equal(t, "5.30", s.Revenue.StringFixed(2))
	require.Len(t, s.Products, 2)
	assert.Equal(t, "galletitas", s.Products[0].Name)
	assert.Equal(t, "cookie", s.Products[1].Name)
	// decimal sums avoid float drift
	assert.Equal(t, "0.3", s.Products[1].Sum.String())
	assert.Equal(t, "2024-05-01", s.FirstDate)
	assert.Equal(t, "2024-05-04", s.LastDate)
	assert.True(t, strings.Contains(s.String(), "Métodos de pago"))
}
