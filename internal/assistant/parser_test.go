package assistant

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/perla/internal/domain"
)

func parse(content string) *Response {
	return Parse(content, zerolog.Nop())
}

func TestParse_Dispatch(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    Kind
	}{
		{"single sale", `{"success":true,"message":"¡Venta registrada!","sale":{"product":"cookie","amount":2,"price":3000}}`, KindCreate},
		{"many sales", `{"success":true,"message":"¡Ventas registradas!","sales":[{"product":"a","amount":1,"price":1},{"product":"b","amount":1,"price":1}]}`, KindCreateMany},
		{"sales wins over sale", `{"sales":[{"product":"a"}],"sale":{"product":"b"}}`, KindCreateMany},
		{"empty sales falls through to sale", `{"sales":[],"sale":{"product":"b"}}`, KindCreate},
		{"update", `{"success":true,"message":"¡Venta actualizada!","updatedSales":[{"id":"s1","product":"a","amount":3,"price":1}]}`, KindUpdate},
		{"delete many", `{"success":true,"message":"¡Ventas eliminadas!","deletedIds":["s1","s2"]}`, KindDeleteMany},
		{"delete one", `{"success":true,"message":"¡Venta eliminada!","deletedId":"s1"}`, KindDeleteOne},
		{"clarification by pending action", `{"success":false,"message":"¿Qué producto?","pendingAction":"request_clarification"}`, KindClarification},
		{"clarification by missing info", `{"success":false,"message":"¿Cuántas?","missingInfo":{"type":"quantity","question":"¿Cuántas manzanas?"}}`, KindClarification},
		{"entity match", `{"success":true,"message":"¿Normalizo?","pendingAction":"confirm_entity_match","potentialMatches":{"products":[{"original":"galletita","potential":"galletitas"}]}}`, KindEntityMatch},
		{"suggestion", `{"success":true,"message":"¡Gracias!","pendingAction":"suggestion","suggestion":"modo oscuro"}`, KindSuggestion},
		{"conversational", `{"success":true,"message":"¡Hola!"}`, KindConversational},
		{"fenced json", "```json\n{\"success\":true,\"message\":\"hola\"}\n```", KindConversational},
		{"json with chatter", "Claro: {\"success\":true,\"message\":\"hola\"} listo", KindConversational},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := parse(tt.content)
			assert.Equal(t, tt.kind, resp.Kind)
		})
	}
}

func TestParse_CreatePayload(t *testing.T) {
	resp := parse(`{"success":true,"message":"ok","sale":{"product":"cookie","amount":2,"price":3000}}`)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "cookie", resp.Records[0]["product"])
	assert.Equal(t, 2.0, resp.Records[0]["amount"])
}

func TestParse_NonObjectSaleElementsAreKeptAsNil(t *testing.T) {
	resp := parse(`{"sales":[{"product":"a"}, 7]}`)
	require.Equal(t, KindCreateMany, resp.Kind)
	require.Len(t, resp.Records, 2)
	assert.Nil(t, resp.Records[1])
}

func TestParse_DeletePayloads(t *testing.T) {
	one := parse(`{"deletedId":" s1 "}`)
	assert.Equal(t, []string{"s1"}, one.IDs)

	many := parse(`{"deletedIds":["s1","",12]}`)
	assert.Equal(t, []string{"s1", "12"}, many.IDs)

	blank := parse(`{"deletedId":"","message":"nada"}`)
	assert.Equal(t, KindConversational, blank.Kind)
}

func TestParse_Clarification(t *testing.T) {
	resp := parse(`{"success":false,"message":"¿Cuántas?","pendingAction":"request_clarification","missingInfo":{"type":"quantity","question":"¿Cuántas manzanas vendiste?"}}`)
	require.NotNil(t, resp.Clarification)
	assert.Equal(t, "¿Cuántas manzanas vendiste?", resp.Clarification.Question)
	assert.Equal(t, CategoryQuantity, resp.Clarification.Category)

	unknown := parse(`{"message":"¿Qué?","missingInfo":{"type":"color"}}`)
	assert.Equal(t, CategoryOther, unknown.Clarification.Category)
	assert.Equal(t, "¿Qué?", unknown.Clarification.Question)
}

func TestParse_EntityCandidates(t *testing.T) {
	resp := parse(`{"pendingAction":"confirm_entity_match","message":"?","potentialMatches":{
		"products":[{"original":"galletita","potential":"galletitas"}],
		"clients":[{"original":"Ana","potential":"Ana"},{"original":"Marcos","potential":"Marco"}],
		"paymentMethods":[{"original":"tarjeta","potential":"Tarjeta"}]}}`)
	require.Equal(t, KindEntityMatch, resp.Kind)
	require.Len(t, resp.Candidates, 3)
	assert.Equal(t, domain.FieldProduct, resp.Candidates[0].Field)
	assert.Equal(t, "galletitas", resp.Candidates[0].Canonical)
	assert.InDelta(t, 0.9, resp.Candidates[0].Similarity, 1e-9)
	assert.Equal(t, domain.FieldClient, resp.Candidates[1].Field)
	assert.Equal(t, domain.FieldPaymentMethod, resp.Candidates[2].Field)
}

func TestParse_EntityMatchWithoutCandidatesIsConversational(t *testing.T) {
	resp := parse(`{"pendingAction":"confirm_entity_match","message":"nada que normalizar"}`)
	assert.Equal(t, KindConversational, resp.Kind)
}

func TestParse_NonJSONFallsBackToConversation(t *testing.T) {
	resp := parse("  ¡Hola! ¿En qué te ayudo?  ")
	require.Equal(t, KindConversational, resp.Kind)
	assert.True(t, resp.Fallback)
	assert.Equal(t, "¡Hola! ¿En qué te ayudo?", resp.Message)
}

func TestParse_EmptyIsMalformed(t *testing.T) {
	for _, content := range []string{"", "   \n"} {
		resp := parse(content)
		require.Equal(t, KindFailure, resp.Kind)
		assert.Equal(t, ReasonMalformed, resp.Failure.Reason)
	}
}

func TestParse_JSONWithoutAnythingUsableIsMalformed(t *testing.T) {
	assert.Equal(t, KindFailure, parse(`{"success":true}`).Kind)
	assert.Equal(t, KindFailure, parse(`[1,2,3]`).Kind)
}

func TestParse_RecoversMissingSale(t *testing.T) {
	resp := parse(`{"success":true,"message":"¡Venta registrada! Vendiste 2 cookies a $3000."}`)
	require.Equal(t, KindCreate, resp.Kind)
	assert.True(t, resp.Recovered)
	require.Len(t, resp.Records, 1)
	rec := resp.Records[0]
	assert.Equal(t, "cookies", rec["product"])
	assert.Equal(t, 2.0, rec["amount"])
	assert.Equal(t, 3000.0, rec["price"])
	assert.Equal(t, 6000.0, rec["totalPrice"])
}

func TestParse_RecoveryFailsGracefully(t *testing.T) {
	resp := parse(`{"success":true,"message":"¡Venta registrada! Todo listo."}`)
	assert.Equal(t, KindConversational, resp.Kind)
	assert.False(t, resp.Recovered)
}

func TestParse_RecoveryNeedsSuccess(t *testing.T) {
	resp := parse(`{"success":false,"message":"venta registrada: 2 cookies a 3000"}`)
	assert.Equal(t, KindConversational, resp.Kind)
}

func TestRecoverSale(t *testing.T) {
	tests := []struct {
		msg     string
		product string
		amount  float64
		price   float64
	}{
		{"¡Venta confirmada! Has vendido 2 bandejas de ravioles a 2500", "bandejas de ravioles", 2, 2500},
		{"Ventas registradas: 3 empanadas por $900", "empanadas", 3, 900},
		{"venta registrada 10 kg de papa a 300", "kg de papa", 10, 300},
		{"venta registrada: 2 cookies a $3.000.", "cookies", 2, 3000},
		{"Venta registrada: 4 tortas por 1.250,50", "tortas", 4, 1250.5},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			rec, ok := recoverSale(tt.msg)
			require.True(t, ok)
			assert.Equal(t, tt.product, rec["product"])
			assert.Equal(t, tt.amount, rec["amount"])
			assert.Equal(t, tt.price, rec["price"])
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanModelJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanModelJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanModelJSON(`  {"a":1}  `))
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want string
	}{
		{
			"create",
			&Response{Kind: KindCreate, Message: "ok", Records: []map[string]interface{}{{"product": "cookie"}}},
			`{"success":true,"message":"ok","sale":{"product":"cookie"}}`,
		},
		{
			"delete one",
			&Response{Kind: KindDeleteOne, Message: "ok", IDs: []string{"s1"}},
			`{"success":true,"message":"ok","deletedId":"s1"}`,
		},
		{
			"clarification",
			&Response{Kind: KindClarification, Message: "¿Qué?", Clarification: &Clarification{Question: "¿Qué?", Category: CategoryOther}},
			`{"success":false,"message":"¿Qué?","pendingAction":"request_clarification","missingInfo":{"type":"other","question":"¿Qué?"}}`,
		},
		{
			"entity match",
			&Response{Kind: KindEntityMatch, Message: "?", Candidates: []EntityCandidate{{Field: domain.FieldClient, Original: "Marcos", Canonical: "Marco"}}},
			`{"success":true,"message":"?","pendingAction":"confirm_entity_match","potentialMatches":{"clients":[{"original":"Marcos","potential":"Marco"}]}}`,
		},
		{
			"fallback",
			&Response{Kind: KindConversational, Message: "hola", Fallback: true},
			`{"success":true,"message":"hola","fallback":true}`,
		},
		{
			"failure",
			failure(ReasonTransport, nil),
			`{"success":false,"message":"` + MessageTransport + `","error":"transport_error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(NewEnvelope(tt.resp))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestSelectionPrompt_AllMissing(t *testing.T) {
	p := selectionPrompt([]string{"x"}, nil)
	assert.Contains(t, p, "selected 1 sale(s)")
	assert.NotContains(t, p, "Details of selected sales")
	assert.Contains(t, p, "WARNING: Sale details for IDs [x]")
}
