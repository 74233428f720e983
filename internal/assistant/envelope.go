package assistant

import "github.com/dvloznov/perla/internal/domain"

// Envelope is the JSON shape returned to HTTP clients of the ask endpoint.
type Envelope struct {
	Success          bool                     `json:"success"`
	Message          string                   `json:"message"`
	Sale             map[string]interface{}   `json:"sale,omitempty"`
	Sales            []map[string]interface{} `json:"sales,omitempty"`
	UpdatedSales     []map[string]interface{} `json:"updatedSales,omitempty"`
	DeletedID        string                   `json:"deletedId,omitempty"`
	DeletedIDs       []string                 `json:"deletedIds,omitempty"`
	PendingAction    string                   `json:"pendingAction,omitempty"`
	MissingInfo      *MissingInfo             `json:"missingInfo,omitempty"`
	PotentialMatches *PotentialMatches        `json:"potentialMatches,omitempty"`
	Suggestion       string                   `json:"suggestion,omitempty"`
	Fallback         bool                     `json:"fallback,omitempty"`
	Error            string                   `json:"error,omitempty"`
}

type MissingInfo struct {
	Type     string `json:"type"`
	Question string `json:"question"`
}

type PotentialMatches struct {
	Products       []MatchPair `json:"products,omitempty"`
	Clients        []MatchPair `json:"clients,omitempty"`
	PaymentMethods []MatchPair `json:"paymentMethods,omitempty"`
}

type MatchPair struct {
	Original  string `json:"original"`
	Potential string `json:"potential"`
}

// Failure messages shown to users.
const (
	MessageTransport = "No pude conectarme con el asistente. Revisá tu conexión e intentá de nuevo."
	MessageMalformed = "No entendí la respuesta del asistente. ¿Podés repetirlo de otra forma?"
	MessageCanceled  = "La solicitud fue cancelada."
)

// FailureMessage returns the user-facing text for a failure reason.
func FailureMessage(reason FailureReason) string {
	switch reason {
	case ReasonTransport:
		return MessageTransport
	case ReasonCanceled:
		return MessageCanceled
	default:
		return MessageMalformed
	}
}

// NewEnvelope encodes r in the wire format.
func NewEnvelope(r *Response) Envelope {
	env := Envelope{Success: true, Message: r.Message, Fallback: r.Fallback}

	switch r.Kind {
	case KindCreate:
		if len(r.Records) > 0 {
			env.Sale = r.Records[0]
		}
	case KindCreateMany:
		env.Sales = r.Records
	case KindUpdate:
		env.UpdatedSales = r.Records
	case KindDeleteOne:
		if len(r.IDs) > 0 {
			env.DeletedID = r.IDs[0]
		}
	case KindDeleteMany:
		env.DeletedIDs = r.IDs
	case KindClarification:
		env.Success = false
		env.PendingAction = "request_clarification"
		if r.Clarification != nil {
			env.MissingInfo = &MissingInfo{Type: r.Clarification.Category, Question: r.Clarification.Question}
		}
	case KindEntityMatch:
		env.PendingAction = "confirm_entity_match"
		env.PotentialMatches = potentialMatches(r.Candidates)
	case KindSuggestion:
		env.PendingAction = "suggestion"
		env.Suggestion = r.Suggestion
	case KindFailure:
		env.Success = false
		if r.Failure != nil {
			env.Message = FailureMessage(r.Failure.Reason)
			env.Error = string(r.Failure.Reason)
		}
	}
	return env
}

func potentialMatches(cands []EntityCandidate) *PotentialMatches {
	pm := &PotentialMatches{}
	for _, c := range cands {
		pair := MatchPair{Original: c.Original, Potential: c.Canonical}
		switch c.Field {
		case domain.FieldProduct:
			pm.Products = append(pm.Products, pair)
		case domain.FieldClient:
			pm.Clients = append(pm.Clients, pair)
		case domain.FieldPaymentMethod:
			pm.PaymentMethods = append(pm.PaymentMethods, pair)
		}
	}
	return pm
}
