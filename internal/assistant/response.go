package assistant

import (
	"fmt"

	"github.com/dvloznov/perla/internal/domain"
)

// Kind tags the variant carried by a Response.
type Kind string

const (
	KindCreate         Kind = "create"
	KindCreateMany     Kind = "create_many"
	KindUpdate         Kind = "update"
	KindDeleteOne      Kind = "delete_one"
	KindDeleteMany     Kind = "delete_many"
	KindClarification  Kind = "clarification"
	KindEntityMatch    Kind = "entity_match"
	KindConversational Kind = "conversational"
	KindSuggestion     Kind = "suggestion"
	KindFailure        Kind = "failure"
)

// Clarification categories reported by the model.
const (
	CategoryProductDetails = "product_details"
	CategoryQuantity       = "quantity"
	CategoryPrice          = "price"
	CategoryOther          = "other"
)

// Response is the interpreted assistant reply. Exactly one payload matching
// Kind is set; Message carries the user-facing text for every kind.
type Response struct {
	Kind    Kind
	Message string

	// Records holds the raw, unvalidated sale objects for create,
	// create_many and update.
	Records []map[string]interface{}
	// IDs holds the sale ids for delete_one and delete_many.
	IDs []string

	Clarification *Clarification
	Candidates    []EntityCandidate
	Suggestion    string
	Failure       *Failure

	// Fallback is set when the reply was not JSON and Message is its raw text.
	Fallback bool
	// Recovered is set when the sale was rebuilt from the message text.
	Recovered bool
	// Endpoint names the provider endpoint that answered.
	Endpoint string
}

// Clarification is a question the model needs answered before acting.
type Clarification struct {
	Question string
	Category string
}

// EntityCandidate proposes replacing a value on new records with a similar
// value already present in the ledger.
type EntityCandidate struct {
	Field      domain.Field `json:"field"`
	Original   string       `json:"original"`
	Canonical  string       `json:"canonical"`
	Similarity float64      `json:"similarity"`
	// RecordIDs limits the change to these records. Empty means every
	// record whose field equals Original.
	RecordIDs []string `json:"recordIds,omitempty"`
}

// FailureReason classifies why no usable reply was obtained.
type FailureReason string

const (
	ReasonTransport FailureReason = "transport_error"
	ReasonMalformed FailureReason = "malformed_response"
	ReasonCanceled  FailureReason = "canceled"
)

// Failure describes a request that produced no usable reply.
type Failure struct {
	Reason FailureReason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func failure(reason FailureReason, err error) *Response {
	return &Response{
		Kind:    KindFailure,
		Failure: &Failure{Reason: reason, Err: err},
	}
}

// IsMutation reports whether the response changes the ledger.
func (r *Response) IsMutation() bool {
	switch r.Kind {
	case KindCreate, KindCreateMany, KindUpdate, KindDeleteOne, KindDeleteMany:
		return true
	}
	return false
}
