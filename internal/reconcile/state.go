package reconcile

import (
	"fmt"

	"github.com/dvloznov/perla/internal/assistant"
	"github.com/dvloznov/perla/internal/domain"
)

// State is the conversational state of a Session.
type State int

const (
	StateIdle State = iota
	StateAwaitingClarification
	StateAwaitingMatchConfirmation
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingClarification:
		return "awaiting_clarification"
	case StateAwaitingMatchConfirmation:
		return "awaiting_match_confirmation"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// OutcomeKind describes what a Submit call did.
type OutcomeKind string

const (
	OutcomeCreated        OutcomeKind = "created"
	OutcomeUpdated        OutcomeKind = "updated"
	OutcomeDeleted        OutcomeKind = "deleted"
	OutcomeClarification  OutcomeKind = "clarification"
	OutcomeMatchPending   OutcomeKind = "match_pending"
	OutcomeMatchApplied   OutcomeKind = "match_applied"
	OutcomeMatchDiscarded OutcomeKind = "match_discarded"
	OutcomeConversational OutcomeKind = "conversational"
	OutcomeSuggestion     OutcomeKind = "suggestion"
	// OutcomeRejected means the assistant's answer could not be applied, for
	// example a sale failed validation. Nothing was changed.
	OutcomeRejected OutcomeKind = "rejected"
	// OutcomeFailure means no usable answer was obtained. Nothing was changed.
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome reports the effect of one Submit call.
type Outcome struct {
	Kind       OutcomeKind                 `json:"kind"`
	State      State                       `json:"state"`
	Message    string                      `json:"message"`
	Created    []domain.SaleRecord         `json:"created,omitempty"`
	Updated    []domain.SaleRecord         `json:"updated,omitempty"`
	Deleted    []string                    `json:"deleted,omitempty"`
	Candidates []assistant.EntityCandidate `json:"candidates,omitempty"`
	Question   string                      `json:"question,omitempty"`
	// Reason is set for OutcomeFailure.
	Reason assistant.FailureReason `json:"reason,omitempty"`
}

// turn is the working copy of session state for one request. It is
// committed only when the request did not fail.
type turn struct {
	input     string
	state     State
	conv      domain.Conversation
	ledger    []domain.SaleRecord
	selection []string
	pending   []assistant.EntityCandidate

	clearSelection bool
}

func (t *turn) indexOf(id string) int {
	for i, s := range t.ledger {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (t *turn) reset() {
	t.state = StateIdle
	t.conv = nil
	t.pending = nil
}
