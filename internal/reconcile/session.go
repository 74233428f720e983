// Package reconcile applies assistant replies to a user's ledger and keeps
// the conversational state between requests.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/perla/internal/assistant"
	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/intent"
)

// DefaultTimeout bounds a single Submit call.
const DefaultTimeout = 30 * time.Second

var (
	// ErrBusy is returned when a request is already in flight for the session.
	ErrBusy = errors.New("a request is already in progress")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session is closed")
	// ErrEmptyInput is returned for blank input.
	ErrEmptyInput = errors.New("input is empty")
)

// Asker sends a conversation to the assistant.
type Asker interface {
	Ask(ctx context.Context, conv domain.Conversation, ledger []domain.SaleRecord, sel []string, opts ...assistant.AskOption) *assistant.Response
}

// Persister stores ledger changes. Calls are fire-and-forget: errors are
// logged and the in-memory ledger is never rolled back.
type Persister interface {
	UpsertSale(ctx context.Context, ownerID string, rec domain.SaleRecord) error
	DeleteSales(ctx context.Context, ownerID string, ids []string) error
}

// SuggestionSaver stores product feedback sent through the chat.
type SuggestionSaver interface {
	SaveSuggestion(ctx context.Context, ownerID, text string) error
}

// SessionConfig wires a Session. Gateway and Persister are required.
type SessionConfig struct {
	OwnerID     string
	Gateway     Asker
	Classifier  intent.Classifier
	Persister   Persister
	Suggestions SuggestionSaver
	Timeout     time.Duration
	Clock       func() time.Time
	Logger      zerolog.Logger
}

// Session is one user's conversation with the assistant over their ledger.
// Only one Submit runs at a time; accessors are safe for concurrent use.
type Session struct {
	ownerID     string
	asker       Asker
	classifier  intent.Classifier
	persister   Persister
	suggestions SuggestionSaver
	timeout     time.Duration
	now         func() time.Time
	log         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	busy   atomic.Bool

	mu        sync.RWMutex
	state     State
	conv      domain.Conversation
	ledger    []domain.SaleRecord
	selection domain.Selection
	pending   []assistant.EntityCandidate
}

// NewSession starts a session over initial, most recent sale first. The
// session ends when ctx is done or Close is called.
func NewSession(ctx context.Context, cfg SessionConfig, initial []domain.SaleRecord) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.NewSpanish()
	}

	sctx, cancel := context.WithCancel(ctx)
	ledger := make([]domain.SaleRecord, len(initial))
	copy(ledger, initial)

	return &Session{
		ownerID:     cfg.OwnerID,
		asker:       cfg.Gateway,
		classifier:  cfg.Classifier,
		persister:   cfg.Persister,
		suggestions: cfg.Suggestions,
		timeout:     cfg.Timeout,
		now:         cfg.Clock,
		log:         cfg.Logger.With().Str("owner_id", cfg.OwnerID).Logger(),
		ctx:         sctx,
		cancel:      cancel,
		ledger:      ledger,
	}
}

// Submit processes one user utterance. It returns ErrBusy immediately when
// another Submit is still running. Failures to reach or understand the
// assistant are reported as an OutcomeFailure, not as an error.
func (s *Session) Submit(ctx context.Context, input string) (*Outcome, error) {
	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	t := s.begin(input)
	out := s.handle(reqCtx, t)

	if out.Kind == OutcomeFailure {
		s.mu.RLock()
		out.State = s.state
		s.mu.RUnlock()
	} else {
		s.commit(t)
		out.State = t.state
	}
	outcomesTotal.WithLabelValues(string(out.Kind)).Inc()

	s.log.Info().
		Str("outcome", string(out.Kind)).
		Str("state", out.State.String()).
		Int("created", len(out.Created)).
		Int("updated", len(out.Updated)).
		Int("deleted", len(out.Deleted)).
		Msg("Request processed")
	return out, nil
}

func (s *Session) begin(input string) *turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger := make([]domain.SaleRecord, len(s.ledger))
	copy(ledger, s.ledger)
	pending := make([]assistant.EntityCandidate, len(s.pending))
	copy(pending, s.pending)

	return &turn{
		input:     input,
		state:     s.state,
		conv:      s.conv.Clone(),
		ledger:    ledger,
		selection: s.selection.IDs(),
		pending:   pending,
	}
}

func (s *Session) commit(t *turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = t.state
	s.conv = t.conv
	s.ledger = t.ledger
	s.pending = t.pending
	if t.clearSelection {
		s.selection.Clear()
	}
}

// State returns the current conversational state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ledger returns a copy of the ledger, most recent sale first.
func (s *Session) Ledger() []domain.SaleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SaleRecord, len(s.ledger))
	copy(out, s.ledger)
	return out
}

// Conversation returns a copy of the retained conversation.
func (s *Session) Conversation() domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conv.Clone()
}

// PendingMatches returns the candidates awaiting confirmation.
func (s *Session) PendingMatches() []assistant.EntityCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]assistant.EntityCandidate, len(s.pending))
	copy(out, s.pending)
	return out
}

// Selection returns the selected sale ids in selection order.
func (s *Session) Selection() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection.IDs()
}

// Select marks ids as the target of the next update or delete.
func (s *Session) Select(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.selection.Add(id)
	}
}

// Deselect unmarks ids.
func (s *Session) Deselect(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.selection.Remove(id)
	}
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Clear()
}

// Close cancels any in-flight request and rejects further ones.
func (s *Session) Close() {
	s.cancel()
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Session) handle(ctx context.Context, t *turn) *Outcome {
	switch t.state {
	case StateAwaitingMatchConfirmation:
		switch confirmation(t.input) {
		case answerYes:
			return s.applyPending(t)
		case answerNo:
			return s.discardPending(t)
		}
		// Anything else is a new request.
		t.reset()
	case StateAwaitingClarification:
		// The retained conversation carries the original request.
	default:
		t.conv = nil
	}

	sent := t.conv.With(domain.Turn{Role: domain.RoleUser, Content: t.input})
	resp := s.asker.Ask(ctx, sent, t.ledger, t.selection)
	return s.apply(t, sent, resp)
}

func (s *Session) apply(t *turn, sent domain.Conversation, resp *assistant.Response) *Outcome {
	switch resp.Kind {
	case assistant.KindFailure:
		return s.failed(resp)
	case assistant.KindCreate, assistant.KindCreateMany:
		return s.create(t, resp)
	case assistant.KindUpdate:
		return s.update(t, resp)
	case assistant.KindDeleteOne, assistant.KindDeleteMany:
		return s.remove(t, resp.IDs, orDefault(resp.Message, msgDeleted))
	case assistant.KindClarification:
		if out, ok := s.guardSelection(t, resp); ok {
			return out
		}
		return s.clarify(t, sent, resp)
	case assistant.KindEntityMatch:
		t.reset()
		t.state = StateAwaitingMatchConfirmation
		t.pending = resp.Candidates
		return &Outcome{
			Kind:       OutcomeMatchPending,
			Message:    orDefault(resp.Message, matchPrompt(resp.Candidates)),
			Candidates: resp.Candidates,
		}
	case assistant.KindSuggestion:
		t.reset()
		s.saveSuggestion(resp.Suggestion)
		return &Outcome{Kind: OutcomeSuggestion, Message: orDefault(resp.Message, msgSuggestion)}
	default:
		t.reset()
		return &Outcome{Kind: OutcomeConversational, Message: resp.Message}
	}
}

func (s *Session) failed(resp *assistant.Response) *Outcome {
	reason := assistant.ReasonMalformed
	if resp.Failure != nil {
		reason = resp.Failure.Reason
	}
	ev := s.log.Warn()
	if resp.Failure != nil {
		ev = ev.Err(resp.Failure.Err)
	}
	ev.Str("reason", string(reason)).Msg("Assistant request failed")
	return &Outcome{
		Kind:    OutcomeFailure,
		Message: assistant.FailureMessage(reason),
		Reason:  reason,
	}
}

func (s *Session) clarify(t *turn, sent domain.Conversation, resp *assistant.Response) *Outcome {
	question := resp.Message
	if resp.Clarification != nil && resp.Clarification.Question != "" {
		question = resp.Clarification.Question
	}
	t.state = StateAwaitingClarification
	t.pending = nil
	t.conv = sent.With(domain.Turn{Role: domain.RoleAssistant, Content: question})
	return &Outcome{
		Kind:     OutcomeClarification,
		Message:  orDefault(resp.Message, question),
		Question: question,
	}
}

// remove deletes ids that exist in the ledger.
func (s *Session) remove(t *turn, ids []string, message string) *Outcome {
	t.reset()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := make([]domain.SaleRecord, 0, len(t.ledger))
	var deleted []string
	for _, rec := range t.ledger {
		if drop[rec.ID] {
			deleted = append(deleted, rec.ID)
			continue
		}
		kept = append(kept, rec)
	}
	if len(deleted) == 0 {
		s.log.Warn().Strs("ids", ids).Msg("Delete refers to unknown sales")
		return &Outcome{Kind: OutcomeRejected, Message: msgSaleNotFound}
	}

	t.ledger = kept
	t.clearSelection = true
	s.persistDelete(deleted)
	return &Outcome{Kind: OutcomeDeleted, Message: message, Deleted: deleted}
}

func (s *Session) saveSuggestion(text string) {
	if s.suggestions == nil || text == "" {
		return
	}
	if err := s.suggestions.SaveSuggestion(s.ctx, s.ownerID, text); err != nil {
		s.log.Error().Err(err).Msg("Failed to save suggestion")
	}
}

func (s *Session) persistUpsert(recs ...domain.SaleRecord) {
	if s.persister == nil {
		return
	}
	for _, rec := range recs {
		if err := s.persister.UpsertSale(s.ctx, s.ownerID, rec); err != nil {
			s.log.Error().Err(err).Str("sale_id", rec.ID).Msg("Failed to persist sale")
		}
	}
}

func (s *Session) persistDelete(ids []string) {
	if s.persister == nil || len(ids) == 0 {
		return
	}
	if err := s.persister.DeleteSales(s.ctx, s.ownerID, ids); err != nil {
		s.log.Error().Err(err).Strs("ids", ids).Msg("Failed to persist deletion")
	}
}

type answer int

const (
	answerOther answer = iota
	answerYes
	answerNo
)

var (
	yesWords = map[string]bool{"si": true, "yes": true, "dale": true, "ok": true, "okay": true, "confirmo": true, "claro": true, "bueno": true}
	noWords  = map[string]bool{"no": true, "nop": true, "nah": true}
	fillers  = map[string]bool{"gracias": true, "por": true, "favor": true}
)

// confirmation classifies a reply to a match confirmation prompt. Every word
// must be an affirmative (or negative) word or a polite filler.
func confirmation(input string) answer {
	words := strings.Fields(normalizeReply(input))
	if len(words) == 0 {
		return answerOther
	}
	yes, no := 0, 0
	for _, w := range words {
		switch {
		case yesWords[w]:
			yes++
		case noWords[w]:
			no++
		case fillers[w]:
		default:
			return answerOther
		}
	}
	switch {
	case yes > 0 && no == 0:
		return answerYes
	case no > 0 && yes == 0:
		return answerNo
	}
	return answerOther
}
