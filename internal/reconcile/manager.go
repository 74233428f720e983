package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/perla/internal/domain"
)

// Loader reads an owner's stored ledger when their session starts.
type Loader interface {
	ListSales(ctx context.Context, ownerID string) ([]domain.SaleRecord, error)
}

// Manager keeps one Session per owner, created on first use.
type Manager struct {
	ctx    context.Context
	base   SessionConfig
	loader Loader

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager. base is copied for every session with its
// OwnerID replaced. Sessions end when ctx is done.
func NewManager(ctx context.Context, base SessionConfig, loader Loader) *Manager {
	return &Manager{
		ctx:      ctx,
		base:     base,
		loader:   loader,
		sessions: make(map[string]*Session),
	}
}

// Get returns the owner's session, loading their ledger the first time.
// A closed session is replaced. The ledger is loaded without holding the
// manager lock, so a slow store only delays that owner.
func (m *Manager) Get(ctx context.Context, ownerID string) (*Session, error) {
	if s := m.live(ownerID); s != nil {
		return s, nil
	}

	var initial []domain.SaleRecord
	if m.loader != nil {
		sales, err := m.loader.ListSales(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("Manager.Get: loading ledger for %s: %w", ownerID, err)
		}
		initial = sales
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another Get may have finished loading first.
	if s, ok := m.sessions[ownerID]; ok && s.ctx.Err() == nil {
		return s, nil
	}

	cfg := m.base
	cfg.OwnerID = ownerID
	s := NewSession(m.ctx, cfg, initial)
	m.sessions[ownerID] = s
	return s, nil
}

func (m *Manager) live(ownerID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[ownerID]; ok && s.ctx.Err() == nil {
		return s
	}
	return nil
}

// Close ends the owner's session, if any.
func (m *Manager) Close(ownerID string) {
	m.mu.Lock()
	s, ok := m.sessions[ownerID]
	delete(m.sessions, ownerID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
