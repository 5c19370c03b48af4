// Package memory is an in-process lifecycle store for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
)

type docKey struct {
	TenantID string
	ID       string
}

type stockKey struct {
	TenantID   string
	ProductID  string
	LocationID string
}

// Store guards every map with one mutex, so each method is a single atomic
// step: CompareAndSwap checks and writes under the same lock.
type Store struct {
	FolioWidth int

	mu         sync.RWMutex
	documents  map[docKey]domain.Document
	audit      map[docKey][]domain.Transition
	signatures map[docKey]map[string]domain.Signature
	counters   map[string]int64
	stock      map[stockKey]decimal.Decimal
	pending    []domain.Instruction
}

var (
	_ lifecycle.Store         = (*Store)(nil)
	_ lifecycle.StockReader   = (*Store)(nil)
	_ lifecycle.PendingOutbox = (*Store)(nil)
)

func New() *Store {
	return &Store{
		documents:  make(map[docKey]domain.Document),
		audit:      make(map[docKey][]domain.Transition),
		signatures: make(map[docKey]map[string]domain.Signature),
		counters:   make(map[string]int64),
		stock:      make(map[stockKey]decimal.Decimal),
	}
}

func (s *Store) Load(_ context.Context, tenantID, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[docKey{tenantID, id}]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", lifecycle.ErrNotFound, id)
	}
	return doc, nil
}

func (s *Store) Insert(_ context.Context, doc domain.Document, created domain.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := docKey{doc.TenantID, doc.ID}
	if _, ok := s.documents[k]; ok {
		return fmt.Errorf("%w: document %s already exists", lifecycle.ErrInvalidDocument, doc.ID)
	}
	doc.Signatures = nil
	s.documents[k] = doc
	s.audit[k] = append(s.audit[k], created)
	return nil
}

func (s *Store) CompareAndSwap(_ context.Context, sw lifecycle.Swap) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := docKey{sw.TenantID, sw.DocumentID}
	doc, ok := s.documents[k]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", lifecycle.ErrNotFound, sw.DocumentID)
	}
	if doc.State != sw.ExpectedState || doc.SideEffectsApplied != sw.ExpectedApplied {
		return domain.Document{}, fmt.Errorf("%w: %s changed underneath", lifecycle.ErrConcurrentModification, sw.DocumentID)
	}
	doc.State = sw.NewState
	doc.SideEffectsApplied = sw.SideEffectsApplied
	if sw.UpdatedAt != "" {
		doc.UpdatedAt = sw.UpdatedAt
	}
	s.documents[k] = doc
	s.audit[k] = append(s.audit[k], sw.Audit)
	if sw.Instruction != nil {
		s.pending = append(s.pending, *sw.Instruction)
	}
	return doc, nil
}

// PendingInstructions returns up to limit committed instructions that have
// not been forwarded yet, oldest first.
func (s *Store) PendingInstructions(_ context.Context, limit int) ([]domain.Instruction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.pending)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]domain.Instruction, n)
	copy(out, s.pending[:n])
	return out, nil
}

func (s *Store) MarkForwarded(_ context.Context, in domain.Instruction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p.ID == in.ID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) AppendAudit(_ context.Context, rec domain.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := docKey{rec.TenantID, rec.DocumentID}
	s.audit[k] = append(s.audit[k], rec)
	return nil
}

func (s *Store) Transitions(_ context.Context, tenantID, documentID string) ([]domain.Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.audit[docKey{tenantID, documentID}]
	out := make([]domain.Transition, len(recs))
	copy(out, recs)
	return out, nil
}

func (s *Store) List(_ context.Context, f lifecycle.DocumentFilter) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Document
	for k, doc := range s.documents {
		if k.TenantID != f.TenantID {
			continue
		}
		if f.Kind != "" && doc.Kind != f.Kind {
			continue
		}
		if f.State != "" && doc.State != f.State {
			continue
		}
		if f.CursorID != "" && !after(doc, f.CursorCreatedAt, f.CursorID) {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func after(doc domain.Document, createdAt, id string) bool {
	if doc.CreatedAt != createdAt {
		return doc.CreatedAt > createdAt
	}
	return doc.ID > id
}

func (s *Store) InsertIfAbsent(_ context.Context, sig domain.Signature) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := docKey{sig.TenantID, sig.DocumentID}
	roles, ok := s.signatures[k]
	if !ok {
		roles = make(map[string]domain.Signature)
		s.signatures[k] = roles
	}
	if _, exists := roles[sig.Role]; exists {
		return false, nil
	}
	roles[sig.Role] = sig
	return true, nil
}

func (s *Store) Signatures(_ context.Context, tenantID, documentID string) (map[string]domain.Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Signature, len(s.signatures[docKey{tenantID, documentID}]))
	for role, sig := range s.signatures[docKey{tenantID, documentID}] {
		out[role] = sig
	}
	return out, nil
}

func (s *Store) Next(_ context.Context, tenantID, prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tenantID + "\x00" + prefix
	s.counters[k]++
	return lifecycle.FormatFolio(prefix, s.counters[k], s.FolioWidth), nil
}

func (s *Store) Available(_ context.Context, tenantID, productID, locationID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stock[stockKey{tenantID, productID, locationID}], nil
}

// SetStock overwrites the on-hand quantity of a product at a location. The
// memory stock only answers availability checks; applied instructions move
// the SQLite stock ledger.
func (s *Store) SetStock(tenantID, productID, locationID string, qty decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[stockKey{tenantID, productID, locationID}] = qty
}
