package lifecycle

//go:generate mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
)

// Swap is a guarded state change. The store applies it only when the stored
// document still has ExpectedState and ExpectedApplied. State, flag, audit
// record and Instruction (when set) are written together or not at all.
type Swap struct {
	TenantID           string
	DocumentID         string
	ExpectedState      domain.State
	ExpectedApplied    bool
	NewState           domain.State
	SideEffectsApplied bool
	UpdatedAt          string
	Audit              domain.Transition
	Instruction        *domain.Instruction
}

type DocumentFilter struct {
	TenantID string
	Kind     domain.Kind
	State    domain.State
	Limit    int
	// Cursor resumes after the (created_at, id) pair of the last row.
	CursorCreatedAt string
	CursorID        string
}

// DocumentStore persists documents and their transition audit. Load and
// CompareAndSwap return ErrNotFound for documents outside the tenant;
// CompareAndSwap returns ErrConcurrentModification when the guard fails.
// Insert writes the document and its creation record atomically.
type DocumentStore interface {
	Load(ctx context.Context, tenantID, id string) (domain.Document, error)
	Insert(ctx context.Context, doc domain.Document, created domain.Transition) error
	CompareAndSwap(ctx context.Context, s Swap) (domain.Document, error)
	AppendAudit(ctx context.Context, rec domain.Transition) error
	Transitions(ctx context.Context, tenantID, documentID string) ([]domain.Transition, error)
	List(ctx context.Context, f DocumentFilter) ([]domain.Document, error)
}

// SignatureStore holds at most one signature per (document, role).
// InsertIfAbsent reports false, without error, when the pair already exists.
type SignatureStore interface {
	InsertIfAbsent(ctx context.Context, sig domain.Signature) (bool, error)
	Signatures(ctx context.Context, tenantID, documentID string) (map[string]domain.Signature, error)
}

// FolioAllocator yields unique, increasing folios per (tenant, prefix).
type FolioAllocator interface {
	Next(ctx context.Context, tenantID, prefix string) (string, error)
}

// StockReader answers the availability precondition for inventory decreases.
type StockReader interface {
	Available(ctx context.Context, tenantID, productID, locationID string) (decimal.Decimal, error)
}

// Dispatcher is notified after a swap carrying an instruction commits. The
// instruction is already durable in the document store by then; a failed
// Emit only delays delivery.
type Dispatcher interface {
	Emit(ctx context.Context, in domain.Instruction) error
}

// PendingOutbox is implemented by document stores that keep committed
// instructions next to the documents until they are forwarded to the relay
// outbox. Instructions come back in commit order.
type PendingOutbox interface {
	PendingInstructions(ctx context.Context, limit int) ([]domain.Instruction, error)
	MarkForwarded(ctx context.Context, in domain.Instruction) error
}

// SignatureArchive stores signature images outside the signature store.
type SignatureArchive interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Store is the persistence surface one backend provides.
type Store interface {
	DocumentStore
	SignatureStore
	FolioAllocator
}
