package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
)

// DefaultPrefixes are the folio prefixes per kind.
var DefaultPrefixes = map[domain.Kind]string{
	domain.KindSale:     "VTA",
	domain.KindPurchase: "CMP",
	domain.KindTransfer: "TRF",
}

// Engine is the only mutator of document state and of the side-effects flag.
type Engine struct {
	Documents  DocumentStore
	Signatures SignatureStore
	Folios     FolioAllocator
	Stock      StockReader
	Dispatcher Dispatcher
	Archive    SignatureArchive
	Rules      Rules
	Prefixes   map[domain.Kind]string
	Now        func() time.Time
	Logger     *log.Logger
}

func New(store Store, dispatcher Dispatcher) Engine {
	return Engine{
		Documents:  store,
		Signatures: store,
		Folios:     store,
		Dispatcher: dispatcher,
		Rules:      DefaultRules(),
		Prefixes:   DefaultPrefixes,
		Now:        time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func (e Engine) ledger() Ledger {
	return Ledger{Store: e.Signatures, Archive: e.Archive, Now: e.Now}
}

// CreateOptions are the immutable business fields of a new document.
type CreateOptions struct {
	ID             string
	Kind           domain.Kind
	ProductID      string
	LocationID     string
	FromLocationID string
	ToLocationID   string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	DeliveryType   string
	PurchaseType   string
	PaymentMethod  string
	CounterpartyID string
	ActorID        string
}

func (e Engine) CreateDocument(ctx context.Context, tenantID string, opts CreateOptions) (domain.Document, error) {
	if strings.TrimSpace(tenantID) == "" {
		return domain.Document{}, errors.New("tenant is required")
	}
	if err := normalizeCreate(&opts); err != nil {
		return domain.Document{}, err
	}
	prefix := e.Prefixes[opts.Kind]
	if prefix == "" {
		prefix = DefaultPrefixes[opts.Kind]
	}
	folio, err := e.Folios.Next(ctx, tenantID, prefix)
	if err != nil {
		return domain.Document{}, fmt.Errorf("allocate folio: %w", err)
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := e.now().UTC().Format(time.RFC3339)
	doc := domain.Document{
		ID:             id,
		TenantID:       tenantID,
		Folio:          folio,
		Kind:           opts.Kind,
		State:          Initial(opts.Kind),
		ProductID:      opts.ProductID,
		LocationID:     opts.LocationID,
		FromLocationID: opts.FromLocationID,
		ToLocationID:   opts.ToLocationID,
		Quantity:       opts.Quantity,
		UnitPrice:      opts.UnitPrice,
		DeliveryType:   opts.DeliveryType,
		PurchaseType:   opts.PurchaseType,
		PaymentMethod:  opts.PaymentMethod,
		CounterpartyID: opts.CounterpartyID,
		CreatedBy:      opts.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = e.Documents.Insert(ctx, doc, domain.Transition{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		DocumentID: doc.ID,
		ToState:    doc.State,
		ActorID:    opts.ActorID,
		TS:         now,
	})
	if err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

func normalizeCreate(opts *CreateOptions) error {
	if !opts.Kind.Valid() {
		return invalidDocument("unknown kind %q", opts.Kind)
	}
	opts.ProductID = strings.TrimSpace(opts.ProductID)
	if opts.ProductID == "" {
		return invalidDocument("product_id is required")
	}
	if !opts.Quantity.IsPositive() {
		return invalidDocument("quantity must be positive")
	}
	if opts.UnitPrice.IsNegative() {
		return invalidDocument("unit_price must not be negative")
	}
	switch opts.PaymentMethod {
	case "":
		opts.PaymentMethod = domain.PaymentCredit
	case domain.PaymentCash, domain.PaymentCredit:
	default:
		return invalidDocument("unknown payment_method %q", opts.PaymentMethod)
	}
	switch opts.Kind {
	case domain.KindSale:
		if opts.LocationID == "" {
			return invalidDocument("location_id is required")
		}
		switch opts.DeliveryType {
		case "":
			opts.DeliveryType = domain.DeliveryShipping
		case domain.DeliveryPickup, domain.DeliveryShipping:
		default:
			return invalidDocument("unknown delivery_type %q", opts.DeliveryType)
		}
		opts.PurchaseType = ""
	case domain.KindPurchase:
		if opts.LocationID == "" {
			return invalidDocument("location_id is required")
		}
		switch opts.PurchaseType {
		case "":
			opts.PurchaseType = domain.PurchaseStandard
		case domain.PurchaseParcela, domain.PurchaseStandard:
		default:
			return invalidDocument("unknown purchase_type %q", opts.PurchaseType)
		}
		opts.DeliveryType = ""
	case domain.KindTransfer:
		if opts.FromLocationID == "" || opts.ToLocationID == "" {
			return invalidDocument("from_location_id and to_location_id are required")
		}
		if opts.FromLocationID == opts.ToLocationID {
			return invalidDocument("transfer locations must differ")
		}
		opts.LocationID = ""
		opts.DeliveryType = ""
		opts.PurchaseType = ""
		opts.UnitPrice = decimal.Zero
		opts.PaymentMethod = ""
	}
	return nil
}

// GetDocument loads a document with its signatures.
func (e Engine) GetDocument(ctx context.Context, tenantID, id string) (domain.Document, error) {
	doc, err := e.Documents.Load(ctx, tenantID, id)
	if err != nil {
		return domain.Document{}, err
	}
	sigs, err := e.Signatures.Signatures(ctx, tenantID, id)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Signatures = sigs
	return doc, nil
}

func (e Engine) ListDocuments(ctx context.Context, f DocumentFilter) ([]domain.Document, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, invalidDocument("unknown kind %q", f.Kind)
	}
	return e.Documents.List(ctx, f)
}

// History returns the transition audit of a document, oldest first.
func (e Engine) History(ctx context.Context, tenantID, id string) ([]domain.Transition, error) {
	if _, err := e.Documents.Load(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return e.Documents.Transitions(ctx, tenantID, id)
}

// CaptureSignature records role's signature on a live document.
func (e Engine) CaptureSignature(ctx context.Context, tenantID, documentID, role string, imageData []byte, actorID string) (domain.Signature, error) {
	doc, err := e.Documents.Load(ctx, tenantID, documentID)
	if err != nil {
		return domain.Signature{}, err
	}
	if IsTerminal(doc.Kind, doc.State) {
		return domain.Signature{}, fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, doc.Folio, doc.State)
	}
	role = strings.TrimSpace(role)
	if !e.Rules.RoleAllowed(doc.Kind, role) {
		return domain.Signature{}, fmt.Errorf("%w: %q cannot sign a %s", ErrInvalidRole, role, doc.Kind)
	}
	return e.ledger().Capture(ctx, tenantID, documentID, role, imageData, actorID)
}

type SignatureStatus struct {
	Target    domain.State `json:"target"`
	Required  []string     `json:"required"`
	Present   []string     `json:"present"`
	Missing   []string     `json:"missing"`
	Satisfied bool         `json:"satisfied"`
}

// SignatureStatus reports which roles gate entering target. An empty target
// means the kind's effect state.
func (e Engine) SignatureStatus(ctx context.Context, tenantID, id string, target domain.State) (SignatureStatus, error) {
	doc, err := e.GetDocument(ctx, tenantID, id)
	if err != nil {
		return SignatureStatus{}, err
	}
	if target == "" {
		target = EffectState(doc.Kind)
	}
	required := e.Rules.RequiredRoles(doc, target)
	status := SignatureStatus{
		Target:   target,
		Required: nonNil(required),
		Present:  []string{},
		Missing:  nonNil(missingRoles(required, doc.Signatures)),
	}
	for _, role := range required {
		if _, ok := doc.Signatures[role]; ok {
			status.Present = append(status.Present, role)
		}
	}
	status.Satisfied = len(status.Missing) == 0
	return status, nil
}

type TransitionOptions struct {
	ActorID string
}

// RequestTransition moves a document to target. Preconditions are checked in
// order (not found, terminal, adjacency, signatures, stock) before a single
// guarded write that also persists the instruction. Only the caller whose
// write lands notifies the dispatcher.
func (e Engine) RequestTransition(ctx context.Context, tenantID, documentID string, target domain.State, opts TransitionOptions) (domain.Document, error) {
	doc, err := e.Documents.Load(ctx, tenantID, documentID)
	if err != nil {
		return domain.Document{}, err
	}
	if IsTerminal(doc.Kind, doc.State) {
		return doc, fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, doc.Folio, doc.State)
	}
	if err := ValidateTransition(doc.Kind, doc.State, target); err != nil {
		return doc, err
	}
	if required := e.Rules.RequiredRoles(doc, target); len(required) > 0 {
		missing, err := e.ledger().Missing(ctx, tenantID, documentID, required)
		if err != nil {
			return doc, err
		}
		if len(missing) > 0 {
			return doc, &MissingSignaturesError{Target: target, Roles: missing}
		}
	}

	now := e.now().UTC().Format(time.RFC3339)
	var instruction *domain.Instruction
	if target == EffectState(doc.Kind) && !doc.SideEffectsApplied {
		in := instructionFor(doc, uuid.NewString(), now)
		if err := e.checkStock(ctx, tenantID, in); err != nil {
			return doc, err
		}
		instruction = &in
	}

	updated, err := e.Documents.CompareAndSwap(ctx, Swap{
		TenantID:           tenantID,
		DocumentID:         documentID,
		ExpectedState:      doc.State,
		ExpectedApplied:    doc.SideEffectsApplied,
		NewState:           target,
		SideEffectsApplied: doc.SideEffectsApplied || instruction != nil,
		UpdatedAt:          now,
		Audit: domain.Transition{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			DocumentID: documentID,
			FromState:  doc.State,
			ToState:    target,
			ActorID:    opts.ActorID,
			TS:         now,
		},
		Instruction: instruction,
	})
	if err != nil {
		return doc, err
	}
	if instruction != nil && e.Dispatcher != nil {
		if err := e.Dispatcher.Emit(context.WithoutCancel(ctx), *instruction); err != nil {
			e.logger().Printf("lifecycle: notify instruction %s for %s failed, left pending: %v", instruction.ID, doc.Folio, err)
		}
	}
	return updated, nil
}

func (e Engine) checkStock(ctx context.Context, tenantID string, in domain.Instruction) error {
	if e.Stock == nil {
		return nil
	}
	for _, d := range decreases(in) {
		available, err := e.Stock.Available(ctx, tenantID, d.ProductID, d.LocationID)
		if err != nil {
			return fmt.Errorf("read stock: %w", err)
		}
		if available.LessThan(d.Quantity) {
			return &InsufficientStockError{
				ProductID:  d.ProductID,
				LocationID: d.LocationID,
				Available:  available,
				Requested:  d.Quantity,
			}
		}
	}
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
