package domain

import "github.com/shopspring/decimal"

type Kind string

const (
	KindSale     Kind = "sale"
	KindPurchase Kind = "purchase"
	KindTransfer Kind = "transfer"
)

// Kinds lists every document kind in a stable order.
var Kinds = []Kind{KindSale, KindPurchase, KindTransfer}

func (k Kind) Valid() bool {
	switch k {
	case KindSale, KindPurchase, KindTransfer:
		return true
	}
	return false
}

type State string

const (
	StatePending    State = "pending"
	StatePreparing  State = "preparing"
	StateInTransit  State = "in_transit"
	StateDelivered  State = "delivered"
	StateDispatched State = "dispatched"
	StateLoading    State = "loading"
	StateReturning  State = "returning"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
)

// Signer roles.
const (
	RoleCliente   = "cliente"
	RoleConductor = "conductor"
	RoleEncargado = "encargado"
	RoleProveedor = "proveedor"
)

// Sale delivery types.
const (
	DeliveryPickup   = "pickup"
	DeliveryShipping = "delivery"
)

// Purchase types. A parcela purchase is collected in the field.
const (
	PurchaseParcela  = "parcela"
	PurchaseStandard = "standard"
)

const (
	PaymentCash   = "cash"
	PaymentCredit = "credit"
)

type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Document struct {
	ID                 string               `json:"id"`
	TenantID           string               `json:"tenant_id"`
	Folio              string               `json:"folio"`
	Kind               Kind                 `json:"kind"`
	State              State                `json:"state"`
	ProductID          string               `json:"product_id"`
	LocationID         string               `json:"location_id,omitempty"`
	FromLocationID     string               `json:"from_location_id,omitempty"`
	ToLocationID       string               `json:"to_location_id,omitempty"`
	Quantity           decimal.Decimal      `json:"quantity"`
	UnitPrice          decimal.Decimal      `json:"unit_price"`
	DeliveryType       string               `json:"delivery_type,omitempty"`
	PurchaseType       string               `json:"purchase_type,omitempty"`
	PaymentMethod      string               `json:"payment_method,omitempty"`
	CounterpartyID     string               `json:"counterparty_id,omitempty"`
	Signatures         map[string]Signature `json:"signatures,omitempty"`
	SideEffectsApplied bool                 `json:"side_effects_applied"`
	CreatedBy          string               `json:"created_by"`
	CreatedAt          string               `json:"created_at" format:"date-time"`
	UpdatedAt          string               `json:"updated_at" format:"date-time"`
}

// Variant selects the row of the signature requirement table that applies.
func (d Document) Variant() string {
	switch d.Kind {
	case KindSale:
		return d.DeliveryType
	case KindPurchase:
		return d.PurchaseType
	}
	return ""
}

// Total is quantity times unit price.
func (d Document) Total() decimal.Decimal {
	return d.Quantity.Mul(d.UnitPrice)
}

type Signature struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	DocumentID  string `json:"document_id"`
	Role        string `json:"role"`
	ImageData   []byte `json:"-"`
	ContentType string `json:"content_type"`
	ImageRef    string `json:"image_ref,omitempty"`
	CapturedBy  string `json:"captured_by"`
	CapturedAt  string `json:"captured_at" format:"date-time"`
}

// Transition is an append-only audit record. FromState is empty for the
// creation record.
type Transition struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	DocumentID string `json:"document_id"`
	FromState  State  `json:"from_state"`
	ToState    State  `json:"to_state"`
	ActorID    string `json:"actor_id"`
	TS         string `json:"ts" format:"date-time"`
}

const (
	OpDecrease = "decrease"
	OpIncrease = "increase"

	CashIn  = "in"
	CashOut = "out"
)

type InventoryDelta struct {
	Op         string          `json:"op"`
	ProductID  string          `json:"product_id"`
	LocationID string          `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

type CashFlowEntry struct {
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Concept   string          `json:"concept"`
}

// Instruction is the single side effect emitted when a document reaches its
// effect-bearing terminal state. All deltas apply together or not at all.
type Instruction struct {
	ID         string           `json:"id"`
	TenantID   string           `json:"tenant_id"`
	DocumentID string           `json:"document_id"`
	Folio      string           `json:"folio"`
	Kind       Kind             `json:"kind"`
	Inventory  []InventoryDelta `json:"inventory"`
	CashFlow   *CashFlowEntry   `json:"cash_flow,omitempty"`
	CreatedAt  string           `json:"created_at" format:"date-time"`
}

// OutboxEntry is an emitted instruction awaiting relay.
type OutboxEntry struct {
	Seq         int64       `json:"seq"`
	Instruction Instruction `json:"instruction"`
	Status      string      `json:"status" enum:"pending,delivered"`
	DeliveredAt string      `json:"delivered_at,omitempty" format:"date-time"`
}

type StockLevel struct {
	TenantID   string          `json:"tenant_id"`
	ProductID  string          `json:"product_id"`
	LocationID string          `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UpdatedAt  string          `json:"updated_at" format:"date-time"`
}

type CashMovement struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	InstructionID string          `json:"instruction_id"`
	DocumentID    string          `json:"document_id"`
	Direction     string          `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	Concept       string          `json:"concept"`
	CreatedAt     string          `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	TenantID   string `json:"tenant_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Name       string `json:"name,omitempty"`
	KeyHash    string `json:"-"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	LastUsedAt string `json:"last_used_at,omitempty"`
}

type ActorProfile struct {
	TenantID    string   `json:"tenant_id"`
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}
