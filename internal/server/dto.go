package server

import (
	"encoding/json"
	"sort"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
)

// Requests carry quantities as decimal strings.

type CreateDocumentRequest struct {
	ID             string `json:"id,omitempty"`
	Kind           string `json:"kind" enum:"sale,purchase,transfer"`
	ProductID      string `json:"product_id"`
	LocationID     string `json:"location_id,omitempty"`
	FromLocationID string `json:"from_location_id,omitempty"`
	ToLocationID   string `json:"to_location_id,omitempty"`
	Quantity       string `json:"quantity" example:"12.5"`
	UnitPrice      string `json:"unit_price,omitempty" example:"3.10"`
	DeliveryType   string `json:"delivery_type,omitempty" enum:"pickup,delivery"`
	PurchaseType   string `json:"purchase_type,omitempty" enum:"standard,parcela"`
	PaymentMethod  string `json:"payment_method,omitempty" enum:"cash,credit"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
}

type TransitionRequest struct {
	Target string `json:"target" example:"delivered"`
}

type CaptureSignatureRequest struct {
	Role string `json:"role" example:"cliente"`
	// Image is a data URL or bare base64 of a PNG/JPEG/GIF/WebP.
	Image string `json:"image"`
}

type SetStockRequest struct {
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
	Quantity   string `json:"quantity" example:"100"`
}

type DevLoginRequest struct {
	ActorID     string   `json:"actor_id"`
	TenantID    string   `json:"tenant_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type DocumentResponse struct {
	ID                 string   `json:"id"`
	TenantID           string   `json:"tenant_id"`
	Folio              string   `json:"folio"`
	Kind               string   `json:"kind"`
	State              string   `json:"state"`
	ProductID          string   `json:"product_id"`
	LocationID         string   `json:"location_id,omitempty"`
	FromLocationID     string   `json:"from_location_id,omitempty"`
	ToLocationID       string   `json:"to_location_id,omitempty"`
	Quantity           string   `json:"quantity"`
	UnitPrice          string   `json:"unit_price"`
	Total              string   `json:"total"`
	DeliveryType       string   `json:"delivery_type,omitempty"`
	PurchaseType       string   `json:"purchase_type,omitempty"`
	PaymentMethod      string   `json:"payment_method,omitempty"`
	CounterpartyID     string   `json:"counterparty_id,omitempty"`
	SignedBy           []string `json:"signed_by"`
	SideEffectsApplied bool     `json:"side_effects_applied"`
	NextStates         []string `json:"next_states"`
	CreatedBy          string   `json:"created_by"`
	CreatedAt          string   `json:"created_at" format:"date-time"`
	UpdatedAt          string   `json:"updated_at" format:"date-time"`
}

type SignatureResponse struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Role        string `json:"role"`
	ContentType string `json:"content_type"`
	ImageRef    string `json:"image_ref,omitempty"`
	DownloadURL string `json:"download_url,omitempty" doc:"Presigned link to the archived image"`
	CapturedBy  string `json:"captured_by"`
	CapturedAt  string `json:"captured_at" format:"date-time"`
}

type StockResponse struct {
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
	Quantity   string `json:"quantity"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

type DeltaResponse struct {
	Op         string `json:"op" enum:"increase,decrease"`
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
	Quantity   string `json:"quantity"`
}

type CashFlowResponse struct {
	Direction string `json:"direction" enum:"in,out"`
	Amount    string `json:"amount"`
	Concept   string `json:"concept"`
}

type InstructionResponse struct {
	Seq         int64             `json:"seq"`
	ID          string            `json:"id"`
	DocumentID  string            `json:"document_id"`
	Folio       string            `json:"folio"`
	Kind        string            `json:"kind"`
	Inventory   []DeltaResponse   `json:"inventory"`
	CashFlow    *CashFlowResponse `json:"cash_flow,omitempty"`
	Status      string            `json:"status" enum:"pending,delivered"`
	CreatedAt   string            `json:"created_at" format:"date-time"`
	DeliveredAt string            `json:"delivered_at,omitempty" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	TenantID    string   `json:"tenant_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Source      string   `json:"source"`
}

type paginatedDocuments struct {
	Items      []DocumentResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

type paginatedInstructions struct {
	Items      []InstructionResponse `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func documentResponse(d domain.Document) DocumentResponse {
	signed := make([]string, 0, len(d.Signatures))
	for role := range d.Signatures {
		signed = append(signed, role)
	}
	sort.Strings(signed)
	next := []string{}
	if !lifecycle.IsTerminal(d.Kind, d.State) {
		for _, s := range lifecycle.NextStates(d.Kind, d.State) {
			next = append(next, string(s))
		}
	}
	return DocumentResponse{
		ID:                 d.ID,
		TenantID:           d.TenantID,
		Folio:              d.Folio,
		Kind:               string(d.Kind),
		State:              string(d.State),
		ProductID:          d.ProductID,
		LocationID:         d.LocationID,
		FromLocationID:     d.FromLocationID,
		ToLocationID:       d.ToLocationID,
		Quantity:           d.Quantity.String(),
		UnitPrice:          d.UnitPrice.String(),
		Total:              d.Total().String(),
		DeliveryType:       d.DeliveryType,
		PurchaseType:       d.PurchaseType,
		PaymentMethod:      d.PaymentMethod,
		CounterpartyID:     d.CounterpartyID,
		SignedBy:           signed,
		SideEffectsApplied: d.SideEffectsApplied,
		NextStates:         next,
		CreatedBy:          d.CreatedBy,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func signatureResponse(s domain.Signature) SignatureResponse {
	return SignatureResponse{
		ID:          s.ID,
		DocumentID:  s.DocumentID,
		Role:        s.Role,
		ContentType: s.ContentType,
		ImageRef:    s.ImageRef,
		CapturedBy:  s.CapturedBy,
		CapturedAt:  s.CapturedAt,
	}
}

func stockResponse(l domain.StockLevel) StockResponse {
	return StockResponse{ProductID: l.ProductID, LocationID: l.LocationID, Quantity: l.Quantity.String(), UpdatedAt: l.UpdatedAt}
}

func instructionResponse(e domain.OutboxEntry) InstructionResponse {
	in := e.Instruction
	res := InstructionResponse{
		Seq:         e.Seq,
		ID:          in.ID,
		DocumentID:  in.DocumentID,
		Folio:       in.Folio,
		Kind:        string(in.Kind),
		Inventory:   make([]DeltaResponse, 0, len(in.Inventory)),
		Status:      e.Status,
		CreatedAt:   in.CreatedAt,
		DeliveredAt: e.DeliveredAt,
	}
	for _, d := range in.Inventory {
		res.Inventory = append(res.Inventory, DeltaResponse{Op: d.Op, ProductID: d.ProductID, LocationID: d.LocationID, Quantity: d.Quantity.String()})
	}
	if cf := in.CashFlow; cf != nil {
		res.CashFlow = &CashFlowResponse{Direction: cf.Direction, Amount: cf.Amount.String(), Concept: cf.Concept}
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		TenantID:   e.TenantID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
