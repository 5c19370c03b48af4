package docflowsdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal docflow HTTP API client. Every request is scoped to
// TenantID through the X-Tenant-Id header.
type Client struct {
	BaseURL     string
	TenantID    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, tenantID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		TenantID: tenantID,
		Timeout:  10 * time.Second,
	}
}

// Document is the API document model. Quantities are decimal strings.
type Document struct {
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
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

// CreateDocument is the request body for creating a document.
type CreateDocument struct {
	ID             string `json:"id,omitempty"`
	Kind           string `json:"kind"`
	ProductID      string `json:"product_id"`
	LocationID     string `json:"location_id,omitempty"`
	FromLocationID string `json:"from_location_id,omitempty"`
	ToLocationID   string `json:"to_location_id,omitempty"`
	Quantity       string `json:"quantity"`
	UnitPrice      string `json:"unit_price,omitempty"`
	DeliveryType   string `json:"delivery_type,omitempty"`
	PurchaseType   string `json:"purchase_type,omitempty"`
	PaymentMethod  string `json:"payment_method,omitempty"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
}

type Transition struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	FromState  string `json:"from_state"`
	ToState    string `json:"to_state"`
	ActorID    string `json:"actor_id"`
	TS         string `json:"ts"`
}

type Signature struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Role        string `json:"role"`
	ContentType string `json:"content_type"`
	ImageRef    string `json:"image_ref,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	CapturedBy  string `json:"captured_by"`
	CapturedAt  string `json:"captured_at"`
}

// SignatureStatus lists the roles gating a target state.
type SignatureStatus struct {
	Target    string   `json:"target"`
	Required  []string `json:"required"`
	Present   []string `json:"present"`
	Missing   []string `json:"missing"`
	Satisfied bool     `json:"satisfied"`
}

type StockLevel struct {
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
	Quantity   string `json:"quantity"`
	UpdatedAt  string `json:"updated_at"`
}

type Instruction struct {
	Seq        int64  `json:"seq"`
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Folio      string `json:"folio"`
	Kind       string `json:"kind"`
	Inventory  []struct {
		Op         string `json:"op"`
		ProductID  string `json:"product_id"`
		LocationID string `json:"location_id"`
		Quantity   string `json:"quantity"`
	} `json:"inventory"`
	CashFlow *struct {
		Direction string `json:"direction"`
		Amount    string `json:"amount"`
		Concept   string `json:"concept"`
	} `json:"cash_flow,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	DeliveredAt string `json:"delivered_at,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses. Code and Details come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsCode reports whether err is an APIError with the given code, such as
// "missing_signatures" or "insufficient_stock".
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// PaginatedDocuments wraps list responses with cursors.
type PaginatedDocuments struct {
	Items      []Document `json:"items"`
	NextCursor string     `json:"next_cursor"`
}

type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

type PaginatedInstructions struct {
	Items      []Instruction `json:"items"`
	NextCursor string        `json:"next_cursor"`
}

// CreateDocument creates a document in its initial state.
func (c *Client) CreateDocument(ctx context.Context, in CreateDocument) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodPost, "documents", in, &resp)
	return resp, err
}

func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodGet, "documents/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListDocuments returns one page of documents, oldest first.
func (c *Client) ListDocuments(ctx context.Context, kind, state string, limit int, cursor string) (PaginatedDocuments, error) {
	q := url.Values{}
	setIf(q, "kind", kind)
	setIf(q, "state", state)
	setIf(q, "cursor", cursor)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp PaginatedDocuments
	err := c.do(ctx, http.MethodGet, withQuery("documents", q), nil, &resp)
	return resp, err
}

// Transition requests a move of document id to target.
func (c *Client) Transition(ctx context.Context, id, target string) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodPost, "documents/"+url.PathEscape(id)+"/transitions", map[string]string{"target": target}, &resp)
	return resp, err
}

func (c *Client) History(ctx context.Context, id string) ([]Transition, error) {
	var resp []Transition
	err := c.do(ctx, http.MethodGet, "documents/"+url.PathEscape(id)+"/transitions", nil, &resp)
	return resp, err
}

// CaptureSignature uploads a signature image for role.
func (c *Client) CaptureSignature(ctx context.Context, id, role string, image []byte) (Signature, error) {
	body := map[string]string{
		"role":  role,
		"image": base64.StdEncoding.EncodeToString(image),
	}
	var resp Signature
	err := c.do(ctx, http.MethodPost, "documents/"+url.PathEscape(id)+"/signatures", body, &resp)
	return resp, err
}

func (c *Client) Signatures(ctx context.Context, id string) ([]Signature, error) {
	var resp []Signature
	err := c.do(ctx, http.MethodGet, "documents/"+url.PathEscape(id)+"/signatures", nil, &resp)
	return resp, err
}

// SignatureStatus reports the roles gating target; an empty target asks
// about the kind's final state.
func (c *Client) SignatureStatus(ctx context.Context, id, target string) (SignatureStatus, error) {
	q := url.Values{}
	setIf(q, "target", target)
	var resp SignatureStatus
	err := c.do(ctx, http.MethodGet, withQuery("documents/"+url.PathEscape(id)+"/signature-status", q), nil, &resp)
	return resp, err
}

func (c *Client) Stock(ctx context.Context, productID string) ([]StockLevel, error) {
	q := url.Values{}
	setIf(q, "product_id", productID)
	var resp []StockLevel
	err := c.do(ctx, http.MethodGet, withQuery("stock", q), nil, &resp)
	return resp, err
}

func (c *Client) SetStock(ctx context.Context, productID, locationID, quantity string) (StockLevel, error) {
	body := map[string]string{"product_id": productID, "location_id": locationID, "quantity": quantity}
	var resp StockLevel
	err := c.do(ctx, http.MethodPut, "stock", body, &resp)
	return resp, err
}

// Instructions lists emitted instructions after seq.
func (c *Client) Instructions(ctx context.Context, status string, after int64, limit int) (PaginatedInstructions, error) {
	q := url.Values{}
	setIf(q, "status", status)
	if after > 0 {
		q.Set("after", strconv.FormatInt(after, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp PaginatedInstructions
	err := c.do(ctx, http.MethodGet, withQuery("instructions", q), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns events newest first; cursor is the previous page's next_cursor.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	setIf(q, "before", cursor)
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.TenantID != "" {
		req.Header.Set("X-Tenant-Id", c.TenantID)
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}
