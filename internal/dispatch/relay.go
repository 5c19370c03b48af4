package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/shopspring/decimal"

	"github.com/ikhode/erp-modular-sub001/internal/config"
	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/repo"
)

const (
	defaultInterval = 2 * time.Second
	defaultTimeout  = 5 * time.Second
	defaultBatch    = 100
)

// Source is the outbox and inventory ledger the relay drains.
type Source interface {
	ListInstructions(ctx context.Context, f repo.OutboxFilter) ([]domain.OutboxEntry, error)
	ApplyInstruction(ctx context.Context, in domain.Instruction) (bool, error)
	Available(ctx context.Context, tenantID, productID, locationID string) (decimal.Decimal, error)
	MarkDelivered(ctx context.Context, in domain.Instruction) error
	RecordFailure(ctx context.Context, id string, cause error) error
}

// Forwarder moves instructions a document store committed into the relay
// outbox.
type Forwarder interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

// Relay moves pending instructions out of the outbox in emission order. Each
// pass first forwards instructions still held by the document store, then
// books unapplied instructions on the inventory ledger (when ApplyInventory
// is set), then posts pending ones to every matching webhook and marks them
// delivered. Ordering holds per tenant: a failure holds back that tenant's
// later instructions and leaves other tenants moving.
type Relay struct {
	Source         Source
	Forwarder      Forwarder
	Webhooks       []config.Webhook
	Interval       time.Duration
	Batch          int
	ApplyInventory bool
	Client         *http.Client
	Logger         *log.Logger

	wake chan struct{}
}

// NewRelay builds a relay from the relay and webhooks config sections.
func NewRelay(src Source, cfg *config.Config) *Relay {
	r := &Relay{
		Source:         src,
		Client:         &http.Client{Timeout: defaultTimeout},
		ApplyInventory: true,
		wake:           make(chan struct{}, 1),
	}
	if cfg != nil {
		r.Webhooks = cfg.Webhooks
		r.Interval = time.Duration(cfg.Relay.IntervalSeconds) * time.Second
		r.Batch = cfg.Relay.Batch
		r.ApplyInventory = cfg.Relay.InventoryEnabled()
	}
	return r
}

// Notify asks a running relay to drain now rather than at the next tick.
func (r *Relay) Notify() {
	if r.wake == nil {
		return
	}
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Relay) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// Start runs the relay in the background until ctx is done.
func (r *Relay) Start(ctx context.Context) {
	go r.Run(ctx)
}

// Run drains the outbox every Interval until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger().Printf("relay: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

// RunOnce relays one batch and reports how many instructions were delivered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	batch := r.Batch
	if batch <= 0 {
		batch = defaultBatch
	}
	var errs []error
	if r.Forwarder != nil {
		if _, err := r.Forwarder.Sweep(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	if r.ApplyInventory {
		if err := r.applyPending(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	entries, err := r.Source.ListInstructions(ctx, repo.OutboxFilter{Status: repo.OutboxPending, Limit: batch})
	if err != nil {
		errs = append(errs, fmt.Errorf("fetch pending instructions: %w", err))
		return 0, errors.Join(errs...)
	}
	held := map[string]bool{}
	delivered := 0
	for _, e := range entries {
		in := e.Instruction
		if held[in.TenantID] {
			continue
		}
		if err := r.deliver(ctx, in); err != nil {
			held[in.TenantID] = true
			if rerr := r.Source.RecordFailure(ctx, in.ID, err); rerr != nil {
				r.logger().Printf("relay: record failure for %s: %v", in.ID, rerr)
			}
			errs = append(errs, fmt.Errorf("instruction %s: %w", in.ID, err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// applyPending books pending, unapplied instructions on the stock ledger in
// emission order, whatever the state of webhook delivery.
func (r *Relay) applyPending(ctx context.Context, batch int) error {
	entries, err := r.Source.ListInstructions(ctx, repo.OutboxFilter{Status: repo.OutboxPending, Unapplied: true, Limit: batch})
	if err != nil {
		return fmt.Errorf("fetch unapplied instructions: %w", err)
	}
	var errs []error
	held := map[string]bool{}
	for _, e := range entries {
		in := e.Instruction
		if held[in.TenantID] {
			continue
		}
		if err := r.apply(ctx, in); err != nil {
			held[in.TenantID] = true
			errs = append(errs, fmt.Errorf("instruction %s: %w", in.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Relay) apply(ctx context.Context, in domain.Instruction) error {
	applied, err := r.Source.ApplyInstruction(ctx, in)
	if err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	if applied {
		r.warnNegative(ctx, in)
	}
	return nil
}

func (r *Relay) deliver(ctx context.Context, in domain.Instruction) error {
	if r.ApplyInventory {
		if err := r.apply(ctx, in); err != nil {
			return err
		}
	}
	for _, hook := range r.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" || !kindFilter(hook.Kinds).match(in.Kind) {
			continue
		}
		if err := r.post(ctx, hook, in); err != nil {
			return fmt.Errorf("deliver to %s: %w", hook.URL, err)
		}
	}
	return r.Source.MarkDelivered(ctx, in)
}

// warnNegative logs decreases that left stock below zero. The engine checks
// availability before emitting, so this only happens when stock moved
// between the check and the relay.
func (r *Relay) warnNegative(ctx context.Context, in domain.Instruction) {
	for _, d := range in.Inventory {
		if d.Op != domain.OpDecrease {
			continue
		}
		qty, err := r.Source.Available(ctx, in.TenantID, d.ProductID, d.LocationID)
		if err != nil {
			r.logger().Printf("relay: read stock after %s: %v", in.ID, err)
			continue
		}
		if qty.IsNegative() {
			r.logger().Printf("relay: %s left %s/%s at %s", in.Folio, d.ProductID, d.LocationID, qty)
		}
	}
}

type kinds struct {
	all bool
	set mapset.Set[string]
}

func kindFilter(list []string) kinds {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, k := range list {
		if k = strings.TrimSpace(k); k != "" {
			set.Add(k)
		}
	}
	return kinds{all: set.Cardinality() == 0, set: set}
}

func (k kinds) match(kind domain.Kind) bool {
	return k.all || k.set.Contains(string(kind))
}

// Webhook headers.
const (
	HeaderEvent     = "X-Docflow-Event"
	HeaderDelivery  = "X-Docflow-Delivery"
	HeaderTenant    = "X-Docflow-Tenant"
	HeaderSignature = "X-Docflow-Signature"
)

// Sign returns the hex HMAC-SHA256 of body under secret, as sent in
// HeaderSignature with a "sha256=" prefix.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (r *Relay) post(ctx context.Context, hook config.Webhook, in domain.Instruction) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if hook.TimeoutSeconds > 0 {
		timeout := time.Duration(hook.TimeoutSeconds) * time.Second
		if timeout != client.Timeout {
			client = &http.Client{Timeout: timeout, Transport: client.Transport}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, "instruction.emitted")
	req.Header.Set(HeaderDelivery, in.ID)
	req.Header.Set(HeaderTenant, in.TenantID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set(HeaderSignature, "sha256="+Sign(hook.Secret, data))
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
