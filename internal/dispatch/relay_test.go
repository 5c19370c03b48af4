package dispatch_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikhode/erp-modular-sub001/internal/config"
	"github.com/ikhode/erp-modular-sub001/internal/db"
	"github.com/ikhode/erp-modular-sub001/internal/dispatch"
	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/migrate"
	"github.com/ikhode/erp-modular-sub001/internal/repo"
)

const tenant = "acme"

type hookServer struct {
	*httptest.Server
	mu       sync.Mutex
	status   int
	requests []*http.Request
	bodies   [][]byte
}

func newHookServer(t *testing.T) *hookServer {
	h := &hookServer{status: http.StatusOK}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		defer h.mu.Unlock()
		h.requests = append(h.requests, r)
		h.bodies = append(h.bodies, body)
		w.WriteHeader(h.status)
	}))
	t.Cleanup(h.Close)
	return h
}

func (h *hookServer) setStatus(code int) {
	h.mu.Lock()
	h.status = code
	h.mu.Unlock()
}

func (h *hookServer) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)
	r := repo.Repo{DB: conn, Now: func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }}
	_, err = r.EnsureTenant(context.Background(), tenant, "Acme", "tester")
	require.NoError(t, err)
	return r
}

func purchaseInstruction(id string, qty int64) domain.Instruction {
	return domain.Instruction{
		ID: id, TenantID: tenant, DocumentID: "doc-" + id, Folio: "CMP-" + id, Kind: domain.KindPurchase,
		Inventory: []domain.InventoryDelta{{Op: domain.OpIncrease, ProductID: "maiz", LocationID: "bodega", Quantity: decimal.NewFromInt(qty)}},
		CashFlow:  &domain.CashFlowEntry{Direction: domain.CashOut, Amount: decimal.NewFromInt(qty * 10), Concept: "CMP-" + id},
	}
}

func quietRelay(src dispatch.Source, hooks ...config.Webhook) *dispatch.Relay {
	r := dispatch.NewRelay(src, nil)
	r.Webhooks = hooks
	r.Logger = log.New(&bytes.Buffer{}, "", 0)
	return r
}

func TestRelayAppliesPostsAndMarksDelivered(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	hook := newHookServer(t)
	out := dispatch.Outbox{Store: r}
	require.NoError(t, out.Emit(ctx, purchaseInstruction("i1", 5)))
	require.NoError(t, out.Emit(ctx, purchaseInstruction("i2", 3)))

	relay := quietRelay(r, config.Webhook{URL: hook.URL, Secret: "s3cret"})
	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	qty, err := r.Available(ctx, tenant, "maiz", "bodega")
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(8)), qty.String())

	require.Equal(t, 2, hook.calls())
	req, body := hook.requests[0], hook.bodies[0]
	assert.Equal(t, "i1", req.Header.Get(dispatch.HeaderDelivery))
	assert.Equal(t, tenant, req.Header.Get(dispatch.HeaderTenant))
	assert.Equal(t, "instruction.emitted", req.Header.Get(dispatch.HeaderEvent))
	assert.Equal(t, "sha256="+dispatch.Sign("s3cret", body), req.Header.Get(dispatch.HeaderSignature))
	var got domain.Instruction
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "CMP-i1", got.Folio)

	entry, err := r.GetInstruction(ctx, tenant, "i1")
	require.NoError(t, err)
	assert.Equal(t, repo.OutboxDelivered, entry.Status)

	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayRetriesWithoutReapplying(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	hook := newHookServer(t)
	hook.setStatus(http.StatusServiceUnavailable)
	require.NoError(t, r.EnqueueInstruction(ctx, purchaseInstruction("i1", 5)))
	require.NoError(t, r.EnqueueInstruction(ctx, purchaseInstruction("i2", 1)))

	relay := quietRelay(r, config.Webhook{URL: hook.URL})
	n, err := relay.RunOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Zero(t, n)
	assert.Equal(t, 1, hook.calls(), "tenant is held behind its first failure")

	entry, err := r.GetInstruction(ctx, tenant, "i1")
	require.NoError(t, err)
	assert.Equal(t, repo.OutboxPending, entry.Status)
	qty, err := r.Available(ctx, tenant, "maiz", "bodega")
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(6)), "stock does not wait on webhooks: %s", qty)

	hook.setStatus(http.StatusOK)
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	qty, err = r.Available(ctx, tenant, "maiz", "bodega")
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(6)), qty.String())
	cash, err := r.ListCashFlow(ctx, tenant, 10)
	require.NoError(t, err)
	assert.Len(t, cash, 2)
}

func TestFailingHookHoldsOnlyItsTenant(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	_, err := r.EnsureTenant(ctx, "sur", "Sur", "tester")
	require.NoError(t, err)
	broken := newHookServer(t)
	broken.setStatus(http.StatusInternalServerError)
	healthy := newHookServer(t)

	require.NoError(t, r.EnqueueInstruction(ctx, purchaseInstruction("i1", 5)))
	require.NoError(t, r.EnqueueInstruction(ctx, purchaseInstruction("i2", 3)))
	sale := domain.Instruction{ID: "s1", TenantID: "sur", DocumentID: "doc-s1", Folio: "VTA-000001", Kind: domain.KindSale,
		CashFlow: &domain.CashFlowEntry{Direction: domain.CashIn, Amount: decimal.NewFromInt(40), Concept: "VTA-000001"}}
	require.NoError(t, r.EnqueueInstruction(ctx, sale))

	relay := quietRelay(r,
		config.Webhook{URL: broken.URL, Kinds: []string{"purchase"}},
		config.Webhook{URL: healthy.URL, Kinds: []string{"sale"}},
	)
	n, err := relay.RunOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, broken.calls())
	assert.Equal(t, 1, healthy.calls())

	qty, err := r.Available(ctx, tenant, "maiz", "bodega")
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(8)), "second instruction applied: %s", qty)
	for _, id := range []string{"i1", "i2"} {
		e, err := r.GetInstruction(ctx, tenant, id)
		require.NoError(t, err)
		assert.Equal(t, repo.OutboxPending, e.Status, id)
	}
	e, err := r.GetInstruction(ctx, "sur", "s1")
	require.NoError(t, err)
	assert.Equal(t, repo.OutboxDelivered, e.Status)

	broken.setStatus(http.StatusOK)
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	qty, err = r.Available(ctx, tenant, "maiz", "bodega")
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(8)), qty.String())
}

type heldInstructions struct {
	mu        sync.Mutex
	items     []domain.Instruction
	forwarded []string
}

func (h *heldInstructions) PendingInstructions(_ context.Context, limit int) ([]domain.Instruction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit > 0 && len(h.items) > limit {
		return append([]domain.Instruction(nil), h.items[:limit]...), nil
	}
	return append([]domain.Instruction(nil), h.items...), nil
}

func (h *heldInstructions) MarkForwarded(_ context.Context, in domain.Instruction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forwarded = append(h.forwarded, in.ID)
	for i, item := range h.items {
		if item.ID == in.ID {
			h.items = append(h.items[:i], h.items[i+1:]...)
			break
		}
	}
	return nil
}

func TestRelaySweepsHeldInstructions(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	held := &heldInstructions{items: []domain.Instruction{purchaseInstruction("i1", 4), purchaseInstruction("i2", 1)}}

	relay := quietRelay(r)
	relay.Forwarder = dispatch.Outbox{Store: r, Pending: held}
	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"i1", "i2"}, held.forwarded)
	assert.Empty(t, held.items)
	qty, err := r.Available(ctx, tenant, "maiz", "bodega")
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(5)), qty.String())
}

func TestEmitWakesRelay(t *testing.T) {
	r := newRepo(t)
	relay := quietRelay(r)
	relay.Interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	out := dispatch.Outbox{Store: r, Wake: relay.Notify}
	require.NoError(t, out.Emit(context.Background(), purchaseInstruction("i1", 1)))
	require.Eventually(t, func() bool {
		e, err := r.GetInstruction(context.Background(), tenant, "i1")
		return err == nil && e.Status == repo.OutboxDelivered
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelaySkipsFilteredAndDisabledHooks(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	hook := newHookServer(t)
	off := false
	require.NoError(t, r.EnqueueInstruction(ctx, purchaseInstruction("i1", 2)))

	relay := quietRelay(r,
		config.Webhook{URL: hook.URL, Kinds: []string{"sale"}},
		config.Webhook{URL: hook.URL, Enabled: &off},
	)
	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, hook.calls())
}

func TestRelayWithoutInventoryOnlyDelivers(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	require.NoError(t, r.EnqueueInstruction(ctx, purchaseInstruction("i1", 2)))

	relay := quietRelay(r)
	relay.ApplyInventory = false
	_, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	qty, err := r.Available(ctx, tenant, "maiz", "bodega")
	require.NoError(t, err)
	assert.True(t, qty.IsZero())
}

func TestRelayLogsNegativeStock(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	in := domain.Instruction{ID: "s1", TenantID: tenant, DocumentID: "d", Folio: "VTA-000001", Kind: domain.KindSale,
		Inventory: []domain.InventoryDelta{{Op: domain.OpDecrease, ProductID: "maiz", LocationID: "bodega", Quantity: decimal.NewFromInt(4)}}}
	require.NoError(t, r.EnqueueInstruction(ctx, in))

	var buf bytes.Buffer
	relay := dispatch.NewRelay(r, nil)
	relay.Logger = log.New(&buf, "", 0)
	_, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "relay: VTA-000001 left maiz/bodega at -4")
}

func TestRunStopsWithContext(t *testing.T) {
	r := newRepo(t)
	relay := quietRelay(r)
	relay.Interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()
	require.NoError(t, r.EnqueueInstruction(context.Background(), purchaseInstruction("i1", 1)))
	require.Eventually(t, func() bool {
		e, err := r.GetInstruction(context.Background(), tenant, "i1")
		return err == nil && e.Status == repo.OutboxDelivered
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
