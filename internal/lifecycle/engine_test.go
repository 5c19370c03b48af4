package lifecycle_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle/mocks"
	"github.com/ikhode/erp-modular-sub001/internal/store/memory"
)

const tenant = "tenant-1"

func fixedNow() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

type recorder struct {
	mu  sync.Mutex
	got []domain.Instruction
}

func (r *recorder) Emit(_ context.Context, in domain.Instruction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, in)
	return nil
}

func (r *recorder) emitted() []domain.Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Instruction(nil), r.got...)
}

type testEnv struct {
	Engine lifecycle.Engine
	Store  *memory.Store
	Out    *recorder
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	store := memory.New()
	out := &recorder{}
	eng := lifecycle.New(store, out)
	eng.Stock = store
	eng.Now = fixedNow
	eng.Logger = log.New(&bytes.Buffer{}, "", 0)
	return testEnv{Engine: eng, Store: store, Out: out, Ctx: context.Background()}
}

func (env testEnv) create(t *testing.T, opts lifecycle.CreateOptions) domain.Document {
	t.Helper()
	if opts.ActorID == "" {
		opts.ActorID = "tester"
	}
	doc, err := env.Engine.CreateDocument(env.Ctx, tenant, opts)
	require.NoError(t, err)
	return doc
}

func (env testEnv) step(t *testing.T, doc domain.Document, states ...domain.State) domain.Document {
	t.Helper()
	for _, s := range states {
		var err error
		doc, err = env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, s, lifecycle.TransitionOptions{ActorID: "tester"})
		require.NoError(t, err, "to %s", s)
	}
	return doc
}

func (env testEnv) sign(t *testing.T, doc domain.Document, roles ...string) {
	t.Helper()
	for _, role := range roles {
		_, err := env.Engine.CaptureSignature(env.Ctx, tenant, doc.ID, role, pngSignature, "tester")
		require.NoError(t, err, "sign %s", role)
	}
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func saleOpts(delivery string) lifecycle.CreateOptions {
	return lifecycle.CreateOptions{Kind: domain.KindSale, ProductID: "maiz", LocationID: "bodega-1",
		Quantity: qty("10"), UnitPrice: qty("3.5"), DeliveryType: delivery}
}

func purchaseOpts(purchaseType string) lifecycle.CreateOptions {
	return lifecycle.CreateOptions{Kind: domain.KindPurchase, ProductID: "maiz", LocationID: "bodega-1",
		Quantity: qty("20"), UnitPrice: qty("2"), PurchaseType: purchaseType}
}

func transferOpts() lifecycle.CreateOptions {
	return lifecycle.CreateOptions{Kind: domain.KindTransfer, ProductID: "maiz",
		FromLocationID: "bodega-1", ToLocationID: "bodega-2", Quantity: qty("4")}
}

func TestCreateDocumentDefaults(t *testing.T) {
	env := newTestEnv(t)
	sale := env.create(t, lifecycle.CreateOptions{Kind: domain.KindSale, ProductID: "maiz", LocationID: "b1", Quantity: qty("1")})
	assert.Equal(t, domain.StatePending, sale.State)
	assert.Equal(t, domain.DeliveryShipping, sale.DeliveryType)
	assert.Equal(t, domain.PaymentCredit, sale.PaymentMethod)
	assert.False(t, sale.SideEffectsApplied)
	assert.Equal(t, "VTA-000001", sale.Folio)

	purchase := env.create(t, purchaseOpts(""))
	assert.Equal(t, domain.StateDispatched, purchase.State)
	assert.Equal(t, domain.PurchaseStandard, purchase.PurchaseType)
	assert.Equal(t, "CMP-000001", purchase.Folio)

	history, err := env.Engine.History(env.Ctx, tenant, sale.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.State(""), history[0].FromState)
	assert.Equal(t, domain.StatePending, history[0].ToState)
}

func TestCreateDocumentValidation(t *testing.T) {
	env := newTestEnv(t)
	bad := []lifecycle.CreateOptions{
		{Kind: "refund", ProductID: "p", LocationID: "l", Quantity: qty("1")},
		{Kind: domain.KindSale, LocationID: "l", Quantity: qty("1")},
		{Kind: domain.KindSale, ProductID: "p", LocationID: "l", Quantity: qty("0")},
		{Kind: domain.KindSale, ProductID: "p", Quantity: qty("1")},
		{Kind: domain.KindSale, ProductID: "p", LocationID: "l", Quantity: qty("1"), DeliveryType: "drone"},
		{Kind: domain.KindPurchase, ProductID: "p", LocationID: "l", Quantity: qty("1"), PurchaseType: "barter"},
		{Kind: domain.KindTransfer, ProductID: "p", FromLocationID: "a", ToLocationID: "a", Quantity: qty("1")},
		{Kind: domain.KindTransfer, ProductID: "p", FromLocationID: "a", Quantity: qty("1")},
	}
	for _, opts := range bad {
		_, err := env.Engine.CreateDocument(env.Ctx, tenant, opts)
		assert.ErrorIs(t, err, lifecycle.ErrInvalidDocument, "%+v", opts)
	}
	_, err := env.Engine.CreateDocument(env.Ctx, "", saleOpts(""))
	assert.Error(t, err)
}

func TestFoliosIncreasePerKind(t *testing.T) {
	env := newTestEnv(t)
	var folios []string
	for i := 0; i < 3; i++ {
		folios = append(folios, env.create(t, saleOpts("")).Folio)
	}
	assert.Equal(t, []string{"VTA-000001", "VTA-000002", "VTA-000003"}, folios)
	assert.Equal(t, "TRF-000001", env.create(t, transferOpts()).Folio)
}

func TestSaleDeliveryEmitsDecreaseOnce(t *testing.T) {
	env := newTestEnv(t)
	env.Store.SetStock(tenant, "maiz", "bodega-1", qty("10"))
	doc := env.create(t, saleOpts(domain.DeliveryShipping))

	doc = env.step(t, doc, domain.StatePreparing, domain.StateInTransit)
	assert.False(t, doc.SideEffectsApplied)
	assert.Empty(t, env.Out.emitted())

	doc = env.step(t, doc, domain.StateDelivered)
	assert.Equal(t, domain.StateDelivered, doc.State)
	assert.True(t, doc.SideEffectsApplied)

	out := env.Out.emitted()
	require.Len(t, out, 1)
	assert.Equal(t, doc.ID, out[0].DocumentID)
	assert.Equal(t, doc.Folio, out[0].Folio)
	require.Len(t, out[0].Inventory, 1)
	assert.Equal(t, domain.OpDecrease, out[0].Inventory[0].Op)
	assert.True(t, out[0].Inventory[0].Quantity.Equal(qty("10")))
	assert.Nil(t, out[0].CashFlow)

	history, err := env.Engine.History(env.Ctx, tenant, doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, domain.StateInTransit, history[3].FromState)
	assert.Equal(t, domain.StateDelivered, history[3].ToState)
	assert.Equal(t, "tester", history[3].ActorID)

	// terminal wins over any target, legal or not
	_, err = env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, domain.StatePending, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyTerminal)
	_, err = env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, domain.StateDelivered, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyTerminal)
	assert.Len(t, env.Out.emitted(), 1)
}

func TestCashSaleCarriesCashFlow(t *testing.T) {
	env := newTestEnv(t)
	env.Store.SetStock(tenant, "maiz", "bodega-1", qty("10"))
	opts := saleOpts("")
	opts.PaymentMethod = domain.PaymentCash
	doc := env.step(t, env.create(t, opts), domain.StatePreparing, domain.StateInTransit, domain.StateDelivered)
	require.True(t, doc.SideEffectsApplied)
	out := env.Out.emitted()
	require.Len(t, out, 1)
	require.NotNil(t, out[0].CashFlow)
	assert.Equal(t, domain.CashIn, out[0].CashFlow.Direction)
	assert.True(t, out[0].CashFlow.Amount.Equal(qty("35")))
}

func TestPickupSaleNeedsClienteSignature(t *testing.T) {
	env := newTestEnv(t)
	env.Store.SetStock(tenant, "maiz", "bodega-1", qty("100"))
	doc := env.step(t, env.create(t, saleOpts(domain.DeliveryPickup)), domain.StatePreparing, domain.StateInTransit)

	_, err := env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, domain.StateDelivered, lifecycle.TransitionOptions{})
	var mse *lifecycle.MissingSignaturesError
	require.ErrorAs(t, err, &mse)
	assert.Equal(t, []string{domain.RoleCliente}, mse.Roles)
	assert.ErrorIs(t, err, lifecycle.ErrMissingSignatures)

	current, err := env.Engine.GetDocument(env.Ctx, tenant, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInTransit, current.State)
	assert.Empty(t, env.Out.emitted())

	env.sign(t, doc, domain.RoleCliente)
	doc = env.step(t, doc, domain.StateDelivered)
	assert.True(t, doc.SideEffectsApplied)
	assert.Len(t, env.Out.emitted(), 1)
}

func TestPurchaseCompletionSignatures(t *testing.T) {
	env := newTestEnv(t)

	standard := env.step(t, env.create(t, purchaseOpts(domain.PurchaseStandard)), domain.StateLoading, domain.StateReturning)
	env.sign(t, standard, domain.RoleProveedor)
	_, err := env.Engine.RequestTransition(env.Ctx, tenant, standard.ID, domain.StateCompleted, lifecycle.TransitionOptions{})
	var mse *lifecycle.MissingSignaturesError
	require.ErrorAs(t, err, &mse)
	assert.Equal(t, []string{domain.RoleEncargado}, mse.Roles)

	env.sign(t, standard, domain.RoleEncargado)
	standard = env.step(t, standard, domain.StateCompleted)
	assert.True(t, standard.SideEffectsApplied)

	parcela := env.step(t, env.create(t, purchaseOpts(domain.PurchaseParcela)), domain.StateLoading, domain.StateReturning)
	env.sign(t, parcela, domain.RoleEncargado, domain.RoleProveedor)
	_, err = env.Engine.RequestTransition(env.Ctx, tenant, parcela.ID, domain.StateCompleted, lifecycle.TransitionOptions{})
	require.ErrorAs(t, err, &mse)
	assert.Equal(t, []string{domain.RoleConductor}, mse.Roles)
	env.sign(t, parcela, domain.RoleConductor)
	env.step(t, parcela, domain.StateCompleted)

	out := env.Out.emitted()
	require.Len(t, out, 2)
	for _, in := range out {
		require.Len(t, in.Inventory, 1)
		assert.Equal(t, domain.OpIncrease, in.Inventory[0].Op)
	}
}

func TestPurchaseSignaturesMayArriveEarly(t *testing.T) {
	env := newTestEnv(t)
	doc := env.create(t, purchaseOpts(domain.PurchaseStandard))
	env.sign(t, doc, domain.RoleEncargado, domain.RoleProveedor)
	doc = env.step(t, doc, domain.StateLoading, domain.StateReturning, domain.StateCompleted)
	assert.Equal(t, domain.StateCompleted, doc.State)
}

func TestPreconditionOrder(t *testing.T) {
	env := newTestEnv(t)
	// pickup sale with no signature and no stock: skipping ahead is illegal first
	doc := env.create(t, saleOpts(domain.DeliveryPickup))
	_, err := env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, domain.StateDelivered, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)

	// at in_transit the missing signature is reported before stock
	doc = env.step(t, doc, domain.StatePreparing, domain.StateInTransit)
	_, err = env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, domain.StateDelivered, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrMissingSignatures)

	env.sign(t, doc, domain.RoleCliente)
	_, err = env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, domain.StateDelivered, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrInsufficientStock)

	_, err = env.Engine.RequestTransition(env.Ctx, tenant, "missing", domain.StateDelivered, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestInsufficientStockLeavesDocumentUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.Store.SetStock(tenant, "maiz", "bodega-1", qty("9.999"))
	doc := env.step(t, env.create(t, saleOpts("")), domain.StatePreparing, domain.StateInTransit)

	_, err := env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, domain.StateDelivered, lifecycle.TransitionOptions{})
	var ise *lifecycle.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.True(t, ise.Available.Equal(qty("9.999")))
	assert.True(t, ise.Requested.Equal(qty("10")))

	current, err := env.Engine.GetDocument(env.Ctx, tenant, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateInTransit, current.State)
	assert.False(t, current.SideEffectsApplied)
	assert.Empty(t, env.Out.emitted())

	// exact equality is enough
	env.Store.SetStock(tenant, "maiz", "bodega-1", qty("10"))
	doc = env.step(t, doc, domain.StateDelivered)
	assert.True(t, doc.SideEffectsApplied)
}

func TestTransferCompleteAndCancel(t *testing.T) {
	env := newTestEnv(t)
	env.Store.SetStock(tenant, "maiz", "bodega-1", qty("4"))

	done := env.step(t, env.create(t, transferOpts()), domain.StateCompleted)
	assert.True(t, done.SideEffectsApplied)
	out := env.Out.emitted()
	require.Len(t, out, 1)
	require.Len(t, out[0].Inventory, 2)
	assert.Equal(t, domain.OpDecrease, out[0].Inventory[0].Op)
	assert.Equal(t, "bodega-1", out[0].Inventory[0].LocationID)
	assert.Equal(t, domain.OpIncrease, out[0].Inventory[1].Op)
	assert.Equal(t, "bodega-2", out[0].Inventory[1].LocationID)

	cancelled := env.step(t, env.create(t, transferOpts()), domain.StateCancelled)
	assert.Equal(t, domain.StateCancelled, cancelled.State)
	assert.False(t, cancelled.SideEffectsApplied)
	assert.Len(t, env.Out.emitted(), 1)
	history, err := env.Engine.History(env.Ctx, tenant, cancelled.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = env.Engine.RequestTransition(env.Ctx, tenant, cancelled.ID, domain.StateCompleted, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyTerminal)
}

func TestTransferCancelIgnoresStock(t *testing.T) {
	env := newTestEnv(t)
	doc := env.create(t, transferOpts())
	_, err := env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, domain.StateCompleted, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrInsufficientStock)
	env.step(t, doc, domain.StateCancelled)
}

func TestCaptureSignatureGuards(t *testing.T) {
	env := newTestEnv(t)
	doc := env.create(t, saleOpts(domain.DeliveryPickup))

	_, err := env.Engine.CaptureSignature(env.Ctx, tenant, doc.ID, domain.RoleProveedor, pngSignature, "tester")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidRole)
	_, err = env.Engine.CaptureSignature(env.Ctx, tenant, doc.ID, domain.RoleCliente, []byte("scribble"), "tester")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidSignatureFormat)
	_, err = env.Engine.CaptureSignature(env.Ctx, tenant, "nope", domain.RoleCliente, pngSignature, "tester")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	env.sign(t, doc, domain.RoleCliente)
	_, err = env.Engine.CaptureSignature(env.Ctx, tenant, doc.ID, domain.RoleCliente, pngSignature, "tester")
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateSignature)

	cancelled := env.step(t, env.create(t, transferOpts()), domain.StateCancelled)
	_, err = env.Engine.CaptureSignature(env.Ctx, tenant, cancelled.ID, domain.RoleEncargado, pngSignature, "tester")
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyTerminal)
}

func TestSignatureStatus(t *testing.T) {
	env := newTestEnv(t)
	doc := env.create(t, purchaseOpts(domain.PurchaseParcela))
	env.sign(t, doc, domain.RoleProveedor)

	status, err := env.Engine.SignatureStatus(env.Ctx, tenant, doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, status.Target)
	assert.Equal(t, []string{domain.RoleConductor, domain.RoleEncargado, domain.RoleProveedor}, status.Required)
	assert.Equal(t, []string{domain.RoleProveedor}, status.Present)
	assert.Equal(t, []string{domain.RoleConductor, domain.RoleEncargado}, status.Missing)
	assert.False(t, status.Satisfied)

	status, err = env.Engine.SignatureStatus(env.Ctx, tenant, doc.ID, domain.StateLoading)
	require.NoError(t, err)
	assert.True(t, status.Satisfied)
	assert.Empty(t, status.Required)
}

func TestTenantsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	doc := env.create(t, saleOpts(""))

	_, err := env.Engine.GetDocument(env.Ctx, "tenant-2", doc.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	_, err = env.Engine.RequestTransition(env.Ctx, "tenant-2", doc.ID, domain.StatePreparing, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	_, err = env.Engine.CaptureSignature(env.Ctx, "tenant-2", doc.ID, domain.RoleCliente, pngSignature, "x")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	other, err := env.Engine.CreateDocument(env.Ctx, "tenant-2", saleOpts(""))
	require.NoError(t, err)
	assert.Equal(t, "VTA-000001", other.Folio)

	list, err := env.Engine.ListDocuments(env.Ctx, lifecycle.DocumentFilter{TenantID: tenant})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, doc.ID, list[0].ID)
}

func TestConcurrentDeliveryEmitsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.Store.SetStock(tenant, "maiz", "bodega-1", qty("10"))
	doc := env.step(t, env.create(t, saleOpts("")), domain.StatePreparing, domain.StateInTransit)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, domain.StateDelivered, lifecycle.TransitionOptions{ActorID: "racer"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, lifecycle.ErrConcurrentModification), errors.Is(err, lifecycle.ErrAlreadyTerminal):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, env.Out.emitted(), 1)

	history, err := env.Engine.History(env.Ctx, tenant, doc.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestConcurrentCaptureKeepsOneSignature(t *testing.T) {
	env := newTestEnv(t)
	doc := env.create(t, purchaseOpts(""))

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, dups := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Engine.CaptureSignature(env.Ctx, tenant, doc.ID, domain.RoleEncargado, pngSignature, "racer")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, lifecycle.ErrDuplicateSignature) {
				dups++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, dups)
}

func TestNotifyFailureKeepsInstructionPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := mocks.NewMockDispatcher(ctrl)
	dispatcher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).Times(1)

	env := newTestEnv(t)
	var logs bytes.Buffer
	env.Engine.Dispatcher = dispatcher
	env.Engine.Logger = log.New(&logs, "", 0)
	env.Store.SetStock(tenant, "maiz", "bodega-1", qty("4"))

	doc := env.step(t, env.create(t, transferOpts()), domain.StateCompleted)
	assert.True(t, doc.SideEffectsApplied)
	assert.Contains(t, logs.String(), "broker down")

	pending, err := env.Store.PendingInstructions(env.Ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, doc.ID, pending[0].DocumentID)

	_, err = env.Engine.RequestTransition(env.Ctx, tenant, doc.ID, domain.StateCompleted, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyTerminal)
	pending, err = env.Store.PendingInstructions(env.Ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestCreateDocumentWritesCreationRecordWithDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Next(gomock.Any(), tenant, "TRF").Return("TRF-000001", nil)
	store.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, doc domain.Document, created domain.Transition) error {
			assert.Equal(t, doc.ID, created.DocumentID)
			assert.Equal(t, domain.StatePending, created.ToState)
			assert.Empty(t, created.FromState)
			assert.Equal(t, "ana", created.ActorID)
			return errors.New("disk full")
		})
	store.EXPECT().AppendAudit(gomock.Any(), gomock.Any()).Times(0)

	eng := lifecycle.New(store, nil)
	opts := transferOpts()
	opts.ActorID = "ana"
	_, err := eng.CreateDocument(context.Background(), tenant, opts)
	assert.EqualError(t, err, "disk full")
}

func TestLostSwapEmitsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	dispatcher := mocks.NewMockDispatcher(ctrl)
	stock := mocks.NewMockStockReader(ctrl)

	doc := domain.Document{ID: "d1", TenantID: tenant, Folio: "TRF-000001", Kind: domain.KindTransfer,
		State: domain.StatePending, ProductID: "maiz", FromLocationID: "a", ToLocationID: "b", Quantity: qty("1")}
	store.EXPECT().Load(gomock.Any(), tenant, "d1").Return(doc, nil)
	stock.EXPECT().Available(gomock.Any(), tenant, "maiz", "a").Return(qty("1"), nil)
	store.EXPECT().CompareAndSwap(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s lifecycle.Swap) (domain.Document, error) {
			assert.Equal(t, domain.StatePending, s.ExpectedState)
			assert.False(t, s.ExpectedApplied)
			assert.True(t, s.SideEffectsApplied)
			assert.Equal(t, domain.StateCompleted, s.Audit.ToState)
			require.NotNil(t, s.Instruction)
			assert.Equal(t, "d1", s.Instruction.DocumentID)
			return domain.Document{}, lifecycle.ErrConcurrentModification
		})
	dispatcher.EXPECT().Emit(gomock.Any(), gomock.Any()).Times(0)

	eng := lifecycle.New(store, dispatcher)
	eng.Stock = stock
	_, err := eng.RequestTransition(context.Background(), tenant, "d1", domain.StateCompleted, lifecycle.TransitionOptions{})
	assert.ErrorIs(t, err, lifecycle.ErrConcurrentModification)
	assert.True(t, lifecycle.IsRetryable(err))
}
