package app

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikhode/erp-modular-sub001/internal/config"
	"github.com/ikhode/erp-modular-sub001/internal/domain"
	"github.com/ikhode/erp-modular-sub001/internal/lifecycle"
	"github.com/ikhode/erp-modular-sub001/internal/repo"
	"github.com/ikhode/erp-modular-sub001/internal/store/memory"
)

func fixedNow() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

func writeConfig(t *testing.T, dir, yaml string) {
	t.Helper()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte(yaml), 0o644))
}

func TestOpenWithoutConfigUsesDefaults(t *testing.T) {
	ctx := context.Background()
	rt, err := Open(ctx, Options{Workspace: t.TempDir(), Now: fixedNow})
	require.NoError(t, err)
	defer rt.Close()

	_, isRepo := rt.Engine.Documents.(repo.Repo)
	assert.True(t, isRepo)
	assert.Equal(t, "VTA", rt.Engine.Prefixes[domain.KindSale])

	_, err = ResolveTenant(ctx, "", rt.Config, rt.Repo)
	assert.ErrorContains(t, err, "tenant init")

	_, err = InitTenant(ctx, rt.Repo, "acme", "Acme", "ana")
	require.NoError(t, err)
	tenantID, err := ResolveTenant(ctx, "", rt.Config, rt.Repo)
	require.NoError(t, err)
	assert.Equal(t, "acme", tenantID)

	ok, err := rt.Auth.ActorHasPermission(ctx, "acme", "ana", "document.transition")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpenHonorsConfig(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeConfig(t, dir, `tenant:
  id: norte
folios:
  width: 4
  prefixes:
    sale: FAC
storage:
  driver: memory
signatures:
  requirements:
    transfer:
      completed:
        "*": [encargado]
relay:
  batch: 7
  apply_inventory: false
`)
	rt, err := Open(ctx, Options{Workspace: dir, Now: fixedNow})
	require.NoError(t, err)
	defer rt.Close()

	_, isMemory := rt.Engine.Documents.(*memory.Store)
	assert.True(t, isMemory)
	assert.Equal(t, 7, rt.Relay.Batch)
	assert.False(t, rt.Relay.ApplyInventory)

	tenantID, err := ResolveTenant(ctx, "", rt.Config, rt.Repo)
	require.NoError(t, err)
	assert.Equal(t, "norte", tenantID)
	override, err := ResolveTenant(ctx, " sur ", rt.Config, rt.Repo)
	require.NoError(t, err)
	assert.Equal(t, "sur", override)

	doc, err := rt.Engine.CreateDocument(ctx, tenantID, lifecycle.CreateOptions{
		Kind: domain.KindSale, ProductID: "maiz", LocationID: "b1", Quantity: decimal.NewFromInt(1), ActorID: "ana",
	})
	require.NoError(t, err)
	assert.Equal(t, "FAC-0001", doc.Folio)

	tr, err := rt.Engine.CreateDocument(ctx, tenantID, lifecycle.CreateOptions{
		Kind: domain.KindTransfer, ProductID: "maiz", FromLocationID: "b1", ToLocationID: "b2", Quantity: decimal.NewFromInt(1), ActorID: "ana",
	})
	require.NoError(t, err)
	_, err = rt.Engine.RequestTransition(ctx, tenantID, tr.ID, domain.StateCompleted, lifecycle.TransitionOptions{ActorID: "ana"})
	var missing *lifecycle.MissingSignaturesError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"encargado"}, missing.Roles)
}

type droppedNotify struct{}

func (droppedNotify) Emit(context.Context, domain.Instruction) error { return errors.New("connection reset") }

func TestMemoryDriverForwardsCommittedInstructions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeConfig(t, dir, "tenant:\n  id: norte\nstorage:\n  driver: memory\n")
	rt, err := Open(ctx, Options{Workspace: dir, Now: fixedNow})
	require.NoError(t, err)
	defer rt.Close()
	require.NotNil(t, rt.Relay.Forwarder)
	assert.True(t, rt.Relay.ApplyInventory)

	_, err = InitTenant(ctx, rt.Repo, "norte", "Norte", "ana")
	require.NoError(t, err)
	_, err = rt.Repo.SetStock(ctx, "norte", "maiz", "b1", decimal.NewFromInt(5), "ana")
	require.NoError(t, err)

	transfer := func() domain.Document {
		doc, err := rt.Engine.CreateDocument(ctx, "norte", lifecycle.CreateOptions{
			Kind: domain.KindTransfer, ProductID: "maiz", FromLocationID: "b1", ToLocationID: "b2", Quantity: decimal.NewFromInt(2), ActorID: "ana",
		})
		require.NoError(t, err)
		_, err = rt.Engine.RequestTransition(ctx, "norte", doc.ID, domain.StateCompleted, lifecycle.TransitionOptions{ActorID: "ana"})
		require.NoError(t, err)
		return doc
	}

	transfer()
	queued, err := rt.Repo.ListInstructions(ctx, repo.OutboxFilter{TenantID: "norte", Status: repo.OutboxPending})
	require.NoError(t, err)
	assert.Len(t, queued, 1)

	rt.Engine.Dispatcher = droppedNotify{}
	second := transfer()
	queued, err = rt.Repo.ListInstructions(ctx, repo.OutboxFilter{TenantID: "norte", Status: repo.OutboxPending})
	require.NoError(t, err)
	assert.Len(t, queued, 1)
	held, err := rt.Engine.Documents.(*memory.Store).PendingInstructions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, second.ID, held[0].DocumentID)

	n, err := rt.Relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	held, err = rt.Engine.Documents.(*memory.Store).PendingInstructions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, held)
	moved, err := rt.Repo.Available(ctx, "norte", "maiz", "b2")
	require.NoError(t, err)
	assert.True(t, moved.Equal(decimal.NewFromInt(4)), moved.String())
}

func TestRulesFromConfigKeepsDefaultsForUnlistedKinds(t *testing.T) {
	cfg := config.Default("t")
	cfg.Signatures.Requirements = map[string]map[string]map[string][]string{
		"sale": {"delivered": {"*": {"cliente"}}},
	}
	rules := RulesFromConfig(cfg)
	sale := domain.Document{Kind: domain.KindSale, DeliveryType: domain.DeliveryShipping}
	assert.Equal(t, []string{"cliente"}, rules.RequiredRoles(sale, domain.StateDelivered))
	purchase := domain.Document{Kind: domain.KindPurchase, PurchaseType: domain.PurchaseStandard}
	assert.Equal(t, []string{"encargado", "proveedor"}, rules.RequiredRoles(purchase, domain.StateCompleted))
}

func TestNewStoreRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default("t")
	cfg.Storage.Driver = "etcd"
	_, err := NewStore(context.Background(), cfg, repo.Repo{})
	assert.EqualError(t, err, `unknown storage driver "etcd"`)
}
