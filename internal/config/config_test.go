package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("acme")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "acme", cfg.Tenant.ID)
	assert.Equal(t, 6, cfg.Folios.Width)
	assert.Equal(t, "VTA", cfg.Folios.Prefixes["sale"])
	assert.Equal(t, []string{"encargado", "proveedor", "conductor"}, cfg.Signatures.Requirements["purchase"]["completed"]["parcela"])
	assert.Equal(t, []string{"cliente"}, cfg.Signatures.Requirements["sale"]["delivered"]["pickup"])
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.True(t, cfg.Relay.InventoryEnabled())
	assert.Equal(t, "docflow-outbox", cfg.Storage.DynamoDB.OutboxTable)
	assert.Contains(t, cfg.Catalog()["admin"], "document.transition")
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing tenant":      "tenant:\n  id: \"\"\n",
		"unknown kind":        "tenant: {id: a}\nfolios:\n  prefixes: {refund: RFD}\n",
		"shared prefix":       "tenant: {id: a}\nfolios:\n  prefixes: {sale: X, purchase: X}\n",
		"unknown state":       "tenant: {id: a}\nsignatures:\n  requirements:\n    sale:\n      shipped:\n        \"*\": [cliente]\n",
		"role not allowed":    "tenant: {id: a}\nsignatures:\n  roles: {sale: [cliente]}\n  requirements:\n    sale:\n      delivered:\n        pickup: [proveedor]\n",
		"bad driver":          "tenant: {id: a}\nstorage: {driver: postgres}\n",
		"dynamo needs table":  "tenant: {id: a}\nstorage: {driver: dynamodb}\n",
		"dynamo needs outbox": "tenant: {id: a}\nstorage: {driver: dynamodb, dynamodb: {documents_table: d}}\n",
		"webhook url":         "tenant: {id: a}\nwebhooks:\n  - id: erp\n",
		"rbac without admin":  "tenant: {id: a}\nrbac:\n  roles:\n    viewer: {permissions: [document.read]}\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = Load(dir)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "docflow config init"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "docflow.yml"), []byte(GenerateDefault("acme")), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "acme", cfg.Tenant.ID)
}

func TestRelayAppliesInventoryUnlessDisabled(t *testing.T) {
	cfg, err := FromYAML([]byte("tenant: {id: a}\nrelay: {interval_seconds: 5}\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Relay.InventoryEnabled())

	cfg, err = FromYAML([]byte("tenant: {id: a}\nrelay: {apply_inventory: false}\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Relay.InventoryEnabled())
}
