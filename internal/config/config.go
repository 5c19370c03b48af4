package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models docflow.yml.
type Config struct {
	Tenant struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"tenant"`
	Folios struct {
		Width    int               `yaml:"width"`
		Prefixes map[string]string `yaml:"prefixes"`
	} `yaml:"folios"`
	Signatures struct {
		// kind -> target state -> variant -> roles; variant "*" is the fallback.
		Requirements map[string]map[string]map[string][]string `yaml:"requirements"`
		Roles        map[string][]string                       `yaml:"roles"`
	} `yaml:"signatures"`
	Storage Storage `yaml:"storage"`
	Archive struct {
		S3 S3 `yaml:"s3"`
	} `yaml:"archive"`
	Relay    Relay     `yaml:"relay"`
	Webhooks []Webhook `yaml:"webhooks"`
	RBAC     struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Server struct {
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
}

type Storage struct {
	Driver   string   `yaml:"driver"`
	DynamoDB DynamoDB `yaml:"dynamodb"`
}

type DynamoDB struct {
	Region           string `yaml:"region"`
	Endpoint         string `yaml:"endpoint"`
	DocumentsTable   string `yaml:"documents_table"`
	SignaturesTable  string `yaml:"signatures_table"`
	TransitionsTable string `yaml:"transitions_table"`
	CountersTable    string `yaml:"counters_table"`
	OutboxTable      string `yaml:"outbox_table"`
}

type S3 struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	// LinkTTLSeconds bounds presigned signature download links.
	LinkTTLSeconds int `yaml:"link_ttl_seconds"`
}

type Relay struct {
	IntervalSeconds int   `yaml:"interval_seconds"`
	Batch           int   `yaml:"batch"`
	ApplyInventory  *bool `yaml:"apply_inventory"`
}

// InventoryEnabled reports whether the relay books instructions on the stock
// ledger. Unset means yes.
func (r Relay) InventoryEnabled() bool {
	return r.ApplyInventory == nil || *r.ApplyInventory
}

type Webhook struct {
	ID             string   `yaml:"id"`
	URL            string   `yaml:"url"`
	Kinds          []string `yaml:"kinds"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

var (
	knownKinds  = map[string]bool{"sale": true, "purchase": true, "transfer": true}
	knownStates = map[string]bool{
		"pending": true, "preparing": true, "in_transit": true, "delivered": true,
		"dispatched": true, "loading": true, "returning": true, "completed": true, "cancelled": true,
	}
)

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Tenant.ID == "" {
		return fmt.Errorf("config.tenant.id is required")
	}
	if c.Folios.Width < 0 || c.Folios.Width > 18 {
		return fmt.Errorf("config.folios.width must be between 0 and 18")
	}
	seen := map[string]string{}
	for kind, prefix := range c.Folios.Prefixes {
		if !knownKinds[kind] {
			return fmt.Errorf("config.folios.prefixes has unknown kind %s", kind)
		}
		if strings.TrimSpace(prefix) == "" {
			return fmt.Errorf("folio prefix for %s is empty", kind)
		}
		if other, ok := seen[prefix]; ok {
			return fmt.Errorf("folio prefix %s is shared by %s and %s", prefix, other, kind)
		}
		seen[prefix] = kind
	}
	for kind, byTarget := range c.Signatures.Requirements {
		if !knownKinds[kind] {
			return fmt.Errorf("config.signatures.requirements has unknown kind %s", kind)
		}
		for target, byVariant := range byTarget {
			if !knownStates[target] {
				return fmt.Errorf("signature requirement for %s targets unknown state %s", kind, target)
			}
			for variant, roles := range byVariant {
				for _, role := range roles {
					if role == "" {
						return fmt.Errorf("signature requirement %s/%s/%s has empty role", kind, target, variant)
					}
					if allowed, ok := c.Signatures.Roles[kind]; ok && !contains(allowed, role) {
						return fmt.Errorf("signature requirement %s/%s/%s needs role %s not allowed to sign %s", kind, target, variant, role, kind)
					}
				}
			}
		}
	}
	for kind := range c.Signatures.Roles {
		if !knownKinds[kind] {
			return fmt.Errorf("config.signatures.roles has unknown kind %s", kind)
		}
	}
	switch c.Storage.Driver {
	case "", DriverSQLite, DriverMemory:
	case DriverDynamoDB:
		if c.Storage.DynamoDB.DocumentsTable == "" {
			return fmt.Errorf("config.storage.dynamodb.documents_table is required for the dynamodb driver")
		}
		if c.Storage.DynamoDB.OutboxTable == "" {
			return fmt.Errorf("config.storage.dynamodb.outbox_table is required for the dynamodb driver")
		}
	default:
		return fmt.Errorf("config.storage.driver must be sqlite, dynamodb or memory")
	}
	if c.Relay.IntervalSeconds < 0 || c.Relay.Batch < 0 {
		return fmt.Errorf("config.relay values must not be negative")
	}
	for i, h := range c.Webhooks {
		if h.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		for _, k := range h.Kinds {
			if !knownKinds[k] {
				return fmt.Errorf("config.webhooks[%d] filters unknown kind %s", i, k)
			}
		}
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["admin"]; !ok {
			return fmt.Errorf("config.rbac.roles must include admin")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Catalog flattens rbac.roles to role -> permissions.
func (c *Config) Catalog() map[string][]string {
	out := make(map[string][]string, len(c.RBAC.Roles))
	for id, role := range c.RBAC.Roles {
		out[id] = append([]string(nil), role.Permissions...)
	}
	return out
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "docflow.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(tenantID string) string {
	return fmt.Sprintf(defaultTemplate, tenantID)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with docflow config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a tenant.
func Default(tenantID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, tenantID))).Decode(&cfg)
	cfg.Tenant.ID = tenantID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `tenant:
  id: %s

folios:
  width: 6
  prefixes:
    sale: VTA
    purchase: CMP
    transfer: TRF

signatures:
  requirements:
    purchase:
      completed:
        "*": [encargado, proveedor]
        parcela: [encargado, proveedor, conductor]
    sale:
      delivered:
        pickup: [cliente]
  roles:
    sale: [cliente, conductor]
    purchase: [conductor, encargado, proveedor]
    transfer: [encargado, conductor]

storage:
  driver: sqlite
  dynamodb:
    region: us-east-1
    documents_table: docflow-documents
    signatures_table: docflow-signatures
    transitions_table: docflow-transitions
    counters_table: docflow-counters
    outbox_table: docflow-outbox

relay:
  interval_seconds: 2
  batch: 50
  apply_inventory: true

rbac:
  roles:
    admin:
      description: "Full access"
      permissions: [document.create, document.read, document.transition, signature.capture, stock.read, stock.write, events.read, instructions.read]
    operator:
      description: "Moves documents through their lifecycle"
      permissions: [document.create, document.read, document.transition, signature.capture, stock.read]
    signer:
      description: "Signs documents on a device"
      permissions: [document.read, signature.capture]
    viewer:
      description: "Read only"
      permissions: [document.read, stock.read, events.read, instructions.read]

server:
  cors_origins: []
`
