package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dyluth/stockpanel/pkg/ledger"
)

// Defaults applied by Validate.
const (
	DefaultInstance   = "stockpanel"
	DefaultRedisURL   = "redis://localhost:6379"
	DefaultAuthTTL    = 60 * time.Second
	DefaultProofTTL   = 15 * time.Minute
	DefaultWorkers    = 16
	DefaultHealthAddr = ":8080"
)

// Store drivers.
const (
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Archive drivers.
const (
	ArchiveNone = "none"
	ArchiveFS   = "fs"
	ArchiveS3   = "s3"
)

// Config represents the top-level stockpanel.yml configuration
type Config struct {
	Version  string       `yaml:"version"`
	Instance string       `yaml:"instance,omitempty"`
	Store    StoreConfig  `yaml:"store"`
	Auth     AuthConfig   `yaml:"auth,omitempty"`
	Proofs   ProofsConfig `yaml:"proofs,omitempty"`
	Workers  int          `yaml:"workers,omitempty"`
	// HealthAddr is the health server address; an explicit empty string disables it.
	HealthAddr *string     `yaml:"health_addr,omitempty"`
	Seed       *SeedConfig `yaml:"seed,omitempty"`
}

// StoreConfig selects the transaction store backend
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	RedisURL string `yaml:"redis_url,omitempty"`
	DSN      string `yaml:"dsn,omitempty"`
}

// AuthConfig tunes the manager authentication gate
type AuthConfig struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ProofsConfig tunes the proof flow
type ProofsConfig struct {
	// Timeout drops unanswered proof prompts; 0 disables expiry. Unset means DefaultProofTTL.
	Timeout *time.Duration `yaml:"timeout,omitempty"`
	Archive *ArchiveConfig `yaml:"archive,omitempty"`
}

// ArchiveConfig selects where proof attachments are copied
type ArchiveConfig struct {
	Driver    string `yaml:"driver"`
	Dir       string `yaml:"dir,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// SeedConfig is written to the store by `stockpanel seed`
type SeedConfig struct {
	FarmItems       []SeedItem `yaml:"farm_items,omitempty"`
	ProductionItems []SeedItem `yaml:"production_items,omitempty"`
	ManagerRoles    []string   `yaml:"manager_roles,omitempty"`
	MasterKey       string     `yaml:"master_key,omitempty"`
}

// SeedItem is one item rule in YAML form
type SeedItem struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name,omitempty"`
	Multiple float64  `yaml:"multiple,omitempty"`
	Min      *float64 `yaml:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty"`
}

// Validate performs strict validation on the configuration and fills defaults
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.Instance == "" {
		c.Instance = DefaultInstance
	}

	// The gateway bridge always runs over Redis, whatever backs the store.
	if c.Store.RedisURL == "" {
		c.Store.RedisURL = DefaultRedisURL
	}
	switch c.Store.Driver {
	case "":
		c.Store.Driver = DriverRedis
	case DriverRedis:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver '%s'", c.Store.Driver)
		}
	default:
		return fmt.Errorf("invalid store.driver: %s (must be 'redis', 'sqlite', or 'postgres')", c.Store.Driver)
	}

	if c.Auth.Timeout < 0 {
		return fmt.Errorf("auth.timeout must be positive, got %s", c.Auth.Timeout)
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = DefaultAuthTTL
	}

	if c.Proofs.Timeout != nil && *c.Proofs.Timeout < 0 {
		return fmt.Errorf("proofs.timeout must be >= 0 (0 = no expiry), got %s", *c.Proofs.Timeout)
	}
	if err := c.Proofs.Archive.validate(); err != nil {
		return err
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}

	if c.HealthAddr == nil {
		addr := DefaultHealthAddr
		c.HealthAddr = &addr
	}

	if c.Seed != nil {
		if err := c.Seed.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a *ArchiveConfig) validate() error {
	if a == nil {
		return nil
	}
	switch a.Driver {
	case "", ArchiveNone:
		a.Driver = ArchiveNone
	case ArchiveFS:
		if a.Dir == "" {
			return fmt.Errorf("proofs.archive.dir is required for driver 'fs'")
		}
	case ArchiveS3:
		if a.Bucket == "" {
			return fmt.Errorf("proofs.archive.bucket is required for driver 's3'")
		}
	default:
		return fmt.Errorf("invalid proofs.archive.driver: %s (must be 'none', 'fs', or 's3')", a.Driver)
	}
	return nil
}

// ProofTTL returns the proof expiry in the form the engine takes: zero for
// the default, negative for no expiry.
func (c *Config) ProofTTL() time.Duration {
	switch {
	case c.Proofs.Timeout == nil:
		return DefaultProofTTL
	case *c.Proofs.Timeout == 0:
		return -1
	default:
		return *c.Proofs.Timeout
	}
}

// ArchiveDriver returns the configured archive driver, "none" when unset.
func (c *Config) ArchiveDriver() string {
	if c.Proofs.Archive == nil || c.Proofs.Archive.Driver == "" {
		return ArchiveNone
	}
	return c.Proofs.Archive.Driver
}

// Validate checks the item lists of a seed block
func (s *SeedConfig) Validate() error {
	for field, items := range map[string][]SeedItem{
		"seed.farm_items":       s.FarmItems,
		"seed.production_items": s.ProductionItems,
	} {
		seen := make(map[string]bool, len(items))
		for i, item := range items {
			if item.ID == "" {
				return fmt.Errorf("%s[%d]: id is required", field, i)
			}
			if seen[item.ID] {
				return fmt.Errorf("%s: duplicate item id '%s'", field, item.ID)
			}
			seen[item.ID] = true
			if item.Multiple < 0 {
				return fmt.Errorf("%s '%s': multiple must be >= 0", field, item.ID)
			}
			if item.Min != nil && item.Max != nil && *item.Min > *item.Max {
				return fmt.Errorf("%s '%s': min %v is greater than max %v", field, item.ID, *item.Min, *item.Max)
			}
		}
	}
	return nil
}

// Rule converts the YAML item into a store item rule.
func (i SeedItem) Rule() ledger.ItemRule {
	rule := ledger.ItemRule{ID: i.ID, Name: i.Name, Multiple: decimal.NewFromFloat(i.Multiple)}
	if i.Min != nil {
		rule.Min = decimal.NewNullDecimal(decimal.NewFromFloat(*i.Min))
	}
	if i.Max != nil {
		rule.Max = decimal.NewNullDecimal(decimal.NewFromFloat(*i.Max))
	}
	return rule
}

func rules(items []SeedItem) []ledger.ItemRule {
	out := make([]ledger.ItemRule, 0, len(items))
	for _, item := range items {
		out = append(out, item.Rule())
	}
	return out
}

// Values returns the configuration values the seed writes. Empty parts are skipped.
func (s *SeedConfig) Values() []ledger.ConfigValue {
	var values []ledger.ConfigValue
	if len(s.FarmItems) > 0 {
		values = append(values, ledger.ItemRules{Category: ledger.CategoryFarm, Rules: rules(s.FarmItems)})
	}
	if len(s.ProductionItems) > 0 {
		values = append(values, ledger.ItemRules{Category: ledger.CategoryProduction, Rules: rules(s.ProductionItems)})
	}
	if len(s.ManagerRoles) > 0 {
		values = append(values, ledger.ManagerRoles{IDs: s.ManagerRoles})
	}
	if s.MasterKey != "" {
		values = append(values, ledger.MasterKey(s.MasterKey))
	}
	return values
}

// DefaultSeed is the item catalogue the panel ships with.
func DefaultSeed() *SeedConfig {
	cleanMoney := 4500.0
	return &SeedConfig{
		FarmItems: []SeedItem{
			{ID: "farinha_de_trigo", Name: "Farinha de Trigo", Multiple: 1},
			{ID: "cascas_de_semente", Name: "Cascas de Semente", Multiple: 1},
			{ID: "folhas", Name: "Folhas", Multiple: 1},
			{ID: "embalagens_plasticas", Name: "Embalagens Plásticas", Multiple: 1},
			{ID: "dinheiro_limpo", Name: "Dinheiro Limpo", Multiple: 4500, Min: &cleanMoney},
		},
		ProductionItems: []SeedItem{
			{ID: "farinha", Name: "Farinha", Multiple: 1},
		},
	}
}

// Parse decodes and validates a configuration document. Environment
// overrides are applied before validation.
func Parse(data []byte, lookupEnv func(string) (string, bool)) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if lookupEnv != nil {
		config.applyEnv(lookupEnv)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// applyEnv lets deployments override the connection settings and secret
// without editing the file.
func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) {
	if v, ok := lookupEnv("STOCKPANEL_INSTANCE"); ok && v != "" {
		c.Instance = v
	}
	if v, ok := lookupEnv("REDIS_URL"); ok && v != "" {
		c.Store.RedisURL = v
	}
	if v, ok := lookupEnv("STOCKPANEL_DSN"); ok && v != "" {
		c.Store.DSN = v
	}
	if v, ok := lookupEnv("STOCKPANEL_MASTER_KEY"); ok && v != "" {
		if c.Seed == nil {
			c.Seed = &SeedConfig{}
		}
		c.Seed.MasterKey = v
	}
}

// Load reads and validates stockpanel.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, os.LookupEnv)
}
