package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/stockpanel/pkg/ledger"
)

func noEnv(string) (string, bool) { return "", false }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "stockpanel.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
instance: loja
store:
  driver: sqlite
  dsn: "file:stock.db"
auth:
  timeout: 30s
proofs:
  timeout: 5m
  archive:
    driver: fs
    dir: /var/lib/stockpanel/proofs
workers: 4
health_addr: ":9090"
seed:
  farm_items:
    - id: folhas
      multiple: 1
    - id: dinheiro_limpo
      name: Dinheiro Limpo
      multiple: 4500
      min: 4500
  manager_roles: ["gerente"]
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "loja", config.Instance)
	assert.Equal(t, DriverSQLite, config.Store.Driver)
	assert.Equal(t, 30*time.Second, config.Auth.Timeout)
	assert.Equal(t, 5*time.Minute, config.ProofTTL())
	assert.Equal(t, ArchiveFS, config.ArchiveDriver())
	assert.Equal(t, 4, config.Workers)
	assert.Equal(t, ":9090", *config.HealthAddr)
	require.NotNil(t, config.Seed)
	assert.Len(t, config.Seed.FarmItems, 2)
	assert.Equal(t, []string{"gerente"}, config.Seed.ManagerRoles)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/stockpanel.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
store:
  - this is invalid
    yaml syntax
`)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_Defaults(t *testing.T) {
	config, err := Parse([]byte(`version: "1.0"`), noEnv)
	require.NoError(t, err)

	assert.Equal(t, DefaultInstance, config.Instance)
	assert.Equal(t, DriverRedis, config.Store.Driver)
	assert.Equal(t, DefaultRedisURL, config.Store.RedisURL)
	assert.Equal(t, DefaultAuthTTL, config.Auth.Timeout)
	assert.Equal(t, DefaultProofTTL, config.ProofTTL())
	assert.Equal(t, ArchiveNone, config.ArchiveDriver())
	assert.Equal(t, DefaultWorkers, config.Workers)
	assert.Equal(t, DefaultHealthAddr, *config.HealthAddr)
	assert.Nil(t, config.Seed)
}

func TestValidate_ZeroProofTimeoutDisablesExpiry(t *testing.T) {
	config, err := Parse([]byte("version: \"1.0\"\nproofs:\n  timeout: 0s\n"), noEnv)
	require.NoError(t, err)
	assert.Negative(t, config.ProofTTL())
}

func TestValidate_EmptyHealthAddrDisablesServer(t *testing.T) {
	config, err := Parse([]byte("version: \"1.0\"\nhealth_addr: \"\"\n"), noEnv)
	require.NoError(t, err)
	require.NotNil(t, config.HealthAddr)
	assert.Empty(t, *config.HealthAddr)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unsupported version", `version: "2.0"`, "unsupported version: 2.0"},
		{"unknown store driver", "version: \"1.0\"\nstore:\n  driver: mongo\n", "invalid store.driver"},
		{"sqlite without dsn", "version: \"1.0\"\nstore:\n  driver: sqlite\n", "store.dsn is required"},
		{"negative auth timeout", "version: \"1.0\"\nauth:\n  timeout: -1s\n", "auth.timeout must be positive"},
		{"negative proof timeout", "version: \"1.0\"\nproofs:\n  timeout: -1s\n", "proofs.timeout must be >= 0"},
		{"fs archive without dir", "version: \"1.0\"\nproofs:\n  archive:\n    driver: fs\n", "proofs.archive.dir is required"},
		{"s3 archive without bucket", "version: \"1.0\"\nproofs:\n  archive:\n    driver: s3\n", "proofs.archive.bucket is required"},
		{"unknown archive driver", "version: \"1.0\"\nproofs:\n  archive:\n    driver: ftp\n", "invalid proofs.archive.driver"},
		{"negative workers", "version: \"1.0\"\nworkers: -2\n", "workers must be >= 1"},
		{"seed item without id", "version: \"1.0\"\nseed:\n  farm_items:\n    - multiple: 1\n", "seed.farm_items[0]: id is required"},
		{"duplicate seed item", "version: \"1.0\"\nseed:\n  production_items:\n    - id: farinha\n    - id: farinha\n", "duplicate item id 'farinha'"},
		{"min above max", "version: \"1.0\"\nseed:\n  farm_items:\n    - id: folhas\n      min: 10\n      max: 5\n", "min 10 is greater than max 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := Parse([]byte(tt.yaml), noEnv)
			require.Error(t, err)
			assert.Nil(t, config)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	env := map[string]string{
		"STOCKPANEL_INSTANCE":   "prod",
		"REDIS_URL":             "redis://cache:6379/2",
		"STOCKPANEL_MASTER_KEY": "segredo",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	config, err := Parse([]byte("version: \"1.0\"\ninstance: dev\n"), lookup)
	require.NoError(t, err)
	assert.Equal(t, "prod", config.Instance)
	assert.Equal(t, "redis://cache:6379/2", config.Store.RedisURL)
	require.NotNil(t, config.Seed)
	assert.Equal(t, "segredo", config.Seed.MasterKey)
}

func TestSeedValues(t *testing.T) {
	seed := DefaultSeed()
	seed.ManagerRoles = []string{"gerente"}
	seed.MasterKey = "segredo"

	values := seed.Values()
	require.Len(t, values, 4)

	farm, ok := values[0].(ledger.ItemRules)
	require.True(t, ok)
	assert.Equal(t, ledger.CategoryFarm, farm.Category)

	money, ok := farm.Lookup("dinheiro_limpo")
	require.True(t, ok)
	assert.True(t, money.Multiple.Equal(decimal.NewFromInt(4500)))
	require.True(t, money.Min.Valid)
	assert.True(t, money.Min.Decimal.Equal(decimal.NewFromInt(4500)))
	assert.False(t, money.Max.Valid)

	production, ok := values[1].(ledger.ItemRules)
	require.True(t, ok)
	assert.Equal(t, ledger.CategoryProduction, production.Category)
	assert.Len(t, production.Rules, 1)

	assert.Equal(t, ledger.ManagerRoles{IDs: []string{"gerente"}}, values[2])
	assert.Equal(t, ledger.MasterKey("segredo"), values[3])
}

func TestSeedValues_SkipsEmptyParts(t *testing.T) {
	seed := &SeedConfig{MasterKey: "k"}
	assert.Equal(t, []ledger.ConfigValue{ledger.MasterKey("k")}, seed.Values())
}
