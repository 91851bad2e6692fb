package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/stockpanel/internal/printer"
	"github.com/dyluth/stockpanel/internal/sqlstore"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// capturePrinter redirects the printer's writers for the test and returns
// everything they receive.
func capturePrinter(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	oldOut, oldErr, oldNoColor := printer.Stdout, printer.Stderr, color.NoColor
	printer.Stdout, printer.Stderr, color.NoColor = buf, buf, true
	t.Cleanup(func() { printer.Stdout, printer.Stderr, color.NoColor = oldOut, oldErr, oldNoColor })
	return buf
}

// sqliteConfig writes a config pointing at a fresh SQLite file and returns
// the config path and the DSN.
func sqliteConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "stock.db")
	configPath := filepath.Join(dir, "stockpanel.yml")
	body := fmt.Sprintf("version: \"1.0\"\ninstance: test\nstore:\n  driver: sqlite\n  dsn: %q\nseed:\n  manager_roles: [\"gerente\"]\n", dsn)
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))
	return configPath, dsn
}

func openSQLite(t *testing.T, dsn string) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(context.Background(), sqlstore.SQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	out, err := run(t)
	assert.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "stockpanel")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, err := run(t, "--unknown-flag", "value")
	assert.ErrorContains(t, err, "unknown flag")
}

func TestRootCommand_ExplicitMissingConfigFails(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yml"), "tx", "list")
	assert.EqualError(t, err, "invalid configuration")
}

func TestSeed(t *testing.T) {
	configPath, dsn := sqliteConfig(t)
	t.Setenv("STOCKPANEL_MASTER_KEY", "segredo")
	printed := capturePrinter(t)

	out, err := run(t, "--config", configPath, "seed")
	require.NoError(t, err)
	assert.Contains(t, printed.String(), "→ seeding 4 configuration key(s)")
	assert.Contains(t, printed.String(), "✓ seeded 4 configuration value(s)")
	assert.Contains(t, out, "ITENS_FARM: written")
	assert.Contains(t, out, "CHAVE_MESTRA_GERENCIAL: written")

	settings := ledger.NewSettings(openSQLite(t, dsn))
	ctx := context.Background()

	farm, err := settings.ItemRules(ctx, ledger.CategoryFarm)
	require.NoError(t, err)
	assert.Len(t, farm.Rules, 5)

	roles, err := settings.ManagerRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gerente"}, roles.IDs)

	key, err := settings.MasterKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.MasterKey("segredo"), key)

	t.Run("existing keys are kept without --force", func(t *testing.T) {
		out, err := run(t, "--config", configPath, "seed")
		require.NoError(t, err)
		assert.Contains(t, out, "ITENS_FARM: kept existing value")
		assert.NotContains(t, out, "written")
	})

	t.Run("--force overwrites", func(t *testing.T) {
		out, err := run(t, "--config", configPath, "seed", "--force")
		require.NoError(t, err)
		assert.Contains(t, out, "ITENS_PRODUCAO: written")
	})
}

func TestTxAndStockCommands(t *testing.T) {
	configPath, dsn := sqliteConfig(t)
	ctx := context.Background()

	store := openSQLite(t, dsn)
	require.NoError(t, store.RegisterOwner(ctx, "u1", "c1", "Joana"))
	require.NoError(t, store.RegisterOwner(ctx, "u2", "c2", "Pedro"))
	require.NoError(t, store.UpdateStock(ctx, "u1", ledger.Stock{"folhas": decimal.NewFromInt(5)}, nil))
	require.NoError(t, store.UpdateStock(ctx, "u2", ledger.Stock{"folhas": decimal.NewFromInt(7)}, nil))
	_, err := store.AddTransaction(ctx, &ledger.Transaction{
		Kind: ledger.KindRegister, ExecutorID: "u1", TargetOwnerID: "u1", ProofStatus: ledger.ProofStatusPending,
		LineItems: ledger.LineItems{"folhas": decimal.NewFromInt(10)},
	})
	require.NoError(t, err)
	_, err = store.AddTransaction(ctx, &ledger.Transaction{
		Kind: ledger.KindProduce, ExecutorID: "u2", TargetOwnerID: "u2", ProofStatus: ledger.ProofStatusWithoutProof,
		LineItems: ledger.LineItems{"farinha": decimal.NewFromInt(2)},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	t.Run("tx pending", func(t *testing.T) {
		out, err := run(t, "--config", configPath, "tx", "pending")
		require.NoError(t, err)
		assert.Contains(t, out, "1 transaction found")
		assert.Contains(t, out, "folhas=10")
	})

	t.Run("tx list with kind filter", func(t *testing.T) {
		out, err := run(t, "--config", configPath, "tx", "list", "--kind", "produce", "-o", "jsonl")
		require.NoError(t, err)
		assert.Contains(t, out, `"kind":"PRODUCE"`)
		assert.NotContains(t, out, `"kind":"REGISTER"`)
	})

	t.Run("tx list rejects a bad status", func(t *testing.T) {
		_, err := run(t, "--config", configPath, "tx", "list", "--status", "done")
		assert.EqualError(t, err, "invalid status")
	})

	t.Run("tx list rejects a bad format", func(t *testing.T) {
		_, err := run(t, "--config", configPath, "tx", "list", "-o", "xml")
		assert.EqualError(t, err, "invalid output format")
	})

	t.Run("tx watch needs redis", func(t *testing.T) {
		_, err := run(t, "--config", configPath, "tx", "watch")
		assert.EqualError(t, err, "watch needs the redis store")
	})

	t.Run("stock show owner", func(t *testing.T) {
		out, err := run(t, "--config", configPath, "stock", "show", "u1")
		require.NoError(t, err)
		assert.Contains(t, out, "Stock for Joana (channel c1)")
		assert.Contains(t, out, "folhas")
	})

	t.Run("stock show all sums farm stock", func(t *testing.T) {
		out, err := run(t, "--config", configPath, "stock", "show", "--all")
		require.NoError(t, err)
		assert.Contains(t, out, "all 2 owners")
		assert.Regexp(t, `folhas\s+12`, out)
	})

	t.Run("stock show all with no owners", func(t *testing.T) {
		emptyConfig, _ := sqliteConfig(t)
		printed := capturePrinter(t)
		out, err := run(t, "--config", emptyConfig, "stock", "show", "--all")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Equal(t, "No panels registered for instance 'test'\n", printed.String())
	})

	t.Run("stock show unknown owner", func(t *testing.T) {
		_, err := run(t, "--config", configPath, "stock", "show", "ghost")
		assert.EqualError(t, err, "owner 'ghost' not found")
	})
}

func TestRedisStoreFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	configPath := filepath.Join(t.TempDir(), "stockpanel.yml")
	body := fmt.Sprintf("version: \"1.0\"\ninstance: test\nstore:\n  driver: redis\n  redis_url: \"redis://%s\"\n", mr.Addr())
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))

	_, err := run(t, "--config", configPath, "seed")
	require.NoError(t, err)
	assert.True(t, mr.Exists("stockpanel:test:config"))

	out, err := run(t, "--config", configPath, "tx", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No transactions found for instance 'test'")
}
