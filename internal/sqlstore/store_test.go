package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/stockpanel/pkg/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// setupSQLite opens a fresh SQLite database in a temp dir
func setupSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, SQLite, filepath.Join(t.TempDir(), "panel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects unknown dialect", func(t *testing.T) {
		_, err := Open(ctx, "mysql", "dsn")
		assert.ErrorContains(t, err, "unsupported sql dialect")
	})

	t.Run("rejects empty dsn", func(t *testing.T) {
		_, err := Open(ctx, SQLite, "")
		assert.ErrorContains(t, err, "dsn cannot be empty")
	})

	t.Run("migration is idempotent", func(t *testing.T) {
		s := setupSQLite(t)
		assert.NoError(t, s.Migrate(ctx))
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestSQLiteConfig(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	_, err := s.GetConfig(ctx, ledger.ConfigKeyMasterKey)
	assert.True(t, ledger.IsNotFound(err))

	require.NoError(t, s.SetConfig(ctx, ledger.ConfigKeyMasterKey, "a"))
	require.NoError(t, s.SetConfig(ctx, ledger.ConfigKeyMasterKey, "b"))

	key, err := ledger.NewSettings(s).MasterKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.MasterKey("b"), key)
}

func TestSQLiteOwners(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterOwner(ctx, "u2", "c2", "Beltrano"))
	require.NoError(t, s.RegisterOwner(ctx, "u1", "c1", "Fulano"))
	require.NoError(t, s.UpdateStock(ctx, "u1", ledger.Stock{"folhas": dec("30")}, ledger.Stock{}))
	require.NoError(t, s.RegisterOwner(ctx, "u1", "c9", "Fulano"))

	owner, err := s.GetOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "c9", owner.ChannelID)
	assert.True(t, dec("30").Equal(owner.FarmStock["folhas"]))

	owners, err := s.ListOwners(ctx)
	require.NoError(t, err)
	require.Len(t, owners, 2)
	assert.Equal(t, "u1", owners[0].ID)

	_, err = s.GetOwner(ctx, "ghost")
	assert.True(t, ledger.IsNotFound(err))
	assert.True(t, ledger.IsNotFound(s.UpdateStock(ctx, "ghost", nil, nil)))
}

func TestSQLiteTransactions(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.RegisterOwner(ctx, "u1", "c1", ""))

	var last int64
	for i := 0; i < 12; i++ {
		id, err := s.AddTransaction(ctx, &ledger.Transaction{
			Kind: ledger.KindProduce, ExecutorID: "u1", TargetOwnerID: "u1",
			LineItems: ledger.LineItems{"farinha": dec("500")}, ProofStatus: ledger.ProofStatusPending,
		})
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}

	t.Run("list defaults to ten newest", func(t *testing.T) {
		txs, err := s.ListTransactions(ctx, ledger.TransactionFilter{})
		require.NoError(t, err)
		require.Len(t, txs, 10)
		assert.Equal(t, last, txs[0].ID)
		assert.True(t, dec("500").Equal(txs[0].LineItems["farinha"]))
	})

	t.Run("commit writes status and stock together", func(t *testing.T) {
		url := "https://cdn.example/p.png"
		err := s.CommitTransaction(ctx, ledger.Commit{
			TransactionID: last, Status: ledger.ProofStatusWithProof, ProofURL: &url,
			OwnerID: "u1", FarmStock: ledger.Stock{}, ProductionStock: ledger.Stock{"farinha": dec("500")},
		})
		require.NoError(t, err)

		tx, err := s.GetTransaction(ctx, last)
		require.NoError(t, err)
		assert.Equal(t, ledger.ProofStatusWithProof, tx.ProofStatus)
		require.NotNil(t, tx.ProofURL)
		assert.Equal(t, url, *tx.ProofURL)

		owner, err := s.GetOwner(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, dec("500").Equal(owner.ProductionStock["farinha"]))

		pending, err := s.ListTransactions(ctx, ledger.TransactionFilter{Status: ledger.ProofStatusPending, Limit: 100})
		require.NoError(t, err)
		assert.Len(t, pending, 11)
	})

	t.Run("commit for unknown owner rolls back the status", func(t *testing.T) {
		err := s.CommitTransaction(ctx, ledger.Commit{
			TransactionID: 1, Status: ledger.ProofStatusWithoutProof, OwnerID: "ghost",
		})
		assert.True(t, ledger.IsNotFound(err))

		tx, err := s.GetTransaction(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, ledger.ProofStatusPending, tx.ProofStatus)
	})

	t.Run("adjustment", func(t *testing.T) {
		id, err := s.RecordAdjustment(ctx, &ledger.Transaction{
			Kind: ledger.KindAdjust, ExecutorID: "m1", TargetOwnerID: "u1",
			LineItems: ledger.LineItems{"folhas": dec("-50")},
		}, ledger.Stock{}, ledger.Stock{"farinha": dec("500")})
		require.NoError(t, err)

		tx, err := s.GetTransaction(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.ProofStatusAdjustment, tx.ProofStatus)

		owned, err := s.ListTransactions(ctx, ledger.TransactionFilter{TargetOwnerID: "u1", Limit: 1})
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, id, owned[0].ID)
	})
}

func newMock(t *testing.T, dialect Dialect) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, dialect), mock
}

func TestPostgresPlaceholders(t *testing.T) {
	s, mock := newMock(t, Postgres)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING transacaoId")).
		WithArgs("PRODUCE", "u1", "u1", sqlmock.AnyArg(), "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"transacaoId"}).AddRow(int64(41)))

	id, err := s.AddTransaction(ctx, &ledger.Transaction{
		Kind: ledger.KindProduce, ExecutorID: "u1", TargetOwnerID: "u1",
		LineItems: ledger.LineItems{"farinha": dec("1")}, ProofStatus: ledger.ProofStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(41), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	pg := New(nil, Postgres)
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := New(nil, SQLite)
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("exec failure is a StoreError", func(t *testing.T) {
		s, mock := newMock(t, SQLite)
		mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("disk full"))

		err := s.RegisterOwner(ctx, "u1", "c1", "")
		var storeErr *ledger.StoreError
		require.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "register owner", storeErr.Op)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit rolls back when the owner row is missing", func(t *testing.T) {
		s, mock := newMock(t, Postgres)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transacoes").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := s.CommitTransaction(ctx, ledger.Commit{TransactionID: 1, Status: ledger.ProofStatusWithoutProof, OwnerID: "ghost"})
		assert.True(t, ledger.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure is a StoreError", func(t *testing.T) {
		s, mock := newMock(t, Postgres)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transacoes").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err := s.CommitTransaction(ctx, ledger.Commit{TransactionID: 1, Status: ledger.ProofStatusWithoutProof, OwnerID: "u1"})
		var storeErr *ledger.StoreError
		assert.True(t, errors.As(err, &storeErr))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
