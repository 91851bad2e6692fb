// Package sqlstore implements ledger.Store on top of database/sql, for SQLite
// (modernc.org/sqlite) and Postgres (pgx stdlib driver).
//
// The schema keeps three tables: configurations (key → JSON), users (owner and
// both stocks as JSON) and transacoes (the transaction log).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dyluth/stockpanel/pkg/ledger"
)

// Dialect selects placeholder syntax and DDL for a backend.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// driverName returns the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// Store is a SQL-backed ledger.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ ledger.Store = (*Store)(nil)

// Open connects to dsn with the driver for dialect and applies the schema.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if dialect != SQLite && dialect != Postgres {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	if dsn == "" {
		return nil, fmt.Errorf("dsn cannot be empty")
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == SQLite {
		// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle. The schema is not applied.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return ledger.WrapStoreError("migrate", err)
		}
	}
	return nil
}

func schema(d Dialect) []string {
	idColumn := "transacaoId INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == Postgres {
		idColumn = "transacaoId BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS configurations (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			discordId TEXT PRIMARY KEY,
			canalId TEXT NOT NULL,
			displayName TEXT NOT NULL DEFAULT '',
			estoqueFarm TEXT NOT NULL DEFAULT '{}',
			estoqueProducao TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS transacoes (
			` + idColumn + `,
			tipo TEXT NOT NULL,
			executorId TEXT NOT NULL,
			alvoId TEXT NOT NULL,
			detalhes TEXT NOT NULL,
			statusProva TEXT NOT NULL,
			urlProva TEXT,
			criadoEmMs BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transacoes_alvo ON transacoes (alvoId, transacaoId)`,
	}
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return ledger.WrapStoreError("ping", s.db.PingContext(ctx))
}

// GetConfig returns the JSON stored for key, or ledger.ErrNotFound.
func (s *Store) GetConfig(ctx context.Context, key ledger.ConfigKey) (json.RawMessage, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM configurations WHERE key = ?`), string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, ledger.WrapStoreError("get config", err)
	}
	if !value.Valid {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(value.String), nil
}

// SetConfig upserts the JSON encoding of value.
func (s *Store) SetConfig(ctx context.Context, key ledger.ConfigKey, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal config %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO configurations (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		string(key), string(data))
	return ledger.WrapStoreError("set config", err)
}

// RegisterOwner inserts the owner, or updates channel and display name on conflict.
func (s *Store) RegisterOwner(ctx context.Context, ownerID, channelID, displayName string) error {
	if ownerID == "" {
		return fmt.Errorf("owner id cannot be empty")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (discordId, canalId, displayName, estoqueFarm, estoqueProducao)
		 VALUES (?, ?, ?, '{}', '{}')
		 ON CONFLICT (discordId) DO UPDATE SET canalId = excluded.canalId, displayName = excluded.displayName`),
		ownerID, channelID, displayName)
	return ledger.WrapStoreError("register owner", err)
}

const ownerColumns = `discordId, canalId, displayName, estoqueFarm, estoqueProducao`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOwner(row rowScanner) (*ledger.Owner, error) {
	var (
		o                ledger.Owner
		farm, production string
	)
	if err := row.Scan(&o.ID, &o.ChannelID, &o.DisplayName, &farm, &production); err != nil {
		return nil, err
	}
	var err error
	if o.FarmStock, err = ledger.DecodeStock(farm); err != nil {
		return nil, fmt.Errorf("corrupt farm stock for %s: %w", o.ID, err)
	}
	if o.ProductionStock, err = ledger.DecodeStock(production); err != nil {
		return nil, fmt.Errorf("corrupt production stock for %s: %w", o.ID, err)
	}
	return &o, nil
}

// GetOwner returns the owner, or ledger.ErrNotFound.
func (s *Store) GetOwner(ctx context.Context, ownerID string) (*ledger.Owner, error) {
	return s.getOwner(ctx, s.db, ownerID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) getOwner(ctx context.Context, q querier, ownerID string) (*ledger.Owner, error) {
	row := q.QueryRowContext(ctx, s.rebind(`SELECT `+ownerColumns+` FROM users WHERE discordId = ?`), ownerID)
	o, err := scanOwner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, ledger.WrapStoreError("get owner", err)
	}
	return o, nil
}

// ListOwners returns all owners ordered by id.
func (s *Store) ListOwners(ctx context.Context) ([]*ledger.Owner, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ownerColumns+` FROM users ORDER BY discordId`)
	if err != nil {
		return nil, ledger.WrapStoreError("list owners", err)
	}
	defer rows.Close()

	var owners []*ledger.Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, ledger.WrapStoreError("list owners", err)
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.WrapStoreError("list owners", err)
	}
	return owners, nil
}

// UpdateStock overwrites both stocks of an existing owner.
func (s *Store) UpdateStock(ctx context.Context, ownerID string, farm, production ledger.Stock) error {
	return s.writeStocks(ctx, s.db, "update stock", ownerID, farm, production)
}

func (s *Store) writeStocks(ctx context.Context, q querier, op, ownerID string, farm, production ledger.Stock) error {
	farmJSON, err := ledger.EncodeStock(farm)
	if err != nil {
		return fmt.Errorf("failed to marshal farm stock: %w", err)
	}
	productionJSON, err := ledger.EncodeStock(production)
	if err != nil {
		return fmt.Errorf("failed to marshal production stock: %w", err)
	}

	res, err := q.ExecContext(ctx, s.rebind(
		`UPDATE users SET estoqueFarm = ?, estoqueProducao = ? WHERE discordId = ?`),
		farmJSON, productionJSON, ownerID)
	if err != nil {
		return ledger.WrapStoreError(op, err)
	}
	return requireOneRow(op, res)
}

func requireOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.WrapStoreError(op, err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// AddTransaction inserts the record and returns the assigned id.
func (s *Store) AddTransaction(ctx context.Context, tx *ledger.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, fmt.Errorf("invalid transaction: %w", err)
	}
	if tx.ProofStatus == "" {
		tx.ProofStatus = ledger.ProofStatusNone
	}
	return s.insertTransaction(ctx, s.db, "add transaction", tx)
}

func (s *Store) insertTransaction(ctx context.Context, q querier, op string, tx *ledger.Transaction) (int64, error) {
	items, err := json.Marshal(tx.LineItems)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal line items: %w", err)
	}
	created := s.now().UTC().Truncate(time.Millisecond)

	var id int64
	err = q.QueryRowContext(ctx, s.rebind(
		`INSERT INTO transacoes (tipo, executorId, alvoId, detalhes, statusProva, urlProva, criadoEmMs)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING transacaoId`),
		string(tx.Kind), tx.ExecutorID, tx.TargetOwnerID, string(items),
		string(tx.ProofStatus), nullable(tx.ProofURL), created.UnixMilli()).Scan(&id)
	if err != nil {
		return 0, ledger.WrapStoreError(op, err)
	}
	tx.ID = id
	tx.CreatedAt = created
	return id, nil
}

func nullable(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// UpdateTransactionStatus sets status and proof URL.
func (s *Store) UpdateTransactionStatus(ctx context.Context, id int64, status ledger.ProofStatus, proofURL *string) error {
	if err := status.Validate(); err != nil {
		return err
	}
	return s.writeStatus(ctx, s.db, "update transaction status", id, status, proofURL)
}

func (s *Store) writeStatus(ctx context.Context, q querier, op string, id int64, status ledger.ProofStatus, proofURL *string) error {
	res, err := q.ExecContext(ctx, s.rebind(
		`UPDATE transacoes SET statusProva = ?, urlProva = ? WHERE transacaoId = ?`),
		string(status), nullable(proofURL), id)
	if err != nil {
		return ledger.WrapStoreError(op, err)
	}
	return requireOneRow(op, res)
}

const transactionColumns = `transacaoId, tipo, executorId, alvoId, detalhes, statusProva, urlProva, criadoEmMs`

func scanTransaction(row rowScanner) (*ledger.Transaction, error) {
	var (
		t         ledger.Transaction
		kind      string
		items     string
		status    string
		url       sql.NullString
		createdMs int64
	)
	if err := row.Scan(&t.ID, &kind, &t.ExecutorID, &t.TargetOwnerID, &items, &status, &url, &createdMs); err != nil {
		return nil, err
	}
	t.Kind = ledger.Kind(kind)
	t.ProofStatus = ledger.ProofStatus(status)
	t.LineItems = ledger.LineItems{}
	if err := json.Unmarshal([]byte(items), &t.LineItems); err != nil {
		return nil, fmt.Errorf("corrupt line items for transaction %d: %w", t.ID, err)
	}
	if url.Valid && url.String != "" {
		u := url.String
		t.ProofURL = &u
	}
	t.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &t, nil
}

// GetTransaction returns a record, or ledger.ErrNotFound.
func (s *Store) GetTransaction(ctx context.Context, id int64) (*ledger.Transaction, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+transactionColumns+` FROM transacoes WHERE transacaoId = ?`), id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, ledger.WrapStoreError("get transaction", err)
	}
	return t, nil
}

// ListTransactions returns matching records, newest first.
func (s *Store) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.TargetOwnerID != "" {
		where = append(where, "alvoId = ?")
		args = append(args, filter.TargetOwnerID)
	}
	if filter.Status != "" {
		where = append(where, "statusProva = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + transactionColumns + ` FROM transacoes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY transacaoId DESC LIMIT ?"
	args = append(args, filter.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, ledger.WrapStoreError("list transactions", err)
	}
	defer rows.Close()

	result := []*ledger.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, ledger.WrapStoreError("list transactions", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.WrapStoreError("list transactions", err)
	}
	return result, nil
}

// CommitTransaction writes status and stocks in one database transaction.
func (s *Store) CommitTransaction(ctx context.Context, commit ledger.Commit) error {
	if err := commit.Status.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, "commit transaction", func(tx *sql.Tx) error {
		if err := s.writeStatus(ctx, tx, "commit transaction", commit.TransactionID, commit.Status, commit.ProofURL); err != nil {
			return err
		}
		return s.writeStocks(ctx, tx, "commit transaction", commit.OwnerID, commit.FarmStock, commit.ProductionStock)
	})
}

// RecordAdjustment inserts an ADJUSTMENT record and writes the stocks in one database transaction.
func (s *Store) RecordAdjustment(ctx context.Context, t *ledger.Transaction, farm, production ledger.Stock) (int64, error) {
	t.ProofStatus = ledger.ProofStatusAdjustment
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("invalid transaction: %w", err)
	}

	var id int64
	err := s.inTx(ctx, "record adjustment", func(tx *sql.Tx) error {
		if err := s.writeStocks(ctx, tx, "record adjustment", t.TargetOwnerID, farm, production); err != nil {
			return err
		}
		var err error
		id, err = s.insertTransaction(ctx, tx, "record adjustment", t)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.WrapStoreError(op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return ledger.WrapStoreError(op, tx.Commit())
}
