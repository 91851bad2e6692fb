package ledger

import (
	"context"
	"encoding/json"
)

// Store is the persistence boundary of the panel: configuration values,
// owners with their stocks, and the transaction log.
//
// Every I/O failure is returned as a *StoreError. Lookups of absent records
// return ErrNotFound instead.
type Store interface {
	GetConfig(ctx context.Context, key ConfigKey) (json.RawMessage, error)
	// SetConfig upserts the JSON encoding of value.
	SetConfig(ctx context.Context, key ConfigKey, value any) error

	// RegisterOwner creates the owner with empty stocks, or updates the channel
	// and display name of an existing owner leaving the stocks untouched.
	RegisterOwner(ctx context.Context, ownerID, channelID, displayName string) error
	GetOwner(ctx context.Context, ownerID string) (*Owner, error)
	ListOwners(ctx context.Context) ([]*Owner, error)
	// UpdateStock overwrites both stocks of an existing owner.
	UpdateStock(ctx context.Context, ownerID string, farm, production Stock) error

	// AddTransaction assigns the next id and the creation time, defaults the
	// status to NONE, persists the record and returns the id.
	AddTransaction(ctx context.Context, tx *Transaction) (int64, error)
	UpdateTransactionStatus(ctx context.Context, id int64, status ProofStatus, proofURL *string) error
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	// ListTransactions returns records ordered by id, newest first.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)

	// CommitTransaction writes the final status of a transaction and the owner's
	// new stocks in a single atomic operation.
	CommitTransaction(ctx context.Context, commit Commit) error
	// RecordAdjustment adds an ADJUSTMENT record and overwrites the owner's
	// stocks in a single atomic operation.
	RecordAdjustment(ctx context.Context, tx *Transaction, farm, production Stock) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Commit carries everything CommitTransaction persists.
type Commit struct {
	TransactionID   int64
	Status          ProofStatus
	ProofURL        *string
	OwnerID         string
	FarmStock       Stock
	ProductionStock Stock
}

func limitOf(filter TransactionFilter) int {
	if filter.Limit > 0 {
		return filter.Limit
	}
	return DefaultListLimit
}

// Matches reports whether t passes the filter (ignoring the limit).
func (f TransactionFilter) Matches(t *Transaction) bool {
	if f.TargetOwnerID != "" && t.TargetOwnerID != f.TargetOwnerID {
		return false
	}
	if f.Status != "" && t.ProofStatus != f.Status {
		return false
	}
	return true
}

// EffectiveLimit returns the filter's limit or DefaultListLimit.
func (f TransactionFilter) EffectiveLimit() int {
	return limitOf(f)
}
