// Package finalize commits a pending transaction: the final proof status and
// the owner's new stock are written together, then the success notice is sent.
package finalize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/stockpanel/internal/notice"
	"github.com/dyluth/stockpanel/internal/pending"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

// ErrFinalizeFailed wraps every error that prevented a commit.
var ErrFinalizeFailed = errors.New("finalize failed")

// Sender delivers the success notice.
type Sender interface {
	Send(ctx context.Context, channelID string, msg notice.Message) (string, error)
}

// Archiver copies a proof attachment somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, txID int64, url string) (string, error)
}

// Origin identifies where the finalize was triggered and by whom.
type Origin struct {
	ChannelID    string
	ExecutorName string
}

// Result tells the caller which panel to refresh.
type Result struct {
	OwnerID          string
	ChannelID        string
	OwnerDisplayName string
}

// archiveTimeout bounds one background archive copy.
const archiveTimeout = 2 * time.Minute

// Finalizer commits pending transactions.
type Finalizer struct {
	store    ledger.Store
	sender   Sender
	archiver Archiver
	locks    *OwnerLocks
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// Option configures a Finalizer.
type Option func(*Finalizer)

// WithArchiver archives WITH_PROOF attachments after commit.
func WithArchiver(a Archiver) Option {
	return func(f *Finalizer) { f.archiver = a }
}

// WithLocks shares the per-owner locks with other stock writers.
func WithLocks(l *OwnerLocks) Option {
	return func(f *Finalizer) { f.locks = l }
}

// New creates a Finalizer.
func New(store ledger.Store, sender Sender, logger *zap.Logger, opts ...Option) *Finalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Finalizer{
		store:  store,
		sender: sender,
		logger: logger.With(zap.String("component", "finalize")),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.locks == nil {
		f.locks = NewOwnerLocks()
	}
	return f
}

// Finalize commits entry with status. proofURL is normalized: anything but a
// non-empty string (or pointer to one) is recorded as no proof.
func (f *Finalizer) Finalize(ctx context.Context, entry pending.Entry, status ledger.ProofStatus, proofURL any, owner *ledger.Owner, origin Origin) (*Result, error) {
	if status != ledger.ProofStatusWithProof && status != ledger.ProofStatusWithoutProof {
		return nil, fmt.Errorf("%w: status %s cannot finalize a pending transaction", ErrFinalizeFailed, status)
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: owner missing for transaction %d", ErrFinalizeFailed, entry.TransactionID)
	}
	url := f.normalizeURL(entry.TransactionID, proofURL)

	unlock := f.locks.Lock(owner.ID)
	current, err := f.store.GetOwner(ctx, owner.ID)
	if err != nil {
		unlock()
		return nil, f.fail(entry, "read owner", err)
	}

	farm, production := current.FarmStock, current.ProductionStock
	switch entry.Kind {
	case ledger.KindRegister:
		farm = ledger.ApplyDelta(farm, entry.LineItems, ledger.Add)
	case ledger.KindProduce:
		production = ledger.ApplyDelta(production, entry.LineItems, ledger.Add)
	default:
		unlock()
		return nil, fmt.Errorf("%w: kind %s has no proof flow", ErrFinalizeFailed, entry.Kind)
	}

	err = f.store.CommitTransaction(ctx, ledger.Commit{
		TransactionID:   entry.TransactionID,
		Status:          status,
		ProofURL:        url,
		OwnerID:         current.ID,
		FarmStock:       farm,
		ProductionStock: production,
	})
	unlock()
	if err != nil {
		return nil, f.fail(entry, "commit", err)
	}

	f.logger.Info("transaction finalized",
		zap.Int64("transaction_id", entry.TransactionID),
		zap.String("kind", string(entry.Kind)),
		zap.String("status", string(status)),
		zap.String("owner_id", current.ID))

	executor := origin.ExecutorName
	if executor == "" {
		executor = entry.SubmitterID
	}
	msg := notice.Of(notice.Success(entry.Kind, entry.TransactionID, executor, entry.LineItems, url))
	if _, err := f.sender.Send(ctx, origin.ChannelID, msg); err != nil {
		// The commit stands; only the announcement is lost.
		f.logger.Warn("failed to send success notice",
			zap.Int64("transaction_id", entry.TransactionID), zap.Error(err))
	}

	if url != nil && f.archiver != nil {
		f.archive(entry.TransactionID, *url)
	}

	return &Result{
		OwnerID:          current.ID,
		ChannelID:        current.ChannelID,
		OwnerDisplayName: current.DisplayName,
	}, nil
}

func (f *Finalizer) normalizeURL(txID int64, proofURL any) *string {
	switch v := proofURL.(type) {
	case nil:
		return nil
	case string:
		if v != "" {
			return &v
		}
		return nil
	case *string:
		if v != nil && *v != "" {
			s := *v
			return &s
		}
		return nil
	default:
		f.logger.Warn("proof url is not a string; recording without url",
			zap.Int64("transaction_id", txID),
			zap.String("type", fmt.Sprintf("%T", proofURL)))
		return nil
	}
}

func (f *Finalizer) fail(entry pending.Entry, step string, err error) error {
	f.logger.Error("finalize failed",
		zap.Int64("transaction_id", entry.TransactionID),
		zap.String("step", step),
		zap.Error(err))
	return fmt.Errorf("%w: %s transaction %d: %w", ErrFinalizeFailed, step, entry.TransactionID, err)
}

func (f *Finalizer) archive(txID int64, url string) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		location, err := f.archiver.Archive(ctx, txID, url)
		if err != nil {
			f.logger.Warn("proof archive failed", zap.Int64("transaction_id", txID), zap.Error(err))
			return
		}
		f.logger.Info("proof archived", zap.Int64("transaction_id", txID), zap.String("location", location))
	}()
}

// Wait blocks until background archive copies are done.
func (f *Finalizer) Wait() {
	f.wg.Wait()
}
