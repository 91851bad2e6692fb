// Package bot is the event-driven core of the stock panel: it consumes
// gateway events, runs the proof and authentication flows, and renders
// results through a Messenger.
package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyluth/stockpanel/internal/authgate"
	"github.com/dyluth/stockpanel/internal/finalize"
	"github.com/dyluth/stockpanel/internal/notice"
	"github.com/dyluth/stockpanel/internal/pending"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

var (
	// ErrSessionExpired reports a stale control or a missing cache entry.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoPanel reports a user acting on a panel without owning one.
	ErrNoPanel = errors.New("user has no panel")
	// ErrAccessDenied reports a manager-only view requested without a manager role.
	ErrAccessDenied = errors.New("access denied")
	// ErrAuthFailed reports a wrong manager key.
	ErrAuthFailed = errors.New("authentication failed")
)

// DefaultProofTTL is how long a pending transaction waits for its proof.
const DefaultProofTTL = 15 * time.Minute

// DefaultWorkers bounds concurrently handled events.
const DefaultWorkers = 16

// Options tunes an Engine. Zero values pick the defaults.
type Options struct {
	// ProofTTL drops pending proofs after the delay; negative disables expiry.
	ProofTTL time.Duration
	AuthTTL  time.Duration
	Workers  int
	Archiver finalize.Archiver
	Logger   *zap.Logger
}

type gatedHandler func(ctx context.Context, ev *Event) error

// Engine dispatches gateway events to the panel flows.
type Engine struct {
	store     ledger.Store
	settings  *ledger.Settings
	messenger Messenger
	proofs    *pending.Cache
	gate      *authgate.Gate
	modals    *modalCache
	finalizer *finalize.Finalizer
	locks     *finalize.OwnerLocks
	gated     map[string]gatedHandler
	workers   int
	logger    *zap.Logger
}

// NewEngine wires the flows around store and messenger.
func NewEngine(store ledger.Store, messenger Messenger, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	proofTTL := opts.ProofTTL
	switch {
	case proofTTL == 0:
		proofTTL = DefaultProofTTL
	case proofTTL < 0:
		proofTTL = 0
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	locks := finalize.NewOwnerLocks()
	finalizerOpts := []finalize.Option{finalize.WithLocks(locks)}
	if opts.Archiver != nil {
		finalizerOpts = append(finalizerOpts, finalize.WithArchiver(opts.Archiver))
	}

	gate := authgate.New(opts.AuthTTL, logger)
	e := &Engine{
		store:     store,
		settings:  ledger.NewSettings(store),
		messenger: messenger,
		proofs:    pending.New(proofTTL, logger),
		gate:      gate,
		modals:    newModalCache(gate.TTL()),
		finalizer: finalize.New(store, messenger, logger, finalizerOpts...),
		locks:     locks,
		workers:   workers,
		logger:    logger.With(zap.String("component", "engine")),
	}
	e.gated = map[string]gatedHandler{
		notice.ControlManagerLog:  e.runManagerLog,
		notice.ControlAdjustStock: e.runAdjustModal,
		notice.ControlProduction:  e.runProductionModal,
		notice.ControlViewStock:   e.runStockQuery,
	}
	return e
}

// Run consumes src until ctx is cancelled or the source closes. Events are
// handled concurrently, bounded by the configured worker count.
func (e *Engine) Run(ctx context.Context, src Source) error {
	e.logger.Info("engine started", zap.Int("workers", e.workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine shutting down")
			return nil

		case ev, ok := <-src.Events():
			if !ok {
				e.logger.Info("event source closed")
				return nil
			}
			g.Go(func() error {
				e.Handle(gctx, ev)
				return nil
			})

		case err, ok := <-src.Errors():
			if !ok {
				e.logger.Info("event source error channel closed")
				return nil
			}
			// Decode failures skip one event; keep consuming.
			e.logger.Warn("event source error", zap.Error(err))
		}
	}
}

// Handle processes one event synchronously and logs the outcome. The
// returned error is the same one that was logged.
func (e *Engine) Handle(ctx context.Context, ev *Event) error {
	if err := ev.Validate(); err != nil {
		e.logger.Warn("invalid event dropped", zap.Error(err))
		return err
	}

	var err error
	switch ev.Type {
	case EventCommand:
		err = e.handleCommand(ctx, ev)
	case EventButton:
		err = e.handleButton(ctx, ev)
	case EventSelect:
		err = e.handleSelect(ctx, ev)
	case EventModalSubmit:
		err = e.handleModalSubmit(ctx, ev)
	case EventMessage:
		err = e.handleMessage(ctx, ev)
	}
	e.logOutcome(ev, err)
	return err
}

func (e *Engine) logOutcome(ev *Event, err error) {
	fields := []zap.Field{
		zap.String("event_type", string(ev.Type)),
		zap.String("custom_id", ev.CustomID),
		zap.String("user_id", ev.UserID),
	}
	var (
		validation ledger.ValidationErrors
		missing    *ledger.ConfigMissingError
	)
	switch {
	case err == nil:
		e.logger.Debug("event handled", fields...)
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrNoPanel),
		errors.Is(err, ErrAccessDenied), errors.Is(err, ErrAuthFailed),
		errors.As(err, &validation):
		e.logger.Info("event rejected", append(fields, zap.Error(err))...)
	case errors.As(err, &missing):
		e.logger.Warn("configuration missing", append(fields, zap.Error(err))...)
	default:
		e.logger.Error("event failed", append(fields, zap.Error(err))...)
	}
}

// PendingProofs returns the transactions currently waiting for a proof.
func (e *Engine) PendingProofs() []pending.Entry {
	return e.proofs.Snapshot()
}

// Close stops timers and waits for background archive copies.
func (e *Engine) Close() {
	e.proofs.Close()
	e.gate.Close()
	e.modals.close()
	e.finalizer.Wait()
}
