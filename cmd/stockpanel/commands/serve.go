package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/stockpanel/internal/bot"
	"github.com/dyluth/stockpanel/internal/config"
	"github.com/dyluth/stockpanel/internal/finalize"
	"github.com/dyluth/stockpanel/internal/gateway"
	"github.com/dyluth/stockpanel/internal/proofarchive"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot core",
		Long: `Run the bot core for one instance.

Consumes gateway events from Redis, drives the proof and manager
authentication flows, and publishes render commands back to the gateway.
Stops cleanly on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger.With(zap.String("instance", a.cfg.Instance))

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	bridge, err := gateway.New(rdb, cfg.Instance, logger)
	if err != nil {
		return fmt.Errorf("failed to create gateway bridge: %w", err)
	}

	archiver, err := newArchiver(ctx, cfg, logger)
	if err != nil {
		return err
	}

	engine := bot.NewEngine(store, bridge, bot.Options{
		ProofTTL: cfg.ProofTTL(),
		AuthTTL:  cfg.Auth.Timeout,
		Workers:  cfg.Workers,
		Archiver: archiver,
		Logger:   logger,
	})
	defer engine.Close()

	inbound, err := bridge.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to gateway events: %w", err)
	}
	defer inbound.Close()

	if addr := *cfg.HealthAddr; addr != "" {
		health := bot.NewHealthServer(store, addr, func() int { return len(engine.PendingProofs()) }, logger)
		if err := health.Start(); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			health.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("stockpanel serving",
		zap.String("store", cfg.Store.Driver),
		zap.String("archive", cfg.ArchiveDriver()),
		zap.Int("workers", cfg.Workers))

	return engine.Run(ctx, inbound)
}

// newArchiver returns nil when archiving is disabled.
func newArchiver(ctx context.Context, cfg *config.Config, logger *zap.Logger) (finalize.Archiver, error) {
	var sink proofarchive.Sink
	switch cfg.ArchiveDriver() {
	case config.ArchiveNone:
		return nil, nil
	case config.ArchiveFS:
		fsSink, err := proofarchive.NewFSSink(cfg.Proofs.Archive.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare proof archive dir: %w", err)
		}
		sink = fsSink
	case config.ArchiveS3:
		ac := cfg.Proofs.Archive
		s3Sink, err := proofarchive.NewS3Sink(ctx, proofarchive.S3Config{
			Bucket:    ac.Bucket,
			Region:    ac.Region,
			Endpoint:  ac.Endpoint,
			PathStyle: ac.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 proof archive: %w", err)
		}
		sink = s3Sink
	default:
		return nil, fmt.Errorf("unsupported archive driver %q", cfg.ArchiveDriver())
	}
	return proofarchive.New(sink, logger), nil
}
