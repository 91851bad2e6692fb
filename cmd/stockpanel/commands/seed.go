package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dyluth/stockpanel/internal/config"
	"github.com/dyluth/stockpanel/internal/printer"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

func newSeedCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the panel configuration into the store",
		Long: `Write item lists, manager roles and the manager key into the store.

Values come from the seed block of stockpanel.yml; item lists fall back to
the built-in catalogue. Keys already present in the store are kept unless
--force is given. The manager key can also come from STOCKPANEL_MASTER_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return seed(cmd.Context(), store, seedValues(a.cfg.Seed), force, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite keys that already exist")
	return cmd
}

// seedValues completes the configured seed with the built-in item lists.
func seedValues(s *config.SeedConfig) []ledger.ConfigValue {
	merged := config.DefaultSeed()
	if s != nil {
		if len(s.FarmItems) > 0 {
			merged.FarmItems = s.FarmItems
		}
		if len(s.ProductionItems) > 0 {
			merged.ProductionItems = s.ProductionItems
		}
		merged.ManagerRoles = s.ManagerRoles
		merged.MasterKey = s.MasterKey
	}
	return merged.Values()
}

func seed(ctx context.Context, store ledger.Store, values []ledger.ConfigValue, force bool, w io.Writer) error {
	settings := ledger.NewSettings(store)
	printer.Step("seeding %d configuration key(s)\n", len(values))
	written := 0
	for _, v := range values {
		key := v.ConfigKey()
		if !force {
			_, err := store.GetConfig(ctx, key)
			if err == nil {
				fmt.Fprintf(w, "  %s: kept existing value\n", key)
				continue
			}
			if !errors.Is(err, ledger.ErrNotFound) {
				return fmt.Errorf("failed to read %s: %w", key, err)
			}
		}
		if err := settings.Set(ctx, v); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
		fmt.Fprintf(w, "  %s: written\n", key)
		written++
	}

	for _, missing := range []ledger.ConfigKey{ledger.ConfigKeyManagerRoles, ledger.ConfigKeyMasterKey} {
		if !hasKey(values, missing) {
			if _, err := store.GetConfig(ctx, missing); errors.Is(err, ledger.ErrNotFound) {
				printer.Warning("%s is not configured; manager actions stay locked\n", missing)
			}
		}
	}

	printer.Success("seeded %d configuration value(s)\n", written)
	return nil
}

func hasKey(values []ledger.ConfigValue, key ledger.ConfigKey) bool {
	for _, v := range values {
		if v.ConfigKey() == key {
			return true
		}
	}
	return false
}
