package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/stockpanel/internal/printer"
	"github.com/dyluth/stockpanel/internal/txlog"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

func newStockCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Inspect owner stock",
	}

	var all bool
	show := &cobra.Command{
		Use:   "show [OWNER_ID]",
		Short: "Show one owner's stock, or the farm total across owners",
		Example: `  stockpanel stock show 1234
  stockpanel stock show --all`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if all {
				owners, err := store.ListOwners(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list owners: %w", err)
				}
				if len(owners) == 0 {
					printer.Info("No panels registered for instance '%s'\n", a.cfg.Instance)
					return nil
				}
				stocks := make([]ledger.Stock, 0, len(owners))
				for _, o := range owners {
					stocks = append(stocks, o.FarmStock)
				}
				txlog.FormatStock(w, &ledger.Owner{
					ID:        fmt.Sprintf("all %d owners", len(owners)),
					ChannelID: "-",
					FarmStock: ledger.SumStocks(stocks...),
				})
				return nil
			}

			owner, err := store.GetOwner(cmd.Context(), args[0])
			if ledger.IsNotFound(err) {
				return printer.Error(
					fmt.Sprintf("owner '%s' not found", args[0]),
					"This user has not created a panel yet.",
					[]string{"The owner must run /painel in their channel first"},
				)
			}
			if err != nil {
				return fmt.Errorf("failed to load owner: %w", err)
			}
			txlog.FormatStock(w, owner)
			return nil
		},
	}
	show.Flags().BoolVar(&all, "all", false, "Sum farm stock across all owners")
	cmd.AddCommand(show)
	return cmd
}
