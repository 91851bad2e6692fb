package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/stockpanel/internal/config"
	"github.com/dyluth/stockpanel/internal/printer"
	"github.com/dyluth/stockpanel/internal/timespec"
	"github.com/dyluth/stockpanel/internal/txlog"
	"github.com/dyluth/stockpanel/pkg/ledger"
)

func newTxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Inspect the transaction log",
	}
	cmd.AddCommand(newTxListCmd(a), newTxPendingCmd(a), newTxWatchCmd(a))
	return cmd
}

type txListFlags struct {
	owner  string
	status string
	kind   string
	since  string
	until  string
	limit  int
	output string
}

func newTxListCmd(a *app) *cobra.Command {
	var f txListFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Long: `List transactions newest first.

Output Formats:
  default - Human-readable table
  jsonl   - Line-delimited JSON, one transaction per line

Time Filters:
  --since / --until accept a duration ("2h"), a date ("2026-10-01")
  or an RFC3339 timestamp.

Examples:
  # Last 50 transactions
  stockpanel tx list

  # One owner's production entries of the last day, for jq
  stockpanel tx list --owner 1234 --kind PRODUCE --since 24h -o jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listTransactions(cmd, ledger.TransactionFilter{
				TargetOwnerID: f.owner,
				Status:        ledger.ProofStatus(strings.ToUpper(f.status)),
				Limit:         f.limit,
			}, f)
		},
	}
	cmd.Flags().StringVar(&f.owner, "owner", "", "Only transactions targeting this owner id")
	cmd.Flags().StringVar(&f.status, "status", "", "Only transactions with this proof status")
	cmd.Flags().StringVar(&f.kind, "kind", "", "Filter by kind (glob pattern: REGISTER, PRO*)")
	cmd.Flags().StringVar(&f.since, "since", "", "Show transactions after time (duration, date or RFC3339)")
	cmd.Flags().StringVar(&f.until, "until", "", "Show transactions before time (duration, date or RFC3339)")
	cmd.Flags().IntVar(&f.limit, "limit", 50, "Maximum number of transactions read from the store")
	cmd.Flags().StringVarP(&f.output, "output", "o", "default", "Output format: default or jsonl")
	return cmd
}

func newTxPendingCmd(a *app) *cobra.Command {
	var f txListFlags
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List transactions still waiting for a proof decision",
		Long: `List PENDING transactions.

These were submitted but neither proven nor declined. Their stock has not
changed. Entries whose prompt expired stay in this list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listTransactions(cmd, ledger.TransactionFilter{
				TargetOwnerID: f.owner,
				Status:        ledger.ProofStatusPending,
				Limit:         f.limit,
			}, f)
		},
	}
	cmd.Flags().StringVar(&f.owner, "owner", "", "Only transactions targeting this owner id")
	cmd.Flags().IntVar(&f.limit, "limit", 50, "Maximum number of transactions listed")
	cmd.Flags().StringVarP(&f.output, "output", "o", "default", "Output format: default or jsonl")
	return cmd
}

func (a *app) listTransactions(cmd *cobra.Command, query ledger.TransactionFilter, f txListFlags) error {
	format, err := txlog.ParseFormat(f.output)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}
	if query.Status != "" {
		if err := query.Status.Validate(); err != nil {
			return printer.Error("invalid status", err.Error(),
				[]string{"Valid statuses: NONE, PENDING, WITH_PROOF, WITHOUT_PROOF, ADJUSTMENT, SEND_FAILED"})
		}
	}
	since, until, err := timespec.ParseRange(f.since, f.until, time.Now())
	if err != nil {
		return printer.Error("invalid time filter", err.Error(), nil)
	}

	store, err := openStore(cmd.Context(), a.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	filters := &txlog.FilterCriteria{Since: since, Until: until, KindGlob: strings.ToUpper(f.kind)}
	return txlog.ListTransactions(cmd.Context(), store, a.cfg.Instance, query, filters, format, cmd.OutOrStdout())
}

func newTxWatchCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream transactions as they are settled",
		Long: `Stream finalized transactions in real time.

Only the Redis store publishes settlement events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := txlog.ParseFormat(output)
			if err != nil {
				return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
			}
			if a.cfg.Store.Driver != config.DriverRedis {
				return printer.Error(
					"watch needs the redis store",
					fmt.Sprintf("Store driver '%s' does not publish settlement events.", a.cfg.Store.Driver),
					[]string{"Use `stockpanel tx list --since 10m` instead"},
				)
			}

			store, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			client := store.(*ledger.Client)
			sub, err := client.SubscribeTransactionEvents(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to subscribe: %w", err)
			}
			defer sub.Close()

			return txlog.StreamSettled(cmd.Context(), sub, format, cmd.OutOrStdout(), os.Stderr)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "default", "Output format: default or jsonl")
	return cmd
}
