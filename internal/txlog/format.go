package txlog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/stockpanel/pkg/ledger"
)

// FormatTable writes transactions as a table with columns ID, KIND, OWNER,
// STATUS, AGE and ITEMS. Returns the number of transactions written.
func FormatTable(w io.Writer, txs []*ledger.Transaction, instanceName string) int {
	if len(txs) == 0 {
		fmt.Fprintf(w, "No transactions found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Transactions for instance '%s':\n\n", instanceName)
	fmt.Fprintf(w, "%-6s %-9s %-20s %-13s %-8s %s\n",
		"ID", "KIND", "OWNER", "STATUS", "AGE", "ITEMS")
	fmt.Fprintf(w, "%-6s %-9s %-20s %-13s %-8s %s\n",
		"------", "---------", "--------------------", "-------------", "--------", "----------------------------------------")

	for _, t := range txs {
		fmt.Fprintf(w, "%-6d %-9s %-20s %-13s %-8s %s\n",
			t.ID,
			t.Kind.Label(),
			formatOwner(t.TargetOwnerID),
			t.ProofStatus,
			formatAge(t.CreatedAt),
			formatItems(t.LineItems),
		)
	}

	noun := "transaction"
	if len(txs) != 1 {
		noun = "transactions"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(txs), noun)
	return len(txs)
}

// FormatJSONL writes one compact JSON object per line, for piping into jq.
func FormatJSONL(w io.Writer, txs []*ledger.Transaction) error {
	for _, t := range txs {
		if err := writeJSONLine(w, t); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

// FormatStock writes an owner's two stocks as aligned item/quantity lines.
func FormatStock(w io.Writer, owner *ledger.Owner) {
	name := owner.DisplayName
	if name == "" {
		name = owner.ID
	}
	fmt.Fprintf(w, "Stock for %s (channel %s):\n", name, owner.ChannelID)
	writeStock(w, "Farm", owner.FarmStock)
	writeStock(w, "Production", owner.ProductionStock)
}

func writeStock(w io.Writer, title string, stock ledger.Stock) {
	fmt.Fprintf(w, "\n  %s\n", title)
	if len(stock) == 0 {
		fmt.Fprintln(w, "    (empty)")
		return
	}
	for _, id := range stock.Keys() {
		fmt.Fprintf(w, "    %-24s %s\n", id, stock[id].String())
	}
}

func formatOwner(id string) string {
	if len(id) > 20 {
		return id[:17] + "..."
	}
	return id
}

// formatItems renders line items as "id=qty" pairs, truncated to 40 characters.
func formatItems(items ledger.LineItems) string {
	if len(items) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(items))
	for _, id := range items.Keys() {
		parts = append(parts, id+"="+items[id].String())
	}
	s := strings.Join(parts, " ")
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}

// formatAge shows how long ago t was, like "2m ago".
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
