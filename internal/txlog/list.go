package txlog

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dyluth/stockpanel/pkg/ledger"
)

// OutputFormat specifies how list and watch output is written.
type OutputFormat string

const (
	// OutputFormatDefault uses a human-readable table or line per event
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete transactions as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseFormat maps a --output flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	case "json":
		return OutputFormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// FilterCriteria narrows what the store returned. All filters are ANDed.
type FilterCriteria struct {
	Since    time.Time // zero = no lower bound
	Until    time.Time // zero = no upper bound
	KindGlob string    // glob on the kind, e.g. "PRO*"
}

func (fc *FilterCriteria) matches(t *ledger.Transaction) bool {
	if !fc.Since.IsZero() && t.CreatedAt.Before(fc.Since) {
		return false
	}
	if !fc.Until.IsZero() && t.CreatedAt.After(fc.Until) {
		return false
	}
	if fc.KindGlob != "" {
		matched, err := filepath.Match(fc.KindGlob, string(t.Kind))
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// Lister is the part of ledger.Store the log commands read from.
type Lister interface {
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error)
}

// ListTransactions queries store with query, applies filters and writes the
// result newest first in the requested format.
func ListTransactions(ctx context.Context, store Lister, instanceName string, query ledger.TransactionFilter, filters *FilterCriteria, format OutputFormat, w io.Writer) error {
	txs, err := store.ListTransactions(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	if filters != nil {
		kept := txs[:0]
		for _, t := range txs {
			if filters.matches(t) {
				kept = append(kept, t)
			}
		}
		txs = kept
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, txs, instanceName)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, txs); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}
