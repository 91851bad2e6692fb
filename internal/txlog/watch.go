package txlog

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/stockpanel/pkg/ledger"
)

// EventSource delivers settled transactions; *ledger.Subscription satisfies it.
type EventSource interface {
	Events() <-chan *ledger.Transaction
	Errors() <-chan error
}

// StreamSettled writes each settled transaction as it arrives until ctx is
// cancelled or the source closes. Decode errors are reported to errw and
// streaming continues.
func StreamSettled(ctx context.Context, src EventSource, format OutputFormat, w, errw io.Writer) error {
	if format != OutputFormatDefault && format != OutputFormatJSONL {
		return fmt.Errorf("unknown output format: %s", format)
	}

	errs := src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(errw, "⚠️  %v\n", err)
		case t, ok := <-src.Events():
			if !ok {
				return nil
			}
			if err := writeEvent(w, t, format); err != nil {
				return err
			}
		}
	}
}

func writeEvent(w io.Writer, t *ledger.Transaction, format OutputFormat) error {
	if format == OutputFormatJSONL {
		return writeJSONLine(w, t)
	}
	at := t.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := fmt.Fprintf(w, "[%s] ✅ #%d %s %s by %s: %s\n",
		at.Format("15:04:05"), t.ID, t.Kind.Label(), t.ProofStatus,
		t.ExecutorID, formatItems(t.LineItems))
	return err
}
