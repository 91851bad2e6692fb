package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies what a transaction does to an owner's stock.
type Kind string

const (
	// KindRegister adds farm items to the owner's farm stock once proof is settled.
	KindRegister Kind = "REGISTER"

	// KindProduce adds produced items to the owner's production stock once proof is settled.
	KindProduce Kind = "PRODUCE"

	// KindAdjust is a manual, signed correction of the farm stock applied immediately.
	KindAdjust Kind = "ADJUST"
)

// Validate checks if the Kind is a valid enum value.
func (k Kind) Validate() error {
	switch k {
	case KindRegister, KindProduce, KindAdjust:
		return nil
	default:
		return fmt.Errorf("unknown transaction kind: %q", k)
	}
}

// Label returns the Portuguese label shown to chat users.
func (k Kind) Label() string {
	switch k {
	case KindRegister:
		return "REGISTRO"
	case KindProduce:
		return "PRODUCAO"
	case KindAdjust:
		return "AJUSTE"
	default:
		return string(k)
	}
}

// ProofStatus tracks the proof lifecycle of a transaction.
type ProofStatus string

const (
	// ProofStatusNone is the sentinel stored when a transaction is added without a status.
	ProofStatusNone ProofStatus = "NONE"

	// ProofStatusPending marks a transaction waiting for the submitter's proof decision.
	ProofStatusPending ProofStatus = "PENDING"

	// ProofStatusWithProof marks a transaction committed with an attachment reference.
	ProofStatusWithProof ProofStatus = "WITH_PROOF"

	// ProofStatusWithoutProof marks a transaction the submitter committed without proof.
	ProofStatusWithoutProof ProofStatus = "WITHOUT_PROOF"

	// ProofStatusAdjustment marks a manual adjustment; it never goes through the proof flow.
	ProofStatusAdjustment ProofStatus = "ADJUSTMENT"

	// ProofStatusSendFailed marks a transaction whose proof prompt could not be delivered.
	ProofStatusSendFailed ProofStatus = "SEND_FAILED"
)

// Validate checks if the ProofStatus is a valid enum value.
func (s ProofStatus) Validate() error {
	switch s {
	case ProofStatusNone, ProofStatusPending, ProofStatusWithProof,
		ProofStatusWithoutProof, ProofStatusAdjustment, ProofStatusSendFailed:
		return nil
	default:
		return fmt.Errorf("unknown proof status: %q", s)
	}
}

// IsTerminal reports whether no further status transition is allowed.
func (s ProofStatus) IsTerminal() bool {
	switch s {
	case ProofStatusWithProof, ProofStatusWithoutProof, ProofStatusAdjustment, ProofStatusSendFailed:
		return true
	default:
		return false
	}
}

// Category selects which item rule list applies to an input form.
type Category string

const (
	CategoryFarm       Category = "FARM"
	CategoryProduction Category = "PRODUCTION"
)

// ConfigKey returns the configuration key holding the category's item rules.
func (c Category) ConfigKey() ConfigKey {
	if c == CategoryProduction {
		return ConfigKeyProductionItems
	}
	return ConfigKeyFarmItems
}

// Stock maps item identifiers to held quantities. Keys with a zero or
// negative balance are never stored.
type Stock map[string]decimal.Decimal

// LineItems maps item identifiers to the signed quantity a transaction moves.
type LineItems map[string]decimal.Decimal

// Keys returns the item identifiers in lexical order.
func (s Stock) Keys() []string {
	return sortedKeys(s)
}

// Keys returns the item identifiers in lexical order.
func (l LineItems) Keys() []string {
	return sortedKeys(l)
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Owner is the panel owner together with both of their stocks.
type Owner struct {
	ID              string `json:"owner_id"`
	ChannelID       string `json:"channel_id"`
	DisplayName     string `json:"display_name"`
	FarmStock       Stock  `json:"farm_stock"`
	ProductionStock Stock  `json:"production_stock"`
}

// Transaction is one recorded stock movement.
type Transaction struct {
	ID            int64       `json:"transaction_id"`
	Kind          Kind        `json:"kind"`
	ExecutorID    string      `json:"executor_id"`
	TargetOwnerID string      `json:"target_owner_id"`
	LineItems     LineItems   `json:"line_items"`
	ProofStatus   ProofStatus `json:"proof_status"`
	ProofURL      *string     `json:"proof_url,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Validate checks the fields a store needs before persisting a new transaction.
func (t *Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if t.ExecutorID == "" {
		return fmt.Errorf("executor id cannot be empty")
	}
	if t.TargetOwnerID == "" {
		return fmt.Errorf("target owner id cannot be empty")
	}
	if t.ProofStatus != "" {
		if err := t.ProofStatus.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TransactionFilter narrows ListTransactions. Empty fields do not filter.
type TransactionFilter struct {
	TargetOwnerID string
	Status        ProofStatus
	Limit         int
}

// DefaultListLimit is used when a filter does not set a positive limit.
const DefaultListLimit = 10
