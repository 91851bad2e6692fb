package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Stocks and line items are
// JSON-encoded into single hash fields; quantities are encoded as decimal strings
// so no precision is lost.

// OwnerToHash converts an Owner to a Redis hash.
func OwnerToHash(o *Owner) (map[string]interface{}, error) {
	farm, err := EncodeStock(o.FarmStock)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal farm stock: %w", err)
	}
	production, err := EncodeStock(o.ProductionStock)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal production stock: %w", err)
	}

	return map[string]interface{}{
		"owner_id":         o.ID,
		"channel_id":       o.ChannelID,
		"display_name":     o.DisplayName,
		"farm_stock":       farm,
		"production_stock": production,
	}, nil
}

// HashToOwner converts a Redis hash to an Owner.
func HashToOwner(hash map[string]string) (*Owner, error) {
	farm, err := DecodeStock(hash["farm_stock"])
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal farm_stock: %w", err)
	}
	production, err := DecodeStock(hash["production_stock"])
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal production_stock: %w", err)
	}

	return &Owner{
		ID:              hash["owner_id"],
		ChannelID:       hash["channel_id"],
		DisplayName:     hash["display_name"],
		FarmStock:       farm,
		ProductionStock: production,
	}, nil
}

// TransactionToHash converts a Transaction to a Redis hash.
// A nil proof URL is stored as an empty string.
func TransactionToHash(t *Transaction) (map[string]interface{}, error) {
	items, err := json.Marshal(t.LineItems)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal line items: %w", err)
	}

	proofURL := ""
	if t.ProofURL != nil {
		proofURL = *t.ProofURL
	}

	return map[string]interface{}{
		"transaction_id":  t.ID,
		"kind":            string(t.Kind),
		"executor_id":     t.ExecutorID,
		"target_owner_id": t.TargetOwnerID,
		"line_items":      string(items),
		"proof_status":    string(t.ProofStatus),
		"proof_url":       proofURL,
		"created_at_ms":   t.CreatedAt.UnixMilli(),
	}, nil
}

// HashToTransaction converts a Redis hash to a Transaction.
func HashToTransaction(hash map[string]string) (*Transaction, error) {
	id, err := strconv.ParseInt(hash["transaction_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction_id field: %w", err)
	}

	items := LineItems{}
	if raw := hash["line_items"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal line_items: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &Transaction{
		ID:            id,
		Kind:          Kind(hash["kind"]),
		ExecutorID:    hash["executor_id"],
		TargetOwnerID: hash["target_owner_id"],
		LineItems:     items,
		ProofStatus:   ProofStatus(hash["proof_status"]),
		ProofURL:      optionalString(hash["proof_url"]),
		CreatedAt:     time.UnixMilli(createdAtMs).UTC(),
	}, nil
}

// EncodeStock returns the JSON text stored for a stock. A nil stock encodes as "{}".
func EncodeStock(s Stock) (string, error) {
	if s == nil {
		return "{}", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeStock parses stored stock JSON. Blank input yields an empty stock.
func DecodeStock(raw string) (Stock, error) {
	stock := Stock{}
	if raw == "" {
		return stock, nil
	}
	if err := json.Unmarshal([]byte(raw), &stock); err != nil {
		return nil, err
	}
	return stock, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
