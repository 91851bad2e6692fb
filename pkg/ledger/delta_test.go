package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertStock(t *testing.T, want map[string]string, got Stock) {
	t.Helper()
	assert.Len(t, got, len(want))
	for item, qty := range want {
		have, ok := got[item]
		if assert.True(t, ok, "missing item %s", item) {
			assert.True(t, dec(qty).Equal(have), "item %s: want %s, got %s", item, qty, have)
		}
	}
}

func TestApplyDelta(t *testing.T) {
	t.Run("adds to existing and new items", func(t *testing.T) {
		current := Stock{"farinha": dec("10")}
		next := ApplyDelta(current, LineItems{"farinha": dec("500"), "folhas": dec("2.5")}, Add)
		assertStock(t, map[string]string{"farinha": "510", "folhas": "2.5"}, next)
	})

	t.Run("does not modify the input stock", func(t *testing.T) {
		current := Stock{"farinha": dec("10")}
		ApplyDelta(current, LineItems{"farinha": dec("5")}, Add)
		assert.True(t, dec("10").Equal(current["farinha"]))
	})

	t.Run("exact withdrawal removes the key", func(t *testing.T) {
		next := ApplyDelta(Stock{"folhas": dec("30")}, LineItems{"folhas": dec("30")}, Withdraw)
		assert.NotContains(t, next, "folhas")
	})

	t.Run("over-withdrawal clamps to absent", func(t *testing.T) {
		next := ApplyDelta(Stock{"folhas": dec("30")}, LineItems{"folhas": dec("50")}, Withdraw)
		assert.Empty(t, next)
	})

	t.Run("negative line item with add sign withdraws", func(t *testing.T) {
		next := ApplyDelta(Stock{"folhas": dec("30"), "embalagens": dec("4")}, LineItems{"folhas": dec("-50")}, Add)
		assertStock(t, map[string]string{"embalagens": "4"}, next)
	})

	t.Run("withdrawal of an absent item stays absent", func(t *testing.T) {
		next := ApplyDelta(Stock{}, LineItems{"farinha": dec("1")}, Withdraw)
		assert.Empty(t, next)
	})

	t.Run("never stores non-positive balances", func(t *testing.T) {
		current := Stock{"bad": dec("-3"), "zero": dec("0"), "ok": dec("1")}
		next := ApplyDelta(current, LineItems{"ok": dec("-0.5"), "new": dec("0")}, Add)
		assertStock(t, map[string]string{"ok": "0.5"}, next)
		for item, qty := range next {
			assert.True(t, qty.Sign() > 0, "item %s has balance %s", item, qty)
		}
	})

	t.Run("nil stock is treated as empty", func(t *testing.T) {
		next := ApplyDelta(nil, LineItems{"farinha": dec("3")}, Add)
		assertStock(t, map[string]string{"farinha": "3"}, next)
	})
}

func TestApplyDeltaRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		current Stock
		items   LineItems
	}{
		{"items already held", Stock{"farinha": dec("10"), "folhas": dec("4")}, LineItems{"farinha": dec("500"), "folhas": dec("4")}},
		{"items missing from stock", Stock{"farinha": dec("10")}, LineItems{"folhas": dec("30"), "embalagens": dec("2")}},
		{"fractional quantities", Stock{"folhas": dec("0.3")}, LineItems{"folhas": dec("0.1"), "farinha": dec("2.75")}},
		{"empty stock", Stock{}, LineItems{"folhas": dec("1.5")}},
		{"nil stock", nil, LineItems{"farinha": dec("7")}},
		{"zero balances are dropped", Stock{"folhas": dec("0"), "farinha": dec("1")}, LineItems{"farinha": dec("0.001")}},
		{"no items", Stock{"farinha": dec("3")}, LineItems{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := map[string]string{}
			for item, qty := range tt.current {
				if qty.IsPositive() {
					want[item] = qty.String()
				}
			}
			got := ApplyDelta(ApplyDelta(tt.current, tt.items, Add), tt.items, Withdraw)
			assertStock(t, want, got)
		})
	}
}

func TestSumStocks(t *testing.T) {
	total := SumStocks(
		Stock{"farinha": dec("10"), "folhas": dec("1")},
		Stock{"farinha": dec("5")},
		nil,
	)
	assertStock(t, map[string]string{"farinha": "15", "folhas": "1"}, total)
}
