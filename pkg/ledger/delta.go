package ledger

import "github.com/shopspring/decimal"

// Sign selects whether a delta adds to or withdraws from a stock.
type Sign int

const (
	Add      Sign = 1
	Withdraw Sign = -1
)

// ApplyDelta returns a new stock with every line item added (or withdrawn)
// according to sign. The input stock is never modified.
//
// Any resulting balance less than or equal to zero is removed from the map,
// so an exact withdrawal deletes the key and an over-withdrawal clamps to
// absent instead of going negative.
func ApplyDelta(current Stock, items LineItems, sign Sign) Stock {
	next := make(Stock, len(current)+len(items))
	for item, qty := range current {
		if qty.Sign() > 0 {
			next[item] = qty
		}
	}

	factor := decimal.NewFromInt(int64(sign))
	for item, qty := range items {
		balance := next[item].Add(qty.Mul(factor))
		if balance.Sign() <= 0 {
			delete(next, item)
			continue
		}
		next[item] = balance
	}

	return next
}

// SumStocks aggregates several stocks into one, used for the general stock view.
func SumStocks(stocks ...Stock) Stock {
	total := Stock{}
	for _, s := range stocks {
		total = ApplyDelta(total, LineItems(s), Add)
	}
	return total
}
