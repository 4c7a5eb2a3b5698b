package swap

import "math/big"

// TokenBalance is one entry of a transaction's pre or post token-balance
// list. Amount is the raw base-unit amount as a decimal string; UIAmount is
// the decimal-adjusted value.
type TokenBalance struct {
	Mint     string  `json:"mint"`
	Amount   string  `json:"amount"`
	UIAmount float64 `json:"ui_amount"`
	Decimals uint8   `json:"decimals"`
	Owner    string  `json:"owner"`
}

type holdingKey struct {
	owner string
	mint  string
}

// Summarize merges balance entries per (owner, mint). A transaction can touch
// several token accounts for the same holding (temporary WSOL accounts in
// particular); the analyzer only cares about per-holding totals. Distinct
// owners stay separate: the pool's vault for the traded mint must not cancel
// against the trader's account. Raw amounts are summed as big integers so
// base-unit totals never overflow or lose precision.
func Summarize(entries []TokenBalance) []TokenBalance {
	byHolding := make(map[holdingKey]*TokenBalance)
	order := make([]holdingKey, 0, len(entries))
	for _, entry := range entries {
		key := holdingKey{owner: entry.Owner, mint: entry.Mint}
		acc, ok := byHolding[key]
		if !ok {
			acc = &TokenBalance{
				Mint:     entry.Mint,
				Amount:   "0",
				Decimals: entry.Decimals,
				Owner:    entry.Owner,
			}
			byHolding[key] = acc
			order = append(order, key)
		}
		acc.Amount = addRawAmounts(acc.Amount, entry.Amount)
		acc.UIAmount += entry.UIAmount
	}
	out := make([]TokenBalance, 0, len(order))
	for _, key := range order {
		out = append(out, *byHolding[key])
	}
	return out
}

func addRawAmounts(a, b string) string {
	left, okA := new(big.Int).SetString(a, 10)
	right, okB := new(big.Int).SetString(b, 10)
	if !okA || !okB {
		if okA {
			return a
		}
		if okB {
			return b
		}
		return "0"
	}
	return left.Add(left, right).String()
}
