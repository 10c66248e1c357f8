package reconcile

// AttemptKey groups signals by trader and simplified market slug.
type AttemptKey struct {
	Trader string
	Slug   string
}

func keyOf(t Trade) AttemptKey {
	return AttemptKey{Trader: t.Trader, Slug: Simplify(t.MarketSlug)}
}

// AttemptTotals sums the stated amounts of all signals per trader and market,
// whatever their status.
func AttemptTotals(trades []Trade) map[AttemptKey]float64 {
	totals := make(map[AttemptKey]float64, len(trades))
	for _, t := range trades {
		totals[keyOf(t)] += t.Amount
	}
	return totals
}

// BackfillAttempts returns a copy of trades with TotalAttempted set from
// AttemptTotals. The input slice is not modified.
func BackfillAttempts(trades []Trade) []Trade {
	totals := AttemptTotals(trades)
	out := make([]Trade, len(trades))
	for i, t := range trades {
		t.TotalAttempted = totals[keyOf(t)]
		out[i] = t
	}
	return out
}
