package analytics

import (
	"math"
	"sort"

	"tradelens/internal/reconcile"
)

type TraderStats struct {
	Trader           string  `json:"trader"`
	Trades           int     `json:"trades"`
	TotalAttempts    int     `json:"total_attempts"`
	TotalPnL         float64 `json:"total_pnl"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	LongShortRatio   float64 `json:"long_short_ratio"`
	AvgBet           float64 `json:"avg_bet"`
	BestTrade        float64 `json:"best_trade"`
	WorstTrade       float64 `json:"worst_trade"`
	AvgHoldingHours  float64 `json:"avg_holding_hours"`
	TradesPerDay     float64 `json:"trades_per_day"`
	FavoriteCategory string  `json:"favorite_category"`
}

// TraderStats returns one entry per trader seen in any signal, sorted by name.
// Attempts count every signal; the remaining figures use successful trades only.
func (a *Aggregator) TraderStats(trades []reconcile.Trade) []TraderStats {
	all, names := groupByTrader(trades)
	ok, _ := groupByTrader(Successful(trades))
	out := make([]TraderStats, 0, len(names))
	for _, name := range names {
		s := a.statsFor(ok[name])
		s.Trader = name
		s.TotalAttempts = len(all[name])
		out = append(out, s)
	}
	return out
}

func (a *Aggregator) statsFor(trades []reconcile.Trade) TraderStats {
	var s TraderStats
	if len(trades) == 0 {
		return s
	}
	s.Trades = len(trades)
	s.BestTrade, s.WorstTrade = math.Inf(-1), math.Inf(1)

	var wins, longs, shorts, held, matched int
	var grossWin, grossLoss, bets, hours float64
	categories := map[string]int{}
	first, last := trades[0].Timestamp, trades[0].Timestamp
	now := a.now()

	for _, t := range trades {
		pnl := *t.PnL
		s.TotalPnL += pnl
		s.BestTrade = math.Max(s.BestTrade, pnl)
		s.WorstTrade = math.Min(s.WorstTrade, pnl)
		switch {
		case pnl > 0:
			wins++
			grossWin += pnl
		case pnl < 0:
			grossLoss += -pnl
		}

		switch reconcile.Simplify(t.Outcome) {
		case "yes":
			longs++
		case "no":
			shorts++
		}

		if t.ExecAmount != nil {
			bets += *t.ExecAmount
			matched++
		}

		end := now
		if t.ClosedDate != nil {
			end = *t.ClosedDate
		}
		if h := end.Sub(t.Timestamp).Hours(); h > 0 {
			hours += h
			held++
		}

		categories[t.Category]++
		if t.Timestamp.Before(first) {
			first = t.Timestamp
		}
		if t.Timestamp.After(last) {
			last = t.Timestamp
		}
	}

	n := float64(len(trades))
	s.WinRate = float64(wins) / n * 100
	if grossLoss == 0 {
		s.ProfitFactor = grossWin
	} else {
		s.ProfitFactor = grossWin / grossLoss
	}
	if shorts == 0 {
		s.LongShortRatio = float64(longs)
	} else {
		s.LongShortRatio = float64(longs) / float64(shorts)
	}
	if matched > 0 {
		s.AvgBet = bets / float64(matched)
	}
	if held > 0 {
		s.AvgHoldingHours = hours / float64(held)
	}
	s.TradesPerDay = n / math.Max(1, last.Sub(first).Hours()/24)
	s.FavoriteCategory = mode(categories)
	return s
}

// mode returns the most frequent key; ties resolve to the smallest key.
func mode(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestN := "", 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}
