package analytics

import (
	"sort"
	"time"

	"tradelens/internal/reconcile"
	"tradelens/internal/signal"
)

// Aggregator derives trader statistics and time series from reconciled trades.
type Aggregator struct {
	// Location is used for calendar-day bucketing; nil means time.Local.
	Location *time.Location
	// Now is the clock for open holding periods; nil means time.Now.
	Now func() time.Time
}

type Summary struct {
	Stats  []TraderStats `json:"stats"`
	Series SeriesSet     `json:"series"`
}

func (a *Aggregator) Summarize(trades []reconcile.Trade) Summary {
	return Summary{
		Stats:  a.TraderStats(trades),
		Series: a.Series(trades),
	}
}

// Successful keeps trades that executed, matched a position and have a PnL.
func Successful(trades []reconcile.Trade) []reconcile.Trade {
	out := make([]reconcile.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status != signal.StatusSuccess || t.PnL == nil {
			continue
		}
		if t.PositionStatus != reconcile.PositionActive && t.PositionStatus != reconcile.PositionClosed {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (a *Aggregator) location() *time.Location {
	if a == nil || a.Location == nil {
		return time.Local
	}
	return a.Location
}

func (a *Aggregator) now() time.Time {
	if a == nil || a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// byTime returns a copy sorted by signal time; equal times keep log order.
func byTime(trades []reconcile.Trade) []reconcile.Trade {
	out := make([]reconcile.Trade, len(trades))
	copy(out, trades)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func groupByTrader(trades []reconcile.Trade) (map[string][]reconcile.Trade, []string) {
	groups := map[string][]reconcile.Trade{}
	var names []string
	for _, t := range trades {
		if _, ok := groups[t.Trader]; !ok {
			names = append(names, t.Trader)
		}
		groups[t.Trader] = append(groups[t.Trader], t)
	}
	sort.Strings(names)
	return groups, names
}
