package analytics

import (
	"sort"
	"time"

	"tradelens/internal/reconcile"
)

// Point is one sample of a cumulative series. PnL is the contribution of the
// trades at Time; it is zero for forward-filled samples.
type Point struct {
	Time    time.Time `json:"time"`
	Trader  string    `json:"trader,omitempty"`
	Value   float64   `json:"value"`
	PnL     float64   `json:"pnl"`
	WinRate float64   `json:"win_rate"`
}

type TraderLine struct {
	Trader string  `json:"trader"`
	Points []Point `json:"points"`
}

// DailyCounts holds per-trader trade counts for every day in Days, zeros included.
type DailyCounts struct {
	Days   []time.Time      `json:"days"`
	Counts map[string][]int `json:"counts"`
}

type SeriesSet struct {
	Overall       []Point      `json:"overall"`
	TraderPnL     []TraderLine `json:"trader_pnl"`
	TraderWinRate []TraderLine `json:"trader_win_rate"`
	Daily         DailyCounts  `json:"daily"`
}

// Series builds all projections over the successful trades.
func (a *Aggregator) Series(trades []reconcile.Trade) SeriesSet {
	ok := byTime(Successful(trades))
	groups, names := groupByTrader(ok)

	own := make(map[string][]Point, len(names))
	for _, name := range names {
		own[name] = collapse(cumulative(groups[name], name))
	}
	pnlLines := mergeOnTimeline(own, names, timeline(ok))

	rateLines := make([]TraderLine, len(pnlLines))
	for i, line := range pnlLines {
		pts := make([]Point, len(line.Points))
		for j, p := range line.Points {
			p.Value = p.WinRate
			pts[j] = p
		}
		rateLines[i] = TraderLine{Trader: line.Trader, Points: pts}
	}

	return SeriesSet{
		Overall:       cumulative(ok, ""),
		TraderPnL:     pnlLines,
		TraderWinRate: rateLines,
		Daily:         a.daily(groups, names, ok),
	}
}

// cumulative walks time-sorted trades once, one point per trade.
func cumulative(trades []reconcile.Trade, trader string) []Point {
	out := make([]Point, 0, len(trades))
	var total float64
	var wins int
	for i, t := range trades {
		pnl := *t.PnL
		total += pnl
		if pnl > 0 {
			wins++
		}
		out = append(out, Point{
			Time:    t.Timestamp,
			Trader:  trader,
			Value:   total,
			PnL:     pnl,
			WinRate: float64(wins) / float64(i+1) * 100,
		})
	}
	return out
}

// collapse keeps the last state per distinct time and sums contributions.
func collapse(points []Point) []Point {
	var out []Point
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Time.Equal(p.Time) {
			p.PnL += out[n-1].PnL
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func timeline(trades []reconcile.Trade) []time.Time {
	var out []time.Time
	for _, t := range trades {
		if n := len(out); n > 0 && out[n-1].Equal(t.Timestamp) {
			continue
		}
		out = append(out, t.Timestamp)
	}
	return out
}

// mergeOnTimeline aligns each trader's points to the shared timeline,
// carrying the last known value forward. A trader has no samples before
// its first trade.
func mergeOnTimeline(own map[string][]Point, names []string, times []time.Time) []TraderLine {
	lines := make([]TraderLine, 0, len(names))
	for _, name := range names {
		pts := own[name]
		var merged []Point
		j := -1
		for _, ts := range times {
			fresh := false
			for j+1 < len(pts) && !pts[j+1].Time.After(ts) {
				j++
				fresh = pts[j].Time.Equal(ts)
			}
			if j < 0 {
				continue
			}
			p := pts[j]
			p.Time = ts
			if !fresh {
				p.PnL = 0
			}
			merged = append(merged, p)
		}
		lines = append(lines, TraderLine{Trader: name, Points: merged})
	}
	return lines
}

func (a *Aggregator) daily(groups map[string][]reconcile.Trade, names []string, ok []reconcile.Trade) DailyCounts {
	dc := DailyCounts{Counts: make(map[string][]int, len(names))}
	if len(ok) == 0 {
		return dc
	}
	loc := a.location()
	first, last := dayOf(ok[0].Timestamp, loc), dayOf(ok[len(ok)-1].Timestamp, loc)
	index := map[string]int{}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		index[d.Format(dayKey)] = len(dc.Days)
		dc.Days = append(dc.Days, d)
	}
	for _, name := range names {
		counts := make([]int, len(dc.Days))
		for _, t := range groups[name] {
			counts[index[dayOf(t.Timestamp, loc).Format(dayKey)]]++
		}
		dc.Counts[name] = counts
	}
	return dc
}

const dayKey = "2006-01-02"

func dayOf(ts time.Time, loc *time.Location) time.Time {
	y, m, d := ts.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Traders lists the trader names present in a series set, sorted.
func (s SeriesSet) Traders() []string {
	names := make([]string, 0, len(s.Daily.Counts))
	for name := range s.Daily.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
