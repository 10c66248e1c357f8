package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/reconcile"
	"tradelens/internal/signal"
)

var day0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func trade(trader, outcome, category string, pnl float64, at time.Time) reconcile.Trade {
	p := pnl
	amount := 10.0
	return reconcile.Trade{
		Event: signal.Event{
			Trader:    trader,
			Timestamp: at,
			Detail: signal.Detail{
				Action:     signal.ActionBuy,
				Outcome:    outcome,
				Amount:     amount,
				MarketSlug: "m-" + trader,
				Status:     signal.StatusSuccess,
			},
		},
		Category:       category,
		PositionStatus: reconcile.PositionClosed,
		PnL:            &p,
		ExecAmount:     &amount,
	}
}

func failed(trader string, at time.Time) reconcile.Trade {
	return reconcile.Trade{Event: signal.Event{
		Trader:    trader,
		Timestamp: at,
		Detail:    signal.Detail{Amount: 5, Status: signal.StatusFailed},
	}}
}

func newAggregator() *Aggregator {
	return &Aggregator{
		Location: time.UTC,
		Now:      func() time.Time { return day0.Add(24 * time.Hour) },
	}
}

func TestSuccessfulFilter(t *testing.T) {
	open := trade("a", "Yes", "Other", 1, day0)
	open.PositionStatus = reconcile.PositionActive
	noPnl := trade("a", "Yes", "Other", 1, day0)
	noPnl.PnL = nil
	noPosition := trade("a", "Yes", "Other", 1, day0)
	noPosition.PositionStatus = reconcile.PositionNone
	got := Successful([]reconcile.Trade{open, noPnl, noPosition, failed("a", day0)})
	require.Len(t, got, 1)
	assert.Equal(t, reconcile.PositionActive, got[0].PositionStatus)
}

func TestTraderStats(t *testing.T) {
	closedAt := day0.Add(6 * time.Hour)
	t1 := trade("alice", "Yes", "Sports", 30, day0)
	t1.ClosedDate = &closedAt
	t2 := trade("alice", "No", "Sports", -10, day0.Add(48*time.Hour))
	t3 := trade("alice", "Yes", "Other", 20, day0.Add(96*time.Hour))
	trades := []reconcile.Trade{t1, failed("alice", day0), t2, t3, failed("bob", day0)}

	stats := newAggregator().TraderStats(trades)
	require.Len(t, stats, 2)

	a := stats[0]
	assert.Equal(t, "alice", a.Trader)
	assert.Equal(t, 3, a.Trades)
	assert.Equal(t, 4, a.TotalAttempts)
	assert.InDelta(t, 40, a.TotalPnL, 1e-9)
	assert.InDelta(t, 200.0/3, a.WinRate, 1e-9)
	assert.InDelta(t, 5, a.ProfitFactor, 1e-9)
	assert.InDelta(t, 2, a.LongShortRatio, 1e-9)
	assert.InDelta(t, 10, a.AvgBet, 1e-9)
	assert.InDelta(t, 30, a.BestTrade, 1e-9)
	assert.InDelta(t, -10, a.WorstTrade, 1e-9)
	// t1 held 6h, t2 and t3 end in the future relative to the clock and are excluded.
	assert.InDelta(t, 6, a.AvgHoldingHours, 1e-9)
	assert.InDelta(t, 0.75, a.TradesPerDay, 1e-9)
	assert.Equal(t, "Sports", a.FavoriteCategory)

	b := stats[1]
	assert.Equal(t, "bob", b.Trader)
	assert.Equal(t, 1, b.TotalAttempts)
	assert.Zero(t, b.Trades)
	assert.Zero(t, b.TotalPnL)
}

func TestAvgBetUsesMatchedAmountsOnly(t *testing.T) {
	matched := trade("alice", "Yes", "Other", 5, day0)
	exec := 40.0
	matched.ExecAmount = &exec
	unmatched := trade("alice", "Yes", "Other", 5, day0.Add(time.Hour))
	unmatched.ExecAmount = nil
	unmatched.Amount = 1000

	stats := newAggregator().TraderStats([]reconcile.Trade{matched, unmatched})
	require.Len(t, stats, 1)
	assert.InDelta(t, 40, stats[0].AvgBet, 1e-9)

	unmatchedOnly := newAggregator().TraderStats([]reconcile.Trade{unmatched})
	assert.Zero(t, unmatchedOnly[0].AvgBet)
}

func TestProfitFactorWithoutLosses(t *testing.T) {
	trades := []reconcile.Trade{
		trade("alice", "Yes", "Other", 12, day0),
		trade("alice", "Yes", "Other", 8, day0.Add(time.Hour)),
	}
	s := newAggregator().TraderStats(trades)[0]
	assert.InDelta(t, 20, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 2, s.LongShortRatio, 1e-9)
	assert.InDelta(t, 2, s.TradesPerDay, 1e-9)
}

func TestFavoriteCategoryTieIsAlphabetical(t *testing.T) {
	trades := []reconcile.Trade{
		trade("alice", "Yes", "Sports", 1, day0),
		trade("alice", "Yes", "Other", 1, day0),
	}
	assert.Equal(t, "Other", newAggregator().TraderStats(trades)[0].FavoriteCategory)
}

func TestOverallSeriesIsCumulative(t *testing.T) {
	trades := []reconcile.Trade{
		trade("bob", "Yes", "Other", -5, day0.Add(2*time.Hour)),
		trade("alice", "Yes", "Other", 10, day0),
		failed("alice", day0.Add(time.Hour)),
		trade("alice", "No", "Other", 3, day0.Add(3*time.Hour)),
	}
	s := newAggregator().Series(trades)
	require.Len(t, s.Overall, 3)
	for k := 1; k < len(s.Overall); k++ {
		assert.False(t, s.Overall[k].Time.Before(s.Overall[k-1].Time))
		assert.InDelta(t, s.Overall[k-1].Value+s.Overall[k].PnL, s.Overall[k].Value, 1e-9)
	}
	assert.InDelta(t, 8, s.Overall[2].Value, 1e-9)
	assert.InDelta(t, 200.0/3, s.Overall[2].WinRate, 1e-9)
}

func TestTraderSeriesForwardFill(t *testing.T) {
	trades := []reconcile.Trade{
		trade("alice", "Yes", "Other", 10, day0),
		trade("bob", "Yes", "Other", -5, day0.Add(time.Hour)),
		trade("alice", "Yes", "Other", -4, day0.Add(2*time.Hour)),
	}
	s := newAggregator().Series(trades)
	require.Len(t, s.TraderPnL, 2)

	alice := s.TraderPnL[0]
	assert.Equal(t, "alice", alice.Trader)
	require.Len(t, alice.Points, 3)
	assert.InDelta(t, 10, alice.Points[1].Value, 1e-9)
	assert.Zero(t, alice.Points[1].PnL)
	assert.InDelta(t, 6, alice.Points[2].Value, 1e-9)

	bob := s.TraderPnL[1]
	require.Len(t, bob.Points, 2, "no samples before the first trade")
	assert.True(t, bob.Points[0].Time.Equal(day0.Add(time.Hour)))
	assert.InDelta(t, -5, bob.Points[1].Value, 1e-9)

	rate := s.TraderWinRate[0]
	assert.InDelta(t, 100, rate.Points[0].Value, 1e-9)
	assert.InDelta(t, 50, rate.Points[2].Value, 1e-9)
}

func TestDailyCountsIncludeZeros(t *testing.T) {
	trades := []reconcile.Trade{
		trade("alice", "Yes", "Other", 1, day0),
		trade("alice", "Yes", "Other", 1, day0.Add(time.Hour)),
		trade("bob", "Yes", "Other", 1, day0.Add(72*time.Hour)),
	}
	d := newAggregator().Series(trades).Daily
	require.Len(t, d.Days, 4)
	assert.Equal(t, []int{2, 0, 0, 0}, d.Counts["alice"])
	assert.Equal(t, []int{0, 0, 0, 1}, d.Counts["bob"])
	assert.Equal(t, []string{"alice", "bob"}, newAggregator().Series(trades).Traders())
}

func TestDailyBucketsUseLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	a := &Aggregator{Location: loc}
	late := time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC) // 21:00 on Mar 1 at UTC-5
	d := a.Series([]reconcile.Trade{trade("alice", "Yes", "Other", 1, late)}).Daily
	require.Len(t, d.Days, 1)
	assert.Equal(t, 1, d.Days[0].Day())
}

func TestSummarizeIsDeterministic(t *testing.T) {
	trades := []reconcile.Trade{
		trade("alice", "Yes", "Other", 1, day0),
		trade("bob", "No", "Sports", -2, day0),
	}
	a := newAggregator()
	assert.Equal(t, a.Summarize(trades), a.Summarize(trades))
}
