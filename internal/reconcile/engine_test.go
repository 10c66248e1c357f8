package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/normalize"
	"tradelens/internal/signal"
)

var t0 = time.Unix(1_700_000_000, 0)

func f(v float64) *float64 { return &v }

func buyEvent(seq int, trader, outcome, slug string, amount float64, at time.Time) signal.Event {
	return signal.Event{
		Seq:       seq,
		Trader:    trader,
		Timestamp: at,
		Detail: signal.Detail{
			Action:      signal.ActionBuy,
			Outcome:     outcome,
			Amount:      amount,
			MarketTitle: "Team A Wins",
			MarketSlug:  slug,
			Status:      signal.StatusSuccess,
		},
	}
}

func activityRow(outcome string, at time.Time) normalize.Row {
	return normalize.Row{
		Partition: normalize.PartitionActivity,
		Asset:     "asset-1",
		Slug:      "team-a-wins-game1",
		Outcome:   outcome,
		Side:      "BUY",
		AvgPrice:  f(0.40),
		Size:      f(125),
		Timestamp: at.Unix(),
		TxHash:    "0xabc",
	}
}

func newEngine() *Engine {
	return &Engine{TolerateMissingOutcome: true}
}

func TestExactActivityMatch(t *testing.T) {
	in := Input{
		Events:    []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)},
		Portfolio: normalize.Partitioned{Activity: []normalize.Row{activityRow("Yes", t0.Add(300*time.Second))}},
	}
	trades := newEngine().Run(in)
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, ConfidenceExact, tr.Confidence)
	require.NotNil(t, tr.ExecAmount)
	assert.InDelta(t, 50, *tr.ExecAmount, 1e-9)
	require.NotNil(t, tr.LatencySeconds)
	assert.InDelta(t, 300, *tr.LatencySeconds, 1e-9)
	assert.Equal(t, "0xabc", tr.TxHash)
	assert.Equal(t, signal.StatusSuccess, tr.Status)
	assert.Equal(t, PositionNone, tr.PositionStatus)
	assert.Nil(t, tr.PnL)
}

func TestOutcomeMismatchFallsThrough(t *testing.T) {
	in := Input{
		Events:    []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)},
		Portfolio: normalize.Partitioned{Activity: []normalize.Row{activityRow("No", t0.Add(300*time.Second))}},
	}
	tr := newEngine().Run(in)[0]
	assert.Equal(t, ConfidenceNone, tr.Confidence)
	assert.Equal(t, signal.StatusNotExecuted, tr.Status)
	assert.Equal(t, ReasonNotExecuted, tr.FailureReason)
	assert.Nil(t, tr.PnL)
}

func TestOutcomeMismatchUsesInferredPosition(t *testing.T) {
	in := Input{
		Events: []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)},
		Portfolio: normalize.Partitioned{
			Activity: []normalize.Row{activityRow("No", t0.Add(300*time.Second))},
			Active: []normalize.Row{{
				Slug: "team-a-wins", Outcome: "Yes", AvgPrice: f(0.5), CurPrice: f(0.6), Size: f(100),
				URL: "https://polymarket.com/event/team-a-wins",
			}},
		},
	}
	tr := newEngine().Run(in)[0]
	assert.Equal(t, ConfidenceInferred, tr.Confidence)
	assert.Equal(t, PositionActive, tr.PositionStatus)
	assert.Equal(t, ResultOpen, tr.Result)
	require.NotNil(t, tr.PnL)
	assert.InDelta(t, 10, *tr.PnL, 1e-9)
	require.NotNil(t, tr.ExecAmount)
	assert.InDelta(t, 50, *tr.ExecAmount, 1e-9)
	assert.Equal(t, "https://polymarket.com/event/team-a-wins", tr.MarketURL)
}

func TestActivityOutsideWindowIgnored(t *testing.T) {
	in := Input{
		Events:    []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)},
		Portfolio: normalize.Partitioned{Activity: []normalize.Row{activityRow("Yes", t0.Add(time.Hour))}},
	}
	tr := newEngine().Run(in)[0]
	assert.Equal(t, signal.StatusNotExecuted, tr.Status)
}

func TestNearestActivityWinsAndTiesKeepFirst(t *testing.T) {
	far := activityRow("Yes", t0.Add(20*time.Minute))
	far.TxHash = "far"
	nearA := activityRow("Yes", t0.Add(-5*time.Minute))
	nearA.TxHash = "nearA"
	nearB := activityRow("Yes", t0.Add(5*time.Minute))
	nearB.TxHash = "nearB"
	in := Input{
		Events:    []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)},
		Portfolio: normalize.Partitioned{Activity: []normalize.Row{far, nearA, nearB}},
	}
	tr := newEngine().Run(in)[0]
	assert.Equal(t, "nearA", tr.TxHash)
	require.NotNil(t, tr.LatencySeconds)
	assert.InDelta(t, -300, *tr.LatencySeconds, 1e-9)
}

func TestSideMustMatchAction(t *testing.T) {
	row := activityRow("Yes", t0)
	row.Side = "SELL"
	in := Input{
		Events:    []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)},
		Portfolio: normalize.Partitioned{Activity: []normalize.Row{row}},
	}
	assert.Equal(t, ConfidenceNone, newEngine().Run(in)[0].Confidence)
}

func TestExclusiveClaimAndOrderSensitivity(t *testing.T) {
	act := activityRow("Yes", t0.Add(time.Minute))
	closed := normalize.Row{Slug: "team-a-wins", Outcome: "Yes", RealizedPnl: f(12), Timestamp: t0.Add(48 * time.Hour).Unix()}
	first := buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)
	second := buyEvent(1, "bob", "Yes", "team-a-wins", 40, t0.Add(2*time.Minute))
	p := normalize.Partitioned{Activity: []normalize.Row{act}, Closed: []normalize.Row{closed}}

	trades := newEngine().Run(Input{Events: []signal.Event{first, second}, Portfolio: p})
	require.Len(t, trades, 2)
	assert.Equal(t, ConfidenceExact, trades[0].Confidence)
	assert.Equal(t, ConfidenceInferred, trades[1].Confidence)

	reversed := newEngine().Run(Input{Events: []signal.Event{second, first}, Portfolio: p})
	assert.Equal(t, "bob", reversed[0].Trader)
	assert.Equal(t, ConfidenceExact, reversed[0].Confidence)
	assert.Equal(t, ConfidenceInferred, reversed[1].Confidence)

	exact := map[string]int{}
	for _, tr := range append(trades, reversed...) {
		if tr.Confidence == ConfidenceExact {
			exact[tr.TxHash+tr.Trader]++
		}
	}
	for k, n := range exact {
		assert.Equal(t, 1, n, k)
	}
}

func TestClaimsDoNotLeakAcrossRuns(t *testing.T) {
	e := newEngine()
	in := Input{
		Events:    []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)},
		Portfolio: normalize.Partitioned{Activity: []normalize.Row{activityRow("Yes", t0)}},
	}
	first := e.Run(in)
	second := e.Run(in)
	assert.Equal(t, first, second)
	assert.Equal(t, ConfidenceExact, second[0].Confidence)
}

func TestExactMatchWithClosedPosition(t *testing.T) {
	act := activityRow("Yes", t0.Add(time.Minute))
	act.AvgPrice = f(0.30)
	act.Size = f(100)
	closedAt := t0.Add(72 * time.Hour)
	in := Input{
		Events: []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 30, t0)},
		Portfolio: normalize.Partitioned{
			Activity: []normalize.Row{act},
			Closed:   []normalize.Row{{Asset: "asset-1", Slug: "other-slug", CurPrice: f(1.0), Timestamp: closedAt.Unix()}},
		},
	}
	tr := newEngine().Run(in)[0]
	assert.Equal(t, PositionClosed, tr.PositionStatus)
	assert.Equal(t, ResultWin, tr.Result)
	require.NotNil(t, tr.PnL)
	assert.InDelta(t, 70, *tr.PnL, 1e-9)
	require.NotNil(t, tr.CurrentValue)
	assert.InDelta(t, 100, *tr.CurrentValue, 1e-9)
	require.NotNil(t, tr.ClosedDate)
	assert.True(t, tr.ClosedDate.Equal(closedAt))
}

func TestExactMatchActiveFallsBackToCurrentValue(t *testing.T) {
	in := Input{
		Events: []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)},
		Portfolio: normalize.Partitioned{
			Activity: []normalize.Row{activityRow("Yes", t0)},
			Active:   []normalize.Row{{Slug: "team-a-wins", Outcome: "Yes", CurrentValue: f(75), Size: f(125)}},
		},
	}
	tr := newEngine().Run(in)[0]
	assert.Equal(t, PositionActive, tr.PositionStatus)
	require.NotNil(t, tr.PnL)
	assert.InDelta(t, 25, *tr.PnL, 1e-9)
}

func TestInferredClosedUsesRealizedPnl(t *testing.T) {
	in := Input{
		Events: []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)},
		Portfolio: normalize.Partitioned{
			Closed: []normalize.Row{{Slug: "team-a-wins", RealizedPnl: f(-8), CashPnl: f(3)}},
		},
	}
	tr := newEngine().Run(in)[0]
	assert.Equal(t, PositionClosed, tr.PositionStatus)
	assert.Equal(t, ConfidenceInferred, tr.Confidence)
	assert.Equal(t, ResultLoss, tr.Result)
	require.NotNil(t, tr.PnL)
	assert.InDelta(t, -8, *tr.PnL, 1e-9)
}

func TestMissingPositionOutcomeTolerance(t *testing.T) {
	in := Input{
		Events: []signal.Event{buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)},
		Portfolio: normalize.Partitioned{
			Closed: []normalize.Row{{Slug: "team-a-wins", CashPnl: f(4)}},
		},
	}
	tolerant := newEngine().Run(in)[0]
	assert.Equal(t, PositionClosed, tolerant.PositionStatus)
	require.NotNil(t, tolerant.PnL)
	assert.InDelta(t, 4, *tolerant.PnL, 1e-9)

	strict := (&Engine{}).Run(in)[0]
	assert.Equal(t, signal.StatusNotExecuted, strict.Status)
}

func TestFailedSignalsAreNotMatched(t *testing.T) {
	ev := buyEvent(0, "alice", "Yes", "team-a-wins", 50, t0)
	ev.Status, ev.FailureReason = signal.StatusFailed, "Low Liquidity"
	in := Input{
		Events:    []signal.Event{ev},
		Portfolio: normalize.Partitioned{Activity: []normalize.Row{activityRow("Yes", t0)}},
	}
	tr := newEngine().Run(in)[0]
	assert.Equal(t, signal.StatusFailed, tr.Status)
	assert.Equal(t, "Low Liquidity", tr.FailureReason)
	assert.Equal(t, ConfidenceNone, tr.Confidence)
	assert.Equal(t, "Other", tr.Category)
}

func TestTotalAttemptedAcrossStatuses(t *testing.T) {
	failed := buyEvent(0, "alice", "Yes", "team-a-wins", 20, t0)
	failed.Status = signal.StatusFailed
	ok := buyEvent(1, "alice", "Yes", "Team-A-Wins", 30, t0.Add(time.Minute))
	other := buyEvent(2, "bob", "Yes", "team-a-wins", 99, t0.Add(2*time.Minute))
	in := Input{
		Events:    []signal.Event{failed, ok, other},
		Portfolio: normalize.Partitioned{Activity: []normalize.Row{activityRow("Yes", t0.Add(time.Minute))}},
	}
	trades := newEngine().Run(in)
	require.Len(t, trades, 3)
	assert.InDelta(t, 50, trades[0].TotalAttempted, 1e-9)
	assert.InDelta(t, 50, trades[1].TotalAttempted, 1e-9)
	assert.InDelta(t, 99, trades[2].TotalAttempted, 1e-9)
}

func TestBackfillAttemptsDoesNotMutateInput(t *testing.T) {
	in := []Trade{{Event: buyEvent(0, "alice", "Yes", "x", 5, t0)}}
	out := BackfillAttempts(in)
	assert.Zero(t, in[0].TotalAttempted)
	assert.InDelta(t, 5, out[0].TotalAttempted, 1e-9)
}
