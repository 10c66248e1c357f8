package reconcile

import (
	"math"

	"tradelens/internal/normalize"
)

// ExitRule infers the exit price of a closed position. Rules are tried in
// order and the first one that applies decides.
type ExitRule struct {
	Name  string
	Apply func(row normalize.Row) (exit float64, ok bool)
}

// Resolution is the valuation of a closed position.
type Resolution struct {
	Rule         string
	Exit         float64
	Result       Result
	PnL          float64
	CurrentValue float64
}

var exitRules = []ExitRule{
	{Name: "settlement_price", Apply: settlementExit},
	{Name: "extreme_price", Apply: extremePriceExit},
	{Name: "value_ratio", Apply: valueRatioExit},
	{Name: "realized_sign", Apply: realizedSignExit},
}

// ExitRules returns the cascade in evaluation order.
func ExitRules() []ExitRule {
	out := make([]ExitRule, len(exitRules))
	copy(out, exitRules)
	return out
}

// ResolveClosed values a closed position given the entry price and share count
// of the execution it was matched to.
func ResolveClosed(row normalize.Row, entry, shares float64) Resolution {
	for _, rule := range exitRules {
		exit, ok := rule.Apply(row)
		if !ok {
			continue
		}
		return Resolution{
			Rule:         rule.Name,
			Exit:         exit,
			Result:       resultOf(exit),
			PnL:          (exit - entry) * shares,
			CurrentValue: exit * shares,
		}
	}
	// unreachable: realizedSignExit always applies.
	return Resolution{Result: ResultLoss, PnL: -entry * shares}
}

func settlementExit(row normalize.Row) (float64, bool) {
	if row.CurPrice == nil {
		return 0, false
	}
	return *row.CurPrice, true
}

func extremePriceExit(row normalize.Row) (float64, bool) {
	if row.Price == nil {
		return 0, false
	}
	switch p := *row.Price; {
	case p > 0.9:
		return 1, true
	case p < 0.1:
		return 0, true
	}
	return 0, false
}

func valueRatioExit(row normalize.Row) (float64, bool) {
	if row.Size == nil || row.CurrentValue == nil || *row.Size == 0 {
		return 0, false
	}
	ratio := *row.CurrentValue / math.Abs(*row.Size)
	switch {
	case ratio > 0.9:
		return 1, true
	case ratio < 0.1:
		return 0, true
	}
	return realizedSignExit(row)
}

func realizedSignExit(row normalize.Row) (float64, bool) {
	if pnl := realizedOrCash(row); pnl != nil && *pnl > 0 {
		return 1, true
	}
	return 0, true
}

func realizedOrCash(row normalize.Row) *float64 {
	if row.RealizedPnl != nil {
		return row.RealizedPnl
	}
	return row.CashPnl
}

func resultOf(exit float64) Result {
	if exit > 0.5 {
		return ResultWin
	}
	return ResultLoss
}
