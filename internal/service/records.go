package service

import (
	"time"

	"github.com/shopspring/decimal"

	"tradelens/internal/models"
	"tradelens/internal/reconcile"
	"tradelens/internal/signal"
)

func toRecord(t reconcile.Trade) models.TradeRecord {
	return models.TradeRecord{
		Seq:             t.Seq,
		SignalAt:        t.Timestamp,
		ClosedAt:        t.ClosedDate,
		Trader:          t.Trader,
		Sender:          t.Sender,
		Action:          string(t.Action),
		Outcome:         t.Outcome,
		Amount:          decimal.NewFromFloat(t.Amount),
		MarketTitle:     t.MarketTitle,
		MarketSlug:      t.MarketSlug,
		MarketURL:       t.MarketURL,
		Category:        t.Category,
		Status:          string(t.Status),
		FailureReason:   t.FailureReason,
		PositionStatus:  string(t.PositionStatus),
		MatchConfidence: string(t.Confidence),
		Result:          string(t.Result),
		TxHash:          t.TxHash,
		ExecPrice:       decimalPtr(t.ExecPrice),
		ExecAmount:      decimalPtr(t.ExecAmount),
		Shares:          decimalPtr(t.Shares),
		LatencySeconds:  t.LatencySeconds,
		PnL:             decimalPtr(t.PnL),
		CurrentValue:    decimalPtr(t.CurrentValue),
		TotalAttempted:  decimal.NewFromFloat(t.TotalAttempted),
	}
}

func fromRecord(r models.TradeRecord) reconcile.Trade {
	var closed *time.Time
	if r.ClosedAt != nil {
		c := *r.ClosedAt
		closed = &c
	}
	return reconcile.Trade{
		Event: signal.Event{
			Seq:       r.Seq,
			Trader:    r.Trader,
			Sender:    r.Sender,
			Timestamp: r.SignalAt,
			Detail: signal.Detail{
				Action:        signal.ParseAction(r.Action),
				Outcome:       r.Outcome,
				Amount:        r.Amount.InexactFloat64(),
				MarketTitle:   r.MarketTitle,
				MarketSlug:    r.MarketSlug,
				MarketURL:     r.MarketURL,
				Status:        signal.Status(r.Status),
				FailureReason: r.FailureReason,
			},
		},
		Category:       r.Category,
		PositionStatus: reconcile.PositionStatus(r.PositionStatus),
		Confidence:     reconcile.Confidence(r.MatchConfidence),
		TxHash:         r.TxHash,
		ExecPrice:      floatPtr(r.ExecPrice),
		ExecAmount:     floatPtr(r.ExecAmount),
		Shares:         floatPtr(r.Shares),
		LatencySeconds: r.LatencySeconds,
		PnL:            floatPtr(r.PnL),
		CurrentValue:   floatPtr(r.CurrentValue),
		ClosedDate:     closed,
		Result:         reconcile.Result(r.Result),
		TotalAttempted: r.TotalAttempted.InexactFloat64(),
	}
}

func decimalPtr(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
