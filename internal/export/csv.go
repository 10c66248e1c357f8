package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"tradelens/internal/reconcile"
)

const TimeLayout = "2006-01-02 15:04:05"

// Row is the downstream column contract. Field order is the column order.
type Row struct {
	Date            string `csv:"Date"`
	ClosedDate      string `csv:"Closed Date"`
	Trader          string `csv:"Trader"`
	Action          string `csv:"Action"`
	Outcome         string `csv:"Outcome"`
	Amount          string `csv:"Amount"`
	MarketTitle     string `csv:"Market Title"`
	MarketSlug      string `csv:"Market Slug"`
	MarketURL       string `csv:"Market URL"`
	Category        string `csv:"Category"`
	Status          string `csv:"Status"`
	FailureReason   string `csv:"Failure Reason"`
	PositionStatus  string `csv:"Position Status"`
	PnL             string `csv:"PnL"`
	CurrentValue    string `csv:"Current Value"`
	TxHash          string `csv:"Tx Hash"`
	ExecPrice       string `csv:"Execution Price"`
	ExecAmount      string `csv:"Execution Amount"`
	Shares          string `csv:"Shares"`
	LatencySeconds  string `csv:"Latency (s)"`
	MatchConfidence string `csv:"Match Confidence"`
	Result          string `csv:"Result"`
	TotalAttempted  string `csv:"Total Attempted"`
}

// Rows maps trades to export rows in the given location.
func Rows(trades []reconcile.Trade, loc *time.Location) []*Row {
	if loc == nil {
		loc = time.Local
	}
	out := make([]*Row, 0, len(trades))
	for _, t := range trades {
		out = append(out, &Row{
			Date:            formatTime(&t.Timestamp, loc),
			ClosedDate:      formatTime(t.ClosedDate, loc),
			Trader:          t.Trader,
			Action:          string(t.Action),
			Outcome:         t.Outcome,
			Amount:          money(t.Amount),
			MarketTitle:     t.MarketTitle,
			MarketSlug:      t.MarketSlug,
			MarketURL:       t.MarketURL,
			Category:        t.Category,
			Status:          string(t.Status),
			FailureReason:   t.FailureReason,
			PositionStatus:  string(t.PositionStatus),
			PnL:             optional(t.PnL),
			CurrentValue:    optional(t.CurrentValue),
			TxHash:          t.TxHash,
			ExecPrice:       optional(t.ExecPrice),
			ExecAmount:      optional(t.ExecAmount),
			Shares:          optional(t.Shares),
			LatencySeconds:  optional(t.LatencySeconds),
			MatchConfidence: string(t.Confidence),
			Result:          string(t.Result),
			TotalAttempted:  money(t.TotalAttempted),
		})
	}
	return out
}

// WriteCSV writes the header and one row per trade.
func WriteCSV(w io.Writer, trades []reconcile.Trade, loc *time.Location) error {
	rows := Rows(trades, loc)
	if len(rows) == 0 {
		_, err := io.WriteString(w, Header()+"\n")
		return err
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("marshal trades csv: %w", err)
	}
	return nil
}

// MarshalCSV is WriteCSV into memory.
func MarshalCSV(trades []reconcile.Trade, loc *time.Location) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, trades, loc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return money(*v)
}

func formatTime(ts *time.Time, loc *time.Location) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.In(loc).Format(TimeLayout)
}
