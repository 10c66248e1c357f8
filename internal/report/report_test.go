package report

import (
	"strings"
	"testing"
	"time"

	"tradelens/internal/analytics"
)

func TestRenderHTML(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	summary := analytics.Summary{
		Stats: []analytics.TraderStats{{Trader: "alice", TotalPnL: 12.5}},
		Series: analytics.SeriesSet{
			Overall:       []analytics.Point{{Time: ts, Value: 12.5}},
			TraderPnL:     []analytics.TraderLine{{Trader: "alice", Points: []analytics.Point{{Time: ts, Value: 12.5}}}},
			TraderWinRate: []analytics.TraderLine{{Trader: "alice", Points: []analytics.Point{{Time: ts, Value: 100}}}},
			Daily: analytics.DailyCounts{
				Days:   []time.Time{time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
				Counts: map[string][]int{"alice": {1}},
			},
		},
	}
	out, err := RenderHTML(summary, Options{Title: "Run 42", Location: time.UTC})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	html := string(out)
	for _, want := range []string{"Run 42", "Cumulative PnL", "Trades per day", "alice"} {
		if !strings.Contains(html, want) {
			t.Fatalf("report missing %q", want)
		}
	}
}

func TestRenderEmptySummary(t *testing.T) {
	if _, err := RenderHTML(analytics.Summary{}, Options{}); err != nil {
		t.Fatalf("err=%v", err)
	}
}
