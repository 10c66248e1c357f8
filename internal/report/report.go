package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"tradelens/internal/analytics"
)

const (
	colorBackground    = "#0f172a"
	colorTextPrimary   = "#e2e8f0"
	colorTextSecondary = "#94a3b8"
	colorOverall       = "#38bdf8"

	chartWidthPx  = 1200
	chartHeightPx = 420

	axisTimeLayout = "2006-01-02 15:04"
	axisDayLayout  = "2006-01-02"
)

type Options struct {
	Title    string
	Location *time.Location
}

// Render writes a self-contained HTML page with the run's charts.
func Render(w io.Writer, summary analytics.Summary, o Options) error {
	if o.Title == "" {
		o.Title = "Trade reconciliation"
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	page := components.NewPage()
	page.PageTitle = o.Title
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		overallChart(summary.Series.Overall, o),
		traderLineChart("Cumulative PnL by trader", summary.Series.Overall, summary.Series.TraderPnL, o),
		traderLineChart("Win rate by trader (%)", summary.Series.Overall, summary.Series.TraderWinRate, o),
		dailyChart(summary.Series.Daily, o),
		totalsChart(summary.Stats),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func RenderHTML(summary analytics.Summary, o Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, summary, o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func baseOptions(title string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      title,
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30", TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true), AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
	}
}

func overallChart(points []analytics.Point, o Options) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(baseOptions("Cumulative PnL")...)
	xs := make([]string, len(points))
	data := make([]opts.LineData, len(points))
	for i, p := range points {
		xs[i] = p.Time.In(o.Location).Format(axisTimeLayout)
		data[i] = opts.LineData{Value: round(p.Value, 2)}
	}
	line.SetXAxis(xs)
	line.AddSeries("All traders", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorOverall, Width: 2}))
	return line
}

// traderLineChart plots each trader on the overall timeline; a trader's
// series is blank before its first trade.
func traderLineChart(title string, overall []analytics.Point, lines []analytics.TraderLine, o Options) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(baseOptions(title)...)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	var xs []string
	var times []time.Time
	for _, p := range overall {
		if n := len(times); n > 0 && times[n-1].Equal(p.Time) {
			continue
		}
		times = append(times, p.Time)
		xs = append(xs, p.Time.In(o.Location).Format(axisTimeLayout))
	}
	line.SetXAxis(xs)
	for _, tl := range lines {
		byTime := make(map[int64]float64, len(tl.Points))
		for _, p := range tl.Points {
			byTime[p.Time.UnixNano()] = p.Value
		}
		data := make([]opts.LineData, len(times))
		for i, ts := range times {
			if v, ok := byTime[ts.UnixNano()]; ok {
				data[i] = opts.LineData{Value: round(v, 2)}
			} else {
				data[i] = opts.LineData{Value: nil}
			}
		}
		line.AddSeries(tl.Trader, data)
	}
	return line
}

func dailyChart(daily analytics.DailyCounts, o Options) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(baseOptions("Trades per day")...)
	xs := make([]string, len(daily.Days))
	for i, d := range daily.Days {
		xs[i] = d.In(o.Location).Format(axisDayLayout)
	}
	bar.SetXAxis(xs)
	for _, name := range sortedKeys(daily.Counts) {
		counts := daily.Counts[name]
		data := make([]opts.BarData, len(counts))
		for i, c := range counts {
			data[i] = opts.BarData{Value: c}
		}
		bar.AddSeries(name, data)
	}
	return bar
}

func totalsChart(stats []analytics.TraderStats) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(baseOptions("Total PnL by trader")...)
	xs := make([]string, len(stats))
	data := make([]opts.BarData, len(stats))
	for i, s := range stats {
		xs[i] = s.Trader
		data[i] = opts.BarData{Value: round(s.TotalPnL, 2)}
	}
	bar.SetXAxis(xs)
	bar.AddSeries("Total PnL", data)
	return bar
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
