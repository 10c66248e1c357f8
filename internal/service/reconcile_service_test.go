package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/config"
	"tradelens/internal/export"
	"tradelens/internal/models"
	"tradelens/internal/normalize"
	"tradelens/internal/reconcile"
	"tradelens/internal/repository"
	"tradelens/internal/signal"
)

type memRepo struct {
	runs    map[string]*models.ReconcileRun
	records map[string][]models.TradeRecord
	saveErr error
}

func newMemRepo() *memRepo {
	return &memRepo{runs: map[string]*models.ReconcileRun{}, records: map[string][]models.TradeRecord{}}
}

func (m *memRepo) Ping(context.Context) error { return nil }

func (m *memRepo) SaveRun(_ context.Context, run *models.ReconcileRun, trades []models.TradeRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.runs[run.ID] = run
	for i := range trades {
		trades[i].RunID = run.ID
	}
	m.records[run.ID] = trades
	return nil
}

func (m *memRepo) GetRun(_ context.Context, id string) (*models.ReconcileRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return run, nil
}

func (m *memRepo) ListRuns(context.Context, repository.ListRunsParams) ([]models.ReconcileRun, error) {
	out := make([]models.ReconcileRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRepo) CountRuns(context.Context, repository.ListRunsParams) (int64, error) {
	return int64(len(m.runs)), nil
}

func (m *memRepo) ListTradeRecords(_ context.Context, p repository.ListTradeRecordsParams) ([]models.TradeRecord, error) {
	return m.records[p.RunID], nil
}

func (m *memRepo) DeleteRun(_ context.Context, id string) error {
	if _, ok := m.runs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.runs, id)
	delete(m.records, id)
	return nil
}

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func sampleInput() RunInput {
	return RunInput{
		Source: SourceCLI,
		Chat: []signal.ChatEntry{
			{
				Date:    t0,
				Sender:  "bot",
				Content: "👤 alice\n🟢 BUY \"Yes\" $50 on [Team A vs Team B](https://polymarket.com/event/team-a-vs-team-b)",
			},
			{
				Date:    t0.Add(time.Minute),
				Sender:  "bot",
				Content: "👤 bob\n❌ BUY \"No\" $5 on [Rain Tomorrow](https://polymarket.com/event/rain-tomorrow)\nskipped: price too high",
			},
		},
		Portfolio: []map[string]string{
			{
				"Category": "Activity", "Slug": "team-a-vs-team-b", "Outcome": "Yes", "Side": "BUY",
				"Price": "0.5", "Size": "100", "USDC Size": "50", "Timestamp": "1740823500", "Transaction Hash": "0xabc",
			},
			{
				"Category": "Closed", "Slug": "team-a-vs-team-b", "Outcome": "Yes",
				"Cur Price": "1", "Avg Price": "0.5", "Size": "100", "Realized PnL": "50", "End Date": "2025-03-02",
			},
		},
	}
}

func newService(repo repository.Repository) *ReconcileService {
	cfg := config.Config{
		App:       config.AppConfig{Timezone: "UTC"},
		Reconcile: config.ReconcileConfig{MatchWindow: time.Hour, TolerateMissingOutcome: true},
	}
	svc := NewReconcileService(cfg, repo, nil)
	svc.Aggregator.Now = func() time.Time { return t0.Add(48 * time.Hour) }
	return svc
}

func TestRunWithoutRepository(t *testing.T) {
	res, err := newService(nil).Run(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Empty(t, res.RunID)
	require.Len(t, res.Trades, 2)

	win := res.Trades[0]
	assert.Equal(t, "alice", win.Trader)
	assert.Equal(t, "Sports", win.Category)
	assert.Equal(t, reconcile.ConfidenceExact, win.Confidence)
	assert.Equal(t, reconcile.PositionClosed, win.PositionStatus)
	assert.Equal(t, reconcile.ResultWin, win.Result)
	require.NotNil(t, win.PnL)
	assert.InDelta(t, 50, *win.PnL, 1e-9)

	assert.Equal(t, signal.StatusFailed, res.Trades[1].Status)
	assert.Equal(t, RunCounts{Signals: 2, Successful: 1, Failed: 1, ExactMatches: 1, TotalPnL: 50}, res.Counts)
	require.Len(t, res.Summary.Stats, 2)
}

func TestRunArchivesAndReloads(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()
	res, err := svc.Run(ctx, sampleInput())
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	run, summary, err := svc.ArchivedSummary(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, SourceCLI, run.Source)
	assert.Equal(t, 1, run.ExactMatches)
	assert.InDelta(t, 50, run.TotalPnL.InexactFloat64(), 1e-9)
	assert.Equal(t, res.Summary.Stats, summary.Stats)

	trades, err := svc.ArchivedTrades(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, res.Trades[0].TxHash, trades[0].TxHash)
	require.NotNil(t, trades[0].PnL)
	assert.InDelta(t, *res.Trades[0].PnL, *trades[0].PnL, 1e-9)
	assert.Nil(t, trades[1].PnL)

	_, err = svc.ArchivedTrades(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRunArchiveFailure(t *testing.T) {
	repo := newMemRepo()
	repo.saveErr = errors.New("disk full")
	_, err := newService(repo).Run(context.Background(), sampleInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive run")
}

func TestRunMalformedPortfolioArchivesNothing(t *testing.T) {
	repo := newMemRepo()
	in := sampleInput()
	in.Portfolio = []map[string]string{{"Slug": "x"}}
	_, err := newService(repo).Run(context.Background(), in)
	assert.ErrorIs(t, err, normalize.ErrMissingCategory)
	assert.Empty(t, repo.runs)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newService(nil).Run(ctx, sampleInput())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunFilesAndWriteOutputs(t *testing.T) {
	dir := t.TempDir()
	chat := `{"messages":[{"type":"message","date_unixtime":"1740823200","from":"bot",` +
		`"text":"👤 alice\n🟢 BUY \"Yes\" $50 on [Team A vs Team B](https://polymarket.com/event/team-a-vs-team-b)"}]}`
	portfolio := "Category,Slug,Outcome,Side,Price,Size,USDC Size,Timestamp\n" +
		"Activity,team-a-vs-team-b,Yes,BUY,0.5,100,50,1740823500\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat.json"), []byte(chat), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "portfolio.csv"), []byte(portfolio), 0o644))

	svc := newService(nil)
	svc.Inputs = config.InputsConfig{
		ChatPath:      filepath.Join(dir, "chat.json"),
		PortfolioPath: filepath.Join(dir, "portfolio.csv"),
	}
	svc.Export = config.ExportConfig{Dir: filepath.Join(dir, "out"), CSVName: "trades.csv", ReportName: "report.html"}

	res, err := svc.RunFiles(context.Background(), SourceCLI)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, reconcile.ConfidenceExact, res.Trades[0].Confidence)

	csvPath, reportPath, err := svc.WriteOutputs(res)
	require.NoError(t, err)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.FileExists(t, reportPath)
}

func TestRunFilesMissingInput(t *testing.T) {
	svc := newService(nil)
	svc.Inputs = config.InputsConfig{ChatPath: filepath.Join(t.TempDir(), "nope.json")}
	_, err := svc.RunFiles(context.Background(), SourceCLI)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunIsByteIdenticalAcrossRuns(t *testing.T) {
	in := sampleInput()
	for _, rec := range in.Portfolio {
		rec["Type"] = "TRADE"
		rec["Question"] = "Some other question"
		rec["Value"] = "7"
	}
	in.Portfolio[1]["Current Value"] = "100"

	var outputs [][]byte
	for i := 0; i < 20; i++ {
		res, err := newService(nil).Run(context.Background(), in)
		require.NoError(t, err)
		require.Equal(t, reconcile.ConfidenceExact, res.Trades[0].Confidence, "run %d", i)
		data, err := export.MarshalCSV(res.Trades, time.UTC)
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	for i := 1; i < len(outputs); i++ {
		assert.Equal(t, string(outputs[0]), string(outputs[i]), "run %d differs", i)
	}
}
