package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"tradelens/internal/analytics"
	"tradelens/internal/config"
	"tradelens/internal/export"
	"tradelens/internal/ingest"
	"tradelens/internal/labeler"
	"tradelens/internal/logger"
	"tradelens/internal/models"
	"tradelens/internal/normalize"
	"tradelens/internal/reconcile"
	"tradelens/internal/report"
	"tradelens/internal/repository"
	"tradelens/internal/signal"
)

const (
	SourceCLI  = "cli"
	SourceAPI  = "api"
	SourceCron = "cron"
)

type RunInput struct {
	Source    string
	Chat      []signal.ChatEntry
	Portfolio []map[string]string
}

type RunCounts struct {
	Signals         int     `json:"signals"`
	Successful      int     `json:"successful"`
	Failed          int     `json:"failed"`
	NotExecuted     int     `json:"not_executed"`
	ExactMatches    int     `json:"exact_matches"`
	InferredMatches int     `json:"inferred_matches"`
	TotalPnL        float64 `json:"total_pnl"`
}

type RunResult struct {
	RunID   string            `json:"run_id,omitempty"`
	Counts  RunCounts         `json:"counts"`
	Trades  []reconcile.Trade `json:"-"`
	Summary analytics.Summary `json:"summary"`
}

// ReconcileService runs the pipeline end to end and archives results when a
// repository is configured.
type ReconcileService struct {
	Repo       repository.Repository
	Extractor  *signal.Extractor
	Engine     *reconcile.Engine
	Aggregator *analytics.Aggregator
	Inputs     config.InputsConfig
	Export     config.ExportConfig
	Location   *time.Location
	Logger     *zap.Logger
}

func NewReconcileService(cfg config.Config, repo repository.Repository, log *zap.Logger) *ReconcileService {
	loc := cfg.App.Location()
	return &ReconcileService{
		Repo:       repo,
		Extractor:  &signal.Extractor{Logger: log},
		Engine:     reconcile.NewEngine(cfg.Reconcile, &labeler.Categorizer{Logger: log}, log),
		Aggregator: &analytics.Aggregator{Location: loc},
		Inputs:     cfg.Inputs,
		Export:     cfg.Export,
		Location:   loc,
		Logger:     log,
	}
}

// Run normalizes, extracts, reconciles and aggregates one input set. A
// malformed portfolio aborts the run before anything is archived.
func (s *ReconcileService) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logger.OrNop(s.Logger)

	portfolio, err := normalize.Rows(in.Portfolio, log)
	if err != nil {
		return nil, fmt.Errorf("normalize portfolio: %w", err)
	}
	events := s.extractor().ExtractAll(in.Chat)
	trades := s.engine().Run(reconcile.Input{Events: events, Portfolio: portfolio})
	summary := s.Aggregator.Summarize(trades)

	res := &RunResult{
		Counts:  countTrades(trades),
		Trades:  trades,
		Summary: summary,
	}
	if s.Repo != nil {
		id, err := s.archive(ctx, in.Source, res)
		if err != nil {
			return nil, fmt.Errorf("archive run: %w", err)
		}
		res.RunID = id
	}
	log.Info("reconcile run complete",
		zap.String("run_id", res.RunID),
		zap.String("source", in.Source),
		zap.Int("chat_entries", len(in.Chat)),
		zap.Int("portfolio_rows", portfolio.Len()),
		zap.Int("signals", res.Counts.Signals),
		zap.Int("exact", res.Counts.ExactMatches),
		zap.Int("inferred", res.Counts.InferredMatches),
		zap.Int("not_executed", res.Counts.NotExecuted),
	)
	return res, nil
}

// RunFiles reads the configured input files and runs them.
func (s *ReconcileService) RunFiles(ctx context.Context, source string) (*RunResult, error) {
	chatFile, err := os.Open(s.Inputs.ChatPath)
	if err != nil {
		return nil, fmt.Errorf("open chat export: %w", err)
	}
	defer chatFile.Close()
	chat, err := ingest.ReadChatJSON(chatFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Inputs.ChatPath, err)
	}

	portfolioFile, err := os.Open(s.Inputs.PortfolioPath)
	if err != nil {
		return nil, fmt.Errorf("open portfolio: %w", err)
	}
	defer portfolioFile.Close()
	rows, err := ingest.ReadPortfolioCSV(portfolioFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Inputs.PortfolioPath, err)
	}

	return s.Run(ctx, RunInput{Source: source, Chat: chat, Portfolio: rows})
}

// WriteOutputs writes the CSV export and the HTML report into the export
// directory and returns their paths.
func (s *ReconcileService) WriteOutputs(res *RunResult) (csvPath, reportPath string, err error) {
	if res == nil {
		return "", "", nil
	}
	if err := os.MkdirAll(s.Export.Dir, 0o755); err != nil {
		return "", "", err
	}
	csvPath = filepath.Join(s.Export.Dir, s.Export.CSVName)
	data, err := export.MarshalCSV(res.Trades, s.Location)
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(csvPath, data, 0o644); err != nil {
		return "", "", err
	}

	reportPath = filepath.Join(s.Export.Dir, s.Export.ReportName)
	html, err := report.RenderHTML(res.Summary, report.Options{Title: reportTitle(res.RunID), Location: s.Location})
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(reportPath, html, 0o644); err != nil {
		return "", "", err
	}
	return csvPath, reportPath, nil
}

// ArchivedTrades loads the trades of a stored run.
func (s *ReconcileService) ArchivedTrades(ctx context.Context, runID string) ([]reconcile.Trade, error) {
	if s.Repo == nil {
		return nil, repository.ErrNotFound
	}
	if _, err := s.Repo.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	records, err := s.Repo.ListTradeRecords(ctx, repository.ListTradeRecordsParams{RunID: runID})
	if err != nil {
		return nil, err
	}
	trades := make([]reconcile.Trade, 0, len(records))
	for _, r := range records {
		trades = append(trades, fromRecord(r))
	}
	return trades, nil
}

// ArchivedSummary loads a stored run and decodes its aggregates.
func (s *ReconcileService) ArchivedSummary(ctx context.Context, runID string) (*models.ReconcileRun, analytics.Summary, error) {
	var summary analytics.Summary
	if s.Repo == nil {
		return nil, summary, repository.ErrNotFound
	}
	run, err := s.Repo.GetRun(ctx, runID)
	if err != nil {
		return nil, summary, err
	}
	if len(run.Stats) > 0 {
		if err := json.Unmarshal(run.Stats, &summary.Stats); err != nil {
			return nil, summary, fmt.Errorf("decode stats: %w", err)
		}
	}
	if len(run.Series) > 0 {
		if err := json.Unmarshal(run.Series, &summary.Series); err != nil {
			return nil, summary, fmt.Errorf("decode series: %w", err)
		}
	}
	return run, summary, nil
}

func (s *ReconcileService) archive(ctx context.Context, source string, res *RunResult) (string, error) {
	stats, err := json.Marshal(res.Summary.Stats)
	if err != nil {
		return "", err
	}
	series, err := json.Marshal(res.Summary.Series)
	if err != nil {
		return "", err
	}
	if source == "" {
		source = SourceAPI
	}
	run := &models.ReconcileRun{
		ID:              uuid.NewString(),
		Source:          source,
		Signals:         res.Counts.Signals,
		Successful:      res.Counts.Successful,
		Failed:          res.Counts.Failed,
		NotExecuted:     res.Counts.NotExecuted,
		ExactMatches:    res.Counts.ExactMatches,
		InferredMatches: res.Counts.InferredMatches,
		TotalPnL:        decimal.NewFromFloat(res.Counts.TotalPnL),
		Stats:           datatypes.JSON(stats),
		Series:          datatypes.JSON(series),
	}
	records := make([]models.TradeRecord, 0, len(res.Trades))
	for _, t := range res.Trades {
		records = append(records, toRecord(t))
	}
	if err := s.Repo.SaveRun(ctx, run, records); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (s *ReconcileService) extractor() *signal.Extractor {
	if s.Extractor == nil {
		return &signal.Extractor{Logger: s.Logger}
	}
	return s.Extractor
}

func (s *ReconcileService) engine() *reconcile.Engine {
	if s.Engine == nil {
		return &reconcile.Engine{TolerateMissingOutcome: true, Logger: s.Logger}
	}
	return s.Engine
}

func countTrades(trades []reconcile.Trade) RunCounts {
	c := RunCounts{Signals: len(trades)}
	for _, t := range trades {
		switch t.Status {
		case signal.StatusFailed:
			c.Failed++
		case signal.StatusNotExecuted:
			c.NotExecuted++
		}
		switch t.Confidence {
		case reconcile.ConfidenceExact:
			c.ExactMatches++
		case reconcile.ConfidenceInferred:
			c.InferredMatches++
		}
	}
	for _, t := range analytics.Successful(trades) {
		c.Successful++
		c.TotalPnL += *t.PnL
	}
	return c
}

func reportTitle(runID string) string {
	if runID == "" {
		return "Trade reconciliation"
	}
	return "Trade reconciliation " + runID
}
