package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradelens/internal/export"
	"tradelens/internal/ingest"
	"tradelens/internal/models"
	"tradelens/internal/report"
	"tradelens/internal/repository"
	"tradelens/internal/service"
)

type RunHandler struct {
	Service *service.ReconcileService
	Logger  *zap.Logger
}

func (h *RunHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/runs")
	group.POST("", h.createRun)
	group.POST("/files", h.runFiles)
	group.GET("", h.listRuns)
	group.GET("/:id", h.getRun)
	group.GET("/:id/trades", h.listTrades)
	group.GET("/:id/export.csv", h.exportCSV)
	group.GET("/:id/report.html", h.reportHTML)
	group.DELETE("/:id", h.deleteRun)
}

// createRunRequest carries one input set. chat is either a Telegram-style
// export object or a bare array of {date, sender, content}. portfolio_csv
// is used when portfolio is empty.
type createRunRequest struct {
	Chat         json.RawMessage     `json:"chat"`
	Portfolio    []map[string]string `json:"portfolio"`
	PortfolioCSV string              `json:"portfolio_csv"`
}

type runView struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Signals         int             `json:"signals"`
	Successful      int             `json:"successful"`
	Failed          int             `json:"failed"`
	NotExecuted     int             `json:"not_executed"`
	ExactMatches    int             `json:"exact_matches"`
	InferredMatches int             `json:"inferred_matches"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	CreatedAt       time.Time       `json:"created_at"`
}

type tradeView struct {
	Seq             int              `json:"seq"`
	SignalAt        time.Time        `json:"signal_at"`
	ClosedAt        *time.Time       `json:"closed_at,omitempty"`
	Trader          string           `json:"trader"`
	Action          string           `json:"action"`
	Outcome         string           `json:"outcome"`
	Amount          decimal.Decimal  `json:"amount"`
	MarketTitle     string           `json:"market_title"`
	MarketSlug      string           `json:"market_slug"`
	MarketURL       string           `json:"market_url"`
	Category        string           `json:"category"`
	Status          string           `json:"status"`
	FailureReason   string           `json:"failure_reason,omitempty"`
	PositionStatus  string           `json:"position_status,omitempty"`
	MatchConfidence string           `json:"match_confidence,omitempty"`
	Result          string           `json:"result,omitempty"`
	TxHash          string           `json:"tx_hash,omitempty"`
	ExecPrice       *decimal.Decimal `json:"exec_price,omitempty"`
	ExecAmount      *decimal.Decimal `json:"exec_amount,omitempty"`
	Shares          *decimal.Decimal `json:"shares,omitempty"`
	LatencySeconds  *float64         `json:"latency_seconds,omitempty"`
	PnL             *decimal.Decimal `json:"pnl,omitempty"`
	CurrentValue    *decimal.Decimal `json:"current_value,omitempty"`
	TotalAttempted  decimal.Decimal  `json:"total_attempted"`
}

func (h *RunHandler) createRun(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	chat, err := ingest.ParseChatJSON(req.Chat)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	portfolio := req.Portfolio
	if len(portfolio) == 0 && strings.TrimSpace(req.PortfolioCSV) != "" {
		portfolio, err = ingest.ReadPortfolioCSV(strings.NewReader(req.PortfolioCSV))
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}
	h.respondRun(c, func() (*service.RunResult, error) {
		return h.Service.Run(c.Request.Context(), service.RunInput{
			Source:    service.SourceAPI,
			Chat:      chat,
			Portfolio: portfolio,
		})
	})
}

func (h *RunHandler) runFiles(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	h.respondRun(c, func() (*service.RunResult, error) {
		return h.Service.RunFiles(c.Request.Context(), service.SourceAPI)
	})
}

func (h *RunHandler) respondRun(c *gin.Context, run func() (*service.RunResult, error)) {
	res, err := run()
	if err != nil {
		h.warn("reconcile run failed", err)
		Fail(c, err)
		return
	}
	Ok(c, res, nil)
}

func (h *RunHandler) listRuns(c *gin.Context) {
	repo := h.repo()
	if repo == nil {
		Error(c, http.StatusServiceUnavailable, "archive disabled", nil)
		return
	}
	params := repository.ListRunsParams{
		Limit:   intQuery(c, "limit", 50),
		Offset:  intQuery(c, "offset", 0),
		Source:  strQueryPtr(c, "source"),
		Since:   timeQueryPtr(c, "since"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{"created_at": "created_at", "signals": "signals", "total_pnl": "total_pnl", "pnl": "total_pnl"}),
		Asc:     boolQueryPtr(c, "asc"),
	}
	ctx := c.Request.Context()
	runs, err := repo.ListRuns(ctx, params)
	if err != nil {
		h.warn("list runs failed", err)
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := repo.CountRuns(ctx, params)
	if err != nil {
		h.warn("count runs failed", err)
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]runView, 0, len(runs))
	for _, r := range runs {
		out = append(out, toRunView(r))
	}
	Ok(c, out, paginationMeta(params.Limit, params.Offset, total))
}

func (h *RunHandler) getRun(c *gin.Context) {
	if h.repo() == nil {
		Error(c, http.StatusServiceUnavailable, "archive disabled", nil)
		return
	}
	run, summary, err := h.Service.ArchivedSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.archiveError(c, err)
		return
	}
	Ok(c, gin.H{"run": toRunView(*run), "summary": summary}, nil)
}

func (h *RunHandler) listTrades(c *gin.Context) {
	repo := h.repo()
	if repo == nil {
		Error(c, http.StatusServiceUnavailable, "archive disabled", nil)
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := repo.GetRun(ctx, id); err != nil {
		h.archiveError(c, err)
		return
	}
	params := repository.ListTradeRecordsParams{
		RunID:  id,
		Trader: strQueryPtr(c, "trader"),
		Status: strQueryPtr(c, "status"),
		Limit:  intQuery(c, "limit", 0),
		Offset: intQuery(c, "offset", 0),
	}
	records, err := repo.ListTradeRecords(ctx, params)
	if err != nil {
		h.warn("list trades failed", err)
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]tradeView, 0, len(records))
	for _, r := range records {
		out = append(out, toTradeView(r))
	}
	Ok(c, out, nil)
}

func (h *RunHandler) exportCSV(c *gin.Context) {
	if h.repo() == nil {
		Error(c, http.StatusServiceUnavailable, "archive disabled", nil)
		return
	}
	trades, err := h.Service.ArchivedTrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.archiveError(c, err)
		return
	}
	data, err := export.MarshalCSV(trades, h.Service.Location)
	if err != nil {
		h.warn("export csv failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+c.Param("id")+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (h *RunHandler) reportHTML(c *gin.Context) {
	if h.repo() == nil {
		Error(c, http.StatusServiceUnavailable, "archive disabled", nil)
		return
	}
	run, summary, err := h.Service.ArchivedSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.archiveError(c, err)
		return
	}
	html, err := report.RenderHTML(summary, report.Options{
		Title:    "Trade reconciliation " + run.ID,
		Location: h.Service.Location,
	})
	if err != nil {
		h.warn("render report failed", err)
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (h *RunHandler) deleteRun(c *gin.Context) {
	repo := h.repo()
	if repo == nil {
		Error(c, http.StatusServiceUnavailable, "archive disabled", nil)
		return
	}
	id := c.Param("id")
	if err := repo.DeleteRun(c.Request.Context(), id); err != nil {
		h.archiveError(c, err)
		return
	}
	Ok(c, gin.H{"id": id}, nil)
}

func (h *RunHandler) repo() repository.Repository {
	if h == nil || h.Service == nil {
		return nil
	}
	return h.Service.Repo
}

func (h *RunHandler) archiveError(c *gin.Context, err error) {
	if statusFor(err) != http.StatusNotFound {
		h.warn("archive lookup failed", err)
	}
	Fail(c, err)
}

func (h *RunHandler) warn(msg string, err error) {
	if h.Logger != nil {
		h.Logger.Warn(msg, zap.Error(err))
	}
}

func toRunView(r models.ReconcileRun) runView {
	return runView{
		ID:              r.ID,
		Source:          r.Source,
		Signals:         r.Signals,
		Successful:      r.Successful,
		Failed:          r.Failed,
		NotExecuted:     r.NotExecuted,
		ExactMatches:    r.ExactMatches,
		InferredMatches: r.InferredMatches,
		TotalPnL:        r.TotalPnL,
		CreatedAt:       r.CreatedAt,
	}
}

func toTradeView(r models.TradeRecord) tradeView {
	return tradeView{
		Seq:             r.Seq,
		SignalAt:        r.SignalAt,
		ClosedAt:        r.ClosedAt,
		Trader:          r.Trader,
		Action:          r.Action,
		Outcome:         r.Outcome,
		Amount:          r.Amount,
		MarketTitle:     r.MarketTitle,
		MarketSlug:      r.MarketSlug,
		MarketURL:       r.MarketURL,
		Category:        r.Category,
		Status:          r.Status,
		FailureReason:   r.FailureReason,
		PositionStatus:  r.PositionStatus,
		MatchConfidence: r.MatchConfidence,
		Result:          r.Result,
		TxHash:          r.TxHash,
		ExecPrice:       r.ExecPrice,
		ExecAmount:      r.ExecAmount,
		Shares:          r.Shares,
		LatencySeconds:  r.LatencySeconds,
		PnL:             r.PnL,
		CurrentValue:    r.CurrentValue,
		TotalAttempted:  r.TotalAttempted,
	}
}
