package reconcile

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"tradelens/internal/config"
	"tradelens/internal/labeler"
	"tradelens/internal/logger"
	"tradelens/internal/normalize"
	"tradelens/internal/signal"
)

// DefaultMatchWindow bounds the distance between a signal and its execution.
const DefaultMatchWindow = time.Hour

const ReasonNotExecuted = "No matching execution or position"

type PositionStatus string

const (
	PositionNone   PositionStatus = ""
	PositionActive PositionStatus = "Active"
	PositionClosed PositionStatus = "Closed"
)

type Confidence string

const (
	ConfidenceNone     Confidence = ""
	ConfidenceExact    Confidence = "Exact (Activity)"
	ConfidenceInferred Confidence = "Inferred (Position)"
)

type Result string

const (
	ResultNone Result = ""
	ResultWin  Result = "Win"
	ResultLoss Result = "Loss"
	ResultOpen Result = "Open"
)

// Trade is one signal together with whatever execution and position evidence
// was found for it. Optional numbers are nil when undefined.
type Trade struct {
	signal.Event

	Category       string
	PositionStatus PositionStatus
	Confidence     Confidence

	TxHash         string
	ExecPrice      *float64
	ExecAmount     *float64
	Shares         *float64
	LatencySeconds *float64

	PnL          *float64
	CurrentValue *float64
	ClosedDate   *time.Time
	Result       Result

	TotalAttempted float64
}

type Input struct {
	Events    []signal.Event
	Portfolio normalize.Partitioned
}

type Engine struct {
	// Window is the maximum signal/execution distance; zero means DefaultMatchWindow.
	Window                 time.Duration
	TolerateMissingOutcome bool
	Categorizer            *labeler.Categorizer
	Logger                 *zap.Logger
}

func NewEngine(cfg config.ReconcileConfig, categorizer *labeler.Categorizer, log *zap.Logger) *Engine {
	return &Engine{
		Window:                 cfg.MatchWindow,
		TolerateMissingOutcome: cfg.TolerateMissingOutcome,
		Categorizer:            categorizer,
		Logger:                 log,
	}
}

// Run reconciles every event in order. Only successful signals are matched;
// the claim set is scoped to this call. The returned slice carries the
// total attempted amount per trader and market.
func (e *Engine) Run(in Input) []Trade {
	claims := NewClaimSet()
	categorizer := e.Categorizer
	if categorizer == nil {
		categorizer = &labeler.Categorizer{}
	}
	trades := make([]Trade, 0, len(in.Events))
	for _, ev := range in.Events {
		t := Trade{
			Event:    ev,
			Category: categorizer.Categorize(ev.MarketTitle, ev.MarketSlug),
		}
		if ev.Status == signal.StatusSuccess {
			e.reconcile(&t, in.Portfolio, claims)
		}
		trades = append(trades, t)
	}
	logger.OrNop(e.Logger).Debug("reconcile run finished",
		zap.Int("signals", len(trades)),
		zap.Int("claimed", claims.Len()),
		zap.Int("activity_rows", len(in.Portfolio.Activity)),
	)
	return BackfillAttempts(trades)
}

func (e *Engine) reconcile(t *Trade, p normalize.Partitioned, claims *ClaimSet) {
	idx, ok := e.matchActivity(t.Event, p.Activity, claims)
	if !ok {
		e.inferFromPositions(t, p)
		return
	}
	claims.Claim(idx)
	act := p.Activity[idx]
	e.applyExecution(t, act)

	m := PositionMatcher{
		Asset:                  act.Asset,
		Slug:                   t.MarketSlug,
		Outcome:                t.Outcome,
		TolerateMissingOutcome: e.TolerateMissingOutcome,
	}
	if i := m.Find(p.Active); i >= 0 {
		row := p.Active[i]
		t.PositionStatus, t.Result = PositionActive, ResultOpen
		fillURL(t, row)
		if cur := currentPrice(row); cur != nil && t.ExecPrice != nil && t.Shares != nil {
			t.PnL = ptr((*cur - *t.ExecPrice) * *t.Shares)
			t.CurrentValue = ptr(*cur * *t.Shares)
		}
		return
	}
	if i := m.Find(p.Closed); i >= 0 {
		row := p.Closed[i]
		t.PositionStatus = PositionClosed
		fillURL(t, row)
		t.ClosedDate = rowTime(row)
		entry, shares := deref(t.ExecPrice), deref(t.Shares)
		res := ResolveClosed(row, entry, shares)
		t.Result = res.Result
		if t.ExecPrice != nil && t.Shares != nil {
			t.PnL = ptr(res.PnL)
			t.CurrentValue = ptr(res.CurrentValue)
		}
	}
}

// matchActivity returns the unclaimed activity row nearest in time to the
// signal within the window. Equal distances keep the earlier row.
func (e *Engine) matchActivity(ev signal.Event, rows []normalize.Row, claims *ClaimSet) (int, bool) {
	window := e.Window
	if window <= 0 {
		window = DefaultMatchWindow
	}
	best := -1
	var bestDiff time.Duration
	for i, row := range rows {
		if claims.Claimed(i) {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(row.Side), string(ev.Action)) {
			continue
		}
		if !SlugsMatch(row.Slug, ev.MarketSlug) {
			continue
		}
		if !OutcomesConsistent(ev.Outcome, row.Outcome) {
			continue
		}
		ts, ok := row.Time()
		if !ok {
			continue
		}
		diff := ts.Sub(ev.Timestamp)
		if diff < 0 {
			diff = -diff
		}
		if diff >= window {
			continue
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best, best >= 0
}

func (e *Engine) applyExecution(t *Trade, act normalize.Row) {
	t.Confidence = ConfidenceExact
	t.TxHash = act.TxHash
	t.ExecPrice = firstDefined(act.AvgPrice, act.Price)
	t.Shares = act.Size
	switch {
	case act.UsdcSize != nil:
		t.ExecAmount = ptr(*act.UsdcSize)
	case t.ExecPrice != nil && t.Shares != nil:
		t.ExecAmount = ptr(*t.ExecPrice * *t.Shares)
	}
	if ts, ok := act.Time(); ok {
		t.LatencySeconds = ptr(ts.Sub(t.Timestamp).Seconds())
	}
	logger.OrNop(e.Logger).Debug("activity claimed",
		zap.Int("seq", t.Seq),
		zap.String("slug", t.MarketSlug),
		zap.String("tx_hash", act.TxHash),
	)
}

func (e *Engine) inferFromPositions(t *Trade, p normalize.Partitioned) {
	m := PositionMatcher{
		Slug:                   t.MarketSlug,
		Outcome:                t.Outcome,
		TolerateMissingOutcome: e.TolerateMissingOutcome,
	}
	if i := m.Find(p.Active); i >= 0 {
		row := p.Active[i]
		t.PositionStatus, t.Confidence, t.Result = PositionActive, ConfidenceInferred, ResultOpen
		fillURL(t, row)
		backfillFromPosition(t, row)
		if cur := currentPrice(row); cur != nil && row.AvgPrice != nil && row.Size != nil {
			t.PnL = ptr((*cur - *row.AvgPrice) * *row.Size)
			t.CurrentValue = ptr(*cur * *row.Size)
		}
		return
	}
	if i := m.Find(p.Closed); i >= 0 {
		row := p.Closed[i]
		t.PositionStatus, t.Confidence = PositionClosed, ConfidenceInferred
		fillURL(t, row)
		backfillFromPosition(t, row)
		t.ClosedDate = rowTime(row)
		if pnl := realizedOrCash(row); pnl != nil {
			t.PnL = ptr(*pnl)
			if *pnl > 0 {
				t.Result = ResultWin
			} else {
				t.Result = ResultLoss
			}
		}
		return
	}
	t.Status = signal.StatusNotExecuted
	t.FailureReason = ReasonNotExecuted
}

// backfillFromPosition fills execution fields from the position's own
// average price and size when no execution was matched.
func backfillFromPosition(t *Trade, row normalize.Row) {
	if row.AvgPrice == nil || row.Size == nil {
		return
	}
	t.ExecPrice = ptr(*row.AvgPrice)
	t.Shares = ptr(*row.Size)
	t.ExecAmount = ptr(*row.AvgPrice * *row.Size)
}

func currentPrice(row normalize.Row) *float64 {
	if row.CurPrice != nil {
		return row.CurPrice
	}
	if row.CurrentValue != nil && row.Size != nil && *row.Size != 0 {
		return ptr(*row.CurrentValue / *row.Size)
	}
	return nil
}

func fillURL(t *Trade, row normalize.Row) {
	if strings.TrimSpace(t.MarketURL) == "" && strings.TrimSpace(row.URL) != "" {
		t.MarketURL = row.URL
	}
}

func rowTime(row normalize.Row) *time.Time {
	ts, ok := row.Time()
	if !ok {
		return nil
	}
	return &ts
}

func firstDefined(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return ptr(*v)
		}
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func ptr(v float64) *float64 {
	return &v
}
