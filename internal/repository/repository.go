package repository

import (
	"context"
	"errors"
	"time"

	"tradelens/internal/models"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("not found")

// Repository archives reconciliation runs. The engine itself never depends on it.
type Repository interface {
	Ping(ctx context.Context) error

	SaveRun(ctx context.Context, run *models.ReconcileRun, trades []models.TradeRecord) error
	GetRun(ctx context.Context, id string) (*models.ReconcileRun, error)
	ListRuns(ctx context.Context, params ListRunsParams) ([]models.ReconcileRun, error)
	CountRuns(ctx context.Context, params ListRunsParams) (int64, error)
	ListTradeRecords(ctx context.Context, params ListTradeRecordsParams) ([]models.TradeRecord, error)
	DeleteRun(ctx context.Context, id string) error
}

type ListRunsParams struct {
	Limit   int
	Offset  int
	Source  *string
	Since   *time.Time
	OrderBy string
	Asc     *bool
}

type ListTradeRecordsParams struct {
	RunID  string
	Trader *string
	Status *string
	Limit  int
	Offset int
}
