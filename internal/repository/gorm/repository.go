package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"tradelens/internal/models"
	"tradelens/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not configured")
	}
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}

// SaveRun inserts the run and its trades atomically.
func (s *Store) SaveRun(ctx context.Context, run *models.ReconcileRun, trades []models.TradeRecord) error {
	if s == nil || s.db == nil || run == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		for i := range trades {
			trades[i].RunID = run.ID
		}
		return createInBatches(tx, trades, 200)
	})
}

func (s *Store) GetRun(ctx context.Context, id string) (*models.ReconcileRun, error) {
	if s == nil || s.db == nil {
		return nil, repository.ErrNotFound
	}
	var item models.ReconcileRun
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListRuns(ctx context.Context, params repository.ListRunsParams) ([]models.ReconcileRun, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := runsQuery(s.db.WithContext(ctx), params)
	query = applyOrder(query, runOrderColumn(params.OrderBy), params.Asc, "created_at")
	var items []models.ReconcileRun
	if err := query.
		Omit("stats", "series").
		Limit(normalizeLimit(params.Limit, 50)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountRuns(ctx context.Context, params repository.ListRunsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := runsQuery(s.db.WithContext(ctx), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListTradeRecords(ctx context.Context, params repository.ListTradeRecordsParams) ([]models.TradeRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.TradeRecord{}).Where("run_id = ?", strings.TrimSpace(params.RunID))
	if params.Trader != nil && strings.TrimSpace(*params.Trader) != "" {
		query = query.Where("trader = ?", strings.TrimSpace(*params.Trader))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit).Offset(normalizeOffset(params.Offset))
	}
	var items []models.TradeRecord
	if err := query.Order("seq asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return repository.ErrNotFound
	}
	id = strings.TrimSpace(id)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&models.TradeRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.ReconcileRun{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func runsQuery(db *gorm.DB, params repository.ListRunsParams) *gorm.DB {
	query := db.Model(&models.ReconcileRun{})
	if params.Source != nil && strings.TrimSpace(*params.Source) != "" {
		query = query.Where("source = ?", strings.TrimSpace(*params.Source))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	return query
}

func runOrderColumn(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "signals":
		return "signals"
	case "total_pnl", "pnl":
		return "total_pnl"
	case "created_at":
		return "created_at"
	default:
		return ""
	}
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.Create(items[i:end]).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
