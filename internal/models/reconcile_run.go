package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ReconcileRun is one archived reconciliation pass with its aggregates.
type ReconcileRun struct {
	ID     string `gorm:"type:varchar(36);primaryKey"`
	Source string `gorm:"type:varchar(20);not null;index"`

	Signals         int `gorm:"not null"`
	Successful      int `gorm:"not null"`
	Failed          int `gorm:"not null"`
	NotExecuted     int `gorm:"not null"`
	ExactMatches    int `gorm:"not null"`
	InferredMatches int `gorm:"not null"`

	// Use explicit column names because default GORM naming turns "PnL" into "pn_l".
	TotalPnL decimal.Decimal `gorm:"column:total_pnl;type:numeric(30,10);not null"`

	Stats  datatypes.JSON
	Series datatypes.JSON

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (ReconcileRun) TableName() string {
	return "reconcile_runs"
}
