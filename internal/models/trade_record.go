package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one reconciled trade of an archived run.
type TradeRecord struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`
	RunID string `gorm:"type:varchar(36);not null;index:idx_trade_records_run_seq,priority:1"`
	Seq   int    `gorm:"not null;index:idx_trade_records_run_seq,priority:2"`

	SignalAt time.Time `gorm:"index"`
	ClosedAt *time.Time

	Trader  string          `gorm:"type:varchar(200);not null;index"`
	Sender  string          `gorm:"type:varchar(200)"`
	Action  string          `gorm:"type:varchar(10);not null"`
	Outcome string          `gorm:"type:varchar(200)"`
	Amount  decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	MarketTitle string `gorm:"type:text"`
	MarketSlug  string `gorm:"type:varchar(300);index"`
	MarketURL   string `gorm:"type:text"`
	Category    string `gorm:"type:varchar(50);index"`

	Status          string `gorm:"type:varchar(20);not null;index"`
	FailureReason   string `gorm:"type:varchar(100)"`
	PositionStatus  string `gorm:"type:varchar(20)"`
	MatchConfidence string `gorm:"type:varchar(30)"`
	Result          string `gorm:"type:varchar(10)"`

	TxHash         string           `gorm:"type:varchar(100)"`
	ExecPrice      *decimal.Decimal `gorm:"type:numeric(20,10)"`
	ExecAmount     *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Shares         *decimal.Decimal `gorm:"type:numeric(30,10)"`
	LatencySeconds *float64

	PnL            *decimal.Decimal `gorm:"column:pnl;type:numeric(30,10)"`
	CurrentValue   *decimal.Decimal `gorm:"type:numeric(30,10)"`
	TotalAttempted decimal.Decimal  `gorm:"type:numeric(30,10);not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}
