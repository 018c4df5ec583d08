package model

import "time"

// Trade is an immutable record of a closed position. Rows are created by the
// reconciler when an open position disappears from a broker, or by an explicit
// save call; they are never mutated afterwards except by the fix-pnl
// correction pass.
type Trade struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"uniqueIndex:idx_trade_dedupe" json:"user_id"`
	Symbol            string    `gorm:"size:50;not null;uniqueIndex:idx_trade_dedupe" json:"symbol"`
	Exchange          string    `gorm:"size:50;not null;uniqueIndex:idx_trade_dedupe" json:"exchange"`
	AssetClass        string    `gorm:"size:30" json:"asset_class"`
	Side              string    `gorm:"size:10;not null" json:"side"`
	Quantity          float64   `json:"quantity"`
	PositionSizeUSD   float64   `gorm:"column:position_size_usd" json:"position_size_usd"`
	EntryPrice        float64   `json:"entry_price"`
	ExitPrice         float64   `json:"exit_price"`
	EntryTime         time.Time `gorm:"uniqueIndex:idx_trade_dedupe" json:"entry_time"`
	ExitTime          time.Time `json:"exit_time"`
	PnlUSD            float64   `gorm:"column:pnl_usd" json:"pnl_usd"`
	PnlPercent        float64   `json:"pnl_percent"`
	IsWinner          bool      `json:"is_winner"`
	ExitReason        string    `gorm:"size:255" json:"exit_reason,omitempty"`
	OrderID           *string   `gorm:"size:100" json:"order_id,omitempty"`
	StopLossPrice     *float64  `json:"stop_loss_price,omitempty"`
	TakeProfitPrice   *float64  `json:"take_profit_price,omitempty"`
	StopLossPercent   *float64  `json:"stop_loss_percent,omitempty"`
	TakeProfitPercent *float64  `json:"take_profit_percent,omitempty"`
	Notes             string    `gorm:"size:512" json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Trade) TableName() string {
	return "trades"
}
