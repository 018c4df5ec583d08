package model

import "time"

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

const (
	AssetClassCrypto  = "crypto"
	AssetClassForex   = "forex"
	AssetClassStocks  = "stocks"
	AssetClassOptions = "options"
	AssetClassFutures = "futures"
)

// Position represents an open brokerage exposure as last observed on an
// exchange. While open, at most one row exists per (user, exchange, symbol,
// side); every sync pass refreshes price and unrealized P&L in place.
type Position struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               uint       `gorm:"index" json:"user_id"`
	Symbol               string     `gorm:"size:50;not null;index" json:"symbol"`
	Exchange             string     `gorm:"size:50;not null;index" json:"exchange"`
	AssetClass           string     `gorm:"size:30" json:"asset_class"`
	Side                 string     `gorm:"size:10;not null" json:"side"`
	Quantity             float64    `json:"quantity"`
	PositionSizeUSD      float64    `gorm:"column:position_size_usd" json:"position_size_usd"`
	EntryPrice           float64    `json:"entry_price"`
	CurrentPrice         float64    `json:"current_price"`
	UnrealizedPnlUSD     float64    `gorm:"column:unrealized_pnl_usd" json:"unrealized_pnl_usd"`
	UnrealizedPnlPercent float64    `json:"unrealized_pnl_percent"`
	EntryTime            time.Time  `json:"entry_time"`
	StopLossPrice        *float64   `json:"stop_loss_price,omitempty"`
	TakeProfitPrice      *float64   `json:"take_profit_price,omitempty"`
	StopLossPercent      *float64   `json:"stop_loss_percent,omitempty"`
	TakeProfitPercent    *float64   `json:"take_profit_percent,omitempty"`
	Notes                string     `gorm:"size:512" json:"notes,omitempty"`
	Status               string     `gorm:"size:50;not null;default:open;index" json:"status"`
	ClosedAt             *time.Time `json:"closed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// Key identifies an open position within a sync run. Side is part of the key
// so a hedged long and short on the same symbol are tracked separately.
func (p *Position) Key() string {
	return p.Exchange + "|" + p.Symbol + "|" + p.Side
}
