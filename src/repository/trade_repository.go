package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradedash/src/database"
	"tradedash/src/model"
)

// TradeRepository handles the immutable trade history.
type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository() *TradeRepository {
	return &TradeRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// CreateIfAbsent inserts a trade unless one already exists for the same
// (user, exchange, symbol, entry_time). The dedupe is enforced by the unique
// index, so two concurrent sync runs materializing the same closure still
// produce exactly one row. Returns whether a row was inserted.
func (r *TradeRepository) CreateIfAbsent(
	ctx context.Context,
	trade *model.Trade,
) (bool, error) {

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "exchange"},
				{Name: "symbol"},
				{Name: "entry_time"},
			},
			DoNothing: true,
		}).
		Create(trade)
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "CreateIfAbsent",
			"exchange": trade.Exchange,
			"symbol":   trade.Symbol,
		}).WithError(res.Error).Error("Failed to insert trade")
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// TradeSearchOptions filters the trade history listing.
type TradeSearchOptions struct {
	UserID       uint
	Exchange     *string
	Symbol       *string
	ExitedAfter  *time.Time
	ExitedBefore *time.Time
	Limit        int
	Offset       int
}

// Search returns trades for a user, newest exit first, with optional filters
// and pagination.
func (r *TradeRepository) Search(
	ctx context.Context,
	options TradeSearchOptions,
) ([]model.Trade, error) {

	query := r.db.WithContext(ctx).
		Where("user_id = ?", options.UserID)

	if options.Exchange != nil {
		query = query.Where("exchange = ?", *options.Exchange)
	}
	if options.Symbol != nil {
		query = query.Where("symbol = ?", *options.Symbol)
	}
	if options.ExitedAfter != nil {
		query = query.Where("exit_time >= ?", *options.ExitedAfter)
	}
	if options.ExitedBefore != nil {
		query = query.Where("exit_time <= ?", *options.ExitedBefore)
	}

	query = query.Order("exit_time DESC, id DESC")

	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var trades []model.Trade
	if err := query.Find(&trades).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "TradeRepository",
			"op":      "Search",
			"user_id": options.UserID,
		}).WithError(err).Error("Failed to search trades")
		return nil, err
	}

	return trades, nil
}

// FindExitedSince returns trades whose exit_time is at or after the cutoff,
// used by the fix-pnl correction pass.
func (r *TradeRepository) FindExitedSince(
	ctx context.Context,
	userID uint,
	since time.Time,
) ([]model.Trade, error) {

	var trades []model.Trade
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND exit_time >= ?", userID, since).
		Order("exit_time DESC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}

	return trades, nil
}

// UpdatePnl is the only sanctioned mutation of a trade row: the explicit
// out-of-band P&L correction.
func (r *TradeRepository) UpdatePnl(
	ctx context.Context,
	id uint,
	pnlUSD, pnlPercent float64,
	isWinner bool,
) error {

	return r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"pnl_usd":     pnlUSD,
			"pnl_percent": pnlPercent,
			"is_winner":   isWinner,
		}).Error
}
