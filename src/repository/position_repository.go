package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradedash/src/database"
	"tradedash/src/model"
)

// PositionRepository handles read/write operations for open and closed
// positions.
type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository() *PositionRepository {
	return &PositionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// FindOpenByUser returns every open position for the user, newest first.
func (r *PositionRepository) FindOpenByUser(
	ctx context.Context,
	userID uint,
) ([]model.Position, error) {

	var positions []model.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.PositionStatusOpen).
		Order("entry_time DESC, id DESC").
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PositionRepository",
			"op":      "FindOpenByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch open positions")
		return nil, err
	}

	return positions, nil
}

// findOpenMatch returns the open row matching the position's identity key,
// or (nil, nil) when there is none.
func (r *PositionRepository) findOpenMatch(
	ctx context.Context,
	userID uint,
	exchange, symbol, side string,
) (*model.Position, error) {

	var position model.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND exchange = ? AND symbol = ? AND side = ? AND status = ?",
			userID, exchange, symbol, side, model.PositionStatusOpen).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &position, nil
}

// UpsertOpen refreshes the stored open row matching the fetched position, or
// inserts a new one when no match exists. Running it twice with the same
// fetched data leaves the table unchanged apart from updated_at.
func (r *PositionRepository) UpsertOpen(
	ctx context.Context,
	position *model.Position,
) error {

	existing, err := r.findOpenMatch(ctx, position.UserID, position.Exchange, position.Symbol, position.Side)
	if err != nil {
		return err
	}

	if existing == nil {
		position.Status = model.PositionStatusOpen
		if position.EntryTime.IsZero() {
			position.EntryTime = time.Now().UTC()
		}
		if err := r.db.WithContext(ctx).Create(position).Error; err != nil {
			logger.WithFields(map[string]interface{}{
				"repo":     "PositionRepository",
				"op":       "UpsertOpen",
				"exchange": position.Exchange,
				"symbol":   position.Symbol,
			}).WithError(err).Error("Failed to insert position")
			return err
		}
		return nil
	}

	err = r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"current_price":          position.CurrentPrice,
			"unrealized_pnl_usd":     position.UnrealizedPnlUSD,
			"unrealized_pnl_percent": position.UnrealizedPnlPercent,
			"quantity":               position.Quantity,
			"position_size_usd":      position.PositionSizeUSD,
		}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "PositionRepository",
			"op":       "UpsertOpen",
			"exchange": position.Exchange,
			"symbol":   position.Symbol,
		}).WithError(err).Error("Failed to update position")
		return err
	}

	position.ID = existing.ID
	position.EntryTime = existing.EntryTime
	return nil
}

// MarkClosed flips an open row to closed once it has been materialized as a
// trade. There is no transition back to open.
func (r *PositionRepository) MarkClosed(
	ctx context.Context,
	id uint,
	closedAt time.Time,
) error {

	res := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("id = ? AND status = ?", id, model.PositionStatusOpen).
		Updates(map[string]interface{}{
			"status":    model.PositionStatusClosed,
			"closed_at": closedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// Save persists an externally supplied position row (dashboard save call).
func (r *PositionRepository) Save(
	ctx context.Context,
	position *model.Position,
) error {

	if position.ID != 0 {
		return r.db.WithContext(ctx).Save(position).Error
	}
	return r.db.WithContext(ctx).Create(position).Error
}
