package repository

import (
	"context"

	"gorm.io/gorm"

	"tradedash/src/database"
	"tradedash/src/model"
)

type StrategyRepository struct {
	db *gorm.DB
}

func NewStrategyRepository() *StrategyRepository {
	return &StrategyRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *StrategyRepository) WithDB(db *gorm.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

func (r *StrategyRepository) FindByUser(
	ctx context.Context,
	userID uint,
) ([]model.Strategy, error) {

	var strategies []model.Strategy
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&strategies).Error
	if err != nil {
		return nil, err
	}

	return strategies, nil
}
