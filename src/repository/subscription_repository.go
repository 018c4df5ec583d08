package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tradedash/src/database"
	"tradedash/src/model"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *SubscriptionRepository) WithDB(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindActiveByUser returns the user's newest active subscription, or
// (nil, nil) when the user is on the free tier.
func (r *SubscriptionRepository) FindActiveByUser(
	ctx context.Context,
	userID uint,
) (*model.Subscription, error) {

	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.SubscriptionStatusActive).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

// PlanForUser resolves the effective plan name, defaulting to Free.
func (r *SubscriptionRepository) PlanForUser(
	ctx context.Context,
	userID uint,
) (string, error) {

	sub, err := r.FindActiveByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return model.PlanFree, nil
	}

	return sub.Plan, nil
}
