package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tradedash/src/database"
	"tradedash/src/model"
)

// WebhookRequestRepository is the audit log for inbound bot webhooks.
type WebhookRequestRepository struct {
	db *gorm.DB
}

func NewWebhookRequestRepository() *WebhookRequestRepository {
	return &WebhookRequestRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *WebhookRequestRepository) WithDB(db *gorm.DB) *WebhookRequestRepository {
	return &WebhookRequestRepository{db: db}
}

func (r *WebhookRequestRepository) Create(
	ctx context.Context,
	req *model.WebhookRequest,
) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// CountSince counts webhook requests for a user since the cutoff, excluding
// the ones that were themselves rejected for rate limiting.
func (r *WebhookRequestRepository) CountSince(
	ctx context.Context,
	userID uint,
	since time.Time,
) (int64, error) {

	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.WebhookRequest{}).
		Where("user_id = ? AND created_at >= ? AND status <> ?",
			userID, since, model.WebhookStatusRateLimited).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// FindRecentByUser returns the newest webhook requests for the activity feed.
func (r *WebhookRequestRepository) FindRecentByUser(
	ctx context.Context,
	userID uint,
	limit int,
) ([]model.WebhookRequest, error) {

	if limit <= 0 {
		limit = 10
	}

	var requests []model.WebhookRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, err
	}

	return requests, nil
}

// MarkProcessed stamps the request with its final status.
func (r *WebhookRequestRepository) MarkProcessed(
	ctx context.Context,
	id uint,
	status, errorMessage string,
) error {

	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&model.WebhookRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
			"processed_at":  now,
		}).Error
}
