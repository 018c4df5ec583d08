package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradedash/src/database"
	"tradedash/src/model"
)

// BotCredentialRepository handles per-user broker API secret bundles.
type BotCredentialRepository struct {
	db *gorm.DB
}

func NewBotCredentialRepository() *BotCredentialRepository {
	return &BotCredentialRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *BotCredentialRepository) WithDB(db *gorm.DB) *BotCredentialRepository {
	return &BotCredentialRepository{db: db}
}

// Upsert creates a credential or refreshes the secret fields when the
// (user_id, exchange, environment) combination already exists. The webhook
// secret is deliberately not in the update list: rotating API keys must not
// invalidate webhooks already configured with the old secret.
func (r *BotCredentialRepository) Upsert(
	ctx context.Context,
	cred *model.BotCredential,
) error {

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "exchange"},
				{Name: "environment"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"label",
				"account_id",
				"api_key",
				"api_secret",
				"api_passphrase",
				"updated_at",
			}),
		}).
		Create(cred).Error
}

// FindByUser returns all production credentials owned by the user.
func (r *BotCredentialRepository) FindByUser(
	ctx context.Context,
	userID uint,
) ([]model.BotCredential, error) {

	var creds []model.BotCredential
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND environment = ?", userID, model.EnvironmentProduction).
		Order("label ASC").
		Find(&creds).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "BotCredentialRepository",
			"op":      "FindByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch credentials")
		return nil, err
	}

	return creds, nil
}

// FindByWebhookSecret resolves the credential owning an inbound webhook
// secret. Returns (nil, nil) when no credential matches.
func (r *BotCredentialRepository) FindByWebhookSecret(
	ctx context.Context,
	secret string,
) (*model.BotCredential, error) {

	var cred model.BotCredential
	err := r.db.WithContext(ctx).
		Where("webhook_secret = ? AND environment = ?", secret, model.EnvironmentProduction).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &cred, nil
}

// Delete removes a credential. The user id is part of the predicate so a
// user can only delete rows they own.
func (r *BotCredentialRepository) Delete(
	ctx context.Context,
	userID uint,
	id uint,
) error {

	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.BotCredential{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// ListUserIDs returns the distinct users that have at least one stored
// credential, for the scheduled sync.
func (r *BotCredentialRepository) ListUserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&model.BotCredential{}).
		Where("environment = ?", model.EnvironmentProduction).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}

	return ids, nil
}
