package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tradedash/src/database"
	"tradedash/src/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository() *UserRepository {
	return &UserRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *UserRepository) WithDB(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// FindByEmail returns (nil, nil) when no user matches.
func (r *UserRepository) FindByEmail(
	ctx context.Context,
	email string,
) (*model.User, error) {

	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// FindByAPIToken resolves the bearer token used by the dashboard. Returns
// (nil, nil) when the token is unknown.
func (r *UserRepository) FindByAPIToken(
	ctx context.Context,
	token string,
) (*model.User, error) {

	var user model.User
	err := r.db.WithContext(ctx).
		Where("api_token = ?", token).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// FindByID returns (nil, nil) when no user matches.
func (r *UserRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.User, error) {

	var user model.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}
