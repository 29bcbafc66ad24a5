package db

import (
	"context"
	"errors"

	"keryx/internal/domain"

	"gorm.io/gorm"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := IdentityModel{
		ID:        identity.ID,
		Label:     identity.Label,
		CreatedAt: identity.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *IdentityRepository) GetByID(ctx context.Context, identityID string) (*domain.Identity, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model IdentityModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", identityID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.Identity{
		ID:        model.ID,
		Label:     model.Label,
		CreatedAt: model.CreatedAt,
	}, nil
}
