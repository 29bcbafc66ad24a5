package db

import (
	"context"
	"errors"

	"keryx/internal/domain"

	"gorm.io/gorm"
)

type IdentityKeyRepository struct {
	db *gorm.DB
}

func NewIdentityKeyRepository(db *gorm.DB) *IdentityKeyRepository {
	return &IdentityKeyRepository{db: db}
}

func (r *IdentityKeyRepository) Create(ctx context.Context, key domain.IdentityKey) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if key.IdentityID == "" {
		return errors.New("identity_id is required")
	}
	if key.KID == "" {
		return errors.New("kid is required")
	}
	if len(key.PublicKey) == 0 {
		return errors.New("public_key is required")
	}
	purpose := key.Purpose
	if purpose == "" {
		purpose = domain.KeyPurposeCurrent
	}
	model := IdentityKeyModel{
		ID:         key.ID,
		IdentityID: key.IdentityID,
		KID:        key.KID,
		Purpose:    string(purpose),
		Alg:        key.Alg,
		PublicKey:  copyBytes(key.PublicKey),
		Status:     string(key.Status),
		CreatedAt:  key.CreatedAt,
	}
	if model.ID == "" {
		id, err := NewUUID()
		if err != nil {
			return err
		}
		model.ID = id
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *IdentityKeyRepository) GetByKID(ctx context.Context, identityID, kid string) (*domain.IdentityKey, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model IdentityKeyModel
	err := r.db.WithContext(ctx).
		First(&model, "identity_id = ? AND kid = ?", identityID, kid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	key := identityKeyFromModel(model)
	return &key, nil
}

func (r *IdentityKeyRepository) UpdateStatus(ctx context.Context, identityID, kid string, status domain.KeyStatus) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).
		Model(&IdentityKeyModel{}).
		Where("identity_id = ? AND kid = ?", identityID, kid).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *IdentityKeyRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.IdentityKey, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []IdentityKeyModel
	if err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.IdentityKey, 0, len(models))
	for _, model := range models {
		out = append(out, identityKeyFromModel(model))
	}
	return out, nil
}

func identityKeyFromModel(model IdentityKeyModel) domain.IdentityKey {
	return domain.IdentityKey{
		ID:         model.ID,
		IdentityID: model.IdentityID,
		KID:        model.KID,
		Purpose:    domain.KeyPurpose(model.Purpose),
		Alg:        model.Alg,
		PublicKey:  copyBytes(model.PublicKey),
		Status:     domain.KeyStatus(model.Status),
		CreatedAt:  model.CreatedAt,
	}
}
