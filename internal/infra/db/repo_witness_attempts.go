package db

import (
	"context"
	"errors"
	"time"

	"keryx/internal/domain"

	"gorm.io/gorm"
)

type WitnessAttemptRepository struct {
	db *gorm.DB
}

func NewWitnessAttemptRepository(db *gorm.DB) *WitnessAttemptRepository {
	return &WitnessAttemptRepository{db: db}
}

func (r *WitnessAttemptRepository) Append(ctx context.Context, attempt domain.WitnessAttempt) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if attempt.IdentityID == "" {
		return errors.New("identity_id is required")
	}
	if attempt.Provider == "" {
		return errors.New("provider is required")
	}
	if attempt.Status == "" {
		return errors.New("status is required")
	}
	if attempt.ContentHash == "" {
		return errors.New("content_hash is required")
	}

	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	model := WitnessAttemptModel{
		IdentityID:          attempt.IdentityID,
		CeremonyID:          attempt.CeremonyID,
		Provider:            attempt.Provider,
		Status:              attempt.Status,
		ErrorCode:           stringPtrIfNotEmpty(attempt.ErrorCode),
		ContentHash:         attempt.ContentHash,
		ProviderReceiptJSON: copyBytes(attempt.ProviderReceiptJSON),
		CreatedAt:           createdAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *WitnessAttemptRepository) ListByContentHash(ctx context.Context, identityID, contentHash string) ([]domain.WitnessAttempt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if identityID == "" || contentHash == "" {
		return nil, errors.New("identity_id and content_hash are required")
	}
	var models []WitnessAttemptModel
	if err := r.db.WithContext(ctx).
		Where("identity_id = ? AND content_hash = ?", identityID, contentHash).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.WitnessAttempt, 0, len(models))
	for _, model := range models {
		out = append(out, witnessAttemptFromModel(model))
	}
	return out, nil
}

func witnessAttemptFromModel(model WitnessAttemptModel) domain.WitnessAttempt {
	return domain.WitnessAttempt{
		IdentityID:          model.IdentityID,
		CeremonyID:          model.CeremonyID,
		Provider:            model.Provider,
		Status:              model.Status,
		ErrorCode:           stringValue(model.ErrorCode),
		ContentHash:         model.ContentHash,
		ProviderReceiptJSON: copyBytes(model.ProviderReceiptJSON),
		CreatedAt:           model.CreatedAt,
	}
}
