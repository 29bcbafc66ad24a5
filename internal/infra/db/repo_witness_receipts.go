package db

import (
	"context"
	"errors"
	"time"

	"keryx/internal/domain"

	"gorm.io/gorm"
)

type WitnessReceiptRepository struct {
	db *gorm.DB
}

func NewWitnessReceiptRepository(db *gorm.DB) *WitnessReceiptRepository {
	return &WitnessReceiptRepository{db: db}
}

func (r *WitnessReceiptRepository) AppendPublished(ctx context.Context, receipt domain.WitnessReceipt) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if receipt.IdentityID == "" {
		return errors.New("identity_id is required")
	}
	if receipt.Provider == "" {
		return errors.New("provider is required")
	}
	if receipt.Status != domain.WitnessStatusPublished {
		return errors.New("only published receipts are stored")
	}
	if receipt.ContentHash == "" {
		return errors.New("content_hash is required")
	}

	createdAt := receipt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	model := WitnessReceiptModel{
		IdentityID:          receipt.IdentityID,
		CeremonyID:          receipt.CeremonyID,
		Provider:            receipt.Provider,
		Status:              receipt.Status,
		ErrorCode:           stringPtrIfNotEmpty(receipt.ErrorCode),
		ContentHash:         receipt.ContentHash,
		Location:            stringPtrIfNotEmpty(receipt.Location),
		ProviderReceiptJSON: copyBytes(receipt.ProviderReceiptJSON),
		CreatedAt:           createdAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *WitnessReceiptRepository) ListByContentHash(ctx context.Context, identityID, contentHash string) ([]domain.WitnessReceipt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if identityID == "" || contentHash == "" {
		return nil, errors.New("identity_id and content_hash are required")
	}
	var models []WitnessReceiptModel
	if err := r.db.WithContext(ctx).
		Where("identity_id = ? AND content_hash = ?", identityID, contentHash).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.WitnessReceipt, 0, len(models))
	for _, model := range models {
		out = append(out, witnessReceiptFromModel(model))
	}
	return out, nil
}

func (r *WitnessReceiptRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.WitnessReceipt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if identityID == "" {
		return nil, errors.New("identity_id is required")
	}
	var models []WitnessReceiptModel
	if err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.WitnessReceipt, 0, len(models))
	for _, model := range models {
		out = append(out, witnessReceiptFromModel(model))
	}
	return out, nil
}

func witnessReceiptFromModel(model WitnessReceiptModel) domain.WitnessReceipt {
	return domain.WitnessReceipt{
		IdentityID:          model.IdentityID,
		CeremonyID:          model.CeremonyID,
		Provider:            model.Provider,
		Status:              model.Status,
		ErrorCode:           stringValue(model.ErrorCode),
		ContentHash:         model.ContentHash,
		Location:            stringValue(model.Location),
		ProviderReceiptJSON: copyBytes(model.ProviderReceiptJSON),
		CreatedAt:           model.CreatedAt,
	}
}
