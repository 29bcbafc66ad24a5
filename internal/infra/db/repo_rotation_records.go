package db

import (
	"context"
	"errors"
	"time"

	"keryx/internal/domain"

	"gorm.io/gorm"
)

type RotationRecordRepository struct {
	db *gorm.DB
}

func NewRotationRecordRepository(db *gorm.DB) *RotationRecordRepository {
	return &RotationRecordRepository{db: db}
}

func (r *RotationRecordRepository) Append(ctx context.Context, record domain.RotationRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if record.IdentityID == "" {
		return errors.New("identity_id is required")
	}
	if record.OldKeyID == "" || record.NewKeyID == "" {
		return errors.New("old_key_id and new_key_id are required")
	}
	model := RotationRecordModel{
		IdentityID:       record.IdentityID,
		OldKID:           record.OldKeyID,
		NewKID:           record.NewKeyID,
		EffectiveAt:      record.EffectiveAt,
		OldKeySignature:  copyBytes(record.OldKeySignature),
		NewKeySignature:  copyBytes(record.NewKeySignature),
		PrevRecordDigest: copyBytes(record.PrevRecordDigest),
		Reason:           record.Reason,
		CreatedAt:        time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *RotationRecordRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.RotationRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []RotationRecordModel
	if err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("effective_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RotationRecord, 0, len(models))
	for _, model := range models {
		out = append(out, rotationRecordFromModel(model))
	}
	return out, nil
}

func rotationRecordFromModel(model RotationRecordModel) domain.RotationRecord {
	return domain.RotationRecord{
		IdentityID:       model.IdentityID,
		OldKeyID:         model.OldKID,
		NewKeyID:         model.NewKID,
		EffectiveAt:      model.EffectiveAt,
		OldKeySignature:  copyBytes(model.OldKeySignature),
		NewKeySignature:  copyBytes(model.NewKeySignature),
		PrevRecordDigest: copyBytes(model.PrevRecordDigest),
		Reason:           model.Reason,
	}
}
