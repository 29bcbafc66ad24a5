package db

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"keryx/internal/domain"

	"gorm.io/gorm"
)

type KeyEventRepository struct {
	db     *gorm.DB
	digest func(domain.KeyEvent) ([]byte, error)
}

func NewKeyEventRepository(db *gorm.DB, digest func(domain.KeyEvent) ([]byte, error)) *KeyEventRepository {
	return &KeyEventRepository{db: db, digest: digest}
}

func (r *KeyEventRepository) Append(ctx context.Context, event domain.KeyEvent) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if event.IdentityID == "" {
		return errors.New("identity_id is required")
	}
	eventDigest, err := r.digest(event)
	if err != nil {
		return err
	}
	hash := hex.EncodeToString(eventDigest)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing KeyEventModel
		err := tx.Where("identity_id = ? AND event_hash = ?", event.IdentityID, hash).
			Take(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var count int64
		if err := tx.Model(&KeyEventModel{}).
			Where("identity_id = ?", event.IdentityID).
			Count(&count).Error; err != nil {
			return err
		}
		if uint64(count) != event.Sequence {
			return domain.ErrInvalidRotation
		}

		model := KeyEventModel{
			IdentityID:       event.IdentityID,
			Seq:              int64(event.Sequence),
			Kind:             string(event.Kind),
			CurrentKey:       copyBytes(event.CurrentKey),
			NextKeyDigest:    copyBytes(event.NextKeyDigest),
			PriorEventDigest: copyBytes(event.PriorEventDigest),
			EventTimestamp:   event.Timestamp,
			Signature:        copyBytes(event.Signature),
			EventHash:        hash,
			CreatedAt:        time.Now().UTC(),
		}
		return tx.Create(&model).Error
	})
}

func (r *KeyEventRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.KeyEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []KeyEventModel
	if err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.KeyEvent, 0, len(models))
	for _, model := range models {
		out = append(out, keyEventFromModel(model))
	}
	return out, nil
}

func keyEventFromModel(model KeyEventModel) domain.KeyEvent {
	return domain.KeyEvent{
		IdentityID:       model.IdentityID,
		Sequence:         uint64(model.Seq),
		Kind:             domain.EventKind(model.Kind),
		CurrentKey:       copyBytes(model.CurrentKey),
		NextKeyDigest:    copyBytes(model.NextKeyDigest),
		PriorEventDigest: copyBytes(model.PriorEventDigest),
		Timestamp:        model.EventTimestamp,
		Signature:        copyBytes(model.Signature),
	}
}
