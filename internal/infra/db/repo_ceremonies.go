package db

import (
	"context"
	"errors"

	"keryx/internal/domain"

	"gorm.io/gorm"
)

type CeremonyRepository struct {
	db *gorm.DB
}

func NewCeremonyRepository(db *gorm.DB) *CeremonyRepository {
	return &CeremonyRepository{db: db}
}

func (r *CeremonyRepository) Create(ctx context.Context, ceremonyID string, request domain.RotationRequest, state domain.CeremonyState) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if ceremonyID == "" {
		return errors.New("ceremony_id is required")
	}
	if request.IdentityID == "" {
		return errors.New("identity_id is required")
	}
	model := CeremonyModel{
		ID:             ceremonyID,
		IdentityID:     request.IdentityID,
		OldKey:         copyBytes(request.OldKey),
		NewKey:         copyBytes(request.NewKey),
		Nonce:          request.Nonce,
		Threshold:      request.Threshold,
		TotalAttestors: request.TotalAttestors,
		State:          string(state),
		CreatedAt:      request.CreatedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *CeremonyRepository) AppendAttestation(ctx context.Context, ceremonyID string, att domain.Attestation) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if ceremonyID == "" {
		return errors.New("ceremony_id is required")
	}
	model := AttestationModel{
		CeremonyID:  ceremonyID,
		AttestorID:  att.AttestorID,
		AttestorKey: copyBytes(att.AttestorKey),
		Signature:   copyBytes(att.Signature),
		Channel:     att.Channel,
		AttestedAt:  att.AttestedAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *CeremonyRepository) UpdateState(ctx context.Context, ceremonyID string, state domain.CeremonyState) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).
		Model(&CeremonyModel{}).
		Where("id = ?", ceremonyID).
		Update("state", string(state))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CeremonyRepository) Get(ctx context.Context, ceremonyID string) (*domain.RotationRequest, []domain.Attestation, domain.CeremonyState, error) {
	if r.db == nil {
		return nil, nil, "", errDBUnavailable
	}
	var model CeremonyModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", ceremonyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, "", domain.ErrNotFound
		}
		return nil, nil, "", err
	}

	var attModels []AttestationModel
	if err := r.db.WithContext(ctx).
		Where("ceremony_id = ?", ceremonyID).
		Order("attested_at ASC, id ASC").
		Find(&attModels).Error; err != nil {
		return nil, nil, "", err
	}

	request := domain.RotationRequest{
		IdentityID:     model.IdentityID,
		OldKey:         copyBytes(model.OldKey),
		NewKey:         copyBytes(model.NewKey),
		Nonce:          model.Nonce,
		CreatedAt:      model.CreatedAt,
		Threshold:      model.Threshold,
		TotalAttestors: model.TotalAttestors,
	}
	attestations := make([]domain.Attestation, 0, len(attModels))
	for _, attModel := range attModels {
		attestations = append(attestations, domain.Attestation{
			AttestorID:  attModel.AttestorID,
			AttestorKey: copyBytes(attModel.AttestorKey),
			Signature:   copyBytes(attModel.Signature),
			Channel:     attModel.Channel,
			AttestedAt:  attModel.AttestedAt,
		})
	}
	return &request, attestations, domain.CeremonyState(model.State), nil
}
