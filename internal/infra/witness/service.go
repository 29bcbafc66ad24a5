// Package witness publishes finalized rotation ceremonies to external
// append-only stores. Publication is best effort: every outcome, including
// failure, is persisted as an attempt so operators can replay outages.
package witness

import (
	"context"
	"errors"
	"time"

	"keryx/internal/domain"
)

type Provider interface {
	ProviderName() string
	Publish(ctx context.Context, payload Payload) domain.WitnessReceipt
}

type Service struct {
	providers          map[string]Provider
	defaultProviderIDs []string
	timeout            time.Duration
	attempts           domain.WitnessAttemptRepository
	receipts           domain.WitnessReceiptRepository
	clock              func() time.Time
}

func NewService(providers []Provider, defaultProviderIDs []string, timeout time.Duration, attempts domain.WitnessAttemptRepository, receipts domain.WitnessReceiptRepository) (*Service, error) {
	index := make(map[string]Provider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			return nil, errors.New("provider is nil")
		}
		id := provider.ProviderName()
		if id == "" {
			return nil, errors.New("provider id is required")
		}
		if _, exists := index[id]; exists {
			return nil, errors.New("duplicate provider id: " + id)
		}
		index[id] = provider
	}
	return &Service{
		providers:          index,
		defaultProviderIDs: defaultProviderIDs,
		timeout:            timeout,
		attempts:           attempts,
		receipts:           receipts,
		clock:              time.Now,
	}, nil
}

func (s *Service) PublishCeremony(ctx context.Context, ceremony domain.FinalizedCeremony) ([]domain.WitnessReceipt, error) {
	if s == nil {
		return nil, errors.New("witness service is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := BuildPayload(ceremony)
	if err != nil {
		return nil, err
	}
	ids := s.defaultProviderIDs
	if len(ids) == 0 {
		receipt := skippedReceipt(payload, "witness")
		receipt = s.persistAttempt(ctx, receipt)
		return []domain.WitnessReceipt{receipt}, nil
	}

	receipts := make([]domain.WitnessReceipt, 0, len(ids))
	for _, id := range ids {
		provider, ok := s.providers[id]
		if !ok {
			receipt := failedConfigReceipt(payload, id)
			receipt = s.persistAttempt(ctx, receipt)
			receipts = append(receipts, receipt)
			continue
		}
		timeout := s.timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		providerCtx, cancel := context.WithTimeout(ctx, timeout)
		receipt := provider.Publish(providerCtx, payload)
		cancel()
		if receipt.Provider == "" {
			receipt.Provider = provider.ProviderName()
		}
		if receipt.Status == "" {
			receipt.Status = domain.WitnessStatusPublished
		}
		receipt.IdentityID = payload.IdentityID
		receipt.CeremonyID = payload.CeremonyID
		receipt.ContentHash = payload.HashHex
		if providerCtx.Err() == context.DeadlineExceeded {
			receipt.Status = domain.WitnessStatusFailed
			if receipt.ErrorCode == "" {
				receipt.ErrorCode = domain.WitnessErrorTimeout
			}
		}
		receipt = s.persistAttempt(ctx, receipt)
		if receipt.Status == domain.WitnessStatusPublished {
			receipt = s.persistReceipt(ctx, receipt)
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

func (s *Service) persistAttempt(ctx context.Context, receipt domain.WitnessReceipt) domain.WitnessReceipt {
	if s.attempts == nil {
		return receipt
	}
	attempt := domain.WitnessAttempt{
		IdentityID:          receipt.IdentityID,
		Provider:            receipt.Provider,
		CeremonyID:          receipt.CeremonyID,
		Status:              receipt.Status,
		ErrorCode:           receipt.ErrorCode,
		ContentHash:         receipt.ContentHash,
		ProviderReceiptJSON: cloneBytes(receipt.ProviderReceiptJSON),
		CreatedAt:           s.clock().UTC(),
	}
	if err := s.attempts.Append(ctx, attempt); err != nil {
		receipt.Status = domain.WitnessStatusFailed
		receipt.ErrorCode = domain.WitnessErrorPersistence
	}
	return receipt
}

func (s *Service) persistReceipt(ctx context.Context, receipt domain.WitnessReceipt) domain.WitnessReceipt {
	if s.receipts == nil {
		return receipt
	}
	if err := s.receipts.AppendPublished(ctx, receipt); err != nil {
		receipt.Status = domain.WitnessStatusFailed
		receipt.ErrorCode = domain.WitnessErrorPersistence
	}
	return receipt
}

func failedConfigReceipt(payload Payload, provider string) domain.WitnessReceipt {
	return domain.WitnessReceipt{
		IdentityID:  payload.IdentityID,
		Provider:    provider,
		CeremonyID:  payload.CeremonyID,
		Status:      domain.WitnessStatusFailed,
		ErrorCode:   domain.WitnessErrorBadConfig,
		ContentHash: payload.HashHex,
	}
}

func skippedReceipt(payload Payload, provider string) domain.WitnessReceipt {
	return domain.WitnessReceipt{
		IdentityID:  payload.IdentityID,
		Provider:    provider,
		CeremonyID:  payload.CeremonyID,
		Status:      domain.WitnessStatusSkipped,
		ContentHash: payload.HashHex,
	}
}

func cloneBytes(in []byte) []byte {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
