// Package filedir is a witness provider backed by a local directory. Each
// published ceremony becomes one JSON file whose name embeds the identity,
// publication time, and a content hash prefix. Files are never rewritten.
package filedir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"keryx/internal/domain"
	"keryx/internal/infra/witness"
)

type Provider struct {
	name  string
	dir   string
	clock func() time.Time
}

func NewProvider(dir string) (*Provider, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("witness directory is required")
	}
	return &Provider{
		name:  "file",
		dir:   dir,
		clock: time.Now,
	}, nil
}

func NewProviderWithClock(dir string, clock func() time.Time) (*Provider, error) {
	provider, err := NewProvider(dir)
	if err != nil {
		return nil, err
	}
	if clock != nil {
		provider.clock = clock
	}
	return provider, nil
}

func (p *Provider) ProviderName() string {
	if p.name == "" {
		return "file"
	}
	return p.name
}

func (p *Provider) Publish(ctx context.Context, payload witness.Payload) domain.WitnessReceipt {
	receipt := domain.WitnessReceipt{
		Provider:    p.ProviderName(),
		IdentityID:  payload.IdentityID,
		CeremonyID:  payload.CeremonyID,
		ContentHash: payload.HashHex,
	}
	if err := ctx.Err(); err != nil {
		receipt.Status = domain.WitnessStatusFailed
		receipt.ErrorCode = domain.WitnessErrorTimeout
		return receipt
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		receipt.Status = domain.WitnessStatusFailed
		receipt.ErrorCode = domain.WitnessErrorIO
		return receipt
	}

	// Same content hash means same canonical bytes, so an existing entry for
	// this payload makes the publish a no-op.
	if existing, ok := p.findExisting(payload); ok {
		receipt.Status = domain.WitnessStatusPublished
		receipt.Location = existing
		return receipt
	}

	name := entryName(payload.IdentityID, p.clock().UTC(), payload.HashHex)
	path := filepath.Join(p.dir, name)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			receipt.Status = domain.WitnessStatusPublished
			receipt.Location = path
			return receipt
		}
		receipt.Status = domain.WitnessStatusFailed
		receipt.ErrorCode = domain.WitnessErrorIO
		return receipt
	}
	_, writeErr := file.Write(payload.CanonicalJSON)
	closeErr := file.Close()
	if writeErr != nil || closeErr != nil {
		receipt.Status = domain.WitnessStatusFailed
		receipt.ErrorCode = domain.WitnessErrorIO
		return receipt
	}

	receipt.Status = domain.WitnessStatusPublished
	receipt.Location = path
	receipt.ProviderReceiptJSON = entryReceipt(path, payload.HashHex)
	return receipt
}

func (p *Provider) findExisting(payload witness.Payload) (string, bool) {
	pattern := filepath.Join(p.dir, sanitize(payload.IdentityID)+"_*_"+hashPrefix(payload.HashHex)+".json")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

func entryName(identityID string, at time.Time, hashHex string) string {
	return fmt.Sprintf("%s_%s_%s.json", sanitize(identityID), at.Format("20060102T150405Z"), hashPrefix(hashHex))
}

func hashPrefix(hashHex string) string {
	if len(hashHex) > 8 {
		return hashHex[:8]
	}
	return hashHex
}

// sanitize keeps identity IDs filesystem safe without losing uniqueness for
// the usual uuid-style IDs.
func sanitize(identityID string) string {
	var b strings.Builder
	for _, r := range identityID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "identity"
	}
	return b.String()
}

func entryReceipt(path, hashHex string) json.RawMessage {
	body, err := json.Marshal(map[string]string{
		"path":         path,
		"content_hash": hashHex,
	})
	if err != nil {
		return nil
	}
	return json.RawMessage(body)
}
