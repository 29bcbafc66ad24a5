package soft

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"keryx/internal/config"
	"keryx/internal/domain"
)

// Manager is the software key manager. It holds ed25519 private keys in
// memory keyed by KeyRef for the lifetime of the process; nothing is written
// to disk and callers own the material they hand in.
type Manager struct {
	keys map[string]ed25519.PrivateKey

	witnessKeyBase64  string
	witnessKeySeedHex string
}

func NewManager(keys map[domain.KeyRef]ed25519.PrivateKey) *Manager {
	keyMap := make(map[string]ed25519.PrivateKey, len(keys))
	for ref, key := range keys {
		keyMap[keyRefKey(ref)] = append(ed25519.PrivateKey(nil), key...)
	}
	return &Manager{keys: keyMap}
}

func NewManagerFromConfig(cfg config.Config) *Manager {
	return &Manager{
		keys:              make(map[string]ed25519.PrivateKey),
		witnessKeyBase64:  cfg.WitnessPrivateKeyBase64,
		witnessKeySeedHex: cfg.WitnessPrivateKeySeedHex,
	}
}

func (m *Manager) Sign(_ context.Context, ref domain.KeyRef, payload []byte) ([]byte, error) {
	if err := validateKeyRef(ref); err != nil {
		return nil, err
	}
	key := m.lookupKey(ref)
	if key == nil {
		return nil, errors.New("private key not found")
	}
	return ed25519.Sign(key, payload), nil
}

func (m *Manager) Verify(_ context.Context, _ domain.KeyRef, payload []byte, sig []byte, pubKey []byte) error {
	return verifyEd25519(pubKey, payload, sig)
}

// Put stashes private key material under ref, replacing any previous entry.
func (m *Manager) Put(ref domain.KeyRef, key ed25519.PrivateKey) error {
	if err := validateKeyRef(ref); err != nil {
		return err
	}
	if len(key) != ed25519.PrivateKeySize {
		return domain.ErrInvalidKeyMaterial
	}
	if m.keys == nil {
		m.keys = make(map[string]ed25519.PrivateKey)
	}
	m.keys[keyRefKey(ref)] = append(ed25519.PrivateKey(nil), key...)
	return nil
}

// Drop discards the material under ref. Retired keys should not linger.
func (m *Manager) Drop(ref domain.KeyRef) {
	if m == nil || m.keys == nil {
		return
	}
	delete(m.keys, keyRefKey(ref))
}

func (m *Manager) lookupKey(ref domain.KeyRef) ed25519.PrivateKey {
	if m == nil {
		return nil
	}
	if len(m.keys) > 0 {
		if key, ok := m.keys[keyRefKey(ref)]; ok {
			return key
		}
	}
	if ref.Purpose == domain.KeyPurposeWitness {
		if key := readPrivateKeyBase64(m.witnessKeyBase64); key != nil {
			return key
		}
		if key := readPrivateKeyHex(m.witnessKeySeedHex); key != nil {
			return key
		}
	}
	return nil
}

func keyRefKey(ref domain.KeyRef) string {
	return ref.IdentityID + "|" + string(ref.Purpose) + "|" + ref.KID
}

func readPrivateKeyBase64(value string) ed25519.PrivateKey {
	if value == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	key, err := parsePrivateKey(raw)
	if err != nil {
		return nil
	}
	return key
}

func readPrivateKeyHex(value string) ed25519.PrivateKey {
	if value == "" {
		return nil
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil
	}
	key, err := parsePrivateKey(raw)
	if err != nil {
		return nil
	}
	return key
}

func parsePrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.New("invalid ed25519 private key length")
	}
}

func verifyEd25519(pubKey, payload, sig []byte) error {
	if len(pubKey) != ed25519.PublicKeySize {
		return errors.New("invalid ed25519 public key length")
	}
	if len(sig) != ed25519.SignatureSize {
		return errors.New("invalid ed25519 signature length")
	}
	if !ed25519.Verify(pubKey, payload, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}

func validateKeyRef(ref domain.KeyRef) error {
	if ref.IdentityID == "" || ref.KID == "" || ref.Purpose == "" {
		return errors.New("key ref is required")
	}
	switch ref.Purpose {
	case domain.KeyPurposeCurrent, domain.KeyPurposeNext, domain.KeyPurposeWitness:
		return nil
	default:
		return errors.New("unsupported key purpose")
	}
}
