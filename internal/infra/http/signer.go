package http

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"

	"keryx/internal/config"
	"keryx/internal/infra/witness/httplog"
)

type witnessSigner struct {
	priv ed25519.PrivateKey
}

func (s *witnessSigner) Sign(_ context.Context, payload []byte) ([]byte, []byte, error) {
	sig := ed25519.Sign(s.priv, payload)
	pub := s.priv.Public().(ed25519.PublicKey)
	return sig, []byte(pub), nil
}

// loadWitnessSigner builds the transparency-log signer from configured key
// material. Either a full private key or a 32-byte seed is accepted; a nil
// return disables the httplog provider.
func loadWitnessSigner(cfg config.Config) httplog.Signer {
	var privKey ed25519.PrivateKey

	if cfg.WitnessPrivateKeyBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(cfg.WitnessPrivateKeyBase64)
		if err != nil {
			return nil
		}
		switch len(decoded) {
		case ed25519.PrivateKeySize:
			privKey = ed25519.PrivateKey(decoded)
		case ed25519.SeedSize:
			privKey = ed25519.NewKeyFromSeed(decoded)
		default:
			return nil
		}
	}

	if privKey == nil && cfg.WitnessPrivateKeySeedHex != "" {
		decoded, err := hex.DecodeString(cfg.WitnessPrivateKeySeedHex)
		if err != nil || len(decoded) != ed25519.SeedSize {
			return nil
		}
		privKey = ed25519.NewKeyFromSeed(decoded)
	}

	if privKey == nil {
		return nil
	}
	return &witnessSigner{priv: privKey}
}
