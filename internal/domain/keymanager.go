package domain

import "context"

type KeyPurpose string

const (
	KeyPurposeCurrent KeyPurpose = "current"
	KeyPurposeNext    KeyPurpose = "next"
	KeyPurposeWitness KeyPurpose = "witness"
)

type KeyRef struct {
	IdentityID string
	Purpose    KeyPurpose
	KID        string
}

// KeyManager performs cryptographic operations using keys resolved by KeyRef.
// Verify accepts a public key so offline verification never depends on a key
// store. Key material is supplied by the caller and never cached globally.
type KeyManager interface {
	Sign(ctx context.Context, ref KeyRef, payload []byte) ([]byte, error)
	Verify(ctx context.Context, ref KeyRef, payload []byte, sig []byte, pubKey []byte) error
}
