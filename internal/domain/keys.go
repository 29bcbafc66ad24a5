package domain

import "time"

type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusRetired KeyStatus = "retired"
	KeyStatusRevoked KeyStatus = "revoked"
)

// Identity is the registration record for one controlled identity.
type Identity struct {
	ID        string
	Label     string
	CreatedAt time.Time
}

// IdentityKey is a public key bound to an identity at some point in its
// event log. Private halves never appear here.
type IdentityKey struct {
	ID         string
	IdentityID string
	KID        string
	Purpose    KeyPurpose
	Alg        string
	PublicKey  []byte
	Status     KeyStatus
	CreatedAt  time.Time
}
