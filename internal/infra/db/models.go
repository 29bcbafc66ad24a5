package db

import "time"

type IdentityModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	Label     string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (IdentityModel) TableName() string {
	return "identities"
}

type IdentityKeyModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	IdentityID string    `gorm:"type:uuid;index;not null"`
	KID        string    `gorm:"column:kid;index;not null"`
	Purpose    string    `gorm:"not null"`
	Alg        string    `gorm:"not null"`
	PublicKey  []byte    `gorm:"type:bytea;not null"`
	Status     string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (IdentityKeyModel) TableName() string {
	return "identity_keys"
}

type KeyEventModel struct {
	ID               int64     `gorm:"primaryKey"`
	IdentityID       string    `gorm:"type:uuid;index:idx_key_events_identity_seq,unique;not null"`
	Seq              int64     `gorm:"index:idx_key_events_identity_seq,unique;not null"`
	Kind             string    `gorm:"not null"`
	CurrentKey       []byte    `gorm:"type:bytea;not null"`
	NextKeyDigest    []byte    `gorm:"type:bytea;not null"`
	PriorEventDigest []byte    `gorm:"type:bytea"`
	EventTimestamp   string    `gorm:"not null"`
	Signature        []byte    `gorm:"type:bytea;not null"`
	EventHash        string    `gorm:"index;not null"`
	CreatedAt        time.Time `gorm:"not null"`
}

func (KeyEventModel) TableName() string {
	return "key_events"
}

type RotationRecordModel struct {
	ID               int64  `gorm:"primaryKey"`
	IdentityID       string `gorm:"type:uuid;index;not null"`
	OldKID           string `gorm:"column:old_kid;not null"`
	NewKID           string `gorm:"column:new_kid;not null"`
	EffectiveAt      string `gorm:"not null"`
	OldKeySignature  []byte `gorm:"type:bytea;not null"`
	NewKeySignature  []byte `gorm:"type:bytea;not null"`
	PrevRecordDigest []byte `gorm:"type:bytea"`
	Reason           string
	CreatedAt        time.Time `gorm:"not null"`
}

func (RotationRecordModel) TableName() string {
	return "rotation_records"
}

type CeremonyModel struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	IdentityID     string    `gorm:"type:uuid;index;not null"`
	OldKey         []byte    `gorm:"type:bytea;not null"`
	NewKey         []byte    `gorm:"type:bytea;not null"`
	Nonce          string    `gorm:"not null"`
	Threshold      int       `gorm:"not null"`
	TotalAttestors int       `gorm:"not null"`
	State          string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (CeremonyModel) TableName() string {
	return "ceremonies"
}

type AttestationModel struct {
	ID          int64     `gorm:"primaryKey"`
	CeremonyID  string    `gorm:"type:uuid;index;not null"`
	AttestorID  string    `gorm:"not null"`
	AttestorKey []byte    `gorm:"type:bytea;not null"`
	Signature   []byte    `gorm:"type:bytea;not null"`
	Channel     string
	AttestedAt  time.Time `gorm:"not null"`
}

func (AttestationModel) TableName() string {
	return "attestations"
}

type WitnessAttemptModel struct {
	ID                  int64  `gorm:"primaryKey"`
	IdentityID          string `gorm:"index;not null"`
	CeremonyID          string `gorm:"index;not null"`
	Provider            string `gorm:"not null"`
	Status              string `gorm:"not null"`
	ErrorCode           *string
	ContentHash         string    `gorm:"index;not null"`
	ProviderReceiptJSON []byte    `gorm:"type:jsonb"`
	CreatedAt           time.Time `gorm:"not null"`
}

func (WitnessAttemptModel) TableName() string {
	return "witness_attempts"
}

type WitnessReceiptModel struct {
	ID                  int64  `gorm:"primaryKey"`
	IdentityID          string `gorm:"index;not null"`
	CeremonyID          string `gorm:"index;not null"`
	Provider            string `gorm:"not null"`
	Status              string `gorm:"not null"`
	ErrorCode           *string
	ContentHash         string `gorm:"index;not null"`
	Location            *string
	ProviderReceiptJSON []byte    `gorm:"type:jsonb"`
	CreatedAt           time.Time `gorm:"not null"`
}

func (WitnessReceiptModel) TableName() string {
	return "witness_receipts"
}

type AuditEventModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	IdentityID    string `gorm:"type:text;index;not null"`
	Seq           int64  `gorm:"not null"`
	EventType     string `gorm:"column:event_type;not null"`
	PayloadJSON   []byte `gorm:"type:jsonb;not null"`
	PayloadHash   string `gorm:"not null"`
	ActorType     string `gorm:"not null"`
	ActorIDHash   *string
	TargetType    string `gorm:"not null"`
	TargetID      *string
	Result        string `gorm:"not null"`
	ErrorCode     *string
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

func (AuditEventModel) TableName() string {
	return "audit_events"
}
