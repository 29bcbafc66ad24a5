package domain

import "time"

type AuditActorType string

const (
	// AuditSystemIdentityID is the reserved identity for global/system audit events.
	AuditSystemIdentityID = "__system__"
	AuditChainVersion     = "audit_chain_v0"

	AuditActorSystem      AuditActorType = "system"
	AuditActorAdminAPIKey AuditActorType = "admin_api_key"
	AuditActorController  AuditActorType = "controller"
	AuditActorAttestor    AuditActorType = "attestor"
)

type AuditEventType string

const (
	AuditEventInceptionRecorded AuditEventType = "inception_recorded"
	AuditEventRotationRecorded  AuditEventType = "rotation_recorded"
	AuditEventCeremonyCreated   AuditEventType = "ceremony_created"
	AuditEventCeremonyCompleted AuditEventType = "ceremony_completed"
	AuditEventWitnessPublished  AuditEventType = "witness_published"
	AuditEventDuplicityDetected AuditEventType = "duplicity_detected"
)

type AuditTargetType string

const (
	AuditTargetIdentity AuditTargetType = "identity"
	AuditTargetEvent    AuditTargetType = "key_event"
	AuditTargetCeremony AuditTargetType = "ceremony"
	AuditTargetReceipt  AuditTargetType = "witness_receipt"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

type AuditEvent struct {
	ID            string
	IdentityID    string
	Seq           int64
	EventType     AuditEventType
	Payload       any
	PayloadHash   string
	ActorType     AuditActorType
	ActorIDHash   string
	TargetType    AuditTargetType
	TargetID      string
	Result        AuditResult
	ErrorCode     string
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}
