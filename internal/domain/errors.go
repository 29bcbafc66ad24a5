package domain

import "errors"

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrEmptyLog           = errors.New("key event log is empty")
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrIdentityMismatch   = errors.New("identity mismatch")
	ErrCeremonyFinalized  = errors.New("ceremony already finalized")
	ErrCeremonyIncomplete = errors.New("ceremony has not reached threshold")
	ErrInvalidRotation    = errors.New("invalid rotation record")
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	ErrDuplicityDetected  = errors.New("duplicity detected")
)
