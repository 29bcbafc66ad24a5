package controller

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"keryx/internal/domain"
)

type eventDoc struct {
	IdentityID       string `json:"identity_id"`
	Sequence         uint64 `json:"sequence"`
	Kind             string `json:"kind"`
	CurrentKey       string `json:"current_key"`
	NextKeyDigest    string `json:"next_key_digest"`
	PriorEventDigest string `json:"prior_event_digest,omitempty"`
	Timestamp        string `json:"timestamp"`
	Signature        string `json:"signature,omitempty"`
}

type recordDoc struct {
	IdentityID       string `json:"identity_id"`
	OldKeyID         string `json:"old_key_id"`
	NewKeyID         string `json:"new_key_id"`
	EffectiveAt      string `json:"effective_at"`
	OldKeySignature  string `json:"old_key_signature"`
	NewKeySignature  string `json:"new_key_signature"`
	PrevRecordDigest string `json:"prev_record_digest,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// UnmarshalEvent parses the canonical signed-event form produced by
// MarshalEvent.
func UnmarshalEvent(data []byte) (domain.KeyEvent, error) {
	var doc eventDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.KeyEvent{}, err
	}
	return eventFromDoc(doc)
}

// UnmarshalEventLog parses a JSON array of canonical signed events.
func UnmarshalEventLog(data []byte) ([]domain.KeyEvent, error) {
	var docs []eventDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	events := make([]domain.KeyEvent, 0, len(docs))
	for i, doc := range docs {
		event, err := eventFromDoc(doc)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func UnmarshalRotationRecord(data []byte) (domain.RotationRecord, error) {
	var doc recordDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.RotationRecord{}, err
	}
	return recordFromDoc(doc)
}

func UnmarshalRotationChain(data []byte) ([]domain.RotationRecord, error) {
	var docs []recordDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	records := make([]domain.RotationRecord, 0, len(docs))
	for i, doc := range docs {
		record, err := recordFromDoc(doc)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func eventFromDoc(doc eventDoc) (domain.KeyEvent, error) {
	currentKey, err := base64.StdEncoding.DecodeString(doc.CurrentKey)
	if err != nil {
		return domain.KeyEvent{}, fmt.Errorf("decode current_key: %w", err)
	}
	nextDigest, err := hex.DecodeString(doc.NextKeyDigest)
	if err != nil {
		return domain.KeyEvent{}, fmt.Errorf("decode next_key_digest: %w", err)
	}
	var priorDigest []byte
	if doc.PriorEventDigest != "" {
		priorDigest, err = hex.DecodeString(doc.PriorEventDigest)
		if err != nil {
			return domain.KeyEvent{}, fmt.Errorf("decode prior_event_digest: %w", err)
		}
	}
	var signature []byte
	if doc.Signature != "" {
		signature, err = base64.StdEncoding.DecodeString(doc.Signature)
		if err != nil {
			return domain.KeyEvent{}, fmt.Errorf("decode signature: %w", err)
		}
	}
	return domain.KeyEvent{
		IdentityID:       doc.IdentityID,
		Sequence:         doc.Sequence,
		Kind:             domain.EventKind(doc.Kind),
		CurrentKey:       currentKey,
		NextKeyDigest:    nextDigest,
		PriorEventDigest: priorDigest,
		Timestamp:        doc.Timestamp,
		Signature:        signature,
	}, nil
}

func recordFromDoc(doc recordDoc) (domain.RotationRecord, error) {
	oldSig, err := base64.StdEncoding.DecodeString(doc.OldKeySignature)
	if err != nil {
		return domain.RotationRecord{}, fmt.Errorf("decode old_key_signature: %w", err)
	}
	newSig, err := base64.StdEncoding.DecodeString(doc.NewKeySignature)
	if err != nil {
		return domain.RotationRecord{}, fmt.Errorf("decode new_key_signature: %w", err)
	}
	var prevDigest []byte
	if doc.PrevRecordDigest != "" {
		prevDigest, err = hex.DecodeString(doc.PrevRecordDigest)
		if err != nil {
			return domain.RotationRecord{}, fmt.Errorf("decode prev_record_digest: %w", err)
		}
	}
	return domain.RotationRecord{
		IdentityID:       doc.IdentityID,
		OldKeyID:         doc.OldKeyID,
		NewKeyID:         doc.NewKeyID,
		EffectiveAt:      doc.EffectiveAt,
		OldKeySignature:  oldSig,
		NewKeySignature:  newSig,
		PrevRecordDigest: prevDigest,
		Reason:           doc.Reason,
	}, nil
}
