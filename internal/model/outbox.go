package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncRecord is an immutable outbox row describing one lifecycle event of a subject.
// Only Status, SentAt and ErrorMessage change after the row is written.
type SyncRecord struct {
	ID           int64           `json:"id"`
	Subject      Subject         `json:"subject"`
	Action       Action          `json:"action"`
	SubjectUUID  *uuid.UUID      `json:"subject_uuid"`
	Payload      json.RawMessage `json:"payload"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	SentAt       *time.Time      `json:"sent_at"`
	ErrorMessage string          `json:"error_message"`
}

// SubjectUUIDString returns the subject UUID or an empty string when it is unknown.
func (r *SyncRecord) SubjectUUIDString() string {
	if r.SubjectUUID == nil {
		return ""
	}

	return r.SubjectUUID.String()
}

// CreateSyncRecordParams represents parameters for appending a record to a sync queue.
type CreateSyncRecordParams struct {
	Action      Action
	SubjectUUID *uuid.UUID
	Payload     []byte
	CreatedAt   time.Time
}
