// Package broker delivers sync records to downstream brokers and reads them back.
package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/model"
)

// ErrMalformedMessage is returned when a broker message lacks a required field.
var ErrMalformedMessage = errors.New("malformed sync message")

// Message is a sync record as carried by a broker.
type Message struct {
	RecordID    int64           `json:"record_id"`
	Subject     model.Subject   `json:"subject"`
	Action      model.Action    `json:"action"`
	SubjectUUID *uuid.UUID      `json:"subject_uuid"`
	CreatedAt   time.Time       `json:"created_at"`
	Payload     json.RawMessage `json:"payload"`
}

// NewMessage copies the broker-visible fields of a record.
func NewMessage(record *model.SyncRecord) Message {
	return Message{
		RecordID:    record.ID,
		Subject:     record.Subject,
		Action:      record.Action,
		SubjectUUID: record.SubjectUUID,
		CreatedAt:   record.CreatedAt,
		Payload:     record.Payload,
	}
}

// streamHashTag keeps every sync stream in one cluster slot so a single
// XREADGROUP can read them together.
const streamHashTag = "{storefront}"

// StreamKey returns the Redis stream of a subject.
func StreamKey(subject model.Subject) string {
	return "sync:" + streamHashTag + ":" + subject.String()
}

// RoutingKey returns the AMQP routing key of a record, "<subject>.<action>".
func RoutingKey(subject model.Subject, action model.Action) string {
	return subject.String() + "." + string(action)
}

type field struct {
	name, value string
}

func streamFields(m Message) []field {
	subjectUUID := ""
	if m.SubjectUUID != nil {
		subjectUUID = m.SubjectUUID.String()
	}

	return []field{
		{"subject", m.Subject.String()},
		{"action", string(m.Action)},
		{"subject_uuid", subjectUUID},
		{"record_id", strconv.FormatInt(m.RecordID, 10)},
		{"created_at", m.CreatedAt.UTC().Format(time.RFC3339Nano)},
		{"payload", string(m.Payload)},
	}
}

// DecodeStreamFields rebuilds a message from the field values of a stream entry.
func DecodeStreamFields(values map[string]string) (Message, error) {
	var m Message

	subject, err := model.ParseSubject(values["subject"])
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	action, err := model.ParseAction(values["action"])
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	recordID, err := strconv.ParseInt(values["record_id"], 10, 64)
	if err != nil {
		return m, fmt.Errorf("%w: record_id %q", ErrMalformedMessage, values["record_id"])
	}

	if raw := values["subject_uuid"]; raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return m, fmt.Errorf("%w: subject_uuid %q", ErrMalformedMessage, raw)
		}

		m.SubjectUUID = &id
	}

	if raw := values["created_at"]; raw != "" {
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return m, fmt.Errorf("%w: created_at %q", ErrMalformedMessage, raw)
		}
	}

	m.RecordID = recordID
	m.Subject = subject
	m.Action = action
	m.Payload = json.RawMessage(values["payload"])

	return m, nil
}
