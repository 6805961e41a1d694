package model

import "fmt"

// Subject identifies the kind of entity a sync queue tracks.
type Subject string

const (
	// SubjectOrder is the order sync queue.
	SubjectOrder Subject = "order"
	// SubjectUser is the user sync queue.
	SubjectUser Subject = "user"
)

// Subjects lists every synchronized subject in a stable order.
var Subjects = []Subject{SubjectOrder, SubjectUser}

// ParseSubject accepts both the singular and the plural spelling ("order", "orders").
func ParseSubject(raw string) (Subject, error) {
	switch raw {
	case "order", "orders":
		return SubjectOrder, nil
	case "user", "users":
		return SubjectUser, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSubject, raw)
	}
}

// Plural returns the collection name used in URLs and file names.
func (s Subject) Plural() string {
	return string(s) + "s"
}

// QueueTable returns the name of the subject's outbox table.
func (s Subject) QueueTable() string {
	return string(s) + "_sync_queue"
}

func (s Subject) String() string {
	return string(s)
}

// Action is the lifecycle event recorded by a sync record.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction validates a stored action value.
func ParseAction(raw string) (Action, error) {
	a := Action(raw)
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
}

// Status is the delivery state of a sync record.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// ParseStatus validates a stored status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// CanTransitionTo reports whether a record may move from s to next.
// Sent is terminal; failed records can only be put back in the queue.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusSent || next == StatusFailed
	case StatusFailed:
		return next == StatusPending
	default:
		return false
	}
}
