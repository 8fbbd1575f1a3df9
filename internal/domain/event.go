package domain

import "time"

// EventType tags a domain event.
type EventType string

const (
	EventBatchStarted       EventType = "batch.started"
	EventBatchCompleted     EventType = "batch.completed"
	EventBatchFailed        EventType = "batch.failed"
	EventBatchExpired       EventType = "batch.expired"
	EventErrorLogged        EventType = "error.logged"
	EventAccountDeactivated EventType = "account.deactivated"
)

func (t EventType) String() string { return string(t) }

// Event is an immutable fire-and-forget fact. Events decouple lifecycle
// transitions from their side effects; they are not a source of truth and
// carry no delivery guarantee beyond best effort.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	AccountID  string         `json:"accountId,omitempty"`
	SiteID     string         `json:"siteId,omitempty"`
	BatchID    string         `json:"batchId,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}
