package models

import (
	"encoding/json"
	"time"
)

// Webhook event processing states. SUCCEEDED and FAILED_TERMINAL are final;
// once reached the stored result is returned instead of re-running handlers.
const (
	WebhookStatusPending         = "pending"
	WebhookStatusProcessing      = "processing"
	WebhookStatusSucceeded       = "succeeded"
	WebhookStatusFailedTerminal  = "failed_terminal"
	WebhookStatusFailedRetryable = "failed_retryable"
)

// WebhookEvent stores one row per distinct provider event id. Rows are never
// deleted by the pipeline; they are kept for audit and replay safety.
type WebhookEvent struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EventID      string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_event_id" json:"event_id"`
	EventType    string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	AccountID    string     `gorm:"type:varchar(191);not null;default:''" json:"account_id"`
	ObjectID     string     `gorm:"type:varchar(191);not null;default:''" json:"object_id"`
	PayloadJSON  string     `gorm:"type:longtext;not null" json:"payload_json"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ResultJSON   string     `gorm:"type:text" json:"result_json"`
	AttemptCount int        `gorm:"not null;default:0" json:"attempt_count"`
	ReceivedAt   time.Time  `gorm:"type:timestamp;not null" json:"received_at"`
	EnqueuedAt   *time.Time `gorm:"type:timestamp;default:null" json:"enqueued_at,omitempty"`
	ClaimedAt    *time.Time `gorm:"type:timestamp;default:null" json:"claimed_at,omitempty"`
	CompletedAt  *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the row reached a final status.
func (e *WebhookEvent) IsTerminal() bool {
	return e.Status == WebhookStatusSucceeded || e.Status == WebhookStatusFailedTerminal
}

// Well-known result reasons. Duplicate and already-processed outcomes are
// terminal but count as delivery successes: the queue must not retry them.
const (
	ReasonDuplicate        = "duplicate"
	ReasonAlreadyProcessed = "already_processed"
	ReasonNotFound         = "not_found"
	ReasonConflict         = "conflict"
	ReasonUnhandledType    = "unhandled_type"
)

// WebhookResult is the structured outcome persisted for a processed event.
type WebhookResult struct {
	Success  bool              `json:"success"`
	Terminal bool              `json:"terminal"`
	Reason   string            `json:"reason,omitempty"`
	Error    string            `json:"error,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// Result decodes the stored result payload, if any.
func (e *WebhookEvent) Result() (*WebhookResult, error) {
	if e.ResultJSON == "" {
		return nil, nil
	}
	var r WebhookResult
	if err := json.Unmarshal([]byte(e.ResultJSON), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
