package model

import "time"

const (
	WebhookStatusReceived    = "received"
	WebhookStatusProcessed   = "processed"
	WebhookStatusRateLimited = "rate_limited"
	WebhookStatusError       = "error"
)

// WebhookRequest is the audit log row written for every inbound bot webhook,
// including the ones rejected for being over the plan limit.
type WebhookRequest struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RequestID    string     `gorm:"size:64;index" json:"request_id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	Exchange     string     `gorm:"size:50" json:"exchange"`
	Action       string     `gorm:"size:50" json:"action"`
	Symbol       string     `gorm:"size:50" json:"symbol"`
	Payload      string     `gorm:"type:jsonb" json:"payload,omitempty"`
	Status       string     `gorm:"size:30;not null;index" json:"status"`
	ErrorMessage string     `gorm:"size:512" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

func (WebhookRequest) TableName() string {
	return "webhook_requests"
}
