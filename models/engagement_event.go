package models

import (
	"encoding/json"
	"time"
)

// EngagementEvent is an accepted, signature-verified webhook delivery.
// The idempotency key is derived from the delivery itself so platform
// redelivery maps onto the same row instead of a duplicate.
type EngagementEvent struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Platform       Platform        `gorm:"type:platform;not null;index:idx_engagement_events_platform" json:"platform"`
	IdempotencyKey string          `gorm:"size:128;not null;uniqueIndex:uk_engagement_events_idem_key" json:"idempotency_key"`
	EventType      string          `gorm:"size:100" json:"event_type"`
	Payload        json.RawMessage `gorm:"type:jsonb;not null" json:"payload"`
	ReceivedAt     time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_engagement_events_received_at" json:"received_at"`
}

func (EngagementEvent) TableName() string { return "engagement_events" }

// EngagementEventFilter provides filter fields for repository queries
type EngagementEventFilter struct {
	ID             *uint
	Platform       *Platform
	IdempotencyKey *string
	EventType      *string
	ReceivedAfter  *time.Time
	ReceivedBefore *time.Time
}
