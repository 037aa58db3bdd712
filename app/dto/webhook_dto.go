package dto

import (
	"encoding/json"
	"time"
)

// WebhookAckResponse represents the acknowledgement returned to a platform
// after an accepted (or deduplicated) delivery
type WebhookAckResponse struct {
	Message        string `json:"message"`
	Duplicate      bool   `json:"duplicate"`
	IdempotencyKey string `json:"idem_key"`
}

// EngagementEventDTO represents a stored engagement event in responses
type EngagementEventDTO struct {
	Platform   string          `json:"platform"`
	EventType  string          `json:"event_type,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// ListEngagementEventsRequest represents the request to list stored events
type ListEngagementEventsRequest struct {
	Platform string `json:"-"`
	Page     int    `json:"page" validate:"omitempty,min=1"`
	PageSize int    `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListEngagementEventsResponse represents the paginated event list
type ListEngagementEventsResponse struct {
	Events []EngagementEventDTO `json:"events"`
	Total  int64                `json:"total"`
}
