package dto

import (
	"encoding/json"
	"time"
)

// ApproveContentRequest represents the request to approve a content item's
// current version. Platforms are optional unless previews are requested
type ApproveContentRequest struct {
	OrganizationID   uint     `json:"-"`
	ContentItemUUID  string   `json:"-"`
	ApprovedBy       string   `json:"-"`
	Platforms        []string `json:"platforms" validate:"omitempty,dive,oneof=instagram twitter facebook linkedin youtube tiktok"`
	GeneratePreviews bool     `json:"generate_previews"`
	Notes            *string  `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ApproveContentResponse represents the response after approving content
type ApproveContentResponse struct {
	Message    string                 `json:"message"`
	Version    int                    `json:"version"`
	Status     string                 `json:"status"`
	Previews   []AdaptationPreviewDTO `json:"previews"`
	ApprovedAt string                 `json:"approved_at"`
}

// AdaptationPreviewDTO represents one platform's adapted rendering
type AdaptationPreviewDTO struct {
	Platform string          `json:"platform"`
	Preview  json.RawMessage `json:"preview"`
}

// ListPreviewsRequest represents the request to list previews for an item's version
type ListPreviewsRequest struct {
	ContentItemUUID string `json:"-"`
	Version         *int   `json:"version,omitempty" validate:"omitempty,min=1"`
}

// ListPreviewsResponse represents the stored previews
type ListPreviewsResponse struct {
	Version  int                    `json:"version"`
	Previews []AdaptationPreviewDTO `json:"previews"`
}

// AdaptPreviewRequest represents an ad-hoc adaptation request against raw text,
// without persisting anything
type AdaptPreviewRequest struct {
	Body      string   `json:"body" validate:"required,min=1"`
	Platforms []string `json:"platforms" validate:"required,min=1,dive,oneof=instagram twitter facebook linkedin youtube tiktok"`
	MediaURLs []string `json:"media_urls,omitempty" validate:"omitempty,dive,url"`
}

// AdaptPreviewResponse represents the adapted content per platform
type AdaptPreviewResponse struct {
	Results []AdaptResultDTO `json:"results"`
}

// AdaptResultDTO pairs adapted content with its validation verdict
type AdaptResultDTO struct {
	Platform   string         `json:"platform"`
	Text       string         `json:"text"`
	Hashtags   []string       `json:"hashtags"`
	MediaURLs  []string       `json:"media_urls"`
	Fields     map[string]any `json:"fields,omitempty"`
	Valid      bool           `json:"valid"`
	Violations []string       `json:"violations,omitempty"`
}

// ApprovalDTO represents an approval record in responses
type ApprovalDTO struct {
	ApprovedBy string    `json:"approved_by"`
	Platforms  []string  `json:"platforms"`
	Notes      *string   `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
