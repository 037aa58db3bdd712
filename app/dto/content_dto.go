package dto

import (
	"encoding/json"
	"time"
)

// CreateContentItemRequest represents the request to create a content item.
// The body, when provided, becomes version 1 and the current version.
type CreateContentItemRequest struct {
	OrganizationID uint            `json:"-"`
	Title          string          `json:"title" validate:"required,min=1,max=500"`
	Type           *string         `json:"type,omitempty" validate:"omitempty,oneof=post story reel thread"`
	Body           *string         `json:"body,omitempty" validate:"omitempty,min=1"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedBy      string          `json:"-"`
}

// CreateContentItemResponse represents the response after creating a content item
type CreateContentItemResponse struct {
	Message        string `json:"message"`
	UUID           string `json:"uuid"`
	Status         string `json:"status"`
	CurrentVersion *int   `json:"current_version,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// CreateContentVersionRequest represents the request to add a new version to an item
type CreateContentVersionRequest struct {
	OrganizationID  uint            `json:"-"`
	ContentItemUUID string          `json:"-"`
	Body            string          `json:"body" validate:"required,min=1"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	MakeCurrent     *bool           `json:"make_current,omitempty"`
	CreatedBy       string          `json:"-"`
}

// CreateContentVersionResponse represents the response after adding a version
type CreateContentVersionResponse struct {
	Message   string `json:"message"`
	Version   int    `json:"version"`
	IsCurrent bool   `json:"is_current"`
	CreatedAt string `json:"created_at"`
}

// SetCurrentVersionRequest represents the request to move the current pointer
type SetCurrentVersionRequest struct {
	OrganizationID  uint   `json:"-"`
	ContentItemUUID string `json:"-"`
	Version         int    `json:"version" validate:"required,min=1"`
}

// SetCurrentVersionResponse represents the response after moving the current pointer
type SetCurrentVersionResponse struct {
	Message string `json:"message"`
	Version int    `json:"version"`
}

// ContentVersionDTO represents a content version in responses
type ContentVersionDTO struct {
	Version   int             `json:"version"`
	Body      string          `json:"body"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	IsCurrent bool            `json:"is_current"`
	CreatedBy string          `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ContentItemDTO represents a content item in responses
type ContentItemDTO struct {
	UUID      string     `json:"uuid"`
	Title     string     `json:"title"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// GetContentItemResponse represents a content item with its versions
type GetContentItemResponse struct {
	Item           ContentItemDTO      `json:"item"`
	CurrentVersion *ContentVersionDTO  `json:"current_version,omitempty"`
	Versions       []ContentVersionDTO `json:"versions"`
}

// ListContentItemsRequest represents the request to list items of an organization
type ListContentItemsRequest struct {
	OrganizationID uint `json:"-"`
	Page           int  `json:"page" validate:"omitempty,min=1"`
	PageSize       int  `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListContentItemsResponse represents the paginated item list
type ListContentItemsResponse struct {
	Items []ContentItemDTO `json:"items"`
	Total int64            `json:"total"`
}
