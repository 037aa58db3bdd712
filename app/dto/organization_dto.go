// Package dto contains Data Transfer Objects for API request and response structures
package dto

import "time"

// CreateOrganizationRequest represents the request to create an organization
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// CreateOrganizationResponse represents the response after creating an organization.
// The token pair scopes all further API calls to this tenant.
type CreateOrganizationResponse struct {
	Message      string `json:"message"`
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	CreatedAt    string `json:"created_at"`
}

// OrganizationDTO represents an organization in responses
type OrganizationDTO struct {
	UUID          string     `json:"uuid"`
	Name          string     `json:"name"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// DeactivateOrganizationRequest represents the request to deactivate an organization
type DeactivateOrganizationRequest struct {
	UUID string `json:"-"`
}

// DeactivateOrganizationResponse represents the response after deactivation
type DeactivateOrganizationResponse struct {
	Message string `json:"message"`
}
