// Package businessflow contains the core business logic and use cases for organization management
package businessflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/publora/publora/app/dto"
	"github.com/publora/publora/app/services"
	"github.com/publora/publora/models"
	"github.com/publora/publora/repository"
	"github.com/publora/publora/utils"
)

// OrganizationFlow handles the tenant lifecycle
type OrganizationFlow interface {
	CreateOrganization(ctx context.Context, req *dto.CreateOrganizationRequest, metadata *ClientMetadata) (*dto.CreateOrganizationResponse, error)
	GetOrganization(ctx context.Context, organizationID uint) (*dto.OrganizationDTO, error)
	DeactivateOrganization(ctx context.Context, organizationID uint, metadata *ClientMetadata) (*dto.DeactivateOrganizationResponse, error)
}

// OrganizationFlowImpl implements the organization business flow
type OrganizationFlowImpl struct {
	orgRepo      repository.OrganizationRepository
	tokenService services.TokenService
}

// NewOrganizationFlow creates a new organization flow instance
func NewOrganizationFlow(
	orgRepo repository.OrganizationRepository,
	tokenService services.TokenService,
) OrganizationFlow {
	return &OrganizationFlowImpl{
		orgRepo:      orgRepo,
		tokenService: tokenService,
	}
}

// CreateOrganization creates a tenant and issues its operator token pair
func (s *OrganizationFlowImpl) CreateOrganization(ctx context.Context, req *dto.CreateOrganizationRequest, metadata *ClientMetadata) (*dto.CreateOrganizationResponse, error) {
	org := &models.Organization{
		UUID:      uuid.New(),
		Name:      req.Name,
		IsActive:  utils.ToPtr(true),
		CreatedAt: utils.UTCNow(),
	}

	if err := s.orgRepo.Save(ctx, org); err != nil {
		return nil, NewBusinessError("ORGANIZATION_CREATION_FAILED", "Organization creation failed", err)
	}

	accessToken, refreshToken, err := s.tokenService.GenerateTokens(org.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	return &dto.CreateOrganizationResponse{
		Message:      "Organization created successfully",
		UUID:         org.UUID.String(),
		Name:         org.Name,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CreatedAt:    org.CreatedAt.Format(time.RFC3339),
	}, nil
}

// GetOrganization returns the caller's organization
func (s *OrganizationFlowImpl) GetOrganization(ctx context.Context, organizationID uint) (*dto.OrganizationDTO, error) {
	org, err := s.orgRepo.ByID(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("ORGANIZATION_LOOKUP_FAILED", "Failed to lookup organization", err)
	}
	if org == nil {
		return nil, NewBusinessError("ORGANIZATION_NOT_FOUND", "Organization not found", ErrOrganizationNotFound)
	}

	return &dto.OrganizationDTO{
		UUID:          org.UUID.String(),
		Name:          org.Name,
		IsActive:      utils.IsTrue(org.IsActive),
		CreatedAt:     org.CreatedAt,
		DeactivatedAt: org.DeactivatedAt,
	}, nil
}

// DeactivateOrganization soft-disables the tenant; nothing is deleted
func (s *OrganizationFlowImpl) DeactivateOrganization(ctx context.Context, organizationID uint, metadata *ClientMetadata) (*dto.DeactivateOrganizationResponse, error) {
	org, err := s.orgRepo.ByID(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("ORGANIZATION_LOOKUP_FAILED", "Failed to lookup organization", err)
	}
	if org == nil {
		return nil, NewBusinessError("ORGANIZATION_NOT_FOUND", "Organization not found", ErrOrganizationNotFound)
	}

	if err := s.orgRepo.Deactivate(ctx, org.ID); err != nil {
		return nil, NewBusinessError("ORGANIZATION_DEACTIVATION_FAILED", "Deactivation failed", err)
	}

	return &dto.DeactivateOrganizationResponse{Message: "Organization deactivated successfully"}, nil
}
