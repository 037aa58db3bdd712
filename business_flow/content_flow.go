// Package businessflow contains the core business logic and use cases for content workflows
package businessflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/publora/publora/app/dto"
	"github.com/publora/publora/models"
	"github.com/publora/publora/repository"
	"github.com/publora/publora/utils"
	"gorm.io/gorm"
)

// ContentFlow handles the content item and version business logic
type ContentFlow interface {
	CreateContentItem(ctx context.Context, req *dto.CreateContentItemRequest, metadata *ClientMetadata) (*dto.CreateContentItemResponse, error)
	CreateVersion(ctx context.Context, req *dto.CreateContentVersionRequest, metadata *ClientMetadata) (*dto.CreateContentVersionResponse, error)
	SetCurrentVersion(ctx context.Context, req *dto.SetCurrentVersionRequest, metadata *ClientMetadata) (*dto.SetCurrentVersionResponse, error)
	GetContentItem(ctx context.Context, organizationID uint, itemUUID string) (*dto.GetContentItemResponse, error)
	ListContentItems(ctx context.Context, req *dto.ListContentItemsRequest) (*dto.ListContentItemsResponse, error)
}

// ContentFlowImpl implements the content business flow
type ContentFlowImpl struct {
	orgRepo     repository.OrganizationRepository
	itemRepo    repository.ContentItemRepository
	versionRepo repository.ContentVersionRepository
	db          *gorm.DB
}

// NewContentFlow creates a new content flow instance
func NewContentFlow(
	orgRepo repository.OrganizationRepository,
	itemRepo repository.ContentItemRepository,
	versionRepo repository.ContentVersionRepository,
	db *gorm.DB,
) ContentFlow {
	return &ContentFlowImpl{
		orgRepo:     orgRepo,
		itemRepo:    itemRepo,
		versionRepo: versionRepo,
		db:          db,
	}
}

// CreateContentItem creates a content item; a provided body becomes version 1
// and the current version in the same transaction.
func (s *ContentFlowImpl) CreateContentItem(ctx context.Context, req *dto.CreateContentItemRequest, metadata *ClientMetadata) (*dto.CreateContentItemResponse, error) {
	org, err := s.getActiveOrganization(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	itemType := "post"
	if req.Type != nil {
		itemType = *req.Type
	}

	item := &models.ContentItem{
		UUID:           uuid.New(),
		OrganizationID: org.ID,
		Type:           itemType,
		Title:          req.Title,
		Status:         models.ContentItemStatusDraft,
		CreatedAt:      utils.UTCNow(),
	}

	var currentVersion *int
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.itemRepo.Save(txCtx, item); err != nil {
			return err
		}
		if req.Body == nil {
			return nil
		}
		version := &models.ContentVersion{
			ContentItemID: item.ID,
			Version:       1,
			Body:          *req.Body,
			Metadata:      req.Metadata,
			IsCurrent:     true,
			CreatedBy:     req.CreatedBy,
			CreatedAt:     utils.UTCNow(),
		}
		if err := s.versionRepo.Save(txCtx, version); err != nil {
			return err
		}
		currentVersion = &version.Version
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("CONTENT_CREATION_FAILED", "Content item creation failed", err)
	}

	return &dto.CreateContentItemResponse{
		Message:        "Content item created successfully",
		UUID:           item.UUID.String(),
		Status:         string(item.Status),
		CurrentVersion: currentVersion,
		CreatedAt:      item.CreatedAt.Format(time.RFC3339),
	}, nil
}

// CreateVersion appends the next version to an item. Version numbers are
// allocated inside the transaction so they stay monotonic and gapless.
func (s *ContentFlowImpl) CreateVersion(ctx context.Context, req *dto.CreateContentVersionRequest, metadata *ClientMetadata) (*dto.CreateContentVersionResponse, error) {
	if req.Body == "" {
		return nil, NewBusinessError("CONTENT_VERSION_VALIDATION_FAILED", "Version validation failed", ErrContentBodyRequired)
	}

	item, err := s.getOwnedItem(ctx, req.OrganizationID, req.ContentItemUUID)
	if err != nil {
		return nil, err
	}
	if item.Status == models.ContentItemStatusArchived {
		return nil, NewBusinessError("CONTENT_ITEM_ARCHIVED", "Cannot add versions to an archived item", ErrItemArchived)
	}

	makeCurrent := req.MakeCurrent == nil || *req.MakeCurrent

	var version *models.ContentVersion
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		latest, err := s.versionRepo.LatestVersionNumber(txCtx, item.ID)
		if err != nil {
			return err
		}
		version = &models.ContentVersion{
			ContentItemID: item.ID,
			Version:       latest + 1,
			Body:          req.Body,
			Metadata:      req.Metadata,
			CreatedBy:     req.CreatedBy,
			CreatedAt:     utils.UTCNow(),
		}
		if err := s.versionRepo.Save(txCtx, version); err != nil {
			return err
		}
		if makeCurrent {
			if err := s.versionRepo.SetCurrent(txCtx, item.ID, version.Version); err != nil {
				return err
			}
			version.IsCurrent = true
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("CONTENT_VERSION_CREATION_FAILED", "Version creation failed", err)
	}

	return &dto.CreateContentVersionResponse{
		Message:   "Version created successfully",
		Version:   version.Version,
		IsCurrent: version.IsCurrent,
		CreatedAt: version.CreatedAt.Format(time.RFC3339),
	}, nil
}

// SetCurrentVersion moves the current pointer to an existing version
func (s *ContentFlowImpl) SetCurrentVersion(ctx context.Context, req *dto.SetCurrentVersionRequest, metadata *ClientMetadata) (*dto.SetCurrentVersionResponse, error) {
	item, err := s.getOwnedItem(ctx, req.OrganizationID, req.ContentItemUUID)
	if err != nil {
		return nil, err
	}

	version, err := s.versionRepo.ByItemAndVersion(ctx, item.ID, req.Version)
	if err != nil {
		return nil, NewBusinessError("VERSION_LOOKUP_FAILED", "Failed to lookup version", err)
	}
	if version == nil {
		return nil, NewBusinessError("VERSION_NOT_FOUND", "Version not found", ErrVersionNotFound)
	}

	if err := s.versionRepo.SetCurrent(ctx, item.ID, req.Version); err != nil {
		return nil, NewBusinessError("SET_CURRENT_FAILED", "Failed to set current version", err)
	}

	return &dto.SetCurrentVersionResponse{
		Message: "Current version updated successfully",
		Version: req.Version,
	}, nil
}

// GetContentItem returns an item with its versions, newest first
func (s *ContentFlowImpl) GetContentItem(ctx context.Context, organizationID uint, itemUUID string) (*dto.GetContentItemResponse, error) {
	item, err := s.getOwnedItem(ctx, organizationID, itemUUID)
	if err != nil {
		return nil, err
	}

	versions, err := s.versionRepo.ByFilter(ctx, models.ContentVersionFilter{ContentItemID: &item.ID}, "version DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("VERSION_LOOKUP_FAILED", "Failed to list versions", err)
	}

	resp := &dto.GetContentItemResponse{
		Item: toContentItemDTO(item),
	}
	for _, v := range versions {
		vd := toContentVersionDTO(v)
		resp.Versions = append(resp.Versions, vd)
		if v.IsCurrent {
			resp.CurrentVersion = &vd
		}
	}
	return resp, nil
}

// ListContentItems returns the organization's items, newest first
func (s *ContentFlowImpl) ListContentItems(ctx context.Context, req *dto.ListContentItemsRequest) (*dto.ListContentItemsResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_VALIDATION_FAILED", "Invalid pagination", err)
	}

	if _, err := s.getActiveOrganization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}

	items, err := s.itemRepo.ListByOrganization(ctx, req.OrganizationID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CONTENT_LIST_FAILED", "Failed to list content items", err)
	}

	total, err := s.itemRepo.Count(ctx, models.ContentItemFilter{OrganizationID: &req.OrganizationID})
	if err != nil {
		return nil, NewBusinessError("CONTENT_LIST_FAILED", "Failed to count content items", err)
	}

	resp := &dto.ListContentItemsResponse{Total: total}
	for _, item := range items {
		resp.Items = append(resp.Items, toContentItemDTO(item))
	}
	return resp, nil
}

func (s *ContentFlowImpl) getActiveOrganization(ctx context.Context, organizationID uint) (*models.Organization, error) {
	org, err := s.orgRepo.ByID(ctx, organizationID)
	if err != nil {
		return nil, NewBusinessError("ORGANIZATION_LOOKUP_FAILED", "Failed to lookup organization", err)
	}
	if org == nil {
		return nil, NewBusinessError("ORGANIZATION_NOT_FOUND", "Organization not found", ErrOrganizationNotFound)
	}
	if !utils.IsTrue(org.IsActive) {
		return nil, NewBusinessError("ORGANIZATION_INACTIVE", "Organization is inactive", ErrOrganizationInactive)
	}
	return org, nil
}

// getOwnedItem resolves an item by UUID and enforces the tenant boundary
func (s *ContentFlowImpl) getOwnedItem(ctx context.Context, organizationID uint, itemUUID string) (*models.ContentItem, error) {
	item, err := s.itemRepo.ByUUID(ctx, itemUUID)
	if err != nil {
		return nil, NewBusinessError("CONTENT_LOOKUP_FAILED", "Failed to lookup content item", err)
	}
	if item == nil || item.OrganizationID != organizationID {
		return nil, NewBusinessError("CONTENT_NOT_FOUND", "Content item not found", ErrContentItemNotFound)
	}
	return item, nil
}

func normalizePagination(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > 100 {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}

func toContentItemDTO(item *models.ContentItem) dto.ContentItemDTO {
	return dto.ContentItemDTO{
		UUID:      item.UUID.String(),
		Title:     item.Title,
		Type:      item.Type,
		Status:    string(item.Status),
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

func toContentVersionDTO(v *models.ContentVersion) dto.ContentVersionDTO {
	return dto.ContentVersionDTO{
		Version:   v.Version,
		Body:      v.Body,
		Metadata:  v.Metadata,
		IsCurrent: v.IsCurrent,
		CreatedBy: v.CreatedBy,
		CreatedAt: v.CreatedAt,
	}
}
