// Package businessflow contains the core business logic and use cases for approval workflows
package businessflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/publora/publora/adaptation"
	"github.com/publora/publora/app/dto"
	"github.com/publora/publora/models"
	"github.com/publora/publora/repository"
	"github.com/publora/publora/utils"
	"gorm.io/gorm"
)

// ApprovalFlow handles content approval and adaptation previews
type ApprovalFlow interface {
	ApproveContent(ctx context.Context, req *dto.ApproveContentRequest, metadata *ClientMetadata) (*dto.ApproveContentResponse, error)
	ListPreviews(ctx context.Context, organizationID uint, req *dto.ListPreviewsRequest) (*dto.ListPreviewsResponse, error)
	AdaptPreview(ctx context.Context, req *dto.AdaptPreviewRequest) (*dto.AdaptPreviewResponse, error)
}

// ApprovalFlowImpl implements the approval business flow
type ApprovalFlowImpl struct {
	itemRepo     repository.ContentItemRepository
	versionRepo  repository.ContentVersionRepository
	approvalRepo repository.ApprovalRepository
	previewRepo  repository.AdaptationPreviewRepository
	db           *gorm.DB
}

// NewApprovalFlow creates a new approval flow instance
func NewApprovalFlow(
	itemRepo repository.ContentItemRepository,
	versionRepo repository.ContentVersionRepository,
	approvalRepo repository.ApprovalRepository,
	previewRepo repository.AdaptationPreviewRepository,
	db *gorm.DB,
) ApprovalFlow {
	return &ApprovalFlowImpl{
		itemRepo:     itemRepo,
		versionRepo:  versionRepo,
		approvalRepo: approvalRepo,
		previewRepo:  previewRepo,
		db:           db,
	}
}

// ApproveContent approves the item's current version. When previews are
// requested it also persists one adapted preview per requested platform.
// Approval marks readiness only; it never creates schedules.
func (s *ApprovalFlowImpl) ApproveContent(ctx context.Context, req *dto.ApproveContentRequest, metadata *ClientMetadata) (*dto.ApproveContentResponse, error) {
	if req.GeneratePreviews && len(req.Platforms) == 0 {
		return nil, NewBusinessError("APPROVAL_VALIDATION_FAILED", "Approval validation failed", ErrPlatformsRequired)
	}
	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		return nil, NewBusinessError("APPROVAL_VALIDATION_FAILED", "Approval validation failed", err)
	}

	item, err := s.itemRepo.ByUUID(ctx, req.ContentItemUUID)
	if err != nil {
		return nil, NewBusinessError("CONTENT_LOOKUP_FAILED", "Failed to lookup content item", err)
	}
	if item == nil || item.OrganizationID != req.OrganizationID {
		return nil, NewBusinessError("CONTENT_NOT_FOUND", "Content item not found", ErrContentItemNotFound)
	}
	if item.Status == models.ContentItemStatusArchived {
		return nil, NewBusinessError("CONTENT_ITEM_ARCHIVED", "Cannot approve an archived item", ErrItemArchived)
	}

	current, err := s.versionRepo.CurrentByItem(ctx, item.ID)
	if err != nil {
		return nil, NewBusinessError("VERSION_LOOKUP_FAILED", "Failed to lookup current version", err)
	}
	if current == nil {
		return nil, NewBusinessError("NO_CURRENT_VERSION", "Content item has no current version", ErrContentVersionMissing)
	}

	approval := &models.Approval{
		ContentItemID:    item.ID,
		ContentVersionID: current.ID,
		ApprovedBy:       req.ApprovedBy,
		Notes:            req.Notes,
		Platforms:        pq.StringArray(req.Platforms),
		CreatedAt:        utils.UTCNow(),
	}

	var previews []dto.AdaptationPreviewDTO
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.approvalRepo.Save(txCtx, approval); err != nil {
			return err
		}
		if err := s.itemRepo.UpdateStatus(txCtx, item.ID, models.ContentItemStatusApproved); err != nil {
			return err
		}
		if !req.GeneratePreviews {
			return nil
		}
		for _, platform := range platforms {
			adapted, err := adaptation.Adapt(current.Body, platform, nil)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(adapted)
			if err != nil {
				return err
			}
			preview := &models.AdaptationPreview{
				ContentItemID:    item.ID,
				ContentVersionID: current.ID,
				Platform:         platform,
				Preview:          raw,
				CreatedAt:        utils.UTCNow(),
			}
			if err := s.previewRepo.Upsert(txCtx, preview); err != nil {
				return err
			}
			previews = append(previews, dto.AdaptationPreviewDTO{
				Platform: platform.String(),
				Preview:  raw,
			})
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("APPROVAL_FAILED", "Content approval failed", err)
	}

	return &dto.ApproveContentResponse{
		Message:    "Content approved successfully",
		Version:    current.Version,
		Status:     string(models.ContentItemStatusApproved),
		Previews:   previews,
		ApprovedAt: approval.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ListPreviews returns stored previews for the requested (or current) version
func (s *ApprovalFlowImpl) ListPreviews(ctx context.Context, organizationID uint, req *dto.ListPreviewsRequest) (*dto.ListPreviewsResponse, error) {
	item, err := s.itemRepo.ByUUID(ctx, req.ContentItemUUID)
	if err != nil {
		return nil, NewBusinessError("CONTENT_LOOKUP_FAILED", "Failed to lookup content item", err)
	}
	if item == nil || item.OrganizationID != organizationID {
		return nil, NewBusinessError("CONTENT_NOT_FOUND", "Content item not found", ErrContentItemNotFound)
	}

	var version *models.ContentVersion
	if req.Version != nil {
		version, err = s.versionRepo.ByItemAndVersion(ctx, item.ID, *req.Version)
	} else {
		version, err = s.versionRepo.CurrentByItem(ctx, item.ID)
	}
	if err != nil {
		return nil, NewBusinessError("VERSION_LOOKUP_FAILED", "Failed to lookup version", err)
	}
	if version == nil {
		return nil, NewBusinessError("VERSION_NOT_FOUND", "Version not found", ErrVersionNotFound)
	}

	stored, err := s.previewRepo.ListByItemAndVersion(ctx, item.ID, version.ID)
	if err != nil {
		return nil, NewBusinessError("PREVIEW_LOOKUP_FAILED", "Failed to list previews", err)
	}

	resp := &dto.ListPreviewsResponse{Version: version.Version}
	for _, p := range stored {
		resp.Previews = append(resp.Previews, dto.AdaptationPreviewDTO{
			Platform: p.Platform.String(),
			Preview:  p.Preview,
		})
	}
	return resp, nil
}

// AdaptPreview runs adaptation + validation against raw text without
// persisting anything
func (s *ApprovalFlowImpl) AdaptPreview(ctx context.Context, req *dto.AdaptPreviewRequest) (*dto.AdaptPreviewResponse, error) {
	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		return nil, NewBusinessError("ADAPT_VALIDATION_FAILED", "Adaptation validation failed", err)
	}

	resp := &dto.AdaptPreviewResponse{}
	for _, platform := range platforms {
		adapted, err := adaptation.Adapt(req.Body, platform, req.MediaURLs)
		if err != nil {
			return nil, NewBusinessError("ADAPTATION_FAILED", "Adaptation failed", err)
		}
		validation, err := adaptation.Validate(adapted, platform)
		if err != nil {
			return nil, NewBusinessError("VALIDATION_FAILED", "Validation failed", err)
		}
		resp.Results = append(resp.Results, dto.AdaptResultDTO{
			Platform:   platform.String(),
			Text:       adapted.Text,
			Hashtags:   adapted.Hashtags,
			MediaURLs:  adapted.MediaURLs,
			Fields:     adapted.Fields,
			Valid:      validation.Valid,
			Violations: validation.Errors,
		})
	}
	return resp, nil
}

// parsePlatforms validates raw platform names against the fixed set
func parsePlatforms(raw []string) ([]models.Platform, error) {
	platforms := make([]models.Platform, 0, len(raw))
	for _, r := range raw {
		p := models.Platform(r)
		if !p.Valid() {
			return nil, ErrInvalidPlatform
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}
