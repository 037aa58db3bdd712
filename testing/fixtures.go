// Package testing provides test utilities and database setup for testing the publishing pipeline
package testing

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/publora/publora/models"
	"github.com/publora/publora/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestOrganization creates an active organization with a random name
func (tf *TestFixtures) CreateTestOrganization() (*models.Organization, error) {
	org := &models.Organization{
		UUID:     uuid.New(),
		Name:     fmt.Sprintf("Acme Media %04d", rand.Intn(10000)),
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(org).Error; err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return org, nil
}

// CreateTestContentItem creates a content item with a single current version
func (tf *TestFixtures) CreateTestContentItem(orgID uint, body string) (*models.ContentItem, *models.ContentVersion, error) {
	item := &models.ContentItem{
		UUID:           uuid.New(),
		OrganizationID: orgID,
		Type:           "post",
		Title:          "Launch announcement",
		Status:         models.ContentItemStatusDraft,
	}
	if err := tf.DB.DB.Create(item).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create content item: %w", err)
	}

	version := &models.ContentVersion{
		ContentItemID: item.ID,
		Version:       1,
		Body:          body,
		IsCurrent:     true,
		CreatedBy:     "fixtures",
	}
	if err := tf.DB.DB.Create(version).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create content version: %w", err)
	}
	return item, version, nil
}

// CreateTestApprovedItem creates a content item, version, and approval row so
// the item is ready for scheduling
func (tf *TestFixtures) CreateTestApprovedItem(orgID uint, body string, platforms []models.Platform) (*models.ContentItem, *models.ContentVersion, error) {
	item, version, err := tf.CreateTestContentItem(orgID, body)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.String())
	}
	approval := &models.Approval{
		ContentItemID:    item.ID,
		ContentVersionID: version.ID,
		ApprovedBy:       "fixtures",
		Platforms:        names,
	}
	if err := tf.DB.DB.Create(approval).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create approval: %w", err)
	}

	if err := tf.DB.DB.Model(item).Update("status", models.ContentItemStatusApproved).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to mark item approved: %w", err)
	}
	item.Status = models.ContentItemStatusApproved
	return item, version, nil
}

// CreateTestSchedule creates a schedule for the given item and version
func (tf *TestFixtures) CreateTestSchedule(item *models.ContentItem, version *models.ContentVersion, platform models.Platform, at time.Time, status models.ScheduleStatus) (*models.Schedule, error) {
	adapted, _ := json.Marshal(map[string]any{
		"platform": platform.String(),
		"body":     version.Body,
	})
	schedule := &models.Schedule{
		UUID:             uuid.New(),
		OrganizationID:   item.OrganizationID,
		ContentItemID:    item.ID,
		ContentVersionID: version.ID,
		Platform:         platform,
		ScheduledAt:      at,
		Status:           status,
		AdaptedContent:   adapted,
	}
	if err := tf.DB.DB.Create(schedule).Error; err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}
	return schedule, nil
}

// CreateTestSocialAccount creates an active connected account with a current token
func (tf *TestFixtures) CreateTestSocialAccount(orgID uint, platform models.Platform, accessTokenEnc string) (*models.SocialAccount, *models.Token, error) {
	account := &models.SocialAccount{
		UUID:           uuid.New(),
		OrganizationID: orgID,
		Platform:       platform,
		ExternalID:     fmt.Sprintf("ext-%d", rand.Intn(1000000)),
		DisplayName:    "Test Account",
		Username:       "testaccount",
		Status:         models.SocialAccountStatusActive,
	}
	if err := tf.DB.DB.Create(account).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create social account: %w", err)
	}

	token := &models.Token{
		SocialAccountID: account.ID,
		AccessTokenEnc:  accessTokenEnc,
		ExpiresAt:       utils.UTCNowAddPtr(time.Hour),
		Scopes:          []string{"publish"},
		IsCurrent:       true,
	}
	if err := tf.DB.DB.Create(token).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create token: %w", err)
	}
	return account, token, nil
}

// CreateTestDLQEntry creates a dead letter entry for the given schedule
func (tf *TestFixtures) CreateTestDLQEntry(schedule *models.Schedule, cause string) (*models.PublishDLQ, error) {
	payload, _ := json.Marshal(map[string]any{
		"schedule_uuid": schedule.UUID,
		"platform":      schedule.Platform,
	})
	entry := &models.PublishDLQ{
		ScheduleID: schedule.ID,
		Platform:   schedule.Platform,
		Error:      cause,
		Payload:    payload,
	}
	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create dlq entry: %w", err)
	}
	return entry, nil
}
