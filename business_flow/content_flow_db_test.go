package businessflow_test

import (
	"testing"

	"github.com/publora/publora/app/dto"
	businessflow "github.com/publora/publora/business_flow"
	"github.com/publora/publora/repository"
	testingutil "github.com/publora/publora/testing"
	"github.com/publora/publora/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flowTestEnv struct {
	db       *testingutil.TestDB
	fixtures *testingutil.TestFixtures
	content  businessflow.ContentFlow
	approval businessflow.ApprovalFlow
}

// setupFlowTest wires the content and approval flows against a throwaway
// database, or skips when no test postgres is reachable
func setupFlowTest(t *testing.T) *flowTestEnv {
	t.Helper()
	testDB, err := testingutil.SetupTestDB()
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testDB.TeardownTestDB(); err != nil {
			t.Logf("teardown test database: %v", err)
		}
	})

	orgRepo := repository.NewOrganizationRepository(testDB.DB)
	itemRepo := repository.NewContentItemRepository(testDB.DB)
	versionRepo := repository.NewContentVersionRepository(testDB.DB)
	approvalRepo := repository.NewApprovalRepository(testDB.DB)
	previewRepo := repository.NewAdaptationPreviewRepository(testDB.DB)

	return &flowTestEnv{
		db:       testDB,
		fixtures: testingutil.NewTestFixtures(testDB),
		content:  businessflow.NewContentFlow(orgRepo, itemRepo, versionRepo, testDB.DB),
		approval: businessflow.NewApprovalFlow(itemRepo, versionRepo, approvalRepo, previewRepo, testDB.DB),
	}
}

func assertBusinessCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var be *businessflow.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, code, be.Code)
}

func TestContentFlowVersioning(t *testing.T) {
	env := setupFlowTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := businessflow.NewClientMetadata("127.0.0.1", "flow-test")

	org, err := env.fixtures.CreateTestOrganization()
	require.NoError(t, err)

	created, err := env.content.CreateContentItem(ctx, &dto.CreateContentItemRequest{
		OrganizationID: org.ID,
		Title:          "Launch announcement",
		Body:           utils.ToPtr("First draft #launch"),
		CreatedBy:      "editor@acme.test",
	}, metadata)
	require.NoError(t, err)
	assert.Equal(t, "draft", created.Status)
	require.NotNil(t, created.CurrentVersion)
	assert.Equal(t, 1, *created.CurrentVersion)

	t.Run("NewVersionBecomesCurrent", func(t *testing.T) {
		resp, err := env.content.CreateVersion(ctx, &dto.CreateContentVersionRequest{
			OrganizationID:  org.ID,
			ContentItemUUID: created.UUID,
			Body:            "Second draft #launch",
			CreatedBy:       "editor@acme.test",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Version)
		assert.True(t, resp.IsCurrent)

		got, err := env.content.GetContentItem(ctx, org.ID, created.UUID)
		require.NoError(t, err)
		require.NotNil(t, got.CurrentVersion)
		assert.Equal(t, 2, got.CurrentVersion.Version)
		assert.Len(t, got.Versions, 2)
	})

	t.Run("VersionWithoutCurrentPointer", func(t *testing.T) {
		resp, err := env.content.CreateVersion(ctx, &dto.CreateContentVersionRequest{
			OrganizationID:  org.ID,
			ContentItemUUID: created.UUID,
			Body:            "Side draft",
			MakeCurrent:     utils.ToPtr(false),
			CreatedBy:       "editor@acme.test",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, 3, resp.Version)
		assert.False(t, resp.IsCurrent)

		got, err := env.content.GetContentItem(ctx, org.ID, created.UUID)
		require.NoError(t, err)
		require.NotNil(t, got.CurrentVersion)
		assert.Equal(t, 2, got.CurrentVersion.Version, "current pointer stays on version 2")
	})

	t.Run("SetCurrentVersionMovesPointer", func(t *testing.T) {
		_, err := env.content.SetCurrentVersion(ctx, &dto.SetCurrentVersionRequest{
			OrganizationID:  org.ID,
			ContentItemUUID: created.UUID,
			Version:         1,
		}, metadata)
		require.NoError(t, err)

		got, err := env.content.GetContentItem(ctx, org.ID, created.UUID)
		require.NoError(t, err)
		require.NotNil(t, got.CurrentVersion)
		assert.Equal(t, 1, got.CurrentVersion.Version)
	})

	t.Run("SetCurrentUnknownVersion", func(t *testing.T) {
		_, err := env.content.SetCurrentVersion(ctx, &dto.SetCurrentVersionRequest{
			OrganizationID:  org.ID,
			ContentItemUUID: created.UUID,
			Version:         99,
		}, metadata)
		assertBusinessCode(t, err, "VERSION_NOT_FOUND")
	})

	t.Run("EmptyBodyRejected", func(t *testing.T) {
		_, err := env.content.CreateVersion(ctx, &dto.CreateContentVersionRequest{
			OrganizationID:  org.ID,
			ContentItemUUID: created.UUID,
			Body:            "",
		}, metadata)
		assertBusinessCode(t, err, "CONTENT_VERSION_VALIDATION_FAILED")
	})

	t.Run("TenantBoundaryEnforced", func(t *testing.T) {
		otherOrg, err := env.fixtures.CreateTestOrganization()
		require.NoError(t, err)

		_, err = env.content.GetContentItem(ctx, otherOrg.ID, created.UUID)
		assertBusinessCode(t, err, "CONTENT_NOT_FOUND")

		_, err = env.content.CreateVersion(ctx, &dto.CreateContentVersionRequest{
			OrganizationID:  otherOrg.ID,
			ContentItemUUID: created.UUID,
			Body:            "Hijack attempt",
		}, metadata)
		assertBusinessCode(t, err, "CONTENT_NOT_FOUND")
	})
}

func TestApprovalFlow(t *testing.T) {
	env := setupFlowTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := businessflow.NewClientMetadata("127.0.0.1", "flow-test")

	org, err := env.fixtures.CreateTestOrganization()
	require.NoError(t, err)

	t.Run("ApproveCurrentVersionWithPreviews", func(t *testing.T) {
		item, _, err := env.fixtures.CreateTestContentItem(org.ID, "Ready to ship #launch")
		require.NoError(t, err)

		resp, err := env.approval.ApproveContent(ctx, &dto.ApproveContentRequest{
			OrganizationID:   org.ID,
			ContentItemUUID:  item.UUID.String(),
			ApprovedBy:       "reviewer@acme.test",
			Platforms:        []string{"twitter", "linkedin"},
			GeneratePreviews: true,
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, "approved", resp.Status)
		assert.Equal(t, 1, resp.Version)
		assert.Len(t, resp.Previews, 2)

		previews, err := env.approval.ListPreviews(ctx, org.ID, &dto.ListPreviewsRequest{
			ContentItemUUID: item.UUID.String(),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, previews.Version)
		assert.Len(t, previews.Previews, 2)
	})

	t.Run("ApproveWithoutPreviews", func(t *testing.T) {
		item, _, err := env.fixtures.CreateTestContentItem(org.ID, "Sign-off only")
		require.NoError(t, err)

		// No platform set and no preview generation is a valid approval
		resp, err := env.approval.ApproveContent(ctx, &dto.ApproveContentRequest{
			OrganizationID:  org.ID,
			ContentItemUUID: item.UUID.String(),
			ApprovedBy:      "reviewer@acme.test",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, "approved", resp.Status)
		assert.Empty(t, resp.Previews)

		previews, err := env.approval.ListPreviews(ctx, org.ID, &dto.ListPreviewsRequest{
			ContentItemUUID: item.UUID.String(),
		})
		require.NoError(t, err)
		assert.Empty(t, previews.Previews)
	})

	t.Run("PreviewsRequirePlatforms", func(t *testing.T) {
		item, _, err := env.fixtures.CreateTestContentItem(org.ID, "Needs targets")
		require.NoError(t, err)

		_, err = env.approval.ApproveContent(ctx, &dto.ApproveContentRequest{
			OrganizationID:   org.ID,
			ContentItemUUID:  item.UUID.String(),
			ApprovedBy:       "reviewer@acme.test",
			GeneratePreviews: true,
		}, metadata)
		assertBusinessCode(t, err, "APPROVAL_VALIDATION_FAILED")
	})

	t.Run("ApproveWithoutCurrentVersion", func(t *testing.T) {
		created, err := env.content.CreateContentItem(ctx, &dto.CreateContentItemRequest{
			OrganizationID: org.ID,
			Title:          "Bodyless item",
		}, metadata)
		require.NoError(t, err)

		_, err = env.approval.ApproveContent(ctx, &dto.ApproveContentRequest{
			OrganizationID:  org.ID,
			ContentItemUUID: created.UUID,
			ApprovedBy:      "reviewer@acme.test",
			Platforms:       []string{"twitter"},
		}, metadata)
		assertBusinessCode(t, err, "NO_CURRENT_VERSION")
	})

	t.Run("UnknownPlatformRejected", func(t *testing.T) {
		item, _, err := env.fixtures.CreateTestContentItem(org.ID, "Some body")
		require.NoError(t, err)

		_, err = env.approval.ApproveContent(ctx, &dto.ApproveContentRequest{
			OrganizationID:  org.ID,
			ContentItemUUID: item.UUID.String(),
			ApprovedBy:      "reviewer@acme.test",
			Platforms:       []string{"myspace"},
		}, metadata)
		assertBusinessCode(t, err, "APPROVAL_VALIDATION_FAILED")
	})
}

func TestAdaptPreview(t *testing.T) {
	// AdaptPreview never touches storage, so any flow instance will do
	flow := businessflow.NewApprovalFlow(nil, nil, nil, nil, nil)
	ctx := testingutil.CreateTestContext()

	t.Run("PerPlatformResults", func(t *testing.T) {
		resp, err := flow.AdaptPreview(ctx, &dto.AdaptPreviewRequest{
			Body:      "Big release today #launch #golang",
			Platforms: []string{"twitter", "linkedin"},
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)
		for _, result := range resp.Results {
			assert.True(t, result.Valid)
			assert.Equal(t, []string{"#launch", "#golang"}, result.Hashtags)
		}
	})

	t.Run("ViolationsReported", func(t *testing.T) {
		resp, err := flow.AdaptPreview(ctx, &dto.AdaptPreviewRequest{
			Body:      "No picture here",
			Platforms: []string{"instagram"},
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.False(t, resp.Results[0].Valid)
		assert.NotEmpty(t, resp.Results[0].Violations)
	})

	t.Run("UnknownPlatform", func(t *testing.T) {
		_, err := flow.AdaptPreview(ctx, &dto.AdaptPreviewRequest{
			Body:      "hello",
			Platforms: []string{"orkut"},
		})
		require.Error(t, err)
	})
}
