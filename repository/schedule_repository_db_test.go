package repository_test

import (
	"testing"
	"time"

	"github.com/publora/publora/models"
	"github.com/publora/publora/repository"
	testingutil "github.com/publora/publora/testing"
	"github.com/publora/publora/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupScheduleTest provisions a throwaway database or skips when no test
// postgres is reachable
func setupScheduleTest(t *testing.T) (*testingutil.TestDB, *testingutil.TestFixtures, repository.ScheduleRepository) {
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
	return testDB, testingutil.NewTestFixtures(testDB), repository.NewScheduleRepository(testDB.DB)
}

func TestScheduleRepositoryClaim(t *testing.T) {
	_, fixtures, repo := setupScheduleTest(t)
	ctx := testingutil.CreateTestContext()

	org, err := fixtures.CreateTestOrganization()
	require.NoError(t, err)
	item, version, err := fixtures.CreateTestApprovedItem(org.ID, "Claim me #launch", []models.Platform{models.PlatformTwitter})
	require.NoError(t, err)

	t.Run("ExactlyOneWinner", func(t *testing.T) {
		sch, err := fixtures.CreateTestSchedule(item, version, models.PlatformTwitter, utils.UTCNow().Add(-time.Minute), models.ScheduleStatusPending)
		require.NoError(t, err)

		won, err := repo.Claim(ctx, sch.ID, utils.UTCNow())
		require.NoError(t, err)
		assert.True(t, won)

		again, err := repo.Claim(ctx, sch.ID, utils.UTCNow())
		require.NoError(t, err)
		assert.False(t, again)

		row, err := repo.ByID(ctx, sch.ID)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, models.ScheduleStatusPublishing, row.Status)
		assert.NotNil(t, row.ClaimedAt)
	})

	t.Run("CancelLosesAgainstClaim", func(t *testing.T) {
		sch, err := fixtures.CreateTestSchedule(item, version, models.PlatformTwitter, utils.UTCNow().Add(-time.Minute), models.ScheduleStatusPending)
		require.NoError(t, err)

		won, err := repo.Claim(ctx, sch.ID, utils.UTCNow())
		require.NoError(t, err)
		require.True(t, won)

		canceled, err := repo.Cancel(ctx, sch.ID)
		require.NoError(t, err)
		assert.False(t, canceled)
	})

	t.Run("CancelPendingSchedule", func(t *testing.T) {
		sch, err := fixtures.CreateTestSchedule(item, version, models.PlatformTwitter, utils.UTCNow().Add(time.Hour), models.ScheduleStatusPending)
		require.NoError(t, err)

		canceled, err := repo.Cancel(ctx, sch.ID)
		require.NoError(t, err)
		assert.True(t, canceled)

		won, err := repo.Claim(ctx, sch.ID, utils.UTCNow())
		require.NoError(t, err)
		assert.False(t, won, "canceled schedules cannot be claimed")
	})
}

func TestScheduleRepositoryListDue(t *testing.T) {
	testDB, fixtures, repo := setupScheduleTest(t)
	ctx := testingutil.CreateTestContext()

	org, err := fixtures.CreateTestOrganization()
	require.NoError(t, err)
	item, version, err := fixtures.CreateTestApprovedItem(org.ID, "Due ordering", []models.Platform{models.PlatformTwitter})
	require.NoError(t, err)

	now := utils.UTCNow()
	later, err := fixtures.CreateTestSchedule(item, version, models.PlatformTwitter, now.Add(-time.Minute), models.ScheduleStatusPending)
	require.NoError(t, err)
	earlier, err := fixtures.CreateTestSchedule(item, version, models.PlatformTwitter, now.Add(-time.Hour), models.ScheduleStatusPending)
	require.NoError(t, err)
	_, err = fixtures.CreateTestSchedule(item, version, models.PlatformTwitter, now.Add(time.Hour), models.ScheduleStatusPending)
	require.NoError(t, err)

	t.Run("OrderedByScheduledAt", func(t *testing.T) {
		due, err := repo.ListDue(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, earlier.ID, due[0].ID)
		assert.Equal(t, later.ID, due[1].ID)
	})

	t.Run("RespectsLimit", func(t *testing.T) {
		due, err := repo.ListDue(ctx, now, 1)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, earlier.ID, due[0].ID)
	})

	t.Run("FutureSchedulesExcluded", func(t *testing.T) {
		due, err := repo.ListDue(ctx, now.Add(-2*time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	require.NoError(t, testDB.ClearAllTables())
}

func TestScheduleRepositoryReleaseStale(t *testing.T) {
	_, fixtures, repo := setupScheduleTest(t)
	ctx := testingutil.CreateTestContext()

	org, err := fixtures.CreateTestOrganization()
	require.NoError(t, err)
	item, version, err := fixtures.CreateTestApprovedItem(org.ID, "Stale lease", []models.Platform{models.PlatformTwitter})
	require.NoError(t, err)

	sch, err := fixtures.CreateTestSchedule(item, version, models.PlatformTwitter, utils.UTCNow().Add(-time.Hour), models.ScheduleStatusPending)
	require.NoError(t, err)

	claimTime := utils.UTCNow().Add(-30 * time.Minute)
	won, err := repo.Claim(ctx, sch.ID, claimTime)
	require.NoError(t, err)
	require.True(t, won)

	t.Run("FreshLeaseKept", func(t *testing.T) {
		released, err := repo.ReleaseStale(ctx, claimTime.Add(-time.Minute))
		require.NoError(t, err)
		assert.Zero(t, released)
	})

	t.Run("ExpiredLeaseReturnsToDue", func(t *testing.T) {
		released, err := repo.ReleaseStale(ctx, utils.UTCNow())
		require.NoError(t, err)
		assert.Equal(t, int64(1), released)

		row, err := repo.ByID(ctx, sch.ID)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, models.ScheduleStatusDue, row.Status)
		assert.Nil(t, row.ClaimedAt)

		won, err := repo.Claim(ctx, sch.ID, utils.UTCNow())
		require.NoError(t, err)
		assert.True(t, won, "released schedules are claimable again")
	})
}

func TestScheduleRepositoryLifecycleMarks(t *testing.T) {
	_, fixtures, repo := setupScheduleTest(t)
	ctx := testingutil.CreateTestContext()

	org, err := fixtures.CreateTestOrganization()
	require.NoError(t, err)
	item, version, err := fixtures.CreateTestApprovedItem(org.ID, "Lifecycle", []models.Platform{models.PlatformTwitter})
	require.NoError(t, err)

	t.Run("MarkPublished", func(t *testing.T) {
		sch, err := fixtures.CreateTestSchedule(item, version, models.PlatformTwitter, utils.UTCNow().Add(-time.Minute), models.ScheduleStatusPending)
		require.NoError(t, err)

		won, err := repo.Claim(ctx, sch.ID, utils.UTCNow())
		require.NoError(t, err)
		require.True(t, won)

		publishedAt := utils.UTCNow()
		require.NoError(t, repo.MarkPublished(ctx, sch.ID, publishedAt))

		row, err := repo.ByID(ctx, sch.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ScheduleStatusPublished, row.Status)
		require.NotNil(t, row.PublishedAt)
	})

	t.Run("MarkFailedRecordsLastError", func(t *testing.T) {
		sch, err := fixtures.CreateTestSchedule(item, version, models.PlatformTwitter, utils.UTCNow().Add(-time.Minute), models.ScheduleStatusPending)
		require.NoError(t, err)

		won, err := repo.Claim(ctx, sch.ID, utils.UTCNow())
		require.NoError(t, err)
		require.True(t, won)

		require.NoError(t, repo.MarkFailed(ctx, sch.ID, "platform rejected the credentials"))

		row, err := repo.ByID(ctx, sch.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ScheduleStatusFailed, row.Status)
		require.NotNil(t, row.LastError)
		assert.Equal(t, "platform rejected the credentials", *row.LastError)
	})

	t.Run("IncrementAttempts", func(t *testing.T) {
		sch, err := fixtures.CreateTestSchedule(item, version, models.PlatformTwitter, utils.UTCNow().Add(-time.Minute), models.ScheduleStatusPending)
		require.NoError(t, err)

		require.NoError(t, repo.IncrementAttempts(ctx, sch.ID))
		require.NoError(t, repo.IncrementAttempts(ctx, sch.ID))

		row, err := repo.ByID(ctx, sch.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, row.Attempts)
	})
}
