package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatform(t *testing.T) {
	t.Run("SupportedSet", func(t *testing.T) {
		platforms := AllPlatforms()
		assert.Len(t, platforms, 6)
		for _, p := range platforms {
			assert.True(t, p.Valid(), "%s should be valid", p)
		}
	})

	t.Run("InvalidValues", func(t *testing.T) {
		assert.False(t, Platform("").Valid())
		assert.False(t, Platform("myspace").Valid())
		assert.False(t, Platform("Twitter").Valid(), "platform tags are case sensitive")
	})

	t.Run("DriverValue", func(t *testing.T) {
		v, err := PlatformTwitter.Value()
		assert.NoError(t, err)
		assert.Equal(t, "twitter", v)

		_, err = Platform("myspace").Value()
		assert.Error(t, err)
	})

	t.Run("Scan", func(t *testing.T) {
		var p Platform
		assert.NoError(t, p.Scan("linkedin"))
		assert.Equal(t, PlatformLinkedIn, p)

		assert.NoError(t, p.Scan([]byte("tiktok")))
		assert.Equal(t, PlatformTikTok, p)
	})
}

func TestContentItemStatus(t *testing.T) {
	valid := []ContentItemStatus{
		ContentItemStatusDraft,
		ContentItemStatusPendingApproval,
		ContentItemStatusApproved,
		ContentItemStatusPublished,
		ContentItemStatusArchived,
	}
	for _, s := range valid {
		assert.True(t, s.Valid(), "%s should be valid", s)
	}
	assert.False(t, ContentItemStatus("deleted").Valid())
}

func TestScheduleStatus(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		for _, s := range []ScheduleStatus{
			ScheduleStatusPending,
			ScheduleStatusDue,
			ScheduleStatusPublishing,
			ScheduleStatusPublished,
			ScheduleStatusFailed,
			ScheduleStatusCanceled,
		} {
			assert.True(t, s.Valid(), "%s should be valid", s)
		}
		assert.False(t, ScheduleStatus("paused").Valid())
	})

	t.Run("Terminal", func(t *testing.T) {
		assert.True(t, ScheduleStatusPublished.Terminal())
		assert.True(t, ScheduleStatusFailed.Terminal())
		assert.True(t, ScheduleStatusCanceled.Terminal())
		assert.False(t, ScheduleStatusPending.Terminal())
		assert.False(t, ScheduleStatusDue.Terminal())
		assert.False(t, ScheduleStatusPublishing.Terminal())
	})
}

func TestSocialAccountStatus(t *testing.T) {
	assert.True(t, SocialAccountStatusActive.Valid())
	assert.True(t, SocialAccountStatusRevoked.Valid())
	assert.False(t, SocialAccountStatus("suspended").Valid())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "organizations", Organization{}.TableName())
	assert.Equal(t, "social_accounts", SocialAccount{}.TableName())
	assert.Equal(t, "tokens", Token{}.TableName())
	assert.Equal(t, "content_items", ContentItem{}.TableName())
	assert.Equal(t, "content_versions", ContentVersion{}.TableName())
	assert.Equal(t, "approvals", Approval{}.TableName())
	assert.Equal(t, "adaptation_previews", AdaptationPreview{}.TableName())
	assert.Equal(t, "schedules", Schedule{}.TableName())
	assert.Equal(t, "publish_dlq", PublishDLQ{}.TableName())
	assert.Equal(t, "engagement_events", EngagementEvent{}.TableName())
}
