package adaptation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/publora/publora/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapt(t *testing.T) {
	t.Run("ShortTextPassesThrough", func(t *testing.T) {
		content, err := Adapt("Launch day is here", models.PlatformTwitter, nil)
		require.NoError(t, err)
		assert.Equal(t, models.PlatformTwitter, content.Platform)
		assert.Equal(t, "Launch day is here", content.Text)
		assert.Empty(t, content.Hashtags)
		assert.Empty(t, content.MediaURLs)
	})

	t.Run("TruncatesOverLongText", func(t *testing.T) {
		long := strings.Repeat("a", 300)
		content, err := Adapt(long, models.PlatformTwitter, nil)
		require.NoError(t, err)
		assert.Len(t, []rune(content.Text), 280)
		assert.True(t, strings.HasSuffix(content.Text, "..."))
	})

	t.Run("TruncationCountsRunesNotBytes", func(t *testing.T) {
		long := strings.Repeat("é", 300)
		content, err := Adapt(long, models.PlatformTwitter, nil)
		require.NoError(t, err)
		assert.Len(t, []rune(content.Text), 280)
	})

	t.Run("CapsHashtagsKeepingOriginalOrder", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("New release")
		for i := 1; i <= 12; i++ {
			fmt.Fprintf(&sb, " #tag%d", i)
		}
		content, err := Adapt(sb.String(), models.PlatformTwitter, nil)
		require.NoError(t, err)
		require.Len(t, content.Hashtags, 10)
		assert.Equal(t, "#tag1", content.Hashtags[0])
		assert.Equal(t, "#tag10", content.Hashtags[9])
		assert.NotContains(t, content.Text, "#tag11")
	})

	t.Run("DeduplicatesHashtags", func(t *testing.T) {
		content, err := Adapt("Big news #launch #launch #golang", models.PlatformTwitter, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"#launch", "#golang"}, content.Hashtags)
	})

	t.Run("MovesHashtagsToTrailingBlock", func(t *testing.T) {
		content, err := Adapt("Big #launch news today", models.PlatformTwitter, nil)
		require.NoError(t, err)
		assert.Equal(t, "Big news today\n\n#launch", content.Text)
	})

	t.Run("FiltersMediaByAllowedType", func(t *testing.T) {
		media := []string{
			"https://cdn.example.com/a.jpg",
			"https://cdn.example.com/b.mp4",
			"https://cdn.example.com/notes.txt",
		}
		content, err := Adapt("Watch this", models.PlatformTwitter, media)
		require.NoError(t, err)
		assert.Equal(t, media[:2], content.MediaURLs)

		content, err = Adapt("Watch this", models.PlatformYouTube, media)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://cdn.example.com/b.mp4"}, content.MediaURLs)
	})

	t.Run("AdaptIsIdempotent", func(t *testing.T) {
		first, err := Adapt("Big news today #launch #golang", models.PlatformLinkedIn, nil)
		require.NoError(t, err)
		second, err := Adapt(first.Text, models.PlatformLinkedIn, nil)
		require.NoError(t, err)
		assert.Equal(t, first.Text, second.Text)
		assert.Equal(t, first.Hashtags, second.Hashtags)
	})

	t.Run("UnsupportedPlatform", func(t *testing.T) {
		_, err := Adapt("hello", models.Platform("myspace"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	})

	t.Run("InstagramCaptionFieldIncludesHashtags", func(t *testing.T) {
		content, err := Adapt("Sunset shot #photo", models.PlatformInstagram, []string{"https://cdn.example.com/a.jpg"})
		require.NoError(t, err)
		assert.Equal(t, "Sunset shot\n\n#photo", content.Fields["caption"])
		assert.Equal(t, []string{"#photo"}, content.Fields["hashtags"])
	})

	t.Run("LinkedInVisibilityField", func(t *testing.T) {
		content, err := Adapt("Hiring", models.PlatformLinkedIn, nil)
		require.NoError(t, err)
		assert.Equal(t, "PUBLIC", content.Fields["visibility"])
	})
}

func TestRulesFor(t *testing.T) {
	t.Run("KnownPlatform", func(t *testing.T) {
		rules, err := RulesFor(models.PlatformTwitter)
		require.NoError(t, err)
		assert.Equal(t, 280, rules.MaxTextLength)
		assert.Equal(t, 10, rules.MaxHashtags)
		assert.False(t, rules.RequiresImage)
	})

	t.Run("InstagramRequiresImage", func(t *testing.T) {
		rules, err := RulesFor(models.PlatformInstagram)
		require.NoError(t, err)
		assert.True(t, rules.RequiresImage)
	})

	t.Run("UnknownPlatform", func(t *testing.T) {
		_, err := RulesFor(models.Platform("friendster"))
		assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	})
}

func TestCatalog(t *testing.T) {
	catalog := Catalog()
	require.Len(t, catalog, 6)
	for _, platform := range models.AllPlatforms() {
		rules, ok := catalog[platform.String()]
		require.True(t, ok, "catalog missing %s", platform)
		assert.Positive(t, rules.MaxTextLength)
		assert.NotEmpty(t, rules.AllowedMediaTypes)
	}

	// Returned map is a copy; callers cannot mutate the registry
	catalog["twitter"] = Rules{MaxTextLength: 1}
	rules, err := RulesFor(models.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, 280, rules.MaxTextLength)
}

func TestValidate(t *testing.T) {
	t.Run("ValidContent", func(t *testing.T) {
		content, err := Adapt("Ship it #launch", models.PlatformTwitter, []string{"https://cdn.example.com/a.png"})
		require.NoError(t, err)
		result, err := Validate(content, models.PlatformTwitter)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("TextTooLong", func(t *testing.T) {
		content := &AdaptedContent{
			Platform: models.PlatformTwitter,
			Text:     strings.Repeat("a", 300),
		}
		result, err := Validate(content, models.PlatformTwitter)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "exceeds platform limit")
	})

	t.Run("TooManyHashtags", func(t *testing.T) {
		hashtags := make([]string, 11)
		for i := range hashtags {
			hashtags[i] = fmt.Sprintf("#t%d", i)
		}
		content := &AdaptedContent{Platform: models.PlatformTwitter, Text: "hi", Hashtags: hashtags}
		result, err := Validate(content, models.PlatformTwitter)
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})

	t.Run("InstagramWithoutImage", func(t *testing.T) {
		content := &AdaptedContent{Platform: models.PlatformInstagram, Text: "no picture"}
		result, err := Validate(content, models.PlatformInstagram)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "platform requires at least one image")
	})

	t.Run("DisallowedMediaType", func(t *testing.T) {
		content := &AdaptedContent{
			Platform:  models.PlatformYouTube,
			Text:      "video time",
			MediaURLs: []string{"https://cdn.example.com/a.jpg"},
		}
		result, err := Validate(content, models.PlatformYouTube)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "not allowed on youtube")
	})

	t.Run("UnrecognizedExtension", func(t *testing.T) {
		content := &AdaptedContent{
			Platform:  models.PlatformTwitter,
			Text:      "hi",
			MediaURLs: []string{"https://cdn.example.com/a.xyz"},
		}
		result, err := Validate(content, models.PlatformTwitter)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors[0], "unrecognized media type")
	})

	t.Run("UnknownPlatform", func(t *testing.T) {
		_, err := Validate(&AdaptedContent{}, models.Platform("orkut"))
		assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	})
}
