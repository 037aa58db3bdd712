package adaptation

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/publora/publora/models"
)

// hashtagPattern matches hashtag tokens: word characters plus the
// Arabic/Persian range so non-Latin tags are recognized
var hashtagPattern = regexp.MustCompile(`#[\w\x{0600}-\x{06FF}]+`)

// AdaptedContent is the platform-compliant representation of one piece of content
type AdaptedContent struct {
	Platform  models.Platform `json:"platform"`
	Text      string          `json:"text"`
	Hashtags  []string        `json:"hashtags"`
	MediaURLs []string        `json:"media_urls"`
	Fields    map[string]any  `json:"fields,omitempty"`
}

// Adapt maps (raw text, target platform, media) to adapted content honoring the
// platform's rule set. Adapting already-adapted text is a no-op on length and
// hashtag fields.
func Adapt(text string, platform models.Platform, mediaURLs []string) (*AdaptedContent, error) {
	rules, err := RulesFor(platform)
	if err != nil {
		return nil, err
	}

	hashtags := extractHashtags(text)
	body := stripHashtags(text)

	if len([]rune(body)) > rules.MaxTextLength {
		truncated := []rune(body)[:rules.MaxTextLength-3]
		body = string(truncated) + "..."
	}

	// First N in original order, not re-ranked
	if len(hashtags) > rules.MaxHashtags {
		hashtags = hashtags[:rules.MaxHashtags]
	}

	finalText := body
	if len(hashtags) > 0 {
		finalText = body + "\n\n" + strings.Join(hashtags, " ")
	}

	return &AdaptedContent{
		Platform:  platform,
		Text:      finalText,
		Hashtags:  hashtags,
		MediaURLs: filterMedia(mediaURLs, rules.AllowedMediaTypes),
		Fields:    platformFields(platform, body, hashtags),
	}, nil
}

// extractHashtags returns hashtag tokens in first-seen order without duplicates
func extractHashtags(text string) []string {
	var hashtags []string
	for _, match := range hashtagPattern.FindAllString(text, -1) {
		if !slices.Contains(hashtags, match) {
			hashtags = append(hashtags, match)
		}
	}
	return hashtags
}

// stripHashtags removes hashtag tokens and normalizes the whitespace left behind
func stripHashtags(text string) string {
	stripped := hashtagPattern.ReplaceAllString(text, "")
	stripped = regexp.MustCompile(` {2,}`).ReplaceAllString(stripped, " ")
	return strings.TrimSpace(stripped)
}

// filterMedia keeps URLs whose file extension maps to an allowed MIME type
func filterMedia(mediaURLs, allowedTypes []string) []string {
	var filtered []string
	for _, raw := range mediaURLs {
		mime, ok := mimeForURL(raw)
		if !ok {
			continue
		}
		if slices.Contains(allowedTypes, mime) {
			filtered = append(filtered, raw)
		}
	}
	return filtered
}

// mimeForURL resolves a URL's extension through the fixed extension table
func mimeForURL(raw string) (string, bool) {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	mime, ok := extensionMIME[strings.ToLower(path.Ext(p))]
	return mime, ok
}

// platformFields builds the fixed per-platform structured field template
func platformFields(platform models.Platform, body string, hashtags []string) map[string]any {
	switch platform {
	case models.PlatformInstagram:
		caption := body
		if len(hashtags) > 0 {
			caption = fmt.Sprintf("%s\n\n%s", body, strings.Join(hashtags, " "))
		}
		return map[string]any{
			"caption":  caption,
			"hashtags": hashtags,
		}
	case models.PlatformTwitter:
		return map[string]any{
			"reply_settings": "everyone",
		}
	case models.PlatformFacebook:
		return map[string]any{
			"published": true,
		}
	case models.PlatformLinkedIn:
		return map[string]any{
			"visibility": "PUBLIC",
		}
	case models.PlatformYouTube:
		return map[string]any{
			"category_id":    "22",
			"privacy_status": "public",
		}
	case models.PlatformTikTok:
		return map[string]any{
			"privacy_level": "PUBLIC_TO_EVERYONE",
		}
	default:
		return nil
	}
}
