// Package adaptation transforms raw content into platform-compliant
// representations (length, hashtags, media) and validates content against
// per-platform constraints. It is pure and deterministic: no I/O, no state.
package adaptation

import (
	"errors"
	"fmt"

	"github.com/publora/publora/models"
)

// ErrUnsupportedPlatform is returned when a platform is not in the fixed supported set
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Rules holds the static constraint set for one platform
type Rules struct {
	MaxTextLength     int      `json:"max_text_length"`
	MaxHashtags       int      `json:"max_hashtags"`
	RequiresImage     bool     `json:"requires_image"`
	AllowedMediaTypes []string `json:"allowed_media_types"`
	LinkPreview       bool     `json:"link_preview"`
	EmojiSupport      bool     `json:"emoji_support"`
}

// platformRules is the readonly registry loaded once at startup.
// Lookup of an unknown platform fails explicitly; there is no default.
var platformRules = map[models.Platform]Rules{
	models.PlatformInstagram: {
		MaxTextLength:     2200,
		MaxHashtags:       30,
		RequiresImage:     true,
		AllowedMediaTypes: []string{"image/jpeg", "image/png", "video/mp4"},
		LinkPreview:       false,
		EmojiSupport:      true,
	},
	models.PlatformTwitter: {
		MaxTextLength:     280,
		MaxHashtags:       10,
		RequiresImage:     false,
		AllowedMediaTypes: []string{"image/jpeg", "image/png", "image/gif", "video/mp4"},
		LinkPreview:       true,
		EmojiSupport:      true,
	},
	models.PlatformFacebook: {
		MaxTextLength:     63206,
		MaxHashtags:       30,
		RequiresImage:     false,
		AllowedMediaTypes: []string{"image/jpeg", "image/png", "image/gif", "video/mp4", "video/quicktime"},
		LinkPreview:       true,
		EmojiSupport:      true,
	},
	models.PlatformLinkedIn: {
		MaxTextLength:     3000,
		MaxHashtags:       15,
		RequiresImage:     false,
		AllowedMediaTypes: []string{"image/jpeg", "image/png", "video/mp4"},
		LinkPreview:       true,
		EmojiSupport:      false,
	},
	models.PlatformYouTube: {
		MaxTextLength:     5000,
		MaxHashtags:       15,
		RequiresImage:     false,
		AllowedMediaTypes: []string{"video/mp4", "video/quicktime", "video/x-msvideo"},
		LinkPreview:       false,
		EmojiSupport:      true,
	},
	models.PlatformTikTok: {
		MaxTextLength:     2200,
		MaxHashtags:       20,
		RequiresImage:     false,
		AllowedMediaTypes: []string{"video/mp4", "video/quicktime"},
		LinkPreview:       false,
		EmojiSupport:      true,
	},
}

// extensionMIME maps media file extensions to MIME types.
// This is a fixed table, not real content inspection.
var extensionMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
}

// RulesFor returns the rule set for a platform, or ErrUnsupportedPlatform
func RulesFor(platform models.Platform) (Rules, error) {
	rules, ok := platformRules[platform]
	if !ok {
		return Rules{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	return rules, nil
}

// Catalog returns a copy of the full rule registry keyed by platform tag
func Catalog() map[string]Rules {
	catalog := make(map[string]Rules, len(platformRules))
	for platform, rules := range platformRules {
		catalog[platform.String()] = rules
	}
	return catalog
}
