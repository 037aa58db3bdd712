package adaptation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/publora/publora/models"
)

// ValidationResult reports whether content satisfies a platform's rule set
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate re-checks adapted (or stored/edited) content against a platform's
// constraints independently of Adapt, so content can be re-validated without
// being re-adapted.
func Validate(content *AdaptedContent, platform models.Platform) (*ValidationResult, error) {
	rules, err := RulesFor(platform)
	if err != nil {
		return nil, err
	}

	var errs []string

	bodyLen := len([]rune(stripHashtags(content.Text)))
	if bodyLen > rules.MaxTextLength {
		errs = append(errs, fmt.Sprintf("text length %d exceeds platform limit %d", bodyLen, rules.MaxTextLength))
	}

	if len(content.Hashtags) > rules.MaxHashtags {
		errs = append(errs, fmt.Sprintf("hashtag count %d exceeds platform limit %d", len(content.Hashtags), rules.MaxHashtags))
	}

	if rules.RequiresImage && !hasImage(content.MediaURLs) {
		errs = append(errs, "platform requires at least one image")
	}

	for _, mediaURL := range content.MediaURLs {
		mime, ok := mimeForURL(mediaURL)
		if !ok {
			errs = append(errs, fmt.Sprintf("unrecognized media type for %s", mediaURL))
			continue
		}
		if !slices.Contains(rules.AllowedMediaTypes, mime) {
			errs = append(errs, fmt.Sprintf("media type %s not allowed on %s", mime, platform))
		}
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

func hasImage(mediaURLs []string) bool {
	for _, mediaURL := range mediaURLs {
		if mime, ok := mimeForURL(mediaURL); ok && strings.HasPrefix(mime, "image/") {
			return true
		}
	}
	return false
}
