package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/publora/publora/adaptation"
	"github.com/publora/publora/models"
	"github.com/publora/publora/utils"
)

// Publisher error constants
var (
	ErrCredentialsRejected = errors.New("platform rejected the credentials")
	ErrContentRejected     = errors.New("platform rejected the content")
)

// PublishError carries the transient/permanent classification the retrier
// keys off. Transient failures (timeouts, 429, 5xx) are retried; permanent
// ones (validation, credentials, unknown platform) go straight to failure.
type PublishError struct {
	Platform  models.Platform
	Transient bool
	Err       error
}

func (e *PublishError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("publish to %s failed (%s): %v", e.Platform, kind, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable publish failure
func IsTransient(err error) bool {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}

func newTransientError(platform models.Platform, err error) *PublishError {
	return &PublishError{Platform: platform, Transient: true, Err: err}
}

func newPermanentError(platform models.Platform, err error) *PublishError {
	return &PublishError{Platform: platform, Transient: false, Err: err}
}

// PublishResult is the outcome of one successful publish call
type PublishResult struct {
	Platform    models.Platform `json:"platform"`
	ExternalID  string          `json:"external_id"`
	PublishedAt time.Time       `json:"published_at"`
	DryRun      bool            `json:"dry_run"`
}

// Publisher delivers adapted content to a platform using decrypted credentials
type Publisher interface {
	Publish(ctx context.Context, platform models.Platform, accessToken string, content *adaptation.AdaptedContent) (*PublishResult, error)
}

// platform publish endpoints; media upload legs are folded into the single
// create call for every platform this system supports
var publishEndpoints = map[models.Platform]string{
	models.PlatformInstagram: "https://graph.instagram.com/me/media",
	models.PlatformTwitter:   "https://api.twitter.com/2/tweets",
	models.PlatformFacebook:  "https://graph.facebook.com/v19.0/me/feed",
	models.PlatformLinkedIn:  "https://api.linkedin.com/v2/ugcPosts",
	models.PlatformYouTube:   "https://www.googleapis.com/upload/youtube/v3/videos",
	models.PlatformTikTok:    "https://open.tiktokapis.com/v2/post/publish/content/init",
}

// HTTPPublisher implements Publisher against the real platform APIs
type HTTPPublisher struct {
	client *http.Client
}

// NewPublisher creates the default publisher
func NewPublisher() Publisher {
	return &HTTPPublisher{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Publish delivers one adapted payload. Dummy-prefixed tokens short-circuit to
// a dry run: the payload is validated and a synthetic id returned, nothing
// leaves the process.
func (p *HTTPPublisher) Publish(ctx context.Context, platform models.Platform, accessToken string, content *adaptation.AdaptedContent) (*PublishResult, error) {
	endpoint, ok := publishEndpoints[platform]
	if !ok {
		return nil, newPermanentError(platform, adaptation.ErrUnsupportedPlatform)
	}
	if accessToken == "" {
		return nil, newPermanentError(platform, ErrCredentialsRejected)
	}

	validation, err := adaptation.Validate(content, platform)
	if err != nil {
		return nil, newPermanentError(platform, err)
	}
	if !validation.Valid {
		return nil, newPermanentError(platform, fmt.Errorf("%w: %s", ErrContentRejected, strings.Join(validation.Errors, "; ")))
	}

	if strings.HasPrefix(accessToken, utils.DummyTokenPrefix) {
		return &PublishResult{
			Platform:    platform,
			ExternalID:  "dry-run-" + uuid.New().String(),
			PublishedAt: utils.UTCNow(),
			DryRun:      true,
		}, nil
	}

	payload, err := json.Marshal(buildPayload(platform, content))
	if err != nil {
		return nil, newPermanentError(platform, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, newPermanentError(platform, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(req)
	if err != nil {
		// Network errors and timeouts are worth retrying
		return nil, newTransientError(platform, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newTransientError(platform, err)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK || httpResp.StatusCode == http.StatusCreated:
		// fall through to parse
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return nil, newTransientError(platform, fmt.Errorf("status %d: %s", httpResp.StatusCode, truncateBody(body)))
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return nil, newPermanentError(platform, fmt.Errorf("%w: status %d", ErrCredentialsRejected, httpResp.StatusCode))
	default:
		return nil, newPermanentError(platform, fmt.Errorf("%w: status %d: %s", ErrContentRejected, httpResp.StatusCode, truncateBody(body)))
	}

	var created struct {
		ID   string `json:"id"`
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	_ = json.Unmarshal(body, &created)
	externalID := created.ID
	if externalID == "" {
		externalID = created.Data.ID
	}

	return &PublishResult{
		Platform:    platform,
		ExternalID:  externalID,
		PublishedAt: utils.UTCNow(),
	}, nil
}

// buildPayload renders the platform request body from adapted content
func buildPayload(platform models.Platform, content *adaptation.AdaptedContent) map[string]any {
	payload := map[string]any{}
	switch platform {
	case models.PlatformTwitter:
		payload["text"] = content.Text
	case models.PlatformInstagram:
		payload["caption"] = content.Fields["caption"]
		if len(content.MediaURLs) > 0 {
			payload["image_url"] = content.MediaURLs[0]
		}
	case models.PlatformFacebook:
		payload["message"] = content.Text
		if len(content.MediaURLs) > 0 {
			payload["link"] = content.MediaURLs[0]
		}
	case models.PlatformLinkedIn:
		payload["text"] = map[string]any{"text": content.Text}
		payload["visibility"] = content.Fields["visibility"]
	case models.PlatformYouTube:
		payload["snippet"] = map[string]any{
			"description": content.Text,
			"categoryId":  content.Fields["category_id"],
		}
		payload["status"] = map[string]any{
			"privacyStatus": content.Fields["privacy_status"],
		}
	case models.PlatformTikTok:
		payload["post_info"] = map[string]any{"title": content.Text}
		if len(content.MediaURLs) > 0 {
			payload["source_info"] = map[string]any{"video_url": content.MediaURLs[0]}
		}
	}
	return payload
}

func truncateBody(body []byte) string {
	const max = 256
	s := string(body)
	if len(s) > max {
		return s[:max]
	}
	return s
}
