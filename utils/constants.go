package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour

	// OAuthStateTTL is the default time-to-live for signed OAuth state tokens (5 minutes)
	OAuthStateTTL = 5 * time.Minute

	// OAuthStateTTLSeconds is the OAuth state TTL in seconds (300 seconds = 5 minutes)
	OAuthStateTTLSeconds = 300
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Publishing pipeline constants
const (
	// DummyTokenPrefix marks placeholder credentials saved through the dev-save path.
	// Consumers must check for this prefix before treating a token as a real credential.
	DummyTokenPrefix = "dummy_access_"

	// IdempotencyRecordTTL bounds how long a recorded response is replayed for a key
	IdempotencyRecordTTL = 24 * time.Hour

	// IdempotencyPendingTTL bounds how long a key stays reserved while the first
	// request executes; expiry unblocks retries after a crashed execution
	IdempotencyPendingTTL = 30 * time.Second

	// WebhookDedupeTTL bounds how long a webhook idempotency key suppresses redelivery
	WebhookDedupeTTL = 48 * time.Hour
)
