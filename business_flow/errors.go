// Package businessflow contains the core business logic and use cases for the publishing pipeline
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Organization-related errors
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrOrganizationInactive = errors.New("organization is inactive")

	// Content-related errors
	ErrContentItemNotFound   = errors.New("content item not found")
	ErrContentVersionMissing = errors.New("content item has no versions")
	ErrVersionNotFound       = errors.New("content version not found")
	ErrContentBodyRequired   = errors.New("content body is required")
	ErrItemArchived          = errors.New("content item is archived")

	// Approval-related errors
	ErrNotApproved       = errors.New("content item is not approved")
	ErrPlatformsRequired = errors.New("at least one platform is required")

	// Platform-related errors
	ErrInvalidPlatform = errors.New("platform is not supported")

	// Schedule-related errors
	ErrScheduleNotFound       = errors.New("schedule not found")
	ErrScheduleTimeInPast     = errors.New("schedule time is in the past")
	ErrScheduleNotCancellable = errors.New("schedule cannot be canceled in its current state")
	ErrScheduleAlreadyClaimed = errors.New("schedule already claimed")

	// OAuth-related errors
	ErrRedirectNotAllowed  = errors.New("redirect target is not in the allowlist")
	ErrStateReplayed       = errors.New("oauth state has already been used")
	ErrStateMismatch       = errors.New("oauth state does not match the browser cookie")
	ErrAccountNotFound     = errors.New("social account not found")
	ErrAccountRevoked      = errors.New("social account is revoked")
	ErrNoCurrentToken      = errors.New("account has no current token")
	ErrRefreshInProgress   = errors.New("token refresh already in progress")
	ErrRefreshNotSupported = errors.New("account has no refresh token")

	// Webhook-related errors
	ErrWebhookVerifyFailed    = errors.New("webhook verify token mismatch")
	ErrWebhookSignatureFailed = errors.New("webhook signature verification failed")
	ErrWebhookBodyMalformed   = errors.New("webhook body is not valid JSON")

	// DLQ-related errors
	ErrDLQEntryNotFound = errors.New("dead-letter entry not found")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")

	ErrCacheNotAvailable = errors.New("cache not available")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions to check specific business errors

func IsOrganizationNotFound(err error) bool {
	return errors.Is(err, ErrOrganizationNotFound)
}

func IsOrganizationInactive(err error) bool {
	return errors.Is(err, ErrOrganizationInactive)
}

func IsContentItemNotFound(err error) bool {
	return errors.Is(err, ErrContentItemNotFound)
}

func IsContentVersionMissing(err error) bool {
	return errors.Is(err, ErrContentVersionMissing)
}

func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

func IsContentBodyRequired(err error) bool {
	return errors.Is(err, ErrContentBodyRequired)
}

func IsItemArchived(err error) bool {
	return errors.Is(err, ErrItemArchived)
}

func IsNotApproved(err error) bool {
	return errors.Is(err, ErrNotApproved)
}

func IsInvalidPlatform(err error) bool {
	return errors.Is(err, ErrInvalidPlatform)
}

func IsScheduleNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound)
}

func IsScheduleTimeInPast(err error) bool {
	return errors.Is(err, ErrScheduleTimeInPast)
}

func IsScheduleNotCancellable(err error) bool {
	return errors.Is(err, ErrScheduleNotCancellable)
}

func IsRedirectNotAllowed(err error) bool {
	return errors.Is(err, ErrRedirectNotAllowed)
}

func IsStateReplayed(err error) bool {
	return errors.Is(err, ErrStateReplayed)
}

func IsStateMismatch(err error) bool {
	return errors.Is(err, ErrStateMismatch)
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsNoCurrentToken(err error) bool {
	return errors.Is(err, ErrNoCurrentToken)
}

func IsRefreshInProgress(err error) bool {
	return errors.Is(err, ErrRefreshInProgress)
}

func IsRefreshNotSupported(err error) bool {
	return errors.Is(err, ErrRefreshNotSupported)
}

func IsWebhookVerifyFailed(err error) bool {
	return errors.Is(err, ErrWebhookVerifyFailed)
}

func IsWebhookSignatureFailed(err error) bool {
	return errors.Is(err, ErrWebhookSignatureFailed)
}

func IsWebhookBodyMalformed(err error) bool {
	return errors.Is(err, ErrWebhookBodyMalformed)
}

func IsDLQEntryNotFound(err error) bool {
	return errors.Is(err, ErrDLQEntryNotFound)
}

// IsNotFound reports whether the error is one of the lookup-miss sentinels
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrganizationNotFound) ||
		errors.Is(err, ErrContentItemNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrDLQEntryNotFound)
}

// IsConflict reports whether the error is a state-machine conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrScheduleNotCancellable) ||
		errors.Is(err, ErrScheduleAlreadyClaimed) ||
		errors.Is(err, ErrStateReplayed) ||
		errors.Is(err, ErrRefreshInProgress)
}
