package scheduler

import (
	"context"
	"time"

	"github.com/publora/publora/adaptation"
	"github.com/publora/publora/app/middleware"
	"github.com/publora/publora/app/services"
	"github.com/publora/publora/models"
)

// maxRetryDelay caps the exponential growth so a long attempt budget cannot
// push a single schedule's retries past the lease horizon.
const maxRetryDelay = 5 * time.Minute

// retryDelay returns the wait before the given retry attempt (1-based):
// the configured base doubled per prior attempt, capped at maxRetryDelay.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 5 * time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay || delay <= 0 {
			return maxRetryDelay
		}
	}
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

// publishWithRetry delivers the adapted content, retrying transient failures
// with exponential backoff up to the configured attempt budget. Permanent
// failures stop immediately; the caller dead-letters whatever comes back as
// an error.
func (s *PublishScheduler) publishWithRetry(ctx context.Context, sch *models.Schedule, token string, content *adaptation.AdaptedContent) (*services.PublishResult, error) {
	retryMax := s.cfg.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(s.cfg.RetryBackoff, attempt)):
			}
		}

		middleware.PublishAttemptsTotal.WithLabelValues(sch.Platform.String()).Inc()
		if err := s.schedRepo.IncrementAttempts(ctx, sch.ID); err != nil {
			s.logger.Printf("scheduler: increment attempts failed for schedule id=%d: %v", sch.ID, err)
		}

		result, err := s.publisher.Publish(ctx, sch.Platform, token, content)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !services.IsTransient(err) {
			return nil, err
		}
		s.logger.Printf("scheduler: transient publish failure for schedule id=%d attempt=%d: %v", sch.ID, attempt+1, err)
	}
	return nil, lastErr
}
