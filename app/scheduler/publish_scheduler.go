// Package scheduler
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/publora/publora/adaptation"
	"github.com/publora/publora/app/middleware"
	"github.com/publora/publora/app/services"
	"github.com/publora/publora/config"
	"github.com/publora/publora/models"
	"github.com/publora/publora/repository"
	"github.com/publora/publora/utils"
)

// PublishScheduler periodically claims due schedules and delivers their
// adapted content to the target platform
type PublishScheduler struct {
	schedRepo   repository.ScheduleRepository
	versionRepo repository.ContentVersionRepository
	dlqRepo     repository.PublishDLQRepository
	tokens      TokenSource
	publisher   services.Publisher
	logger      *log.Logger
	cfg         config.SchedulerConfig

	logFile *os.File
}

// TokenSource is a minimal interface extracted from the OAuth flow for publishing
// This keeps the scheduler independent and easy to test
type TokenSource interface {
	AccessTokenFor(ctx context.Context, organizationID uint, platform models.Platform) (string, error)
}

func NewPublishScheduler(
	schedRepo repository.ScheduleRepository,
	versionRepo repository.ContentVersionRepository,
	dlqRepo repository.PublishDLQRepository,
	tokens TokenSource,
	publisher services.Publisher,
	cfg config.SchedulerConfig,
) *PublishScheduler {
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 30 * time.Second
	}
	if cfg.DueBatchSize <= 0 {
		cfg.DueBatchSize = 50
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 10 * time.Minute
	}

	s := &PublishScheduler{
		schedRepo:   schedRepo,
		versionRepo: versionRepo,
		dlqRepo:     dlqRepo,
		tokens:      tokens,
		publisher:   publisher,
		cfg:         cfg,
	}

	// Initialize scheduler-specific logger (to stdout and persistent file)
	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *PublishScheduler) initSchedulerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "scheduler.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		// Success
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create scheduler log file in any candidate directory")
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *PublishScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.cfg.PublishInterval)
		defer ticker.Stop()

		s.refreshDLQDepth(ctx)
		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *PublishScheduler) runOnce(ctx context.Context) {
	now := utils.UTCNow()

	// Return schedules whose lease expired (worker died mid-publish) to due
	released, err := s.schedRepo.ReleaseStale(ctx, now.Add(-s.cfg.LeaseTimeout))
	if err != nil {
		s.logger.Printf("scheduler: release stale schedules failed: %v", err)
	} else if released > 0 {
		middleware.SchedulesReleasedTotal.Add(float64(released))
		s.logger.Printf("scheduler: released %d stale schedules", released)
	}

	due, err := s.schedRepo.ListDue(ctx, now, s.cfg.DueBatchSize)
	if err != nil {
		s.logger.Printf("scheduler: list due schedules failed: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Printf("scheduler: listed %d due schedules", len(due))

	for _, sch := range due {
		won, err := s.schedRepo.Claim(ctx, sch.ID, utils.UTCNow())
		if err != nil {
			s.logger.Printf("scheduler: claim failed for schedule id=%d: %v", sch.ID, err)
			continue
		}
		if !won {
			// Another worker got there first
			middleware.ScheduleClaimsTotal.WithLabelValues("lost").Inc()
			continue
		}
		middleware.ScheduleClaimsTotal.WithLabelValues("won").Inc()

		sc := sch
		go func() {
			if err := s.processSchedule(ctx, sc); err != nil {
				s.logger.Printf("scheduler: process schedule id=%d failed: %v", sc.ID, err)
			}
		}()
	}
	// Do not wait to keep scheduler loop non-blocking
}

func (s *PublishScheduler) processSchedule(ctx context.Context, sch *models.Schedule) error {
	content, err := s.adaptedContent(ctx, sch)
	if err != nil {
		s.deadLetter(ctx, sch, fmt.Errorf("resolve adapted content: %w", err))
		return err
	}

	token, err := s.tokens.AccessTokenFor(ctx, sch.OrganizationID, sch.Platform)
	if err != nil {
		// No usable credential: retrying without operator action cannot help
		s.deadLetter(ctx, sch, fmt.Errorf("resolve access token: %w", err))
		return err
	}

	result, err := s.publishWithRetry(ctx, sch, token, content)
	if err != nil {
		s.deadLetter(ctx, sch, err)
		return err
	}

	if err := s.schedRepo.MarkPublished(ctx, sch.ID, result.PublishedAt); err != nil {
		s.logger.Printf("scheduler: mark published failed for schedule id=%d: %v", sch.ID, err)
		return err
	}

	outcome := "published"
	if result.DryRun {
		outcome = "dry_run"
	}
	middleware.PublishResultsTotal.WithLabelValues(sch.Platform.String(), outcome).Inc()
	s.logger.Printf("scheduler: schedule id=%d published platform=%s external_id=%s dry_run=%t",
		sch.ID, sch.Platform, result.ExternalID, result.DryRun)
	return nil
}

// adaptedContent prefers the adaptation frozen at schedule time and falls back
// to re-adapting the pinned version
func (s *PublishScheduler) adaptedContent(ctx context.Context, sch *models.Schedule) (*adaptation.AdaptedContent, error) {
	if len(sch.AdaptedContent) > 0 {
		var content adaptation.AdaptedContent
		if err := json.Unmarshal(sch.AdaptedContent, &content); err == nil {
			return &content, nil
		}
		s.logger.Printf("scheduler: stored adapted content unreadable for schedule id=%d, re-adapting", sch.ID)
	}

	version, err := s.versionRepo.ByID(ctx, sch.ContentVersionID)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, fmt.Errorf("content version id=%d not found", sch.ContentVersionID)
	}
	return adaptation.Adapt(version.Body, sch.Platform, sch.MediaURLs)
}

// deadLetter records the exhausted publish attempt for operator triage and
// marks the schedule failed
func (s *PublishScheduler) deadLetter(ctx context.Context, sch *models.Schedule, cause error) {
	payload, err := json.Marshal(map[string]any{
		"schedule_uuid":      sch.UUID,
		"organization_id":    sch.OrganizationID,
		"content_item_id":    sch.ContentItemID,
		"content_version_id": sch.ContentVersionID,
		"platform":           sch.Platform,
		"scheduled_at":       sch.ScheduledAt,
		"attempts":           sch.Attempts,
		"media_urls":         []string(sch.MediaURLs),
	})
	if err != nil {
		payload = []byte("{}")
	}

	entry := &models.PublishDLQ{
		ScheduleID: sch.ID,
		Platform:   sch.Platform,
		Error:      cause.Error(),
		Payload:    payload,
	}
	if err := s.dlqRepo.Save(ctx, entry); err != nil {
		s.logger.Printf("scheduler: dead letter save failed for schedule id=%d: %v", sch.ID, err)
	} else {
		middleware.DLQDepth.Inc()
	}

	if err := s.schedRepo.MarkFailed(ctx, sch.ID, cause.Error()); err != nil {
		s.logger.Printf("scheduler: mark failed failed for schedule id=%d: %v", sch.ID, err)
	}
	middleware.PublishResultsTotal.WithLabelValues(sch.Platform.String(), "failed").Inc()
	s.logger.Printf("scheduler: schedule id=%d dead-lettered platform=%s: %v", sch.ID, sch.Platform, cause)
}

// refreshDLQDepth seeds the depth gauge from the database on startup
func (s *PublishScheduler) refreshDLQDepth(ctx context.Context) {
	n, err := s.dlqRepo.Count(ctx, models.PublishDLQFilter{})
	if err != nil {
		s.logger.Printf("scheduler: count dlq entries failed: %v", err)
		return
	}
	middleware.DLQDepth.Set(float64(n))
}
