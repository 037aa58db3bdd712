package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/publora/publora/adaptation"
	"github.com/publora/publora/app/services"
	"github.com/publora/publora/config"
	"github.com/publora/publora/models"
	"github.com/publora/publora/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduleRepo records the state transition calls the scheduler makes
type fakeScheduleRepo struct {
	mu sync.Mutex

	due       []*models.Schedule
	claimWins map[uint]bool

	increments    int
	markPublished []uint
	markFailed    map[uint]string
	released      int64
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{
		claimWins:  map[uint]bool{},
		markFailed: map[uint]string{},
	}
}

func (r *fakeScheduleRepo) ByID(ctx context.Context, id uint) (*models.Schedule, error) {
	return nil, nil
}

func (r *fakeScheduleRepo) ByFilter(ctx context.Context, filter models.ScheduleFilter, orderBy string, limit, offset int) ([]*models.Schedule, error) {
	return nil, nil
}

func (r *fakeScheduleRepo) Save(ctx context.Context, entity *models.Schedule) error { return nil }

func (r *fakeScheduleRepo) SaveBatch(ctx context.Context, entities []*models.Schedule) error {
	return nil
}

func (r *fakeScheduleRepo) Count(ctx context.Context, filter models.ScheduleFilter) (int64, error) {
	return 0, nil
}

func (r *fakeScheduleRepo) Exists(ctx context.Context, filter models.ScheduleFilter) (bool, error) {
	return false, nil
}

func (r *fakeScheduleRepo) ByUUID(ctx context.Context, uuidStr string) (*models.Schedule, error) {
	return nil, nil
}

func (r *fakeScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error) {
	return r.due, nil
}

func (r *fakeScheduleRepo) Claim(ctx context.Context, id uint, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claimWins[id], nil
}

func (r *fakeScheduleRepo) Cancel(ctx context.Context, id uint) (bool, error) { return false, nil }

func (r *fakeScheduleRepo) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	return r.released, nil
}

func (r *fakeScheduleRepo) MarkPublished(ctx context.Context, id uint, publishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markPublished = append(r.markPublished, id)
	return nil
}

func (r *fakeScheduleRepo) MarkFailed(ctx context.Context, id uint, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markFailed[id] = lastError
	return nil
}

func (r *fakeScheduleRepo) IncrementAttempts(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increments++
	return nil
}

func (r *fakeScheduleRepo) incrementCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.increments
}

// fakeVersionRepo serves a single content version by id
type fakeVersionRepo struct {
	version *models.ContentVersion
}

func (r *fakeVersionRepo) ByID(ctx context.Context, id uint) (*models.ContentVersion, error) {
	if r.version != nil && r.version.ID == id {
		return r.version, nil
	}
	return nil, nil
}

func (r *fakeVersionRepo) ByFilter(ctx context.Context, filter models.ContentVersionFilter, orderBy string, limit, offset int) ([]*models.ContentVersion, error) {
	return nil, nil
}

func (r *fakeVersionRepo) Save(ctx context.Context, entity *models.ContentVersion) error { return nil }

func (r *fakeVersionRepo) SaveBatch(ctx context.Context, entities []*models.ContentVersion) error {
	return nil
}

func (r *fakeVersionRepo) Count(ctx context.Context, filter models.ContentVersionFilter) (int64, error) {
	return 0, nil
}

func (r *fakeVersionRepo) Exists(ctx context.Context, filter models.ContentVersionFilter) (bool, error) {
	return false, nil
}

func (r *fakeVersionRepo) ByItemAndVersion(ctx context.Context, contentItemID uint, version int) (*models.ContentVersion, error) {
	return nil, nil
}

func (r *fakeVersionRepo) CurrentByItem(ctx context.Context, contentItemID uint) (*models.ContentVersion, error) {
	return r.version, nil
}

func (r *fakeVersionRepo) LatestVersionNumber(ctx context.Context, contentItemID uint) (int, error) {
	return 1, nil
}

func (r *fakeVersionRepo) SetCurrent(ctx context.Context, contentItemID uint, version int) error {
	return nil
}

// fakeDLQRepo collects dead-lettered entries
type fakeDLQRepo struct {
	mu      sync.Mutex
	entries []*models.PublishDLQ
}

func (r *fakeDLQRepo) ByID(ctx context.Context, id uint) (*models.PublishDLQ, error) {
	return nil, nil
}

func (r *fakeDLQRepo) ByFilter(ctx context.Context, filter models.PublishDLQFilter, orderBy string, limit, offset int) ([]*models.PublishDLQ, error) {
	return nil, nil
}

func (r *fakeDLQRepo) Save(ctx context.Context, entity *models.PublishDLQ) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entity)
	return nil
}

func (r *fakeDLQRepo) SaveBatch(ctx context.Context, entities []*models.PublishDLQ) error {
	return nil
}

func (r *fakeDLQRepo) Count(ctx context.Context, filter models.PublishDLQFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

func (r *fakeDLQRepo) Exists(ctx context.Context, filter models.PublishDLQFilter) (bool, error) {
	return false, nil
}

func (r *fakeDLQRepo) ListChronological(ctx context.Context, limit, offset int) ([]*models.PublishDLQ, error) {
	return r.entries, nil
}

// fakeTokenSource returns a fixed token or error
type fakeTokenSource struct {
	token string
	err   error
}

func (s *fakeTokenSource) AccessTokenFor(ctx context.Context, organizationID uint, platform models.Platform) (string, error) {
	return s.token, s.err
}

// fakePublisher replays a scripted sequence of errors before succeeding
type fakePublisher struct {
	mu        sync.Mutex
	errs      []error
	calls     int
	published chan *adaptation.AdaptedContent
}

func newFakePublisher(errs ...error) *fakePublisher {
	return &fakePublisher{errs: errs, published: make(chan *adaptation.AdaptedContent, 8)}
}

func (p *fakePublisher) Publish(ctx context.Context, platform models.Platform, accessToken string, content *adaptation.AdaptedContent) (*services.PublishResult, error) {
	p.mu.Lock()
	call := p.calls
	p.calls++
	p.mu.Unlock()

	if call < len(p.errs) && p.errs[call] != nil {
		return nil, p.errs[call]
	}
	p.published <- content
	return &services.PublishResult{
		Platform:    platform,
		ExternalID:  "ext-1",
		PublishedAt: utils.UTCNow(),
	}, nil
}

func (p *fakePublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func transientErr() error {
	return &services.PublishError{Platform: models.PlatformTwitter, Transient: true, Err: errors.New("status 503")}
}

func permanentErr() error {
	return &services.PublishError{Platform: models.PlatformTwitter, Transient: false, Err: errors.New("rejected")}
}

func testSchedule() *models.Schedule {
	adapted, _ := json.Marshal(adaptation.AdaptedContent{
		Platform: models.PlatformTwitter,
		Text:     "Frozen at schedule time",
	})
	return &models.Schedule{
		ID:               1,
		UUID:             uuid.New(),
		OrganizationID:   10,
		ContentItemID:    20,
		ContentVersionID: 30,
		Platform:         models.PlatformTwitter,
		ScheduledAt:      utils.UTCNow().Add(-time.Minute),
		Status:           models.ScheduleStatusPending,
		AdaptedContent:   adapted,
	}
}

func newTestScheduler(schedRepo *fakeScheduleRepo, versionRepo *fakeVersionRepo, dlqRepo *fakeDLQRepo, tokens TokenSource, publisher services.Publisher, cfg config.SchedulerConfig) *PublishScheduler {
	return &PublishScheduler{
		schedRepo:   schedRepo,
		versionRepo: versionRepo,
		dlqRepo:     dlqRepo,
		tokens:      tokens,
		publisher:   publisher,
		logger:      log.New(io.Discard, "", 0),
		cfg:         cfg,
	}
}

func TestPublishWithRetry(t *testing.T) {
	cfg := config.SchedulerConfig{RetryMax: 3, RetryBackoff: time.Millisecond}

	t.Run("TransientFailuresAreRetried", func(t *testing.T) {
		schedRepo := newFakeScheduleRepo()
		publisher := newFakePublisher(transientErr(), transientErr())
		s := newTestScheduler(schedRepo, &fakeVersionRepo{}, &fakeDLQRepo{}, &fakeTokenSource{token: "tok"}, publisher, cfg)

		result, err := s.publishWithRetry(context.Background(), testSchedule(), "tok", &adaptation.AdaptedContent{Text: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "ext-1", result.ExternalID)
		assert.Equal(t, 3, publisher.callCount())
		assert.Equal(t, 3, schedRepo.incrementCount())
	})

	t.Run("PermanentFailureStopsImmediately", func(t *testing.T) {
		schedRepo := newFakeScheduleRepo()
		publisher := newFakePublisher(permanentErr())
		s := newTestScheduler(schedRepo, &fakeVersionRepo{}, &fakeDLQRepo{}, &fakeTokenSource{token: "tok"}, publisher, cfg)

		_, err := s.publishWithRetry(context.Background(), testSchedule(), "tok", &adaptation.AdaptedContent{Text: "hi"})
		require.Error(t, err)
		assert.False(t, services.IsTransient(err))
		assert.Equal(t, 1, publisher.callCount())
	})

	t.Run("AttemptBudgetExhausted", func(t *testing.T) {
		schedRepo := newFakeScheduleRepo()
		publisher := newFakePublisher(transientErr(), transientErr(), transientErr())
		small := config.SchedulerConfig{RetryMax: 2, RetryBackoff: time.Millisecond}
		s := newTestScheduler(schedRepo, &fakeVersionRepo{}, &fakeDLQRepo{}, &fakeTokenSource{token: "tok"}, publisher, small)

		_, err := s.publishWithRetry(context.Background(), testSchedule(), "tok", &adaptation.AdaptedContent{Text: "hi"})
		require.Error(t, err)
		assert.True(t, services.IsTransient(err))
		assert.Equal(t, 3, publisher.callCount())
	})

	t.Run("CanceledContextStopsBackoffWait", func(t *testing.T) {
		schedRepo := newFakeScheduleRepo()
		publisher := newFakePublisher(transientErr())
		slow := config.SchedulerConfig{RetryMax: 5, RetryBackoff: time.Hour}
		s := newTestScheduler(schedRepo, &fakeVersionRepo{}, &fakeDLQRepo{}, &fakeTokenSource{token: "tok"}, publisher, slow)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.publishWithRetry(ctx, testSchedule(), "tok", &adaptation.AdaptedContent{Text: "hi"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, publisher.callCount())
	})
}

func TestProcessSchedule(t *testing.T) {
	cfg := config.SchedulerConfig{RetryMax: 0, RetryBackoff: time.Millisecond, LeaseTimeout: time.Minute}

	t.Run("PublishesStoredAdaptedContent", func(t *testing.T) {
		schedRepo := newFakeScheduleRepo()
		publisher := newFakePublisher()
		s := newTestScheduler(schedRepo, &fakeVersionRepo{}, &fakeDLQRepo{}, &fakeTokenSource{token: "tok"}, publisher, cfg)

		sch := testSchedule()
		require.NoError(t, s.processSchedule(context.Background(), sch))

		content := <-publisher.published
		assert.Equal(t, "Frozen at schedule time", content.Text)
		assert.Equal(t, []uint{sch.ID}, schedRepo.markPublished)
		assert.Empty(t, schedRepo.markFailed)
	})

	t.Run("ReadaptsWhenStoredContentMissing", func(t *testing.T) {
		schedRepo := newFakeScheduleRepo()
		publisher := newFakePublisher()
		versionRepo := &fakeVersionRepo{version: &models.ContentVersion{
			ID:   30,
			Body: "Fresh from the version store",
		}}
		s := newTestScheduler(schedRepo, versionRepo, &fakeDLQRepo{}, &fakeTokenSource{token: "tok"}, publisher, cfg)

		sch := testSchedule()
		sch.AdaptedContent = nil
		require.NoError(t, s.processSchedule(context.Background(), sch))

		content := <-publisher.published
		assert.Equal(t, "Fresh from the version store", content.Text)
	})

	t.Run("MissingCredentialDeadLetters", func(t *testing.T) {
		schedRepo := newFakeScheduleRepo()
		dlqRepo := &fakeDLQRepo{}
		tokens := &fakeTokenSource{err: errors.New("no active account")}
		s := newTestScheduler(schedRepo, &fakeVersionRepo{}, dlqRepo, tokens, newFakePublisher(), cfg)

		sch := testSchedule()
		require.Error(t, s.processSchedule(context.Background(), sch))

		require.Len(t, dlqRepo.entries, 1)
		entry := dlqRepo.entries[0]
		assert.Equal(t, sch.ID, entry.ScheduleID)
		assert.Equal(t, models.PlatformTwitter, entry.Platform)
		assert.Contains(t, entry.Error, "no active account")
		assert.Contains(t, schedRepo.markFailed, sch.ID)
	})

	t.Run("ExhaustedPublishDeadLettersWithPayload", func(t *testing.T) {
		schedRepo := newFakeScheduleRepo()
		dlqRepo := &fakeDLQRepo{}
		publisher := newFakePublisher(permanentErr())
		s := newTestScheduler(schedRepo, &fakeVersionRepo{}, dlqRepo, &fakeTokenSource{token: "tok"}, publisher, cfg)

		sch := testSchedule()
		require.Error(t, s.processSchedule(context.Background(), sch))

		require.Len(t, dlqRepo.entries, 1)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(dlqRepo.entries[0].Payload, &payload))
		assert.Equal(t, sch.UUID.String(), payload["schedule_uuid"])
		assert.Equal(t, "twitter", payload["platform"])
		assert.Empty(t, schedRepo.markPublished)
	})
}

func TestRunOnce(t *testing.T) {
	cfg := config.SchedulerConfig{RetryMax: 0, RetryBackoff: time.Millisecond, LeaseTimeout: time.Minute, DueBatchSize: 10}

	t.Run("ClaimedScheduleIsPublished", func(t *testing.T) {
		schedRepo := newFakeScheduleRepo()
		sch := testSchedule()
		schedRepo.due = []*models.Schedule{sch}
		schedRepo.claimWins[sch.ID] = true

		publisher := newFakePublisher()
		s := newTestScheduler(schedRepo, &fakeVersionRepo{}, &fakeDLQRepo{}, &fakeTokenSource{token: "tok"}, publisher, cfg)

		s.runOnce(context.Background())

		select {
		case content := <-publisher.published:
			assert.Equal(t, "Frozen at schedule time", content.Text)
		case <-time.After(2 * time.Second):
			t.Fatal("schedule was never published")
		}
	})

	t.Run("LostClaimSkipsPublish", func(t *testing.T) {
		schedRepo := newFakeScheduleRepo()
		sch := testSchedule()
		schedRepo.due = []*models.Schedule{sch}
		schedRepo.claimWins[sch.ID] = false

		publisher := newFakePublisher()
		s := newTestScheduler(schedRepo, &fakeVersionRepo{}, &fakeDLQRepo{}, &fakeTokenSource{token: "tok"}, publisher, cfg)

		s.runOnce(context.Background())

		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, publisher.callCount())
	})
}

func TestRetryDelay(t *testing.T) {
	t.Run("DoublesPerAttempt", func(t *testing.T) {
		assert.Equal(t, time.Second, retryDelay(time.Second, 1))
		assert.Equal(t, 2*time.Second, retryDelay(time.Second, 2))
		assert.Equal(t, 4*time.Second, retryDelay(time.Second, 3))
		assert.Equal(t, 8*time.Second, retryDelay(time.Second, 4))
	})

	t.Run("CappedAtMax", func(t *testing.T) {
		assert.Equal(t, maxRetryDelay, retryDelay(time.Minute, 10))
		assert.Equal(t, maxRetryDelay, retryDelay(time.Hour, 1))
	})

	t.Run("DefaultsWhenUnset", func(t *testing.T) {
		assert.Equal(t, 5*time.Second, retryDelay(0, 1))
		assert.Equal(t, 10*time.Second, retryDelay(0, 2))
	})
}
