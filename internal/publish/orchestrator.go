package publish

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"autopost/internal/logging"
	"autopost/internal/platform"
	"autopost/internal/services"
	"autopost/internal/services/captioner"
	"autopost/internal/services/uploadpost"
	"autopost/internal/store"
)

const (
	// Video groups processed concurrently per batch.
	groupConcurrency = 2

	linkRetryAttempts  = 3
	linkRetryBaseDelay = 1 * time.Second
	linkRetryMaxDelay  = 8 * time.Second
)

// Storage resolves and removes remote video files.
type Storage interface {
	GetDownloadLink(ctx context.Context, path string) (string, error)
	DeleteFile(ctx context.Context, path string) error
}

// Captioner generates caption text for one video.
type Captioner interface {
	GenerateCaption(ctx context.Context, req captioner.Request) (string, error)
}

// Publisher submits one platform upload.
type Publisher interface {
	Publish(ctx context.Context, req platform.Request, p platform.Platform) (uploadpost.Ack, error)
}

// Recorder persists post transitions, ledger entries, and brand statistics.
// *store.Store satisfies it.
type Recorder interface {
	UpdatePost(ctx context.Context, post *store.Post) error
	MarkUsed(ctx context.Context, identity, path string, usedAt time.Time) error
	IncrementBrand(ctx context.Context, brand, month string) error
}

// Outcome is the result of one (video, platform) publish.
type Outcome struct {
	PostID   string
	Platform string
	JobID    string
	Err      error
}

// Summary aggregates a dispatch run.
type Summary struct {
	Due       int
	Published int
	Failed    int
	Deleted   int
	Outcomes  []Outcome
}

// Orchestrator publishes due posts: caption once per video, publish each
// platform concurrently, and clean up the source only when every platform
// succeeded.
type Orchestrator struct {
	storage   Storage
	captions  Captioner
	publisher Publisher
	recorder  Recorder

	brandPrompts map[string]string
	now          func() time.Time
	sleeper      func(time.Duration)
	logger       *slog.Logger
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithBrandPrompts supplies per-brand caption style prompts keyed by
// normalized brand name.
func WithBrandPrompts(prompts map[string]string) Option {
	return func(o *Orchestrator) {
		o.brandPrompts = prompts
	}
}

// WithClock overrides the wall clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(o *Orchestrator) {
		if sleeper != nil {
			o.sleeper = sleeper
		}
	}
}

// New constructs an orchestrator.
func New(storage Storage, captions Captioner, publisher Publisher, recorder Recorder, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		storage:   storage,
		captions:  captions,
		publisher: publisher,
		recorder:  recorder,
		now:       time.Now,
		sleeper:   time.Sleep,
		logger:    logging.WithComponent(logger, "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run publishes the posts from a multi-day allocation that are due on the
// current calendar day. Days missed entirely are not caught up.
func (o *Orchestrator) Run(ctx context.Context, posts []*store.Post) Summary {
	logger := o.logger
	if runID, ok := services.RunIDFromContext(ctx); ok {
		logger = logger.With(logging.String(logging.FieldRunID, runID))
	}

	due := o.dueToday(posts)
	summary := Summary{Due: len(due)}
	if len(due) == 0 {
		return summary
	}

	groups := groupByIdentity(due)

	var mu sync.Mutex
	eg, groupCtx := errgroup.WithContext(ctx)
	eg.SetLimit(groupConcurrency)
	for _, group := range groups {
		group := group
		eg.Go(func() error {
			outcomes, deleted := o.processGroup(groupCtx, group, logger)
			mu.Lock()
			defer mu.Unlock()
			summary.Outcomes = append(summary.Outcomes, outcomes...)
			for _, out := range outcomes {
				if out.Err != nil {
					summary.Failed++
				} else {
					summary.Published++
				}
			}
			if deleted {
				summary.Deleted++
			}
			return nil
		})
	}
	_ = eg.Wait()

	logger.Info("dispatch finished",
		logging.Int("due", summary.Due),
		logging.Int("published", summary.Published),
		logging.Int("failed", summary.Failed),
		logging.Int("deleted", summary.Deleted))
	return summary
}

func (o *Orchestrator) dueToday(posts []*store.Post) []*store.Post {
	today := o.now()
	year, month, day := today.Date()
	due := make([]*store.Post, 0, len(posts))
	for _, post := range posts {
		if post.Status != store.StatusQueued {
			continue
		}
		y, m, d := post.ScheduledAt.In(today.Location()).Date()
		if y == year && m == month && d == day {
			due = append(due, post)
		}
	}
	return due
}

// groupByIdentity partitions posts by video so each video is captioned once
// and deleted once. Group order is deterministic.
func groupByIdentity(posts []*store.Post) [][]*store.Post {
	byIdentity := make(map[string][]*store.Post)
	for _, post := range posts {
		byIdentity[post.VideoIdentity] = append(byIdentity[post.VideoIdentity], post)
	}
	identities := make([]string, 0, len(byIdentity))
	for identity := range byIdentity {
		identities = append(identities, identity)
	}
	sort.Strings(identities)

	groups := make([][]*store.Post, 0, len(identities))
	for _, identity := range identities {
		groups = append(groups, byIdentity[identity])
	}
	return groups
}

// processGroup handles one video: caption, concurrent platform publishes,
// then cleanup when every platform succeeded.
func (o *Orchestrator) processGroup(ctx context.Context, group []*store.Post, logger *slog.Logger) ([]Outcome, bool) {
	first := group[0]
	logger = logger.With(
		logging.String(logging.FieldVideo, first.VideoPath),
		logging.String(logging.FieldBrand, first.Brand))

	caption := o.caption(ctx, first, logger)

	outcomes := make([]Outcome, len(group))
	var wg sync.WaitGroup
	for i, post := range group {
		wg.Add(1)
		go func(i int, post *store.Post) {
			defer wg.Done()
			outcomes[i] = o.publishOne(ctx, post, caption, logger)
		}(i, post)
	}
	wg.Wait()

	allOK := true
	for _, out := range outcomes {
		if out.Err != nil {
			allOK = false
			break
		}
	}
	if !allOK {
		logger.Warn("keeping source, not all platforms succeeded",
			logging.String(logging.FieldErrorHint, "video stays eligible for the next run"))
		return outcomes, false
	}
	return outcomes, o.cleanup(ctx, first, logger)
}

func (o *Orchestrator) caption(ctx context.Context, post *store.Post, logger *slog.Logger) string {
	req := captioner.Request{
		FileName:    post.VideoPath,
		Author:      post.Author,
		Theme:       post.Theme,
		BrandPrompt: o.brandPrompts[post.Brand],
	}
	if p, ok := platform.Parse(post.Platform); ok {
		req.Platform = p
	}
	caption, err := o.captions.GenerateCaption(ctx, req)
	if err != nil || caption == "" {
		logger.Warn("caption generation failed, using fallback", logging.Error(err))
		return captioner.Fallback(post.Author)
	}
	return caption
}

func (o *Orchestrator) publishOne(ctx context.Context, post *store.Post, caption string, logger *slog.Logger) Outcome {
	outcome := Outcome{PostID: post.ID, Platform: post.Platform}

	p, ok := platform.Parse(post.Platform)
	if !ok {
		outcome.Err = services.Wrap(services.ErrConfiguration, "orchestrator", "publish", "unknown platform "+post.Platform, nil)
		o.recordFailure(ctx, post, outcome.Err, logger)
		return outcome
	}
	strategy, _ := platform.StrategyFor(p)
	title, body := strategy.ParseTitle(caption)

	post.Status = store.StatusProcessing
	post.Caption = body
	post.Title = title
	if err := o.recorder.UpdatePost(ctx, post); err != nil {
		logger.Warn("persist processing state failed", logging.Error(err))
	}

	videoURL, err := o.resolveLink(ctx, post.VideoPath)
	if err != nil {
		outcome.Err = err
		o.recordFailure(ctx, post, err, logger)
		return outcome
	}

	ack, err := o.publisher.Publish(ctx, platform.Request{
		Profile:     post.Profile,
		VideoURL:    videoURL,
		Caption:     body,
		Title:       title,
		ScheduledAt: post.ScheduledAt,
	}, p)
	if err != nil {
		outcome.Err = err
		o.recordFailure(ctx, post, err, logger)
		return outcome
	}

	publishedAt := o.now().UTC()
	post.Status = store.StatusPublished
	post.JobID = ack.JobID
	post.PublishedAt = &publishedAt
	post.ErrorMessage = ""
	if err := o.recorder.UpdatePost(ctx, post); err != nil {
		logger.Warn("persist published state failed", logging.Error(err))
	}
	if post.Brand != "" && post.Brand != "unknown" {
		if err := o.recorder.IncrementBrand(ctx, post.Brand, store.MonthKey(publishedAt)); err != nil {
			logger.Warn("brand stats update failed", logging.Error(err))
		}
	}

	outcome.JobID = ack.JobID
	logger.Info("published",
		logging.String(logging.FieldPostID, post.ID),
		logging.String(logging.FieldPlatform, post.Platform),
		logging.String(logging.FieldProfile, post.Profile))
	return outcome
}

// resolveLink retries transient failures with a doubling, capped backoff.
// Anything else fails immediately.
func (o *Orchestrator) resolveLink(ctx context.Context, path string) (string, error) {
	delay := linkRetryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= linkRetryAttempts; attempt++ {
		url, err := o.storage.GetDownloadLink(ctx, path)
		if err == nil {
			return url, nil
		}
		lastErr = err
		if !services.IsTransient(err) || attempt == linkRetryAttempts {
			break
		}
		o.sleeper(delay)
		delay *= 2
		if delay > linkRetryMaxDelay {
			delay = linkRetryMaxDelay
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (o *Orchestrator) recordFailure(ctx context.Context, post *store.Post, cause error, logger *slog.Logger) {
	post.Status = store.StatusFailed
	post.ErrorMessage = cause.Error()
	if err := o.recorder.UpdatePost(ctx, post); err != nil {
		logger.Warn("persist failed state failed", logging.Error(err))
	}
	logger.Error("publish failed",
		logging.String(logging.FieldPostID, post.ID),
		logging.String(logging.FieldPlatform, post.Platform),
		logging.Error(cause))
}

// cleanup deletes the source and records the identity in the ledger. The
// ledger write is synchronous and follows the delete, so a crash in between
// can at worst leave a deleted file unledgered, never a ledgered file
// undeleted.
func (o *Orchestrator) cleanup(ctx context.Context, post *store.Post, logger *slog.Logger) bool {
	if err := o.storage.DeleteFile(ctx, post.VideoPath); err != nil {
		logger.Error("source delete failed, leaving video unledgered", logging.Error(err))
		return false
	}
	if err := o.recorder.MarkUsed(ctx, post.VideoIdentity, post.VideoPath, o.now().UTC()); err != nil {
		logger.Error("ledger write failed after delete", logging.Error(err))
		return false
	}
	logger.Info("source deleted and ledgered")
	return true
}
