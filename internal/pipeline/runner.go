package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"autopost/internal/config"
	"autopost/internal/logging"
	"autopost/internal/media"
	"autopost/internal/platform"
	"autopost/internal/publish"
	"autopost/internal/schedule"
	"autopost/internal/services"
	"autopost/internal/services/uploadpost"
	"autopost/internal/store"
)

// Lister provides the remote video listing.
type Lister interface {
	ListFiles(ctx context.Context) ([]media.Item, error)
}

// JobLister reports uploads the publisher is still holding.
type JobLister interface {
	PendingJobs(ctx context.Context) ([]uploadpost.Job, error)
}

// Dispatcher publishes the due part of an allocation.
type Dispatcher interface {
	Run(ctx context.Context, posts []*store.Post) publish.Summary
}

// History is the slice of the store the runner uses. *store.Store
// satisfies it.
type History interface {
	UsedIdentities(ctx context.Context) (map[string]struct{}, error)
	PublishedByBrand(ctx context.Context, month string) (map[string]int, error)
	ScheduledTimes(ctx context.Context, profile, platform string, from, until time.Time) ([]time.Time, error)
	InsertPost(ctx context.Context, post *store.Post) error
	DueQueued(ctx context.Context, from, until time.Time) ([]*store.Post, error)
}

// Summary describes one full pipeline run.
type Summary struct {
	RunID     string
	Listed    int
	Allocated int
	Dispatch  publish.Summary
}

// Runner executes one allocation-and-dispatch cycle.
type Runner struct {
	cfg        *config.Config
	storage    Lister
	publisher  JobLister
	history    History
	dispatcher Dispatcher

	rng    *rand.Rand
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes the runner.
type Option func(*Runner)

// WithRand overrides the allocator's random source (useful for tests).
func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) {
		if rng != nil {
			r.rng = rng
		}
	}
}

// WithClock overrides the wall clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a runner.
func New(cfg *config.Config, storage Lister, publisher JobLister, history History, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:        cfg,
		storage:    storage,
		publisher:  publisher,
		history:    history,
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     logging.WithComponent(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run lists, allocates, persists, and dispatches. Every post it creates is
// stamped with one run identifier for tracing.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID := uuid.New().String()
	ctx = services.WithRunID(ctx, runID)
	logger := r.logger.With(logging.String(logging.FieldRunID, runID))
	summary := Summary{RunID: runID}

	scheduled, listed, err := r.allocate(ctx, logger)
	if err != nil {
		return summary, err
	}
	summary.Listed = listed
	summary.Allocated = len(scheduled)

	for _, sp := range scheduled {
		post := &store.Post{
			RunID:         runID,
			Profile:       sp.Profile,
			Platform:      string(sp.Platform),
			Theme:         sp.Theme,
			Brand:         sp.Brand,
			Author:        sp.Author,
			VideoPath:     sp.Video.Path,
			VideoIdentity: sp.Video.Identity(),
			ScheduledAt:   sp.PublishAt,
		}
		if err := r.history.InsertPost(ctx, post); err != nil {
			return summary, fmt.Errorf("persist schedule: %w", err)
		}
	}

	logger.Info("allocation finished",
		logging.Int("listed", summary.Listed),
		logging.Int("allocated", summary.Allocated))

	// Dispatch from the store, not the in-memory allocation, so queued posts
	// left behind by an earlier run the same day get picked up too.
	now := r.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	due, err := r.history.DueQueued(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return summary, fmt.Errorf("load due posts: %w", err)
	}

	summary.Dispatch = r.dispatcher.Run(ctx, due)
	return summary, nil
}

// Preview lists and allocates without persisting or dispatching anything.
func (r *Runner) Preview(ctx context.Context) ([]schedule.ScheduledPost, error) {
	scheduled, _, err := r.allocate(ctx, r.logger)
	return scheduled, err
}

func (r *Runner) allocate(ctx context.Context, logger *slog.Logger) ([]schedule.ScheduledPost, int, error) {
	items, err := r.storage.ListFiles(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list videos: %w", err)
	}

	used, err := r.history.UsedIdentities(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load ledger: %w", err)
	}

	now := r.now()
	published, err := r.history.PublishedByBrand(ctx, store.MonthKey(now))
	if err != nil {
		return nil, 0, fmt.Errorf("load brand stats: %w", err)
	}

	profiles := r.profileSpecs()
	occupied := r.occupiedSlots(ctx, profiles, now, logger)

	allocator := schedule.New(schedule.Options{
		DaysToGenerate:     r.cfg.Scheduler.DaysToGenerate,
		WindowStartHour:    r.cfg.Scheduler.WindowStartHour,
		WindowEndHour:      r.cfg.Scheduler.WindowEndHour,
		MinSlotGap:         time.Duration(r.cfg.Scheduler.MinSlotGapMinutes) * time.Minute,
		SlotSearchAttempts: r.cfg.Scheduler.SlotSearchAttempts,
	}, r.rng, r.now, logger)

	scheduled := allocator.Allocate(schedule.Input{
		Items:     items,
		Aliases:   r.cfg.AliasTable(),
		Profiles:  profiles,
		Used:      used,
		Occupied:  occupied,
		Quotas:    r.cfg.BrandQuotas(),
		Published: published,
	})
	return scheduled, len(items), nil
}

func (r *Runner) profileSpecs() []schedule.ProfileSpec {
	enabled := r.cfg.EnabledProfiles()
	aliases := r.cfg.AliasTable()
	specs := make([]schedule.ProfileSpec, 0, len(enabled))
	for _, p := range enabled {
		platforms := p.PlatformList()
		// The profile theme resolves through the same alias table as video
		// paths so both sides land on identical keys.
		spec := schedule.ProfileSpec{
			Handle:    p.Handle,
			Theme:     media.ResolveTheme(p.Theme, aliases),
			Platforms: platforms,
			Limits:    make(map[platform.Platform]int, len(platforms)),
		}
		for _, pl := range platforms {
			spec.Limits[pl] = r.cfg.LimitFor(p, pl)
		}
		specs = append(specs, spec)
	}
	return specs
}

// occupiedSlots merges slots already held in the local history with the
// publisher's pending jobs. A publisher outage degrades gracefully: the run
// proceeds with local slots only.
func (r *Runner) occupiedSlots(ctx context.Context, profiles []schedule.ProfileSpec, now time.Time, logger *slog.Logger) map[string][]time.Time {
	until := now.AddDate(0, 0, r.cfg.Scheduler.DaysToGenerate+1)
	occupied := make(map[string][]time.Time, len(profiles))

	for _, spec := range profiles {
		for _, pl := range spec.Platforms {
			times, err := r.history.ScheduledTimes(ctx, spec.Handle, string(pl), now.AddDate(0, 0, -1), until)
			if err != nil {
				logger.Warn("loading local slots failed", logging.Error(err),
					logging.String(logging.FieldProfile, spec.Handle))
				continue
			}
			occupied[spec.Handle] = append(occupied[spec.Handle], times...)
		}
	}

	jobs, err := r.publisher.PendingJobs(ctx)
	if err != nil {
		logger.Warn("publisher pending jobs unavailable, using local slots only",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "slot separation may be weaker this run"))
		return occupied
	}
	for _, job := range jobs {
		if job.Profile == "" || job.ScheduledAt.IsZero() {
			continue
		}
		occupied[job.Profile] = append(occupied[job.Profile], job.ScheduledAt)
	}
	return occupied
}
