package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"autopost/internal/config"
	"autopost/internal/logging"
	"autopost/internal/pipeline"
)

// Ticker interval. The run trigger has minute resolution, so anything well
// under a minute is fine.
const defaultTickInterval = 20 * time.Second

// Pipeline is the cycle the daemon triggers once per day.
type Pipeline interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// Daemon runs the pipeline on a daily schedule and enforces single-instance
// execution with a lock file.
type Daemon struct {
	cfg      *config.Config
	pipeline Pipeline
	logger   *slog.Logger

	lockPath string
	lock     *flock.Flock

	tick time.Duration
	now  func() time.Time

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	// lastRunDay is only touched from the loop goroutine.
	lastRunDay string
}

// Option customizes the daemon.
type Option func(*Daemon)

// WithClock overrides the wall clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) {
		if now != nil {
			d.now = now
		}
	}
}

// WithTickInterval overrides how often the schedule is checked.
func WithTickInterval(interval time.Duration) Option {
	return func(d *Daemon) {
		if interval > 0 {
			d.tick = interval
		}
	}
}

// LockFilePath returns the instance lock location for a configuration. The
// CLI takes the same lock for manual runs.
func LockFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "autopostd.lock")
}

// New constructs a daemon.
func New(cfg *config.Config, p Pipeline, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || p == nil {
		return nil, errors.New("daemon requires config and pipeline")
	}
	lockPath := LockFilePath(cfg)
	d := &Daemon{
		cfg:      cfg,
		pipeline: p,
		logger:   logging.WithComponent(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		tick:     defaultTickInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the instance lock and launches the schedule loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another autopost daemon instance is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running.Store(true)

	go d.loop(loopCtx)

	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("daily_run_time", d.cfg.Scheduler.DailyRunTime))
	return nil
}

// Stop halts the schedule loop and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("releasing daemon lock failed", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Running reports whether the schedule loop is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the path of the instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// RunNow triggers one pipeline cycle immediately, outside the daily schedule.
func (d *Daemon) RunNow(ctx context.Context) (pipeline.Summary, error) {
	return d.pipeline.Run(ctx)
}

func (d *Daemon) loop(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.due(d.now()) {
				continue
			}
			d.runOnce(ctx)
		}
	}
}

// due reports whether the daily run time has passed and no run has happened
// on the current calendar day yet.
func (d *Daemon) due(now time.Time) bool {
	hour, minute, err := config.ParseClock(d.cfg.Scheduler.DailyRunTime)
	if err != nil {
		d.logger.Error("daily run time is invalid, schedule loop idle", logging.Error(err))
		return false
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.Before(target) {
		return false
	}
	return d.lastRunDay != now.Format(time.DateOnly)
}

func (d *Daemon) runOnce(ctx context.Context) {
	d.lastRunDay = d.now().Format(time.DateOnly)
	started := d.now()
	summary, err := d.pipeline.Run(ctx)
	if err != nil {
		d.logger.Error("scheduled run failed",
			logging.Error(err),
			logging.String(logging.FieldRunID, summary.RunID))
		return
	}
	d.logger.Info("scheduled run finished",
		logging.String(logging.FieldRunID, summary.RunID),
		logging.Int("listed", summary.Listed),
		logging.Int("allocated", summary.Allocated),
		logging.Int("published", summary.Dispatch.Published),
		logging.Int("failed", summary.Dispatch.Failed),
		logging.Duration("elapsed", d.now().Sub(started)))
}
