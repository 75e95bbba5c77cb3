package daemon

import (
	"context"
	"testing"
	"time"

	"autopost/internal/config"
	"autopost/internal/logging"
	"autopost/internal/pipeline"
)

type stubPipeline struct {
	runs int
}

func (s *stubPipeline) Run(context.Context) (pipeline.Summary, error) {
	s.runs++
	return pipeline.Summary{RunID: "run-1"}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	return &cfg
}

func newTestDaemon(t *testing.T, cfg *config.Config, p Pipeline) *Daemon {
	t.Helper()
	d, err := New(cfg, p, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestDueRespectsRunTime(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.DailyRunTime = "07:30"
	d := newTestDaemon(t, cfg, &stubPipeline{})

	before := time.Date(2026, 9, 1, 7, 29, 0, 0, time.UTC)
	if d.due(before) {
		t.Fatal("must not be due before the daily run time")
	}
	after := time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC)
	if !d.due(after) {
		t.Fatal("must be due once the daily run time has passed")
	}
}

func TestDueTriggersOncePerDay(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.DailyRunTime = "07:30"
	p := &stubPipeline{}
	d := newTestDaemon(t, cfg, p)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	if !d.due(now) {
		t.Fatal("first check of the day must be due")
	}
	d.runOnce(context.Background())
	if p.runs != 1 {
		t.Fatalf("runs = %d", p.runs)
	}
	if d.due(now.Add(time.Hour)) {
		t.Fatal("same day must not trigger twice")
	}
	nextDay := now.AddDate(0, 0, 1)
	if !d.due(nextDay) {
		t.Fatal("next day must be due again")
	}
}

func TestDueRejectsInvalidRunTime(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.DailyRunTime = "notaclock"
	d := newTestDaemon(t, cfg, &stubPipeline{})

	if d.due(time.Date(2026, 9, 1, 23, 0, 0, 0, time.UTC)) {
		t.Fatal("invalid run time must never trigger")
	}
}

func TestStartRejectsSecondInstance(t *testing.T) {
	cfg := testConfig(t)
	first := newTestDaemon(t, cfg, &stubPipeline{})
	second := newTestDaemon(t, cfg, &stubPipeline{})

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance must not acquire the lock")
	}
}

func TestRunNowDelegates(t *testing.T) {
	cfg := testConfig(t)
	p := &stubPipeline{}
	d := newTestDaemon(t, cfg, p)

	summary, err := d.RunNow(context.Background())
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if summary.RunID != "run-1" || p.runs != 1 {
		t.Fatalf("summary = %+v, runs = %d", summary, p.runs)
	}
}
