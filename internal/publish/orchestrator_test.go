package publish_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"autopost/internal/platform"
	"autopost/internal/publish"
	"autopost/internal/services"
	"autopost/internal/services/captioner"
	"autopost/internal/services/uploadpost"
	"autopost/internal/store"
)

var testNow = time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)

type fakeStorage struct {
	mu        sync.Mutex
	linkErrs  map[string][]error // per path, consumed in order before success
	deleted   []string
	deleteErr error
	linkCalls int
}

func (f *fakeStorage) GetDownloadLink(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls++
	if errs := f.linkErrs[path]; len(errs) > 0 {
		err := errs[0]
		f.linkErrs[path] = errs[1:]
		return "", err
	}
	return "https://downloader.example/" + path, nil
}

func (f *fakeStorage) DeleteFile(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, path)
	return nil
}

type fakeCaptioner struct {
	text string
	err  error
}

func (f *fakeCaptioner) GenerateCaption(context.Context, captioner.Request) (string, error) {
	return f.text, f.err
}

type fakePublisher struct {
	mu       sync.Mutex
	failFor  map[platform.Platform]error
	requests []platform.Request
}

func (f *fakePublisher) Publish(_ context.Context, req platform.Request, p platform.Platform) (uploadpost.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.failFor[p]; err != nil {
		return uploadpost.Ack{}, err
	}
	return uploadpost.Ack{JobID: "job-" + string(p), Scheduled: true}, nil
}

type fakeRecorder struct {
	mu         sync.Mutex
	statuses   map[string]store.Status
	used       []string
	increments map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		statuses:   make(map[string]store.Status),
		increments: make(map[string]int),
	}
}

func (f *fakeRecorder) UpdatePost(_ context.Context, post *store.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[post.ID] = post.Status
	return nil
}

func (f *fakeRecorder) MarkUsed(_ context.Context, identity, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.used = append(f.used, identity)
	return nil
}

func (f *fakeRecorder) IncrementBrand(_ context.Context, brand, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increments[brand]++
	return nil
}

func newPost(id, platformName string) *store.Post {
	return &store.Post{
		ID:            id,
		Profile:       "beautyhub",
		Platform:      platformName,
		Theme:         "skincare",
		Brand:         "acme",
		Author:        "Alice",
		VideoPath:     "disk:/Video/Alice/Beauty/Acme/clip.mp4",
		VideoIdentity: "md5-clip",
		ScheduledAt:   testNow.Add(time.Hour),
		Status:        store.StatusQueued,
	}
}

func newOrchestrator(storage *fakeStorage, captions *fakeCaptioner, publisher *fakePublisher, recorder *fakeRecorder) *publish.Orchestrator {
	return publish.New(storage, captions, publisher, recorder, nil,
		publish.WithClock(func() time.Time { return testNow }),
		publish.WithSleeper(func(time.Duration) {}),
	)
}

func TestRunTagsLogsWithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	o := publish.New(&fakeStorage{}, &fakeCaptioner{text: "ok"}, &fakePublisher{}, newFakeRecorder(), logger,
		publish.WithClock(func() time.Time { return testNow }),
		publish.WithSleeper(func(time.Duration) {}),
	)

	ctx := services.WithRunID(context.Background(), "run-42")
	o.Run(ctx, []*store.Post{newPost("p1", "instagram")})

	if !strings.Contains(buf.String(), "run_id=run-42") {
		t.Fatalf("dispatch log must carry the run id, got %q", buf.String())
	}
}

func TestPartialFailureKeepsSourceAndLedger(t *testing.T) {
	storage := &fakeStorage{}
	publisher := &fakePublisher{failFor: map[platform.Platform]error{
		platform.TikTok: services.Wrap(services.ErrUpstream, "publisher", "upload", "rejected", nil),
	}}
	recorder := newFakeRecorder()
	o := newOrchestrator(storage, &fakeCaptioner{text: "Nice one #shorts"}, publisher, recorder)

	summary := o.Run(context.Background(), []*store.Post{
		newPost("p1", "instagram"),
		newPost("p2", "tiktok"),
	})

	if summary.Published != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(storage.deleted) != 0 {
		t.Fatalf("source must not be deleted on partial failure: %v", storage.deleted)
	}
	if len(recorder.used) != 0 {
		t.Fatalf("ledger must stay empty on partial failure: %v", recorder.used)
	}
	if recorder.statuses["p1"] != store.StatusPublished {
		t.Fatalf("p1 status = %s", recorder.statuses["p1"])
	}
	if recorder.statuses["p2"] != store.StatusFailed {
		t.Fatalf("p2 status = %s", recorder.statuses["p2"])
	}
}

func TestFullSuccessDeletesAndLedgersOnce(t *testing.T) {
	storage := &fakeStorage{}
	publisher := &fakePublisher{}
	recorder := newFakeRecorder()
	o := newOrchestrator(storage, &fakeCaptioner{text: "Nice one #shorts"}, publisher, recorder)

	summary := o.Run(context.Background(), []*store.Post{
		newPost("p1", "instagram"),
		newPost("p2", "tiktok"),
	})

	if summary.Published != 2 || summary.Failed != 0 || summary.Deleted != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(storage.deleted) != 1 {
		t.Fatalf("deleted = %v, want exactly one delete", storage.deleted)
	}
	if len(recorder.used) != 1 || recorder.used[0] != "md5-clip" {
		t.Fatalf("used = %v, want the identity ledgered exactly once", recorder.used)
	}
	if recorder.increments["acme"] != 2 {
		t.Fatalf("brand increments = %d, want one per published platform", recorder.increments["acme"])
	}
}

func TestCaptionFailureFallsBack(t *testing.T) {
	storage := &fakeStorage{}
	publisher := &fakePublisher{}
	recorder := newFakeRecorder()
	o := newOrchestrator(storage, &fakeCaptioner{err: errors.New("model down")}, publisher, recorder)

	summary := o.Run(context.Background(), []*store.Post{newPost("p1", "instagram")})
	if summary.Failed != 0 {
		t.Fatalf("caption failure must not fail the publish: %+v", summary)
	}
	if len(publisher.requests) != 1 {
		t.Fatalf("requests = %d", len(publisher.requests))
	}
	if publisher.requests[0].Caption != "Alice video #shorts" {
		t.Fatalf("caption = %q, want fallback", publisher.requests[0].Caption)
	}
}

func TestYouTubeCaptionSplitsTitle(t *testing.T) {
	storage := &fakeStorage{}
	publisher := &fakePublisher{}
	recorder := newFakeRecorder()
	o := newOrchestrator(storage, &fakeCaptioner{text: "Big Reveal $$$ Full story #shorts"}, publisher, recorder)

	o.Run(context.Background(), []*store.Post{newPost("p1", "youtube")})
	if len(publisher.requests) != 1 {
		t.Fatalf("requests = %d", len(publisher.requests))
	}
	req := publisher.requests[0]
	if req.Title != "Big Reveal" {
		t.Fatalf("title = %q", req.Title)
	}
	if req.Caption != "Full story #shorts" {
		t.Fatalf("caption = %q", req.Caption)
	}
}

func TestTransientLinkErrorIsRetried(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "storage", "download-link", "", errors.New("503"))
	storage := &fakeStorage{linkErrs: map[string][]error{
		"disk:/Video/Alice/Beauty/Acme/clip.mp4": {transient, transient},
	}}
	publisher := &fakePublisher{}
	recorder := newFakeRecorder()
	o := newOrchestrator(storage, &fakeCaptioner{text: "ok"}, publisher, recorder)

	summary := o.Run(context.Background(), []*store.Post{newPost("p1", "instagram")})
	if summary.Published != 1 {
		t.Fatalf("summary = %+v, want success after retries", summary)
	}
	if storage.linkCalls != 3 {
		t.Fatalf("link calls = %d, want 3", storage.linkCalls)
	}
}

func TestUpstreamLinkErrorIsNotRetried(t *testing.T) {
	fatal := services.Wrap(services.ErrUpstream, "storage", "download-link", "", errors.New("403"))
	storage := &fakeStorage{linkErrs: map[string][]error{
		"disk:/Video/Alice/Beauty/Acme/clip.mp4": {fatal, fatal, fatal},
	}}
	publisher := &fakePublisher{}
	recorder := newFakeRecorder()
	o := newOrchestrator(storage, &fakeCaptioner{text: "ok"}, publisher, recorder)

	summary := o.Run(context.Background(), []*store.Post{newPost("p1", "instagram")})
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v, want failure", summary)
	}
	if storage.linkCalls != 1 {
		t.Fatalf("link calls = %d, want no retry for upstream errors", storage.linkCalls)
	}
	if len(publisher.requests) != 0 {
		t.Fatal("publish must not run when the link cannot be resolved")
	}
}

func TestOnlyTodayIsDispatched(t *testing.T) {
	storage := &fakeStorage{}
	publisher := &fakePublisher{}
	recorder := newFakeRecorder()
	o := newOrchestrator(storage, &fakeCaptioner{text: "ok"}, publisher, recorder)

	tomorrow := newPost("p2", "instagram")
	tomorrow.VideoIdentity = "md5-other"
	tomorrow.ScheduledAt = testNow.AddDate(0, 0, 1)

	summary := o.Run(context.Background(), []*store.Post{newPost("p1", "instagram"), tomorrow})
	if summary.Due != 1 || summary.Published != 1 {
		t.Fatalf("summary = %+v, want only today's post dispatched", summary)
	}
	if recorder.statuses["p2"] != "" {
		t.Fatalf("tomorrow's post should be untouched, got %s", recorder.statuses["p2"])
	}
}

func TestFailedDeleteLeavesLedgerUntouched(t *testing.T) {
	storage := &fakeStorage{deleteErr: errors.New("disk api down")}
	publisher := &fakePublisher{}
	recorder := newFakeRecorder()
	o := newOrchestrator(storage, &fakeCaptioner{text: "ok"}, publisher, recorder)

	summary := o.Run(context.Background(), []*store.Post{newPost("p1", "instagram")})
	if summary.Published != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Deleted != 0 {
		t.Fatal("delete failure must not count as deleted")
	}
	if len(recorder.used) != 0 {
		t.Fatal("ledger must not be written when the delete failed")
	}
}

func TestFallbackCaptionSkipsUnknownAuthor(t *testing.T) {
	storage := &fakeStorage{}
	publisher := &fakePublisher{}
	recorder := newFakeRecorder()
	o := newOrchestrator(storage, &fakeCaptioner{err: errors.New("down")}, publisher, recorder)

	post := newPost("p1", "instagram")
	post.Author = "unknown"
	o.Run(context.Background(), []*store.Post{post})
	if len(publisher.requests) != 1 {
		t.Fatalf("requests = %d", len(publisher.requests))
	}
	if strings.Contains(publisher.requests[0].Caption, "unknown") {
		t.Fatalf("fallback should omit the unknown author: %q", publisher.requests[0].Caption)
	}
}
