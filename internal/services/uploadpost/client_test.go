package uploadpost_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autopost/internal/platform"
	"autopost/internal/services"
	"autopost/internal/services/uploadpost"
)

func TestPublishSendsStrategyFields(t *testing.T) {
	var form map[string][]string
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" {
			t.Errorf("path = %q", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = r.PostForm
		fmt.Fprint(w, `{"success":true,"job_id":"job-7","scheduled":true}`)
	}))
	defer server.Close()

	client := uploadpost.NewClient(uploadpost.Config{APIKey: "key", BaseURL: server.URL})
	ack, err := client.Publish(context.Background(), platform.Request{
		Profile:     "beautyhub",
		VideoURL:    "https://downloader.example/v.mp4",
		Caption:     "Fresh look #skincare",
		ScheduledAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}, platform.Instagram)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ack.JobID != "job-7" || !ack.Scheduled {
		t.Fatalf("ack = %+v", ack)
	}
	if auth != "Apikey key" {
		t.Fatalf("auth = %q", auth)
	}
	if got := form["media_type"]; len(got) != 1 || got[0] != "REELS" {
		t.Fatalf("media_type = %v", got)
	}
	if got := form["user"]; len(got) != 1 || got[0] != "beautyhub" {
		t.Fatalf("user = %v", got)
	}
	if got := form["scheduled_date"]; len(got) != 1 || got[0] == "" {
		t.Fatalf("scheduled_date = %v", got)
	}
}

func TestPublishSurfacesBusinessRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"message":"account not linked"}`)
	}))
	defer server.Close()

	client := uploadpost.NewClient(uploadpost.Config{APIKey: "key", BaseURL: server.URL})
	_, err := client.Publish(context.Background(), platform.Request{Profile: "p", VideoURL: "u"}, platform.TikTok)
	if err == nil {
		t.Fatal("expected error")
	}
	if services.IsTransient(err) {
		t.Fatalf("business rejection must not be transient: %v", err)
	}
}

func TestPublishServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := uploadpost.NewClient(uploadpost.Config{APIKey: "key", BaseURL: server.URL})
	_, err := client.Publish(context.Background(), platform.Request{Profile: "p", VideoURL: "u"}, platform.TikTok)
	if !services.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestPendingJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploadposts/scheduled" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"jobs":[
			{"job_id":"j1","user":"beautyhub","platform":"instagram","scheduled_date":"2026-09-01T12:00:00Z"},
			{"job_id":"j2","user":"fitacct","platform":"tiktok","scheduled_date":"2026-09-01T15:30:00Z"}
		]}`)
	}))
	defer server.Close()

	client := uploadpost.NewClient(uploadpost.Config{APIKey: "key", BaseURL: server.URL})
	jobs, err := client.PendingJobs(context.Background())
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d", len(jobs))
	}
	if jobs[0].ID != "j1" || jobs[0].Profile != "beautyhub" {
		t.Fatalf("job = %+v", jobs[0])
	}
	if jobs[1].ScheduledAt.Hour() != 15 {
		t.Fatalf("scheduled = %v", jobs[1].ScheduledAt)
	}
}

func TestCancelJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %q", r.Method)
		}
		switch r.URL.Path {
		case "/uploadposts/scheduled/j1":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := uploadpost.NewClient(uploadpost.Config{APIKey: "key", BaseURL: server.URL})
	ok, err := client.CancelJob(context.Background(), "j1")
	if err != nil || !ok {
		t.Fatalf("cancel = %v, %v", ok, err)
	}
	ok, err = client.CancelJob(context.Background(), "missing")
	if err != nil {
		t.Fatalf("cancel missing: %v", err)
	}
	if ok {
		t.Fatal("cancel of unknown job should report false")
	}
}

func TestProfiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"profiles":[{"username":"beautyhub"},{"username":"fitacct"}]}`)
	}))
	defer server.Close()

	client := uploadpost.NewClient(uploadpost.Config{APIKey: "key", BaseURL: server.URL})
	handles, err := client.Profiles(context.Background())
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if len(handles) != 2 || handles[0] != "beautyhub" {
		t.Fatalf("handles = %v", handles)
	}
}

func TestRequestsRequireAPIKey(t *testing.T) {
	client := uploadpost.NewClient(uploadpost.Config{BaseURL: "http://localhost:1"})
	_, err := client.PendingJobs(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}
