package disk_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"autopost/internal/services"
	"autopost/internal/services/disk"
)

func TestListFilesPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resources/files" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "OAuth token" {
			t.Errorf("auth = %q", got)
		}
		if got := r.URL.Query().Get("media_type"); got != "video" {
			t.Errorf("media_type = %q", got)
		}
		offset := r.URL.Query().Get("offset")
		switch offset {
		case "0":
			fmt.Fprint(w, `{"items":[
				{"name":"a.mp4","path":"disk:/Video/Alice/Beauty/Acme/a.mp4","md5":"m1","size":10,"created":"2026-08-01T10:00:00+00:00"},
				{"name":"b.mp4","path":"disk:/Video/Alice/Beauty/Acme/b.mp4","md5":"m2","size":20,"created":"2026-08-02T10:00:00+00:00"}
			]}`)
		case "2":
			fmt.Fprint(w, `{"items":[
				{"name":"c.mp4","path":"disk:/Video/Bob/Fitness/Pump/c.mp4","md5":"m3","size":30,"created":"2026-08-03T10:00:00+00:00"}
			]}`)
		default:
			t.Errorf("unexpected offset %q", offset)
			fmt.Fprint(w, `{"items":[]}`)
		}
	}))
	defer server.Close()

	client := disk.NewClient(disk.Config{BaseURL: server.URL, Token: "token", ListLimit: 2})
	items, err := client.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	if items[2].MD5 != "m3" || items[2].SizeBytes != 30 {
		t.Fatalf("item = %+v", items[2])
	}
	if items[0].CreatedAt.IsZero() {
		t.Fatal("created timestamp should parse")
	}
}

func TestGetDownloadLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resources/download" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("path"); got != "disk:/Video/a.mp4" {
			t.Errorf("path param = %q", got)
		}
		fmt.Fprint(w, `{"href":"https://downloader.example/a.mp4","method":"GET"}`)
	}))
	defer server.Close()

	client := disk.NewClient(disk.Config{BaseURL: server.URL, Token: "token"})
	href, err := client.GetDownloadLink(context.Background(), "disk:/Video/a.mp4")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if href != "https://downloader.example/a.mp4" {
		t.Fatalf("href = %q", href)
	}
}

func TestServerErrorsAreTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"message":"try later"}`)
	}))
	defer server.Close()

	client := disk.NewClient(disk.Config{BaseURL: server.URL, Token: "token"})
	_, err := client.GetDownloadLink(context.Background(), "disk:/Video/a.mp4")
	if !services.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestNotFoundIsNotTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"no such file"}`)
	}))
	defer server.Close()

	client := disk.NewClient(disk.Config{BaseURL: server.URL, Token: "token"})
	_, err := client.GetDownloadLink(context.Background(), "disk:/Video/gone.mp4")
	if services.IsTransient(err) {
		t.Fatalf("404 must not be transient: %v", err)
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestDeleteFileTreatsMissingAsSuccess(t *testing.T) {
	var method, permanently string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		permanently = r.URL.Query().Get("permanently")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := disk.NewClient(disk.Config{BaseURL: server.URL, Token: "token"})
	if err := client.DeleteFile(context.Background(), "disk:/Video/gone.mp4"); err != nil {
		t.Fatalf("delete of missing file should succeed: %v", err)
	}
	if method != http.MethodDelete {
		t.Fatalf("method = %q", method)
	}
	if permanently != "true" {
		t.Fatalf("permanently = %q", permanently)
	}
}

func TestRequestsRequireToken(t *testing.T) {
	client := disk.NewClient(disk.Config{BaseURL: "http://localhost:1"})
	_, err := client.ListFiles(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}
