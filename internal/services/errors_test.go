package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"autopost/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrUpstream, "storage", "list", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"storage", "list", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToUpstream(t *testing.T) {
	err := services.Wrap(nil, "publisher", "upload", "", nil)
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected default upstream marker, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	retryable := services.Wrap(services.ErrTransient, "storage", "download-link", "", errors.New("503"))
	if !services.IsTransient(retryable) {
		t.Fatal("transient-tagged error should be retryable")
	}
	fatal := services.Wrap(services.ErrConfiguration, "captioner", "generate", "missing key", nil)
	if services.IsTransient(fatal) {
		t.Fatal("configuration error must not be retryable")
	}
	if services.IsTransient(fmt.Errorf("plain")) {
		t.Fatal("untagged error must not be retryable")
	}
}
