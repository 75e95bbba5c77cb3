package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTextHandlerPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newTextHandler(&buf, lvl))

	logger = logger.With(String(FieldComponent, "pipeline"))
	logger.Info("run started", String(FieldRunID, "abc"), Int("profiles", 3))

	line := buf.String()
	if !strings.Contains(line, " INFO pipeline: run started") {
		t.Fatalf("unexpected line %q", line)
	}
	if !strings.Contains(line, "run_id=abc") || !strings.Contains(line, "profiles=3") {
		t.Fatalf("missing attrs in %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not appear as key=value: %q", line)
	}
}

func TestTextHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTextHandler(&buf, new(slog.LevelVar)))
	logger.Info("note", String("caption", "two words"))
	if !strings.Contains(buf.String(), `caption="two words"`) {
		t.Fatalf("unexpected line %q", buf.String())
	}
}

func TestTextHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	handler := newTextHandler(&buf, lvl)

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be suppressed at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should pass at warn level")
	}
}

func TestFormatValueKinds(t *testing.T) {
	if got := formatValue(slog.DurationValue(90 * time.Second)); got != "1m30s" {
		t.Fatalf("duration = %q", got)
	}
	if got := formatValue(slog.IntValue(7)); got != "7" {
		t.Fatalf("int = %q", got)
	}
	if got := formatValue(slog.StringValue("")); got != `""` {
		t.Fatalf("empty string = %q", got)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if parseLevel("verbose") != slog.LevelInfo {
		t.Fatal("unknown level should map to info")
	}
	if parseLevel("DEBUG") != slog.LevelDebug {
		t.Fatal("level parsing should be case-insensitive")
	}
}
