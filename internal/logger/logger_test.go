package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLevelAndLevel(t *testing.T) {
	Init()
	if err := SetLevel("debug"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Level(); got != "debug" {
		t.Fatalf("expected level debug, got %s", got)
	}
	if err := SetLevel("bogus"); err == nil {
		t.Fatalf("expected error for invalid level")
	}
	_ = SetLevel("info")
}

func TestUseWriterCapturesOutput(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	_ = SetLevel("debug")
	Info("hello world", "k", "v")
	if !strings.Contains(buf.String(), "hello world") {
		t.Fatalf("expected log output to contain message, got: %s", buf.String())
	}
}

func TestWarnRateLimited(t *testing.T) {
	var buf bytes.Buffer
	UseWriter(&buf)
	_ = SetLevel("debug")
	for i := 0; i < 10; i++ {
		WarnRateLimited("test.key", "dropping frame")
	}
	count := strings.Count(buf.String(), "dropping frame")
	if count == 0 {
		t.Fatalf("expected at least one log line to pass the rate limiter")
	}
	if count >= 10 {
		t.Fatalf("expected rate limiter to suppress some lines, got %d", count)
	}
}
