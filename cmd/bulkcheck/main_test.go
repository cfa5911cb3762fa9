package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRunFailsOnInvalidConfig(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "0")

	err := run()
	if err == nil {
		t.Fatalf("expected config error")
	}
	if !strings.Contains(err.Error(), "load config") || !strings.Contains(err.Error(), "poll_interval") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestExitCode(t *testing.T) {
	var stderr bytes.Buffer
	if code := exitCode(&stderr, nil); code != 0 || stderr.Len() != 0 {
		t.Fatalf("expected clean exit, got %d %q", code, stderr.String())
	}

	if code := exitCode(&stderr, errors.New("load config: boom")); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if stderr.String() != "Error: load config: boom\n" {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}
