package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAsynqLogger(t *testing.T) {
	var buf bytes.Buffer
	l := asynqLogger{zerolog.New(&buf)}

	l.Info("scheduler started, ", 3, " entries")
	l.Warn("lease expired")

	out := buf.String()
	if !strings.Contains(out, `"level":"info"`) || !strings.Contains(out, "scheduler started, 3 entries") {
		t.Errorf("unexpected info line: %s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected warn line, got %s", out)
	}
}
