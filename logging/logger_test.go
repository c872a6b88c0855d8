package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newBufLogger(t *testing.T) (*DebateLogger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Level = LogLevelDebug
	cfg.Output = buf
	return NewLogger(cfg), buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, lines[len(lines)-1])
	}
	return entry
}

func TestDebateLogger_KeyValuePairsBecomeAttrs(t *testing.T) {
	log, buf := newBufLogger(t)

	log.Info("session created", "session_id", "s1", "agents", 3)

	entry := lastEntry(t, buf)
	if entry["msg"] != "session created" {
		t.Fatalf("expected message untouched, got %q", entry["msg"])
	}
	if entry["session_id"] != "s1" {
		t.Fatalf("expected session_id attr, got %#v", entry)
	}
	if entry["agents"] != float64(3) {
		t.Fatalf("expected agents attr, got %#v", entry["agents"])
	}
	// args must never be rendered through printf verbs
	if strings.Contains(buf.String(), "%!") {
		t.Fatalf("printf artifacts in output: %s", buf.String())
	}
}

func TestDebateLogger_ContextualAttrsCarry(t *testing.T) {
	log, buf := newBufLogger(t)

	log.WithComponent("engine").WithSession("s1").WithRound(2).Warn("skipping verdict", "reason", "too few agents")

	entry := lastEntry(t, buf)
	if entry["component"] != "engine" || entry["session_id"] != "s1" || entry["round"] != float64(2) {
		t.Fatalf("missing contextual attrs: %#v", entry)
	}
	if entry["reason"] != "too few agents" {
		t.Fatalf("missing call-site attr: %#v", entry)
	}
}

func TestDebateLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Level = LogLevelWarn
	cfg.Output = buf
	log := NewLogger(cfg)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("expected sub-warn entries filtered, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn entry emitted")
	}
}

func TestDebateLogger_LogRound(t *testing.T) {
	log, buf := newBufLogger(t)

	log.WithSession("s1").LogRound(3, 4, 1, 250*time.Millisecond)

	entry := lastEntry(t, buf)
	if entry["msg"] != "Round completed" {
		t.Fatalf("unexpected message %q", entry["msg"])
	}
	if entry["turn_count"] != float64(4) || entry["failed_turns"] != float64(1) {
		t.Fatalf("missing round metrics: %#v", entry)
	}
}

func TestDebateLogger_LogReasoningCall(t *testing.T) {
	log, buf := newBufLogger(t)

	log.LogReasoningCall("openai", 128, 40*time.Millisecond, true, nil)
	entry := lastEntry(t, buf)
	if entry["msg"] != "Reasoning call completed" || entry["provider"] != "openai" {
		t.Fatalf("unexpected success entry: %#v", entry)
	}

	log.LogReasoningCall("anthropic", 0, 40*time.Millisecond, false, errors.New("boom"))
	entry = lastEntry(t, buf)
	if entry["msg"] != "Reasoning call failed" || entry["error"] != "boom" {
		t.Fatalf("unexpected failure entry: %#v", entry)
	}
}
