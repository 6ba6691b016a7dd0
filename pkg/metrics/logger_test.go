package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithLevel(LevelDebug), WithName("transport"))
	l.now = fixedClock

	l.Info("handshake completed", Fields{"role": "client", "duration": "12ms"})

	out := buf.String()
	for _, want := range []string{"INFO", "[transport]", "handshake completed", "duration=12ms", "role=client"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	// Fields are emitted in sorted key order.
	if strings.Index(out, "duration=") > strings.Index(out, "role=") {
		t.Errorf("fields not sorted: %s", out)
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithFormat(FormatJSON), WithName("pool"))
	l.now = fixedClock

	l.Error("acquire timed out", Fields{"wait": "30s"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["msg"] != "acquire timed out" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["logger"] != "pool" {
		t.Errorf("logger = %v", entry["logger"])
	}
	if entry["wait"] != "30s" {
		t.Errorf("wait = %v", entry["wait"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry missing time")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithLevel(LevelWarn))

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")
	l.Error("kept")

	lines := strings.Count(buf.String(), "\n")
	if lines != 2 {
		t.Errorf("got %d lines, want 2:\n%s", lines, buf.String())
	}

	buf.Reset()
	l.SetLevel(LevelSilent)
	l.Error("silenced")
	if buf.Len() != 0 {
		t.Errorf("silent logger wrote: %s", buf.String())
	}
}

func TestLoggerWithAndNamed(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(WithOutput(&buf), WithFormat(FormatJSON), WithFields(Fields{"instance": "a"}))

	derived := base.Named("channel").With(Fields{"role": "server"})
	derived.Info("started")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["logger"] != "channel" {
		t.Errorf("logger = %v", entry["logger"])
	}
	if entry["instance"] != "a" || entry["role"] != "server" {
		t.Errorf("fields not merged: %v", entry)
	}

	// Per-call fields override defaults without mutating the logger.
	buf.Reset()
	derived.Info("again", Fields{"role": "override"})
	entry = map[string]interface{}{}
	_ = json.Unmarshal(buf.Bytes(), &entry)
	if entry["role"] != "override" {
		t.Errorf("role = %v, want override", entry["role"])
	}

	buf.Reset()
	derived.Info("third")
	entry = map[string]interface{}{}
	_ = json.Unmarshal(buf.Bytes(), &entry)
	if entry["role"] != "server" {
		t.Errorf("role = %v, defaults were mutated", entry["role"])
	}
}

func TestNamedChains(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithFormat(FormatJSON)).Named("kemtls").Named("pool")
	l.Info("x")

	var entry map[string]interface{}
	_ = json.Unmarshal(buf.Bytes(), &entry)
	if entry["logger"] != "kemtls.pool" {
		t.Errorf("logger = %v, want kemtls.pool", entry["logger"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"Warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelSilent,
		"bogus":   LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNullLogger(t *testing.T) {
	// Must not panic and must not write anywhere observable.
	l := NullLogger()
	l.Error("nothing")
}
