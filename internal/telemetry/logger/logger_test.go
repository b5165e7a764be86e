package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &entry); err != nil {
		t.Fatalf("json.Unmarshal(%q) error = %v", b, err)
	}
	return entry
}

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", "console", ""} {
		l, err := New(Config{Level: "info", Format: format, Output: &bytes.Buffer{}})
		if err != nil {
			t.Fatalf("New(%q) error = %v", format, err)
		}
		if l == nil {
			t.Fatalf("New(%q) returned nil", format)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "warn", Format: "json", Output: &buf})
	defer SetLevel("info")

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}

	l.Warn("shown", "host", "a.test")
	entry := decodeLine(t, buf.Bytes())
	if entry["msg"] != "shown" || entry["host"] != "a.test" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "error", Format: "json", Output: &buf})
	defer SetLevel("info")

	SetLevel("debug")
	if got := GetLevel(); got != "debug" {
		t.Fatalf("GetLevel() = %q, want debug", got)
	}
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("debug entry missing after SetLevel(debug)")
	}
}

func TestValidLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "warning", "error"} {
		if !ValidLevel(lvl) {
			t.Errorf("ValidLevel(%q) = false", lvl)
		}
	}
	if ValidLevel("verbose") {
		t.Error("ValidLevel(verbose) = true")
	}
}

func TestL_RequestID(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithLogger(context.Background(), l)
	ctx = WithRequestID(ctx, "01HZY")
	L(ctx).Info("served")

	entry := decodeLine(t, buf.Bytes())
	if entry["request_id"] != "01HZY" {
		t.Errorf("request_id = %v, want 01HZY", entry["request_id"])
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext(empty) = %q", got)
	}
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	l.Info("request",
		"authorization", "Bearer abc.def",
		"cookie", "sid=42",
		"key", "certs/server.key",
		"empty_secret", "",
	)

	entry := decodeLine(t, buf.Bytes())
	if got := entry["authorization"]; got != "Bearer "+redactedValue {
		t.Errorf("authorization = %v", got)
	}
	if got := entry["cookie"]; got != redactedValue {
		t.Errorf("cookie = %v", got)
	}
	if got := entry["key"]; got != "certs/server.key" {
		t.Errorf("key = %v, want path kept", got)
	}
	if got := entry["empty_secret"]; got != "" {
		t.Errorf("empty_secret = %v, want empty", got)
	}
}

func TestNopAndOrDefault(t *testing.T) {
	Nop().Info("discarded")
	if OrDefault(nil) != Default() {
		t.Error("OrDefault(nil) should return Default()")
	}
	n := Nop()
	if OrDefault(n) != n {
		t.Error("OrDefault(l) should return l")
	}
}
