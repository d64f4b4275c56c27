package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testStringer string

func (s testStringer) String() string { return string(s) }

func TestInitAndLoggingToFile(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "nested", "atelier.log")

	if err := Init(logPath); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close()
	})

	LogEvent("hello %s", "world")
	LogStage(2, "layout", "failed: %s", "boom")
	_ = Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "hello world") {
		t.Fatalf("expected LogEvent content, got: %s", content)
	}
	if !strings.Contains(content, "[FRAME 2] stage=layout failed: boom") {
		t.Fatalf("expected LogStage content, got: %s", content)
	}
}

func TestInitFileOnly(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tui.log")
	if err := InitFileOnly(logPath); err != nil {
		t.Fatalf("InitFileOnly error: %v", err)
	}
	LogEvent("quiet")
	_ = Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "quiet") {
		t.Fatalf("expected file content, got: %s", data)
	}
}

func TestBuildRequestMessageDefaults(t *testing.T) {
	msg := buildRequestMessage(" in ", " ", "", " review ", map[string]any{"ok": true})
	if !strings.Contains(msg, "[IN]") {
		t.Fatalf("expected uppercased direction, got: %s", msg)
	}
	if !strings.Contains(msg, "provider=unknown") {
		t.Fatalf("expected default provider, got: %s", msg)
	}
	if !strings.Contains(msg, "model=unknown") {
		t.Fatalf("expected default model, got: %s", msg)
	}
	if !strings.Contains(msg, "detail=review") {
		t.Fatalf("expected detail, got: %s", msg)
	}
	if !strings.Contains(msg, "payload={\"ok\":true}") {
		t.Fatalf("expected payload json, got: %s", msg)
	}
}

func TestBuildRequestMessageScrubsImages(t *testing.T) {
	payload := `<img src="data:image/png;base64,iVBORw0KGgoAAAANSUhEUg==">` + strings.Repeat("x", 3000)
	msg := buildRequestMessage("out", "openai", "gpt-4o", "", payload)
	if strings.Contains(msg, "iVBORw0KGgo") {
		t.Fatalf("expected base64 payload elided, got: %s", msg[:200])
	}
	if !strings.HasSuffix(msg, "…") {
		t.Fatal("expected long payload to be truncated")
	}
}

func TestFormatPayloadVariants(t *testing.T) {
	if got := formatPayload(nil); got != "null" {
		t.Fatalf("nil payload: %s", got)
	}
	if got := formatPayload(" "); got != `""` {
		t.Fatalf("empty string payload: %s", got)
	}
	if got := formatPayload([]byte("hi")); got != "hi" {
		t.Fatalf("byte payload: %s", got)
	}
	if got := formatPayload(testStringer("ok")); got != "ok" {
		t.Fatalf("stringer payload: %s", got)
	}
}

func TestInitDiscard(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	if err := Init(""); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	LogEvent("discard")
	if buf.Len() != 0 {
		t.Fatalf("expected log output discarded, got: %s", buf.String())
	}
}
