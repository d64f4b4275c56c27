// internal/logging/logging.go
// Package logging tees the standard logger to stdout and an optional file and
// formats provider traffic and stage transitions as single log lines.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// maxPayloadRunes bounds how much of a request or response body reaches the log.
const maxPayloadRunes = 2000

var (
	mu      sync.Mutex
	logFile *os.File

	dataURIPattern = regexp.MustCompile(`data:image/[A-Za-z0-9.+-]+(?:;[^;,"'\s]+)*;base64,[A-Za-z0-9+/=]+`)
)

// Init routes log output to stdout and, when logPath is non-empty, to the file at logPath.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		logFile = file
		writers = append(writers, logFile)
	}

	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// InitFileOnly routes log output to the file at logPath only. It is used while a
// full-screen terminal UI owns stdout.
func InitFileOnly(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	if logPath == "" {
		log.SetOutput(io.Discard)
		return nil
	}
	if dir := filepath.Dir(logPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	logFile = file
	log.SetOutput(logFile)
	return nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

func LogEvent(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Println(msg)
}

// LogStage records a frame-scoped stage boundary message.
func LogStage(frame int, stage string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[FRAME %d] stage=%s %s", frame, stage, msg)
}

// LogRequest records one leg of provider traffic. Embedded image payloads are
// elided and long bodies are truncated.
func LogRequest(direction, provider, model, detail string, payload any) {
	msg := buildRequestMessage(direction, provider, model, detail, payload)
	log.Println(msg)
}

func buildRequestMessage(direction, provider, model, detail string, payload any) string {
	dir := strings.TrimSpace(direction)
	if dir != "" {
		dir = strings.ToUpper(dir)
	}
	providerValue := strings.TrimSpace(provider)
	if providerValue == "" {
		providerValue = "unknown"
	}
	modelValue := strings.TrimSpace(model)
	if modelValue == "" {
		modelValue = "unknown"
	}
	parts := []string{fmt.Sprintf("[%s]", dir)}
	parts = append(parts, fmt.Sprintf("provider=%s", providerValue))
	parts = append(parts, fmt.Sprintf("model=%s", modelValue))
	if detail = strings.TrimSpace(detail); detail != "" {
		parts = append(parts, fmt.Sprintf("detail=%s", detail))
	}
	parts = append(parts, fmt.Sprintf("payload=%s", scrub(formatPayload(payload))))
	return strings.Join(parts, " ")
}

func scrub(s string) string {
	s = dataURIPattern.ReplaceAllString(s, "data:image/…")
	if utf8.RuneCountInString(s) <= maxPayloadRunes {
		return s
	}
	return string([]rune(s)[:maxPayloadRunes]) + "…"
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
