package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ribosim/internal/config"
	"ribosim/internal/logging"
	"ribosim/internal/services"
)

func TestConsoleLoggerRendersSubjectAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithSessionID(context.Background(), "0123456789abcdef")
	ctx = services.WithPhase(ctx, "Cycling")
	ctx = services.WithUnitID(ctx, 3)
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "carrier")).Info("carrier settled", logging.String("amino_acid", "Met"))

	out := buf.String()
	for _, fragment := range []string{"INFO", "[carrier]", "Session 01234567 · Cycling · Unit #3", "carrier settled", "amino_acid: Met"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in %q", fragment, out)
		}
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no source location at info level, got %q", out)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logging.WarnWithContext(logger, "visible", "test_warning")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	for _, fragment := range []string{"visible", "event_type: test_warning", "error_hint:", "impact:"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in %q", fragment, out)
		}
	}
}

func TestLoggerRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("file line", logging.String(logging.FieldEventType, "test"), logging.Duration("timeout", 6*time.Second))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if entry["msg"] != "file line" || entry["level"] != "info" || entry["event_type"] != "test" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["timeout"] != "6s" {
		t.Fatalf("expected duration rendered as string, got %v", entry["timeout"])
	}
	if ts, ok := entry["ts"].(string); !ok || !strings.HasSuffix(ts, "Z") {
		t.Fatalf("expected UTC ts field, got %v", entry["ts"])
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	fresh := filepath.Join(dir, "fresh.log")
	other := filepath.Join(dir, "old.txt")
	for _, path := range []string{old, fresh, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{Dir: dir, Pattern: "*.log"})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
}

func TestCleanupOldLogsKeepsExcludedFile(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "ribosim.log")
	if err := os.WriteFile(live, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(live, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed := logging.CleanupOldLogs(nil, 5, logging.RetentionTarget{Dir: dir, Pattern: "*.log", Exclude: []string{live}})
	if removed != 0 {
		t.Fatalf("expected live log kept, removed %d", removed)
	}
	if got := logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir}); got != 0 {
		t.Fatalf("zero retention must not prune, removed %d", got)
	}
}

func TestFormatSubject(t *testing.T) {
	if got := logging.FormatSubject("", "Transit", ""); got != "Transit" {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := logging.FormatSubject("", "", ""); got != "" {
		t.Fatalf("expected empty subject, got %q", got)
	}
}
