package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/entry"
	"github.com/hpungsan/murmur/internal/journal"
	"github.com/hpungsan/murmur/internal/logger"
	"github.com/hpungsan/murmur/internal/pipeline"
)

// testConfig builds a config rooted in a temp directory with a stub shell
// transcriber that echoes a fixed transcript.
func testConfig(t *testing.T, transcript string) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{
		IntakeDir:             filepath.Join(base, "intake"),
		JournalPath:           filepath.Join(base, "journal", "captures.jsonl"),
		TranscribeCommand:     "sh",
		TranscribeArgs:        []string{"-c", "printf '%s' '" + transcript + "'"},
		TranscribeTimeoutSecs: 30,
		ClassifyTimeoutSecs:   1,
		MinTranscriptChars:    3,
		WatchDebounceSecs:     1,
	}
	if err := os.MkdirAll(cfg.IntakeDir, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	return cfg
}

// captureStdout runs fn and returns what it wrote to stdout.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe() error = %v", err)
	}
	os.Stdout = w

	runErr := fn()

	w.Close()
	os.Stdout = old
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(data), runErr
}

func seedEntries(t *testing.T, cfg *config.Config, entries []entry.Entry) {
	t.Helper()
	j := journal.New(cfg.JournalPath)
	for _, e := range entries {
		if err := j.Append(e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

func newEntry(id string, status entry.Status) entry.Entry {
	return entry.Entry{
		ID:             id,
		Timestamp:      time.Date(2026, 1, 24, 14, 30, 22, 0, time.UTC),
		Transcription:  "remember to call the dentist tomorrow",
		Classification: entry.Fallback(),
		SourceFile:     id + ".m4a",
		Status:         status,
	}
}

func TestCLI_ProcessEndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub transcriber requires a POSIX shell")
	}
	cfg := testConfig(t, "remember to call the dentist tomorrow")
	artifact := filepath.Join(cfg.IntakeDir, "capture_20260124_143022.m4a")
	if err := os.WriteFile(artifact, []byte("fake audio"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	app := newCLIApp(cfg, logger.Discard())
	out, err := captureStdout(t, func() error {
		return app.Run([]string{"murmur", "process"})
	})
	if err != nil {
		t.Fatalf("process error = %v", err)
	}

	var report pipeline.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("process output not JSON: %v\n%s", err, out)
	}
	if report.Captured != 1 || report.Attempted != 1 {
		t.Errorf("report = %+v, want 1/1 captured", report)
	}

	// No classifier configured: entry stored with the fallback labels,
	// artifact relocated.
	entries, err := journal.New(cfg.JournalPath).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(entries))
	}
	if entries[0].ID != "cap_20260124_143022" {
		t.Errorf("ID = %q, want cap_20260124_143022", entries[0].ID)
	}
	if entries[0].Classification != entry.Fallback() {
		t.Errorf("Classification = %+v, want fallback", entries[0].Classification)
	}
	if entries[0].Status != entry.StatusNew {
		t.Errorf("Status = %q, want new", entries[0].Status)
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Error("artifact not relocated out of intake")
	}
}

func TestCLI_InboxJSON(t *testing.T) {
	cfg := testConfig(t, "")
	seedEntries(t, cfg, []entry.Entry{
		newEntry("cap_1", entry.StatusNew),
		newEntry("cap_2", entry.StatusProcessed),
	})

	app := newCLIApp(cfg, logger.Discard())
	out, err := captureStdout(t, func() error {
		return app.Run([]string{"murmur", "inbox", "--json"})
	})
	if err != nil {
		t.Fatalf("inbox error = %v", err)
	}

	var entries []entry.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("inbox output not JSON: %v\n%s", err, out)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want only the pending one", len(entries))
	}
	if entries[0].ID != "cap_1" {
		t.Errorf("ID = %q, want cap_1", entries[0].ID)
	}
}

func TestCLI_InboxHuman(t *testing.T) {
	cfg := testConfig(t, "")
	seedEntries(t, cfg, []entry.Entry{newEntry("cap_1", entry.StatusNew)})

	app := newCLIApp(cfg, logger.Discard())
	out, err := captureStdout(t, func() error {
		return app.Run([]string{"murmur", "inbox"})
	})
	if err != nil {
		t.Fatalf("inbox error = %v", err)
	}
	if !strings.Contains(out, "cap_1") || !strings.Contains(out, "note") {
		t.Errorf("inbox output missing entry line:\n%s", out)
	}
}

func TestCLI_ClearAll(t *testing.T) {
	cfg := testConfig(t, "")
	seedEntries(t, cfg, []entry.Entry{
		newEntry("cap_1", entry.StatusNew),
		newEntry("cap_2", entry.StatusNew),
		newEntry("cap_3", entry.StatusNew),
	})

	app := newCLIApp(cfg, logger.Discard())
	out, err := captureStdout(t, func() error {
		return app.Run([]string{"murmur", "clear", "--all"})
	})
	if err != nil {
		t.Fatalf("clear error = %v", err)
	}
	if !strings.Contains(out, `"updated": 3`) {
		t.Errorf("clear output = %s, want updated: 3", out)
	}

	entries, _ := journal.New(cfg.JournalPath).ReadAll()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3 (clear never deletes)", len(entries))
	}
	for i, e := range entries {
		if e.Status != entry.StatusProcessed {
			t.Errorf("entries[%d].Status = %q, want processed", i, e.Status)
		}
	}
}

func TestCLI_ClearAmbiguous(t *testing.T) {
	cfg := testConfig(t, "")
	app := newCLIApp(cfg, logger.Discard())

	_, err := captureStdout(t, func() error {
		return app.Run([]string{"murmur", "clear", "--all", "cap_1"})
	})
	if err == nil || !strings.Contains(err.Error(), "AMBIGUOUS_ADDRESSING") {
		t.Errorf("clear error = %v, want AMBIGUOUS_ADDRESSING", err)
	}
}

func TestCLI_ClearUnknownID(t *testing.T) {
	cfg := testConfig(t, "")
	seedEntries(t, cfg, []entry.Entry{newEntry("cap_1", entry.StatusNew)})

	app := newCLIApp(cfg, logger.Discard())
	_, err := captureStdout(t, func() error {
		return app.Run([]string{"murmur", "clear", "cap_missing"})
	})
	if err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("clear error = %v, want NOT_FOUND", err)
	}
}
