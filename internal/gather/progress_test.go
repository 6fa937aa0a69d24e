package gather

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProgressTrackerMarkEmpty(t *testing.T) {
	dir := t.TempDir()

	pt, err := newProgressTracker(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := pt.MarkEmpty([]string{"AAAA", "BBBB", "AAAA"}); err != nil {
		t.Fatal(err)
	}
	pt.Close()

	// Reload and verify.
	pt2, err := newProgressTracker(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer pt2.Close()

	for _, ticker := range []string{"AAAA", "BBBB"} {
		if !pt2.IsTriedEmpty(ticker) {
			t.Errorf("expected %q to be tried-empty after reload", ticker)
		}
	}
	if pt2.IsTriedEmpty("CCCC") {
		t.Error("CCCC should not be tried-empty")
	}

	data, err := os.ReadFile(filepath.Join(dir, triedEmptyFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "AAAA\nBBBB\n" {
		t.Errorf(".tried-empty = %q, want each ticker once", data)
	}
}

func TestProgressTrackerCompleted(t *testing.T) {
	pt, err := newProgressTracker(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer pt.Close()

	key := "2024-01-01:2024-12-31"
	if pt.IsCompleted(key) || pt.LastCompleted() != "" {
		t.Error("should not be completed before marking")
	}
	if err := pt.MarkCompleted(key); err != nil {
		t.Fatal(err)
	}
	if !pt.IsCompleted(key) {
		t.Error("should be completed after marking")
	}
	if pt.IsCompleted("2024-01-01:2025-01-02") {
		t.Error("different range should not be completed")
	}
}

func TestProgressTrackerReset(t *testing.T) {
	dir := t.TempDir()

	pt, err := newProgressTracker(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer pt.Close()

	if err := pt.MarkEmpty([]string{"AAAA"}); err != nil {
		t.Fatal(err)
	}
	if err := pt.Reset(); err != nil {
		t.Fatal(err)
	}
	if pt.IsTriedEmpty("AAAA") {
		t.Error("AAAA should not be tried-empty after reset")
	}

	data, err := os.ReadFile(filepath.Join(dir, triedEmptyFile))
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(data) > 0 {
		t.Error(".tried-empty file should be empty after reset")
	}

	// Still writable after reset.
	if err := pt.MarkEmpty([]string{"BBBB"}); err != nil {
		t.Fatal(err)
	}
}
