package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetLogging(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		CloseAll()
		optsMu.Lock()
		opts = Options{}
		optsMu.Unlock()
		logsDir = ""
	})
}

func TestAllCategoriesLog(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	if err := Initialize(ws, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot, CategoryPerformance, CategoryExtract, CategoryFrontend,
		CategoryKernel, CategoryStore, CategoryWatch,
	}
	for _, cat := range categories {
		Get(cat).Info("hello from %s", cat)
	}
	CloseAll()

	date := time.Now().Format("2006-01-02")
	for _, cat := range categories {
		path := filepath.Join(ws, ".switchfacts", "logs", date+"_"+string(cat)+".log")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("category %s: expected log file: %v", cat, err)
			continue
		}
		if !strings.Contains(string(data), "hello from "+string(cat)) {
			t.Errorf("category %s: log file missing message, got %q", cat, string(data))
		}
	}
}

func TestDisabledCategoryIsNoop(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	err := Initialize(ws, Options{
		DebugMode:  true,
		Level:      "info",
		Categories: map[string]bool{"watch": false},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if IsCategoryEnabled(CategoryWatch) {
		t.Fatal("watch category should be disabled")
	}
	if !IsCategoryEnabled(CategoryExtract) {
		t.Fatal("unspecified categories default to enabled")
	}

	Watch("dropped")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(ws, ".switchfacts", "logs", date+"_watch.log")); !os.IsNotExist(err) {
		t.Fatalf("expected no watch log file, stat err = %v", err)
	}
}

func TestProductionModeWritesNothing(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()

	if err := Initialize(ws, Options{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	Extract("nothing to see")
	ExtractDebug("still nothing")

	if _, err := os.Stat(filepath.Join(ws, ".switchfacts")); !os.IsNotExist(err) {
		t.Fatalf("production mode must not create a log directory, stat err = %v", err)
	}
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	resetLogging(t)
	if err := Initialize("", Options{DebugMode: true}); err == nil {
		t.Fatal("expected error for empty workspace")
	}
}

func TestTimerThreshold(t *testing.T) {
	resetLogging(t)
	ws := t.TempDir()
	if err := Initialize(ws, Options{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	timer := StartTimer(CategoryExtract, "slow-op")
	time.Sleep(2 * time.Millisecond)
	if elapsed := timer.StopWithThreshold(time.Nanosecond); elapsed <= 0 {
		t.Fatalf("expected positive elapsed time, got %v", elapsed)
	}
	CloseAll()

	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".switchfacts", "logs", date+"_performance.log"))
	if err != nil {
		t.Fatalf("expected performance log: %v", err)
	}
	if !strings.Contains(string(data), "extract/slow-op") {
		t.Fatalf("performance log missing entry: %q", string(data))
	}
}
