package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, 50, 100, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadGlob(t *testing.T) {
	_, err := NewWatcher(100*time.Millisecond, 50, 100, []string{"[unclosed"}, nil, func([]string) {})
	if err == nil {
		t.Fatal("expected error for invalid glob pattern")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 4)
	w, err := NewWatcher(100*time.Millisecond, 1000, 1000, []string{"exclude_dir"}, []string{"*.exclude"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Start([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	// Create a file
	testFile := filepath.Join(tmpDir, "test.spx")
	os.WriteFile(testFile, []byte("document"), 0644)

	select {
	case paths := <-changedFiles:
		found := false
		for _, p := range paths {
			if p == testFile {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected to find %s in changed files %v", testFile, paths)
		}
	case <-time.After(2 * time.Second):
		t.Error("Timed out waiting for file change event")
	}

	// Test exclusion
	excludeFile := filepath.Join(tmpDir, "test.exclude")
	os.WriteFile(excludeFile, []byte("exclude me"), 0644)

	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if filepath.Base(p) == "test.exclude" {
				t.Error("Excluded file triggered event")
			}
		}
	case <-time.After(500 * time.Millisecond):
		// Expected
	}
}

func TestWatcher_LanguageFilters(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 4)
	w, err := NewWatcher(100*time.Millisecond, 1000, 1000, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.SetLanguageFilters([]string{".spx"}, []string{"grammar.js"})

	if err := w.Start([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("ignored"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "doc.spx"), []byte("watched"), 0644)

	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if filepath.Base(p) == "notes.txt" {
				t.Error("Unsupported file triggered event")
			}
		}
		found := false
		for _, p := range paths {
			if filepath.Base(p) == "doc.spx" {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected doc.spx in changed files %v", paths)
		}
	case <-time.After(2 * time.Second):
		t.Error("Timed out waiting for file change event")
	}
}
